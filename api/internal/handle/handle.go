package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"trust-engine/api/internal/logger"
	"trust-engine/api/internal/moderation"
	"trust-engine/api/internal/ocr"
	"trust-engine/api/internal/risk"
)

// Engine is the decision surface exposed over HTTP (see fusion.Service).
type Engine interface {
	VerifyIdentityDocument(ctx context.Context, imagePath string) (risk.IdentityVerificationResult, error)
	VerifyIdentityImage(ctx context.Context, img []byte) (risk.IdentityVerificationResult, error)
	AnalyzeFinancialDocument(ctx context.Context, imagePath string) (risk.FinancialDocumentResult, error)
	AnalyzeFinancialImage(ctx context.Context, img []byte) (risk.FinancialDocumentResult, error)
	ModerateContent(ctx context.Context, text string) moderation.ModerationVerdict
	ProcessAdminMention(ctx context.Context, history []moderation.ChatMessage, chat moderation.Chat) moderation.MediationVerdict
	GenerateProductDescription(ctx context.Context, title, category, details string) string
}

type Options struct {
	// Timeout is the deadline used when the request does not ask for one.
	Timeout      time.Duration
	MaxBodyBytes int64
	// ImageDir enables image_path requests for files under this directory.
	ImageDir string
	Logger   *zap.Logger
}

type Handle struct {
	eng      Engine
	timeout  time.Duration
	maxBody  int64
	imageDir string
	log      *zap.Logger
}

func New(eng Engine, o Options) *Handle {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 10 << 20
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Handle{eng: eng, timeout: o.Timeout, maxBody: o.MaxBodyBytes, imageDir: o.ImageDir, log: o.Logger}
}

const msgUnavailable = "verification unavailable, try again"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeEngineError maps hard failures: unreadable input is the caller's fault,
// everything else is an upstream outage.
func (h *Handle) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ese *ocr.ExternalServiceError
	if errors.As(err, &ese) && ese.Category == ocr.CategoryInputUnreadable {
		writeError(w, http.StatusBadRequest, "image unreadable")
		return
	}
	logger.From(r.Context(), h.log).Error("decision failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, msgUnavailable)
}

// decode reads a size-limited JSON body into dst.
func (h *Handle) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

// withDeadline applies X-Request-Timeout (seconds), else ?timeoutSec, else the default.
func (h *Handle) withDeadline(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

// resolveImagePath confines p to the configured image directory.
func (h *Handle) resolveImagePath(p string) (string, error) {
	if h.imageDir == "" {
		return "", errors.New("image_path is disabled")
	}
	root, err := filepath.Abs(h.imageDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.Clean("/"+p))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("image_path %q is outside the image directory", p)
	}
	return full, nil
}
