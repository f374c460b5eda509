package handle

import (
	"net/http"
	"strings"

	"trust-engine/api/internal/util"
)

// ImageRequest carries either inline image bytes or a path under the image directory.
type ImageRequest struct {
	ImageB64  string `json:"image_b64"`
	ImagePath string `json:"image_path"`
}

// image resolves the request into bytes or a path. Exactly one is set on success.
func (h *Handle) image(w http.ResponseWriter, r *http.Request) (img []byte, path string, ok bool) {
	var req ImageRequest
	if !h.decode(w, r, &req) {
		return nil, "", false
	}
	b64, p := strings.TrimSpace(req.ImageB64), strings.TrimSpace(req.ImagePath)
	switch {
	case b64 != "" && p != "":
		writeError(w, http.StatusBadRequest, "set either image_b64 or image_path, not both")
	case b64 != "":
		data, _, err := util.DecodeBase64MaybeDataURL(b64)
		if err != nil || len(data) == 0 {
			writeError(w, http.StatusBadRequest, "bad image_b64")
			return nil, "", false
		}
		return data, "", true
	case p != "":
		full, err := h.resolveImagePath(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, "", false
		}
		return nil, full, true
	default:
		writeError(w, http.StatusBadRequest, "image_b64 or image_path is required")
	}
	return nil, "", false
}

// VerifyIdentity: POST /v1/identity/verify
func (h *Handle) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	img, path, ok := h.image(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	if path != "" {
		out, err := h.eng.VerifyIdentityDocument(ctx, path)
		if err != nil {
			h.writeEngineError(w, r, "identity", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	out, err := h.eng.VerifyIdentityImage(ctx, img)
	if err != nil {
		h.writeEngineError(w, r, "identity", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// AnalyzeFinancial: POST /v1/financial/analyze
func (h *Handle) AnalyzeFinancial(w http.ResponseWriter, r *http.Request) {
	img, path, ok := h.image(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	if path != "" {
		out, err := h.eng.AnalyzeFinancialDocument(ctx, path)
		if err != nil {
			h.writeEngineError(w, r, "financial", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	out, err := h.eng.AnalyzeFinancialImage(ctx, img)
	if err != nil {
		h.writeEngineError(w, r, "financial", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
