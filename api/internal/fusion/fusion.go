// Package fusion composes extraction, scoring and moderation into the engine's entry points.
package fusion

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trust-engine/api/internal/logger"
	"trust-engine/api/internal/metrics"
	"trust-engine/api/internal/moderation"
	"trust-engine/api/internal/ocr"
	"trust-engine/api/internal/risk"
)

// Extractor is the signal extraction boundary (see ocr.Adapter).
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (ocr.DocumentSignal, error)
	Analyze(ctx context.Context, image []byte, f ocr.Features) (ocr.DocumentSignal, error)
}

// Moderator is the completion-backed boundary (see moderation.Adapter). It never fails.
type Moderator interface {
	Moderate(ctx context.Context, content string) moderation.ModerationVerdict
	Mediate(ctx context.Context, transcript []moderation.Turn, chat moderation.Chat) moderation.MediationVerdict
	Describe(ctx context.Context, title, category, details string) string
}

// ActionNotifier receives every mediation action other than none.
type ActionNotifier interface {
	NotifyAction(ctx context.Context, chatID string, v moderation.MediationVerdict) error
}

type Deps struct {
	Extractor Extractor
	Moderator Moderator
	Notifier  ActionNotifier // optional
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Service holds no per-request state and is safe for concurrent use.
type Service struct {
	extractor Extractor
	moderator Moderator
	notifier  ActionNotifier
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		extractor: d.Extractor,
		moderator: d.Moderator,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		log:       d.Logger,
	}
}

const (
	opIdentity    = "identity"
	opFinancial   = "financial"
	opModeration  = "moderation"
	opMediation   = "mediation"
	opDescription = "description"
)

// VerifyIdentityDocument loads the image at path and verifies it.
func (s *Service) VerifyIdentityDocument(ctx context.Context, imagePath string) (risk.IdentityVerificationResult, error) {
	img, err := ocr.LoadImage(imagePath)
	if err != nil {
		s.metrics.IncDecision(opIdentity, "error")
		return risk.IdentityVerificationResult{}, err
	}
	return s.VerifyIdentityImage(ctx, img)
}

// VerifyIdentityImage runs text extraction and full analysis concurrently and
// scores the merged signal. Either failure fails the whole verification.
func (s *Service) VerifyIdentityImage(ctx context.Context, img []byte) (risk.IdentityVerificationResult, error) {
	var textSig, fullSig ocr.DocumentSignal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sig, err := s.extract(gctx, "text", func(ctx context.Context) (ocr.DocumentSignal, error) {
			return s.extractor.ExtractText(ctx, img)
		})
		if err != nil {
			return err
		}
		textSig = sig
		return nil
	})
	g.Go(func() error {
		sig, err := s.extract(gctx, "full", func(ctx context.Context) (ocr.DocumentSignal, error) {
			return s.extractor.Analyze(ctx, img, ocr.Features{SafeSearch: true})
		})
		if err != nil {
			return err
		}
		fullSig = sig
		return nil
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncDecision(opIdentity, "error")
		logger.From(ctx, s.log).Warn("identity verification failed", zap.Error(err))
		return risk.IdentityVerificationResult{}, err
	}

	res := risk.ScoreIdentity(mergeSignals(textSig, fullSig))
	outcome := "invalid"
	if res.IsValid {
		outcome = "valid"
	}
	s.metrics.IncDecision(opIdentity, outcome)
	logger.From(ctx, s.log).Info("identity verified",
		zap.Bool("valid", res.IsValid),
		zap.Float64("confidence", res.Confidence),
		zap.Any("risk_flags", res.RiskFlags.Sorted()),
	)
	return res, nil
}

// AnalyzeFinancialDocument loads the image at path and extracts payment details.
func (s *Service) AnalyzeFinancialDocument(ctx context.Context, imagePath string) (risk.FinancialDocumentResult, error) {
	img, err := ocr.LoadImage(imagePath)
	if err != nil {
		s.metrics.IncDecision(opFinancial, "error")
		return risk.FinancialDocumentResult{}, err
	}
	return s.AnalyzeFinancialImage(ctx, img)
}

func (s *Service) AnalyzeFinancialImage(ctx context.Context, img []byte) (risk.FinancialDocumentResult, error) {
	sig, err := s.extract(ctx, "text", func(ctx context.Context) (ocr.DocumentSignal, error) {
		return s.extractor.ExtractText(ctx, img)
	})
	if err != nil {
		s.metrics.IncDecision(opFinancial, "error")
		logger.From(ctx, s.log).Warn("financial analysis failed", zap.Error(err))
		return risk.FinancialDocumentResult{}, err
	}

	res := risk.ScoreFinancialDocument(sig)
	outcome := "no_receipt"
	if res.LooksLikeReceipt {
		outcome = "receipt"
	}
	s.metrics.IncDecision(opFinancial, outcome)
	return res, nil
}

// ModerateContent never fails; a degraded verdict is the fail-open default.
func (s *Service) ModerateContent(ctx context.Context, text string) moderation.ModerationVerdict {
	v := s.moderator.Moderate(ctx, text)
	v.Confidence = moderation.Clamp01(v.Confidence)

	switch {
	case v.Degraded():
		s.metrics.IncDegraded(opModeration)
		s.metrics.IncDecision(opModeration, "degraded")
	case v.IsAppropriate:
		s.metrics.IncDecision(opModeration, "appropriate")
	default:
		s.metrics.IncDecision(opModeration, "inappropriate")
	}
	return v
}

// ProcessAdminMention asks for a mediation reply. Actions other than none are
// logged and forwarded to the notifier; notifier errors are only logged.
func (s *Service) ProcessAdminMention(ctx context.Context, history []moderation.ChatMessage, chat moderation.Chat) moderation.MediationVerdict {
	v := s.moderator.Mediate(ctx, moderation.BuildTranscript(history, chat), chat)
	if v.Action == "" {
		v.Action = moderation.ActionEscalate
	}

	s.metrics.IncMediationAction(string(v.Action))
	if v.Degraded() {
		s.metrics.IncDegraded(opMediation)
	}
	if v.Action == moderation.ActionNone {
		return v
	}

	log := logger.From(ctx, s.log).With(zap.String("chat_id", chat.ID), zap.String("action", string(v.Action)))
	log.Warn("mediation action requires attention")
	if s.notifier != nil {
		if err := s.notifier.NotifyAction(ctx, chat.ID, v); err != nil {
			log.Error("admin notification failed", zap.Error(err))
		}
	}
	return v
}

func (s *Service) GenerateProductDescription(ctx context.Context, title, category, details string) string {
	out := s.moderator.Describe(ctx, title, category, details)
	if out == moderation.FallbackDescription(title, category, details) {
		s.metrics.IncDegraded(opDescription)
	}
	return out
}

func (s *Service) extract(ctx context.Context, feature string, call func(context.Context) (ocr.DocumentSignal, error)) (ocr.DocumentSignal, error) {
	start := time.Now()
	sig, err := call(ctx)
	s.metrics.ObserveExtraction(feature, time.Since(start))
	return sig, err
}

// mergeSignals takes text from the text-only pass and everything else from the full pass.
// The full pass text is used when the text-only pass read nothing.
func mergeSignals(text, full ocr.DocumentSignal) ocr.DocumentSignal {
	out := full
	if text.RawText == "" && full.RawText != "" {
		return out
	}
	out.RawText = text.RawText
	out.Tokens = text.Tokens
	out.AggregateConfidence = text.AggregateConfidence
	if out.MimeType == "" {
		out.MimeType = text.MimeType
	}
	return out
}
