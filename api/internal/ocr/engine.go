package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"trust-engine/api/internal/util"
)

// Annotator is the OCR/vision collaborator boundary.
type Annotator interface {
	Name() string
	Annotate(ctx context.Context, image []byte, f Features) (Annotation, error)
}

// Adapter turns collaborator responses into DocumentSignal values.
// It never retries; retry policy belongs to the caller.
type Adapter struct {
	eng Annotator
}

func NewAdapter(eng Annotator) *Adapter {
	return &Adapter{eng: eng}
}

func (a *Adapter) Name() string { return a.eng.Name() }

// ExtractText runs text detection only.
func (a *Adapter) ExtractText(ctx context.Context, image []byte) (DocumentSignal, error) {
	return a.Analyze(ctx, image, Features{SkipLabels: true})
}

// Analyze runs the selected features against one image.
func (a *Adapter) Analyze(ctx context.Context, image []byte, f Features) (DocumentSignal, error) {
	if len(image) == 0 {
		return DocumentSignal{}, NewExternalServiceError(a.eng.Name(), "analyze", CategoryInputUnreadable, errors.New("empty image"))
	}
	if err := ctx.Err(); err != nil {
		return DocumentSignal{}, NewExternalServiceError(a.eng.Name(), "analyze", CategoryTimeout, err)
	}

	ann, err := a.eng.Annotate(ctx, image, f)
	if err != nil {
		return DocumentSignal{}, AsExternalServiceError(a.eng.Name(), "analyze", err)
	}

	sig := Normalize(ann)
	sig.MimeType = util.SniffMime(image)
	return sig, nil
}

// Normalize builds a DocumentSignal from a raw annotation.
//
// Zero text annotations is the empty signal, not an error. The aggregate
// confidence is the arithmetic mean over the per-token entries; the synthetic
// full-text entry only counts when it is the sole entry.
func Normalize(ann Annotation) DocumentSignal {
	sig := DocumentSignal{
		Tokens: []Token{},
		Labels: []Label{},
	}
	if len(ann.Labels) > 0 {
		sig.Labels = append(sig.Labels, ann.Labels...)
	}
	if len(ann.Objects) > 0 {
		sig.Objects = append([]Object(nil), ann.Objects...)
	}
	if ann.SafeSearch != nil {
		ss := *ann.SafeSearch
		sig.Safety = &ss
	}
	if len(ann.Text) == 0 {
		return sig
	}

	sig.RawText = strings.TrimSpace(ann.Text[0].Description)
	for _, ta := range ann.Text[1:] {
		sig.Tokens = append(sig.Tokens, Token{
			Text:        ta.Description,
			BoundingBox: ta.BoundingBox,
			Confidence:  ta.Confidence,
		})
	}

	scored := ann.Text[1:]
	if len(scored) == 0 {
		scored = ann.Text[:1]
	}
	var sum float64
	for _, ta := range scored {
		sum += ta.Confidence
	}
	sig.AggregateConfidence = clamp01(sum / float64(len(scored)))
	return sig
}

// LoadImage reads the document image from disk.
func LoadImage(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, NewExternalServiceError("filesystem", "load image", CategoryInputUnreadable, errors.New("empty image path"))
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("image %q not found: %w", path, err)
		}
		return nil, NewExternalServiceError("filesystem", "load image", CategoryInputUnreadable, err)
	}
	if len(b) == 0 {
		return nil, NewExternalServiceError("filesystem", "load image", CategoryInputUnreadable, fmt.Errorf("image %q is empty", path))
	}
	return b, nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
