package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"trust-engine/api/internal/ocr"
)

const labelMaxResults = 10

// Engine calls Google Cloud Vision images:annotate.
type Engine struct {
	svc *visionapi.Service
}

// New builds the client once; it is shared read-only by all requests.
func New(ctx context.Context, apiKey, endpoint string, opts ...option.ClientOption) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.New("VISION_API_KEY is empty")
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if ep := strings.TrimSpace(endpoint); ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision: new service: %w", err)
	}
	return &Engine{svc: svc}, nil
}

func (e *Engine) Name() string { return "vision" }

func (e *Engine) Annotate(ctx context.Context, image []byte, f ocr.Features) (ocr.Annotation, error) {
	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: features(f),
		}},
	}

	resp, err := e.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return ocr.Annotation{}, ocr.NewExternalServiceError(e.Name(), "annotate", categorize(err), err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return ocr.Annotation{}, ocr.NewExternalServiceError(e.Name(), "annotate", ocr.CategoryBadResponse, errors.New("empty responses"))
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return ocr.Annotation{}, ocr.NewExternalServiceError(e.Name(), "annotate", ocr.CategoryBadResponse,
			fmt.Errorf("code %d: %s", r.Error.Code, r.Error.Message))
	}
	return toAnnotation(r), nil
}

func features(f ocr.Features) []*visionapi.Feature {
	var out []*visionapi.Feature
	if !f.SkipText {
		out = append(out, &visionapi.Feature{Type: "TEXT_DETECTION"})
	}
	if !f.SkipLabels {
		out = append(out, &visionapi.Feature{Type: "LABEL_DETECTION", MaxResults: labelMaxResults})
	}
	if f.DetectObjects {
		out = append(out, &visionapi.Feature{Type: "OBJECT_LOCALIZATION"})
	}
	if f.SafeSearch {
		out = append(out, &visionapi.Feature{Type: "SAFE_SEARCH_DETECTION"})
	}
	return out
}

func toAnnotation(r *visionapi.AnnotateImageResponse) ocr.Annotation {
	var ann ocr.Annotation
	for _, t := range r.TextAnnotations {
		if t == nil {
			continue
		}
		ann.Text = append(ann.Text, ocr.TextAnnotation{
			Description: t.Description,
			Confidence:  score(t),
			BoundingBox: box(t.BoundingPoly),
		})
	}
	for _, l := range r.LabelAnnotations {
		if l == nil {
			continue
		}
		ann.Labels = append(ann.Labels, ocr.Label{Description: l.Description, Score: l.Score})
	}
	for _, o := range r.LocalizedObjectAnnotations {
		if o == nil {
			continue
		}
		ann.Objects = append(ann.Objects, ocr.Object{Name: o.Name, Score: o.Score})
	}
	if ss := r.SafeSearchAnnotation; ss != nil {
		ann.SafeSearch = &ocr.SafeSearch{
			Adult:    ocr.ParseLikelihood(ss.Adult),
			Violence: ocr.ParseLikelihood(ss.Violence),
			Racy:     ocr.ParseLikelihood(ss.Racy),
			Medical:  ocr.ParseLikelihood(ss.Medical),
			Spoofed:  ocr.ParseLikelihood(ss.Spoof),
		}
	}
	return ann
}

// score prefers the newer score field; older responses only fill confidence.
func score(t *visionapi.EntityAnnotation) float64 {
	if t.Score != 0 {
		return t.Score
	}
	return t.Confidence
}

func box(p *visionapi.BoundingPoly) ocr.BoundingBox {
	if p == nil {
		return ocr.BoundingBox{}
	}
	bb := ocr.BoundingBox{Vertices: make([]ocr.Point, 0, len(p.Vertices))}
	for _, v := range p.Vertices {
		if v == nil {
			continue
		}
		bb.Vertices = append(bb.Vertices, ocr.Point{X: v.X, Y: v.Y})
	}
	return bb
}

func categorize(err error) ocr.Category {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return ocr.CategoryAuth
		case gerr.Code == http.StatusTooManyRequests:
			return ocr.CategoryQuota
		case gerr.Code >= 400 && gerr.Code < 500:
			return ocr.CategoryBadResponse
		}
	}
	return ocr.CategoryUnavailable
}
