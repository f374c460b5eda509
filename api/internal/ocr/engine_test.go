package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnotator struct {
	ann   Annotation
	err   error
	calls []Features
}

func (f *fakeAnnotator) Name() string { return "fake" }

func (f *fakeAnnotator) Annotate(_ context.Context, _ []byte, feats Features) (Annotation, error) {
	f.calls = append(f.calls, feats)
	return f.ann, f.err
}

func TestAdapter_NoTextIsEmptySignal(t *testing.T) {
	a := NewAdapter(&fakeAnnotator{})

	sig, err := a.ExtractText(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)
	assert.Equal(t, "", sig.RawText)
	assert.Equal(t, 0.0, sig.AggregateConfidence)
	assert.Empty(t, sig.Tokens)
	assert.NotNil(t, sig.Tokens)
	assert.Equal(t, "image/jpeg", sig.MimeType)
}

func TestAdapter_AggregateConfidenceExcludesFullText(t *testing.T) {
	fake := &fakeAnnotator{ann: Annotation{
		Text: []TextAnnotation{
			{Description: " KTP Identitas \n", Confidence: 0.1},
			{Description: "KTP", Confidence: 0.9},
			{Description: "Identitas", Confidence: 0.7},
		},
		Labels: []Label{{Description: "card", Score: 0.9}},
	}}
	a := NewAdapter(fake)

	sig, err := a.Analyze(context.Background(), []byte("img"), Features{})
	require.NoError(t, err)
	assert.Equal(t, "KTP Identitas", sig.RawText)
	assert.InDelta(t, 0.8, sig.AggregateConfidence, 1e-9)
	require.Len(t, sig.Tokens, 2)
	assert.Equal(t, "KTP", sig.Tokens[0].Text)
	assert.Equal(t, []string{"card"}, sig.LabelDescriptions())
	assert.Nil(t, sig.Safety)
}

func TestAdapter_FullTextOnly(t *testing.T) {
	a := NewAdapter(&fakeAnnotator{ann: Annotation{
		Text: []TextAnnotation{{Description: "hello", Confidence: 0.6}},
	}})

	sig, err := a.Analyze(context.Background(), []byte("img"), Features{})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, sig.AggregateConfidence, 1e-9)
	assert.Empty(t, sig.Tokens)
}

func TestAdapter_ExtractTextSkipsLabels(t *testing.T) {
	fake := &fakeAnnotator{}
	a := NewAdapter(fake)

	_, err := a.ExtractText(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, Features{SkipLabels: true}, fake.calls[0])
}

func TestAdapter_SafetyIsCopied(t *testing.T) {
	ss := &SafeSearch{Adult: LikelihoodLikely}
	a := NewAdapter(&fakeAnnotator{ann: Annotation{SafeSearch: ss}})

	sig, err := a.Analyze(context.Background(), []byte("img"), Features{SafeSearch: true})
	require.NoError(t, err)
	require.NotNil(t, sig.Safety)
	ss.Adult = LikelihoodVeryUnlikely
	assert.Equal(t, LikelihoodLikely, sig.Safety.Adult)
}

func TestAdapter_Errors(t *testing.T) {
	t.Run("upstream error is wrapped", func(t *testing.T) {
		a := NewAdapter(&fakeAnnotator{err: errors.New("connection refused")})
		_, err := a.Analyze(context.Background(), []byte("img"), Features{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExternalService)

		var ese *ExternalServiceError
		require.ErrorAs(t, err, &ese)
		assert.Equal(t, CategoryUnavailable, ese.Category)
		assert.Equal(t, "fake", ese.Service)
	})

	t.Run("already classified error is kept", func(t *testing.T) {
		orig := NewExternalServiceError("fake", "annotate", CategoryQuota, errors.New("429"))
		a := NewAdapter(&fakeAnnotator{err: orig})
		_, err := a.Analyze(context.Background(), []byte("img"), Features{})
		assert.Same(t, orig, err)
	})

	t.Run("empty image", func(t *testing.T) {
		fake := &fakeAnnotator{}
		a := NewAdapter(fake)
		_, err := a.Analyze(context.Background(), nil, Features{})
		var ese *ExternalServiceError
		require.ErrorAs(t, err, &ese)
		assert.Equal(t, CategoryInputUnreadable, ese.Category)
		assert.Empty(t, fake.calls)
	})

	t.Run("expired context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fake := &fakeAnnotator{}
		_, err := NewAdapter(fake).Analyze(ctx, []byte("img"), Features{})
		var ese *ExternalServiceError
		require.ErrorAs(t, err, &ese)
		assert.Equal(t, CategoryTimeout, ese.Category)
		assert.Empty(t, fake.calls)
	})
}

func TestNormalize_ClampsConfidence(t *testing.T) {
	sig := Normalize(Annotation{Text: []TextAnnotation{{Description: "x"}, {Description: "y", Confidence: 3}}})
	assert.Equal(t, 1.0, sig.AggregateConfidence)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	t.Run("ok", func(t *testing.T) {
		p := filepath.Join(dir, "doc.jpg")
		require.NoError(t, os.WriteFile(p, []byte{0xFF, 0xD8}, 0o600))
		b, err := LoadImage(p)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xD8}, b)
	})

	for name, p := range map[string]string{
		"missing": filepath.Join(dir, "nope.jpg"),
		"blank":   "  ",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadImage(p)
			var ese *ExternalServiceError
			require.ErrorAs(t, err, &ese)
			assert.Equal(t, CategoryInputUnreadable, ese.Category)
		})
	}

	t.Run("empty file", func(t *testing.T) {
		p := filepath.Join(dir, "empty.jpg")
		require.NoError(t, os.WriteFile(p, nil, 0o600))
		_, err := LoadImage(p)
		assert.ErrorIs(t, err, ErrExternalService)
	})
}

func TestParseLikelihood(t *testing.T) {
	assert.Equal(t, LikelihoodVeryLikely, ParseLikelihood("VERY_LIKELY"))
	assert.Equal(t, LikelihoodUnknown, ParseLikelihood("very_likely"))
	assert.Equal(t, LikelihoodUnknown, ParseLikelihood(""))
}
