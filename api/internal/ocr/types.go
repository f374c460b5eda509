package ocr

// Likelihood is the safe-search verdict for one category.
type Likelihood string

const (
	LikelihoodUnknown      Likelihood = "UNKNOWN"
	LikelihoodVeryUnlikely Likelihood = "VERY_UNLIKELY"
	LikelihoodUnlikely     Likelihood = "UNLIKELY"
	LikelihoodPossible     Likelihood = "POSSIBLE"
	LikelihoodLikely       Likelihood = "LIKELY"
	LikelihoodVeryLikely   Likelihood = "VERY_LIKELY"
)

// ParseLikelihood maps a wire value onto the closed set; anything unexpected is UNKNOWN.
func ParseLikelihood(s string) Likelihood {
	switch l := Likelihood(s); l {
	case LikelihoodVeryUnlikely, LikelihoodUnlikely, LikelihoodPossible, LikelihoodLikely, LikelihoodVeryLikely:
		return l
	default:
		return LikelihoodUnknown
	}
}

type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// BoundingBox is the polygon around a token, in image pixels.
type BoundingBox struct {
	Vertices []Point `json:"vertices"`
}

type Token struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type Object struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type SafeSearch struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
	Medical  Likelihood `json:"medical"`
	Spoofed  Likelihood `json:"spoofed"`
}

// DocumentSignal is the normalized evidence extracted from one image.
// It belongs to the request that produced it and is never shared or cached.
type DocumentSignal struct {
	RawText             string      `json:"raw_text"`
	Tokens              []Token     `json:"tokens"`
	AggregateConfidence float64     `json:"aggregate_confidence"`
	Labels              []Label     `json:"labels"`
	Objects             []Object    `json:"objects,omitempty"`
	Safety              *SafeSearch `json:"safety,omitempty"`
	MimeType            string      `json:"mime_type,omitempty"`
}

// LabelDescriptions returns label texts in the order the collaborator ranked them.
func (s DocumentSignal) LabelDescriptions() []string {
	out := make([]string, 0, len(s.Labels))
	for _, l := range s.Labels {
		out = append(out, l.Description)
	}
	return out
}

// Features selects what Analyze asks the collaborator for.
// The zero value requests text and labels.
type Features struct {
	SkipText      bool
	SkipLabels    bool
	DetectObjects bool
	SafeSearch    bool
}

// TextAnnotation is one raw text entry as returned upstream.
// Entry 0 is the full text, the rest are individual tokens.
type TextAnnotation struct {
	Description string
	Confidence  float64
	BoundingBox BoundingBox
}

// Annotation is the raw collaborator response, before normalization.
type Annotation struct {
	Text       []TextAnnotation
	Labels     []Label
	Objects    []Object
	SafeSearch *SafeSearch
}
