package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"trust-engine/api/internal/util"
)

// Model output is untrusted: shapes are checked by schema, ranges and enums by hand.
var (
	moderationSchema = mustSchema(`{
  "type": "object",
  "required": ["isAppropriate", "confidence"],
  "properties": {
    "isAppropriate": {"type": "boolean"},
    "confidence":    {"type": "number"},
    "reason":        {"type": ["string", "null"]}
  }
}`)

	mediationSchema = mustSchema(`{
  "type": "object",
  "required": ["response"],
  "properties": {
    "response": {"type": "string"}
  }
}`)
)

func mustSchema(s string) *gojsonschema.Schema {
	sch, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("moderation: bad schema: %v", err))
	}
	return sch
}

func validate(sch *gojsonschema.Schema, doc []byte) error {
	res, err := sch.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("bad JSON: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("schema: " + strings.Join(msgs, "; "))
}

func parseModeration(raw string) (ModerationVerdict, error) {
	doc := []byte(util.StripCodeFences(raw))
	if err := validate(moderationSchema, doc); err != nil {
		return ModerationVerdict{}, fmt.Errorf("moderation: %w", err)
	}
	var out struct {
		IsAppropriate bool    `json:"isAppropriate"`
		Confidence    float64 `json:"confidence"`
		Reason        *string `json:"reason"`
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return ModerationVerdict{}, fmt.Errorf("moderation: bad JSON: %w", err)
	}
	v := ModerationVerdict{
		IsAppropriate: out.IsAppropriate,
		Confidence:    Clamp01(out.Confidence),
	}
	if out.Reason != nil {
		v.Reason = strings.TrimSpace(*out.Reason)
	}
	return v, nil
}

func parseMediation(raw string) (MediationVerdict, error) {
	doc := []byte(util.StripCodeFences(raw))
	if err := validate(mediationSchema, doc); err != nil {
		return MediationVerdict{}, fmt.Errorf("mediation: %w", err)
	}
	var out struct {
		Response string `json:"response"`
		Action   any    `json:"action"`
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return MediationVerdict{}, fmt.Errorf("mediation: bad JSON: %w", err)
	}
	v := MediationVerdict{
		ResponseText: strings.TrimSpace(out.Response),
		Action:       ParseAction(out.Action),
	}
	// keep the action even when the text is missing
	if v.ResponseText == "" {
		v.ResponseText = mediationUnavailableText
	}
	return v, nil
}

// Clamp01 forces v into [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
