package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeCompleter returns a canned reply and remembers the prompts it saw.
type fakeCompleter struct {
	reply   string
	err     error
	block   bool
	prompts []Prompt
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newAdapter(t *testing.T, f *fakeCompleter) *Adapter {
	return New(f, zaptest.NewLogger(t))
}

func TestModerate_ParsesVerdict(t *testing.T) {
	f := &fakeCompleter{reply: "```json\n{\"isAppropriate\": false, \"confidence\": 0.83, \"reason\": \" asks to pay outside the platform \"}\n```"}

	got := newAdapter(t, f).Moderate(context.Background(), "transfer me directly, skip the escrow")

	assert.Equal(t, ModerationVerdict{IsAppropriate: false, Confidence: 0.83, Reason: "asks to pay outside the platform"}, got)
	assert.False(t, got.Degraded())
	require.Len(t, f.prompts, 1)
	assert.True(t, f.prompts[0].JSON)
	assert.Equal(t, "transfer me directly, skip the escrow", f.prompts[0].User)
	assert.Contains(t, f.prompts[0].System, "isAppropriate")
}

func TestModerate_ConfidenceIsClamped(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"above one", `{"isAppropriate": true, "confidence": 1.4}`, 1},
		{"negative", `{"isAppropriate": true, "confidence": -3}`, 0},
		{"in range", `{"isAppropriate": true, "confidence": 0.25, "reason": null}`, 0.25},
		{"huge", `{"isAppropriate": false, "confidence": 1e300}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newAdapter(t, &fakeCompleter{reply: tt.reply}).Moderate(context.Background(), "hello")
			assert.Equal(t, tt.want, got.Confidence)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestModerate_FailsOpen(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeCompleter
	}{
		{"upstream error", &fakeCompleter{err: errors.New("503 unavailable")}},
		{"not json", &fakeCompleter{reply: "I think this message is fine."}},
		{"confidence not numeric", &fakeCompleter{reply: `{"isAppropriate": true, "confidence": "high"}`}},
		{"missing verdict", &fakeCompleter{reply: `{"confidence": 0.9}`}},
		{"array", &fakeCompleter{reply: `[true, 0.9]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newAdapter(t, tt.f).Moderate(context.Background(), "hello")
			assert.Equal(t, FailOpenVerdict(), got)
			assert.True(t, got.Degraded())
		})
	}
}

func TestModerate_TimeoutReturnsFailOpenDefault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := newAdapter(t, &fakeCompleter{block: true}).Moderate(ctx, "hello")

	assert.Equal(t, ModerationVerdict{IsAppropriate: true, Confidence: 0.5, Reason: "service unavailable"}, got)
}

func TestModerate_EmptyContentSkipsUpstream(t *testing.T) {
	f := &fakeCompleter{err: errors.New("must not be called")}
	got := newAdapter(t, f).Moderate(context.Background(), "   ")
	assert.True(t, got.IsAppropriate)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Empty(t, f.prompts)
}

func TestMediate(t *testing.T) {
	chat := Chat{ID: "c1", BuyerID: "b", SellerID: "s", ProductTitle: "Kamera"}
	transcript := []Turn{{Role: RoleBuyer, Content: "item never arrived"}}

	tests := []struct {
		name  string
		reply string
		want  MediationVerdict
	}{
		{"known action", `{"response": "Refund approved.", "action": "refund"}`, MediationVerdict{ResponseText: "Refund approved.", Action: ActionRefund}},
		{"case and spaces", `{"response": "Please stay civil.", "action": " Warning "}`, MediationVerdict{ResponseText: "Please stay civil.", Action: ActionWarning}},
		{"unknown action escalates", `{"response": "Closing the account.", "action": "delete_account"}`, MediationVerdict{ResponseText: "Closing the account.", Action: ActionEscalate}},
		{"missing action escalates", `{"response": "Hmm."}`, MediationVerdict{ResponseText: "Hmm.", Action: ActionEscalate}},
		{"non-string action escalates", `{"response": "Hmm.", "action": 3}`, MediationVerdict{ResponseText: "Hmm.", Action: ActionEscalate}},
		{"blank text keeps action", `{"response": "  ", "action": "suspend"}`, MediationVerdict{ResponseText: mediationUnavailableText, Action: ActionSuspend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeCompleter{reply: tt.reply}
			got := newAdapter(t, f).Mediate(context.Background(), transcript, chat)
			assert.Equal(t, tt.want, got)

			require.Len(t, f.prompts, 1)
			payload := strings.TrimPrefix(f.prompts[0].User, "INPUT_JSON:\n")
			var in struct {
				Chat       Chat   `json:"chat"`
				Transcript []Turn `json:"transcript"`
			}
			require.NoError(t, json.Unmarshal([]byte(payload), &in))
			assert.Equal(t, chat, in.Chat)
			assert.Equal(t, transcript, in.Transcript)
		})
	}
}

func TestMediate_FailsSoft(t *testing.T) {
	for name, f := range map[string]*fakeCompleter{
		"upstream error":   {err: errors.New("quota")},
		"garbage":          {reply: "{not json"},
		"missing response": {reply: `{"action": "refund"}`},
	} {
		t.Run(name, func(t *testing.T) {
			got := newAdapter(t, f).Mediate(context.Background(), nil, Chat{})
			assert.Equal(t, FallbackMediation(), got)
			assert.Equal(t, ActionNone, got.Action)
			assert.True(t, got.Degraded())
		})
	}
}

func TestDescribe(t *testing.T) {
	f := &fakeCompleter{reply: "  A lightly used mirrorless camera with two lenses.  "}
	got := newAdapter(t, f).Describe(context.Background(), "Sony A6000", "Electronics", "two lenses")

	assert.Equal(t, "A lightly used mirrorless camera with two lenses.", got)
	require.Len(t, f.prompts, 1)
	assert.False(t, f.prompts[0].JSON)
	assert.Contains(t, f.prompts[0].User, "Title: Sony A6000")
	assert.Contains(t, f.prompts[0].User, "Details: two lenses")
}

func TestDescribe_FailsSoft(t *testing.T) {
	want := "Sony A6000 is listed in Electronics. two lenses. Contact the seller for more details."

	got := newAdapter(t, &fakeCompleter{err: errors.New("down")}).Describe(context.Background(), "Sony A6000", "Electronics", "two lenses")
	assert.Equal(t, want, got)

	got = newAdapter(t, &fakeCompleter{reply: "   "}).Describe(context.Background(), "Sony A6000", "Electronics", "two lenses")
	assert.Equal(t, want, got)
}

func TestFallbackDescription(t *testing.T) {
	assert.Equal(t, "This item is available. Contact the seller for more details.", FallbackDescription("", "", ""))
	assert.Equal(t, "Sepeda is listed in Sport. Contact the seller for more details.", FallbackDescription("Sepeda", "Sport", " "))
}

func TestBuildTranscript(t *testing.T) {
	chat := Chat{BuyerID: "buyer-1", SellerID: "seller-9"}
	history := []ChatMessage{
		{SenderID: "buyer-1", Content: "where is my package?"},
		{SenderID: "seller-9", Content: " shipped yesterday "},
		{SenderID: "admin-2", Content: "@admin"},
		{SenderID: "buyer-1", Content: "   "},
		{SenderID: "", Content: "system notice"},
	}

	got := BuildTranscript(history, chat)

	assert.Equal(t, []Turn{
		{Role: RoleBuyer, Content: "where is my package?"},
		{Role: RoleSeller, Content: "shipped yesterday"},
		{Role: RoleParticipant, Content: "@admin"},
		{Role: RoleParticipant, Content: "system notice"},
	}, got)
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionNone, ParseAction("none"))
	assert.Equal(t, ActionEscalate, ParseAction("delete_account"))
	assert.Equal(t, ActionEscalate, ParseAction(nil))
	assert.Equal(t, ActionEscalate, ParseAction(true))
}
