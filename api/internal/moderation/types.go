package moderation

import (
	"context"
	"strings"
	"time"
)

// Prompt is one system directive plus one user message.
type Prompt struct {
	System string
	User   string
	// JSON asks the model for a structured application/json completion.
	JSON bool
}

// Completer is the text-completion collaborator boundary.
type Completer interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ModerationVerdict: Confidence is always within [0,1].
type ModerationVerdict struct {
	IsAppropriate bool    `json:"is_appropriate"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason,omitempty"`
}

// ReasonServiceUnavailable marks a fail-open moderation verdict.
const ReasonServiceUnavailable = "service unavailable"

// FailOpenVerdict is returned when moderation cannot be completed.
// It must not be read as a confident approval.
func FailOpenVerdict() ModerationVerdict {
	return ModerationVerdict{IsAppropriate: true, Confidence: 0.5, Reason: ReasonServiceUnavailable}
}

func (v ModerationVerdict) Degraded() bool { return v == FailOpenVerdict() }

// Action is the closed set of mediation outcomes.
type Action string

const (
	ActionNone     Action = "none"
	ActionWarning  Action = "warning"
	ActionSuspend  Action = "suspend"
	ActionRefund   Action = "refund"
	ActionEscalate Action = "escalate"
)

// ParseAction maps an untrusted value onto the closed set. Anything unrecognized escalates.
func ParseAction(v any) Action {
	s, ok := v.(string)
	if !ok {
		return ActionEscalate
	}
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionNone, ActionWarning, ActionSuspend, ActionRefund, ActionEscalate:
		return a
	default:
		return ActionEscalate
	}
}

type MediationVerdict struct {
	ResponseText string `json:"response_text"`
	Action       Action `json:"action"`
}

const mediationUnavailableText = "Sorry, the assistant cannot review this conversation right now. " +
	"An admin has been notified and will follow up with both of you shortly."

// FallbackMediation is the neutral reply used when mediation cannot be completed.
func FallbackMediation() MediationVerdict {
	return MediationVerdict{ResponseText: mediationUnavailableText, Action: ActionNone}
}

func (v MediationVerdict) Degraded() bool { return v == FallbackMediation() }

// ChatMessage is one message of a buyer/seller conversation.
type ChatMessage struct {
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at,omitempty"`
}

// Chat identifies the transaction a conversation belongs to.
type Chat struct {
	ID                string `json:"id"`
	BuyerID           string `json:"buyer_id"`
	SellerID          string `json:"seller_id"`
	ProductTitle      string `json:"product_title,omitempty"`
	TransactionStatus string `json:"transaction_status,omitempty"`
}

const (
	RoleBuyer       = "buyer"
	RoleSeller      = "seller"
	RoleParticipant = "participant"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildTranscript renders history in order, deriving each role from the chat's parties.
// Blank messages are dropped.
func BuildTranscript(history []ChatMessage, chat Chat) []Turn {
	out := make([]Turn, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := RoleParticipant
		switch m.SenderID {
		case "":
		case chat.BuyerID:
			role = RoleBuyer
		case chat.SellerID:
			role = RoleSeller
		}
		out = append(out, Turn{Role: role, Content: content})
	}
	return out
}
