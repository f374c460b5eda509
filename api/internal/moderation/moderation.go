// Package moderation wraps the text-completion collaborator used for content
// moderation, dispute mediation and product descriptions.
//
// None of the operations return an error. When the collaborator fails, times
// out or answers with something that does not validate, a documented neutral
// default is returned instead and a warning is logged.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trust-engine/api/internal/util"
)

const (
	moderationDirective = `You are the content moderator of a peer-to-peer marketplace.
Decide whether the user's message is appropriate for a public listing or a buyer/seller chat.
Inappropriate: harassment, hate, sexual content, threats, scams, requests to pay outside the platform, sharing of other people's personal data.
Return STRICT JSON only, no prose:
{"isAppropriate": boolean, "confidence": number between 0 and 1, "reason": string}`

	mediationDirective = `You are the dispute mediator of a peer-to-peer marketplace.
An admin was mentioned in a buyer/seller chat. Read the transcript and the transaction context,
reply to both parties politely and neutrally, and pick exactly one action:
none | warning | suspend | refund | escalate.
Use "escalate" when you are unsure. Never promise money that the platform has not approved.
Return STRICT JSON only:
{"response": string, "action": "none"|"warning"|"suspend"|"refund"|"escalate"}`

	descriptionDirective = `You write product descriptions for a peer-to-peer marketplace.
Write 2-4 short, honest sentences in plain text. No markdown, no prices, no contact details, no claims that are not in the input.`

	maxDescriptionRunes = 1200
)

type Adapter struct {
	c   Completer
	log *zap.Logger
}

func New(c Completer, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{c: c, log: log.With(zap.String("completer", c.Name()))}
}

// Moderate classifies one piece of content. Fails open.
func (a *Adapter) Moderate(ctx context.Context, content string) ModerationVerdict {
	if strings.TrimSpace(content) == "" {
		return ModerationVerdict{IsAppropriate: true, Confidence: 1, Reason: "empty content"}
	}

	raw, err := a.c.Complete(ctx, Prompt{System: moderationDirective, User: content, JSON: true})
	if err != nil {
		a.degraded("moderate", err)
		return FailOpenVerdict()
	}
	v, err := parseModeration(raw)
	if err != nil {
		a.degraded("moderate", err)
		return FailOpenVerdict()
	}
	return v
}

// Mediate proposes a reply and an action for a disputed conversation.
func (a *Adapter) Mediate(ctx context.Context, transcript []Turn, chat Chat) MediationVerdict {
	user, err := json.Marshal(map[string]any{
		"chat":       chat,
		"transcript": transcript,
	})
	if err != nil {
		a.degraded("mediate", err)
		return FallbackMediation()
	}

	raw, err := a.c.Complete(ctx, Prompt{System: mediationDirective, User: "INPUT_JSON:\n" + string(user), JSON: true})
	if err != nil {
		a.degraded("mediate", err)
		return FallbackMediation()
	}
	v, err := parseMediation(raw)
	if err != nil {
		a.degraded("mediate", err)
		return FallbackMediation()
	}
	return v
}

// Describe generates a listing description; details may be empty.
func (a *Adapter) Describe(ctx context.Context, title, category, details string) string {
	var user strings.Builder
	fmt.Fprintf(&user, "Title: %s\nCategory: %s\n", strings.TrimSpace(title), strings.TrimSpace(category))
	if d := strings.TrimSpace(details); d != "" {
		fmt.Fprintf(&user, "Details: %s\n", d)
	}

	raw, err := a.c.Complete(ctx, Prompt{System: descriptionDirective, User: user.String()})
	if err != nil {
		a.degraded("describe", err)
		return FallbackDescription(title, category, details)
	}
	out := strings.TrimSpace(util.StripCodeFences(raw))
	if out == "" {
		a.degraded("describe", errors.New("empty completion"))
		return FallbackDescription(title, category, details)
	}
	return util.Truncate(out, maxDescriptionRunes)
}

// FallbackDescription is the templated description used when generation fails.
func FallbackDescription(title, category, details string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "This item"
	}
	var b strings.Builder
	b.WriteString(title)
	if c := strings.TrimSpace(category); c != "" {
		fmt.Fprintf(&b, " is listed in %s.", c)
	} else {
		b.WriteString(" is available.")
	}
	if d := strings.TrimSpace(details); d != "" {
		b.WriteString(" " + d)
		if !strings.HasSuffix(d, ".") {
			b.WriteString(".")
		}
	}
	b.WriteString(" Contact the seller for more details.")
	return b.String()
}

func (a *Adapter) degraded(op string, err error) {
	a.log.Warn("completion degraded, using default",
		zap.String("op", op),
		zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		zap.Error(err),
	)
}
