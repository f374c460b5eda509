package handle

import (
	"net/http"
	"strings"

	"trust-engine/api/internal/moderation"
)

type moderateReq struct {
	Text string `json:"text"`
}

type moderateResp struct {
	moderation.ModerationVerdict
	Degraded bool `json:"degraded"`
}

// Moderate: POST /v1/moderation. Always 200 once the body parses.
func (h *Handle) Moderate(w http.ResponseWriter, r *http.Request) {
	var req moderateReq
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	v := h.eng.ModerateContent(ctx, req.Text)
	writeJSON(w, http.StatusOK, moderateResp{ModerationVerdict: v, Degraded: v.Degraded()})
}

type mediateReq struct {
	Chat    moderation.Chat          `json:"chat"`
	History []moderation.ChatMessage `json:"history"`
}

type mediateResp struct {
	moderation.MediationVerdict
	Degraded bool `json:"degraded"`
}

// Mediate: POST /v1/mediation
func (h *Handle) Mediate(w http.ResponseWriter, r *http.Request) {
	var req mediateReq
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	v := h.eng.ProcessAdminMention(ctx, req.History, req.Chat)
	writeJSON(w, http.StatusOK, mediateResp{MediationVerdict: v, Degraded: v.Degraded()})
}

type describeReq struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Details  string `json:"details"`
}

// Describe: POST /v1/descriptions
func (h *Handle) Describe(w http.ResponseWriter, r *http.Request) {
	var req describeReq
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]string{
		"description": h.eng.GenerateProductDescription(ctx, req.Title, req.Category, req.Details),
	})
}
