package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/validation"
	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/models"
	"github.com/lexcora/rased/internal/services"
)

type ChatHandler struct {
	assistant *services.Assistant
	maxBody   int64
	stream    streamer
}

func NewChatHandler(assistant *services.Assistant, maxBody int64, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{assistant: assistant, maxBody: maxBody, stream: streamer{metrics: m}}
}

// Chat continues a conversation from the history the client sends. Nothing
// about the conversation outlives the request.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if errs := decodeBody(w, r, h.maxBody, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	req.normalize()
	if errs := validation.Struct(req); errs != nil {
		writeValidation(w, errs)
		return
	}
	lang := models.ParseLang(req.Lang)
	history := req.turns()

	if !wantsStream(r) {
		session := services.NewChatSession(h.assistant, lang, history)
		resp := session.SendMessage(r.Context(), req.Message)
		log.Debug().Str("session_id", session.ID()).Int("turns", len(session.History())).Msg("chat turn served")
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	ts, err := h.assistant.StreamChat(r.Context(), req.Message, lang, history)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		h.stream.notice(w, services.ConfigurationMissingText)
	case err != nil:
		h.stream.fail(w)
	default:
		h.stream.pipe(w, r, "chat", ts, true)
	}
}
