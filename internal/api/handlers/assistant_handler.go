package handlers

import (
	"errors"
	"net/http"

	"github.com/lexcora/rased/internal/api/validation"
	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/models"
	"github.com/lexcora/rased/internal/services"
)

type AssistantHandler struct {
	assistant *services.Assistant
	maxBody   int64
	stream    streamer
}

func NewAssistantHandler(assistant *services.Assistant, maxBody int64, m *metrics.Metrics) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, maxBody: maxBody, stream: streamer{metrics: m}}
}

// Ask answers one legal question, buffered or as an NDJSON stream.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
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

	if !wantsStream(r) {
		WriteJSON(w, http.StatusOK, h.assistant.Respond(r.Context(), req.Query, lang))
		return
	}

	ts, err := h.assistant.StreamRespond(r.Context(), req.Query, lang, nil)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		h.stream.notice(w, services.ConfigurationMissingText)
	case err != nil:
		h.stream.fail(w)
	default:
		h.stream.pipe(w, r, "assistant", ts, true)
	}
}
