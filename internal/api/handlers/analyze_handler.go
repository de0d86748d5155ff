package handlers

import (
	"errors"
	"net/http"

	"github.com/lexcora/rased/internal/api/validation"
	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/models"
	"github.com/lexcora/rased/internal/services"
)

type AnalyzeHandler struct {
	assistant *services.Assistant
	maxBody   int64
	stream    streamer
}

func NewAnalyzeHandler(assistant *services.Assistant, maxBody int64, m *metrics.Metrics) *AnalyzeHandler {
	return &AnalyzeHandler{assistant: assistant, maxBody: maxBody, stream: streamer{metrics: m}}
}

// Analyze reviews pasted text and/or one attached document. The document is
// forwarded upstream for this call only.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if errs := decodeBody(w, r, h.maxBody, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	req.normalize()
	if errs := validation.Struct(req); errs != nil {
		writeValidation(w, errs)
		return
	}

	doc := req.inlineDocument()
	if req.Text == "" && doc == nil {
		writeValidation(w, []validation.FieldError{{Field: "text", Message: services.NothingToAnalyzeText}})
		return
	}
	lang := models.ParseLang(req.Lang)

	if !wantsStream(r) {
		text := h.assistant.Analyze(r.Context(), req.Text, lang, doc)
		WriteJSON(w, http.StatusOK, models.AnalysisResponse{Text: text})
		return
	}

	ts, err := h.assistant.StreamAnalyze(r.Context(), req.Text, lang, doc)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		h.stream.notice(w, services.ConfigurationMissingText)
	case err != nil:
		h.stream.fail(w)
	default:
		h.stream.pipe(w, r, "analyze", ts, false)
	}
}
