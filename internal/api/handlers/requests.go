package handlers

import (
	"strings"

	"github.com/lexcora/rased/internal/models"
)

type AssistantRequest struct {
	Query string `json:"query" validate:"required,min=1,max=2000"`
	Lang  string `json:"lang" validate:"omitempty,oneof=en ar"`
}

func (r *AssistantRequest) normalize() {
	r.Query = strings.TrimSpace(r.Query)
}

type DocumentPayload struct {
	Data     string `json:"data" validate:"omitempty,base64"`
	MimeType string `json:"mimeType" validate:"omitempty,max=255"`
	Name     string `json:"name" validate:"omitempty,max=255"`
}

type AnalyzeRequest struct {
	Text     string           `json:"text" validate:"omitempty,max=5000"`
	Lang     string           `json:"lang" validate:"omitempty,oneof=en ar"`
	Document *DocumentPayload `json:"document"`
}

func (r *AnalyzeRequest) normalize() {
	r.Text = strings.TrimSpace(r.Text)
}

// inlineDocument returns the attachment when it has both data and a MIME type.
func (r *AnalyzeRequest) inlineDocument() *models.InlineDocument {
	if r.Document == nil {
		return nil
	}
	doc := &models.InlineDocument{Data: r.Document.Data, MimeType: r.Document.MimeType, Name: r.Document.Name}
	if !doc.Usable() {
		return nil
	}
	return doc
}

type HistoryTurn struct {
	Role string `json:"role" validate:"omitempty,oneof=user model"`
	Text string `json:"text" validate:"omitempty,min=1,max=2000"`
}

type ChatRequest struct {
	Message string        `json:"message" validate:"required,min=1,max=3000"`
	Lang    string        `json:"lang" validate:"omitempty,oneof=en ar"`
	History []HistoryTurn `json:"history" validate:"omitempty,max=50,dive"`
}

func (r *ChatRequest) normalize() {
	r.Message = strings.TrimSpace(r.Message)
}

// turns drops history entries without a role or text.
func (r *ChatRequest) turns() []models.ChatTurn {
	out := make([]models.ChatTurn, 0, len(r.History))
	for _, h := range r.History {
		if h.Role == "" || h.Text == "" {
			continue
		}
		out = append(out, models.ChatTurn{Role: models.Role(h.Role), Text: h.Text})
	}
	return out
}
