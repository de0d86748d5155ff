package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/models"
)

const (
	ChatInitFailedText    = "Chat initialization failed."
	ChatProtocolErrorText = "Protocol error in chat session."
)

// Conversation produces the next model turn for a history.
type Conversation interface {
	Converse(ctx context.Context, lang models.Lang, history []models.ChatTurn, message string) (models.AssistantResponse, error)
}

// ChatSession is one conversation rebuilt from the history a client sends.
// It lives for a single request and is not safe for concurrent use.
type ChatSession struct {
	id      string
	lang    models.Lang
	history []models.ChatTurn
	conv    Conversation
}

func NewChatSession(conv Conversation, lang models.Lang, history []models.ChatTurn) *ChatSession {
	h := make([]models.ChatTurn, len(history))
	copy(h, history)
	return &ChatSession{id: uuid.NewString(), lang: lang, history: h, conv: conv}
}

// SendMessage returns the model reply. History grows by a user turn and a
// model turn only when the upstream call succeeds.
func (s *ChatSession) SendMessage(ctx context.Context, message string) models.AssistantResponse {
	resp, err := s.conv.Converse(ctx, s.lang, s.history, message)
	if err != nil {
		text := ChatProtocolErrorText
		if errors.Is(err, ErrNotConfigured) {
			text = ChatInitFailedText
		}
		log.Warn().Err(err).Str("session_id", s.id).Int("turns", len(s.history)).Msg("chat turn failed")
		return models.AssistantResponse{Text: text, Sources: []models.Source{}}
	}

	if resp.Sources == nil {
		resp.Sources = []models.Source{}
	}
	s.history = append(s.history,
		models.ChatTurn{Role: models.RoleUser, Text: message},
		models.ChatTurn{Role: models.RoleModel, Text: resp.Text, Sources: resp.Sources},
	)
	return resp
}

func (s *ChatSession) ID() string { return s.id }

func (s *ChatSession) Lang() models.Lang { return s.lang }

// History returns a copy of the turns so far.
func (s *ChatSession) History() []models.ChatTurn {
	out := make([]models.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}
