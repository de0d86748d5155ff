package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrStreamTruncated means the stream ended before a done or error line.
var ErrStreamTruncated = errors.New("chat stream ended without a terminal line")

// ChatSession mirrors the conversation history on the client side and sends
// it with every message. It is not safe for concurrent use.
type ChatSession struct {
	client  *Client
	lang    Lang
	history []ChatMessage
}

func (c *Client) NewChatSession(lang Lang, history []ChatMessage) *ChatSession {
	h := make([]ChatMessage, len(history))
	copy(h, history)
	return &ChatSession{client: c, lang: lang, history: h}
}

func (s *ChatSession) History() []ChatMessage {
	out := make([]ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *ChatSession) body(message string) map[string]any {
	return map[string]any{"message": message, "lang": s.lang, "history": s.history}
}

// record appends a successful exchange. Empty replies add only the user turn.
func (s *ChatSession) record(message, reply string) {
	s.history = append(s.history, ChatMessage{Role: "user", Text: message})
	if reply != "" {
		s.history = append(s.history, ChatMessage{Role: "model", Text: reply})
	}
}

// SendMessage posts message with the mirrored history. On failure the
// history is left unchanged and a fixed text is returned.
func (s *ChatSession) SendMessage(ctx context.Context, message string) Response {
	var out Response
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetBody(s.body(message)).
		SetResult(&out).
		Post("/api/chat")
	if err := failure(resp, err); err != nil {
		log.Error().Err(err).Msg("chat call failed")
		return Response{Text: ChatErrorText, Sources: []Source{}}
	}

	s.record(message, out.Text)
	if out.Sources == nil {
		out.Sources = []Source{}
	}
	return out
}

type streamLine struct {
	Text    string   `json:"text"`
	Done    bool     `json:"done"`
	Sources []Source `json:"sources"`
	Error   string   `json:"error"`
}

// SendMessageStream requests an NDJSON reply and calls onToken for every
// text increment. The aggregated reply is recorded in the history once the
// done line arrives.
func (s *ChatSession) SendMessageStream(ctx context.Context, message string, onToken func(string)) (Response, error) {
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "application/x-ndjson").
		SetBody(s.body(message)).
		Post("/api/chat")
	if err != nil {
		return Response{}, fmt.Errorf("chat stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return Response{}, fmt.Errorf("chat stream: status %d", resp.StatusCode())
	}

	var text []byte
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var line streamLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return Response{}, fmt.Errorf("chat stream: decode line: %w", err)
		}

		switch {
		case line.Error != "":
			return Response{}, fmt.Errorf("chat stream: %s", line.Error)
		case line.Done:
			out := Response{Text: string(text), Sources: line.Sources}
			if out.Sources == nil {
				out.Sources = []Source{}
			}
			s.record(message, out.Text)
			return out, nil
		case line.Text != "":
			text = append(text, line.Text...)
			if onToken != nil {
				onToken(line.Text)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Response{}, fmt.Errorf("chat stream: %w", err)
	}
	return Response{}, ErrStreamTruncated
}
