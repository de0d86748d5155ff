// Package client calls the Rased gateway routes from Go programs. It never
// holds the upstream model credential; requests are authenticated with a
// gateway API key only.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	AssistantUnavailableText = "Assistant service unavailable."
	AnalysisUnavailableText  = "The document analysis service is temporarily unavailable."
	ChatErrorText            = "Chat service error."
)

type Lang string

const (
	LangEN Lang = "en"
	LangAR Lang = "ar"
)

type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type Response struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// ChatMessage is one turn of the history mirrored by a ChatSession.
type ChatMessage struct {
	Role    string   `json:"role"`
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// Document is an attachment for Analyze.
type Document struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
}

type Client struct {
	http *resty.Client
}

// New returns a client for the gateway at baseURL. apiKey may be empty for
// local setups where the gateway accepts no key.
func New(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(3 * time.Minute)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{http: c}
}

// Assistant asks one question. Any failure is reported as a fixed text.
func (c *Client) Assistant(ctx context.Context, query string, lang Lang) Response {
	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"query": query, "lang": lang}).
		SetResult(&out).
		Post("/api/assistant")
	if err := failure(resp, err); err != nil {
		log.Error().Err(err).Msg("assistant call failed")
		return Response{Text: AssistantUnavailableText, Sources: []Source{}}
	}
	if out.Sources == nil {
		out.Sources = []Source{}
	}
	return out
}

// Analyze returns the analysis of text and/or doc.
func (c *Client) Analyze(ctx context.Context, text string, lang Lang, doc *Document) string {
	body := map[string]any{"text": text, "lang": lang}
	if doc != nil {
		body["document"] = doc
	}

	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/api/analyze")
	if err := failure(resp, err); err != nil {
		log.Error().Err(err).Msg("analyze call failed")
		return AnalysisUnavailableText
	}
	if out.Text == "" {
		return AnalysisUnavailableText
	}
	return out.Text
}

// failure folds transport errors and non-2xx statuses into one error.
func failure(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
