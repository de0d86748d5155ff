package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lexcora/rased/internal/core"
)

const streamPath = "/v1beta/models/{model}:streamGenerateContent"

// GeminiREST streams completions from the Gemini REST API over SSE. Unlike
// the SDK transport it can enable the google_search tool, so final
// responses carry grounding metadata.
type GeminiREST struct {
	http    *resty.Client
	timeout time.Duration
}

func NewGeminiREST(baseURL, apiKey string, timeout time.Duration) (*GeminiREST, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("x-goog-api-key", apiKey).
		SetHeader("Content-Type", "application/json")
	return &GeminiREST{http: c, timeout: timeout}, nil
}

type restBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type restPart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *restBlob `json:"inlineData,omitempty"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type restGenerationConfig struct {
	Temperature float32 `json:"temperature"`
}

type restRequest struct {
	SystemInstruction *restContent         `json:"systemInstruction,omitempty"`
	Contents          []restContent        `json:"contents"`
	Tools             []map[string]any     `json:"tools,omitempty"`
	GenerationConfig  restGenerationConfig `json:"generationConfig"`
}

func newRestRequest(req *core.CompletionRequest) restRequest {
	body := restRequest{
		Contents:         make([]restContent, 0, len(req.Contents)),
		GenerationConfig: restGenerationConfig{Temperature: req.Temperature},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &restContent{Parts: []restPart{{Text: req.SystemInstruction}}}
	}
	for _, c := range req.Contents {
		rc := restContent{Role: c.Role, Parts: make([]restPart, 0, len(c.Parts))}
		for _, p := range c.Parts {
			if p.Blob != nil {
				rc.Parts = append(rc.Parts, restPart{InlineData: &restBlob{
					MimeType: p.Blob.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(p.Blob.Data),
				}})
				continue
			}
			rc.Parts = append(rc.Parts, restPart{Text: p.Text})
		}
		body.Contents = append(body.Contents, rc)
	}
	if req.GoogleSearch {
		body.Tools = []map[string]any{{"google_search": map[string]any{}}}
	}
	return body
}

func (g *GeminiREST) StreamGenerate(ctx context.Context, req *core.CompletionRequest) (core.CompletionStream, error) {
	if req == nil || len(req.Contents) == 0 {
		return nil, ErrEmptyRequest
	}

	streamCtx, cancel := withTimeout(ctx, g.timeout)

	resp, err := g.http.R().
		SetContext(streamCtx).
		SetDoNotParseResponse(true).
		SetPathParam("model", req.Model).
		SetQueryParam("alt", "sse").
		SetHeader("Accept", "text/event-stream").
		SetBody(newRestRequest(req)).
		Post(streamPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gemini rest: %w", err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		snippet, _ := io.ReadAll(io.LimitReader(body, 2048))
		_ = body.Close()
		cancel()
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: string(bytes.TrimSpace(snippet))}
	}

	return &sseStream{body: body, r: bufio.NewReader(body), cancel: cancel}, nil
}

// sseStream decodes "data:" events into generic JSON values.
type sseStream struct {
	body   io.ReadCloser
	r      *bufio.Reader
	cancel context.CancelFunc

	last     any
	grounded any
}

func (s *sseStream) Recv() (any, error) {
	for {
		payload, err := s.nextEvent()
		if err != nil {
			return nil, err
		}
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("gemini rest: decode event: %w", err)
		}
		if apiErr := field(chunk, "error"); apiErr != nil {
			msg, _ := field(apiErr, "message").(string)
			code, _ := field(apiErr, "code").(float64)
			return nil, &UpstreamError{Status: int(code), Body: msg}
		}

		s.last = chunk
		if field(firstCandidateOf(chunk), "groundingMetadata") != nil {
			s.grounded = chunk
		}
		return chunk, nil
	}
}

// nextEvent returns the joined data lines of the next SSE event.
func (s *sseStream) nextEvent() (string, error) {
	var data []string
	for {
		line, err := s.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("gemini rest: read stream: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if eof {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			return "", io.EOF
		}
	}
}

// Final returns the chunk that carried grounding metadata, or the last one.
func (s *sseStream) Final() (any, error) {
	if s.grounded != nil {
		return s.grounded, nil
	}
	return s.last, nil
}

func (s *sseStream) Close() error {
	err := s.body.Close()
	s.cancel()
	return err
}

func firstCandidateOf(chunk any) any {
	m, ok := chunk.(map[string]any)
	if !ok {
		return nil
	}
	return firstCandidate(m)
}

var _ core.LLMProvider = (*GeminiREST)(nil)
