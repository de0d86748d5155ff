package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/lexcora/rased/internal/core"
)

// GeminiLLM streams completions through the Gemini Go SDK. The SDK exposes
// no search tool, so responses from this transport carry no grounding.
type GeminiLLM struct {
	client  *genai.Client
	timeout time.Duration
}

func NewGeminiLLM(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiLLM{client: cl, timeout: timeout}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) StreamGenerate(ctx context.Context, req *core.CompletionRequest) (core.CompletionStream, error) {
	if req == nil || len(req.Contents) == 0 {
		return nil, ErrEmptyRequest
	}

	m := g.client.GenerativeModel(req.Model)
	m.SetTemperature(req.Temperature)
	if req.SystemInstruction != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}
	if req.GoogleSearch {
		log.Debug().Str("model", req.Model).Msg("sdk transport has no search tool; answering without grounding")
	}

	streamCtx, cancel := withTimeout(ctx, g.timeout)

	last := len(req.Contents) - 1
	cs := m.StartChat()
	cs.History = toGenaiContents(req.Contents[:last])
	it := cs.SendMessageStream(streamCtx, toGenaiParts(req.Contents[last].Parts)...)

	return &sdkStream{it: it, cancel: cancel}, nil
}

type sdkStream struct {
	it     *genai.GenerateContentResponseIterator
	cancel context.CancelFunc
}

func (s *sdkStream) Recv() (any, error) {
	resp, err := s.it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("gemini stream: %w", err)
	}
	return resp, nil
}

func (s *sdkStream) Final() (any, error) {
	merged := s.it.MergedResponse()
	if merged == nil {
		return nil, nil
	}
	return merged, nil
}

func (s *sdkStream) Close() error {
	s.cancel()
	return nil
}

func toGenaiContents(contents []core.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		out = append(out, &genai.Content{Role: c.Role, Parts: toGenaiParts(c.Parts)})
	}
	return out
}

func toGenaiParts(parts []core.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Blob != nil {
			out = append(out, genai.Blob{MIMEType: p.Blob.MIMEType, Data: p.Blob.Data})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
