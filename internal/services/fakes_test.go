package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/lexcora/rased/internal/core"
)

var errUpstream = errors.New("upstream exploded")

// fakeProvider replays chunks; recvErr, when set, is returned after the
// chunks instead of io.EOF.
type fakeProvider struct {
	mu       sync.Mutex
	chunks   []any
	final    any
	openErr  error
	recvErr  error
	requests []*core.CompletionRequest
}

func (f *fakeProvider) StreamGenerate(_ context.Context, req *core.CompletionRequest) (core.CompletionStream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeStream{chunks: f.chunks, final: f.final, recvErr: f.recvErr}, nil
}

func (f *fakeProvider) lastRequest() *core.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeStream struct {
	chunks  []any
	final   any
	recvErr error
	closed  bool
}

func (s *fakeStream) Recv() (any, error) {
	if len(s.chunks) == 0 {
		if s.recvErr != nil {
			return nil, s.recvErr
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeStream) Final() (any, error) { return s.final, nil }

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e fakeExtractor) Supports(contentType string) bool {
	return contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func (e fakeExtractor) ExtractText(context.Context, []byte, string) (string, error) {
	return e.text, e.err
}

func textChunk(s string) any {
	return map[string]any{"candidates": []any{map[string]any{
		"content": map[string]any{"parts": []any{map[string]any{"text": s}}},
	}}}
}

func groundedFinal(title, uri string) any {
	return map[string]any{"candidates": []any{map[string]any{
		"groundingMetadata": map[string]any{"groundingChunks": []any{
			map[string]any{"web": map[string]any{"title": title, "uri": uri}},
		}},
	}}}
}
