package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcora/rased/internal/core"
)

var errUpstream = errors.New("upstream down")

type fakeProvider struct {
	chunks  []any
	final   any
	openErr error
	recvErr error
	last    *core.CompletionRequest
}

func (f *fakeProvider) StreamGenerate(_ context.Context, req *core.CompletionRequest) (core.CompletionStream, error) {
	f.last = req
	if f.openErr != nil {
		return nil, f.openErr
	}
	chunks := make([]any, len(f.chunks))
	copy(chunks, f.chunks)
	return &fakeStream{chunks: chunks, final: f.final, recvErr: f.recvErr}, nil
}

type fakeStream struct {
	chunks  []any
	final   any
	recvErr error
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

func (s *fakeStream) Close() error { return nil }

func text(s string) any {
	return map[string]any{"text": s}
}

func grounded(title, uri string) any {
	return map[string]any{"candidates": []any{map[string]any{
		"groundingMetadata": map[string]any{"groundingChunks": []any{
			map[string]any{"web": map[string]any{"title": title, "uri": uri}},
		}},
	}}}
}

// ndjsonLines decodes every line of a streamed body.
func ndjsonLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), "line %q", sc.Text())
		out = append(out, line)
	}
	require.NoError(t, sc.Err())
	return out
}
