package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcora/rased/internal/models"
)

// blockingSource yields one token, then blocks in Next until closed.
type blockingSource struct {
	mu     sync.Mutex
	served bool
	closed chan struct{}
	once   sync.Once
}

func newBlockingSource() *blockingSource {
	return &blockingSource{closed: make(chan struct{})}
}

func (b *blockingSource) Next() (string, error) {
	b.mu.Lock()
	first := !b.served
	b.served = true
	b.mu.Unlock()
	if first {
		return "first", nil
	}
	<-b.closed
	return "", errors.New("stream closed")
}

func (b *blockingSource) Sources() []models.Source { return []models.Source{} }

func (b *blockingSource) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// brokenWriter accepts headers and flushes but fails every body write.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header { return w.header }
func (w *brokenWriter) WriteHeader(int) {}
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
func (w *brokenWriter) Flush() {}

func TestPipe_WriteFailureClosesUpstream(t *testing.T) {
	src := newBlockingSource()
	w := &brokenWriter{header: http.Header{}}
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		streamer{}.pipe(w, req, "chat", src, true)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipe kept waiting on the upstream after the client write failed")
	}

	select {
	case <-src.closed:
	default:
		require.Fail(t, "upstream was not closed")
	}
	assert.NoError(t, req.Context().Err())
}
