package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/models"
)

const streamErrorCode = "stream_error"

// tokenSource is an upstream reply read one text increment at a time.
type tokenSource interface {
	Next() (string, error)
	Sources() []models.Source
	Close() error
}

type textLine struct {
	Text string `json:"text"`
}

type doneLine struct {
	Done    bool            `json:"done"`
	Sources []models.Source `json:"sources"`
}

type errorLine struct {
	Error string `json:"error"`
}

// ndjsonWriter writes one JSON object per line and flushes after each.
type ndjsonWriter struct {
	rc  *http.ResponseController
	enc *json.Encoder
}

// startNDJSON sends the stream headers. It fails when the connection
// cannot be flushed, before any status has been written.
func startNDJSON(w http.ResponseWriter) (*ndjsonWriter, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "application/x-ndjson")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	if err := rc.Flush(); err != nil {
		for _, k := range []string{"Content-Type", "Cache-Control", "Connection", "X-Accel-Buffering"} {
			h.Del(k)
		}
		return nil, err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &ndjsonWriter{rc: rc, enc: enc}, nil
}

func (n *ndjsonWriter) write(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	return n.rc.Flush()
}

type streamer struct {
	metrics *metrics.Metrics
}

// pipe copies tokens from src to the client, then writes the terminal line.
// Sources are reported only when withSources is set.
func (s streamer) pipe(w http.ResponseWriter, r *http.Request, operation string, src tokenSource, withSources bool) {
	closeSrc := sync.OnceFunc(func() { _ = src.Close() })
	defer closeSrc()

	nw, err := startNDJSON(w)
	if err != nil {
		log.Error().Err(err).Msg("response writer cannot stream")
		WriteError(w, http.StatusInternalServerError, "Streaming unsupported.")
		return
	}

	ctx := r.Context()
	tokens := make(chan string)
	g, gctx := errgroup.WithContext(ctx)
	// a failed write releases the upstream even while the request lives on
	stop := context.AfterFunc(gctx, closeSrc)
	defer stop()

	g.Go(func() error {
		defer close(tokens)
		for {
			tok, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case tokens <- tok:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		for tok := range tokens {
			if err := nw.write(textLine{Text: tok}); err != nil {
				return err
			}
			s.metrics.StreamChunk()
		}
		return nil
	})

	err = g.Wait()
	switch {
	case ctx.Err() != nil:
		log.Debug().Err(ctx.Err()).Str("operation", operation).Msg("client went away mid-stream")
	case err != nil:
		log.Error().Err(err).Str("operation", operation).Msg("stream failed")
		_ = nw.write(errorLine{Error: streamErrorCode})
	default:
		sources := []models.Source{}
		if withSources {
			sources = src.Sources()
		}
		_ = nw.write(doneLine{Done: true, Sources: sources})
	}
}

// notice streams a single fixed text followed by an empty done line.
func (s streamer) notice(w http.ResponseWriter, text string) {
	nw, err := startNDJSON(w)
	if err != nil {
		WriteJSON(w, http.StatusOK, models.AssistantResponse{Text: text, Sources: []models.Source{}})
		return
	}
	_ = nw.write(textLine{Text: text})
	_ = nw.write(doneLine{Done: true, Sources: []models.Source{}})
}

// fail streams only the error terminal line, for streams that never opened.
func (s streamer) fail(w http.ResponseWriter) {
	nw, err := startNDJSON(w)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	_ = nw.write(errorLine{Error: streamErrorCode})
}
