package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

type DocconvExtractor struct {
	useReadability bool
	maxChars       int
}

func NewDocconvExtractor(useReadability bool, maxChars int) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability, maxChars: maxChars}
}

// Supports reports the formats Gemini cannot take inline but docconv reads.
func (e *DocconvExtractor) Supports(contentType string) bool {
	switch normalize(contentType) {
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.apple.pages",
		"application/rtf", "application/x-rtf", "text/rtf",
		"text/html",
		"application/xml", "text/xml":
		return true
	}
	return false
}

// ExtractText converts data with docconv and returns the non-empty lines,
// trimmed, truncated to maxChars runes when maxChars > 0.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contentType = normalize(contentType)

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
		if err != nil {
			done <- result{err: fmt.Errorf("docconv %s: %w", contentType, err)}
			return
		}
		done <- result{text: res.Body}
	}()

	var r result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return "", r.err
	}

	var b strings.Builder
	for _, line := range strings.Split(r.text, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	text := b.String()
	if text == "" {
		log.Debug().Str("content_type", contentType).Msg("docconv extracted no text")
		return "", nil
	}

	if e.maxChars > 0 {
		if runes := []rune(text); len(runes) > e.maxChars {
			text = string(runes[:e.maxChars])
		}
	}
	return text, nil
}

func normalize(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
