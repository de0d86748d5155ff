package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	ErrEmptyRequest  = errors.New("completion request has no contents")
)

// UpstreamError is a non-2xx answer from the Gemini API. Body is truncated
// and only ever logged.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini upstream status %d: %s", e.Status, e.Body)
}
