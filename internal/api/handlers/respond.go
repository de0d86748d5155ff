package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/validation"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Errors []validation.FieldError `json:"errors,omitempty"`
}

const validationFailed = "Validation failed."

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Debug().Err(err).Msg("write json response")
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

func writeValidation(w http.ResponseWriter, errs []validation.FieldError) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationFailed, Errors: errs})
}

// decodeBody reads a JSON object into dst. An empty body decodes as {} so
// missing fields are reported by validation.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) []validation.FieldError {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return []validation.FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("must be of type %s", typeErr.Type)}}
	case errors.As(err, &maxErr):
		return []validation.FieldError{{Field: "body", Message: fmt.Sprintf("must not exceed %d bytes", maxErr.Limit)}}
	default:
		return []validation.FieldError{{Field: "body", Message: "must be a valid JSON object"}}
	}
}

// wantsStream reports whether the caller asked for NDJSON streaming.
func wantsStream(r *http.Request) bool {
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.Contains(accept, "text/event-stream") ||
		strings.Contains(accept, "application/x-ndjson") ||
		r.URL.Query().Get("stream") == "1" ||
		r.Header.Get("X-Lexcora-Stream") == "1"
}

// MethodNotAllowed answers non-POST requests on the POST-only API routes.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed.")
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found.")
}
