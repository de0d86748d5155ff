package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/handlers"
)

// Recoverer turns a panic into a JSON 500. Panics with http.ErrAbortHandler
// are passed through.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			log.Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			handlers.WriteError(w, http.StatusInternalServerError, "Internal server error.")
		}()

		next.ServeHTTP(w, r)
	})
}
