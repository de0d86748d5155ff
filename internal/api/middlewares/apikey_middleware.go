package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/handlers"
	"github.com/lexcora/rased/internal/core/auth"
)

type principalKey struct{}

// APIKey rejects requests without an accepted credential and attaches the
// authenticated Principal to the request context.
func APIKey(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := gate.Authenticate(auth.Credential(r))
			if err != nil {
				log.Debug().Str("path", r.URL.Path).Msg("rejected request without valid credential")
				handlers.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the caller attached by APIKey.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}
