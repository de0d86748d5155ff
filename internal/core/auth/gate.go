package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for every rejected credential, whatever the cause.
var ErrUnauthorized = errors.New("unauthorized")

const (
	MethodAPIKey       = "api_key"
	MethodServiceToken = "service_token"
)

// Principal identifies an authenticated caller in logs. It never carries
// the credential itself.
type Principal struct {
	ID     string
	Method string
}

// Gate admits requests that present one of the configured API keys, or a
// service token signed with the configured secret.
type Gate struct {
	keys        [][]byte
	tokenSecret []byte
}

func NewGate(keys []string, tokenSecret string) *Gate {
	g := &Gate{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			g.keys = append(g.keys, []byte(k))
		}
	}
	if tokenSecret != "" {
		g.tokenSecret = []byte(tokenSecret)
	}
	return g
}

// Credential reads "Authorization: Bearer <key>", falling back to x-api-key.
func Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("x-api-key")
}

func (g *Gate) Authenticate(credential string) (Principal, error) {
	if credential == "" {
		return Principal{}, ErrUnauthorized
	}

	c := []byte(credential)
	matched := 0
	for _, k := range g.keys {
		matched |= subtle.ConstantTimeCompare(c, k)
	}
	if matched == 1 {
		return Principal{ID: Fingerprint(credential), Method: MethodAPIKey}, nil
	}

	if g.tokenSecret != nil && strings.Count(credential, ".") == 2 {
		if sub, err := g.verifyServiceToken(credential); err == nil {
			return Principal{ID: sub, Method: MethodServiceToken}, nil
		}
	}
	return Principal{}, ErrUnauthorized
}

// Known reports whether credential would be accepted by Authenticate.
func (g *Gate) Known(credential string) bool {
	_, err := g.Authenticate(credential)
	return err == nil
}

func (g *Gate) verifyServiceToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return g.tokenSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// IssueServiceToken signs an HS256 token for subject valid for ttl.
func IssueServiceToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Fingerprint is a short stable digest of a credential, safe to log and to
// use as a rate-limit identity.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}
