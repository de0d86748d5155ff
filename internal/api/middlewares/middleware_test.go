package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcora/rased/internal/core/auth"
	"github.com/lexcora/rased/internal/core/ratelimit"
	"github.com/lexcora/rased/internal/metrics"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAPIKey(t *testing.T) {
	gate := auth.NewGate([]string{"old-key", "new-key"}, "token-secret")
	token, err := auth.IssueServiceToken("token-secret", "billing-worker", time.Minute)
	require.NoError(t, err)

	var seen auth.Principal
	h := APIKey(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, found := PrincipalFrom(r.Context())
		require.True(t, found)
		seen = p
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
		method string
	}{
		{name: "bearer key", header: "Authorization", value: "Bearer new-key", want: http.StatusNoContent, method: auth.MethodAPIKey},
		{name: "x-api-key", header: "x-api-key", value: "old-key", want: http.StatusNoContent, method: auth.MethodAPIKey},
		{name: "service token", header: "Authorization", value: "Bearer " + token, want: http.StatusNoContent, method: auth.MethodServiceToken},
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong key", header: "x-api-key", value: "nope", want: http.StatusUnauthorized},
		{name: "lowercase scheme", header: "Authorization", value: "bearer new-key", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = auth.Principal{}
			req := httptest.NewRequest(http.MethodPost, "/api/assistant", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
				return
			}
			assert.Equal(t, tt.method, seen.Method)
			assert.NotContains(t, seen.ID, "key")
		})
	}
}

func TestAPIKey_NoKeysConfigured(t *testing.T) {
	h := APIKey(auth.NewGate(nil, ""))(ok)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("x-api-key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	m := metrics.New()
	gate := auth.NewGate([]string{"k1"}, "")
	h := RateLimit(ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 2, time.Minute), gate, m)(ok)

	send := func(remote, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/assistant", nil)
		req.RemoteAddr = remote
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("10.0.0.1:5000", "")
	require.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", first.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5001", "").Code)

	limited := send("10.0.0.1:5002", "")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.JSONEq(t, `{"error":"Too many requests."}`, limited.Body.String())
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))

	// a credential gets its own budget, as does another address
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5003", "k1").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000", "").Code)
}

func TestRateLimit_Concurrent(t *testing.T) {
	const max = 10
	gate := auth.NewGate([]string{"shared"}, "")
	h := RateLimit(ratelimit.NewLimiter(ratelimit.NewMemoryStore(), max, time.Minute), gate, nil)(ok)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.Header.Set("Authorization", "Bearer shared")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code == http.StatusNoContent {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, max, allowed)
}

func TestRateLimit_UnknownKeysShareAddressBudget(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	gate := auth.NewGate([]string{"good-key"}, "")
	h := RateLimit(ratelimit.NewLimiter(store, 1, time.Minute), gate, nil)(ok)

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/assistant", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		req.Header.Set("x-api-key", fmt.Sprintf("bogus-%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++

		if i == 1 {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	assert.Equal(t, map[int]int{http.StatusNoContent: 1, http.StatusTooManyRequests: 19}, codes)

	// an accepted key from the same address still gets its own budget
	req := httptest.NewRequest(http.MethodPost, "/api/assistant", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	req.Header.Set("x-api-key", "good-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type brokenStore struct{ ratelimit.Store }

func (brokenStore) Increment(context.Context, string, time.Duration) (ratelimit.Counter, error) {
	return ratelimit.Counter{}, errors.New("connection refused")
}

func TestRateLimit_FailsClosed(t *testing.T) {
	h := RateLimit(ratelimit.NewLimiter(brokenStore{}, 5, time.Minute), auth.NewGate(nil, ""), nil)(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"Rate limiter unavailable."}`, rec.Body.String())
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error."}`, rec.Body.String())
}

func TestRecoverer_AbortHandlerPropagates(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(RequestLogger(m))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	mrec := httptest.NewRecorder()
	m.Handler().ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, mrec.Body.String(), `rased_http_requests_total{route="/items/{id}",status="418"} 1`)
}
