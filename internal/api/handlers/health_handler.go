package handlers

import (
	"context"
	"net/http"
	"time"
)

const (
	RedisConnected     = "connected"
	RedisNotConfigured = "not-configured"
	RedisUnavailable   = "unavailable"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
	Store  string  `json:"store"`
	Redis  string  `json:"redis"`
}

type HealthHandler struct {
	started time.Time
	store   string
	redis   Pinger
}

// NewHealthHandler reports the rate limit store by name. redis is nil when
// no Redis connection was configured.
func NewHealthHandler(started time.Time, store string, redis Pinger) *HealthHandler {
	return &HealthHandler{started: started, store: store, redis: redis}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := RedisNotConfigured
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status = RedisConnected
		if err := h.redis.Ping(ctx); err != nil {
			status = RedisUnavailable
		}
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Seconds(),
		Store:  h.store,
		Redis:  status,
	})
}
