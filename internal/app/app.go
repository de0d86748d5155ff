package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/handlers"
	"github.com/lexcora/rased/internal/config"
	"github.com/lexcora/rased/internal/core"
	"github.com/lexcora/rased/internal/core/auth"
	db "github.com/lexcora/rased/internal/core/database"
	"github.com/lexcora/rased/internal/core/extraction"
	"github.com/lexcora/rased/internal/core/llm"
	"github.com/lexcora/rased/internal/core/ratelimit"
	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/services"
)

// extracted office documents are cut to this many characters
const maxExtractedChars = 200_000

type App struct {
	Provider core.LLMProvider
	Store    ratelimit.Store
	Metrics  *metrics.Metrics
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	provider, err := llm.NewProvider(appCtx, cfg)
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		provider = nil
	case err != nil:
		return nil, fmt.Errorf("couldn't initialize the %s transport: %w", cfg.GenTransport, err)
	default:
		log.Info().Str("transport", cfg.GenTransport).Msg("model upstream initialized")
	}

	store, redisPinger, err := newStore(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("store", store.Name()).Msg("rate limit store ready")

	m := metrics.New()

	opts := services.DefaultOptions()
	opts.Assistant.Model = cfg.AssistantModel
	opts.Chat.Model = cfg.ChatModel
	opts.Analysis.Model = cfg.AnalysisModel

	assistant := services.NewAssistant(provider, extraction.NewDocconvExtractor(false, maxExtractedChars), opts, m)

	server := NewServer(cfg, Deps{
		Assistant: assistant,
		Limiter:   ratelimit.NewLimiter(store, cfg.RateMax, cfg.RateWindow),
		Gate:      auth.NewGate(cfg.APIKeys, cfg.ServiceTokenSecret),
		Metrics:   m,
		Redis:     redisPinger,
		Started:   time.Now(),
	})

	return &App{Provider: provider, Store: store, Metrics: m, Server: server}, nil
}

// newStore opens the counter backend named by cfg.RateStoreKind. The
// returned pinger is non-nil only for Redis.
func newStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, handlers.Pinger, error) {
	switch kind := cfg.RateStoreKind(); kind {
	case "redis":
		s, err := ratelimit.NewRedisStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		dbClient, err := db.NewDatabaseClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Database initialized and ready.")
		return ratelimit.NewPostgresStore(dbClient), nil, nil
	default:
		log.Warn().Msg("using in-memory rate limit store; counts are not shared between replicas")
		return ratelimit.NewMemoryStore(), nil, nil
	}
}

func (a *App) Close() {
	if c, ok := a.Provider.(io.Closer); ok {
		_ = c.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing rate limit store")
		}
	}
}
