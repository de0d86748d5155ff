package llm

import (
	"context"
	"fmt"

	"github.com/lexcora/rased/internal/config"
	"github.com/lexcora/rased/internal/core"
)

// NewProvider builds the transport named by GENAI_TRANSPORT. Without an API
// key it returns ErrMissingAPIKey and callers run unconfigured.
func NewProvider(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.GenTransport {
	case "sdk":
		p, err := NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.UpstreamTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "rest", "":
		p, err := NewGeminiREST(cfg.GenBaseURL, cfg.AIAPIKey, cfg.UpstreamTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown GENAI_TRANSPORT %q", cfg.GenTransport)
	}
}
