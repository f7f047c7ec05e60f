package chat

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/scribeai/scribe/internal/config"
)

func newGoogleAIModel(ctx context.Context, cfg config.GenerationConfig) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}
	return googleai.New(ctx, opts...)
}
