package chat

import (
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/scribeai/scribe/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

func newOllamaModel(cfg config.GenerationConfig) (llms.Model, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(cfg.Model),
	)
}
