package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/scribeai/scribe/internal/config"
	"github.com/scribeai/scribe/internal/extract"
)

// Supported generation client types.
const (
	ClientGoogleAI  = "googleai"
	ClientOpenAI    = "openai"
	ClientOllama    = "ollama"
	ClientAnthropic = "anthropic"
)

var (
	ErrUnsupportedClient = errors.New("unsupported generation client type")
	ErrEmptyResponse     = errors.New("model returned no choices")
)

// Generator produces a reply for a prompt, optionally with inline images.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateMultiModal(ctx context.Context, prompt string, images []extract.ImagePayload) (string, error)
}

// LLMGenerator implements Generator over a langchaingo model.
type LLMGenerator struct {
	model   llms.Model
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewLLMGenerator wraps an existing model. A zero timeout disables the
// per-call deadline.
func NewLLMGenerator(log *slog.Logger, model llms.Model, name string, timeout time.Duration) *LLMGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &LLMGenerator{
		model:   model,
		name:    name,
		timeout: timeout,
		logger:  log.With(slog.String("service", "generator"), slog.String("model", name)),
	}
}

// NewGenerator builds the model selected by cfg.ClientType.
func NewGenerator(ctx context.Context, log *slog.Logger, cfg config.GenerationConfig) (*LLMGenerator, error) {
	clientType := strings.ToLower(strings.TrimSpace(cfg.ClientType))
	if clientType == "" {
		clientType = ClientGoogleAI
	}
	var (
		model llms.Model
		err   error
	)
	switch clientType {
	case ClientGoogleAI:
		model, err = newGoogleAIModel(ctx, cfg)
	case ClientOpenAI:
		model, err = newOpenAIModel(cfg)
	case ClientOllama:
		model, err = newOllamaModel(cfg)
	case ClientAnthropic:
		model, err = newAnthropicModel(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClient, cfg.ClientType)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", clientType, err)
	}
	return NewLLMGenerator(log, model, clientType+"/"+cfg.Model, cfg.TimeoutDuration()), nil
}

func (g *LLMGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, []llms.ContentPart{llms.TextContent{Text: prompt}})
}

func (g *LLMGenerator) GenerateMultiModal(ctx context.Context, prompt string, images []extract.ImagePayload) (string, error) {
	parts := make([]llms.ContentPart, 0, len(images)+1)
	parts = append(parts, llms.TextContent{Text: prompt})
	for i, img := range images {
		data, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			return "", fmt.Errorf("decode image %d: %w", i, err)
		}
		parts = append(parts, llms.BinaryPart(img.MimeType, data))
	}
	return g.generate(ctx, parts)
}

func (g *LLMGenerator) generate(ctx context.Context, parts []llms.ContentPart) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, []llms.MessageContent{
		{Role: schema.ChatMessageTypeHuman, Parts: parts},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	g.logger.Debug("generation completed",
		slog.Int("parts", len(parts)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp.Choices[0].Content, nil
}
