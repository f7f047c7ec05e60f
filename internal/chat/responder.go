package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scribeai/scribe/internal/extract"
)

// Responder routes a composed prompt to text-only or multi-modal generation.
type Responder struct {
	gen    Generator
	logger *slog.Logger
}

func NewResponder(log *slog.Logger, gen Generator) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{
		gen:    gen,
		logger: log.With(slog.String("service", "responder")),
	}
}

// Generate returns the model's reply. It does not retry.
func (r *Responder) Generate(ctx context.Context, promptText string, images []extract.ImagePayload) (string, error) {
	switch req := NewRequest(promptText, images).(type) {
	case TextRequest:
		return r.gen.GenerateText(ctx, req.Prompt)
	case MultiModalRequest:
		r.logger.Debug("multi-modal generation", slog.Int("images", len(req.Images)))
		return r.gen.GenerateMultiModal(ctx, req.Prompt, req.Images)
	default:
		return "", fmt.Errorf("unknown request type %T", req)
	}
}
