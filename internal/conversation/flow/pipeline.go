// Package flow runs a chat turn: resolve the conversation, ingest the
// attachments, compose the prompt, generate the reply and record the turn.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/scribeai/scribe/internal/extract"
	"github.com/scribeai/scribe/internal/prompt"
)

// ConversationResolver returns the conversation a turn belongs to.
type ConversationResolver interface {
	Resolve(ctx context.Context, existingID, firstUserText, ownerID string) (string, error)
}

// ResponseGenerator produces the assistant reply.
type ResponseGenerator interface {
	Generate(ctx context.Context, promptText string, images []extract.ImagePayload) (string, error)
}

// TurnInput is one user turn.
type TurnInput struct {
	OwnerID        string
	ConversationID string
	Text           string
	Files          []Upload
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	ConversationID     string
	Reply              string
	UserMessageID      string
	AssistantMessageID string
	FileIDs            []string
	SkippedFiles       []string
}

// Options tune failure handling.
type Options struct {
	// CleanupOnFailure removes files created by a failed turn.
	CleanupOnFailure bool
}

// Pipeline runs chat turns. It holds no per-turn state and is safe for
// concurrent use.
type Pipeline struct {
	resolver  ConversationResolver
	ingestor  *Ingestor
	responder ResponseGenerator
	recorder  *Recorder
	files     FileStore
	opts      Options
	logger    *slog.Logger
}

func NewPipeline(
	log *slog.Logger,
	resolver ConversationResolver,
	ingestor *Ingestor,
	responder ResponseGenerator,
	recorder *Recorder,
	files FileStore,
	opts Options,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		resolver:  resolver,
		ingestor:  ingestor,
		responder: responder,
		recorder:  recorder,
		files:     files,
		opts:      opts,
		logger:    log.With(slog.String("service", "chat_pipeline")),
	}
}

// HandleTurn runs one turn to completion. Cancelling ctx does not abort a
// turn in flight; collaborators own their deadlines. Failures are returned
// as *TurnError.
func (p *Pipeline) HandleTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	if strings.TrimSpace(in.OwnerID) == "" {
		return TurnResult{}, p.fail(&TurnError{Kind: KindUnauthenticated, Stage: StageResolving, Err: errors.New("owner id is required")})
	}

	p.enter(StageResolving, in.ConversationID)
	conversationID, err := p.resolver.Resolve(ctx, in.ConversationID, in.Text, in.OwnerID)
	if err != nil {
		return TurnResult{}, p.fail(&TurnError{Kind: KindRecordingFailure, Stage: StageResolving, Err: err})
	}
	result := TurnResult{ConversationID: conversationID}

	p.enter(StageIngesting, conversationID)
	ingested, err := p.ingestor.Ingest(ctx, in.Files, in.OwnerID)
	if err != nil {
		p.compensate(ctx, ingested, conversationID)
		return result, p.fail(withConversation(err, conversationID, StageIngesting))
	}

	p.enter(StageComposing, conversationID)
	promptText := prompt.Compose(in.Text, ingested.Fragments)

	p.enter(StageGenerating, conversationID)
	reply, err := p.responder.Generate(ctx, promptText, ingested.Images)
	if err != nil {
		p.compensate(ctx, ingested, conversationID)
		return result, p.fail(&TurnError{Kind: KindGenerationFailure, Stage: StageGenerating, ConversationID: conversationID, Err: err})
	}

	p.enter(StageRecording, conversationID)
	recorded, err := p.recorder.Record(ctx, in.OwnerID, conversationID, in.Text, ingested.FileIDs(), reply)
	if err != nil {
		p.compensate(ctx, ingested, conversationID)
		return result, p.fail(&TurnError{Kind: KindRecordingFailure, Stage: StageRecording, ConversationID: conversationID, Err: err})
	}

	result.Reply = reply
	result.UserMessageID = recorded.UserMessageID
	result.AssistantMessageID = recorded.AssistantMessageID
	result.FileIDs = ingested.FileIDs()
	result.SkippedFiles = ingested.Skipped
	if result.SkippedFiles == nil {
		result.SkippedFiles = []string{}
	}

	p.logger.Info("chat turn completed",
		slog.String("conversation_id", conversationID),
		slog.String("stage", string(StageDone)),
		slog.Int("files", len(ingested.Files)),
		slog.Int("images", len(ingested.Images)),
		slog.Int("skipped", len(ingested.Skipped)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (p *Pipeline) enter(stage Stage, conversationID string) {
	p.logger.Debug("chat turn stage",
		slog.String("stage", string(stage)),
		slog.String("conversation_id", conversationID),
	)
}

func (p *Pipeline) fail(te *TurnError) error {
	p.logger.Error("chat turn failed",
		slog.String("kind", string(te.Kind)),
		slog.String("stage", string(te.Stage)),
		slog.String("conversation_id", te.ConversationID),
		slog.Any("error", te.Err),
	)
	return te
}

// compensate removes the files a failed turn created. The conversation is
// kept so the caller can retry against it.
func (p *Pipeline) compensate(ctx context.Context, ingested Ingested, conversationID string) {
	if !p.opts.CleanupOnFailure || len(ingested.Files) == 0 || p.files == nil {
		return
	}
	if err := p.files.Discard(ctx, ingested.Files); err != nil {
		p.logger.Warn("cleanup of failed turn incomplete",
			slog.String("conversation_id", conversationID),
			slog.Int("files", len(ingested.Files)),
			slog.Any("error", err),
		)
		return
	}
	p.logger.Info("cleaned up files of failed turn",
		slog.String("conversation_id", conversationID),
		slog.Int("files", len(ingested.Files)),
	)
}

func withConversation(err error, conversationID string, stage Stage) *TurnError {
	var te *TurnError
	if errors.As(err, &te) {
		out := *te
		out.ConversationID = conversationID
		return &out
	}
	return &TurnError{Kind: KindStorageFailure, Stage: stage, ConversationID: conversationID, Err: err}
}
