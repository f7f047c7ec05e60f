package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scribeai/scribe/internal/extract"
	"github.com/scribeai/scribe/internal/media"
	"github.com/scribeai/scribe/internal/prompt"
)

// Upload is one attachment received with a turn.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Extractor converts file bytes into prompt material. It never fails.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) extract.Result
}

// FileStore persists attachment bytes and records.
type FileStore interface {
	Ingest(ctx context.Context, input media.IngestInput) (media.File, error)
	Discard(ctx context.Context, files []media.File) error
}

// Ingested is what a turn's attachments contribute.
type Ingested struct {
	Files     []media.File
	Fragments []string
	Images    []extract.ImagePayload
	// Skipped lists attachments that contributed nothing to the prompt.
	Skipped []string
}

// FileIDs returns the ids of the created files in input order.
func (in Ingested) FileIDs() []string {
	ids := make([]string, 0, len(in.Files))
	for _, f := range in.Files {
		ids = append(ids, f.ID)
	}
	return ids
}

// Ingestor extracts, stores and records every attachment of a turn.
type Ingestor struct {
	extractor Extractor
	files     FileStore
	logger    *slog.Logger
}

func NewIngestor(log *slog.Logger, extractor Extractor, files FileStore) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		extractor: extractor,
		files:     files,
		logger:    log.With(slog.String("service", "ingestor")),
	}
}

// Ingest processes files sequentially in input order. On a storage or record
// failure it returns the files created so far together with a *TurnError.
func (i *Ingestor) Ingest(ctx context.Context, files []Upload, ownerID string) (Ingested, error) {
	var out Ingested
	for _, f := range files {
		res := i.extractor.Extract(ctx, f.Data, f.MediaType)

		file, err := i.files.Ingest(ctx, media.IngestInput{
			OwnerID:      ownerID,
			OriginalName: f.Name,
			MediaType:    f.MediaType,
			Data:         f.Data,
			Pages:        res.PageCount,
		})
		if err != nil {
			kind := KindStorageFailure
			if errors.Is(err, media.ErrRecord) {
				kind = KindRecordingFailure
			}
			return out, &TurnError{Kind: kind, Stage: StageIngesting, Err: fmt.Errorf("ingest %q: %w", f.Name, err)}
		}
		out.Files = append(out.Files, file)

		// Any extracted text becomes a fragment. Text that is only
		// whitespace still marks the file as skipped for the client.
		if res.Text != "" {
			out.Fragments = append(out.Fragments, prompt.FormatFragment(f.Name, res.Text))
		}
		if res.Image != nil {
			out.Images = append(out.Images, *res.Image)
		}
		if strings.TrimSpace(res.Text) == "" && res.Image == nil {
			out.Skipped = append(out.Skipped, f.Name)
			i.logger.Info("attachment contributed no content",
				slog.String("file", f.Name),
				slog.String("media_type", f.MediaType),
			)
		}
	}
	return out, nil
}
