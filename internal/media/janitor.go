package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/robfig/cron/v3"

	"github.com/scribeai/scribe/internal/db/sqlc"
)

const janitorBatchSize = 100

// Janitor periodically removes files that were never linked to a message,
// such as uploads from turns interrupted by a crash.
type Janitor struct {
	service  *Service
	schedule string
	ttl      time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewJanitor creates a janitor running on a cron schedule (for example
// "@every 1h"). Files younger than ttl are left alone.
func NewJanitor(log *slog.Logger, service *Service, schedule string, ttl time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		service:  service,
		schedule: schedule,
		ttl:      ttl,
		cron:     cron.New(),
		logger:   log.With(slog.String("service", "media_janitor")),
	}
}

// Start registers the sweep and starts the scheduler.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(context.Background()); err != nil {
			j.logger.Error("orphan sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule orphan sweep %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("orphan janitor started", slog.String("schedule", j.schedule), slog.Duration("ttl", j.ttl))
	return nil
}

// Stop halts the scheduler and waits for a running sweep, bounded by ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep removes one batch of orphan files older than the ttl and reports
// how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.service.now().Add(-j.ttl)
	rows, err := j.service.queries.ListOrphanFiles(ctx, sqlc.ListOrphanFilesParams{
		CreatedBefore: pgtype.Timestamptz{Time: cutoff, Valid: true},
		MaxCount:      janitorBatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list orphan files: %w", err)
	}
	removed := 0
	for _, row := range rows {
		file := convertFile(row)
		if err := j.service.remove(ctx, file); err != nil {
			j.logger.Warn("remove orphan file failed", slog.String("file_id", file.ID), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("removed orphan files", slog.Int("count", removed))
	}
	return removed, nil
}
