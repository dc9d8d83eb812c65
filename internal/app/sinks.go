package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/finsent/internal/config"
	"github.com/deusflow/finsent/internal/logger"
	"github.com/deusflow/finsent/internal/news"
	"github.com/deusflow/finsent/internal/pipeline"
	"github.com/deusflow/finsent/internal/report"
	"github.com/deusflow/finsent/internal/storage"
	"github.com/deusflow/finsent/internal/telegram"
)

// Sink receives the report of a finished run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec storage.RunRecord, r *report.Report) error
}

// ArchiveSink saves runs into a storage.Archive and prunes old ones.
type ArchiveSink struct {
	name    string
	archive storage.Archive
}

func (s *ArchiveSink) Name() string { return s.name }

func (s *ArchiveSink) Publish(ctx context.Context, rec storage.RunRecord, _ *report.Report) error {
	if err := s.archive.Save(ctx, rec); err != nil {
		return err
	}
	return s.archive.Cleanup(ctx)
}

// TelegramSink posts a digest of the report.
type TelegramSink struct {
	client *telegram.Client
	top    int
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Publish(ctx context.Context, _ storage.RunRecord, r *report.Report) error {
	return s.client.SendMessage(ctx, telegram.FormatDigest(r, s.top))
}

func openSinks(ctx context.Context, cfg *config.Config, log logger.Logger) ([]Sink, []func() error, error) {
	var (
		sinks   []Sink
		closers []func() error
	)

	switch cfg.Storage.Type {
	case config.StorageFile:
		fa := storage.NewFileArchive(cfg.Storage.FilePath, cfg.Storage.TTLHours)
		if err := fa.Load(); err != nil {
			return nil, nil, fmt.Errorf("open file archive: %w", err)
		}
		sinks = append(sinks, &ArchiveSink{name: "file", archive: fa})
		closers = append(closers, fa.Close)
		log.Info("Using file archive", logger.String("path", cfg.Storage.FilePath))

	case config.StoragePostgres:
		pa, err := storage.NewPostgresArchive(ctx, cfg.Storage.DatabaseURL, cfg.Storage.TTLHours)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres archive: %w", err)
		}
		sinks = append(sinks, &ArchiveSink{name: "postgres", archive: pa})
		closers = append(closers, pa.Close)
		log.Info("Using PostgreSQL archive")
	}

	if cfg.Telegram.Enabled {
		client := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.BaseURL)
		sinks = append(sinks, &TelegramSink{client: client, top: cfg.Telegram.Top})
	}

	return sinks, closers, nil
}

func runRecord(results []news.Result, stats pipeline.Stats, started time.Time) storage.RunRecord {
	return storage.RunRecord{
		StartedAt:      started.UTC(),
		Duration:       time.Since(started),
		ModelAvailable: stats.ModelAvailable,
		Results:        results,
	}
}
