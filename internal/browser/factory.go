package browser

import (
	"context"
	"fmt"

	"github.com/fruitsalade/folderview/internal/config"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source"
	"github.com/fruitsalade/folderview/internal/source/memory"
	s3source "github.com/fruitsalade/folderview/internal/source/s3"
	"github.com/fruitsalade/folderview/internal/source/sqlstore"
)

// NewSource creates the record source selected by cfg. seed is only used by
// the memory source.
func NewSource(ctx context.Context, cfg *config.Config, seed []models.Record) (source.Source, error) {
	switch cfg.Source {
	case config.SourceMemory:
		return memory.New(seed, memory.WithBulkDeletion(cfg.BulkDelete)), nil
	case config.SourceSQLite, config.SourcePostgres:
		sc := sqlstore.Config{Dialect: sqlstore.SQLite, DSN: cfg.SQLitePath, BulkDelete: cfg.BulkDelete}
		if cfg.Source == config.SourcePostgres {
			sc.Dialect, sc.DSN = sqlstore.Postgres, cfg.DatabaseURL
		}
		store, err := sqlstore.Open(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("open %s source: %w", cfg.Source, err)
		}
		return store, nil
	case config.SourceS3:
		src, err := s3source.New(ctx, s3source.Config{
			Endpoint:   cfg.S3Endpoint,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Region:     cfg.S3Region,
			UseSSL:     cfg.S3UseSSL,
			BulkDelete: cfg.BulkDelete,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source)
	}
}
