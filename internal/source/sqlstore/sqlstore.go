// Package sqlstore provides a SQL-backed record source with SQLite and
// PostgreSQL dialects.
//
// Bulk deletion moves records to trash (deleted_at set) in one transaction;
// PurgeTrash removes them for good. DeleteOne is a hard delete.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fruitsalade/folderview/internal/hierarchy"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/retry"
	"github.com/fruitsalade/folderview/internal/source"
)

// Config holds connection settings.
type Config struct {
	Dialect    string // SQLite or Postgres
	DSN        string // file path or ":memory:" for SQLite, URL for Postgres
	BulkDelete bool
}

// Store is a SQL record source.
type Store struct {
	db   *sql.DB
	d    dialect
	bulk bool
}

// Open connects to the database, verifies the connection and runs the
// schema migration.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, ok := dialects[cfg.Dialect]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q", cfg.Dialect)
	}

	dsn := cfg.DSN
	if d.name == SQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout=5000", dsn)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if d.name == SQLite {
		// Each :memory: connection is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		if err := db.PingContext(ctx); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, d: d, bulk: cfg.BulkDelete}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Name() string { return s.d.name }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the images table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	logging.Debug("running migration", zap.String("dialect", s.d.name))
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Insert adds records, skipping IDs that already exist. It returns the number
// of rows inserted.
func (s *Store) Insert(ctx context.Context, records ...models.Record) (int, error) {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.d.rebind(
		`INSERT INTO images (id, display_name, folder_path) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.ID, r.DisplayName, r.FolderPath)
		if err != nil {
			metrics.RecordSourceOperation(s.d.name, "insert", time.Since(start), false)
			return 0, fmt.Errorf("insert %s: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	metrics.RecordSourceOperation(s.d.name, "insert", time.Since(start), true)
	return inserted, nil
}

// Query streams live records whose folder lies under prefix, in insertion
// order.
func (s *Store) Query(ctx context.Context, prefix string) (source.Cursor, error) {
	start := time.Now()

	q := `SELECT id, display_name, folder_path FROM images WHERE deleted_at IS NULL`
	var args []interface{}
	if prefix != "" {
		// SQLite LIKE folds ASCII case, so compare the prefix exactly.
		norm := hierarchy.Normalize(prefix)
		q += ` AND (folder_path = ? OR substr(folder_path, 1, ?) = ?)`
		args = append(args, hierarchy.Trim(prefix), utf8.RuneCountInString(norm), norm)
	}
	q += ` ORDER BY ` + s.d.orderCol

	rows, err := s.db.QueryContext(ctx, s.d.rebind(q), args...)
	metrics.RecordSourceOperation(s.d.name, "query", time.Since(start), err == nil)
	if err != nil {
		return nil, source.Wrap(s.d.name, "query", err)
	}
	return &cursor{rows: rows, name: s.d.name}, nil
}

// DeleteOne removes a record immediately.
func (s *Store) DeleteOne(ctx context.Context, record models.Record) models.DeletionOutcome {
	start := time.Now()
	err := s.hardDelete(ctx, record.ID)
	metrics.RecordSourceOperation(s.d.name, "delete", time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("delete failed",
			zap.String("id", record.ID), zap.Error(err))
		return models.DeleteFailed{Record: record, Err: source.Wrap(s.d.name, "delete", err)}
	}
	logging.Debug("deleted record", zap.String("id", record.ID))
	return models.Deleted{Record: record}
}

func (s *Store) hardDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`DELETE FROM images WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return source.ErrNotFound
	}
	return nil
}

// RequestBulkDeletion returns a handle whose commit moves the batch to trash.
// It returns nil when bulk deletion is disabled or the batch is empty.
func (s *Store) RequestBulkDeletion(ctx context.Context, records []models.Record) (*source.ConfirmationHandle, error) {
	if !s.bulk || len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return source.NewConfirmationHandle(records, func(ctx context.Context) error {
		start := time.Now()
		err := s.softDelete(ctx, ids)
		metrics.RecordSourceOperation(s.d.name, "bulk_delete", time.Since(start), err == nil)
		return source.Wrap(s.d.name, "bulk_delete", err)
	}), nil
}

func (s *Store) softDelete(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := s.d.rebind(`UPDATE images SET deleted_at = CURRENT_TIMESTAMP
		WHERE deleted_at IS NULL AND id IN (` + placeholders(len(ids)) + `)`)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	n, _ := res.RowsAffected()
	logging.Debug("moved records to trash", zap.Int64("count", n))
	return nil
}

// TrashCount returns how many records are in trash.
func (s *Store) TrashCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE deleted_at IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trash: %w", err)
	}
	return n, nil
}

// PurgeTrash permanently removes trashed records and returns how many were
// removed.
func (s *Store) PurgeTrash(ctx context.Context) (int64, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE deleted_at IS NOT NULL`)
	metrics.RecordSourceOperation(s.d.name, "purge_trash", time.Since(start), err == nil)
	if err != nil {
		return 0, fmt.Errorf("purge trash: %w", err)
	}
	return res.RowsAffected()
}

type cursor struct {
	rows *sql.Rows
	name string
	cur  models.Record
	err  error
}

func (c *cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.rows.Next() {
		return false
	}
	var r models.Record
	if err := c.rows.Scan(&r.ID, &r.DisplayName, &r.FolderPath); err != nil {
		c.err = source.Wrap(c.name, "scan", err)
		return false
	}
	c.cur = r
	return true
}

func (c *cursor) Record() models.Record { return c.cur }

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return source.Wrap(c.name, "query", err)
	}
	return nil
}

func (c *cursor) Close() error { return c.rows.Close() }
