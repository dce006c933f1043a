// seed-tool populates the configured SQL record source with image paths.
//
// It reads absolute paths, one per line, from -input or stdin, or walks the
// directory given by -dir for image files, and inserts a record for each.
// Existing IDs are skipped, so it is safe to run repeatedly.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/config"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/source/memory"
	"github.com/fruitsalade/folderview/internal/source/sqlstore"
)

const batchSize = 500

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true, ".bmp": true,
}

func main() {
	input := flag.String("input", "", "File with image paths (default stdin)")
	dir := flag.String("dir", "", "Walk this directory for image files instead of reading paths")
	purge := flag.Bool("purge-trash", false, "Remove trashed records before seeding")
	flag.Parse()

	if err := logging.Init(logging.Config{Level: "info", Format: "console"}); err != nil {
		panic("logging init: " + err.Error())
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("config error", zap.Error(err))
	}

	sc := sqlstore.Config{Dialect: sqlstore.SQLite, DSN: cfg.SQLitePath}
	switch cfg.Source {
	case config.SourceSQLite:
	case config.SourcePostgres:
		sc = sqlstore.Config{Dialect: sqlstore.Postgres, DSN: cfg.DatabaseURL}
	default:
		logging.Fatal("seed-tool needs a sqlite or postgres source", zap.String("source", cfg.Source))
	}

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sc)
	if err != nil {
		logging.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	if *purge {
		n, err := store.PurgeTrash(ctx)
		if err != nil {
			logging.Fatal("purge trash failed", zap.Error(err))
		}
		logging.Info("purged trash", zap.Int64("records", n))
	}

	if *dir != "" {
		paths, err := walkImages(ctx, *dir)
		if err != nil {
			logging.Fatal("walk failed", zap.String("dir", *dir), zap.Error(err))
		}
		total, err := insertPaths(ctx, store, paths)
		if err != nil {
			logging.Fatal("seeding failed", zap.Int("inserted", total), zap.Error(err))
		}
		logging.Info("seeding complete", zap.Int("found", len(paths)), zap.Int("inserted", total))
		return
	}

	var r io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			logging.Fatal("open input", zap.Error(err))
		}
		defer f.Close()
		r = f
	}

	total, err := seed(ctx, store, r)
	if err != nil {
		logging.Fatal("seeding failed", zap.Int("inserted", total), zap.Error(err))
	}
	logging.Info("seeding complete", zap.Int("inserted", total))
}

// seed inserts records for every path read from r, in batches.
func seed(ctx context.Context, store *sqlstore.Store, r io.Reader) (int, error) {
	total := 0
	var batch []string
	flush := func() error {
		n, err := insertPaths(ctx, store, batch)
		total += n
		batch = batch[:0]
		return err
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			logging.Warn("skipping relative path", zap.String("path", line))
			continue
		}
		batch = append(batch, line)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	return total, flush()
}

// insertPaths inserts paths in batches and returns how many were new.
func insertPaths(ctx context.Context, store *sqlstore.Store, paths []string) (int, error) {
	total := 0
	for start := 0; start < len(paths); start += batchSize {
		end := min(start+batchSize, len(paths))
		n, err := store.Insert(ctx, memory.FromPaths(paths[start:end])...)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// walkImages returns the absolute, slash-separated paths of image files
// below root, sorted.
func walkImages(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	conf := &fastwalk.Config{Follow: false}
	err = fastwalk.Walk(conf, root, func(fullPath string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logging.Debug("walk error", zap.String("path", fullPath), zap.Error(err))
			return nil
		}
		if d.IsDir() || !imageExts[strings.ToLower(filepath.Ext(fullPath))] {
			return nil
		}
		mu.Lock()
		paths = append(paths, filepath.ToSlash(fullPath))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
