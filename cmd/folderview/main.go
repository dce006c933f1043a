// folderview is an interactive folder browser over an image record source.
//
// Features:
// - Folder hierarchy derived from flat record paths
// - Memory, SQLite, PostgreSQL and S3 record sources
// - Multi-select with direct or confirmed batch deletion
// - Prometheus metrics & structured logging (zap)
package main

import (
	"bufio"
	"context"
	"flag"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/browser"
	"github.com/fruitsalade/folderview/internal/config"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source/memory"
)

func main() {
	seedFile := flag.String("seed", "", "File with absolute image paths, one per line (memory source)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		// Keep the REPL output readable.
		OutputPath: "stderr",
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seed []models.Record
	if *seedFile != "" {
		seed, err = readSeed(*seedFile)
		if err != nil {
			logging.Fatal("read seed file", zap.Error(err))
		}
	}

	src, err := browser.NewSource(ctx, cfg, seed)
	if err != nil {
		logging.Fatal("source init failed", zap.String("source", cfg.Source), zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	b := browser.New(ctx, browser.Deps{
		Source:           src,
		FetchBuffer:      cfg.FetchBuffer,
		BulkConfirmation: cfg.BulkDelete,
	})
	defer b.Close()

	repl := newREPL(b, bufio.NewReader(os.Stdin), os.Stdout)
	if err := b.Open(cfg.RootPath); err != nil {
		logging.Error("initial load failed", zap.String("root", cfg.RootPath), zap.Error(err))
	}
	repl.run()
}

func readSeed(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return memory.FromPaths(paths), nil
}
