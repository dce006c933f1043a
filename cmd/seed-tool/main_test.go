package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/source/sqlstore"
)

func TestSeed(t *testing.T) {
	logging.InitNop()
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: sqlstore.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	input := strings.Join([]string{
		"# camera roll",
		"/sdcard/DCIM/Camera/1.jpg",
		"",
		"relative/2.jpg",
		"/sdcard/DCIM/Camera/1.jpg",
		"/sdcard/Pictures/3.png",
	}, "\n")

	n, err := seed(ctx, store, strings.NewReader(input))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted %d, want 2", n)
	}

	c, err := store.Query(ctx, "/sdcard/DCIM")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer c.Close()
	if !c.Next() || c.Record().DisplayName != "1.jpg" || c.Record().FolderPath != "/sdcard/DCIM/Camera" {
		t.Errorf("unexpected record %+v", c.Record())
	}
}

func TestWalkImages(t *testing.T) {
	logging.InitNop()
	root := t.TempDir()
	for _, name := range []string{
		"DCIM/Camera/1.jpg",
		"DCIM/Camera/notes.txt",
		"Pictures/2.PNG",
		"Pictures/Screenshots/3.webp",
	} {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := walkImages(context.Background(), root)
	if err != nil {
		t.Fatalf("walkImages: %v", err)
	}
	base := filepath.ToSlash(root)
	want := []string{
		base + "/DCIM/Camera/1.jpg",
		base + "/Pictures/2.PNG",
		base + "/Pictures/Screenshots/3.webp",
	}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
