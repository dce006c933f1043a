package browser

import (
	"context"
	"testing"

	"github.com/fruitsalade/folderview/internal/config"
	"github.com/fruitsalade/folderview/internal/deletion"
	"github.com/fruitsalade/folderview/internal/source/memory"
)

func TestBrowseAndDelete(t *testing.T) {
	src := memory.New(memory.FromPaths([]string{
		"/sdcard/DCIM/a.jpg",
		"/sdcard/DCIM/Camera/b.jpg",
		"/sdcard/DCIM/Camera/c.jpg",
		"/sdcard/Pictures/Screens/d.png",
	}))
	b := New(context.Background(), Deps{Source: src, FetchBuffer: 8})
	defer b.Close()

	if b.SessionID() == "" {
		t.Error("session has no ID")
	}
	if err := b.Open("/sdcard/"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	folders := b.Navigation.Folders()
	if len(folders) != 2 {
		t.Fatalf("Folders = %+v", folders)
	}

	dcim := folders[0]
	if dcim.RelativePath != "DCIM/" {
		t.Fatalf("first folder = %+v", dcim)
	}
	if err := b.Navigation.Enter(b.Context(), dcim); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if got := len(b.Navigation.CurrentFolderRecords()); got != 1 {
		t.Errorf("view has %d records, want 1", got)
	}

	events := b.Deletion.Subscribe()
	b.Selection.EnterMultiSelect()
	for _, r := range b.Navigation.CurrentFolderRecords() {
		b.Selection.Toggle(r)
	}
	if err := b.Deletion.DeleteSelected(b.Context()); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	ev := <-events
	if res, ok := ev.(deletion.DeletionResult); !ok || !res.Success {
		t.Errorf("event = %+v", ev)
	}
	// Only Camera/ is left below DCIM/, so the view collapses onto it.
	if got := len(b.Navigation.CurrentFolderRecords()); got != 2 {
		t.Errorf("view after delete has %d records, want 2", got)
	}
	if root := b.Navigation.Hierarchy().RootFolder; root != "/sdcard/DCIM/Camera/" {
		t.Errorf("RootFolder after delete = %q", root)
	}
	if got := len(b.Navigation.Records()); got != 2 {
		t.Errorf("buffer after reload has %d records, want 2", got)
	}
}

func TestNewSourceMemory(t *testing.T) {
	cfg := &config.Config{Source: config.SourceMemory, BulkDelete: true}
	src, err := NewSource(context.Background(), cfg, memory.FromPaths([]string{"/a/1.jpg"}))
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()
	if src.Name() != "memory" {
		t.Errorf("Name = %q", src.Name())
	}
}

func TestNewSourceSQLite(t *testing.T) {
	cfg := &config.Config{Source: config.SourceSQLite, SQLitePath: ":memory:"}
	src, err := NewSource(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()
	if src.Name() != "sqlite" {
		t.Errorf("Name = %q", src.Name())
	}
}

func TestNewSourceUnknown(t *testing.T) {
	if _, err := NewSource(context.Background(), &config.Config{Source: "ftp"}, nil); err == nil {
		t.Error("expected error for unknown source")
	}
}
