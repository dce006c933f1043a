package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fruitsalade/folderview/internal/browser"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/source/memory"
)

func runScript(t *testing.T, src *memory.Source, bulk bool, script string) string {
	t.Helper()
	logging.InitNop()

	b := browser.New(context.Background(), browser.Deps{Source: src, BulkConfirmation: bulk})
	defer b.Close()
	if err := b.Open("/p/"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var out bytes.Buffer
	r := newREPL(b, bufio.NewReader(strings.NewReader(script)), &out)
	r.run()
	return out.String()
}

func TestREPLBrowseAndDelete(t *testing.T) {
	src := memory.New(memory.FromPaths([]string{
		"/p/top.jpg",
		"/p/trip/a.jpg",
		"/p/trip/b.jpg",
	}))

	out := runScript(t, src, false, "cd 1\nmulti on\nsel 1\nsel 2\nrm\nback\nquit\n")

	for _, want := range []string{
		"[1] trip/ (2)",
		"/p/trip/",
		"Selected a.jpg (1 total)",
		"Selected b.jpg (2 total)",
		"[deleted] a.jpg",
		"[deleted] b.jpg",
		"Goodbye!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if src.Len() != 1 {
		t.Errorf("source has %d records, want 1", src.Len())
	}
}

func TestREPLUnknownCommand(t *testing.T) {
	src := memory.New(memory.FromPaths([]string{"/p/a.jpg"}))
	out := runScript(t, src, false, "frobnicate\nsel 1\n")
	if !strings.Contains(out, "Unknown command: frobnicate") {
		t.Errorf("missing unknown-command message:\n%s", out)
	}
	if !strings.Contains(out, "Turn on multi-select first") {
		t.Errorf("sel outside multi-select mode was accepted:\n%s", out)
	}
}
