package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source"
)

var testRecords = []models.Record{
	{ID: "1", DisplayName: "1.jpg", FolderPath: "/r/x"},
	{ID: "2", DisplayName: "2.jpg", FolderPath: "/r/x/"},
	{ID: "3", DisplayName: "3.jpg", FolderPath: "/r/y"},
	{ID: "4", DisplayName: "4.jpg", FolderPath: "/r_z"},
	{ID: "5", DisplayName: "5.jpg", FolderPath: "/other"},
}

func openTest(t *testing.T, bulk bool) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Dialect: SQLite, DSN: ":memory:", BulkDelete: bulk})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Insert(context.Background(), testRecords...); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return s
}

func ids(t *testing.T, c source.Cursor) []string {
	t.Helper()
	defer c.Close()
	var out []string
	for c.Next() {
		out = append(out, c.Record().ID)
	}
	if err := c.Err(); err != nil {
		t.Fatalf("cursor: %v", err)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueryPrefix(t *testing.T) {
	s := openTest(t, false)
	ctx := context.Background()

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"1", "2", "3", "4", "5"}},
		{"/r", []string{"1", "2", "3"}},
		{"/r/", []string{"1", "2", "3"}},
		{"/r/x", []string{"1", "2"}},
		{"/nothing", nil},
	}
	for _, tt := range tests {
		c, err := s.Query(ctx, tt.prefix)
		if err != nil {
			t.Fatalf("Query(%q): %v", tt.prefix, err)
		}
		if got := ids(t, c); !equal(got, tt.want) {
			t.Errorf("Query(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestInsertSkipsDuplicates(t *testing.T) {
	s := openTest(t, false)
	n, err := s.Insert(context.Background(), testRecords[0], models.Record{ID: "6", DisplayName: "6.jpg", FolderPath: "/r"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted %d, want 1", n)
	}
}

func TestDeleteOne(t *testing.T) {
	s := openTest(t, false)
	ctx := context.Background()

	if out := s.DeleteOne(ctx, testRecords[0]); !models.Succeeded(out) {
		t.Fatalf("DeleteOne: %+v", out)
	}
	out := s.DeleteOne(ctx, testRecords[0])
	failed, ok := out.(models.DeleteFailed)
	if !ok || !errors.Is(failed.Err, source.ErrNotFound) {
		t.Errorf("second delete = %+v, want ErrNotFound", out)
	}

	c, _ := s.Query(ctx, "/r/x")
	if got := ids(t, c); !equal(got, []string{"2"}) {
		t.Errorf("after delete = %v", got)
	}
}

func TestBulkDeletionMovesToTrash(t *testing.T) {
	s := openTest(t, true)
	ctx := context.Background()

	h, err := s.RequestBulkDeletion(ctx, testRecords[:2])
	if err != nil || h == nil {
		t.Fatalf("RequestBulkDeletion: %v, %v", h, err)
	}

	c, _ := s.Query(ctx, "/r/x")
	if got := ids(t, c); len(got) != 2 {
		t.Fatalf("records gone before commit: %v", got)
	}

	if err := h.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	c, _ = s.Query(ctx, "/r/x")
	if got := ids(t, c); len(got) != 0 {
		t.Errorf("records still visible after commit: %v", got)
	}

	n, err := s.TrashCount(ctx)
	if err != nil || n != 2 {
		t.Errorf("TrashCount = %d, %v; want 2", n, err)
	}
	purged, err := s.PurgeTrash(ctx)
	if err != nil || purged != 2 {
		t.Errorf("PurgeTrash = %d, %v; want 2", purged, err)
	}
}

func TestBulkDeletionDisabled(t *testing.T) {
	s := openTest(t, false)
	h, err := s.RequestBulkDeletion(context.Background(), testRecords)
	if err != nil || h != nil {
		t.Errorf("got %v, %v; want nil, nil", h, err)
	}
}

func TestQueryCancelled(t *testing.T) {
	s := openTest(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := s.Query(ctx, "")
	if err == nil {
		c.Close()
		return
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Query err = %v, want context.Canceled", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(context.Background(), Config{Dialect: SQLite, DSN: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{Dialect: Postgres, DSN: url, BulkDelete: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	defer s.DB().ExecContext(ctx, `DELETE FROM images WHERE id LIKE 'pgtest-%'`)

	recs := []models.Record{
		{ID: "pgtest-1", DisplayName: "1.jpg", FolderPath: "/pgtest/a"},
		{ID: "pgtest-2", DisplayName: "2.jpg", FolderPath: "/pgtest/b"},
	}
	if _, err := s.Insert(ctx, recs...); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	c, err := s.Query(ctx, "/pgtest")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := ids(t, c); !equal(got, []string{"pgtest-1", "pgtest-2"}) {
		t.Errorf("Query = %v", got)
	}
	if out := s.DeleteOne(ctx, recs[0]); !models.Succeeded(out) {
		t.Errorf("DeleteOne: %+v", out)
	}
}

func TestQueryPrefixIsCaseSensitive(t *testing.T) {
	s, err := Open(context.Background(), Config{Dialect: SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	_, err = s.Insert(ctx,
		models.Record{ID: "upper", DisplayName: "x.jpg", FolderPath: "/Photos/trip"},
		models.Record{ID: "lower", DisplayName: "y.jpg", FolderPath: "/photos/trip"},
		models.Record{ID: "exact", DisplayName: "z.jpg", FolderPath: "/Photos"},
		models.Record{ID: "accent", DisplayName: "w.jpg", FolderPath: "/Photos/été"},
	)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"/Photos/", []string{"upper", "exact", "accent"}},
		{"/photos", []string{"lower"}},
		{"/PHOTOS/", nil},
		{"/Photos/été/", []string{"accent"}},
	}
	for _, tt := range tests {
		c, err := s.Query(ctx, tt.prefix)
		if err != nil {
			t.Fatalf("Query(%q): %v", tt.prefix, err)
		}
		if got := ids(t, c); !equal(got, tt.want) {
			t.Errorf("Query(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := dialects[Postgres]
	if got := pg.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind = %q", got)
	}
	lite := dialects[SQLite]
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
