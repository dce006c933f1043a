package s3

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/models"
)

// TestLiveBucket runs against a real S3-compatible endpoint, e.g. MinIO.
func TestLiveBucket(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set")
	}
	logging.InitNop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src, err := New(ctx, Config{
		Endpoint:  endpoint,
		Bucket:    envDefault("TEST_S3_BUCKET", "folderview-test"),
		AccessKey: envDefault("TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretKey: envDefault("TEST_S3_SECRET_KEY", "minioadmin"),
		Region:    envDefault("TEST_S3_REGION", "us-east-1"),
		PageSize:  10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer src.Close()

	c, err := src.Query(ctx, "/")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	n := 0
	for c.Next() {
		n++
	}
	if err := c.Err(); err != nil {
		t.Fatalf("cursor: %v", err)
	}
	c.Close()
	t.Logf("listed %d objects", n)

	missing, _ := RecordFromKey("folderview-test/does-not-exist.jpg")
	if _, ok := src.DeleteOne(ctx, missing).(models.Deleted); !ok {
		t.Error("deleting a missing key should succeed")
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
