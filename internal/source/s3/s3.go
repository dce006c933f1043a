// Package s3 provides a record source over an S3-compatible bucket. Every
// object is an image; its key determines folder and display name.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/retry"
	"github.com/fruitsalade/folderview/internal/source"
)

const (
	name = "s3"

	// maxDeleteBatch is the DeleteObjects limit per request.
	maxDeleteBatch = 1000
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint   string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Region     string
	UseSSL     bool
	BulkDelete bool
	PageSize   int32
}

// API is the subset of the S3 client used by Source.
type API interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Source lists and deletes objects in one bucket.
type Source struct {
	client   API
	bucket   string
	bulk     bool
	pageSize int32
	retry    retry.Config
}

// New creates an S3 source from cfg.
func New(ctx context.Context, cfg Config) (*Source, error) {
	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	logging.Info("s3 source ready",
		zap.String("bucket", cfg.Bucket), zap.String("endpoint", endpoint))
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, cfg Config) *Source {
	rc := retry.DefaultConfig()
	rc.Transient = IsTransient
	return &Source{
		client:   client,
		bucket:   cfg.Bucket,
		bulk:     cfg.BulkDelete,
		pageSize: cfg.PageSize,
		retry:    rc,
	}
}

func (s *Source) Name() string { return name }

// Close is a no-op for S3 sources.
func (s *Source) Close() error { return nil }

// RecordFromKey maps an object key to a record. Directory markers (keys
// ending in "/") yield false.
func RecordFromKey(key string) (models.Record, bool) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return models.Record{}, false
	}
	return models.Record{
		ID:          key,
		DisplayName: path.Base(key),
		FolderPath:  path.Dir("/" + key),
	}, true
}

// listPrefix converts a folder prefix to an object key prefix.
func listPrefix(prefix string) string {
	p := strings.Trim(prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// Query lists objects under prefix lazily, one page per request.
func (s *Source) Query(ctx context.Context, prefix string) (source.Cursor, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if lp := listPrefix(prefix); lp != "" {
		input.Prefix = aws.String(lp)
	}
	if s.pageSize > 0 {
		input.MaxKeys = aws.Int32(s.pageSize)
	}
	return &cursor{
		ctx:    ctx,
		src:    s,
		prefix: prefix,
		pages:  s3.NewListObjectsV2Paginator(s.client, input),
	}, nil
}

// DeleteOne removes a single object.
func (s *Source) DeleteOne(ctx context.Context, record models.Record) models.DeletionOutcome {
	start := time.Now()
	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(record.ID),
		})
		return err
	})
	metrics.RecordSourceOperation(name, "delete", time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("S3 delete object failed",
			zap.String("key", record.ID), zap.Error(err))
		return models.DeleteFailed{Record: record, Err: source.Wrap(name, "delete", err)}
	}
	logging.Debug("S3 delete object", zap.String("key", record.ID))
	return models.Deleted{Record: record}
}

// RequestBulkDeletion returns a handle whose commit removes the batch with
// DeleteObjects requests.
func (s *Source) RequestBulkDeletion(ctx context.Context, records []models.Record) (*source.ConfirmationHandle, error) {
	if !s.bulk || len(records) == 0 {
		return nil, nil
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.ID
	}
	return source.NewConfirmationHandle(records, func(ctx context.Context) error {
		start := time.Now()
		err := s.deleteKeys(ctx, keys)
		metrics.RecordSourceOperation(name, "bulk_delete", time.Since(start), err == nil)
		return source.Wrap(name, "bulk_delete", err)
	}), nil
}

func (s *Source) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := retry.DoWithResult(ctx, s.retry, func() (*s3.DeleteObjectsOutput, error) {
			return s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			})
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete objects: %d failed, first %s: %s",
				len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

// IsTransient reports whether an S3 error is worth retrying: throttling and
// server-side failures.
func IsTransient(err error) bool {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		status := re.HTTPStatusCode()
		if status == http.StatusTooManyRequests || status >= 500 {
			return true
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}

type cursor struct {
	ctx    context.Context
	src    *Source
	prefix string
	pages  *s3.ListObjectsV2Paginator
	buf    []models.Record
	cur    models.Record
	err    error
	closed bool
}

func (c *cursor) Next() bool {
	for len(c.buf) == 0 {
		if c.err != nil || c.closed || !c.pages.HasMorePages() {
			return false
		}
		if err := c.ctx.Err(); err != nil {
			c.err = err
			return false
		}
		if err := c.fetchPage(); err != nil {
			c.err = err
			return false
		}
	}
	c.cur = c.buf[0]
	c.buf = c.buf[1:]
	return true
}

func (c *cursor) fetchPage() error {
	start := time.Now()
	page, err := retry.DoWithResult(c.ctx, c.src.retry, func() (*s3.ListObjectsV2Output, error) {
		return c.pages.NextPage(c.ctx)
	})
	metrics.RecordSourceOperation(name, "list_objects", time.Since(start), err == nil)
	if err != nil {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		return source.Wrap(name, "query", err)
	}
	for _, obj := range page.Contents {
		r, ok := RecordFromKey(aws.ToString(obj.Key))
		if ok && source.Matches(r.FolderPath, c.prefix) {
			c.buf = append(c.buf, r)
		}
	}
	return nil
}

func (c *cursor) Record() models.Record { return c.cur }
func (c *cursor) Err() error            { return c.err }

func (c *cursor) Close() error {
	c.closed = true
	c.buf = nil
	return nil
}
