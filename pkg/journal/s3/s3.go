// Package s3 mirrors the chat journal to Amazon S3 or an S3-compatible
// object store.
//
// Lines are buffered in memory, which is the copy served to /logs. The full
// buffer is uploaded as a single object every flush interval (when it
// changed) and once more on Close. Each process writes its own object:
//
//	<key_prefix><instance-uuid>.log
package s3

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/journal"
)

// DefaultFlushInterval is used when Config.FlushInterval is zero.
const DefaultFlushInterval = 10 * time.Second

// uploadTimeout bounds a single PutObject call.
const uploadTimeout = 30 * time.Second

// Client is the subset of *s3.Client the store needs.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config contains configuration for the S3 journal store.
type Config struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for the object key
	// Example: "dittochat/journal/"
	KeyPrefix string

	// FlushInterval is the upload cadence (default: 10s)
	FlushInterval time.Duration

	// InstanceID names the object. Defaults to a random UUID.
	InstanceID string
}

// Store buffers journal lines and uploads them to S3.
type Store struct {
	client Client
	bucket string
	key    string

	mu     sync.Mutex
	buf    bytes.Buffer
	dirty  bool
	closed bool

	// uploadMu serializes uploads so an older snapshot never overwrites a newer one
	uploadMu sync.Mutex

	stop      chan struct{}
	flushDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New verifies bucket access and starts the periodic uploader.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	s := &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		key:       cfg.KeyPrefix + instance + ".log",
		stop:      make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	go s.flushLoop(interval)

	logger.Debug("S3 journal writing to s3://%s/%s", s.bucket, s.key)
	return s, nil
}

// Key returns the object key the journal is uploaded to.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) Append(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return journal.ErrStoreClosed
	}
	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	s.dirty = true
	return nil
}

func (s *Store) Dump(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", journal.ErrStoreClosed
	}
	return s.buf.String(), nil
}

// Flush uploads the buffer if it changed since the last upload.
func (s *Store) Flush(ctx context.Context) error {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	body := bytes.Clone(s.buf.Bytes())
	s.dirty = false
	s.mu.Unlock()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("failed to upload journal to s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *Store) flushLoop(interval time.Duration) {
	defer close(s.flushDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
			if err := s.Flush(ctx); err != nil {
				logger.Warn("S3 journal flush failed: %v", err)
			}
			cancel()
		}
	}
}

// Close stops the uploader and performs a final upload.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.flushDone

		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		s.closeErr = s.Flush(ctx)

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return s.closeErr
}
