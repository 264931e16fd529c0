package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/journal"
	journalBadger "github.com/marmos91/dittochat/pkg/journal/badger"
	journalFile "github.com/marmos91/dittochat/pkg/journal/file"
	journalMemory "github.com/marmos91/dittochat/pkg/journal/memory"
	journalS3 "github.com/marmos91/dittochat/pkg/journal/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateJournal creates the journal store described by cfg and wraps it in a
// journal.Journal. The caller owns the journal and must Close it.
func CreateJournal(ctx context.Context, cfg *JournalConfig) (*journal.Journal, error) {
	store, err := CreateJournalStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return journal.New(store, journal.WithEcho(!cfg.Quiet)), nil
}

// CreateJournalStore creates a journal store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/journal/memory (in-process, lost on exit)
//   - "file": Uses pkg/journal/file (append-only log file)
//   - "badger": Uses pkg/journal/badger (BadgerDB storage, persistent)
//   - "s3": Uses pkg/journal/s3 (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Journal configuration
//
// Returns:
//   - journal.Store: Initialized journal store
//   - error: Configuration or initialization error
func CreateJournalStore(ctx context.Context, cfg *JournalConfig) (journal.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return journalMemory.New(), nil
	case "file":
		return createFileJournalStore(cfg.File)
	case "badger":
		return createBadgerJournalStore(ctx, cfg.Badger)
	case "s3":
		return createS3JournalStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown journal store type: %q (supported: memory, file, badger, s3)", cfg.Type)
	}
}

// createFileJournalStore creates a file-based journal store.
func createFileJournalStore(options map[string]any) (journal.Store, error) {
	var storeCfg journalFile.Config
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode file journal config: %w", err)
	}

	store, err := journalFile.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create file journal: %w", err)
	}

	logger.Info("Journal writing to %s", store.Path())
	return store, nil
}

// createBadgerJournalStore creates a BadgerDB-based persistent journal store.
func createBadgerJournalStore(ctx context.Context, options map[string]any) (journal.Store, error) {
	var storeCfg journalBadger.Config
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger journal config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger journal: db_path is required")
	}

	store, err := journalBadger.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger journal: %w", err)
	}

	logger.Info("Journal stored in BadgerDB at %s", storeCfg.DBPath)
	return store, nil
}

// S3JournalOptions are the options of the "s3" journal section.
type S3JournalOptions struct {
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

func decodeS3JournalOptions(options map[string]any) (S3JournalOptions, error) {
	var storeOpts S3JournalOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &storeOpts,
	})
	if err != nil {
		return storeOpts, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return storeOpts, fmt.Errorf("failed to decode S3 journal config: %w", err)
	}

	if storeOpts.Bucket == "" {
		return storeOpts, fmt.Errorf("S3 journal: bucket is required")
	}
	if storeOpts.Region == "" {
		return storeOpts, fmt.Errorf("S3 journal: region is required")
	}
	return storeOpts, nil
}

// createS3JournalStore creates an S3-based journal store.
func createS3JournalStore(ctx context.Context, options map[string]any) (journal.Store, error) {
	storeOpts, err := decodeS3JournalOptions(options)
	if err != nil {
		return nil, err
	}

	client, err := newS3Client(ctx, storeOpts)
	if err != nil {
		return nil, err
	}

	store, err := journalS3.New(ctx, journalS3.Config{
		Client:        client,
		Bucket:        storeOpts.Bucket,
		KeyPrefix:     storeOpts.KeyPrefix,
		FlushInterval: storeOpts.FlushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 journal: %w", err)
	}

	logger.Info("S3 journal initialized: bucket=%s, region=%s, key=%s",
		storeOpts.Bucket, storeOpts.Region, store.Key())

	return store, nil
}

// newS3Client builds an S3 client from the journal options.
func newS3Client(ctx context.Context, storeOpts S3JournalOptions) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeOpts.Region))

	// Set credentials if provided, otherwise use default credential chain
	if storeOpts.AccessKeyID != "" && storeOpts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeOpts.AccessKeyID,
			storeOpts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeOpts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeOpts.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeOpts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
