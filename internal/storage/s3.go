package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage wraps LocalStorage and adds s3:// artifact download.
// It uses LocalStorage for temporary files and local paths.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
	region string
	logger *slog.Logger
}

// NewS3Storage creates a new S3Storage instance.
// The tempDir parameter specifies where downloaded objects are stored.
// The cfg parameter contains S3 configuration.
func NewS3Storage(tempDir string, cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		LocalStorage: local,
		client:       client,
		region:       cfg.Region,
		logger:       logger,
	}, nil
}

// Fetch downloads s3:// locations into the temp directory and delegates
// local paths to LocalStorage.
func (s *S3Storage) Fetch(ctx context.Context, location string) (string, []string, error) {
	if !IsS3URI(location) {
		return s.LocalStorage.Fetch(ctx, location)
	}

	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", err, location)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noKey) || errors.As(err, &notFound) {
			return "", nil, fmt.Errorf("%w: %s", ErrObjectNotFound, location)
		}
		return "", nil, fmt.Errorf("download from S3: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	localPath, err := s.SaveTemp(ctx, path.Base(key), out.Body)
	if err != nil {
		return "", nil, err
	}

	s.logger.Debug("fetched S3 object",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.String("path", localPath),
	)

	return localPath, []string{localPath}, nil
}
