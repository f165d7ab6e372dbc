package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"spreadsheet-data-cleaner/internal/models"
)

// XLSXContentType is the MIME type of an xlsx workbook
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// s3API is the subset of the S3 client used here
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client archives cleaning inputs and outputs in a bucket
type S3Client struct {
	client     s3API
	bucketName string
	region     string
}

// S3Config holds configuration for S3 client
type S3Config struct {
	BucketName string
	Region     string
	Profile    string // AWS profile to use
}

// S3UploadResult represents the result of an S3 upload operation
type S3UploadResult struct {
	Key         string    `json:"key"`
	ETag        string    `json:"etag"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ContentType string    `json:"content_type"`
	PublicURL   string    `json:"public_url"`
}

// NewS3ClientWithConfig creates an S3 client with AWS SDK v2
func NewS3ClientWithConfig(ctx context.Context, s3Config S3Config) (*S3Client, error) {
	if s3Config.BucketName == "" {
		return nil, fmt.Errorf("%w: S3 bucket name is empty", models.ErrNotConfigured)
	}

	var opts []func(*config.LoadOptions) error
	if s3Config.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(s3Config.Profile))
	}
	if s3Config.Region != "" {
		opts = append(opts, config.WithRegion(s3Config.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3ClientFromAPI(s3.NewFromConfig(cfg), s3Config.BucketName, cfg.Region), nil
}

// NewS3ClientFromAPI wraps an existing S3 API implementation
func NewS3ClientFromAPI(api s3API, bucketName, region string) *S3Client {
	return &S3Client{
		client:     api,
		bucketName: bucketName,
		region:     region,
	}
}

// WithBucket returns a client for another bucket sharing the same connection
func (s *S3Client) WithBucket(bucketName string) *S3Client {
	if bucketName == "" || bucketName == s.bucketName {
		return s
	}
	return NewS3ClientFromAPI(s.client, bucketName, s.region)
}

// UploadFile uploads a local file to key
func (s *S3Client) UploadFile(ctx context.Context, key, path, contentType string) (*S3UploadResult, error) {
	key = strings.TrimPrefix(key, "/")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for upload: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"uploaded-by": "spreadsheet-data-cleaner",
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	etag := ""
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, `"`)
	}

	return &S3UploadResult{
		Key:         key,
		ETag:        etag,
		Size:        info.Size(),
		UploadedAt:  time.Now(),
		ContentType: contentType,
		PublicURL:   s.GetPublicURL(key),
	}, nil
}

// DownloadFile writes the object at key to a local path
func (s *S3Client) DownloadFile(ctx context.Context, key, path string) error {
	key = strings.TrimPrefix(key, "/")

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return models.NewNotFoundError("object", key)
		}
		return fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, result.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return out.Close()
}

// ArchiveRun uploads each named local file under runs/{run_id}/ and returns
// the object keys in the order given
func (s *S3Client) ArchiveRun(ctx context.Context, runID string, paths []string) ([]string, error) {
	prefix := models.RunArchivePrefix(runID)
	keys := make([]string, 0, len(paths))
	for _, path := range paths {
		key := prefix + filepath.Base(path)
		if _, err := s.UploadFile(ctx, key, path, XLSXContentType); err != nil {
			return keys, fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// GetBucketName returns the configured bucket name
func (s *S3Client) GetBucketName() string {
	return s.bucketName
}

// GetPublicURL generates the public URL for an S3 object
func (s *S3Client) GetPublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, key)
}
