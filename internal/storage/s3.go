package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"thumbsync/internal/logging"
)

// S3Config configures the S3 backend. Endpoint is optional and is used for
// MinIO and other S3-compatible services.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// s3API is the subset of *s3.Client used outside the upload manager.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Uploader is satisfied by *manager.Uploader.
type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Backend stores thumbnails in an S3 bucket.
type S3Backend struct {
	client   s3API
	uploader s3Uploader
	bucket   string
	prefix   string
}

// NewS3Backend loads AWS configuration and builds the client. Static
// credentials are used when AccessKey is set, otherwise the default chain.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket not configured")
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logging.Info("S3 thumbnail storage: bucket=%s prefix=%q endpoint=%q", cfg.Bucket, cfg.Prefix, cfg.Endpoint)
	return newS3Backend(client, manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

func newS3Backend(client s3API, uploader s3Uploader, bucket, prefix string) *S3Backend {
	return &S3Backend{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Type implements Backend.
func (b *S3Backend) Type() string {
	return "s3"
}

func (b *S3Backend) key(relPath string) (string, error) {
	clean, err := CleanPath(relPath)
	if err != nil {
		return "", err
	}
	if b.prefix == "" {
		return clean, nil
	}
	return b.prefix + "/" + clean, nil
}

// Save uploads data and returns the object location.
func (b *S3Backend) Save(ctx context.Context, relPath string, data []byte, contentType string) (string, error) {
	start := time.Now()
	key, err := b.key(relPath)
	if err != nil {
		return "", observe("s3", "save", start, err)
	}

	out, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", observe("s3", "save", start, fmt.Errorf("upload %s: %w", key, err))
	}

	location := out.Location
	if location == "" {
		location = "s3://" + b.bucket + "/" + key
	}
	logging.Debug("S3 put object %s (%d bytes)", key, len(data))
	return location, observe("s3", "save", start, nil)
}

// Exists implements Backend using HeadObject.
func (b *S3Backend) Exists(ctx context.Context, relPath string) (bool, error) {
	start := time.Now()
	key, err := b.key(relPath)
	if err != nil {
		return false, observe("s3", "exists", start, err)
	}

	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, observe("s3", "exists", start, nil)
		}
		return false, observe("s3", "exists", start, fmt.Errorf("head %s: %w", key, err))
	}
	return true, observe("s3", "exists", start, nil)
}

// Delete implements Backend.
func (b *S3Backend) Delete(ctx context.Context, relPath string) error {
	start := time.Now()
	key, err := b.key(relPath)
	if err != nil {
		return observe("s3", "delete", start, err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return observe("s3", "delete", start, fmt.Errorf("delete %s: %w", key, err))
	}
	return observe("s3", "delete", start, nil)
}

// ClearAll deletes every object under the prefix, one listing page at a
// time, and returns the number deleted.
func (b *S3Backend) ClearAll(ctx context.Context) (int, error) {
	start := time.Now()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(b.bucket)}
	if b.prefix != "" {
		input.Prefix = aws.String(b.prefix + "/")
	}

	deleted := 0
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, observe("s3", "clear", start, fmt.Errorf("list objects: %w", err))
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}

		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, observe("s3", "clear", start, fmt.Errorf("delete objects: %w", err))
		}
		deleted += len(ids) - len(out.Errors)
		for _, e := range out.Errors {
			logging.Warn("S3 delete failed for %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}

	logging.Info("Cleared %d thumbnails from s3://%s/%s", deleted, b.bucket, b.prefix)
	return deleted, observe("s3", "clear", start, nil)
}
