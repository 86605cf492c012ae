package training_agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/go-multierror"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

const (
	defaultPartSizeMB  = 16
	defaultConcurrency = 4
	maxRetries         = 3
)

// Uploader copies finished run artifacts to object storage.
type Uploader interface {
	UploadDir(ctx context.Context, dir, prefix string) error
	UploadFile(ctx context.Context, file, key string) error
}

// objectPutter is the part of manager.Uploader the S3 uploader uses.
type objectPutter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader uploads local files from fs into one bucket.
type S3Uploader struct {
	fs       afero.Fs
	bucket   string
	prefix   string
	timeout  time.Duration
	uploader objectPutter
	logger   logging.Interface
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context, fs afero.Fs, config UploadConfig, logger logging.Interface) (*S3Uploader, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	awsCfg.RetryMode = aws.RetryModeStandard
	awsCfg.RetryMaxAttempts = maxRetries

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = !strings.Contains(config.Endpoint, "amazonaws.com")
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = defaultPartSizeMB * 1024 * 1024
		u.Concurrency = defaultConcurrency
	})

	logger.WithField("bucket", config.Bucket).
		WithField("prefix", config.Prefix).
		WithField("region", config.Region).
		Info("S3 uploader initialized")

	return newS3Uploader(fs, config, uploader, logger), nil
}

func newS3Uploader(fs afero.Fs, config UploadConfig, putter objectPutter, logger logging.Interface) *S3Uploader {
	return &S3Uploader{
		fs:       fs,
		bucket:   config.Bucket,
		prefix:   strings.Trim(config.Prefix, "/"),
		timeout:  config.Timeout,
		uploader: putter,
		logger:   logger,
	}
}

// Key returns the object key of a path relative to the run prefix.
func (u *S3Uploader) Key(rel string) string {
	rel = filepath.ToSlash(rel)
	if u.prefix == "" {
		return rel
	}
	return path.Join(u.prefix, rel)
}

// UploadDir uploads every regular file below dir under prefix. All files are
// attempted; the failures are returned together.
func (u *S3Uploader) UploadDir(ctx context.Context, dir, prefix string) error {
	var files []string
	err := afero.Walk(u.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	var result *multierror.Error
	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := u.UploadFile(ctx, file, path.Join(prefix, filepath.ToSlash(rel))); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// UploadFile uploads one local file to the run relative key.
func (u *S3Uploader) UploadFile(ctx context.Context, file, key string) error {
	f, err := u.fs.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	objectKey := u.Key(key)
	if _, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(objectKey),
		Body:   f,
	}); err != nil {
		return wrapUploadError(err, fmt.Sprintf("uploading s3://%s/%s", u.bucket, objectKey))
	}

	u.logger.Debugf("Uploaded %s to s3://%s/%s", file, u.bucket, objectKey)
	return nil
}

// wrapUploadError adds the S3 error code to err when the service sent one.
func wrapUploadError(err error, msg string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return fmt.Errorf("%s: bucket not found: %w", msg, err)
		case "AccessDenied":
			return fmt.Errorf("%s: access denied: %w", msg, err)
		default:
			return fmt.Errorf("%s: %s: %w", msg, apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
