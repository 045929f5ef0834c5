// Package s3store implements the object store interface against Amazon S3
// and S3-compatible endpoints.
package s3store

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
	"github.com/parakeet-ml/ckptsync/store"
)

// listPageSize is the maximum number of keys requested per listing page.
const listPageSize = 1000

// Config holds the settings for connecting to an S3 bucket.
type Config struct {
	// Bucket is the bucket holding checkpoint objects (required)
	Bucket string

	// Region is the AWS region; falls back to the environment when empty
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible stores
	Endpoint string

	// AccessKey and SecretKey are explicit static credentials. When both are
	// set they take precedence over CredentialsFile and the default chain.
	AccessKey string
	SecretKey string

	// CredentialsFile is an explicit shared-credentials file. When set it
	// takes precedence over the default provider chain.
	CredentialsFile string

	// Profile selects a named profile inside CredentialsFile
	Profile string

	// ForcePathStyle enables path-style addressing, needed by MinIO and
	// most other S3-compatible endpoints
	ForcePathStyle bool

	// MaxRetries overrides the SDK retry limit when positive
	MaxRetries int
}

// Store is an S3-backed object store.
type Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
}

// New creates a Store from the given configuration. Credentials resolve
// from the explicit credentials file when one is configured, otherwise from
// the default provider chain (environment, shared config, instance role).
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, syncerrors.NewError("s3store", syncerrors.ErrInvalidInput).
			WithMessage("bucket cannot be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	case cfg.CredentialsFile != "":
		opts = append(opts, awsconfig.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
		if cfg.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, syncerrors.NewError("s3store", err).
			WithMessage("loading AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithClient(client, cfg.Bucket), nil
}

// NewWithClient creates a Store around an existing S3 client. Intended for
// tests and callers that manage their own SDK configuration.
func NewWithClient(client S3API, bucket string) *Store {
	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

// List streams all objects under prefix, following continuation tokens
// until the listing is exhausted. A listing failure is delivered as a final
// entry with Err set.
func (s *Store) List(ctx context.Context, prefix string) <-chan store.Entry {
	ch := make(chan store.Entry)

	go func() {
		defer close(ch)

		var token *string
		for {
			out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				Prefix:            aws.String(prefix),
				MaxKeys:           aws.Int32(listPageSize),
				ContinuationToken: token,
			})
			if err != nil {
				entry := store.Entry{
					Err: syncerrors.NewError("list", syncerrors.ErrRemoteTransport).
						WithMessage("listing bucket " + s.bucket + ": " + err.Error()),
				}
				select {
				case ch <- entry:
				case <-ctx.Done():
				}
				return
			}

			for _, obj := range out.Contents {
				entry := store.Entry{Object: ckpttypes.Object{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
					ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				}}
				select {
				case ch <- entry:
				case <-ctx.Done():
					return
				}
			}

			if !aws.ToBool(out.IsTruncated) {
				return
			}
			token = out.NextContinuationToken
		}
	}()

	return ch
}

// Download streams the object at key into w.
func (s *Store) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, syncerrors.NewKeyError("download", key, syncerrors.ErrRemoteNotFound)
		}
		return 0, syncerrors.NewKeyError("download", key, syncerrors.ErrRemoteTransport).
			WithMessage(err.Error())
	}
	defer func() { _ = out.Body.Close() }()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, syncerrors.NewKeyError("download", key, syncerrors.ErrLocalWrite).
			WithMessage("writing payload: " + err.Error())
	}
	return n, nil
}

// Upload stores the payload read from r under key using the transfer
// manager, which switches to multipart automatically for large payloads.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return syncerrors.NewKeyError("upload", key, syncerrors.ErrRemoteTransport).
			WithMessage(err.Error())
	}
	return nil
}

// isNotFound reports whether an S3 error means the key does not exist.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound")
}
