package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
	"github.com/kondrei/TalkieMartin-BE/pkg/observability"
)

// S3API is the subset of the S3 client used by the store
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// PresignAPI signs GET requests
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// DeleteObjects accepts at most 1000 keys per call
const maxDeleteBatch = 1000

// Options configures an ObjectStore
type Options struct {
	URLTTL            time.Duration
	UploadConcurrency int
}

// DefaultOptions returns the store defaults
func DefaultOptions() Options {
	return Options{
		URLTTL:            time.Hour,
		UploadConcurrency: 8,
	}
}

// ObjectStore implements ports.ObjectStore on S3. It holds no per-request
// state and is shared by all requests.
type ObjectStore struct {
	client    S3API
	presigner PresignAPI
	opts      Options
	tracer    *observability.Tracer
	logger    *zap.Logger
}

// NewObjectStore creates a new S3 object store
func NewObjectStore(client S3API, presigner PresignAPI, opts Options, tracer *observability.Tracer, logger *zap.Logger) *ObjectStore {
	defaults := DefaultOptions()
	if opts.URLTTL <= 0 {
		opts.URLTTL = defaults.URLTTL
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = defaults.UploadConcurrency
	}
	return &ObjectStore{
		client:    client,
		presigner: presigner,
		opts:      opts,
		tracer:    tracer,
		logger:    logger,
	}
}

// UploadFiles puts every object concurrently. The first failure cancels the
// uploads still in flight; objects already written are left for the caller
// to delete.
func (s *ObjectStore) UploadFiles(ctx context.Context, bucket string, objects []ports.Object) error {
	return s.tracer.TraceFunction(ctx, "s3.UploadFiles", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.UploadConcurrency)

		for _, obj := range objects {
			g.Go(func() error {
				_, err := s.client.PutObject(gctx, &s3.PutObjectInput{
					Bucket:        aws.String(bucket),
					Key:           aws.String(obj.Key),
					Body:          bytes.NewReader(obj.Body),
					ContentType:   aws.String(obj.ContentType),
					ContentLength: aws.Int64(int64(len(obj.Body))),
				})
				if err != nil {
					s.logger.Warn("Failed to upload object",
						zap.String("bucket", bucket),
						zap.String("key", obj.Key),
						zap.Error(err),
					)
					return errors.NewUploadError(err).WithDetail("key", obj.Key)
				}
				return nil
			})
		}

		return g.Wait()
	})
}

// DeleteFiles removes keys in batches. A key S3 reports as failed fails the
// whole call; keys that do not exist are deleted silently by S3.
func (s *ObjectStore) DeleteFiles(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.tracer.TraceFunction(ctx, "s3.DeleteFiles", func(ctx context.Context) error {
		for start := 0; start < len(keys); start += maxDeleteBatch {
			end := min(start+maxDeleteBatch, len(keys))

			ids := make([]types.ObjectIdentifier, 0, end-start)
			for _, key := range keys[start:end] {
				ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
			}

			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("failed to delete objects: %w", err)
			}
			if len(out.Errors) > 0 {
				failed := make([]string, 0, len(out.Errors))
				for _, e := range out.Errors {
					failed = append(failed, aws.ToString(e.Key))
				}
				s.logger.Warn("S3 rejected object deletes",
					zap.String("bucket", bucket),
					zap.Strings("keys", failed),
					zap.String("code", aws.ToString(out.Errors[0].Code)),
				)
				return fmt.Errorf("failed to delete %d objects: %s", len(failed), aws.ToString(out.Errors[0].Message))
			}
		}
		return nil
	})
}

// DownloadURL presigns a GET for key valid for the configured TTL
func (s *ObjectStore) DownloadURL(ctx context.Context, bucket, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.opts.URLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// URLTTL is the lifetime of URLs returned by DownloadURL
func (s *ObjectStore) URLTTL() time.Duration {
	return s.opts.URLTTL
}
