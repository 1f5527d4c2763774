// Package uploader sends objects to S3, switching to a concurrent multipart
// upload once the object reaches the configured threshold.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/ImageMarkup/isic/upload/s3/errors"
	"github.com/ImageMarkup/isic/upload/s3/internal/s3api"
)

// S3 multipart limits.
const (
	MinPartSize = 5 * 1024 * 1024
	MaxParts    = 10000
)

// Defaults used when Config leaves a field at zero.
const (
	DefaultPartSize           = 8 * 1024 * 1024
	DefaultConcurrency        = 5
	DefaultMultipartThreshold = 16 * 1024 * 1024
)

// SSE selects server-side encryption.
type SSE struct {
	// Type is "AES256" or "aws:kms"
	Type string

	// KMSKeyID is the key for "aws:kms"; empty uses the bucket default
	KMSKeyID string
}

// Config tunes an Uploader.
type Config struct {
	PartSize           int64
	Concurrency        int
	MultipartThreshold int64
}

// Input describes one object.
type Input struct {
	Bucket       string
	Key          string
	ContentType  string
	StorageClass string
	Metadata     map[string]string
	SSE          *SSE
}

// Result describes a stored object.
type Result struct {
	Key       string
	Size      int64
	ETag      string
	VersionID string
	Parts     int
	Duration  time.Duration
}

// Uploader handles S3 upload operations with automatic multipart detection.
type Uploader struct {
	s3Client    s3api.S3API
	partSize    int64
	concurrency int
	threshold   int64
}

// New creates a new Uploader instance.
func New(s3Client s3api.S3API, cfg Config) *Uploader {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MultipartThreshold <= 0 {
		cfg.MultipartThreshold = DefaultMultipartThreshold
	}
	return &Uploader{
		s3Client:    s3Client,
		partSize:    cfg.PartSize,
		concurrency: cfg.Concurrency,
		threshold:   cfg.MultipartThreshold,
	}
}

// Upload stores size bytes read from r.
func (u *Uploader) Upload(ctx context.Context, in Input, r io.Reader, size int64) (*Result, error) {
	start := time.Now()

	if size < u.threshold {
		data, err := io.ReadAll(io.LimitReader(r, size))
		if err != nil {
			return nil, errors.NewError("upload", err).WithBucket(in.Bucket).WithKey(in.Key)
		}
		if int64(len(data)) != size {
			return nil, errors.NewError("upload", errors.ErrInvalidInput).
				WithBucket(in.Bucket).WithKey(in.Key).
				WithMessage(fmt.Sprintf("read %d bytes, expected %d", len(data), size))
		}
		return u.uploadSimple(ctx, in, data, start)
	}

	return u.uploadMultipart(ctx, in, r, size, start)
}

// PartSizeFor returns the part size used for an object of size bytes, grown when
// the configured size would need more than MaxParts parts.
func (u *Uploader) PartSizeFor(size int64) int64 {
	partSize := max(u.partSize, MinPartSize)
	if size > partSize*MaxParts {
		partSize = (size + MaxParts - 1) / MaxParts
	}
	return partSize
}

// uploadSimple performs a simple (non-multipart) S3 upload.
func (u *Uploader) uploadSimple(ctx context.Context, in Input, data []byte, start time.Time) (*Result, error) {
	size := int64(len(data))

	input := &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(size),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if in.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(in.StorageClass)
	}
	if len(in.Metadata) > 0 {
		input.Metadata = in.Metadata
	}
	if in.SSE != nil {
		input.ServerSideEncryption, input.SSEKMSKeyId = sseParams(in.SSE)
	}

	output, err := u.s3Client.PutObject(ctx, input)
	if err != nil {
		return nil, errors.NewError("putObject", err).WithBucket(in.Bucket).WithKey(in.Key)
	}

	return &Result{
		Key:       in.Key,
		Size:      size,
		ETag:      aws.ToString(output.ETag),
		VersionID: aws.ToString(output.VersionId),
		Parts:     1,
		Duration:  time.Since(start),
	}, nil
}

// uploadMultipart splits r into parts and uploads up to u.concurrency of them at
// once. Parts are read sequentially, so at most concurrency+1 parts are buffered.
func (u *Uploader) uploadMultipart(
	ctx context.Context,
	in Input,
	r io.Reader,
	size int64,
	start time.Time,
) (*Result, error) {
	createInput := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
	}
	if in.ContentType != "" {
		createInput.ContentType = aws.String(in.ContentType)
	}
	if in.StorageClass != "" {
		createInput.StorageClass = awstypes.StorageClass(in.StorageClass)
	}
	if len(in.Metadata) > 0 {
		createInput.Metadata = in.Metadata
	}
	if in.SSE != nil {
		createInput.ServerSideEncryption, createInput.SSEKMSKeyId = sseParams(in.SSE)
	}

	createOutput, err := u.s3Client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return nil, errors.NewError("createMultipartUpload", err).WithBucket(in.Bucket).WithKey(in.Key)
	}
	uploadID := aws.ToString(createOutput.UploadId)

	partSize := u.PartSizeFor(size)
	count := int((size + partSize - 1) / partSize)
	completed := make([]awstypes.CompletedPart, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	var readErr error
	remaining := size
	for i := 0; i < count; i++ {
		n := min(partSize, remaining)
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			readErr = fmt.Errorf("read part %d: %w", i+1, err)
			break
		}
		remaining -= n
		if gctx.Err() != nil {
			break
		}

		partNumber := int32(i + 1)
		g.Go(func() error {
			out, err := u.s3Client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(in.Bucket),
				Key:           aws.String(in.Key),
				UploadId:      aws.String(uploadID),
				PartNumber:    aws.Int32(partNumber),
				Body:          bytes.NewReader(buf),
				ContentLength: aws.Int64(int64(len(buf))),
			})
			if err != nil {
				return fmt.Errorf("part %d: %w", partNumber, err)
			}
			completed[partNumber-1] = awstypes.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(partNumber),
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = readErr
	}
	if err != nil {
		u.abortMultipartUpload(ctx, in.Bucket, in.Key, uploadID)
		return nil, errors.NewError("uploadPart", err).WithBucket(in.Bucket).WithKey(in.Key)
	}

	completeOutput, err := u.s3Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(in.Bucket),
		Key:             aws.String(in.Key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		u.abortMultipartUpload(ctx, in.Bucket, in.Key, uploadID)
		return nil, errors.NewError("completeMultipartUpload", err).WithBucket(in.Bucket).WithKey(in.Key)
	}

	return &Result{
		Key:       in.Key,
		Size:      size,
		ETag:      aws.ToString(completeOutput.ETag),
		VersionID: aws.ToString(completeOutput.VersionId),
		Parts:     count,
		Duration:  time.Since(start),
	}, nil
}

// abortMultipartUpload cleans up a failed multipart upload, even when ctx was
// cancelled.
func (u *Uploader) abortMultipartUpload(ctx context.Context, bucket, key, uploadID string) {
	abortInput := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}
	// Ignore errors during cleanup
	_, _ = u.s3Client.AbortMultipartUpload(context.WithoutCancel(ctx), abortInput)
}

func sseParams(sse *SSE) (awstypes.ServerSideEncryption, *string) {
	switch sse.Type {
	case "aws:kms":
		if sse.KMSKeyID != "" {
			return awstypes.ServerSideEncryptionAwsKms, aws.String(sse.KMSKeyID)
		}
		return awstypes.ServerSideEncryptionAwsKms, nil
	default:
		return awstypes.ServerSideEncryptionAes256, nil
	}
}
