// Package testutil provides mocks for the S3 upload backend.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ImageMarkup/isic/upload/s3/internal/s3api"
)

// MockS3Client is a mock implementation of the S3API interface for testing.
// Unset function fields fall back to an in-memory object store, so a test only
// overrides the calls it wants to fail or inspect.
type MockS3Client struct {
	PutObjectFunc               func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)

	mu       sync.Mutex
	Objects  map[string][]byte
	Inputs   []*s3.PutObjectInput
	Creates  []*s3.CreateMultipartUploadInput
	parts    map[string]map[int32][]byte
	Aborted  []string
	uploadID int
}

var _ s3api.S3API = (*MockS3Client)(nil)

// NewMockS3Client creates a mock backed by an empty in-memory store.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		Objects: make(map[string][]byte),
		parts:   make(map[string]map[int32][]byte),
	}
}

// Object returns the stored bytes of bucket/key.
func (m *MockS3Client) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[bucket+"/"+key]
	return data, ok
}

// PutObject mocks the S3 PutObject operation.
func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inputs = append(m.Inputs, params)
	m.Objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{ETag: aws.String(`"put-etag"`), VersionId: aws.String("v1")}, nil
}

// CreateMultipartUpload mocks the S3 CreateMultipartUpload operation.
func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadID++
	id := fmt.Sprintf("upload-%d", m.uploadID)
	m.Creates = append(m.Creates, params)
	m.parts[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

// UploadPart mocks the S3 UploadPart operation.
func (m *MockS3Client) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params, optFns...)
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.parts[aws.ToString(params.UploadId)]
	if !ok {
		return nil, fmt.Errorf("unknown upload id %q", aws.ToString(params.UploadId))
	}
	n := aws.ToInt32(params.PartNumber)
	parts[n] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf(`"part-%d"`, n))}, nil
}

// CompleteMultipartUpload mocks the S3 CompleteMultipartUpload operation.
func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(params.UploadId)
	parts, ok := m.parts[id]
	if !ok {
		return nil, fmt.Errorf("unknown upload id %q", id)
	}

	numbers := make([]int, 0, len(params.MultipartUpload.Parts))
	for _, p := range params.MultipartUpload.Parts {
		numbers = append(numbers, int(aws.ToInt32(p.PartNumber)))
	}
	sort.Ints(numbers)

	var data []byte
	for _, n := range numbers {
		data = append(data, parts[int32(n)]...)
	}
	m.Objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	delete(m.parts, id)
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"multipart-etag"`)}, nil
}

// AbortMultipartUpload mocks the S3 AbortMultipartUpload operation.
func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(params.UploadId)
	m.Aborted = append(m.Aborted, id)
	delete(m.parts, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}
