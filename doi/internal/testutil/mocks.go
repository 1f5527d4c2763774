// Package testutil provides test doubles for the DOI workflow.
package testutil

import (
	"context"
	"sync"

	"github.com/ImageMarkup/isic/doi/doitypes"
	"github.com/ImageMarkup/isic/upload"
)

// MockUploadClient is a mock implementation of upload.Client.
type MockUploadClient struct {
	UploadFunc func(ctx context.Context, file upload.File, field string) (upload.Handle, error)

	mu     sync.Mutex
	calls  []string
	fields []string
}

// Upload implements upload.Client.
func (m *MockUploadClient) Upload(ctx context.Context, file upload.File, field string) (upload.Handle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, file.Name())
	m.fields = append(m.fields, field)
	m.mu.Unlock()

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, file, field)
	}
	return upload.Handle{Value: "signed:" + file.Name()}, nil
}

// Calls returns the names of the uploaded files in call order.
func (m *MockUploadClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Fields returns the field names passed to Upload in call order.
func (m *MockUploadClient) Fields() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fields...)
}

// GatedUploadClient holds every upload until it is released by file name.
type GatedUploadClient struct {
	mu      sync.Mutex
	gates   map[string]chan result
	started chan string
}

type result struct {
	handle upload.Handle
	err    error
}

// NewGatedUploadClient creates a GatedUploadClient. Started reports each upload
// as soon as it blocks.
func NewGatedUploadClient() *GatedUploadClient {
	return &GatedUploadClient{
		gates:   make(map[string]chan result),
		started: make(chan string, 64),
	}
}

func (g *GatedUploadClient) gate(name string) chan result {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[name]
	if !ok {
		ch = make(chan result, 1)
		g.gates[name] = ch
	}
	return ch
}

// Upload implements upload.Client.
func (g *GatedUploadClient) Upload(ctx context.Context, file upload.File, _ string) (upload.Handle, error) {
	ch := g.gate(file.Name())
	g.started <- file.Name()

	select {
	case r := <-ch:
		return r.handle, r.err
	case <-ctx.Done():
		return upload.Handle{}, ctx.Err()
	}
}

// Started returns the channel of started upload names.
func (g *GatedUploadClient) Started() <-chan string {
	return g.started
}

// Release completes the upload of name with handle value.
func (g *GatedUploadClient) Release(name, value string) {
	g.gate(name) <- result{handle: upload.Handle{Value: value}}
}

// Fail completes the upload of name with err.
func (g *GatedUploadClient) Fail(name string, err error) {
	g.gate(name) <- result{err: err}
}

// RecordingObserver records observer callbacks.
type RecordingObserver struct {
	mu        sync.Mutex
	Started   []string
	Completed []string
	Failed    []string
}

// Observer returns a doitypes.Observer backed by r.
func (r *RecordingObserver) Observer() doitypes.Observer {
	return recordingObserver{r}
}

// Snapshot returns copies of the recorded names.
func (r *RecordingObserver) Snapshot() (started, completed, failed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Started...),
		append([]string(nil), r.Completed...),
		append([]string(nil), r.Failed...)
}

type recordingObserver struct{ r *RecordingObserver }

func (o recordingObserver) Started(f doitypes.SelectedFile) {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	o.r.Started = append(o.r.Started, f.Name)
}

func (o recordingObserver) Completed(f doitypes.SelectedFile) {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	o.r.Completed = append(o.r.Completed, f.Name)
}

func (o recordingObserver) Failed(f doitypes.SelectedFile, _ error) {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	o.r.Failed = append(o.r.Failed, f.Name)
}
