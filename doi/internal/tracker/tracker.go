// Package tracker owns the ordered list of supplemental files selected for a DOI,
// their descriptions, their upload handles and the in-flight upload counter.
//
// Every file gets a uuid identity when it is added. Upload completions resolve the
// file by identity rather than by position, so a removal while an upload is still
// running never lets a late result land on the wrong entry.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ImageMarkup/isic/doi/doitypes"
	doierrors "github.com/ImageMarkup/isic/doi/errors"
	"github.com/ImageMarkup/isic/doi/internal/format"
	"github.com/ImageMarkup/isic/upload"
)

// Config configures a Tracker.
type Config struct {
	// Client performs the transfers. Required.
	Client upload.Client

	// Field is the logical field name passed to the client. Defaults to
	// upload.FieldSupplementalFile.
	Field string

	// Limit is the maximum number of files. Defaults to doitypes.MaxSupplementalFiles.
	Limit int

	Logger   *slog.Logger
	Tracer   trace.Tracer
	Observer doitypes.Observer
}

type record struct {
	id          uuid.UUID
	file        upload.File
	description string
	handle      *upload.Handle
	err         error
}

func (r *record) snapshot() doitypes.SelectedFile {
	sf := doitypes.SelectedFile{
		ID:          r.id,
		Name:        r.file.Name(),
		Size:        r.file.Size(),
		ContentType: r.file.ContentType(),
		Description: r.description,
		Err:         r.err,
	}
	if r.handle != nil {
		h := *r.handle
		sf.Handle = &h
	}
	return sf
}

// Tracker is safe for concurrent use.
type Tracker struct {
	client   upload.Client
	field    string
	limit    int
	logger   *slog.Logger
	tracer   trace.Tracer
	observer doitypes.Observer

	mu       sync.Mutex
	records  []*record
	byID     map[uuid.UUID]*record
	inFlight int

	// idle is closed whenever inFlight is zero
	idle chan struct{}
}

// New creates a Tracker.
func New(cfg Config) (*Tracker, error) {
	if cfg.Client == nil {
		return nil, doierrors.NewError("tracker.New", doierrors.ErrInvalidConfig).
			WithMessage("upload client cannot be nil")
	}
	if cfg.Field == "" {
		cfg.Field = upload.FieldSupplementalFile
	}
	if cfg.Limit <= 0 {
		cfg.Limit = doitypes.MaxSupplementalFiles
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("")
	}

	idle := make(chan struct{})
	close(idle)

	return &Tracker{
		client:   cfg.Client,
		field:    cfg.Field,
		limit:    cfg.Limit,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		observer: cfg.Observer,
		byID:     make(map[uuid.UUID]*record),
		idle:     idle,
	}, nil
}

// Add appends file with an empty description and starts its upload in the
// background. When the tracker is full it returns ErrQuotaExceeded and changes
// nothing. ctx governs the transfer.
func (t *Tracker) Add(ctx context.Context, file upload.File) (uuid.UUID, error) {
	if file == nil {
		return uuid.Nil, doierrors.NewError("addFile", doierrors.ErrInvalidInput).
			WithMessage("file cannot be nil")
	}

	t.mu.Lock()
	if len(t.records) >= t.limit {
		t.mu.Unlock()
		return uuid.Nil, doierrors.NewError("addFile", doierrors.ErrQuotaExceeded).
			WithMessage(fmt.Sprintf("You can only upload up to %d supplemental files.", t.limit))
	}

	rec := &record{id: uuid.New(), file: file}
	t.records = append(t.records, rec)
	t.byID[rec.id] = rec
	if t.inFlight == 0 {
		t.idle = make(chan struct{})
	}
	t.inFlight++
	started := rec.snapshot()
	t.mu.Unlock()

	t.logger.Info("upload started",
		"file_id", rec.id.String(),
		"name", file.Name(),
		"size", format.Bytes(file.Size(), format.DefaultDecimals))
	if t.observer != nil {
		t.observer.Started(started)
	}

	go t.transfer(ctx, rec.id, file)

	return rec.id, nil
}

// transfer runs one upload and stores its outcome on the record with the given id.
func (t *Tracker) transfer(ctx context.Context, id uuid.UUID, file upload.File) {
	ctx, span := t.tracer.Start(ctx, "tracker.upload", trace.WithAttributes(
		attribute.String("file.id", id.String()),
		attribute.String("file.name", file.Name()),
		attribute.Int64("file.size", file.Size()),
	))
	defer span.End()

	handle, err := t.client.Upload(ctx, file, t.field)
	if err != nil {
		err = doierrors.NewError("upload", errors.Join(doierrors.ErrUploadFailed, err)).
			WithMessage(fmt.Sprintf("upload of %q failed: %v", file.Name(), err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
	}

	t.mu.Lock()
	t.inFlight--
	if t.inFlight == 0 {
		close(t.idle)
	}
	rec, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		// Removed while the transfer was running.
		t.logger.Debug("discarding upload result for removed file", "file_id", id.String())
		span.SetAttributes(attribute.Bool("file.discarded", true))
		return
	}
	if err != nil {
		rec.err = err
	} else {
		rec.handle = &handle
	}
	snap := rec.snapshot()
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("upload failed", "file_id", id.String(), "name", file.Name(), "error", err)
		if t.observer != nil {
			t.observer.Failed(snap, err)
		}
		return
	}

	t.logger.Info("upload completed", "file_id", id.String(), "name", file.Name())
	if t.observer != nil {
		t.observer.Completed(snap)
	}
}

// Remove deletes the file at index together with its description and handle.
func (t *Tracker) Remove(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.records) {
		return doierrors.NewIndexError("removeFile", index, doierrors.ErrIndexOutOfRange)
	}

	rec := t.records[index]
	delete(t.byID, rec.id)
	t.records = append(t.records[:index], t.records[index+1:]...)
	return nil
}

// RemoveByID deletes the file with the given identity.
func (t *Tracker) RemoveByID(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, rec := range t.records {
		if rec.id == id {
			delete(t.byID, id)
			t.records = append(t.records[:i], t.records[i+1:]...)
			return nil
		}
	}
	return doierrors.NewError("removeFile", doierrors.ErrInvalidInput).
		WithMessage(fmt.Sprintf("no file with id %s", id))
}

// SetDescription replaces the description of the file at index.
func (t *Tracker) SetDescription(index int, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.records) {
		return doierrors.NewIndexError("setFileDescription", index, doierrors.ErrIndexOutOfRange)
	}
	t.records[index].description = text
	return nil
}

// Wait blocks until no upload is in flight or ctx is done. It returns the upload
// errors of the files still tracked, joined.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, rec := range t.records {
		if rec.err != nil {
			errs = append(errs, rec.err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of tracked files.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// InFlight returns the number of uploads that have not resolved yet.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Snapshot returns a copy of every tracked file in order.
func (t *Tracker) Snapshot() []doitypes.SelectedFile {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]doitypes.SelectedFile, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.snapshot()
	}
	return out
}

// Files returns the tracked files in order.
func (t *Tracker) Files() []upload.File {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]upload.File, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.file
	}
	return out
}

// Descriptions returns the descriptions, index-aligned with Files.
func (t *Tracker) Descriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.description
	}
	return out
}

// Handles returns the upload handles, index-aligned with Files. Pending or failed
// uploads are nil.
func (t *Tracker) Handles() []*upload.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*upload.Handle, len(t.records))
	for i, rec := range t.records {
		if rec.handle != nil {
			h := *rec.handle
			out[i] = &h
		}
	}
	return out
}
