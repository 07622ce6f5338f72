package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/nimbusfs/filestore"
)

var (
	errNotOpenedForRead  = errors.New("file not opened for reading")
	errNotOpenedForWrite = errors.New("file not opened for writing")
)

type fileMode int

const (
	modeRead fileMode = iota + 1
	modeWrite
)

// fileState tracks where a File is in its lifecycle so illegal transitions
// (write-after-close, double materialization) are checked in one place.
//
// Read mode:  resolved -> materialized -> closed
// Write mode: open -> dirty -> closed
type fileState int

const (
	stateResolved fileState = iota + 1
	stateMaterialized
	stateOpen
	stateDirty
	stateClosed
)

const (
	opRead  = "READ"
	opClose = "CLOSE"
)

// File is a duplex, file-like session against one object key. In read mode
// the content downloads lazily on first Read and is served from a local
// buffer afterwards. In write mode every Write appends to a local buffer and
// Close performs the single upload.
type File struct {
	fs    *fileSystem
	name  string
	key   string
	mode  fileMode
	state fileState

	attrs  *storage.ObjectAttrs
	reader *bytes.Reader
	buf    bytes.Buffer
}

func newReadFile(fs *fileSystem, name string, attrs *storage.ObjectAttrs) *File {
	return &File{
		fs:    fs,
		name:  name,
		key:   fs.key(name),
		mode:  modeRead,
		state: stateResolved,
		attrs: attrs,
	}
}

func newWriteFile(fs *fileSystem, name string) *File {
	return &File{
		fs:    fs,
		name:  name,
		key:   fs.key(name),
		mode:  modeWrite,
		state: stateOpen,
	}
}

func (f *File) Name() string {
	return f.name
}

// Size returns the remote size in read mode and the buffered length in
// write mode.
func (f *File) Size() int64 {
	if f.mode == modeWrite {
		return int64(f.buf.Len())
	}

	if f.attrs != nil {
		return f.attrs.Size
	}

	return 0
}

// Read serves from the materialized buffer, downloading the full content on
// the first call. Repeated calls exhaust the buffer in order and return
// io.EOF once it is empty.
func (f *File) Read(p []byte) (int, error) {
	if f.mode != modeRead {
		return 0, errNotOpenedForRead
	}

	if f.state == stateClosed {
		return 0, fmt.Errorf("%w: %s", filestore.ErrFileClosed, f.name)
	}

	if f.state == stateResolved {
		if err := f.materialize(); err != nil {
			return 0, err
		}
	}

	return f.reader.Read(p)
}

// materialize issues the session's one download and caches the content.
func (f *File) materialize() error {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opRead, startTime, &st, &msg)

	ctx := context.Background()

	rc, err := f.fs.conn.NewReader(ctx, f.key)
	if err != nil {
		msg = err.Error()
		f.fs.errorf("failed to download %q: %v", f.name, err)

		return err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		msg = err.Error()

		return err
	}

	f.reader = bytes.NewReader(content)
	f.state = stateMaterialized

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("downloaded %d bytes for %q", len(content), f.name)

	return nil
}

// Write appends to the local buffer; no network I/O happens until Close.
func (f *File) Write(p []byte) (int, error) {
	if f.mode != modeWrite {
		return 0, errNotOpenedForWrite
	}

	if f.state == stateClosed {
		return 0, fmt.Errorf("%w: %s", filestore.ErrFileClosed, f.name)
	}

	n, err := f.buf.Write(p)
	if err != nil {
		return n, err
	}

	f.state = stateDirty

	return n, nil
}

// Close releases the session. In write mode it performs the session's one
// upload, including for an untouched buffer: an empty write is a valid
// object. A failed upload leaves the buffer intact and the file open so the
// caller can retry; closing an already closed file is a no-op.
func (f *File) Close() error {
	if f.state == stateClosed {
		return nil
	}

	if f.mode == modeRead {
		f.reader = nil
		f.state = stateClosed

		return nil
	}

	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opClose, startTime, &st, &msg)

	params := &UploadParams{
		Rewind:        true,
		Size:          -1,
		ContentType:   contentTypeFor(f.key),
		CacheControl:  f.fs.config.CacheControl,
		PredefinedACL: f.fs.config.DefaultACL,
		ChunkSize:     f.fs.config.BlobChunkSize,
	}

	ctx := context.Background()

	if err := f.fs.conn.Upload(ctx, f.key, bytes.NewReader(f.buf.Bytes()), params); err != nil {
		msg = err.Error()
		f.fs.errorf("failed to flush %q: %v", f.name, err)

		return err
	}

	f.state = stateClosed

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("flushed %d bytes for %q", f.buf.Len(), f.name)

	return nil
}

func (f *File) observe(operation string, startTime time.Time, status, message *string) {
	filestore.ObserveOperation(&filestore.OperationObservability{
		Context:   context.Background(),
		Logger:    f.fs.logger,
		Metrics:   f.fs.metrics,
		Operation: operation,
		Location:  f.fs.config.BucketName,
		Provider:  "GCS",
		StartTime: startTime,
		Status:    status,
		Message:   message,
	})
}
