// Package gcs adapts the filestore contract to Google Cloud Storage.
//
// Reads materialize lazily: opening a file costs one metadata lookup and the
// first Read issues exactly one full download. Writes buffer locally and
// flush to the bucket exactly once, on Close. Transient-failure retries are
// delegated to the SDK's retry policy, applied uniformly to every
// data-moving call.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nimbusfs/filestore"
)

const (
	opConnect       = "CONNECT"
	opOpen          = "OPEN"
	opSave          = "SAVE"
	opDelete        = "DELETE"
	opExists        = "EXISTS"
	opListDir       = "LISTDIR"
	opSize          = "SIZE"
	opURL           = "URL"
	opModifiedTime  = "MODIFIED_TIME"
	opCreatedTime   = "CREATED_TIME"
	opAvailableName = "AVAILABLE_NAME"
)

var errNotConnected = errors.New("gcs backend is not connected")

type fileSystem struct {
	conn    ObjectStore
	config  *Config
	zone    *time.Location
	logger  Logger
	metrics Metrics
}

// New creates a GCS storage backend from config. Configuration problems,
// including a root location with a leading slash, are reported here rather
// than at call time.
func New(config *Config) (filestore.StorageProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", errInvalidConfig)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	zone, err := time.LoadLocation(config.zoneName())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", errInvalidTimeZone, config.TimeZone, err)
	}

	return &fileSystem{config: config, zone: zone}, nil
}

// UseLogger sets the Logger interface for the GCS backend.
func (f *fileSystem) UseLogger(logger any) {
	if l, ok := logger.(Logger); ok {
		f.logger = l
	}
}

// UseMetrics sets the Metrics interface.
func (f *fileSystem) UseMetrics(metrics any) {
	if m, ok := metrics.(Metrics); ok {
		f.metrics = m
	}
}

func (f *fileSystem) Connect() error {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opConnect, startTime, &st, &msg)

	if f.metrics != nil {
		f.metrics.NewHistogram(
			filestore.AppFileStats,
			"App GCS Stats - duration of file operations",
			filestore.DefaultHistogramBuckets()...,
		)
	}

	f.debugf("connecting to GCS bucket: %s", f.config.BucketName)

	ctx := context.Background()

	var (
		client *storage.Client
		err    error
	)

	switch {
	case f.config.EndPoint != "":
		// Local emulator mode
		client, err = storage.NewClient(
			ctx,
			option.WithEndpoint(f.config.EndPoint),
			option.WithoutAuthentication(),
		)

	case f.config.CredentialsJSON != "":
		// Direct JSON mode
		client, err = storage.NewClient(
			ctx,
			option.WithCredentialsJSON([]byte(f.config.CredentialsJSON)),
		)

	default:
		// Env var mode (GOOGLE_APPLICATION_CREDENTIALS)
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		msg = err.Error()
		f.errorf("failed to connect to GCS: %v", err)

		return err
	}

	// RetryAlways makes download, upload and delete share one retry policy;
	// this layer adds no retry loop of its own.
	bucket := client.Bucket(f.config.BucketName).Retryer(storage.WithPolicy(storage.RetryAlways))

	f.conn = &bucketStore{
		client: client,
		bucket: bucket,
		name:   f.config.BucketName,
	}

	st = filestore.StatusSuccess
	msg = "GCS client connected"

	f.logf("connected to GCS bucket %s", f.config.BucketName)

	return nil
}

// key joins the configured root location with name into the object key.
// Separators are de-duplicated; nothing else is rewritten, so multi-byte
// names round-trip exactly and ".." segments are left alone.
func (f *fileSystem) key(name string) string {
	return normalizeKey(f.config.Location, name)
}

func normalizeKey(root, name string) string {
	name = strings.TrimPrefix(name, "/")

	if root == "" {
		return name
	}

	return strings.TrimSuffix(root, "/") + "/" + name
}

func (f *fileSystem) Open(name string) (filestore.File, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opOpen, startTime, &st, &msg)

	if f.conn == nil {
		return nil, errNotConnected
	}

	ctx := context.Background()

	attrs, err := f.conn.StatObject(ctx, f.key(name), f.config.BlobChunkSize)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			msg = "file not found"

			return nil, fmt.Errorf("%w: %s", filestore.ErrFileNotFound, name)
		}

		msg = err.Error()
		f.errorf("failed to stat %q: %v", name, err)

		return nil, err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("file %q opened for read", name)

	return newReadFile(f, name, attrs), nil
}

func (f *fileSystem) OpenFile(name string, flag int, _ fs.FileMode) (filestore.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return f.Open(name)
	}

	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opOpen, startTime, &st, &msg)

	if f.conn == nil {
		return nil, errNotConnected
	}

	ctx := context.Background()

	// An existing object is looked up so the handle carries the configured
	// chunk-size hint; a missing one is fine, the upload creates it.
	_, err := f.conn.StatObject(ctx, f.key(name), f.config.BlobChunkSize)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		msg = err.Error()

		return nil, err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("file %q opened for write", name)

	return newWriteFile(f, name), nil
}

func (f *fileSystem) Save(name string, content io.Reader) (string, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opSave, startTime, &st, &msg)

	if f.conn == nil {
		return "", errNotConnected
	}

	name, err := f.AvailableName(name)
	if err != nil {
		msg = err.Error()

		return "", err
	}

	params := &UploadParams{
		ContentType:   contentTypeFor(name),
		CacheControl:  f.config.CacheControl,
		PredefinedACL: f.config.DefaultACL,
		ChunkSize:     f.config.BlobChunkSize,
	}

	src := content

	if f.config.Gzip && eligibleForGzip(f.config.gzipContentTypes(), params.ContentType) {
		src, err = compressContent(content)
		if err != nil {
			msg = err.Error()

			return "", err
		}

		// Compressed length is unknown until the source is fully consumed,
		// so the upload declares no size and skips the rewind.
		params.ContentEncoding = contentEncodingGzip
		params.Size = -1
	} else {
		params.Size = declaredSize(content)
		_, seekable := content.(io.Seeker)
		params.Rewind = seekable
	}

	ctx := context.Background()

	if err := f.conn.Upload(ctx, f.key(name), src, params); err != nil {
		msg = err.Error()
		f.errorf("failed to save %q: %v", name, err)

		return "", err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("file %q saved", name)

	return name, nil
}

// declaredSize reports the content length without consuming the source:
// a Sizer declares it outright, a seekable source is measured by seeking,
// and anything else stays unknown (-1).
func declaredSize(content io.Reader) int64 {
	if s, ok := content.(filestore.Sizer); ok {
		return s.Size()
	}

	seeker, ok := content.(io.Seeker)
	if !ok {
		return -1
	}

	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}

	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}

	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return -1
	}

	return end
}

func contentTypeFor(name string) string {
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		return ""
	}

	// TypeByExtension appends charset parameters for text types; the stored
	// content type carries the bare media type, like the extension map does.
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}

	return ct
}

func (f *fileSystem) Delete(name string) error {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opDelete, startTime, &st, &msg)

	if f.conn == nil {
		return errNotConnected
	}

	ctx := context.Background()

	if err := f.conn.DeleteObject(ctx, f.key(name)); err != nil {
		msg = err.Error()
		f.errorf("error while deleting file %q: %v", name, err)

		return err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("file %q deleted", name)

	return nil
}

func (f *fileSystem) Exists(name string) (bool, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opExists, startTime, &st, &msg)

	if f.conn == nil {
		return false, errNotConnected
	}

	ctx := context.Background()

	if name == "" {
		// Bucket-level probe: a missing bucket means "does not exist",
		// not an error.
		err := f.conn.BucketExists(ctx)
		if err != nil {
			if isBucketNotFound(err) {
				st = filestore.StatusSuccess
				msg = "bucket does not exist"

				return false, nil
			}

			msg = err.Error()

			return false, err
		}

		st = filestore.StatusSuccess
		msg = "bucket exists"

		return true, nil
	}

	_, err := f.conn.StatObject(ctx, f.key(name), 0)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			st = filestore.StatusSuccess
			msg = fmt.Sprintf("file %q does not exist", name)

			return false, nil
		}

		msg = err.Error()

		return false, err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("file %q exists", name)

	return true, nil
}

func isBucketNotFound(err error) bool {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 404
	}

	return false
}

func (f *fileSystem) ListDir(dir string) (dirs, files []string, err error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opListDir, startTime, &st, &msg)

	if f.conn == nil {
		return nil, nil, errNotConnected
	}

	prefix := f.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	ctx := context.Background()

	objects, prefixes, err := f.conn.ListDir(ctx, prefix)
	if err != nil {
		msg = err.Error()
		f.errorf("failed to list %q: %v", dir, err)

		return nil, nil, err
	}

	for _, p := range prefixes {
		dirs = append(dirs, strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/"))
	}

	for _, o := range objects {
		files = append(files, strings.TrimPrefix(o, prefix))
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("listed %d dirs and %d files under %q", len(dirs), len(files), dir)

	return dirs, files, nil
}

func (f *fileSystem) Size(name string) (int64, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opSize, startTime, &st, &msg)

	attrs, err := f.stat(name, &msg)
	if err != nil {
		return 0, err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("size of %q retrieved", name)

	return attrs.Size, nil
}

func (f *fileSystem) ModifiedTime(name string) (time.Time, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opModifiedTime, startTime, &st, &msg)

	attrs, err := f.stat(name, &msg)
	if err != nil {
		return time.Time{}, err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("modified time of %q retrieved", name)

	return localTime(attrs.Updated, f.config.UseTZ, f.zone), nil
}

func (f *fileSystem) CreatedTime(name string) (time.Time, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opCreatedTime, startTime, &st, &msg)

	attrs, err := f.stat(name, &msg)
	if err != nil {
		return time.Time{}, err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("created time of %q retrieved", name)

	return localTime(attrs.Created, f.config.UseTZ, f.zone), nil
}

// stat is the metadata lookup behind Size, ModifiedTime and CreatedTime.
// A missing object surfaces the SDK's own storage.ErrObjectNotExist here,
// unlike Open which maps it to filestore.ErrFileNotFound. The mismatch is
// long-observed behavior and is kept on purpose.
func (f *fileSystem) stat(name string, msg *string) (*storage.ObjectAttrs, error) {
	if f.conn == nil {
		return nil, errNotConnected
	}

	ctx := context.Background()

	attrs, err := f.conn.StatObject(ctx, f.key(name), 0)
	if err != nil {
		*msg = err.Error()

		return nil, err
	}

	return attrs, nil
}

func (f *fileSystem) URL(name string) (string, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opURL, startTime, &st, &msg)

	if f.conn == nil {
		return "", errNotConnected
	}

	key := f.key(name)

	if f.config.DefaultACL == aclPublicRead {
		st = filestore.StatusSuccess
		msg = fmt.Sprintf("public URL for %q", name)

		if f.config.CustomEndpoint != "" {
			return strings.TrimSuffix(f.config.CustomEndpoint, "/") + "/" + escapeKey(key), nil
		}

		return f.conn.PublicURL(key), nil
	}

	u, err := f.conn.SignedURL(key, &SignOptions{
		Expires:  f.config.expiration(),
		Hostname: f.config.CustomEndpoint,
	})
	if err != nil {
		msg = err.Error()
		f.errorf("failed to sign URL for %q: %v", name, err)

		return "", err
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("signed URL for %q", name)

	return u, nil
}

const aclPublicRead = "publicRead"

func (f *fileSystem) AvailableName(name string) (string, error) {
	var msg string

	st := filestore.StatusError

	startTime := time.Now()

	defer f.observe(opAvailableName, startTime, &st, &msg)

	if f.config.FileOverwrite {
		st = filestore.StatusSuccess
		msg = "overwrite enabled, name unchanged"

		return name, nil
	}

	for {
		exists, err := f.Exists(name)
		if err != nil {
			msg = err.Error()

			return "", err
		}

		if !exists {
			break
		}

		name = filestore.AlternativeName(name)
	}

	st = filestore.StatusSuccess
	msg = fmt.Sprintf("available name %q", name)

	return name, nil
}

// observe is a helper method for backend-level operations.
func (f *fileSystem) observe(operation string, startTime time.Time, status, message *string) {
	filestore.ObserveOperation(&filestore.OperationObservability{
		Context:   context.Background(),
		Logger:    f.logger,
		Metrics:   f.metrics,
		Operation: operation,
		Location:  f.config.BucketName,
		Provider:  "GCS",
		StartTime: startTime,
		Status:    status,
		Message:   message,
	})
}

func (f *fileSystem) debugf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Debugf(format, args...)
	}
}

func (f *fileSystem) logf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Logf(format, args...)
	}
}

func (f *fileSystem) errorf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Errorf(format, args...)
	}
}
