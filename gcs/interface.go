//go:generate mockgen -source=interface.go -destination=mock_interface.go -package=gcs

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/nimbusfs/filestore"
)

// Logger redefines the logger interface for the package.
type Logger interface {
	filestore.Logger
}

// Metrics redefines the metrics interface for the package.
type Metrics interface {
	filestore.StorageMetrics
}

var errEmptyObjectName = errors.New("object name cannot be empty")

// UploadParams carries the per-upload metadata forwarded to the SDK writer.
// Retry behavior is not part of the params: the bucket handle is configured
// once with a uniform retry policy covering every data-moving call.
type UploadParams struct {
	// Rewind repositions a seekable source to its start before sending.
	Rewind bool

	// Size is the declared content length in bytes, or -1 when unknown.
	// Compressed uploads never declare a size.
	Size int64

	ContentType     string
	ContentEncoding string
	CacheControl    string
	PredefinedACL   string

	// ChunkSize is the transfer chunk-size hint in bytes; zero lets the SDK choose.
	ChunkSize int
}

// SignOptions configures signed URL generation.
type SignOptions struct {
	// Expires is the lifetime of the signed URL.
	Expires time.Duration

	// Hostname binds the signed URL to a custom serving hostname instead of
	// the provider's default domain.
	Hostname string
}

// ObjectStore is the narrow surface of the provider SDK the backend calls.
// It exists so the storage facade and file adapter can be exercised against
// a mock without a live bucket.
type ObjectStore interface {
	// BucketExists probes the bucket itself.
	BucketExists(ctx context.Context) error

	// StatObject returns the object's metadata. chunkSize is the transfer
	// chunk-size hint associated with the handle.
	StatObject(ctx context.Context, key string, chunkSize int) (*storage.ObjectAttrs, error)

	// NewReader opens the object's content for a full download.
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Upload stores src under key in a single upload call.
	Upload(ctx context.Context, key string, src io.Reader, params *UploadParams) error

	// DeleteObject removes the object.
	DeleteObject(ctx context.Context, key string) error

	// ListDir lists the immediate objects and sub-prefixes under prefix.
	ListDir(ctx context.Context, prefix string) (objects, prefixes []string, err error)

	// SignedURL returns a time-limited authorized URL for the object.
	SignedURL(key string, opts *SignOptions) (string, error)

	// PublicURL returns the provider's public URL for the object.
	PublicURL(key string) string
}

type bucketStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

func (b *bucketStore) BucketExists(ctx context.Context) error {
	_, err := b.bucket.Attrs(ctx)

	return err
}

func (b *bucketStore) StatObject(ctx context.Context, key string, _ int) (*storage.ObjectAttrs, error) {
	if key == "" {
		return nil, errEmptyObjectName
	}

	// The chunk-size hint only affects transfers; attribute lookups ignore it.
	return b.bucket.Object(key).Attrs(ctx)
}

func (b *bucketStore) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, errEmptyObjectName
	}

	return b.bucket.Object(key).NewReader(ctx)
}

func (b *bucketStore) Upload(ctx context.Context, key string, src io.Reader, params *UploadParams) error {
	if key == "" {
		return errEmptyObjectName
	}

	if params.Rewind {
		if seeker, ok := src.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewinding content for %q: %w", key, err)
			}
		}
	}

	w := b.bucket.Object(key).NewWriter(ctx)
	w.ChunkSize = params.ChunkSize
	w.ContentType = params.ContentType
	w.ContentEncoding = params.ContentEncoding
	w.CacheControl = params.CacheControl
	w.PredefinedACL = params.PredefinedACL

	var err error
	if params.Size >= 0 {
		_, err = io.CopyN(w, src, params.Size)
	} else {
		_, err = io.Copy(w, src)
	}

	if err != nil {
		_ = w.Close()

		return fmt.Errorf("uploading %q: %w", key, err)
	}

	return w.Close()
}

func (b *bucketStore) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return errEmptyObjectName
	}

	return b.bucket.Object(key).Delete(ctx)
}

func (b *bucketStore) ListDir(ctx context.Context, prefix string) (objects, prefixes []string, err error) {
	it := b.bucket.Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	for {
		obj, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		} else if err != nil {
			return nil, nil, err
		}

		if obj.Prefix != "" {
			prefixes = append(prefixes, obj.Prefix)
		} else {
			objects = append(objects, obj.Name)
		}
	}

	return objects, prefixes, nil
}

func (b *bucketStore) SignedURL(key string, opts *SignOptions) (string, error) {
	if key == "" {
		return "", errEmptyObjectName
	}

	sopts := &storage.SignedURLOptions{
		Method:  "GET",
		Scheme:  storage.SigningSchemeV4,
		Expires: time.Now().Add(opts.Expires),
	}

	if opts.Hostname != "" {
		sopts.Style = storage.BucketBoundHostname(stripScheme(opts.Hostname))
	}

	return b.bucket.SignedURL(key, sopts)
}

func (b *bucketStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, escapeKey(key))
}

// escapeKey percent-encodes each segment of an object key while keeping the
// virtual hierarchy separators intact.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}

func stripScheme(hostname string) string {
	hostname = strings.TrimPrefix(hostname, "https://")

	return strings.TrimPrefix(hostname, "http://")
}
