// Package filestore defines a pluggable file-storage contract for backing
// application file fields with remote object stores. Backends adapt this
// contract to a concrete provider SDK; the gcs subpackage is the Google
// Cloud Storage backend.
package filestore

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// File is one open session against a stored object. A File is opened either
// for reading or for writing, never both.
//
//nolint:revive // let's consider filestore.File doesn't sound repetitive
type File interface {
	io.Reader
	io.Writer
	io.Closer

	// Name returns the name the file was opened with, relative to the
	// backend's root location.
	Name() string

	// Size returns the length of the content in bytes, when known.
	Size() int64
}

// Storage : any simulated or real storage backend should implement this interface.
type Storage interface {
	// Open opens the named file for reading.
	Open(name string) (File, error)

	// OpenFile opens the named file using the given flags. Write mode is
	// selected with os.O_WRONLY or os.O_RDWR; perm is advisory only, since
	// object stores carry no mode bits.
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)

	// Save stores content under name and returns the final name used,
	// which may differ when collision avoidance is active.
	Save(name string, content io.Reader) (string, error)

	// Delete removes the named file.
	Delete(name string) error

	// Exists reports whether the named file exists. The empty name probes
	// the backend's container itself.
	Exists(name string) (bool, error)

	// ListDir returns the immediate child directories and files under path.
	// Ordering is not guaranteed.
	ListDir(path string) (dirs, files []string, err error)

	// Size returns the stored size of the named file in bytes.
	Size(name string) (int64, error)

	// URL returns an address where the named file can be fetched.
	URL(name string) (string, error)

	// ModifiedTime returns the last-modified time of the named file,
	// expressed per the backend's timezone configuration.
	ModifiedTime(name string) (time.Time, error)

	// CreatedTime returns the creation time of the named file, expressed
	// per the backend's timezone configuration.
	CreatedTime(name string) (time.Time, error)

	// AvailableName returns a name that is free for Save to use, starting
	// from the requested name.
	AvailableName(name string) (string, error)
}

// StorageProvider : any storage backend provider should implement this interface.
//
//nolint:revive // let's consider filestore.StorageProvider doesn't sound repetitive
type StorageProvider interface {
	Storage

	// UseLogger sets the logger for the storage client.
	UseLogger(logger any)

	// UseMetrics sets the metrics for the storage client.
	UseMetrics(metrics any)

	// Connect establishes the connection to the remote store using the
	// configuration the provider was created with.
	Connect() error
}

// Sizer is implemented by content sources that know their own length without
// seeking. Save consults it when the source is not an io.Seeker.
type Sizer interface {
	Size() int64
}

var (
	ErrFileClosed   = errors.New("file is closed")
	ErrFileNotFound = fs.ErrNotExist
)

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)
