package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nimbusfs/filestore"
)

var errFlaky = errors.New("transient upload failure")

func writeFlag() int { return os.O_WRONLY }

func TestFile_WriteFlushesOnceOnClose(t *testing.T) {
	data := "This is some test write data."

	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)

	var uploaded []byte

	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, src io.Reader, params *UploadParams) error {
			assert.True(t, params.Rewind)
			assert.Equal(t, int64(-1), params.Size)
			assert.Equal(t, "text/css", params.ContentType)

			var err error
			uploaded, err = io.ReadAll(src)

			return err
		}).
		Times(1)

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	// Writes stay local until Close.
	_, err = file.Write([]byte(data[:10]))
	require.NoError(t, err)
	_, err = file.Write([]byte(data[10:]))
	require.NoError(t, err)

	require.NoError(t, file.Close())
	assert.Equal(t, data, string(uploaded))
}

func TestFile_WriteForwardsACL(t *testing.T) {
	cfg := DefaultConfig(testBucket)
	cfg.DefaultACL = "projectPrivate"

	f, store := newTestFS(t, cfg)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)
	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ io.Reader, params *UploadParams) error {
			assert.Equal(t, "projectPrivate", params.PredefinedACL)

			return nil
		})

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	_, err = file.Write([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, file.Close())
}

func TestFile_WriteAfterClose(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)
	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		Return(nil)

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	require.NoError(t, file.Close())

	_, err = file.Write([]byte("too late"))

	assert.ErrorIs(t, err, filestore.ErrFileClosed)
}

func TestFile_EmptyWriteStillUploads(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)

	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, src io.Reader, _ *UploadParams) error {
			got, err := io.ReadAll(src)
			require.NoError(t, err)
			assert.Empty(t, got)

			return nil
		}).
		Times(1)

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	// No Write calls at all: an empty object is still a valid object.
	require.NoError(t, file.Close())
}

func TestFile_DoubleCloseIsNoop(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)
	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		Return(nil).
		Times(1)

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	_, err = file.Write([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, file.Close())
	require.NoError(t, file.Close())
}

func TestFile_FailedUploadKeepsBuffer(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)

	gomock.InOrder(
		store.EXPECT().
			Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
			Return(errFlaky),
		store.EXPECT().
			Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, src io.Reader, _ *UploadParams) error {
				got, err := io.ReadAll(src)
				require.NoError(t, err)
				assert.Equal(t, "data", string(got))

				return nil
			}),
	)

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	_, err = file.Write([]byte("data"))
	require.NoError(t, err)

	// First close fails; the buffer survives for a caller-driven retry.
	require.ErrorIs(t, file.Close(), errFlaky)
	require.NoError(t, file.Close())
}

func TestFile_ReadLazyMaterialization(t *testing.T) {
	data := []byte("lazy bytes")

	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(&storage.ObjectAttrs{Size: int64(len(data))}, nil)

	file, err := f.Open("test_file.css")
	require.NoError(t, err)

	// No download yet: NewReader has no expectation until now.
	store.EXPECT().
		NewReader(gomock.Any(), "test_file.css").
		Return(io.NopCloser(bytes.NewReader(data)), nil).
		Times(1)

	p := make([]byte, 4)
	n, err := file.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "lazy", string(p[:n]))

	rest, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, " bytes", string(rest))

	// Exhausted stream keeps returning EOF with no further network I/O.
	_, err = file.Read(p)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFile_ReadOnWriteFile(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(nil, storage.ErrObjectNotExist)
	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		Return(nil)

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	_, err = file.Read(make([]byte, 4))
	assert.ErrorIs(t, err, errNotOpenedForRead)

	require.NoError(t, file.Close())
}

func TestFile_WriteOnReadFile(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(&storage.ObjectAttrs{}, nil)

	file, err := f.Open("test_file.css")
	require.NoError(t, err)

	_, err = file.Write([]byte("nope"))
	assert.ErrorIs(t, err, errNotOpenedForWrite)
}

func TestFile_NameAndSize(t *testing.T) {
	f, store := newTestFS(t, nil)

	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(&storage.ObjectAttrs{Size: 42}, nil)

	file, err := f.Open("test_file.css")
	require.NoError(t, err)

	assert.Equal(t, "test_file.css", file.Name())
	assert.Equal(t, int64(42), file.Size())
}

func TestFile_OverwriteExisting(t *testing.T) {
	f, store := newTestFS(t, nil)

	// The object already exists; write mode overwrites, not appends.
	store.EXPECT().
		StatObject(gomock.Any(), "test_file.css", 0).
		Return(&storage.ObjectAttrs{Size: 99}, nil)

	store.EXPECT().
		Upload(gomock.Any(), "test_file.css", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, src io.Reader, _ *UploadParams) error {
			got, err := io.ReadAll(src)
			require.NoError(t, err)
			assert.Equal(t, "fresh", string(got))

			return nil
		})

	file, err := f.OpenFile("test_file.css", writeFlag(), 0)
	require.NoError(t, err)

	_, err = file.Write([]byte("fresh"))
	require.NoError(t, err)

	require.NoError(t, file.Close())
}
