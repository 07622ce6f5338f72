package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilConfig(t *testing.T) {
	provider, err := New(nil)

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestNew_EmptyBucketName(t *testing.T) {
	provider, err := New(&Config{})

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestNew_LocationLeadingSlash(t *testing.T) {
	cfg := DefaultConfig(testBucket)
	cfg.Location = "/"

	provider, err := New(cfg)

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, errLeadingSlash)
}

func TestNew_LocationLeadingSlashWithPath(t *testing.T) {
	cfg := DefaultConfig(testBucket)
	cfg.Location = "/media"

	_, err := New(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `use "media" instead`)
}

func TestNew_InvalidTimeZone(t *testing.T) {
	cfg := DefaultConfig(testBucket)
	cfg.TimeZone = "Mars/Olympus_Mons"

	provider, err := New(cfg)

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, errInvalidTimeZone)
}

func TestNew_PerInstanceConfig(t *testing.T) {
	first, err := New(DefaultConfig("bucket-one"))
	require.NoError(t, err)

	cfg := DefaultConfig("bucket-two")
	cfg.Location = "media"

	second, err := New(cfg)
	require.NoError(t, err)

	// Two backends with different configs coexist without interference.
	assert.Equal(t, "bucket-one", first.(*fileSystem).config.BucketName)
	assert.Equal(t, "bucket-two", second.(*fileSystem).config.BucketName)
	assert.Equal(t, "", first.(*fileSystem).config.Location)
	assert.Equal(t, "media", second.(*fileSystem).config.Location)
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		root string
		name string
		want string
	}{
		{"", "file.txt", "file.txt"},
		{"", "/file.txt", "file.txt"},
		{"media", "file.txt", "media/file.txt"},
		{"media/", "file.txt", "media/file.txt"},
		{"media/", "/file.txt", "media/file.txt"},
		{"media", "a/b/file.txt", "media/a/b/file.txt"},
		{"media", "ủⓝï℅ⅆℇ.txt", "media/ủⓝï℅ⅆℇ.txt"},
		// No traversal resolution: the store has no such semantics.
		{"media", "../file.txt", "media/../file.txt"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, normalizeKey(tc.root, tc.name), "root=%q name=%q", tc.root, tc.name)
	}
}

func TestUseLoggerAndMetrics(t *testing.T) {
	f, _ := newTestFS(t, nil)

	f.UseLogger("not a logger")
	assert.Nil(t, f.logger)

	f.UseMetrics("not metrics")
	assert.Nil(t, f.metrics)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/css", contentTypeFor("styles.css"))
	assert.Equal(t, "image/png", contentTypeFor("photo.png"))
	assert.Equal(t, "", contentTypeFor("README"))
}
