package gcs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	errInvalidConfig   = errors.New("invalid gcs config")
	errLeadingSlash    = errors.New("location cannot begin with a leading slash")
	errInvalidTimeZone = errors.New("invalid time zone")
)

// DefaultExpiration is the signed URL lifetime used when none is configured.
const DefaultExpiration = 24 * time.Hour

// Config represents the gcs backend configuration. It is resolved once at
// construction; multiple differently-configured backends can coexist in the
// same process.
type Config struct {
	// BucketName is the bucket all object keys are resolved against. Required.
	BucketName string

	// ProjectID is forwarded to the client for bucket-level calls.
	ProjectID string

	// CredentialsJSON holds service-account credentials. When empty the
	// client falls back to ambient credentials (GOOGLE_APPLICATION_CREDENTIALS).
	CredentialsJSON string

	// EndPoint points the client at a local emulator when set.
	EndPoint string

	// Location is the root key prefix joined in front of every name.
	// Must be empty or not begin with "/".
	Location string

	// DefaultACL is the predefined ACL applied to every uploaded object,
	// e.g. "publicRead" or "projectPrivate". Empty leaves the bucket default.
	DefaultACL string

	// CacheControl is set as Cache-Control metadata on every uploaded object.
	CacheControl string

	// Gzip compresses eligible content types on write.
	Gzip bool

	// GzipContentTypes overrides the set of content types eligible for
	// compression. Nil selects the default set.
	GzipContentTypes []string

	// BlobChunkSize is the transfer chunk-size hint in bytes. Zero lets the
	// SDK choose.
	BlobChunkSize int

	// Expiration is the signed URL lifetime. Zero selects DefaultExpiration.
	Expiration time.Duration

	// CustomEndpoint serves public and signed URLs from this hostname
	// instead of the provider's default domain.
	CustomEndpoint string

	// FileOverwrite makes Save reuse an occupied name instead of deriving an
	// alternative one.
	FileOverwrite bool

	// TimeZone names the zone ModifiedTime and CreatedTime are expressed in.
	// Empty selects UTC.
	TimeZone string

	// UseTZ keeps returned timestamps zone-aware. When false, timestamps are
	// reduced to the configured zone's wall clock.
	UseTZ bool
}

// defaultGzipContentTypes mirrors the compressible set browsers commonly
// accept gzip for. Binary and already-compressed types are excluded.
var defaultGzipContentTypes = []string{
	"text/css",
	"text/javascript",
	"application/javascript",
	"application/x-javascript",
	"image/svg+xml",
}

// DefaultConfig returns a Config with every optional field at its default.
func DefaultConfig(bucketName string) *Config {
	return &Config{
		BucketName:    bucketName,
		Expiration:    DefaultExpiration,
		FileOverwrite: true,
		TimeZone:      "UTC",
	}
}

func (c *Config) validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("%w: bucket name is required", errInvalidConfig)
	}

	if strings.HasPrefix(c.Location, "/") {
		return fmt.Errorf("%w: found %q, use %q instead",
			errLeadingSlash, c.Location, strings.TrimLeft(c.Location, "/"))
	}

	if _, err := time.LoadLocation(c.zoneName()); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidTimeZone, c.TimeZone, err)
	}

	return nil
}

func (c *Config) zoneName() string {
	if c.TimeZone == "" {
		return "UTC"
	}

	return c.TimeZone
}

func (c *Config) expiration() time.Duration {
	if c.Expiration == 0 {
		return DefaultExpiration
	}

	return c.Expiration
}

func (c *Config) gzipContentTypes() []string {
	if c.GzipContentTypes == nil {
		return defaultGzipContentTypes
	}

	return c.GzipContentTypes
}

// LoadConfigFromEnv builds a Config from GCS_* environment variables,
// first overlaying variables from envFile when it exists. Variables already
// present in the process environment take precedence over the file.
func LoadConfigFromEnv(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("loading env file %q: %w", envFile, err)
			}
		}
	}

	cfg := DefaultConfig(os.Getenv("GCS_BUCKET_NAME"))

	cfg.ProjectID = os.Getenv("GCS_PROJECT_ID")
	cfg.CredentialsJSON = os.Getenv("GCS_CREDENTIALS_JSON")
	cfg.EndPoint = os.Getenv("GCS_ENDPOINT")
	cfg.Location = os.Getenv("GCS_LOCATION")
	cfg.DefaultACL = os.Getenv("GCS_DEFAULT_ACL")
	cfg.CacheControl = os.Getenv("GCS_CACHE_CONTROL")
	cfg.CustomEndpoint = os.Getenv("GCS_CUSTOM_ENDPOINT")

	if tz := os.Getenv("GCS_TIME_ZONE"); tz != "" {
		cfg.TimeZone = tz
	}

	cfg.Gzip = envBool("GCS_GZIP", false)
	cfg.UseTZ = envBool("GCS_USE_TZ", false)
	cfg.FileOverwrite = envBool("GCS_FILE_OVERWRITE", true)

	if v := os.Getenv("GCS_BLOB_CHUNK_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: GCS_BLOB_CHUNK_SIZE %q: %w", errInvalidConfig, v, err)
		}

		cfg.BlobChunkSize = size
	}

	if v := os.Getenv("GCS_EXPIRATION"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: GCS_EXPIRATION %q: %w", errInvalidConfig, v, err)
		}

		cfg.Expiration = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}

	return b
}
