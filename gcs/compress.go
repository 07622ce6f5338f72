package gcs

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
)

const contentEncodingGzip = "gzip"

// eligibleForGzip reports whether content of the given type should be
// compressed on write. Parameters like charset are ignored; binary and
// already-compressed categories are simply absent from the eligible set.
func eligibleForGzip(types []string, contentType string) bool {
	if contentType == "" {
		return false
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}

	for _, t := range types {
		if t == mt {
			return true
		}
	}

	return false
}

// compressContent consumes src exactly once, streaming it through a gzip
// writer, and returns an independent seekable reader over the compressed
// frame. Forward-only sources therefore work, while the upload step is still
// free to rewind. Decompressing the result reproduces src byte for byte.
func compressContent(src io.Reader) (*bytes.Reader, error) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()

		return nil, fmt.Errorf("compressing content: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing gzip frame: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}
