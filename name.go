package filestore

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

const altSuffixLen = 7

// AlternativeName derives a new candidate name from name by inserting a
// random 7-character suffix before the extension. Backends use it to step
// past an occupied name when overwrite is disabled.
// Example: "photo.jpg" -> "photo_3f9c01a.jpg".
func AlternativeName(name string) string {
	ext := path.Ext(name)
	root := strings.TrimSuffix(name, ext)

	return fmt.Sprintf("%s_%s%s", root, randomSuffix(), ext)
}

func randomSuffix() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")

	return s[:altSuffixLen]
}
