package filestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlternativeName(t *testing.T) {
	name := AlternativeName("photo.jpg")

	assert.NotEqual(t, "photo.jpg", name)
	assert.True(t, strings.HasPrefix(name, "photo_"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
	assert.Len(t, name, len("photo.jpg")+altSuffixLen+1)
}

func TestAlternativeName_NoExtension(t *testing.T) {
	name := AlternativeName("README")

	assert.True(t, strings.HasPrefix(name, "README_"))
	assert.NotContains(t, name, ".")
}

func TestAlternativeName_KeepsPath(t *testing.T) {
	name := AlternativeName("some/dir/photo.jpg")

	assert.True(t, strings.HasPrefix(name, "some/dir/photo_"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}

func TestAlternativeName_Unique(t *testing.T) {
	first := AlternativeName("photo.jpg")
	second := AlternativeName("photo.jpg")

	assert.NotEqual(t, first, second)
}
