package bot

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImageAcceptsPNG(t *testing.T) {
	assert.NoError(t, validateImage(writeValidImage(t)))
}

func TestValidateImageAcceptsJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))
	path := filepath.Join(t.TempDir(), "valid.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	assert.NoError(t, validateImage(path))
}

func TestValidateImageRejectsGarbage(t *testing.T) {
	assert.Error(t, validateImage(writeCorruptImage(t)))
}

func TestValidateImageRejectsTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64)), nil))
	path := filepath.Join(t.TempDir(), "truncated.jpg")
	// Correct extension and magic bytes, but half the payload is missing.
	require.NoError(t, os.WriteFile(path, buf.Bytes()[:buf.Len()/2], 0644))

	assert.Error(t, validateImage(path))
}

func TestValidateImageMissingFile(t *testing.T) {
	assert.Error(t, validateImage(filepath.Join(t.TempDir(), "nope.png")))
}

func TestScratchNameIsStableAndSafe(t *testing.T) {
	a := scratchName("AgACAgIAAxkBAAIB/slash\\and:odd chars")
	b := scratchName("AgACAgIAAxkBAAIB/slash\\and:odd chars")
	c := scratchName("different-file-id")

	assert.Equal(t, a, b, "same file id maps to the same scratch name")
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotContains(t, a[:len(a)-4], "/")
	assert.NotContains(t, a[:len(a)-4], "\\")
}
