package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKeyInsertsSuffix(t *testing.T) {
	assert.Equal(t, "42/after_1700000000_ab12cd34.jpg", ObjectKey("42", "after_1700000000.jpg", "ab12cd34"))
	assert.Equal(t, "7/proof_x", ObjectKey("7", "proof", "x"))
}

func TestValidateContentType(t *testing.T) {
	assert.NoError(t, ValidateContentType("image/jpeg; charset=binary"))
	assert.NoError(t, ValidateContentType("application/pdf"))
	assert.Error(t, ValidateContentType("audio/ogg"))
}

func TestValidateFileSize(t *testing.T) {
	s := &MinIOService{maxFileSize: 10}
	assert.Error(t, s.ValidateFileSize(0))
	assert.Error(t, s.ValidateFileSize(11))
	assert.NoError(t, s.ValidateFileSize(10))
}

func TestMediaContentTypes(t *testing.T) {
	assert.True(t, IsImageContentType("image/jpeg"))
	assert.True(t, IsVideoContentType("video/mp4"))
	assert.True(t, IsVideoContentType("VIDEO/MP4"))
	assert.False(t, IsVideoContentType("image/png"))
	assert.False(t, IsImageContentType("video/mp4"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".pdf", Extension("application/pdf"))
	assert.Equal(t, ".jpg", Extension("IMAGE/JPEG"))
	assert.Equal(t, ".mp4", Extension("video/mp4"))
}
