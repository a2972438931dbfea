package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the allowed MIME types for uploads.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
	"video/mp4":       true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if s.maxFileSize > 0 && sizeBytes > s.maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize)
	}
	return nil
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

// IsVideoContentType checks if the content type is a video.
func IsVideoContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "video/")
}

// IsDocumentContentType reports PDFs, the only document accepted as proof.
func IsDocumentContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

// Extension returns the file extension for a supported content type.
func Extension(contentType string) string {
	switch strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0])) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
