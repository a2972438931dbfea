// Package storage keeps uploaded media (technician photos, payment proofs) in
// S3-compatible object storage.
package storage

import (
	"context"
	"io"
)

// FileStore is the upload surface the engines depend on.
type FileStore interface {
	// UploadFile stores reader under folder and returns the object key. A short
	// random suffix is appended to fileName so retries never overwrite.
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}
