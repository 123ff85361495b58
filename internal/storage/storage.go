// Package storage publishes a finished output tree to object storage.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
)

// ObjectStorage abstracts the object stores an output tree can be
// published to. Implementations are a local directory and S3.
type ObjectStorage interface {
	// Upload copies the local file to objectPath and returns the ETag of
	// the stored object.
	Upload(ctx context.Context, localPath, objectPath string) (string, error)

	// ETag returns the ETag of an existing object, or ErrObjectNotFound.
	ETag(ctx context.Context, objectPath string) (string, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	// Files up to PartSize are uploaded with a single request.
	PartSize int64
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize: 5 * 1024 * 1024, // 5MB
	}
}
