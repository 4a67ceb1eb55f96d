// Package storage provides object storage for image blobs: a low-level
// Storage port with an S3-compatible MinIO implementation, and an ImageStore
// that owns validation, key generation, and public URL derivation.
package storage

import (
	"context"
	"io"
)

// Storage is the interface for uploading and retrieving objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}
