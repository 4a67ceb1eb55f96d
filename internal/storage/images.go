package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// keyPrefix is the namespace all image blobs live under.
const keyPrefix = "images"

// allowedTypes maps accepted image MIME types to a fallback file extension.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrUnsupportedType is returned for MIME types outside the allow-list.
var ErrUnsupportedType = errors.New("invalid file type, only JPEG, PNG, GIF, and WebP images are allowed")

// ErrTooLarge is returned when the blob exceeds the configured size cap.
var ErrTooLarge = errors.New("file exceeds the maximum allowed size")

// ImageStore validates and stores image blobs on a Storage backend. All
// validation runs before any network I/O.
type ImageStore struct {
	backend Storage
	maxSize int64
}

// NewImageStore creates an ImageStore enforcing the given byte size cap.
func NewImageStore(backend Storage, maxSize int64) *ImageStore {
	return &ImageStore{backend: backend, maxSize: maxSize}
}

// Store validates the blob against the MIME allow-list and size cap,
// generates a collision-resistant key, writes the blob, and returns the key.
func (s *ImageStore) Store(ctx context.Context, data []byte, contentType, originalName string) (string, error) {
	fallbackExt, ok := allowedTypes[strings.ToLower(contentType)]
	if !ok {
		return "", ErrUnsupportedType
	}
	if int64(len(data)) > s.maxSize {
		return "", ErrTooLarge
	}

	key := generateKey(originalName, fallbackExt)
	if err := s.backend.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	return key, nil
}

// Remove deletes the blob at key.
func (s *ImageStore) Remove(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// URLFor derives the public URL for a stored key. No I/O.
func (s *ImageStore) URLFor(key string) string {
	return s.backend.PublicURL(key)
}

// generateKey builds "images/<unix-millis>-<uuid><ext>". The extension comes
// from the original filename, falling back to one derived from the MIME type.
func generateKey(originalName, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = fallbackExt
	}
	return fmt.Sprintf("%s/%d-%s%s", keyPrefix, time.Now().UnixMilli(), uuid.NewString(), ext)
}
