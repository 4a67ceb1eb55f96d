package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

// ErrForbidden is returned when a user tries to delete an image they do not own.
var ErrForbidden = errors.New("you are not authorized to delete this image")

// ErrTitleTooLong is returned when the title exceeds 100 characters.
var ErrTitleTooLong = errors.New("title cannot exceed 100 characters")

// ErrDescriptionTooLong is returned when the description exceeds 500 characters.
var ErrDescriptionTooLong = errors.New("description cannot exceed 500 characters")

// MetadataStore is the image persistence the service needs.
type MetadataStore interface {
	Insert(ctx context.Context, img *Image) (*Image, error)
	GetByID(ctx context.Context, id string) (*Image, error)
	List(ctx context.Context, limit, offset int) ([]Image, int, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Image, int, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore is the validated object storage the service uploads through.
type BlobStore interface {
	Store(ctx context.Context, data []byte, contentType, originalName string) (string, error)
	Remove(ctx context.Context, key string) error
	URLFor(key string) string
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Page is a paginated image listing.
type Page struct {
	Images     []Image    `json:"images"`
	Pagination Pagination `json:"pagination"`
}

// Service orchestrates image upload, listing, and deletion.
type Service struct {
	meta  MetadataStore
	blobs BlobStore
	log   *zap.Logger
}

// NewService creates a new image Service.
func NewService(meta MetadataStore, blobs BlobStore, log *zap.Logger) *Service {
	return &Service{meta: meta, blobs: blobs, log: log}
}

// Upload stores the blob, then persists a metadata row referencing it. When
// the metadata write fails the just-written blob is deleted best-effort so it
// does not linger orphaned.
func (s *Service) Upload(ctx context.Context, ownerID string, data []byte, contentType, originalName, title, description string) (*Image, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	// Limits count characters, not bytes.
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, ErrTitleTooLong
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return nil, ErrDescriptionTooLong
	}

	key, err := s.blobs.Store(ctx, data, contentType, originalName)
	if err != nil {
		return nil, err
	}

	img, err := s.meta.Insert(ctx, &Image{
		Title:       title,
		Description: description,
		StorageKey:  key,
		URL:         s.blobs.URLFor(key),
		UploadedBy:  Owner{ID: ownerID},
		FileSize:    int64(len(data)),
		MimeType:    contentType,
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, key); rmErr != nil {
			s.log.Error("orphaned blob left in storage",
				zap.String("key", key), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("persist image metadata: %w", err)
	}
	return img, nil
}

// List returns a page of all images, newest first.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	images, total, err := s.meta.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return paginate(images, page, limit, total), nil
}

// ListByUser returns a page of one user's images, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, page, limit int) (*Page, error) {
	images, total, err := s.meta.ListByOwner(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return paginate(images, page, limit, total), nil
}

// Delete removes an image owned by requesterID. The remote blob is deleted
// first; any failure there leaves the metadata row intact.
func (s *Service) Delete(ctx context.Context, requesterID, imageID string) error {
	img, err := s.meta.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if img.UploadedBy.ID != requesterID {
		return ErrForbidden
	}

	if err := s.blobs.Remove(ctx, img.StorageKey); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return s.meta.Delete(ctx, imageID)
}

func paginate(images []Image, page, limit, total int) *Page {
	return &Page{
		Images: images,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}
}
