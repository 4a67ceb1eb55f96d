// Package image manages uploaded image metadata and its persistence.
package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Owner is the subset of the uploading user returned with each image.
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Image represents an uploaded image record. StorageKey and URL are set once
// at creation and never change.
type Image struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StorageKey  string    `json:"storageKey"`
	URL         string    `json:"url"`
	UploadedBy  Owner     `json:"uploadedBy"`
	FileSize    int64     `json:"fileSize"`
	MimeType    string    `json:"mimeType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when an image does not exist.
var ErrNotFound = errors.New("image not found")

const selectColumns = `i.id, i.title, i.description, i.storage_key, i.public_url,
	 i.file_size, i.mime_type, i.created_at, i.updated_at,
	 u.id, u.username, u.email`

// Repository handles all image database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert persists a new image row and returns the stored record with its
// owner populated.
func (r *Repository) Insert(ctx context.Context, img *Image) (*Image, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO images (title, description, storage_key, public_url, uploaded_by, file_size, mime_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		img.Title, img.Description, img.StorageKey, img.URL, img.UploadedBy.ID, img.FileSize, img.MimeType,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches an image by its UUID, owner populated.
func (r *Repository) GetByID(ctx context.Context, id string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`SELECT `+selectColumns+`
		 FROM images i JOIN users u ON u.id = i.uploaded_by
		 WHERE i.id = $1`,
		id,
	).Scan(
		&img.ID, &img.Title, &img.Description, &img.StorageKey, &img.URL,
		&img.FileSize, &img.MimeType, &img.CreatedAt, &img.UpdatedAt,
		&img.UploadedBy.ID, &img.UploadedBy.Username, &img.UploadedBy.Email,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return img, nil
}

// List returns images newest-first with their total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Image, int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+`
		 FROM images i JOIN users u ON u.id = i.uploaded_by
		 ORDER BY i.created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}
	images, err := scanImages(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM images`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count images: %w", err)
	}
	return images, total, nil
}

// ListByOwner returns one user's images newest-first with their total count.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Image, int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+`
		 FROM images i JOIN users u ON u.id = i.uploaded_by
		 WHERE i.uploaded_by = $1
		 ORDER BY i.created_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list images by owner: %w", err)
	}
	images, err := scanImages(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM images WHERE uploaded_by = $1`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count images by owner: %w", err)
	}
	return images, total, nil
}

// Delete removes an image row by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanImages(rows pgx.Rows) ([]Image, error) {
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(
			&img.ID, &img.Title, &img.Description, &img.StorageKey, &img.URL,
			&img.FileSize, &img.MimeType, &img.CreatedAt, &img.UpdatedAt,
			&img.UploadedBy.ID, &img.UploadedBy.Username, &img.UploadedBy.Email,
		); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return images, nil
}
