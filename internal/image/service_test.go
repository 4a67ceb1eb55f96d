package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMeta is an in-memory MetadataStore keeping images newest-first.
type fakeMeta struct {
	images     []Image
	insertErr  error
	deletedIDs []string
}

func (f *fakeMeta) Insert(_ context.Context, img *Image) (*Image, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	stored := *img
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	if stored.UploadedBy.Username == "" {
		stored.UploadedBy.Username = "user-" + stored.UploadedBy.ID
		stored.UploadedBy.Email = stored.UploadedBy.ID + "@example.com"
	}
	f.images = append([]Image{stored}, f.images...)
	return &stored, nil
}

func (f *fakeMeta) GetByID(_ context.Context, id string) (*Image, error) {
	for _, img := range f.images {
		if img.ID == id {
			return &img, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeMeta) List(_ context.Context, limit, offset int) ([]Image, int, error) {
	return slicePage(f.images, limit, offset), len(f.images), nil
}

func (f *fakeMeta) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]Image, int, error) {
	owned := make([]Image, 0)
	for _, img := range f.images {
		if img.UploadedBy.ID == ownerID {
			owned = append(owned, img)
		}
	}
	return slicePage(owned, limit, offset), len(owned), nil
}

func (f *fakeMeta) Delete(_ context.Context, id string) error {
	for i, img := range f.images {
		if img.ID == id {
			f.images = append(f.images[:i], f.images[i+1:]...)
			f.deletedIDs = append(f.deletedIDs, id)
			return nil
		}
	}
	return ErrNotFound
}

func slicePage(images []Image, limit, offset int) []Image {
	if offset >= len(images) {
		return []Image{}
	}
	end := offset + limit
	if end > len(images) {
		end = len(images)
	}
	return images[offset:end]
}

// fakeBlobs is an in-memory BlobStore.
type fakeBlobs struct {
	stored    map[string][]byte
	removed   []string
	nextKey   int
	removeErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{stored: make(map[string][]byte)}
}

func (f *fakeBlobs) Store(_ context.Context, data []byte, _, _ string) (string, error) {
	f.nextKey++
	key := fmt.Sprintf("images/key-%d", f.nextKey)
	f.stored[key] = data
	return key, nil
}

func (f *fakeBlobs) Remove(_ context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.stored, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeBlobs) URLFor(key string) string {
	return "http://storage.local/" + key
}

func newTestService() (*Service, *fakeMeta, *fakeBlobs) {
	meta := &fakeMeta{}
	blobs := newFakeBlobs()
	return NewService(meta, blobs, zap.NewNop()), meta, blobs
}

func TestService_UploadPersistsMetadataWithDerivedURL(t *testing.T) {
	svc, _, blobs := newTestService()

	img, err := svc.Upload(context.Background(), "u1", []byte("png bytes"), "image/png", "cat.png", "Cat", "A cat")
	require.NoError(t, err)

	assert.Equal(t, "Cat", img.Title)
	assert.Equal(t, "A cat", img.Description)
	assert.Equal(t, "u1", img.UploadedBy.ID)
	assert.Equal(t, int64(len("png bytes")), img.FileSize)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, blobs.URLFor(img.StorageKey), img.URL)
	assert.Contains(t, blobs.stored, img.StorageKey)
}

func TestService_UploadRejectsOverlongTitleAndDescription(t *testing.T) {
	svc, _, blobs := newTestService()

	_, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png",
		strings.Repeat("t", 101), "")
	assert.ErrorIs(t, err, ErrTitleTooLong)

	_, err = svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png",
		"", strings.Repeat("d", 501))
	assert.ErrorIs(t, err, ErrDescriptionTooLong)

	assert.Empty(t, blobs.stored)
}

func TestService_UploadCountsLimitsInCharactersNotBytes(t *testing.T) {
	svc, _, _ := newTestService()

	// 60 two-byte runes: 120 bytes but well under the 100-character cap.
	title := strings.Repeat("é", 60)
	description := strings.Repeat("ü", 400)

	img, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", title, description)
	require.NoError(t, err)
	assert.Equal(t, title, img.Title)
	assert.Equal(t, description, img.Description)

	_, err = svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png",
		strings.Repeat("é", 101), "")
	assert.ErrorIs(t, err, ErrTitleTooLong)

	_, err = svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png",
		"", strings.Repeat("ü", 501))
	assert.ErrorIs(t, err, ErrDescriptionTooLong)
}

func TestService_UploadTrimsTitleAndDescription(t *testing.T) {
	svc, _, _ := newTestService()

	img, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png",
		"  Cat  ", "\tA cat\n")
	require.NoError(t, err)
	assert.Equal(t, "Cat", img.Title)
	assert.Equal(t, "A cat", img.Description)

	// Surrounding whitespace does not count toward the length cap.
	padded := "  " + strings.Repeat("t", 100) + "  "
	img, err = svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "b.png", padded, "")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("t", 100), img.Title)
}

func TestService_UploadRemovesBlobWhenMetadataWriteFails(t *testing.T) {
	svc, meta, blobs := newTestService()
	meta.insertErr = errors.New("db down")

	_, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", "", "")
	require.Error(t, err)

	assert.Empty(t, blobs.stored)
	assert.Len(t, blobs.removed, 1)
}

func TestService_ListPaginatesNewestFirst(t *testing.T) {
	svc, _, _ := newTestService()

	for i := 0; i < 25; i++ {
		_, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png",
			fmt.Sprintf("img-%d.png", i), fmt.Sprintf("title %d", i), "")
		require.NoError(t, err)
	}

	page1, err := svc.List(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Len(t, page1.Images, 20)
	assert.Equal(t, 25, page1.Pagination.Total)
	assert.Equal(t, 2, page1.Pagination.Pages)
	assert.Equal(t, "title 24", page1.Images[0].Title)

	page2, err := svc.List(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.Len(t, page2.Images, 5)
	assert.Equal(t, "title 0", page2.Images[4].Title)
}

func TestService_ListPopulatesOwner(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", "", "")
	require.NoError(t, err)

	page, err := svc.List(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Images, 1)
	assert.Equal(t, "user-u1", page.Images[0].UploadedBy.Username)
	assert.Equal(t, "u1@example.com", page.Images[0].UploadedBy.Email)
}

func TestService_ListByUserFiltersToOwner(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", "mine", "")
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "u2", []byte("x"), "image/png", "b.png", "theirs", "")
	require.NoError(t, err)

	page, err := svc.ListByUser(context.Background(), "u2", 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Images, 1)
	assert.Equal(t, "theirs", page.Images[0].Title)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestService_DeleteUnknownImageReturnsNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.Delete(context.Background(), "u1", "img-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DeleteByNonOwnerLeavesEverythingIntact(t *testing.T) {
	svc, meta, blobs := newTestService()

	img, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", "", "")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "u2", img.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Len(t, meta.images, 1)
	assert.Contains(t, blobs.stored, img.StorageKey)
}

func TestService_DeleteByOwnerRemovesBlobAndRow(t *testing.T) {
	svc, meta, blobs := newTestService()

	img, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "u1", img.ID))

	assert.NotContains(t, blobs.stored, img.StorageKey)
	assert.Equal(t, []string{img.ID}, meta.deletedIDs)

	page, err := svc.List(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Images)
}

func TestService_DeleteKeepsRowWhenBlobDeleteFails(t *testing.T) {
	svc, meta, blobs := newTestService()

	img, err := svc.Upload(context.Background(), "u1", []byte("x"), "image/png", "a.png", "", "")
	require.NoError(t, err)

	blobs.removeErr = errors.New("storage unreachable")
	err = svc.Delete(context.Background(), "u1", img.ID)
	require.Error(t, err)

	assert.Len(t, meta.images, 1)
	assert.Empty(t, meta.deletedIDs)
}
