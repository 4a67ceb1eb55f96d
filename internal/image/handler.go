package image

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imagevault/service/internal/middleware"
	"github.com/imagevault/service/internal/response"
	"github.com/imagevault/service/internal/storage"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	// Slack on top of the blob size cap for multipart framing and text fields.
	multipartOverhead = 1 << 20
)

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc       *Service
	maxUpload int64
	log       *zap.Logger
}

// NewHandler creates a new image Handler. maxUpload is the blob size cap in bytes.
func NewHandler(svc *Service, maxUpload int64, log *zap.Logger) *Handler {
	return &Handler{svc: svc, maxUpload: maxUpload, log: log}
}

// Upload godoc
//
//	@Summary	Upload an image (multipart field "image", optional title/description).
//	@Router		/api/images [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.PayloadTooLarge(w, storage.ErrTooLarge.Error())
			return
		}
		response.BadRequest(w, "invalid multipart request body")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "please upload an image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "could not read the uploaded file")
		return
	}

	img, err := h.svc.Upload(
		r.Context(),
		userID,
		data,
		header.Header.Get("Content-Type"),
		header.Filename,
		r.FormValue("title"),
		r.FormValue("description"),
	)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, ErrTitleTooLong),
		errors.Is(err, ErrDescriptionTooLong):
		response.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		response.PayloadTooLarge(w, err.Error())
	case err != nil:
		h.log.Error("image upload failed", zap.String("userID", userID), zap.Error(err))
		response.InternalError(w)
	default:
		response.Created(w, img)
	}
}

// List godoc
//
//	@Summary	List all images, newest first, paginated.
//	@Router		/api/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := parsePaging(w, r)
	if !ok {
		return
	}

	result, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		h.log.Error("list images failed", zap.Error(err))
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}

// ListByUser godoc
//
//	@Summary	List one user's images, newest first, paginated.
//	@Router		/api/images/user/{userId} [get]
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if uuid.Validate(userID) != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	page, limit, ok := parsePaging(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ListByUser(r.Context(), userID, page, limit)
	if err != nil {
		h.log.Error("list user images failed", zap.String("userID", userID), zap.Error(err))
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}

// Delete godoc
//
//	@Summary	Delete an owned image: blob first, then the metadata row.
//	@Router		/api/images/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	imageID := chi.URLParam(r, "id")
	if uuid.Validate(imageID) != nil {
		response.NotFound(w, ErrNotFound.Error())
		return
	}

	err := h.svc.Delete(r.Context(), userID, imageID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, ErrForbidden.Error())
	case err != nil:
		h.log.Error("image delete failed",
			zap.String("imageID", imageID), zap.String("userID", userID), zap.Error(err))
		response.InternalError(w)
	default:
		response.OKMessage(w, "image deleted successfully")
	}
}

// parsePaging reads ?page and ?limit. Absent values default to 1/20;
// non-numeric values or values below 1 are rejected; limit is capped at 100.
// Writes the error response itself and returns ok=false on rejection.
func parsePaging(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page, ok = queryInt(w, r, "page", defaultPage)
	if !ok {
		return 0, 0, false
	}
	limit, ok = queryInt(w, r, "limit", defaultLimit)
	if !ok {
		return 0, 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		response.BadRequest(w, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}
