package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/blob"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/repository"
)

// GalleryHandler serves the public/user image gallery and image metadata endpoints.
type GalleryHandler struct {
	images repository.ImageRepository
	blob   *blob.Store
}

// NewGalleryHandler creates a gallery handler.
func NewGalleryHandler(images repository.ImageRepository, blobStore *blob.Store) *GalleryHandler {
	return &GalleryHandler{images: images, blob: blobStore}
}

// ImageSummary is one row in a gallery listing or the single-image lookup.
type ImageSummary struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Prompt         string `json:"prompt"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	URL            string `json:"url"`
	CreatedAt      string `json:"created_at"`
	ExpiresAt      string `json:"expires_at"`
	CreditsCharged int    `json:"credits_charged"`
}

func (h *GalleryHandler) toSummary(img *models.StoredImage) ImageSummary {
	return ImageSummary{
		ID:             img.ID,
		UserID:         img.UserID,
		Prompt:         img.Prompt,
		Provider:       img.Provider,
		Model:          img.Model,
		Size:           img.Size,
		Quality:        img.Quality,
		URL:            h.blob.PublicURL(img.R2Key),
		CreatedAt:      img.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		ExpiresAt:      img.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		CreditsCharged: img.CreditsCharged,
	}
}

// ListPublicInput is the query of GET /v1/images.
type ListPublicInput struct {
	Page    int `query:"page" doc:"1-indexed page number"`
	PerPage int `query:"per_page" doc:"Page size, clamped to [1,100], default 20"`
}

// ListImagesOutput is shared by the public and per-user gallery listings.
type ListImagesOutput struct {
	Body struct {
		Page    int            `json:"page"`
		PerPage int            `json:"per_page"`
		Total   int            `json:"total"`
		Items   []ImageSummary `json:"items"`
	}
}

// ListPublic handles GET /v1/images.
func (h *GalleryHandler) ListPublic(ctx context.Context, input *ListPublicInput) (*ListImagesOutput, error) {
	page := clampPage(input.Page)
	perPage := clampPerPage(input.PerPage, 20)

	items, total, err := h.images.ListPublic(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}

	out := &ListImagesOutput{}
	out.Body.Page, out.Body.PerPage, out.Body.Total = page, perPage, total
	out.Body.Items = make([]ImageSummary, len(items))
	for i, img := range items {
		out.Body.Items[i] = h.toSummary(img)
	}
	return out, nil
}

// ListByUserInput is the path+query of GET /v1/images/user/{user_id}.
type ListByUserInput struct {
	UserID  string `path:"user_id"`
	Page    int    `query:"page"`
	PerPage int    `query:"per_page"`
}

// ListByUser handles GET /v1/images/user/{user_id}.
func (h *GalleryHandler) ListByUser(ctx context.Context, input *ListByUserInput) (*ListImagesOutput, error) {
	requester := getUser(ctx)
	if requester == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}
	if requester.ID != input.UserID && !requester.IsAdmin {
		return nil, humaErr(apperror.New(apperror.Forbidden, "cannot view another user's gallery"))
	}

	page := clampPage(input.Page)
	perPage := clampPerPage(input.PerPage, 20)

	items, total, err := h.images.ListByUser(ctx, input.UserID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}

	out := &ListImagesOutput{}
	out.Body.Page, out.Body.PerPage, out.Body.Total = page, perPage, total
	out.Body.Items = make([]ImageSummary, len(items))
	for i, img := range items {
		out.Body.Items[i] = h.toSummary(img)
	}
	return out, nil
}

// GetImageInput is the path of GET /v1/images/{image_id}.
type GetImageInput struct {
	ImageID string `path:"image_id"`
}

// GetImageOutput is the response of GET /v1/images/{image_id}.
type GetImageOutput struct {
	Body ImageSummary
}

// GetImage handles GET /v1/images/{image_id}.
func (h *GalleryHandler) GetImage(ctx context.Context, input *GetImageInput) (*GetImageOutput, error) {
	img, err := h.images.GetByID(ctx, input.ImageID)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	if img == nil {
		return nil, humaErr(apperror.New(apperror.NotFound, "image not found"))
	}
	return &GetImageOutput{Body: h.toSummary(img)}, nil
}

// BlobHandler serves the raw bytes behind a stored image's public URL. It is
// registered directly on the chi router (not through huma) since the
// response is raw image/png, not JSON.
type BlobHandler struct {
	blob *blob.Store
}

// NewBlobHandler creates a blob-fetch handler.
func NewBlobHandler(blobStore *blob.Store) *BlobHandler {
	return &BlobHandler{blob: blobStore}
}

// ServeBlob handles GET /r2/{user_id}/{image_id}.
func (h *BlobHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	imageID := chi.URLParam(r, "image_id")
	if userID == "" || imageID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Public URLs end in "{image_id}.png"; Key appends the extension itself.
	key := blob.Key(userID, strings.TrimSuffix(imageID, ".png"))
	data, err := h.blob.Get(r.Context(), key)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
