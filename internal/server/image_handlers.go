package server

import (
	"strings"

	"fixmystuff/internal/models"
	"fixmystuff/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ImageUploadResponse is the API response after uploading an image.
type ImageUploadResponse struct {
	ID        uint              `json:"id"`
	Hash      string            `json:"hash"`
	Kind      string            `json:"kind"`
	Status    string            `json:"status"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	CropMode  string            `json:"crop_mode"`
	SizeBytes int64             `json:"size_bytes"`
	MimeType  string            `json:"mime_type"`
	URL       string            `json:"url"`
	Variants  map[string]string `json:"variants"`
}

// ImageStatusResponse is the API response for image status/polling.
type ImageStatusResponse struct {
	Status   string            `json:"status"`
	CropMode string            `json:"crop_mode"`
	Error    string            `json:"error,omitempty"`
	URL      string            `json:"url"`
	Variants map[string]string `json:"variants"`
}

// UploadImage handles POST /api/images
// @Summary Upload an image
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Param kind formData string false "fix or avatar" default(fix)
// @Success 201 {object} ImageUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	content, filename, contentType, err := formFileBytes(c, "image")
	if err != nil {
		return respondServiceError(c, err)
	}

	uploaded, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      currentUserID(c),
		Kind:        c.FormValue("kind", models.ImageKindFix),
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(s.toImageUploadResponse(uploaded))
}

// GetImageStatus handles GET /api/images/:hash/status
// @Summary Image processing status
// @Tags images
// @Produce json
// @Param hash path string true "Image hash"
// @Success 200 {object} ImageStatusResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/images/{hash}/status [get]
func (s *Server) GetImageStatus(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	img, err := s.imageService.Status(c.UserContext(), hash)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(ImageStatusResponse{
		Status:   img.Status,
		CropMode: img.CropMode,
		Error:    img.Error,
		URL:      s.imageService.PublicURL(img.Hash),
		Variants: s.imageService.VariantsMap(img.Hash, img.Variants),
	})
}

// ServeMedia handles GET /media/i/:hash/:file
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	path, err := s.imageService.ResolveFile(c.UserContext(), c.Params("hash"), c.Params("file"))
	if err != nil {
		return respondServiceError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendFile(path)
}

func (s *Server) toImageUploadResponse(image *models.Image) ImageUploadResponse {
	return ImageUploadResponse{
		ID:        image.ID,
		Hash:      image.Hash,
		Kind:      image.Kind,
		Status:    image.Status,
		Width:     image.Width,
		Height:    image.Height,
		CropMode:  image.CropMode,
		SizeBytes: image.SizeBytes,
		MimeType:  image.MimeType,
		URL:       s.imageService.PublicURL(image.Hash),
		Variants:  s.imageService.VariantsMap(image.Hash, image.Variants),
	}
}
