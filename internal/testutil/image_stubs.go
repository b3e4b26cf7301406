// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"time"

	"fixmystuff/internal/models"

	"gorm.io/gorm"
)

// ImageRepoStub is an in-memory image repository implementation for tests.
type ImageRepoStub struct {
	mu     sync.Mutex
	items  map[string]*models.Image
	nextID uint
}

// NewImageRepoStub creates an in-memory image repository stub for tests.
func NewImageRepoStub() *ImageRepoStub {
	return &ImageRepoStub{items: make(map[string]*models.Image), nextID: 1}
}

// Create stores image metadata in-memory.
func (s *ImageRepoStub) Create(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[img.Hash]; exists {
		return gorm.ErrDuplicatedKey
	}
	if img.ID == 0 {
		img.ID = s.nextID
		s.nextID++
	}
	now := time.Now().UTC()
	img.CreatedAt = now
	img.UpdatedAt = now
	s.items[img.Hash] = img
	return nil
}

// GetByHash fetches an image by content hash.
func (s *ImageRepoStub) GetByHash(_ context.Context, hash string) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[hash]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

// GetByHashForUser fetches an image by hash when userID owns it.
func (s *ImageRepoStub) GetByHashForUser(ctx context.Context, hash string, userID uint) (*models.Image, error) {
	item, err := s.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

// GetByHashWithVariants fetches an image and its variants by hash.
func (s *ImageRepoStub) GetByHashWithVariants(ctx context.Context, hash string) (*models.Image, error) {
	return s.GetByHash(ctx, hash)
}

func (s *ImageRepoStub) byID(imageID uint) *models.Image {
	for _, item := range s.items {
		if item.ID == imageID {
			return item
		}
	}
	return nil
}

// UpdateLastAccessed updates LastAccessedAt for the matching image.
func (s *ImageRepoStub) UpdateLastAccessed(_ context.Context, imageID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.byID(imageID)
	if item == nil {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	item.LastAccessedAt = &now
	return nil
}

// UpsertVariant replaces or appends a variant on the stored image record.
func (s *ImageRepoStub) UpsertVariant(_ context.Context, v *models.ImageVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.byID(v.ImageID)
	if item == nil {
		return gorm.ErrRecordNotFound
	}
	for i := range item.Variants {
		if item.Variants[i].SizePx == v.SizePx && item.Variants[i].Format == v.Format {
			item.Variants[i] = *v
			return nil
		}
	}
	item.Variants = append(item.Variants, *v)
	return nil
}

// GetVariantsByImageID returns variants for a given image ID.
func (s *ImageRepoStub) GetVariantsByImageID(_ context.Context, imageID uint) ([]models.ImageVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.byID(imageID)
	if item == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return append([]models.ImageVariant(nil), item.Variants...), nil
}

// ClaimNextQueued marks and returns the next queued image.
func (s *ImageRepoStub) ClaimNextQueued(_ context.Context) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Status == models.ImageStatusQueued {
			item.Status = models.ImageStatusProcessing
			item.ProcessingAttempts++
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// MarkReady marks an image as ready.
func (s *ImageRepoStub) MarkReady(_ context.Context, imageID uint) error {
	return s.setStatus(imageID, models.ImageStatusReady, "")
}

// MarkFailed marks an image as failed with an error message.
func (s *ImageRepoStub) MarkFailed(_ context.Context, imageID uint, errMsg string) error {
	return s.setStatus(imageID, models.ImageStatusFailed, errMsg)
}

func (s *ImageRepoStub) setStatus(imageID uint, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.byID(imageID)
	if item == nil {
		return gorm.ErrRecordNotFound
	}
	item.Status = status
	item.Error = errMsg
	return nil
}

// StatusOf reads an image's status under the stub lock, for tests that
// race a background worker.
func (s *ImageRepoStub) StatusOf(hash string) (status string, variants int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[hash]
	if !ok {
		return "", 0
	}
	return item.Status, len(item.Variants)
}

// RequeueStaleProcessing is a no-op for the in-memory stub.
func (s *ImageRepoStub) RequeueStaleProcessing(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type fataler interface {
	Helper()
	Fatalf(string, ...any)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t fataler, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, gradient(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TinyJPEG returns an in-memory JPEG byte slice with the requested dimensions.
func TinyJPEG(t fataler, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, gradient(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}
