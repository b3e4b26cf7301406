package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fixmystuff/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxImageErrorLength bounds the stored processing error.
const maxImageErrorLength = 4000

// ImageRepository defines storage operations for uploaded images.
// Lookups return gorm.ErrRecordNotFound for unknown hashes.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByHash(ctx context.Context, hash string) (*models.Image, error)
	GetByHashForUser(ctx context.Context, hash string, userID uint) (*models.Image, error)
	GetByHashWithVariants(ctx context.Context, hash string) (*models.Image, error)
	UpdateLastAccessed(ctx context.Context, id uint) error
	UpsertVariant(ctx context.Context, v *models.ImageVariant) error
	GetVariantsByImageID(ctx context.Context, imageID uint) ([]models.ImageVariant, error)
	ClaimNextQueued(ctx context.Context) (*models.Image, error)
	MarkReady(ctx context.Context, imageID uint) error
	MarkFailed(ctx context.Context, imageID uint, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a repository implementation for image metadata.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create returns gorm.ErrDuplicatedKey when the hash already exists.
func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		if isUniqueConstraintError(err) {
			return gorm.ErrDuplicatedKey
		}
		return err
	}
	return nil
}

func (r *imageRepository) GetByHash(ctx context.Context, hash string) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *imageRepository) GetByHashForUser(ctx context.Context, hash string, userID uint) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).Where("hash = ? AND user_id = ?", hash, userID).First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *imageRepository) GetByHashWithVariants(ctx context.Context, hash string) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("hash = ?", hash).
		First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *imageRepository) UpdateLastAccessed(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Update("last_accessed_at", now).Error
}

// UpsertVariant inserts the variant or overwrites the existing row for the
// same (image, size, format).
func (r *imageRepository) UpsertVariant(ctx context.Context, v *models.ImageVariant) error {
	if v == nil {
		return fmt.Errorf("variant is nil")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "image_id"}, {Name: "size_px"}, {Name: "format"}},
			DoUpdates: clause.AssignmentColumns([]string{"size_name", "path", "width", "height", "bytes"}),
		}).
		Create(v).Error
}

func (r *imageRepository) GetVariantsByImageID(ctx context.Context, imageID uint) ([]models.ImageVariant, error) {
	var variants []models.ImageVariant
	err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("size_px ASC, format ASC").
		Find(&variants).Error
	return variants, err
}

// ClaimNextQueued moves the oldest queued image to processing and returns it.
func (r *imageRepository) ClaimNextQueued(ctx context.Context) (*models.Image, error) {
	if r.db.Name() == "postgres" {
		var claimed models.Image
		err := r.db.WithContext(ctx).Raw(`
WITH picked AS (
	SELECT id
	FROM images
	WHERE status = ?
	ORDER BY id
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
UPDATE images i
SET status = ?,
    processing_started_at = NOW(),
    processing_attempts = i.processing_attempts + 1,
    error = ''
FROM picked
WHERE i.id = picked.id
RETURNING i.*
`, models.ImageStatusQueued, models.ImageStatusProcessing).Scan(&claimed).Error
		if err != nil {
			return nil, err
		}
		if claimed.ID == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return &claimed, nil
	}

	// sqlite has no SKIP LOCKED; the conditional update keeps two workers
	// from claiming the same row.
	var claimed models.Image
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", models.ImageStatusQueued).Order("id ASC").First(&claimed).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Image{}).
			Where("id = ? AND status = ?", claimed.ID, models.ImageStatusQueued).
			Updates(map[string]interface{}{
				"status":                models.ImageStatusProcessing,
				"processing_started_at": time.Now().UTC(),
				"processing_attempts":   gorm.Expr("processing_attempts + 1"),
				"error":                 "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&claimed, claimed.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

func (r *imageRepository) MarkReady(ctx context.Context, imageID uint) error {
	return r.db.WithContext(ctx).Model(&models.Image{}).
		Where("id = ?", imageID).
		Updates(map[string]interface{}{
			"status":                models.ImageStatusReady,
			"error":                 "",
			"processing_started_at": nil,
		}).Error
}

func (r *imageRepository) MarkFailed(ctx context.Context, imageID uint, errMsg string) error {
	if len(errMsg) > maxImageErrorLength {
		errMsg = errMsg[:maxImageErrorLength]
	}
	return r.db.WithContext(ctx).Model(&models.Image{}).
		Where("id = ?", imageID).
		Updates(map[string]interface{}{
			"status":                models.ImageStatusFailed,
			"error":                 errMsg,
			"processing_started_at": nil,
		}).Error
}

// RequeueStaleProcessing returns images stuck in processing for longer than
// olderThan to the queue, e.g. after a worker crash.
func (r *imageRepository) RequeueStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	res := r.db.WithContext(ctx).Model(&models.Image{}).
		Where("status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?", models.ImageStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":                models.ImageStatusQueued,
			"processing_started_at": nil,
		})
	return res.RowsAffected, res.Error
}
