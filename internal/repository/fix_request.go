package repository

import (
	"context"
	"errors"

	"fixmystuff/internal/models"

	"gorm.io/gorm"
)

// FixRequestRepository defines persistence operations for fix requests.
type FixRequestRepository interface {
	Create(ctx context.Context, fix *models.FixRequest) error
	Update(ctx context.Context, fix *models.FixRequest) error
	GetByIDForUser(ctx context.Context, id, userID uint) (*models.FixRequest, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.FixRequest, int64, error)
	Delete(ctx context.Context, id, userID uint) error
	ListRecentCompleted(ctx context.Context, limit int) ([]models.CommunityFix, error)
}

type fixRequestRepository struct {
	db *gorm.DB
}

// NewFixRequestRepository returns a GORM-backed FixRequestRepository.
func NewFixRequestRepository(db *gorm.DB) FixRequestRepository {
	return &fixRequestRepository{db: db}
}

func (r *fixRequestRepository) Create(ctx context.Context, fix *models.FixRequest) error {
	if err := r.db.WithContext(ctx).Create(fix).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *fixRequestRepository) Update(ctx context.Context, fix *models.FixRequest) error {
	if err := r.db.WithContext(ctx).Save(fix).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByIDForUser returns a not-found error for fixes owned by someone else,
// so callers cannot probe for other users' requests.
func (r *fixRequestRepository) GetByIDForUser(ctx context.Context, id, userID uint) (*models.FixRequest, error) {
	var fix models.FixRequest
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&fix).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fix request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &fix, nil
}

// ListByUser returns one page of the user's fixes, newest first, and the total count.
func (r *fixRequestRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.FixRequest, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.FixRequest{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	fixes := make([]models.FixRequest, 0, limit)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&fixes).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return fixes, total, nil
}

func (r *fixRequestRepository) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.FixRequest{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Fix request", id)
	}
	return nil
}

// ListRecentCompleted returns the newest completed fixes with their author's username.
func (r *fixRequestRepository) ListRecentCompleted(ctx context.Context, limit int) ([]models.CommunityFix, error) {
	fixes := make([]models.CommunityFix, 0, limit)
	err := r.db.WithContext(ctx).
		Table("fix_requests").
		Select("fix_requests.id, fix_requests.title, fix_requests.description, fix_requests.image_url, users.username AS fixed_by, fix_requests.created_at").
		Joins("JOIN users ON users.id = fix_requests.user_id AND users.deleted_at IS NULL").
		Where("fix_requests.status = ?", models.FixStatusCompleted).
		Order("fix_requests.created_at DESC, fix_requests.id DESC").
		Limit(limit).
		Scan(&fixes).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return fixes, nil
}
