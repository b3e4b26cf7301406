package service

import (
	"context"
	"strings"

	"fixmystuff/internal/cache"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/observability"
	"fixmystuff/internal/repository"
	"fixmystuff/internal/solution"
)

const (
	DefaultFixPageSize = 20
	MaxFixPageSize     = 100

	DefaultRecentFixes = 4
	MaxRecentFixes     = 20
)

// Fix submission messages.
const (
	MsgSignInToSubmit   = "You need to be signed in to submit a fix request"
	MsgFixImageRequired = "Please upload an image of the item that needs fixing"
	MsgFixDescription   = "Please describe the issue you're experiencing"
	MsgSolutionReady    = "Your repair solution is ready."
)

// ImageStore is the part of ImageService fix submission depends on.
type ImageStore interface {
	Upload(ctx context.Context, in UploadImageInput) (*models.Image, error)
	PublicURL(hash string) string
}

// SolutionSource picks a generator for the user and runs it, returning the
// solution text and the provider name.
type SolutionSource interface {
	Generate(ctx context.Context, userID uint, req solution.Request) (string, string, error)
}

type SubmitFixInput struct {
	UserID      uint
	Description string
	Filename    string
	ContentType string
	Content     []byte
}

type FixService struct {
	fixRepo   repository.FixRequestRepository
	images    ImageStore
	solutions SolutionSource
}

func NewFixService(fixRepo repository.FixRequestRepository, images ImageStore, solutions SolutionSource) *FixService {
	return &FixService{fixRepo: fixRepo, images: images, solutions: solutions}
}

// Submit stores the photo, generates a solution and records the request.
// A generation failure still stores the request, with status failed.
func (s *FixService) Submit(ctx context.Context, in SubmitFixInput) (*models.FixRequest, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError(MsgSignInToSubmit)
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError(MsgFixImageRequired)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, models.NewValidationError(MsgFixDescription)
	}

	img, err := s.images.Upload(ctx, UploadImageInput{
		UserID:      in.UserID,
		Kind:        models.ImageKindFix,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Content:     in.Content,
	})
	if err != nil {
		return nil, err
	}
	imageURL := s.images.PublicURL(img.Hash)

	text, provider, genErr := s.solutions.Generate(ctx, in.UserID, solution.Request{
		Description: in.Description,
		ImageURL:    imageURL,
	})

	fix := &models.FixRequest{
		UserID:           in.UserID,
		Title:            models.FixRequestTitle(in.Description),
		Description:      in.Description,
		ImageURL:         imageURL,
		AISolution:       text,
		Status:           models.FixStatusCompleted,
		SolutionProvider: provider,
	}
	if genErr != nil {
		fix.Status = models.FixStatusFailed
		fix.AISolution = ""
	}

	if err := s.fixRepo.Create(ctx, fix); err != nil {
		return nil, err
	}
	observability.FixRequests.WithLabelValues(fix.Status).Inc()

	if genErr != nil {
		middleware.Logger.ErrorContext(ctx, "solution generation failed",
			"fix_id", fix.ID, "provider", provider, "error", genErr)
		return fix, &models.AppError{Code: models.CodeInternal, Message: "Failed to generate solution", Err: genErr}
	}

	cache.InvalidateRecentFixes(ctx)
	return fix, nil
}

func (s *FixService) List(ctx context.Context, userID uint, limit, offset int) ([]models.FixRequest, int64, error) {
	if limit <= 0 {
		limit = DefaultFixPageSize
	}
	if limit > MaxFixPageSize {
		limit = MaxFixPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.fixRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *FixService) Get(ctx context.Context, id, userID uint) (*models.FixRequest, error) {
	return s.fixRepo.GetByIDForUser(ctx, id, userID)
}

func (s *FixService) Delete(ctx context.Context, id, userID uint) error {
	if err := s.fixRepo.Delete(ctx, id, userID); err != nil {
		return err
	}
	cache.InvalidateRecentFixes(ctx)
	return nil
}

// Recent returns the community feed through the fixes:recent:<limit> cache.
func (s *FixService) Recent(ctx context.Context, limit int) ([]models.CommunityFix, error) {
	if limit <= 0 {
		limit = DefaultRecentFixes
	}
	if limit > MaxRecentFixes {
		limit = MaxRecentFixes
	}

	var fixes []models.CommunityFix
	err := cache.Aside(ctx, cache.RecentFixesKey(limit), &fixes, cache.RecentFixesTTL, func() error {
		var err error
		fixes, err = s.fixRepo.ListRecentCompleted(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if fixes == nil {
		fixes = []models.CommunityFix{}
	}
	return fixes, nil
}
