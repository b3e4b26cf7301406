package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"fixmystuff/internal/config"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/observability"
	"fixmystuff/internal/repository"

	"gorm.io/gorm"
)

const (
	DefaultImageUploadDir       = "/tmp/fixmystuff/uploads/images"
	DefaultImageMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	JPEGQuality                 = 82
	WebPQuality                 = 70

	staleProcessingAfter = 15 * time.Minute
	requeueInterval      = time.Minute
	workerIdleSleep      = 750 * time.Millisecond
)

// Upload validation messages.
const (
	MsgNoFileUploaded   = "No file uploaded"
	MsgInvalidImageType = "Invalid file type: please upload an image file"
)

var sizeLadder = []int{256, 640, 1080, 1440, 2048}

var servableFile = regexp.MustCompile(`^(master|256|640|1080|1440|2048)\.(jpg|webp)$`)

// UploadImageInput is one uploaded file. Kind defaults to models.ImageKindFix.
type UploadImageInput struct {
	UserID      uint
	Kind        string
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService stores uploads on disk and renders their size variants in
// the background.
type ImageService struct {
	repo               repository.ImageRepository
	uploadDir          string
	publicBaseURL      string
	maxUploadSizeBytes int64

	workerOnce sync.Once
	workerWG   sync.WaitGroup
}

func NewImageService(repo repository.ImageRepository, cfg *config.Config) *ImageService {
	uploadDir := DefaultImageUploadDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	publicBaseURL := ""

	if cfg != nil {
		if cfg.ImageUploadDir != "" {
			uploadDir = cfg.ImageUploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
		publicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	}

	return &ImageService{
		repo:               repo,
		uploadDir:          uploadDir,
		publicBaseURL:      publicBaseURL,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// StartBackgroundWorker launches the variant worker once. It stops when ctx
// is cancelled; Wait blocks until it has returned.
func (s *ImageService) StartBackgroundWorker(ctx context.Context) {
	if s.repo == nil {
		return
	}
	s.workerOnce.Do(func() {
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			s.workerLoop(ctx)
		}()
	})
}

// Wait blocks until the background worker exits.
func (s *ImageService) Wait() {
	s.workerWG.Wait()
}

func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (img *models.Image, err error) {
	kind := in.Kind
	if kind == "" {
		kind = models.ImageKindFix
	}
	defer func() {
		outcome := "stored"
		switch {
		case models.ErrorCode(err) == models.CodeValidation:
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		observability.ImageUploads.WithLabelValues(kind, outcome).Inc()
	}()

	if kind != models.ImageKindFix && kind != models.ImageKindAvatar {
		return nil, models.NewValidationError("Invalid image kind")
	}
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError(MsgNoFileUploaded)
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	if !isAllowedImageMIME(http.DetectContentType(in.Content)) {
		return nil, models.NewValidationError(MsgInvalidImageType)
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	sourceMimeType := decodedFormatToMime(format)
	if sourceMimeType == "" {
		return nil, models.NewValidationError(MsgInvalidImageType)
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	b := decoded.Bounds()
	crop := cropFor(kind, b.Dx(), b.Dy())
	master := resizeToFit(cropToRect(decoded, crop), MasterMaxSize, MasterMaxSize)

	masterJPG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	masterWebP, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	hash := buildDeterministicImageHash(in.UserID, masterJPG)
	if s.repo != nil {
		existing, getErr := s.repo.GetByHashWithVariants(ctx, hash)
		if getErr == nil {
			return existing, nil
		}
		if !errors.Is(getErr, gorm.ErrRecordNotFound) {
			return nil, models.NewInternalError(getErr)
		}
	}

	jpgRel := filepath.ToSlash(filepath.Join(hash, "master.jpg"))
	webpRel := filepath.ToSlash(filepath.Join(hash, "master.webp"))
	written := []string{filepath.Join(s.uploadDir, jpgRel), filepath.Join(s.uploadDir, webpRel)}

	if err := writeBytesToFile(written[0], masterJPG); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := writeBytesToFile(written[1], masterWebP); err != nil {
		cleanupImageFiles(written)
		return nil, models.NewInternalError(err)
	}

	mb := master.Bounds()
	record := &models.Image{
		Hash:             hash,
		UserID:           in.UserID,
		Kind:             kind,
		OriginalFilename: in.Filename,
		MimeType:         "image/jpeg",
		SizeBytes:        int64(len(masterJPG)),
		Width:            mb.Dx(),
		Height:           mb.Dy(),
		OriginalPath:     jpgRel,
		Status:           models.ImageStatusQueued,
		CropMode:         crop.mode,
		CropX:            crop.x,
		CropY:            crop.y,
		CropW:            crop.w,
		CropH:            crop.h,
		UploadedAt:       time.Now().UTC(),
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, record); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Concurrent upload of the same bytes; the files are identical.
				if existing, getErr := s.repo.GetByHashWithVariants(ctx, hash); getErr == nil {
					return existing, nil
				}
			}
			cleanupImageFiles(written)
			return nil, models.NewInternalError(err)
		}
	}

	middleware.Logger.InfoContext(ctx, "image stored",
		"hash", hash, "kind", kind, "user_id", in.UserID, "width", record.Width, "height", record.Height)
	return record, nil
}

// Status returns the image with its rendered variants.
func (s *ImageService) Status(ctx context.Context, hash string) (*models.Image, error) {
	if !isValidImageHash(hash) {
		return nil, models.NewValidationError("Invalid image hash")
	}
	if s.repo == nil {
		return nil, models.NewInternalError(errors.New("image repository not configured"))
	}
	img, err := s.repo.GetByHashWithVariants(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Image", hash)
		}
		return nil, models.NewInternalError(err)
	}
	return img, nil
}

// PublicURL is the absolute (when PUBLIC_BASE_URL is set) URL of the master JPEG.
func (s *ImageService) PublicURL(hash string) string {
	return s.publicBaseURL + fmt.Sprintf("/media/i/%s/master.jpg", hash)
}

func (s *ImageService) VariantURL(hash string, size int, format string) string {
	return s.publicBaseURL + fmt.Sprintf("/media/i/%s/%d.%s", hash, size, format)
}

// VariantsMap keys variant URLs by "<size>_<format>".
func (s *ImageService) VariantsMap(hash string, variants []models.ImageVariant) map[string]string {
	m := make(map[string]string, len(variants))
	for _, v := range variants {
		m[fmt.Sprintf("%d_%s", v.SizePx, v.Format)] = s.VariantURL(hash, v.SizePx, v.Format)
	}
	return m
}

// isValidImageHash checks that the hash is strictly lowercase hex.
func isValidImageHash(hash string) bool {
	if len(hash) == 0 || len(hash) > 128 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ResolveFile maps a /media/i/:hash/:file request to a path on disk.
func (s *ImageService) ResolveFile(ctx context.Context, hash, file string) (string, error) {
	if !isValidImageHash(hash) {
		return "", models.NewValidationError("Invalid image hash")
	}
	if !servableFile.MatchString(file) {
		return "", models.NewValidationError("Invalid image file name")
	}

	fullPath := filepath.Join(s.uploadDir, hash, file)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Image", hash)
		}
		return "", models.NewInternalError(err)
	}

	if s.repo != nil {
		if img, err := s.repo.GetByHash(ctx, hash); err == nil {
			_ = s.repo.UpdateLastAccessed(ctx, img.ID)
		}
	}
	return fullPath, nil
}

func (s *ImageService) workerLoop(ctx context.Context) {
	s.requeueStale(ctx)
	lastRequeue := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}
		if time.Since(lastRequeue) >= requeueInterval {
			s.requeueStale(ctx)
			lastRequeue = time.Now()
		}

		img, err := s.repo.ClaimNextQueued(ctx)
		if err != nil {
			wait := workerIdleSleep
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				if ctx.Err() == nil {
					middleware.Logger.Error("claim queued image failed", "error", err)
				}
				wait = time.Second
			}
			if !sleepContext(ctx, wait) {
				return
			}
			continue
		}

		if err := s.processQueuedImage(ctx, img); err != nil {
			observability.ImageProcessing.WithLabelValues("failed").Inc()
			middleware.Logger.Warn("image processing failed", "image_id", img.ID, "hash", img.Hash, "error", err)
			if ferr := s.repo.MarkFailed(ctx, img.ID, err.Error()); ferr != nil {
				middleware.Logger.Error("mark image failed", "image_id", img.ID, "error", ferr)
			}
			continue
		}
		observability.ImageProcessing.WithLabelValues("ready").Inc()
	}
}

func (s *ImageService) requeueStale(ctx context.Context) {
	n, err := s.repo.RequeueStaleProcessing(ctx, staleProcessingAfter)
	if err != nil {
		if ctx.Err() == nil {
			middleware.Logger.Error("requeue stale images failed", "error", err)
		}
		return
	}
	if n > 0 {
		middleware.Logger.Info("requeued stale images", "count", n)
	}
}

func (s *ImageService) processQueuedImage(ctx context.Context, img *models.Image) error {
	masterPath := filepath.Join(s.uploadDir, img.Hash, "master.jpg")
	// #nosec G304: masterPath is built from a stored hash
	f, err := os.Open(masterPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	master, _, err := image.Decode(f)
	if err != nil {
		return err
	}
	b := master.Bounds()

	for _, size := range sizeLadder {
		if b.Dx() < size || b.Dy() < size {
			continue
		}
		resized := resizeToFit(master, size, size)
		for _, format := range []string{"webp", "jpg"} {
			if err := s.writeVariant(ctx, img, resized, size, format); err != nil {
				return err
			}
		}
	}

	return s.repo.MarkReady(ctx, img.ID)
}

func (s *ImageService) writeVariant(ctx context.Context, img *models.Image, resized image.Image, size int, format string) error {
	var (
		data []byte
		err  error
	)
	if format == "webp" {
		data, err = encodeWebP(resized, WebPQuality)
	} else {
		data, err = encodeJPEG(resized, JPEGQuality)
	}
	if err != nil {
		return err
	}

	rel := filepath.ToSlash(filepath.Join(img.Hash, fmt.Sprintf("%d.%s", size, format)))
	if err := writeBytesToFile(filepath.Join(s.uploadDir, rel), data); err != nil {
		return err
	}
	rb := resized.Bounds()
	return s.repo.UpsertVariant(ctx, &models.ImageVariant{
		ImageID:  img.ID,
		SizeName: sizeNameFor(size),
		SizePx:   size,
		Format:   format,
		Path:     rel,
		Width:    rb.Dx(),
		Height:   rb.Dy(),
		Bytes:    int64(len(data)),
	})
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
