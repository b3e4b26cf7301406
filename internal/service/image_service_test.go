package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fixmystuff/internal/config"
	"fixmystuff/internal/models"
	"fixmystuff/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImageService(t *testing.T, maxMB int) (*ImageService, *testutil.ImageRepoStub, *config.Config) {
	t.Helper()
	repo := testutil.NewImageRepoStub()
	cfg := &config.Config{
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: maxMB,
		PublicBaseURL:        "https://fixmystuff.io/",
	}
	return NewImageService(repo, cfg), repo, cfg
}

func TestImageServiceUploadAndResolve(t *testing.T) {
	svc, _, cfg := newTestImageService(t, 1)
	ctx := context.Background()

	content := testutil.TinyPNG(t, 1200, 800)
	img, err := svc.Upload(ctx, UploadImageInput{
		UserID:      42,
		Filename:    "toaster.png",
		ContentType: "image/png",
		Content:     content,
	})
	require.NoError(t, err)
	require.NotZero(t, img.ID)
	assert.Equal(t, models.ImageKindFix, img.Kind)
	assert.Equal(t, models.ImageStatusQueued, img.Status)
	assert.Equal(t, "free", img.CropMode)
	assert.Equal(t, 1200, img.Width)
	assert.Equal(t, 800, img.Height)

	for _, name := range []string{"master.jpg", "master.webp"} {
		_, statErr := os.Stat(filepath.Join(cfg.ImageUploadDir, img.Hash, name))
		assert.NoError(t, statErr, name)
	}

	// Same content by the same user dedupes.
	again, err := svc.Upload(ctx, UploadImageInput{UserID: 42, Filename: "copy.png", ContentType: "image/png", Content: content})
	require.NoError(t, err)
	assert.Equal(t, img.ID, again.ID)

	// Another user gets their own record.
	other, err := svc.Upload(ctx, UploadImageInput{UserID: 43, ContentType: "image/png", Content: content})
	require.NoError(t, err)
	assert.NotEqual(t, img.Hash, other.Hash)

	path, err := svc.ResolveFile(ctx, img.Hash, "master.webp")
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, "https://fixmystuff.io/media/i/"+img.Hash+"/master.jpg", svc.PublicURL(img.Hash))
}

func TestImageServiceAvatarIsSquareCropped(t *testing.T) {
	svc, _, _ := newTestImageService(t, 10)

	img, err := svc.Upload(context.Background(), UploadImageInput{
		UserID:      7,
		Kind:        models.ImageKindAvatar,
		ContentType: "image/jpeg",
		Content:     testutil.TinyJPEG(t, 300, 200),
	})
	require.NoError(t, err)
	assert.Equal(t, "square", img.CropMode)
	assert.Equal(t, 50, img.CropX)
	assert.Equal(t, 0, img.CropY)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 200, img.Height)
}

func TestImageServiceFitsLargeUploads(t *testing.T) {
	svc, _, _ := newTestImageService(t, 20)

	content := noisyPNG(t, 2400, 1200)
	img, err := svc.Upload(context.Background(), UploadImageInput{
		UserID:      9,
		Filename:    "large.png",
		ContentType: "image/png",
		Content:     content,
	})
	require.NoError(t, err)
	assert.Equal(t, MasterMaxSize, img.Width)
	assert.Equal(t, 1024, img.Height)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, ".jpg", filepath.Ext(img.OriginalPath))
	assert.Less(t, img.SizeBytes, int64(len(content)))
}

func TestImageServiceNormalizesTransparencyToJPEG(t *testing.T) {
	svc, _, _ := newTestImageService(t, 10)

	img, err := svc.Upload(context.Background(), UploadImageInput{
		UserID:      11,
		Filename:    "alpha.png",
		ContentType: "image/png",
		Content:     transparentPNG(t, 64, 64),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
}

func TestImageServiceUploadValidation(t *testing.T) {
	svc, _, _ := newTestImageService(t, 1)
	sample := testutil.TinyPNG(t, 16, 16)

	tests := []struct {
		name string
		in   UploadImageInput
		msg  string
	}{
		{"empty", UploadImageInput{UserID: 1}, "No file uploaded"},
		{"not an image", UploadImageInput{UserID: 1, ContentType: "text/plain", Content: []byte("not an image")}, "Invalid file type: please upload an image file"},
		{"too large", UploadImageInput{UserID: 1, Content: bytes.Repeat([]byte{'a'}, 2*1024*1024)}, "File too large (max 1MB)"},
		{"type mismatch", UploadImageInput{UserID: 1, ContentType: "image/jpeg", Content: sample}, "Image content type mismatch"},
		{"no user", UploadImageInput{Content: sample}, "Invalid user"},
		{"unknown kind", UploadImageInput{UserID: 1, Kind: "banner", Content: sample}, "Invalid image kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.in)
			require.Error(t, err)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}
}

func TestImageServiceResolveFileRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestImageService(t, 1)
	ctx := context.Background()

	_, err := svc.ResolveFile(ctx, "../etc", "master.jpg")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.ResolveFile(ctx, "ABCDEF", "master.jpg")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err), "uppercase hex is rejected")

	_, err = svc.ResolveFile(ctx, "abc123", "passwd")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.ResolveFile(ctx, "abc123", "999.jpg")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.ResolveFile(ctx, "abc123", "640.webp")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestImageServiceProcessesVariants(t *testing.T) {
	svc, repo, cfg := newTestImageService(t, 10)
	ctx := context.Background()

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 3, ContentType: "image/png", Content: testutil.TinyPNG(t, 1200, 800)})
	require.NoError(t, err)

	claimed, err := repo.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.processQueuedImage(ctx, claimed))

	status, variants := repo.StatusOf(img.Hash)
	assert.Equal(t, models.ImageStatusReady, status)
	// 256 and 640 fit a 1200x800 master, each in two formats.
	assert.Equal(t, 4, variants)
	assert.FileExists(t, filepath.Join(cfg.ImageUploadDir, img.Hash, "640.webp"))
	assert.FileExists(t, filepath.Join(cfg.ImageUploadDir, img.Hash, "256.jpg"))

	got, err := svc.Status(ctx, img.Hash)
	require.NoError(t, err)
	urls := svc.VariantsMap(got.Hash, got.Variants)
	assert.Equal(t, "https://fixmystuff.io/media/i/"+img.Hash+"/640.jpg", urls["640_jpg"])

	_, err = svc.Status(ctx, "ffff")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestImageServiceWorkerMarksMissingMasterFailed(t *testing.T) {
	svc, repo, cfg := newTestImageService(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 5, ContentType: "image/png", Content: testutil.TinyPNG(t, 300, 300)})
	require.NoError(t, err)
	hash := img.Hash
	require.NoError(t, os.Remove(filepath.Join(cfg.ImageUploadDir, hash, "master.jpg")))

	svc.StartBackgroundWorker(ctx)
	assert.Eventually(t, func() bool {
		status, _ := repo.StatusOf(hash)
		return status == models.ImageStatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	svc.Wait()
}

func TestCropFor(t *testing.T) {
	assert.Equal(t, cropRect{mode: "free", w: 400, h: 100}, cropFor(models.ImageKindFix, 400, 100))
	assert.Equal(t, cropRect{mode: "square", x: 0, y: 150, w: 100, h: 100}, cropFor(models.ImageKindAvatar, 100, 400))
}

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	// #nosec G404: weak random is fine for test image generation
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				// #nosec G115: Intn(256) is safe for uint8
				R: uint8(rng.Intn(256)),
				// #nosec G115
				G: uint8(rng.Intn(256)),
				// #nosec G115
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func transparentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// #nosec G115: modulo 255 is safe for uint8
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 0, B: 0, A: uint8((x + y) % 255)})
		}
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}
