package models

import "time"

// Image kinds.
const (
	ImageKindFix    = "fix"
	ImageKindAvatar = "avatar"
)

// Image processing states.
const (
	ImageStatusQueued     = "queued"
	ImageStatusProcessing = "processing"
	ImageStatusReady      = "ready"
	ImageStatusFailed     = "failed"
)

// Image is the metadata of one stored upload. Files live under
// <upload dir>/<Hash>/.
type Image struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Hash                string         `gorm:"uniqueIndex;size:64;not null" json:"hash"`
	UserID              uint           `gorm:"index;not null" json:"user_id"`
	Kind                string         `gorm:"size:16;not null;default:fix" json:"kind"`
	OriginalFilename    string         `json:"original_filename"`
	MimeType            string         `json:"mime_type"`
	SizeBytes           int64          `json:"size_bytes"`
	Width               int            `json:"width"`
	Height              int            `json:"height"`
	OriginalPath        string         `json:"original_path"`
	Status              string         `gorm:"index;size:16;not null" json:"status"`
	CropMode            string         `json:"crop_mode"`
	CropX               int            `json:"crop_x"`
	CropY               int            `json:"crop_y"`
	CropW               int            `json:"crop_w"`
	CropH               int            `json:"crop_h"`
	Error               string         `json:"error,omitempty"`
	ProcessingAttempts  int            `json:"processing_attempts"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at,omitempty"`
	UploadedAt          time.Time      `json:"uploaded_at"`
	LastAccessedAt      *time.Time     `json:"last_accessed_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Variants            []ImageVariant `gorm:"foreignKey:ImageID" json:"variants,omitempty"`
}

// ImageVariant is one resized rendition of an Image.
type ImageVariant struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ImageID  uint   `gorm:"uniqueIndex:idx_image_variant;not null" json:"image_id"`
	SizeName string `json:"size_name"`
	SizePx   int    `gorm:"uniqueIndex:idx_image_variant;not null" json:"size_px"`
	Format   string `gorm:"uniqueIndex:idx_image_variant;size:8;not null" json:"format"`
	Path     string `json:"path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int64  `json:"bytes"`
}
