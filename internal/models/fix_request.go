package models

import "time"

// Fix request statuses.
const (
	FixStatusPending   = "pending"
	FixStatusCompleted = "completed"
	FixStatusFailed    = "failed"
)

// FixRequestTitleLength is the number of description characters kept in a title.
const FixRequestTitleLength = 50

// FixRequest is one submitted photo plus description and its generated solution.
type FixRequest struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	Title            string    `gorm:"not null" json:"title"`
	Description      string    `gorm:"type:text;not null" json:"description"`
	ImageURL         string    `json:"image_url"`
	AISolution       string    `gorm:"column:ai_solution;type:text" json:"ai_solution"`
	Status           string    `gorm:"index;not null;default:pending" json:"status"`
	SolutionProvider string    `json:"solution_provider"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	User             *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// FixRequestTitle derives a title from a description: the first 50
// characters, with "..." appended when the description is longer.
func FixRequestTitle(description string) string {
	r := []rune(description)
	if len(r) <= FixRequestTitleLength {
		return description
	}
	return string(r[:FixRequestTitleLength]) + "..."
}

// CommunityFix is a completed fix as shown in the recent community fixes list.
type CommunityFix struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	FixedBy     string    `json:"fixed_by"`
	CreatedAt   time.Time `json:"created_at"`
}
