// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account together with its public profile.
type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Email              string         `gorm:"uniqueIndex;not null" json:"email"`
	Password           string         `gorm:"not null" json:"-"`
	Username           string         `gorm:"uniqueIndex;not null;size:30" json:"username"`
	AvatarURL          string         `json:"avatar_url"`
	LastUsernameChange *time.Time     `json:"last_username_change"`
	DarkMode           bool           `gorm:"not null;default:false" json:"dark_mode"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	FixRequests        []FixRequest   `gorm:"foreignKey:UserID" json:"fix_requests,omitempty"`
}

// UsernameChangeAllowedAt returns the earliest time the username may change
// again. The zero time means a change is allowed immediately.
func (u *User) UsernameChangeAllowedAt(cooldown time.Duration) time.Time {
	if u.LastUsernameChange == nil || cooldown <= 0 {
		return time.Time{}
	}
	return u.LastUsernameChange.Add(cooldown)
}

// CanChangeUsername reports whether the cooldown since the last username
// change has elapsed at now.
func (u *User) CanChangeUsername(now time.Time, cooldown time.Duration) bool {
	next := u.UsernameChangeAllowedAt(cooldown)
	return next.IsZero() || !now.Before(next)
}

// PublicProfile is the subset of User visible to other users.
type PublicProfile struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Public strips private fields.
func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}
