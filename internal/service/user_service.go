package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fixmystuff/internal/models"
	"fixmystuff/internal/repository"
	"fixmystuff/internal/validation"
)

// DefaultUsernameChangeCooldown applies when no cooldown is configured.
const DefaultUsernameChangeCooldown = 6 * time.Hour

const msgUsernameTaken = "This username is already taken"

// Profile is the signed-in user's own view of their account.
type Profile struct {
	ID                    uint       `json:"id"`
	Email                 string     `json:"email"`
	Username              string     `json:"username"`
	AvatarURL             string     `json:"avatar_url"`
	LastUsernameChange    *time.Time `json:"last_username_change"`
	DarkMode              bool       `json:"dark_mode"`
	UsernameChangeAllowed bool       `json:"username_change_allowed"`
	NextUsernameChangeAt  *time.Time `json:"next_username_change_at"`
}

// UpdateProfileInput carries optional profile changes; nil fields are left alone.
type UpdateProfileInput struct {
	UserID    uint
	Username  *string
	AvatarURL *string
}

// Preferences is the stored appearance setting plus a confirmation message.
type Preferences struct {
	DarkMode bool   `json:"dark_mode"`
	Message  string `json:"message"`
}

type UserService struct {
	userRepo repository.UserRepository
	cooldown time.Duration
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository, cooldown time.Duration) *UserService {
	if cooldown <= 0 {
		cooldown = DefaultUsernameChangeCooldown
	}
	return &UserService{userRepo: userRepo, cooldown: cooldown, now: time.Now}
}

// ProfileOf builds the profile view of u at the current time.
func (s *UserService) ProfileOf(u *models.User) *Profile {
	p := &Profile{
		ID:                    u.ID,
		Email:                 u.Email,
		Username:              u.Username,
		AvatarURL:             u.AvatarURL,
		LastUsernameChange:    u.LastUsernameChange,
		DarkMode:              u.DarkMode,
		UsernameChangeAllowed: u.CanChangeUsername(s.now(), s.cooldown),
	}
	if next := u.UsernameChangeAllowedAt(s.cooldown); !next.IsZero() {
		p.NextUsernameChangeAt = &next
	}
	return p
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ProfileOf(user), nil
}

func (s *UserService) GetPublic(ctx context.Context, userID uint) (models.PublicProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.PublicProfile{}, err
	}
	return user.Public(), nil
}

// CheckUsername reports whether name is free for userID. The caller's own
// current username counts as available.
func (s *UserService) CheckUsername(ctx context.Context, userID uint, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateUsername(name); err != nil {
		return false, models.NewValidationError(err.Error())
	}
	taken, err := s.userRepo.UsernameTaken(ctx, name, userID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return !taken, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name != user.Username {
			if err := validation.ValidateUsername(name); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
			now := s.now()
			if !user.CanChangeUsername(now, s.cooldown) {
				return nil, models.NewValidationError(
					"You can only change your username once every " + formatCooldown(s.cooldown))
			}
			taken, err := s.userRepo.UsernameTaken(ctx, name, user.ID)
			if err != nil {
				return nil, models.NewInternalError(err)
			}
			if taken {
				return nil, models.NewConflictError(msgUsernameTaken)
			}
			user.Username = name
			changedAt := now.UTC()
			user.LastUsernameChange = &changedAt
		}
	}
	if in.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if models.ErrorCode(err) == models.CodeConflict {
			return nil, models.NewConflictError(msgUsernameTaken)
		}
		return nil, err
	}
	return s.ProfileOf(user), nil
}

// SetAvatar points the user's avatar at an uploaded image.
func (s *UserService) SetAvatar(ctx context.Context, userID uint, url string) (*Profile, error) {
	return s.UpdateProfile(ctx, UpdateProfileInput{UserID: userID, AvatarURL: &url})
}

func (s *UserService) UpdatePreferences(ctx context.Context, userID uint, darkMode bool) (*Preferences, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.DarkMode = darkMode
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	msg := "Light mode enabled"
	if darkMode {
		msg = "Dark mode enabled"
	}
	return &Preferences{DarkMode: darkMode, Message: msg}, nil
}

// formatCooldown renders whole hours as "N hours" and anything else in minutes.
func formatCooldown(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int64(d/time.Hour), "hour")
	}
	return plural(int64(d/time.Minute), "minute")
}
