package service

import (
	"context"
	"strconv"
	"strings"

	"fixmystuff/internal/auth"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/repository"
	"fixmystuff/internal/validation"
)

// maxUsernameSuffix bounds the search for a free derived username.
const maxUsernameSuffix = 9999

const msgInvalidCredentials = "Invalid credentials"

type SignupInput struct {
	Email    string
	Password string
	Username string
}

// Session is a signed-in user plus their token pair.
type Session struct {
	*auth.TokenPair
	User *models.User `json:"user"`
}

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenManager
	revoker  *auth.Revoker
}

func NewAuthService(userRepo repository.UserRepository, tokens *auth.TokenManager, revoker *auth.Revoker) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, revoker: revoker}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	username := strings.TrimSpace(in.Username)
	if username != "" {
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		taken, err := s.userRepo.UsernameTaken(ctx, username, 0)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if taken {
			return nil, models.NewConflictError(msgUsernameTaken)
		}
	} else {
		local := email[:strings.LastIndexByte(email, '@')]
		if username, err = s.freeUsername(ctx, validation.NormalizeUsername(local)); err != nil {
			return nil, err
		}
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{Email: email, Username: username, Password: hashed}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "user signed up", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

// freeUsername returns base, or base with the smallest numeric suffix that
// is not taken.
func (s *AuthService) freeUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 1; n <= maxUsernameSuffix; n++ {
		taken, err := s.userRepo.UsernameTaken(ctx, candidate, 0)
		if err != nil {
			return "", models.NewInternalError(err)
		}
		if !taken {
			return candidate, nil
		}
		suffix := strconv.Itoa(n)
		stem := base
		if len(stem)+len(suffix) > validation.UsernameMaxLength {
			stem = stem[:validation.UsernameMaxLength-len(suffix)]
		}
		candidate = stem + suffix
	}
	return "", models.NewConflictError(msgUsernameTaken)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.Password, password) {
		return nil, models.NewUnauthorizedError(msgInvalidCredentials)
	}
	return s.issue(user)
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if s.revoker.IsRevoked(ctx, claims.ID) {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewUnauthorizedError("Invalid or expired token")
		}
		return nil, err
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.issue(user)
}

// Logout revokes the presented access token until it expires.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{TokenPair: pair, User: user}, nil
}
