package service

import (
	"context"
	"testing"

	"fixmystuff/internal/auth"
	"fixmystuff/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "service-test-secret-at-least-32-characters"

func newTestAuthService(t *testing.T, repo *userRepoStub) (*AuthService, *auth.TokenManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tm := auth.NewTokenManager(testJWTSecret)
	return NewAuthService(repo, tm, auth.NewRevoker(rdb)), tm
}

// memoryUsers backs userRepoStub with a map so signup and login see each other.
func memoryUsers() *userRepoStub {
	byEmail := map[string]*models.User{}
	byID := map[uint]*models.User{}
	repo := noopUserRepo()
	repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		return byEmail[email], nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if u, ok := byID[id]; ok {
			return u, nil
		}
		return nil, models.NewNotFoundError("User", id)
	}
	repo.usernameTakenFn = func(_ context.Context, name string, exclude uint) (bool, error) {
		for _, u := range byID {
			if u.Username == name && u.ID != exclude {
				return true, nil
			}
		}
		return false, nil
	}
	repo.createFn = func(_ context.Context, u *models.User) error {
		u.ID = uint(len(byID) + 1)
		byID[u.ID] = u
		byEmail[u.Email] = u
		return nil
	}
	return repo
}

func TestAuthService_SignupDerivesUsername(t *testing.T) {
	repo := memoryUsers()
	svc, tm := newTestAuthService(t, repo)
	ctx := context.Background()

	first, err := svc.Signup(ctx, SignupInput{Email: "John.Doe@example.com", Password: "hunter22x"})
	require.NoError(t, err)
	assert.Equal(t, "john_doe", first.User.Username)
	assert.Equal(t, "john.doe@example.com", first.User.Email)
	assert.NotEqual(t, "hunter22x", first.User.Password)

	claims, err := tm.Parse(first.AccessToken, auth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, claims.UserID)

	second, err := svc.Signup(ctx, SignupInput{Email: "john.doe@example.org", Password: "hunter22x"})
	require.NoError(t, err)
	assert.Equal(t, "john_doe1", second.User.Username)
}

func TestAuthService_SignupValidation(t *testing.T) {
	repo := memoryUsers()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "nope", Password: "hunter22x"})
	assertAppError(t, err, models.CodeValidation, "Please enter a valid email address")

	_, err = svc.Signup(ctx, SignupInput{Email: "a@b.io", Password: "short1"})
	assertAppError(t, err, models.CodeValidation, "Password must be at least 8 characters")

	_, err = svc.Signup(ctx, SignupInput{Email: "a@b.io", Password: "hunter22x", Username: "no spaces"})
	assertAppError(t, err, models.CodeValidation, "Username can only contain letters, numbers, underscores and hyphens")

	_, err = svc.Signup(ctx, SignupInput{Email: "a@b.io", Password: "hunter22x", Username: "alice"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupInput{Email: "a@b.io", Password: "hunter22x"})
	assertAppError(t, err, models.CodeConflict, "User already exists")

	_, err = svc.Signup(ctx, SignupInput{Email: "c@d.io", Password: "hunter22x", Username: "alice"})
	assertAppError(t, err, models.CodeConflict, "This username is already taken")
}

func TestAuthService_LoginRefreshLogout(t *testing.T) {
	repo := memoryUsers()
	svc, tm := newTestAuthService(t, repo)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "fixer@example.com", Password: "wrench123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "fixer@example.com", "wrong-pass1")
	assertAppError(t, err, models.CodeUnauthorized, "Invalid credentials")
	_, err = svc.Login(ctx, "ghost@example.com", "wrench123")
	assertAppError(t, err, models.CodeUnauthorized, "Invalid credentials")

	sess, err := svc.Login(ctx, " FIXER@example.com ", "wrench123")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, sess.RefreshToken)
	assertAppError(t, err, models.CodeUnauthorized, "Token has been revoked")

	_, err = svc.Refresh(ctx, refreshed.AccessToken)
	assertAppError(t, err, models.CodeUnauthorized, "Invalid or expired token")

	claims, err := tm.Parse(refreshed.AccessToken, auth.TokenAccess)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims))
	assert.True(t, svc.revoker.IsRevoked(ctx, claims.ID))
}

func TestAuthService_FreeUsernameTruncatesLongStems(t *testing.T) {
	repo := noopUserRepo()
	base := "abcdefghijklmnopqrstuvwxyz0123"
	repo.usernameTakenFn = func(_ context.Context, name string, _ uint) (bool, error) {
		return name == base, nil
	}
	svc, _ := newTestAuthService(t, repo)

	got, err := svc.freeUsername(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0121", got)
	assert.Len(t, got, 30)
}
