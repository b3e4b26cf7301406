package repository

import (
	"context"
	"testing"
	"time"

	"fixmystuff/internal/models"
	"fixmystuff/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFix(t *testing.T, repo FixRequestRepository, userID uint, desc, status string, at time.Time) *models.FixRequest {
	t.Helper()
	fix := &models.FixRequest{
		UserID:      userID,
		Title:       models.FixRequestTitle(desc),
		Description: desc,
		ImageURL:    "https://img.example/" + desc,
		Status:      status,
		CreatedAt:   at,
	}
	require.NoError(t, repo.Create(context.Background(), fix))
	return fix
}

func TestFixRequestRepository_OwnerScoping(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFixRequestRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	fix := seedFix(t, repo, alice.ID, "leaking faucet", models.FixStatusCompleted, time.Now())

	got, err := repo.GetByIDForUser(ctx, fix.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "leaking faucet", got.Description)

	_, err = repo.GetByIDForUser(ctx, fix.ID, bob.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	err = repo.Delete(ctx, fix.ID, bob.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	require.NoError(t, repo.Delete(ctx, fix.ID, alice.ID))
	_, err = repo.GetByIDForUser(ctx, fix.ID, alice.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestFixRequestRepository_ListByUser(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFixRequestRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	base := time.Now().Add(-time.Hour)
	for i, desc := range []string{"first", "second", "third"} {
		seedFix(t, repo, alice.ID, desc, models.FixStatusCompleted, base.Add(time.Duration(i)*time.Minute))
	}
	seedFix(t, repo, bob.ID, "not mine", models.FixStatusCompleted, base)

	page, total, err := repo.ListByUser(ctx, alice.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Description)
	assert.Equal(t, "second", page[1].Description)

	page, _, err = repo.ListByUser(ctx, alice.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Description)
}

func TestFixRequestRepository_ListRecentCompleted(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFixRequestRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	base := time.Now().Add(-time.Hour)
	seedFix(t, repo, alice.ID, "old fix", models.FixStatusCompleted, base)
	seedFix(t, repo, alice.ID, "failed fix", models.FixStatusFailed, base.Add(time.Minute))
	seedFix(t, repo, alice.ID, "new fix", models.FixStatusCompleted, base.Add(2*time.Minute))

	recent, err := repo.ListRecentCompleted(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new fix", recent[0].Description)
	assert.Equal(t, "alice", recent[0].FixedBy)
	assert.Equal(t, "old fix", recent[1].Description)

	recent, err = repo.ListRecentCompleted(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestFixRequestRepository_Update(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFixRequestRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	fix := seedFix(t, repo, alice.ID, "wobbly chair", models.FixStatusPending, time.Now())

	fix.Status = models.FixStatusCompleted
	fix.AISolution = "# Tighten the screws"
	require.NoError(t, repo.Update(ctx, fix))

	got, err := repo.GetByIDForUser(ctx, fix.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FixStatusCompleted, got.Status)
	assert.Equal(t, "# Tighten the screws", got.AISolution)
}
