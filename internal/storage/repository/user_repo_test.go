package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

func TestUserRepository_FirstUserIsAdmin(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewUserRepository(db.Conn())
	ctx := context.Background()

	first := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, first))
	assert.True(t, first.IsAdmin)
	assert.False(t, first.CreatedAt.IsZero())

	second := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, second))
	assert.False(t, second.IsAdmin)

	dup := &models.User{Username: "bob", Email: "bob2@example.com", PasswordHash: "h"}
	assert.Error(t, repo.Create(ctx, dup))

	byLogin, err := repo.GetByLogin(ctx, "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, byLogin)
	assert.Equal(t, "bob", byLogin.Username)

	byName, err := repo.GetByUsername(ctx, "Bob")
	require.NoError(t, err)
	require.NotNil(t, byName)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	second.IsAdmin = true
	require.NoError(t, repo.Update(ctx, second))
	reloaded, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsAdmin)

	require.NoError(t, repo.Delete(ctx, second.ID))
	gone, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAPIKeyRepository(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewAPIKeyRepository(db.Conn())
	ctx := context.Background()

	alice := storagetest.CreateUser(t, db.Conn(), "alice")
	bob := storagetest.CreateUser(t, db.Conn(), "bob")

	key := &models.APIKey{UserID: alice, Name: "ci", KeyPrefix: "dv_abcde", KeyHash: "hash-1"}
	require.NoError(t, repo.Create(ctx, key))
	assert.NotZero(t, key.ID)

	found, err := repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.LastUsedAt)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchLastUsed(ctx, key.ID, now))
	found, err = repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, found.LastUsedAt)
	assert.True(t, found.LastUsedAt.Equal(now))

	deleted, err := repo.Delete(ctx, bob, key.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "keys can only be deleted by their owner")

	keys, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	deleted, err = repo.Delete(ctx, alice, key.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	missing, err := repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestShareRepository(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewShareRepository(db.Conn())
	ctx := context.Background()

	user := storagetest.CreateUser(t, db.Conn(), "alice")
	deck := storagetest.CreateDeck(t, db.Conn(), user, "Burn")

	expires := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	share := &models.DeckShare{DeckID: deck, Token: "tok-1", IsActive: true, ExpiresAt: &expires}
	require.NoError(t, repo.Create(ctx, share))

	got, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.True(t, got.Usable(time.Now()))

	require.NoError(t, repo.IncrementViews(ctx, got.ID))
	require.NoError(t, repo.IncrementViews(ctx, got.ID))
	got, err = repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)

	active, err := repo.GetActiveForDeck(ctx, deck)
	require.NoError(t, err)
	require.NotNil(t, active)

	n, err := repo.DeactivateForDeck(ctx, deck)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err = repo.GetActiveForDeck(ctx, deck)
	require.NoError(t, err)
	assert.Nil(t, active)

	got, err = repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, got.Usable(time.Now()))
}
