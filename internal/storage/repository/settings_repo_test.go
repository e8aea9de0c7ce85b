package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage"
)

type scheduleSetting struct {
	Enabled   bool   `json:"enabled"`
	Cron      string `json:"cron"`
	Retention int    `json:"retention"`
}

func TestSettingsRepository_SetAndGet(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewSettingsRepository(db.Conn())
	ctx := context.Background()

	var missing scheduleSetting
	found, err := repo.GetTyped(ctx, "backup_schedule", &missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, scheduleSetting{}, missing)

	want := scheduleSetting{Enabled: true, Cron: "0 3 * * *", Retention: 7}
	require.NoError(t, repo.Set(ctx, "backup_schedule", want))

	var got scheduleSetting
	found, err = repo.GetTyped(ctx, "backup_schedule", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestSettingsRepository_UpdateExisting(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewSettingsRepository(db.Conn())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "retention", 7))
	require.NoError(t, repo.Set(ctx, "retention", 14))

	var n int
	found, err := repo.GetTyped(ctx, "retention", &n)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 14, n)
}

func TestSettingsRepository_Delete(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewSettingsRepository(db.Conn())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "flag", true))
	require.NoError(t, repo.Delete(ctx, "flag"))
	require.NoError(t, repo.Delete(ctx, "flag"), "deleting a missing key is not an error")

	var flag bool
	found, err := repo.GetTyped(ctx, "flag", &flag)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSettingsRepository_GetTypedBadJSON(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewSettingsRepository(db.Conn())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "schedule", "not an object"))

	var s scheduleSetting
	_, err := repo.GetTyped(ctx, "schedule", &s)
	assert.Error(t, err)
}
