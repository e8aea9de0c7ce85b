package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage/repository"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

func TestInventoryService_BulkAdd(t *testing.T) {
	svc, cat := newTestServices(t)
	inv := NewInventoryService(svc)
	ctx := context.Background()
	alice := storagetest.CreateUser(t, svc.DB.Conn(), "alice")

	text := "4x Lightning Bolt [M10]\n2 Counterspell (CMR)\nbogus card\n0 Sol Ring\n\n# a comment\n"
	result, err := inv.BulkAdd(ctx, alice, text)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Line)
	assert.Equal(t, 4, result.Errors[1].Line)

	items, total, page, err := inv.List(ctx, alice, repository.InventoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultInventoryPageSize, page.PageSize)

	// Adding the same lines again accumulates.
	_, err = inv.BulkAdd(ctx, alice, "4x Lightning Bolt [M10]")
	require.NoError(t, err)
	results, err := inv.Search(ctx, alice, "bolt", 0)
	require.NoError(t, err)
	for _, r := range results {
		if r.ID == cat.Printing("Lightning Bolt", "M10") {
			assert.Equal(t, 8, r.OwnedQuantity)
		} else {
			assert.Zero(t, r.OwnedQuantity)
		}
	}
	assert.Len(t, results, 4)

	_, err = inv.BulkAdd(ctx, alice, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = inv.BulkAdd(ctx, alice, strings.Repeat("1 Forest\n", maxBulkLines+1))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = inv.Search(ctx, alice, "b", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInventoryService_QuickAddAndStats(t *testing.T) {
	svc, cat := newTestServices(t)
	inv := NewInventoryService(svc)
	ctx := context.Background()
	conn := svc.DB.Conn()
	alice := storagetest.CreateUser(t, conn, "alice")
	bolt := cat.Printing("Lightning Bolt", "M10")

	qty, err := inv.QuickAdd(ctx, alice, bolt, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, qty)
	qty, err = inv.QuickAdd(ctx, alice, bolt, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
	qty, err = inv.QuickAdd(ctx, alice, bolt, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	_, err = inv.QuickAdd(ctx, alice, 99999, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = inv.QuickAdd(ctx, alice, bolt, 1)
	require.NoError(t, err)
	deckID := storagetest.CreateDeck(t, conn, alice, "Burn")
	storagetest.AddDeckCard(t, conn, deckID, bolt, 4, "mainboard")
	storagetest.AddDeckCard(t, conn, deckID, cat.Printing("Counterspell", "CMR"), 2, "sideboard")

	stats, err := inv.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCopies)
	assert.Equal(t, 6, stats.TotalInDecks)
	assert.Equal(t, -5, stats.Available)
	assert.Equal(t, 1, stats.DeckCount)
	assert.InDelta(t, 2.50, stats.EstimatedValue, 0.001)
}

func TestInventoryService_BulkAddRollsBackOnStorageError(t *testing.T) {
	svc, cat := newTestServices(t)
	inv := NewInventoryService(svc)
	ctx := context.Background()
	conn := svc.DB.Conn()
	alice := storagetest.CreateUser(t, conn, "alice")

	// the first line resolves without the sets table, the second needs it
	_, err := conn.ExecContext(ctx, `ALTER TABLE sets RENAME TO sets_unavailable`)
	require.NoError(t, err)

	result, err := inv.BulkAdd(ctx, alice, "2 Counterspell (CMR)\n1 Lightning Bolt\n")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "line 2")

	qty, err := repository.NewOwnershipRepository(conn).GetQuantity(ctx, alice, cat.Printing("Counterspell", "CMR"))
	require.NoError(t, err)
	assert.Zero(t, qty, "earlier lines are rolled back")
}
