package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

type fixture struct {
	db      *storage.DB
	catalog *storagetest.Catalog
	alice   int64
	bob     int64
	deckID  int64
}

// newFixture seeds two users. Alice has a deck with a share and an API key,
// bob owns two printings.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewTestDB(t)
	f := &fixture{db: db, catalog: storagetest.SeedCatalog(t, db.Conn())}
	ctx := context.Background()

	f.alice = storagetest.CreateUser(t, db.Conn(), "alice")
	f.bob = storagetest.CreateUser(t, db.Conn(), "bob")
	f.deckID = storagetest.CreateDeck(t, db.Conn(), f.alice, "Burn")
	storagetest.AddDeckCard(t, db.Conn(), f.deckID, f.catalog.Printing("Lightning Bolt", "M10"), 4, "mainboard")
	storagetest.AddDeckCard(t, db.Conn(), f.deckID, f.catalog.Printing("Counterspell", "CMR"), 2, "maybeboard")
	storagetest.Own(t, db.Conn(), f.bob, f.catalog.Printing("Sol Ring", "C21"), 3)
	storagetest.Own(t, db.Conn(), f.bob, f.catalog.Printing("Forest", "LEA"), 10)

	require.NoError(t, repository.NewAPIKeyRepository(db.Conn()).Create(ctx, &models.APIKey{
		UserID: f.alice, Name: "cli", KeyPrefix: "dv_12345", KeyHash: "hash-1",
	}))
	require.NoError(t, repository.NewShareRepository(db.Conn()).Create(ctx, &models.DeckShare{
		DeckID: f.deckID, Token: "share-token", IsActive: true, ViewCount: 5,
	}))
	return f
}

func TestRestore_OverwriteRoundTrip(t *testing.T) {
	f := newFixture(t)
	m := newTestManager(t, f.db, Options{})
	ctx := context.Background()

	info, err := m.Create(ctx, TypeManual)
	require.NoError(t, err)

	// diverge from the snapshot
	conn := f.db.Conn()
	require.NoError(t, repository.NewDeckRepository(conn).Delete(ctx, f.deckID))
	storagetest.CreateUser(t, conn, "carol")

	result, err := m.Restore(ctx, info.Filename, true)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Users)
	assert.Equal(t, 1, result.APIKeys)
	assert.Equal(t, 1, result.Decks)
	assert.Equal(t, 2, result.DeckCards)
	assert.Equal(t, 2, result.OwnedPrintings)
	assert.Equal(t, 0, result.OwnedCards, "owned cards are already covered by their printings")
	assert.Equal(t, 1, result.DeckShares)
	assert.Equal(t, 9, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	users := repository.NewUserRepository(conn)
	carol, err := users.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, carol, "overwrite removes users missing from the snapshot")

	alice, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.True(t, alice.IsAdmin)
	bob, err := users.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.False(t, bob.IsAdmin)

	decks, err := repository.NewDeckRepository(conn).ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, 4, decks[0].MainboardCount)
	assert.Equal(t, 2, decks[0].MaybeboardCount)

	share, err := repository.NewShareRepository(conn).GetByToken(ctx, "share-token")
	require.NoError(t, err)
	require.NotNil(t, share)
	assert.Equal(t, decks[0].ID, share.DeckID)
	assert.Equal(t, 5, share.ViewCount)

	qty, err := repository.NewOwnershipRepository(conn).GetQuantity(ctx, bob.ID, f.catalog.Printing("Forest", "LEA"))
	require.NoError(t, err)
	assert.Equal(t, 10, qty)

	key, err := repository.NewAPIKeyRepository(conn).GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, alice.ID, key.UserID)
}

func TestRestore_MergeKeepsExistingRows(t *testing.T) {
	f := newFixture(t)
	m := newTestManager(t, f.db, Options{})
	ctx := context.Background()

	info, err := m.Create(ctx, TypeManual)
	require.NoError(t, err)

	conn := f.db.Conn()
	ownership := repository.NewOwnershipRepository(conn)
	require.NoError(t, ownership.SetQuantity(ctx, f.bob, f.catalog.Printing("Sol Ring", "C21"), 1))
	require.NoError(t, ownership.SetQuantity(ctx, f.bob, f.catalog.Printing("Forest", "LEA"), 0))
	carol := storagetest.CreateUser(t, conn, "carol")

	result, err := m.Restore(ctx, info.Filename, false)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.Users)
	assert.Equal(t, 0, result.Decks)
	assert.Equal(t, 1, result.OwnedPrintings, "only the missing Forest comes back")
	// 2 users, 1 key, 1 deck, 1 owned printing
	assert.Equal(t, 5, result.Skipped)

	sol, err := ownership.GetQuantity(ctx, f.bob, f.catalog.Printing("Sol Ring", "C21"))
	require.NoError(t, err)
	assert.Equal(t, 1, sol, "merge never overwrites an existing quantity")
	forest, err := ownership.GetQuantity(ctx, f.bob, f.catalog.Printing("Forest", "LEA"))
	require.NoError(t, err)
	assert.Equal(t, 10, forest)

	still, err := repository.NewUserRepository(conn).GetByID(ctx, carol)
	require.NoError(t, err)
	assert.NotNil(t, still)

	decks, err := repository.NewDeckRepository(conn).ListByUser(ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, decks, 1, "an existing deck with the same name is not duplicated")
}

func TestRestore_ResolvesByCardNameAndCountsMisses(t *testing.T) {
	db := storage.NewTestDB(t)
	cat := storagetest.SeedCatalog(t, db.Conn())
	m := newTestManager(t, db, Options{})
	ctx := context.Background()

	snapshot := &Snapshot{
		Version:   FormatVersion,
		Timestamp: time.Now(),
		Type:      TypeManual,
		Data: Data{
			Users: []UserRecord{{Username: "dave", Email: "dave@example.com", PasswordHash: "x"}},
			Decks: []DeckRecord{{ID: 42, Username: "dave", Name: "Elves"}},
			DeckCards: []DeckCardRecord{
				{DeckID: 42, PrintingUUID: "retired-uuid", CardName: "Llanowar Elves", Quantity: 4, BoardType: models.BoardMain},
				{DeckID: 42, PrintingUUID: "retired-uuid-2", CardName: "Not A Card", Quantity: 1, BoardType: models.BoardMain},
				{DeckID: 7, PrintingUUID: storagetest.UUID("Forest", "LEA"), CardName: "Forest", Quantity: 1, BoardType: models.BoardMain},
			},
			OwnedPrintings: []OwnedPrintingRecord{
				{Username: "dave", PrintingUUID: "retired-uuid", Quantity: 2},
				{Username: "erin", PrintingUUID: storagetest.UUID("Forest", "LEA"), Quantity: 1},
			},
			OwnedCards: []OwnedCardRecord{
				{Username: "dave", CardName: "Counterspell"},
				{Username: "dave", CardName: "Not A Card"},
			},
		},
	}

	result, err := m.RestoreSnapshot(ctx, snapshot, true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Users)
	assert.True(t, func() bool {
		u, err := repository.NewUserRepository(db.Conn()).GetByUsername(ctx, "dave")
		return err == nil && u != nil && !u.IsAdmin
	}(), "the admin flag follows the snapshot, not first-user promotion")
	assert.Equal(t, 1, result.DeckCards)
	assert.Equal(t, 1, result.OwnedCards)
	// unknown card name in the deck, retired owned uuid, unknown owned card
	assert.Equal(t, 3, result.NotFound)
	// deck 7 and user erin do not exist
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)

	decks, err := repository.NewDeckRepository(db.Conn()).ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	rows, err := repository.NewDeckRepository(db.Conn()).ListCards(ctx, decks[0].ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Llanowar Elves", rows[0].CardName)
	assert.Equal(t, "C21", rows[0].SetCode, "falls back to the newest default printing")

	owns, err := repository.NewOwnershipRepository(db.Conn()).OwnsCard(ctx, decks[0].UserID, cat.Card("Counterspell"))
	require.NoError(t, err)
	assert.True(t, owns)
}
