package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

func strPtr(s string) *string { return &s }

func TestDeckRepository_CRUD(t *testing.T) {
	db, _ := setupCatalog(t)
	repo := NewDeckRepository(db.Conn())
	ctx := context.Background()

	alice := storagetest.CreateUser(t, db.Conn(), "alice")
	bob := storagetest.CreateUser(t, db.Conn(), "bob")

	deck := &models.Deck{UserID: alice, Name: "Burn", Format: strPtr("modern")}
	require.NoError(t, repo.Create(ctx, deck))
	assert.NotZero(t, deck.ID)

	got, err := repo.GetByID(ctx, deck.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Burn", got.Name)
	assert.Equal(t, "modern", got.FormatName())
	assert.Nil(t, got.Description)

	foreign, err := repo.GetForUser(ctx, bob, deck.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign, "decks are scoped to their owner")

	got.Name = "Boros Burn"
	got.Description = strPtr("fast")
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetForUser(ctx, alice, deck.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Boros Burn", updated.Name)
	assert.Equal(t, "fast", *updated.Description)

	count, err := repo.CountByUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Delete(ctx, deck.ID))
	gone, err := repo.GetByID(ctx, deck.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeckRepository_AddCardMergesWithinPartition(t *testing.T) {
	db, cat := setupCatalog(t)
	repo := NewDeckRepository(db.Conn())
	ctx := context.Background()

	user := storagetest.CreateUser(t, db.Conn(), "alice")
	deckID := storagetest.CreateDeck(t, db.Conn(), user, "Burn")
	bolt := cat.Printing("Lightning Bolt", "M10")

	first := &models.DeckCard{DeckID: deckID, PrintingID: bolt, Quantity: 2, BoardType: models.BoardMain}
	require.NoError(t, repo.AddCard(ctx, first))
	assert.Equal(t, 2, first.Quantity)
	assert.False(t, first.IsSideboard)

	again := &models.DeckCard{DeckID: deckID, PrintingID: bolt, Quantity: 2, BoardType: models.BoardMain}
	require.NoError(t, repo.AddCard(ctx, again))
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 4, again.Quantity)

	side := &models.DeckCard{DeckID: deckID, PrintingID: bolt, Quantity: 1, BoardType: models.BoardSide}
	require.NoError(t, repo.AddCard(ctx, side))
	assert.NotEqual(t, first.ID, side.ID)
	assert.True(t, side.IsSideboard)

	maybe := &models.DeckCard{DeckID: deckID, PrintingID: bolt, Quantity: 1, BoardType: models.BoardMaybe}
	require.NoError(t, repo.AddCard(ctx, maybe))
	assert.Equal(t, side.ID, maybe.ID, "maybeboard shares the non-mainboard partition")
	assert.Equal(t, 2, maybe.Quantity)

	cards, err := repo.ListCards(ctx, deckID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	for _, c := range cards {
		assert.Equal(t, "Lightning Bolt", c.CardName)
		assert.Equal(t, "Burn", c.DeckName)
		assert.Equal(t, "M10", c.SetCode)
		assert.Equal(t, models.LegalityLegal, c.Legalities["modern"])
	}

	total, err := repo.TotalInDecks(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestDeckRepository_AddCardClampsMergedQuantity(t *testing.T) {
	db, cat := setupCatalog(t)
	repo := NewDeckRepository(db.Conn())
	ctx := context.Background()

	user := storagetest.CreateUser(t, db.Conn(), "alice")
	deckID := storagetest.CreateDeck(t, db.Conn(), user, "Piles")
	bolt := cat.Printing("Lightning Bolt", "M10")

	require.NoError(t, repo.AddCard(ctx, &models.DeckCard{DeckID: deckID, PrintingID: bolt, Quantity: 998}))
	merged := &models.DeckCard{DeckID: deckID, PrintingID: bolt, Quantity: 5}
	require.NoError(t, repo.AddCard(ctx, merged))
	assert.Equal(t, models.MaxDeckCardQuantity, merged.Quantity)
}

func TestDeckRepository_UpdateAndRemoveCard(t *testing.T) {
	db, cat := setupCatalog(t)
	repo := NewDeckRepository(db.Conn())
	ctx := context.Background()

	user := storagetest.CreateUser(t, db.Conn(), "alice")
	deckID := storagetest.CreateDeck(t, db.Conn(), user, "Elves")
	cardID := storagetest.AddDeckCard(t, db.Conn(), deckID, cat.Printing("Llanowar Elves", "M10"), 4, "mainboard")

	card, err := repo.GetCard(ctx, cardID)
	require.NoError(t, err)
	require.NotNil(t, card)

	card.BoardType = models.BoardSide
	card.Quantity = 2
	require.NoError(t, repo.UpdateCard(ctx, card))

	found, err := repo.FindCard(ctx, deckID, card.PrintingID, true)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Quantity)
	assert.Equal(t, models.BoardSide, found.BoardType)

	require.NoError(t, repo.RemoveCard(ctx, cardID))
	missing, err := repo.GetCard(ctx, cardID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeckRepository_ListSummariesAndMainboard(t *testing.T) {
	db, cat := setupCatalog(t)
	repo := NewDeckRepository(db.Conn())
	ctx := context.Background()

	alice := storagetest.CreateUser(t, db.Conn(), "alice")
	bob := storagetest.CreateUser(t, db.Conn(), "bob")

	burn := storagetest.CreateDeck(t, db.Conn(), alice, "Burn")
	storagetest.AddDeckCard(t, db.Conn(), burn, cat.Printing("Lightning Bolt", "M10"), 4, "mainboard")
	storagetest.AddDeckCard(t, db.Conn(), burn, cat.Printing("Fire // Ice", "M10"), 2, "sideboard")
	storagetest.AddDeckCard(t, db.Conn(), burn, cat.Printing("Counterspell", "CMR"), 1, "maybeboard")

	control := storagetest.CreateDeck(t, db.Conn(), alice, "Control")
	storagetest.AddDeckCard(t, db.Conn(), control, cat.Printing("Counterspell", "CMR"), 4, "mainboard")

	bobDeck := storagetest.CreateDeck(t, db.Conn(), bob, "Bob's")
	storagetest.AddDeckCard(t, db.Conn(), bobDeck, cat.Printing("Sol Ring", "C21"), 1, "mainboard")

	summaries, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	var burnSummary *models.DeckSummary
	for _, s := range summaries {
		if s.ID == burn {
			burnSummary = s
		}
	}
	require.NotNil(t, burnSummary)
	assert.Equal(t, 4, burnSummary.MainboardCount)
	assert.Equal(t, 2, burnSummary.SideboardCount)
	assert.Equal(t, 1, burnSummary.MaybeboardCount)
	assert.Equal(t, 3, burnSummary.UniqueCards)

	rows, err := repo.ListMainboardForDecks(ctx, alice, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListMainboardForDecks(ctx, alice, []int64{control, bobDeck})
	require.NoError(t, err)
	require.Len(t, rows, 1, "other users' decks are never included")
	assert.Equal(t, "Control", rows[0].DeckName)

	all, err := repo.ListAllCards(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
