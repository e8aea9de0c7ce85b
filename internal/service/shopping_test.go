package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

func TestShoppingService_Build(t *testing.T) {
	svc, cat := newTestServices(t)
	shop := NewShoppingService(svc)
	ctx := context.Background()
	conn := svc.DB.Conn()

	alice := storagetest.CreateUser(t, conn, "alice")
	bob := storagetest.CreateUser(t, conn, "bob")
	burn := storagetest.CreateDeck(t, conn, alice, "Burn")
	elves := storagetest.CreateDeck(t, conn, alice, "Elves")

	bolt := cat.Printing("Lightning Bolt", "M10")
	storagetest.AddDeckCard(t, conn, burn, bolt, 4, "mainboard")
	storagetest.AddDeckCard(t, conn, burn, cat.Printing("Counterspell", "CMR"), 2, "sideboard")
	storagetest.AddDeckCard(t, conn, elves, bolt, 2, "mainboard")
	storagetest.AddDeckCard(t, conn, elves, cat.Printing("Llanowar Elves", "M10"), 4, "mainboard")
	// Any owned printing of a card removes it from the list.
	storagetest.Own(t, conn, alice, cat.Printing("Llanowar Elves", "LEA"), 1)

	list, err := shop.Build(ctx, alice, ShoppingRequest{})
	require.NoError(t, err)
	require.Len(t, list.Sets, 1)
	group := list.Sets[0]
	assert.Equal(t, "M10", group.SetCode)
	require.Len(t, group.Cards, 1)
	line := group.Cards[0]
	assert.Equal(t, "Lightning Bolt", line.CardName)
	assert.Equal(t, 6, line.Quantity)
	assert.Len(t, line.Decks, 2)
	assert.InDelta(t, 15.0, line.TotalValue, 0.001)
	assert.Equal(t, 6, list.TotalQuantity)

	only, err := shop.Build(ctx, alice, ShoppingRequest{DeckIDs: []int64{burn}})
	require.NoError(t, err)
	require.Len(t, only.Sets, 1)
	assert.Equal(t, 4, only.Sets[0].Cards[0].Quantity)

	_, err = shop.Build(ctx, bob, ShoppingRequest{DeckIDs: []int64{burn}})
	assert.ErrorIs(t, err, ErrNotFound)

	lo, hi := 5.0, 1.0
	req := ShoppingRequest{}
	req.Filter.MinPrice, req.Filter.MaxPrice = &lo, &hi
	_, err = shop.Build(ctx, alice, req)
	assert.ErrorIs(t, err, ErrValidation)
}
