package shopping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

type rowSpec struct {
	deckID     int64
	deckName   string
	cardID     int64
	name       string
	printingID int64
	set        string
	setName    string
	release    string
	rarity     string
	colors     string
	price      float64
	quantity   int
	board      models.BoardType
}

func row(s rowSpec) *models.DeckCardView {
	if s.board == "" {
		s.board = models.BoardMain
	}
	return &models.DeckCardView{
		DeckCard: models.DeckCard{
			DeckID:     s.deckID,
			PrintingID: s.printingID,
			Quantity:   s.quantity,
			BoardType:  s.board,
		},
		DeckName:    s.deckName,
		CardID:      s.cardID,
		CardName:    s.name,
		Colors:      s.colors,
		SetCode:     s.set,
		SetName:     s.setName,
		ReleaseDate: s.release,
		Rarity:      s.rarity,
		Price:       s.price,
	}
}

func sampleRows() []*models.DeckCardView {
	return []*models.DeckCardView{
		row(rowSpec{deckID: 1, deckName: "Burn", cardID: 1, name: "Lightning Bolt", printingID: 10, set: "M10", setName: "Magic 2010", release: "2009-07-17", rarity: "common", colors: "R", price: 2.5, quantity: 4}),
		row(rowSpec{deckID: 2, deckName: "Jund", cardID: 1, name: "Lightning Bolt", printingID: 10, set: "M10", setName: "Magic 2010", release: "2009-07-17", rarity: "common", colors: "R", price: 2.5, quantity: 2}),
		row(rowSpec{deckID: 1, deckName: "Burn", cardID: 2, name: "Fire // Ice", printingID: 20, set: "M10", setName: "Magic 2010", release: "2009-07-17", rarity: "uncommon", colors: "R,U", price: 0.5, quantity: 2}),
		row(rowSpec{deckID: 2, deckName: "Jund", cardID: 3, name: "Sol Ring", printingID: 30, set: "C21", setName: "Commander 2021", release: "2021-04-23", rarity: "uncommon", price: 1.25, quantity: 1}),
		row(rowSpec{deckID: 2, deckName: "Jund", cardID: 4, name: "Llanowar Elves", printingID: 40, set: "C21", setName: "Commander 2021", release: "2021-04-23", rarity: "common", colors: "G", quantity: 4}),
		row(rowSpec{deckID: 1, deckName: "Burn", cardID: 5, name: "Counterspell", printingID: 50, set: "CMR", setName: "Commander Legends", release: "2020-11-20", rarity: "common", colors: "U", price: 1, quantity: 3, board: models.BoardSide}),
	}
}

func TestBuild_GroupsAndMerges(t *testing.T) {
	list := Build(sampleRows(), map[int64]bool{4: true})

	require.Len(t, list.Sets, 2, "sideboard rows and owned cards are excluded")
	assert.Equal(t, "C21", list.Sets[0].SetCode, "groups sort by set name")
	assert.Equal(t, "M10", list.Sets[1].SetCode)

	m10 := list.Sets[1]
	require.Len(t, m10.Cards, 2)
	assert.Equal(t, "Fire // Ice", m10.Cards[0].CardName)

	bolt := m10.Cards[1]
	assert.Equal(t, 6, bolt.Quantity)
	assert.Equal(t, 15.0, bolt.TotalValue)
	assert.Equal(t, []DeckNeed{
		{DeckID: 1, DeckName: "Burn", Quantity: 4},
		{DeckID: 2, DeckName: "Jund", Quantity: 2},
	}, bolt.Decks)

	assert.Equal(t, 2, m10.CardCount)
	assert.Equal(t, 8, m10.TotalQuantity)
	assert.Equal(t, 16.0, m10.TotalValue)

	assert.Equal(t, 3, list.TotalCards)
	assert.Equal(t, 9, list.TotalQuantity)
	assert.Equal(t, 17.25, list.TotalValue)
}

func TestBuild_Deterministic(t *testing.T) {
	first := Build(sampleRows(), nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(sampleRows(), nil))
	}
}

func TestBuild_EverythingOwned(t *testing.T) {
	list := Build(sampleRows(), map[int64]bool{1: true, 2: true, 3: true, 4: true})
	assert.Empty(t, list.Sets)
	assert.Zero(t, list.TotalValue)
}

func floatPtr(f float64) *float64 { return &f }

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		sets   []string
		cards  int
	}{
		{"no filter", Filter{}, []string{"C21", "M10"}, 4},
		{"min price", Filter{MinPrice: floatPtr(1)}, []string{"C21", "M10"}, 2},
		{"max price", Filter{MaxPrice: floatPtr(0.5)}, []string{"C21", "M10"}, 2},
		{"rarity", Filter{Rarities: []string{"Uncommon"}}, []string{"C21", "M10"}, 2},
		{"colour", Filter{Colors: []string{"u"}}, []string{"M10"}, 1},
		{"colourless", Filter{Colors: []string{"C"}}, []string{"C21"}, 1},
		{"set search by name", Filter{SetSearch: "magic"}, []string{"M10"}, 2},
		{"set search by code", Filter{SetSearch: "c21"}, []string{"C21"}, 2},
		{"nothing matches", Filter{MinPrice: floatPtr(100)}, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := Build(sampleRows(), nil)
			tt.filter.Apply(list)

			codes := []string{}
			for _, s := range list.Sets {
				codes = append(codes, s.SetCode)
			}
			assert.Equal(t, tt.sets, codes)
			assert.Equal(t, tt.cards, list.TotalCards)
		})
	}
}

func TestFilter_RecomputesTotals(t *testing.T) {
	list := Build(sampleRows(), nil)
	Filter{MinPrice: floatPtr(1)}.Apply(list)

	require.Len(t, list.Sets, 2)
	m10 := list.Sets[1]
	assert.Equal(t, 1, m10.CardCount)
	assert.Equal(t, 6, m10.TotalQuantity)
	assert.Equal(t, 15.0, m10.TotalValue)
	assert.Equal(t, 16.25, list.TotalValue)
}

func TestSort(t *testing.T) {
	list := Build(sampleRows(), nil)

	Sort(list, SortTotalValue, true)
	assert.Equal(t, "M10", list.Sets[0].SetCode)

	Sort(list, SortReleaseDate, false)
	assert.Equal(t, "M10", list.Sets[0].SetCode)

	Sort(list, SortReleaseDate, true)
	assert.Equal(t, "C21", list.Sets[0].SetCode)

	Sort(list, SortCardCount, false)
	assert.Equal(t, "C21", list.Sets[0].SetCode, "equal counts break on set code")
}

func TestParseSortField(t *testing.T) {
	assert.Equal(t, SortTotalValue, ParseSortField("TOTAL_VALUE"))
	assert.Equal(t, SortCardCount, ParseSortField("card_count"))
	assert.Equal(t, SortSetName, ParseSortField("bogus"))
}

func TestInventory(t *testing.T) {
	item := func(cardID int64, qty int, price float64) *models.InventoryItem {
		return &models.InventoryItem{
			PrintingView: models.PrintingView{Printing: models.Printing{CardID: cardID}, Price: price},
			Quantity:     qty,
		}
	}
	items := []*models.InventoryItem{item(1, 4, 2.5), item(1, 1, 9), item(2, 3, 0)}

	stats := Inventory(items, 10, 2)
	assert.Equal(t, 2, stats.UniqueCards)
	assert.Equal(t, 3, stats.UniquePrintings)
	assert.Equal(t, 8, stats.TotalCopies)
	assert.Equal(t, 10, stats.TotalInDecks)
	assert.Equal(t, -2, stats.Available, "available is never clamped")
	assert.Equal(t, 19.0, stats.EstimatedValue)
	assert.Equal(t, 2, stats.DeckCount)
}
