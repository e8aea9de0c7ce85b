package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/mtg/deckimport"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

func view(name, set, number string, qty int, board models.BoardType, commander bool) *models.DeckCardView {
	return &models.DeckCardView{
		DeckCard: models.DeckCard{
			Quantity:    qty,
			BoardType:   board,
			IsSideboard: board.IsSideboard(),
			IsCommander: commander,
		},
		CardName:        name,
		SetCode:         set,
		CollectorNumber: number,
		PrintingUUID:    strings.ToLower(set) + "-" + number,
		Price:           1.5,
	}
}

func sampleDeck() (*models.Deck, []*models.DeckCardView) {
	format := "commander"
	deck := &models.Deck{ID: 7, Name: "Elves & Friends!", Format: &format}
	cards := []*models.DeckCardView{
		view("Llanowar Elves", "M10", "193", 1, models.BoardMain, false),
		view("Lightning Bolt", "M10", "146", 4, models.BoardMain, false),
		view("Counterspell", "CMR", "395", 2, models.BoardSide, false),
		view("Sol Ring", "C21", "263", 1, models.BoardMain, true),
		view("Black Lotus", "LEA", "232", 1, models.BoardMaybe, false),
	}
	return deck, cards
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatText, "TXT": FormatText, "csv": FormatCSV, " json ": FormatJSON}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("mtga")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	deck, _ := sampleDeck()
	assert.Equal(t, "Elves_Friends.txt", Filename(deck, FormatText))
	assert.Equal(t, "deck_9.csv", Filename(&models.Deck{ID: 9, Name: "!!!"}, FormatCSV))
}

func TestTextExportRoundTrips(t *testing.T) {
	deck, cards := sampleDeck()
	file, err := Deck(deck, cards, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", file.ContentType)

	expected := "Commander\n1 Sol Ring (C21) 263\n\n" +
		"Deck\n4 Lightning Bolt (M10) 146\n1 Llanowar Elves (M10) 193\n\n" +
		"Sideboard\n2 Counterspell (CMR) 395\n\n" +
		"Maybeboard\n1 Black Lotus (LEA) 232\n"
	assert.Equal(t, expected, string(file.Data))

	parsed, err := deckimport.Parse(string(file.Data))
	require.NoError(t, err)
	assert.Empty(t, parsed.Errors)
	assert.Equal(t, 6, parsed.Count(models.BoardMain))
	assert.Equal(t, 2, parsed.Count(models.BoardSide))
	assert.Equal(t, 1, parsed.Count(models.BoardMaybe))
	assert.True(t, parsed.Cards[0].Commander)
	assert.Equal(t, "C21", parsed.Cards[0].SetCode)
}

func TestTextExportArenaStyleSideboard(t *testing.T) {
	deck := &models.Deck{ID: 1, Name: "Burn"}
	cards := []*models.DeckCardView{
		view("Lightning Bolt", "M10", "146", 4, models.BoardMain, false),
		view("Counterspell", "CMR", "395", 2, models.BoardSide, false),
	}
	file, err := Deck(deck, cards, FormatText)
	require.NoError(t, err)

	parsed, err := deckimport.Parse(string(file.Data))
	require.NoError(t, err)
	assert.Equal(t, 4, parsed.Count(models.BoardMain))
	assert.Equal(t, 2, parsed.Count(models.BoardSide))
}

func TestCSVExport(t *testing.T) {
	deck, cards := sampleDeck()
	file, err := Deck(deck, cards, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Elves_Friends.csv", file.Filename)

	rows, err := csv.NewReader(strings.NewReader(string(file.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "deck_name", rows[0][0])
	assert.Equal(t, []string{"Elves & Friends!", "mainboard", "true", "1", "Sol Ring", "C21", "263", "", "1.50"}, rows[1])
}

func TestJSONExport(t *testing.T) {
	deck, cards := sampleDeck()
	file, err := Deck(deck, cards, FormatJSON)
	require.NoError(t, err)

	var doc DeckJSON
	require.NoError(t, json.Unmarshal(file.Data, &doc))
	assert.Equal(t, "commander", doc.Format)
	assert.Len(t, doc.Commander, 1)
	assert.Len(t, doc.Mainboard, 2)
	assert.Len(t, doc.Sideboard, 1)
	assert.Len(t, doc.Maybeboard, 1)
	assert.Equal(t, 9, doc.TotalCards)
	assert.Equal(t, "m10-146", doc.Mainboard[0].PrintingUUID)
}
