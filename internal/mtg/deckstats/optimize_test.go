package deckstats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

type printingSet struct {
	code, name, setType, release string
}

var (
	setA = printingSet{"AAA", "Alpha Set", "expansion", "2020-01-01"}
	setB = printingSet{"BBB", "Beta Set", "expansion", "2021-01-01"}
	setC = printingSet{"CMD", "Commander Stuff", "commander", "2022-01-01"}
	setS = printingSet{"SLD", "Secret Lair Drop", "box", "2023-01-01"}
)

var nextPrintingID int64 = 1000

func printing(cardID int64, s printingSet, number string) *models.PrintingView {
	nextPrintingID++
	return &models.PrintingView{
		Printing: models.Printing{
			ID:              nextPrintingID,
			CardID:          cardID,
			SetCode:         s.code,
			CollectorNumber: number,
		},
		SetName:     s.name,
		SetType:     s.setType,
		ReleaseDate: s.release,
	}
}

func TestOptimizePrintings_Ranking(t *testing.T) {
	var cards []*models.DeckCardView
	printings := make(map[int64][]*models.PrintingView)
	for i := 0; i < 10; i++ {
		c := card(fmt.Sprintf("Card %02d", i), "{1}", 1, "", "Creature", 1, models.BoardMain)
		c.SetCode = "ZZZ"
		cards = append(cards, c)
		if i < 7 {
			printings[c.CardID] = append(printings[c.CardID], printing(c.CardID, setA, fmt.Sprint(i+1)))
		} else {
			printings[c.CardID] = append(printings[c.CardID], printing(c.CardID, setB, fmt.Sprint(i+1)))
		}
	}
	forest := card("Forest", "", 0, "", "Basic Land — Forest", 20, models.BoardMain)
	cards = append(cards, forest)
	printings[forest.CardID] = []*models.PrintingView{printing(forest.CardID, setB, "250")}

	result := OptimizePrintings(cards, printings, OptimizeOptions{})
	assert.Equal(t, 10, result.EligibleCount)
	require.Len(t, result.Suggestions, 2)

	first := result.Suggestions[0]
	assert.Equal(t, "AAA", first.SetCode)
	assert.Equal(t, 7, first.CardCount)
	assert.Equal(t, 70, first.Percentage)
	assert.Len(t, first.Cards, 7)
	assert.Len(t, first.MissingCards, 3)
	assert.Equal(t, "Card 07", first.MissingCards[0])

	second := result.Suggestions[1]
	assert.Equal(t, "BBB", second.SetCode)
	assert.Equal(t, 30, second.Percentage)
	assert.NotContains(t, second.MissingCards, "Forest")
}

func TestOptimizePrintings_Exclusions(t *testing.T) {
	c := card("Sol Ring", "{1}", 1, "", "Artifact", 1, models.BoardMain)
	printings := map[int64][]*models.PrintingView{
		c.CardID: {printing(c.CardID, setC, "5"), printing(c.CardID, setS, "1"), printing(c.CardID, setA, "9")},
	}
	cards := []*models.DeckCardView{c}

	result := OptimizePrintings(cards, printings, OptimizeOptions{})
	codes := suggestionCodes(result)
	assert.ElementsMatch(t, []string{"CMD", "AAA"}, codes)
	assert.Equal(t, "CMD", codes[0], "ties break on newest release")

	result = OptimizePrintings(cards, printings, OptimizeOptions{ExcludeCommander: true})
	assert.Equal(t, []string{"AAA"}, suggestionCodes(result))
}

func TestOptimizePrintings_PrintingChoice(t *testing.T) {
	c := card("Lightning Bolt", "{R}", 1, "R", "Instant", 4, models.BoardMain)
	promo := printing(c.CardID, setA, "1")
	promo.IsPromo = true
	low := printing(c.CardID, setA, "12")
	high := printing(c.CardID, setA, "140")
	inB := printing(c.CardID, setB, "7")

	c.PrintingID = inB.ID
	c.SetCode = "BBB"
	c.CollectorNumber = "7"

	result := OptimizePrintings([]*models.DeckCardView{c},
		map[int64][]*models.PrintingView{c.CardID: {high, promo, inB, low}}, OptimizeOptions{})
	require.Len(t, result.Suggestions, 2)

	for _, s := range result.Suggestions {
		require.Len(t, s.Cards, 1)
		switch s.SetCode {
		case "AAA":
			assert.Equal(t, low.ID, s.Cards[0].SuggestedPrintingID)
			assert.False(t, s.Cards[0].AlreadyMatches)
		case "BBB":
			assert.Equal(t, inB.ID, s.Cards[0].SuggestedPrintingID)
			assert.True(t, s.Cards[0].AlreadyMatches)
		}
	}
}

func TestOptimizePrintings_Limits(t *testing.T) {
	c := card("Counterspell", "{U}{U}", 2, "U", "Instant", 1, models.BoardMain)
	var ps []*models.PrintingView
	for i := 0; i < 30; i++ {
		s := printingSet{fmt.Sprintf("S%02d", i), "Set", "expansion", fmt.Sprintf("2000-01-%02d", i%28+1)}
		ps = append(ps, printing(c.CardID, s, "1"))
	}
	printings := map[int64][]*models.PrintingView{c.CardID: ps}
	cards := []*models.DeckCardView{c}

	assert.Len(t, OptimizePrintings(cards, printings, OptimizeOptions{}).Suggestions, DefaultSuggestions)
	assert.Len(t, OptimizePrintings(cards, printings, OptimizeOptions{Limit: 3}).Suggestions, 3)
	assert.Len(t, OptimizePrintings(cards, printings, OptimizeOptions{Limit: 100}).Suggestions, MaxSuggestions)
}

func TestOptimizePrintings_OnlyBasicLands(t *testing.T) {
	forest := card("Forest", "", 0, "", "Basic Land — Forest", 40, models.BoardMain)
	result := OptimizePrintings([]*models.DeckCardView{forest}, nil, OptimizeOptions{})
	assert.Zero(t, result.EligibleCount)
	assert.Empty(t, result.Suggestions)
}

func suggestionCodes(o *Optimization) []string {
	codes := make([]string, 0, len(o.Suggestions))
	for _, s := range o.Suggestions {
		codes = append(codes, s.SetCode)
	}
	return codes
}
