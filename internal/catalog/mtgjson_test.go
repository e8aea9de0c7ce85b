package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/mtg/deckstats"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

const allPrintingsFixture = `{
  "meta": {"date": "2024-01-02", "version": "5.2.2"},
  "data": {
    "M10": {
      "code": "m10", "name": "Magic 2010", "releaseDate": "2009-07-17", "type": "core",
      "baseSetSize": 249, "totalSetSize": 249,
      "cards": [
        {
          "uuid": "bolt-m10", "name": "Lightning Bolt", "manaCost": "{R}", "manaValue": 1,
          "colors": ["R"], "colorIdentity": ["R"], "type": "Instant",
          "text": "Lightning Bolt deals 3 damage to any target.",
          "legalities": {"Modern": "Legal", "vintage": "Legal"},
          "types": ["Instant"], "number": "146", "rarity": "common", "artist": "Christopher Moeller",
          "finishes": ["nonfoil", "foil"],
          "identifiers": {"scryfallId": "abcdef12-0000"},
          "rulings": [{"date": "2009-10-01", "text": "The damage is dealt by Lightning Bolt."}],
          "foreignData": [{"language": "German", "name": "Blitzschlag"}, {"language": "", "name": "ignored"}],
          "relatedCards": {"spellbook": ["Chain Lightning"]}
        },
        {
          "uuid": "fire-m10-a", "name": "Fire // Ice", "faceName": "Fire", "side": "a",
          "manaCost": "{1}{R}", "manaValue": 4, "colors": ["R"], "colorIdentity": ["R", "U"],
          "type": "Instant", "layout": "split", "number": "128", "rarity": "uncommon"
        },
        {
          "uuid": "fire-m10-b", "name": "Fire // Ice", "faceName": "Ice", "side": "b",
          "manaCost": "{1}{U}", "manaValue": 4, "colors": ["U"], "colorIdentity": ["R", "U"],
          "type": "Instant", "layout": "split", "number": "128", "rarity": "uncommon"
        }
      ]
    },
    "LEA": {
      "code": "LEA", "name": "Limited Edition Alpha", "releaseDate": "1993-08-05", "type": "core",
      "cards": [
        {"uuid": "bolt-lea", "name": "Lightning Bolt", "manaCost": "{R}", "manaValue": 1, "type": "Instant", "number": "161", "rarity": "common"},
        {"uuid": "bolt-m10", "name": "Lightning Bolt", "manaCost": "{R}", "manaValue": 1, "type": "Instant", "number": "146", "rarity": "common"},
        {"uuid": "", "name": "Nameless"}
      ]
    }
  }
}`

func TestParseAllPrintings(t *testing.T) {
	cat, err := ParseAllPrintings(strings.NewReader(allPrintingsFixture))
	require.NoError(t, err)

	require.Len(t, cat.Sets, 2)
	assert.Equal(t, "LEA", cat.Sets[0].Code)
	assert.Equal(t, "M10", cat.Sets[1].Code)
	assert.Equal(t, "2009-07-17", cat.Sets[1].ReleaseDate)
	assert.Equal(t, 249, cat.Sets[1].BaseSetSize)

	require.Len(t, cat.Cards, 2)
	bolt := cat.Cards[0]
	assert.Equal(t, "Lightning Bolt", bolt.Card.Name)
	assert.Equal(t, "R", bolt.Card.Colors)
	assert.Equal(t, "Legal", bolt.Card.Legalities["modern"])
	assert.Equal(t, "normal", bolt.Card.Layout)
	require.Len(t, bolt.Rulings, 1)
	require.Len(t, bolt.ForeignData, 1)
	assert.Equal(t, "Blitzschlag", bolt.ForeignData[0].Name)
	require.Len(t, bolt.Related, 1)
	assert.Equal(t, "Chain Lightning", bolt.Related[0].RelatedName)
	assert.Equal(t, "spellbook", bolt.Related[0].Relation)

	fire := cat.Cards[1]
	assert.Equal(t, "Fire // Ice", fire.Card.Name)
	assert.Equal(t, "{1}{R}", fire.Card.ManaCost)
	assert.Equal(t, "Instant // Instant", fire.Card.TypeLine)
	assert.Equal(t, "split", fire.Card.Layout)

	uuids := make([]string, 0, len(cat.Printings))
	for _, p := range cat.Printings {
		uuids = append(uuids, p.Printing.UUID)
	}
	assert.Equal(t, []string{"bolt-m10", "fire-m10-a", "bolt-lea"}, uuids)

	first := cat.Printings[0]
	assert.Equal(t, "Lightning Bolt", first.CardName)
	assert.Equal(t, "M10", first.Printing.SetCode)
	assert.Equal(t, "146", first.Printing.CollectorNumber)
	assert.Equal(t, "https://cards.scryfall.io/normal/front/a/b/abcdef12-0000.jpg", first.Printing.ImageURL)
	assert.Empty(t, cat.Printings[2].Printing.ImageURL)
}

func TestParseAllPrintings_MergesBackFaceOnce(t *testing.T) {
	// the same split card printed in two sets must not grow its type line twice
	doc := `{"data": {
	  "AAA": {"code": "AAA", "name": "A", "cards": [
	    {"uuid": "a1", "name": "Fire // Ice", "side": "a", "manaCost": "{1}{R}", "type": "Instant"},
	    {"uuid": "a2", "name": "Fire // Ice", "side": "b", "manaCost": "{1}{U}", "type": "Instant"}
	  ]},
	  "BBB": {"code": "BBB", "name": "B", "cards": [
	    {"uuid": "b1", "name": "Fire // Ice", "side": "a", "manaCost": "{1}{R}", "type": "Instant"},
	    {"uuid": "b2", "name": "Fire // Ice", "side": "b", "manaCost": "{1}{U}", "type": "Instant"}
	  ]}
	}}`

	cat, err := ParseAllPrintings(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, cat.Cards, 1)
	assert.Equal(t, "{1}{R}", cat.Cards[0].Card.ManaCost)
	assert.Equal(t, "Instant // Instant", cat.Cards[0].Card.TypeLine)
	assert.Len(t, cat.Printings, 2)
}

func TestParseAllPrintings_MultiFaceManaCurve(t *testing.T) {
	tests := []struct {
		name      string
		faces     string
		curve     map[int]int
		cardType  deckstats.CardType
		landCount int
	}{
		{
			name: "modal double-faced card",
			faces: `{"uuid": "v-a", "name": "Valki, God of Lies // Tibalt, Cosmic Impostor", "side": "a", "layout": "modal_dfc",
			          "manaCost": "{1}{B}", "manaValue": 2, "type": "Legendary Creature — God"},
			        {"uuid": "v-b", "name": "Valki, God of Lies // Tibalt, Cosmic Impostor", "side": "b", "layout": "modal_dfc",
			          "manaCost": "{5}{B}{R}", "manaValue": 2, "type": "Legendary Planeswalker — Tibalt"}`,
			curve:    map[int]int{2: 1},
			cardType: deckstats.TypeCreature,
		},
		{
			name: "adventure card",
			faces: `{"uuid": "g-a", "name": "Bonecrusher Giant // Stomp", "side": "a", "layout": "adventure",
			          "manaCost": "{2}{R}", "manaValue": 3, "type": "Creature — Giant"},
			        {"uuid": "g-b", "name": "Bonecrusher Giant // Stomp", "side": "b", "layout": "adventure",
			          "manaCost": "{1}{R}", "manaValue": 3, "type": "Instant — Adventure"}`,
			curve:    map[int]int{3: 1},
			cardType: deckstats.TypeCreature,
		},
		{
			name: "transform card with a land back face",
			faces: `{"uuid": "c-a", "name": "Thaumatic Compass // Spires of Orazca", "side": "a", "layout": "transform",
			          "manaCost": "{3}", "manaValue": 3, "type": "Artifact"},
			        {"uuid": "c-b", "name": "Thaumatic Compass // Spires of Orazca", "side": "b", "layout": "transform",
			          "manaValue": 3, "type": "Land"}`,
			curve:    map[int]int{3: 1},
			cardType: deckstats.TypeArtifact,
		},
		{
			name: "split card",
			faces: `{"uuid": "f-a", "name": "Fire // Ice", "side": "a", "layout": "split",
			          "manaCost": "{1}{R}", "manaValue": 4, "type": "Instant"},
			        {"uuid": "f-b", "name": "Fire // Ice", "side": "b", "layout": "split",
			          "manaCost": "{1}{U}", "manaValue": 4, "type": "Instant"}`,
			curve:    map[int]int{2: 1},
			cardType: deckstats.TypeInstant,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"data": {"KHM": {"code": "KHM", "name": "Kaldheim", "cards": [` + tt.faces + `]}}}`
			cat, err := ParseAllPrintings(strings.NewReader(doc))
			require.NoError(t, err)
			require.Len(t, cat.Cards, 1)
			require.Len(t, cat.Printings, 1)

			card := cat.Cards[0].Card
			view := &models.DeckCardView{
				DeckCard: models.DeckCard{ID: 1, Quantity: 1, BoardType: models.BoardMain},
				CardID:   1,
				CardName: card.Name,
				ManaCost: card.ManaCost,
				CMC:      card.CMC,
				Colors:   card.Colors,
				TypeLine: card.TypeLine,
			}
			cards := []*models.DeckCardView{view}

			assert.Equal(t, tt.curve, deckstats.ManaCurve(cards))
			assert.Equal(t, tt.cardType, deckstats.Classify(view.TypeLine))
			assert.Equal(t, tt.landCount, deckstats.Summarize(cards).LandCount)
		})
	}
}

func TestParseAllPrintings_Invalid(t *testing.T) {
	tests := map[string]string{
		"not an object": `[1, 2]`,
		"no data":       `{"meta": {}}`,
		"truncated":     `{"data": {"M10": {"code": "M10", "cards": [`,
		"bad set":       `{"data": {"M10": "nope"}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAllPrintings(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
