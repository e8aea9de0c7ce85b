// Package deckstats computes derived deck statistics on read: mana curve,
// colour and type breakdowns, format legality and printing optimization.
// Nothing here touches the database.
package deckstats

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// FaceSeparator joins the faces of split, adventure and double-faced cards.
const FaceSeparator = " // "

var manaSymbolRe = regexp.MustCompile(`\{([^}]*)\}`)

// ManaValue derives a mana value from a mana cost string symbol by symbol.
// A numeric symbol counts its value, X/Y/Z count zero and every other symbol
// (colour pip, hybrid, Phyrexian, snow, colourless) counts one.
func ManaValue(manaCost string) int {
	total := 0
	for _, match := range manaSymbolRe.FindAllStringSubmatch(manaCost, -1) {
		symbol := strings.ToUpper(strings.TrimSpace(match[1]))
		switch symbol {
		case "":
			continue
		case "X", "Y", "Z":
			continue
		}
		if n, err := strconv.Atoi(symbol); err == nil {
			total += n
			continue
		}
		total++
	}
	return total
}

// FrontFace returns the part of a joined multi-face string before the
// first FaceSeparator, or s unchanged.
func FrontFace(s string) string {
	if front, _, ok := strings.Cut(s, FaceSeparator); ok {
		return front
	}
	return s
}

// EffectiveManaValue is the mana value used for curve and averages. Stored
// values for multi-face cards may combine both faces, so those are re-derived
// from the front face's mana cost.
func EffectiveManaValue(card *models.DeckCardView) float64 {
	if strings.Contains(card.CardName, FaceSeparator) {
		return float64(ManaValue(FrontFace(card.ManaCost)))
	}
	return card.CMC
}

func curveBucket(card *models.DeckCardView) int {
	return int(math.Floor(EffectiveManaValue(card)))
}
