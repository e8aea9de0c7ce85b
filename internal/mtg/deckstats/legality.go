package deckstats

import (
	"sort"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// Reasons reported for illegal cards.
const (
	ReasonBanned     = "Banned"
	ReasonRestricted = "Restricted"
	ReasonNotLegal   = "Not legal in this format"
)

// IllegalCard is one mainboard card that fails the format check.
type IllegalCard struct {
	CardID   int64  `json:"card_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

// LegalityReport is the verdict for one format.
type LegalityReport struct {
	Format       string        `json:"format"`
	Legal        bool          `json:"legal"`
	IllegalCards []IllegalCard `json:"illegal_cards"`
}

// CardLegality returns whether a card is legal and, if not, why. An absent
// or empty status is not legal.
func CardLegality(legalities models.Legalities, format string) (status string, reason string, legal bool) {
	status, ok := legalities.Status(format)
	if !ok || status == "" {
		return status, ReasonNotLegal, false
	}
	switch {
	case strings.EqualFold(status, models.LegalityLegal):
		return status, "", true
	case strings.EqualFold(status, models.LegalityBanned):
		return status, ReasonBanned, false
	case strings.EqualFold(status, models.LegalityRestricted):
		return status, ReasonRestricted, false
	default:
		return status, ReasonNotLegal, false
	}
}

// CheckLegality checks each unique mainboard card against a format. The deck
// is legal iff no card is flagged.
func CheckLegality(cards []*models.DeckCardView, format string) *LegalityReport {
	format = strings.ToLower(strings.TrimSpace(format))

	type entry struct {
		card     *models.DeckCardView
		quantity int
	}
	byCard := make(map[int64]*entry)
	var order []int64
	for _, c := range mainboard(cards) {
		e, ok := byCard[c.CardID]
		if !ok {
			e = &entry{card: c}
			byCard[c.CardID] = e
			order = append(order, c.CardID)
		}
		e.quantity += c.Quantity
	}

	report := &LegalityReport{Format: format, IllegalCards: []IllegalCard{}}
	for _, id := range order {
		e := byCard[id]
		status, reason, legal := CardLegality(e.card.Legalities, format)
		if legal {
			continue
		}
		report.IllegalCards = append(report.IllegalCards, IllegalCard{
			CardID:   id,
			Name:     e.card.CardName,
			Quantity: e.quantity,
			Status:   status,
			Reason:   reason,
		})
	}
	sort.SliceStable(report.IllegalCards, func(i, j int) bool {
		return report.IllegalCards[i].Name < report.IllegalCards[j].Name
	})
	report.Legal = len(report.IllegalCards) == 0
	return report
}
