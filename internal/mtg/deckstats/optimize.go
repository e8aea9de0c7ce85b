package deckstats

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// Suggestion limits.
const (
	DefaultSuggestions = 5
	MaxSuggestions     = 20
)

// ExcludedSetCodes are promotional and collector products that never make a
// sensible "upgrade everything to one set" target.
var ExcludedSetCodes = map[string]bool{
	"SLD": true, "SLU": true, "SLC": true, "SLP": true,
	"PLST": true, "PLIST": true, "MB1": true, "MB2": true,
	"PMEI": true, "PSAL": true, "PRM": true, "PURL": true, "ULST": true,
}

// ExcludedSetTypes are excluded for the same reason.
var ExcludedSetTypes = map[string]bool{
	"promo": true, "token": true, "memorabilia": true, "minigame": true,
}

// OptimizeOptions tunes OptimizePrintings.
type OptimizeOptions struct {
	// Limit is the number of sets returned; 0 means DefaultSuggestions.
	Limit int
	// ExcludeCommander drops sets whose name contains "commander".
	ExcludeCommander bool
}

// SuggestedCard is the before/after view of one deck card for a set.
type SuggestedCard struct {
	DeckCardID               int64            `json:"deck_card_id"`
	CardID                   int64            `json:"card_id"`
	CardName                 string           `json:"card_name"`
	Quantity                 int              `json:"quantity"`
	BoardType                models.BoardType `json:"board_type"`
	CurrentPrintingID        int64            `json:"current_printing_id"`
	CurrentSetCode           string           `json:"current_set_code"`
	SuggestedPrintingID      int64            `json:"suggested_printing_id"`
	SuggestedSetCode         string           `json:"suggested_set_code"`
	SuggestedCollectorNumber string           `json:"suggested_collector_number"`
	AlreadyMatches           bool             `json:"already_matches"`
}

// Suggestion is one candidate set.
type Suggestion struct {
	SetCode       string          `json:"set_code"`
	SetName       string          `json:"set_name"`
	SetType       string          `json:"set_type"`
	ReleaseDate   string          `json:"release_date"`
	CardCount     int             `json:"card_count"`
	EligibleCount int             `json:"eligible_count"`
	Percentage    int             `json:"percentage"`
	Cards         []SuggestedCard `json:"cards"`
	MissingCards  []string        `json:"missing_cards"`
}

// Optimization is the analysis result for a deck.
type Optimization struct {
	EligibleCount int          `json:"eligible_count"`
	Suggestions   []Suggestion `json:"suggestions"`
}

// SetExcluded reports whether a set is filtered out of suggestions.
func SetExcluded(code, name, setType string, excludeCommander bool) bool {
	if ExcludedSetCodes[strings.ToUpper(code)] || ExcludedSetTypes[strings.ToLower(setType)] {
		return true
	}
	return excludeCommander && strings.Contains(strings.ToLower(name), "commander")
}

// OptimizePrintings ranks sets by how many distinct non-basic-land deck cards
// they can supply. printings maps card id to every printing of that card.
func OptimizePrintings(cards []*models.DeckCardView, printings map[int64][]*models.PrintingView, opts OptimizeOptions) *Optimization {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	if limit > MaxSuggestions {
		limit = MaxSuggestions
	}

	eligible := make(map[int64]string)
	var eligibleRows []*models.DeckCardView
	for _, c := range cards {
		if IsBasicLand(c.TypeLine) {
			continue
		}
		eligible[c.CardID] = c.CardName
		eligibleRows = append(eligibleRows, c)
	}

	result := &Optimization{EligibleCount: len(eligible), Suggestions: []Suggestion{}}
	if len(eligible) == 0 {
		return result
	}

	type candidate struct {
		set   *models.PrintingView
		cards map[int64]*models.PrintingView
	}
	candidates := make(map[string]*candidate)
	for cardID := range eligible {
		for _, p := range printings[cardID] {
			if SetExcluded(p.SetCode, p.SetName, p.SetType, opts.ExcludeCommander) {
				continue
			}
			cand, ok := candidates[p.SetCode]
			if !ok {
				cand = &candidate{set: p, cards: make(map[int64]*models.PrintingView)}
				candidates[p.SetCode] = cand
			}
			if best, ok := cand.cards[cardID]; !ok || preferPrinting(p, best) {
				cand.cards[cardID] = p
			}
		}
	}

	ranked := make([]*candidate, 0, len(candidates))
	for _, cand := range candidates {
		ranked = append(ranked, cand)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if len(a.cards) != len(b.cards) {
			return len(a.cards) > len(b.cards)
		}
		if a.set.ReleaseDate != b.set.ReleaseDate {
			return a.set.ReleaseDate > b.set.ReleaseDate
		}
		return a.set.SetCode < b.set.SetCode
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	for _, cand := range ranked {
		s := Suggestion{
			SetCode:       cand.set.SetCode,
			SetName:       cand.set.SetName,
			SetType:       cand.set.SetType,
			ReleaseDate:   cand.set.ReleaseDate,
			CardCount:     len(cand.cards),
			EligibleCount: len(eligible),
			Percentage:    int(math.Round(float64(len(cand.cards)) * 100 / float64(len(eligible)))),
			Cards:         []SuggestedCard{},
			MissingCards:  []string{},
		}
		for _, row := range eligibleRows {
			target, ok := cand.cards[row.CardID]
			if !ok {
				continue
			}
			sc := SuggestedCard{
				DeckCardID:               row.ID,
				CardID:                   row.CardID,
				CardName:                 row.CardName,
				Quantity:                 row.Quantity,
				BoardType:                row.BoardType,
				CurrentPrintingID:        row.PrintingID,
				CurrentSetCode:           row.SetCode,
				SuggestedPrintingID:      target.ID,
				SuggestedSetCode:         target.SetCode,
				SuggestedCollectorNumber: target.CollectorNumber,
			}
			if row.SetCode == target.SetCode {
				// keep the printing the deck already uses in this set
				sc.SuggestedPrintingID = row.PrintingID
				sc.SuggestedCollectorNumber = row.CollectorNumber
				sc.AlreadyMatches = true
			}
			s.Cards = append(s.Cards, sc)
		}
		for cardID, name := range eligible {
			if _, ok := cand.cards[cardID]; !ok {
				s.MissingCards = append(s.MissingCards, name)
			}
		}
		sort.Strings(s.MissingCards)
		result.Suggestions = append(result.Suggestions, s)
	}
	return result
}

// preferPrinting reports whether a is a better default than b within a set:
// non-promo first, then the lowest collector number.
func preferPrinting(a, b *models.PrintingView) bool {
	if a.IsPromo != b.IsPromo {
		return !a.IsPromo
	}
	na, errA := strconv.Atoi(a.CollectorNumber)
	nb, errB := strconv.Atoi(b.CollectorNumber)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	if (errA == nil) != (errB == nil) {
		return errA == nil
	}
	return a.CollectorNumber < b.CollectorNumber
}
