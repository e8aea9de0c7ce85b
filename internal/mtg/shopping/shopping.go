// Package shopping turns deck contents and a user's collection into a
// set-grouped shopping list, and summarizes inventory value.
package shopping

import (
	"math"
	"sort"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// DeckNeed is how many copies one deck needs of a line.
type DeckNeed struct {
	DeckID   int64  `json:"deck_id"`
	DeckName string `json:"deck_name"`
	Quantity int    `json:"quantity"`
}

// Line is one printing to buy.
type Line struct {
	PrintingID      int64      `json:"printing_id"`
	PrintingUUID    string     `json:"printing_uuid"`
	CardID          int64      `json:"card_id"`
	CardName        string     `json:"card_name"`
	ManaCost        string     `json:"mana_cost"`
	Colors          string     `json:"colors"`
	TypeLine        string     `json:"type_line"`
	Rarity          string     `json:"rarity"`
	CollectorNumber string     `json:"collector_number"`
	ImageURL        string     `json:"image_url"`
	Price           float64    `json:"price"`
	Quantity        int        `json:"quantity"`
	TotalValue      float64    `json:"total_value"`
	Decks           []DeckNeed `json:"decks"`
}

// SetGroup is every line whose printing belongs to one set.
type SetGroup struct {
	SetCode       string  `json:"set_code"`
	SetName       string  `json:"set_name"`
	ReleaseDate   string  `json:"release_date"`
	Cards         []*Line `json:"cards"`
	CardCount     int     `json:"card_count"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// List is a complete shopping list.
type List struct {
	Sets          []*SetGroup `json:"sets"`
	TotalCards    int         `json:"total_cards"`
	TotalQuantity int         `json:"total_quantity"`
	TotalValue    float64     `json:"total_value"`
}

// Build groups mainboard rows of unowned cards by set. owned holds the ids
// of cards the user has any printing of. Lines and groups are sorted by card
// name and set name so the output is stable.
func Build(rows []*models.DeckCardView, owned map[int64]bool) *List {
	groups := make(map[string]*SetGroup)
	lines := make(map[int64]*Line)

	for _, row := range rows {
		if row.BoardType != models.BoardMain || owned[row.CardID] {
			continue
		}
		line, ok := lines[row.PrintingID]
		if !ok {
			line = &Line{
				PrintingID:      row.PrintingID,
				PrintingUUID:    row.PrintingUUID,
				CardID:          row.CardID,
				CardName:        row.CardName,
				ManaCost:        row.ManaCost,
				Colors:          row.Colors,
				TypeLine:        row.TypeLine,
				Rarity:          row.Rarity,
				CollectorNumber: row.CollectorNumber,
				ImageURL:        row.ImageURL,
				Price:           row.Price,
				Decks:           []DeckNeed{},
			}
			lines[row.PrintingID] = line

			group, ok := groups[row.SetCode]
			if !ok {
				group = &SetGroup{SetCode: row.SetCode, SetName: row.SetName, ReleaseDate: row.ReleaseDate}
				groups[row.SetCode] = group
			}
			group.Cards = append(group.Cards, line)
		}
		line.Quantity += row.Quantity
		line.Decks = mergeNeed(line.Decks, DeckNeed{DeckID: row.DeckID, DeckName: row.DeckName, Quantity: row.Quantity})
	}

	list := &List{Sets: make([]*SetGroup, 0, len(groups))}
	for _, group := range groups {
		sort.Slice(group.Cards, func(i, j int) bool {
			a, b := group.Cards[i], group.Cards[j]
			if a.CardName != b.CardName {
				return a.CardName < b.CardName
			}
			return a.PrintingID < b.PrintingID
		})
		for _, line := range group.Cards {
			sort.Slice(line.Decks, func(i, j int) bool { return line.Decks[i].DeckID < line.Decks[j].DeckID })
		}
		list.Sets = append(list.Sets, group)
	}
	Sort(list, SortSetName, false)
	list.recompute()
	return list
}

func mergeNeed(needs []DeckNeed, need DeckNeed) []DeckNeed {
	for i := range needs {
		if needs[i].DeckID == need.DeckID {
			needs[i].Quantity += need.Quantity
			return needs
		}
	}
	return append(needs, need)
}

// recompute refreshes every derived total and drops empty groups.
func (l *List) recompute() {
	kept := l.Sets[:0]
	l.TotalCards, l.TotalQuantity, l.TotalValue = 0, 0, 0
	for _, group := range l.Sets {
		if len(group.Cards) == 0 {
			continue
		}
		group.CardCount = len(group.Cards)
		group.TotalQuantity = 0
		group.TotalValue = 0
		for _, line := range group.Cards {
			line.TotalValue = round2(line.Price * float64(line.Quantity))
			group.TotalQuantity += line.Quantity
			group.TotalValue += line.TotalValue
		}
		group.TotalValue = round2(group.TotalValue)

		l.TotalCards += group.CardCount
		l.TotalQuantity += group.TotalQuantity
		l.TotalValue += group.TotalValue
		kept = append(kept, group)
	}
	l.Sets = kept
	l.TotalValue = round2(l.TotalValue)
}

// Filter narrows a list. Zero values match everything.
type Filter struct {
	MinPrice  *float64 `json:"min_price,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	Rarities  []string `json:"rarities,omitempty"`
	Colors    []string `json:"colors,omitempty"`
	SetSearch string   `json:"set_search,omitempty"`
}

// Apply removes lines that fail the filter and recomputes totals.
func (f Filter) Apply(list *List) {
	search := strings.ToLower(strings.TrimSpace(f.SetSearch))
	for _, group := range list.Sets {
		if search != "" && !strings.Contains(strings.ToLower(group.SetName), search) &&
			!strings.EqualFold(group.SetCode, search) {
			group.Cards = nil
			continue
		}
		kept := group.Cards[:0]
		for _, line := range group.Cards {
			if f.matches(line) {
				kept = append(kept, line)
			}
		}
		group.Cards = kept
	}
	list.recompute()
}

func (f Filter) matches(line *Line) bool {
	if f.MinPrice != nil && line.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && line.Price > *f.MaxPrice {
		return false
	}
	if len(f.Rarities) > 0 && !containsFold(f.Rarities, line.Rarity) {
		return false
	}
	if len(f.Colors) > 0 && !matchesColors(line.Colors, f.Colors) {
		return false
	}
	return true
}

// matchesColors is true when the line has any of the wanted colours. "C"
// matches colourless lines.
func matchesColors(colors string, wanted []string) bool {
	have := models.SplitColors(colors)
	for _, w := range wanted {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w == "C" && len(have) == 0 {
			return true
		}
		if containsFold(have, w) {
			return true
		}
	}
	return false
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// SortField orders set groups.
type SortField string

// Supported sort fields.
const (
	SortSetName     SortField = "set_name"
	SortTotalValue  SortField = "total_value"
	SortReleaseDate SortField = "release_date"
	SortCardCount   SortField = "card_count"
)

// ParseSortField falls back to SortSetName for unknown values.
func ParseSortField(s string) SortField {
	switch SortField(strings.ToLower(s)) {
	case SortTotalValue:
		return SortTotalValue
	case SortReleaseDate:
		return SortReleaseDate
	case SortCardCount:
		return SortCardCount
	default:
		return SortSetName
	}
}

// Sort orders the set groups. Ties break on set code ascending.
func Sort(list *List, field SortField, desc bool) {
	sort.SliceStable(list.Sets, func(i, j int) bool {
		a, b := list.Sets[i], list.Sets[j]
		var cmp int
		switch field {
		case SortTotalValue:
			cmp = compareFloat(a.TotalValue, b.TotalValue)
		case SortReleaseDate:
			cmp = strings.Compare(a.ReleaseDate, b.ReleaseDate)
		case SortCardCount:
			cmp = a.CardCount - b.CardCount
		default:
			cmp = strings.Compare(strings.ToLower(a.SetName), strings.ToLower(b.SetName))
		}
		if cmp == 0 {
			return a.SetCode < b.SetCode
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
