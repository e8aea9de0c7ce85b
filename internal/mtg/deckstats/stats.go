package deckstats

import (
	"math"
	"sort"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// ColorlessKey is the colour bucket for cards with no colours.
const ColorlessKey = "C"

// ColorShare is one colour bucket of the mainboard.
type ColorShare struct {
	Color      string  `json:"color"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TypeCount is one type bucket of the mainboard.
type TypeCount struct {
	Type  CardType `json:"type"`
	Count int      `json:"count"`
}

// Stats is the full statistics view of a deck.
type Stats struct {
	MainboardCount   int          `json:"mainboard_count"`
	SideboardCount   int          `json:"sideboard_count"`
	MaybeboardCount  int          `json:"maybeboard_count"`
	UniqueCards      int          `json:"unique_cards"`
	LandCount        int          `json:"land_count"`
	AverageManaValue float64      `json:"average_mana_value"`
	ManaCurve        map[int]int  `json:"mana_curve"`
	Colors           []ColorShare `json:"colors"`
	Types            []TypeCount  `json:"types"`
}

func mainboard(cards []*models.DeckCardView) []*models.DeckCardView {
	out := make([]*models.DeckCardView, 0, len(cards))
	for _, c := range cards {
		if c.BoardType == models.BoardMain {
			out = append(out, c)
		}
	}
	return out
}

// ManaCurve sums mainboard quantities by floor(mana value).
func ManaCurve(cards []*models.DeckCardView) map[int]int {
	curve := make(map[int]int)
	for _, c := range mainboard(cards) {
		curve[curveBucket(c)] += c.Quantity
	}
	return curve
}

// ColorDistribution groups mainboard quantities by the stored colour string,
// largest first.
func ColorDistribution(cards []*models.DeckCardView) []ColorShare {
	counts := make(map[string]int)
	total := 0
	for _, c := range mainboard(cards) {
		key := c.Colors
		if key == "" {
			key = ColorlessKey
		}
		counts[key] += c.Quantity
		total += c.Quantity
	}

	shares := make([]ColorShare, 0, len(counts))
	for color, count := range counts {
		share := ColorShare{Color: color, Count: count}
		if total > 0 {
			share.Percentage = round2(float64(count) * 100 / float64(total))
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Color < shares[j].Color
	})
	return shares
}

// TypeDistribution counts mainboard quantities per type bucket. Every bucket
// is present, in classification order.
func TypeDistribution(cards []*models.DeckCardView) []TypeCount {
	counts := make(map[CardType]int)
	for _, c := range mainboard(cards) {
		counts[Classify(c.TypeLine)] += c.Quantity
	}

	out := make([]TypeCount, 0, len(classificationOrder)+1)
	for _, t := range CardTypes() {
		out = append(out, TypeCount{Type: t, Count: counts[t]})
	}
	return out
}

// Summarize computes every statistic of a deck.
func Summarize(cards []*models.DeckCardView) *Stats {
	stats := &Stats{
		ManaCurve: ManaCurve(cards),
		Colors:    ColorDistribution(cards),
		Types:     TypeDistribution(cards),
	}

	unique := make(map[int64]struct{})
	var manaTotal float64
	var spellCount int
	for _, c := range cards {
		unique[c.CardID] = struct{}{}
		switch c.BoardType {
		case models.BoardMain:
			stats.MainboardCount += c.Quantity
			if IsLand(c.TypeLine) {
				stats.LandCount += c.Quantity
				continue
			}
			manaTotal += EffectiveManaValue(c) * float64(c.Quantity)
			spellCount += c.Quantity
		case models.BoardSide:
			stats.SideboardCount += c.Quantity
		case models.BoardMaybe:
			stats.MaybeboardCount += c.Quantity
		}
	}
	stats.UniqueCards = len(unique)
	if spellCount > 0 {
		stats.AverageManaValue = round2(manaTotal / float64(spellCount))
	}
	return stats
}

// Price is the value of a deck at best known market prices.
type Price struct {
	Mainboard     float64 `json:"mainboard"`
	Sideboard     float64 `json:"sideboard"`
	Maybeboard    float64 `json:"maybeboard"`
	Total         float64 `json:"total"`
	UnpricedCards int     `json:"unpriced_cards"`
}

// DeckPrice sums quantity × price per board. Maybeboard is not part of Total.
func DeckPrice(cards []*models.DeckCardView) *Price {
	p := &Price{}
	for _, c := range cards {
		value := c.Price * float64(c.Quantity)
		if c.Price == 0 {
			p.UnpricedCards++
		}
		switch c.BoardType {
		case models.BoardMain:
			p.Mainboard += value
		case models.BoardSide:
			p.Sideboard += value
		case models.BoardMaybe:
			p.Maybeboard += value
		}
	}
	p.Mainboard = round2(p.Mainboard)
	p.Sideboard = round2(p.Sideboard)
	p.Maybeboard = round2(p.Maybeboard)
	p.Total = round2(p.Mainboard + p.Sideboard)
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
