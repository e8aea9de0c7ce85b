package deckstats

import "github.com/ramonehamilton/deckvault/internal/storage/models"

var nextDeckCardID int64

func card(name, manaCost string, cmc float64, colors, typeLine string, qty int, board models.BoardType) *models.DeckCardView {
	nextDeckCardID++
	return &models.DeckCardView{
		DeckCard: models.DeckCard{
			ID:          nextDeckCardID,
			Quantity:    qty,
			BoardType:   board,
			IsSideboard: board.IsSideboard(),
		},
		CardID:   nameID(name),
		CardName: name,
		ManaCost: manaCost,
		CMC:      cmc,
		Colors:   colors,
		TypeLine: typeLine,
	}
}

// nameID gives each card name a stable id.
func nameID(name string) int64 {
	var h int64 = 7
	for _, r := range name {
		h = h*31 + int64(r)
	}
	if h < 0 {
		h = -h
	}
	return h
}
