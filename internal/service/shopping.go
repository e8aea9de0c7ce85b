package service

import (
	"context"

	"github.com/ramonehamilton/deckvault/internal/mtg/shopping"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// ShoppingService builds shopping lists from the caller's decks.
type ShoppingService struct {
	services *Services
}

// NewShoppingService creates a new ShoppingService with the given services.
func NewShoppingService(services *Services) *ShoppingService {
	return &ShoppingService{services: services}
}

// ShoppingRequest selects decks and shapes the list. No deck IDs means
// every deck of the caller.
type ShoppingRequest struct {
	DeckIDs []int64         `json:"deck_ids"`
	Filter  shopping.Filter `json:"filter"`
	Sort    string          `json:"sort,omitempty"`
	Desc    bool            `json:"desc,omitempty"`
}

// Build lists the mainboard cards the caller does not own any printing of,
// grouped by set.
func (s *ShoppingService) Build(ctx context.Context, userID int64, req ShoppingRequest) (*shopping.List, error) {
	if req.Filter.MinPrice != nil && req.Filter.MaxPrice != nil && *req.Filter.MinPrice > *req.Filter.MaxPrice {
		return nil, validationError("min_price must not exceed max_price")
	}

	conn := s.services.conn()
	decks := repository.NewDeckRepository(conn)
	for _, id := range req.DeckIDs {
		deck, err := decks.GetForUser(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if deck == nil {
			return nil, newError(ErrNotFound, "deck %d not found", id)
		}
	}

	rows, err := decks.ListMainboardForDecks(ctx, userID, req.DeckIDs)
	if err != nil {
		return nil, err
	}
	owned, err := repository.NewOwnershipRepository(conn).OwnedCardIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := shopping.Build(rows, owned)
	req.Filter.Apply(list)
	shopping.Sort(list, shopping.ParseSortField(req.Sort), req.Desc)
	return list, nil
}
