package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/mtg/deckimport"
	"github.com/ramonehamilton/deckvault/internal/mtg/shopping"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

const (
	defaultInventoryPageSize = 50
	maxPageSize              = 100
	maxBulkLines             = 1000
)

// InventoryService handles the caller's owned printings.
type InventoryService struct {
	services *Services
}

// NewInventoryService creates a new InventoryService with the given services.
func NewInventoryService(services *Services) *InventoryService {
	return &InventoryService{services: services}
}

// List returns one page of the caller's inventory.
func (s *InventoryService) List(ctx context.Context, userID int64, filter repository.InventoryFilter) ([]*models.InventoryItem, int, repository.Page, error) {
	filter.Page = filter.Page.Normalize(defaultInventoryPageSize, maxPageSize)
	items, total, err := repository.NewOwnershipRepository(s.services.conn()).ListInventory(ctx, userID, filter)
	if err != nil {
		return nil, 0, filter.Page, err
	}
	return items, total, filter.Page, nil
}

// Stats summarizes the caller's inventory against their decks.
func (s *InventoryService) Stats(ctx context.Context, userID int64) (*shopping.InventoryStats, error) {
	return inventoryStats(ctx, s.services.conn(), userID)
}

func inventoryStats(ctx context.Context, db repository.DBTX, userID int64) (*shopping.InventoryStats, error) {
	items, err := repository.NewOwnershipRepository(db).AllInventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	decks := repository.NewDeckRepository(db)
	inDecks, err := decks.TotalInDecks(ctx, userID)
	if err != nil {
		return nil, err
	}
	deckCount, err := decks.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return shopping.Inventory(items, inDecks, deckCount), nil
}

// SearchResult is a printing candidate for adding to the inventory.
type SearchResult struct {
	*models.PrintingView
	OwnedQuantity int `json:"owned_quantity"`
}

// Search finds printings by card name, annotated with the caller's owned
// quantity.
func (s *InventoryService) Search(ctx context.Context, userID int64, query string, limit int) ([]*SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, validationError("search query must be at least 2 characters")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}

	conn := s.services.conn()
	views, err := repository.NewCardRepository(conn).SearchPrintings(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	owned := repository.NewOwnershipRepository(conn)

	results := make([]*SearchResult, 0, len(views))
	for _, v := range views {
		qty, err := owned.GetQuantity(ctx, userID, v.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, &SearchResult{PrintingView: v, OwnedQuantity: qty})
	}
	return results, nil
}

// BulkAdd adds every line of a card list ("4x Lightning Bolt [M10]",
// "2 Counterspell (CMR) 81 *F*") in one transaction. Lines that cannot be
// parsed or resolved are reported and skipped; a storage error rolls back
// every line.
func (s *InventoryService) BulkAdd(ctx context.Context, userID int64, text string) (*BulkResult, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if strings.TrimSpace(text) == "" {
		return nil, validationError("card list is empty")
	}
	if len(lines) > maxBulkLines {
		return nil, validationError("card list exceeds %d lines", maxBulkLines)
	}

	result := newBulkResult()
	err := s.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		cards := repository.NewCardRepository(tx)
		owned := repository.NewOwnershipRepository(tx)

		for i, raw := range lines {
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
				continue
			}
			lineNo := i + 1

			parsed, err := deckimport.ParseLine(line)
			if err != nil {
				result.fail(ItemError{Line: lineNo, Item: line, Message: err.Error()})
				continue
			}
			printing, err := resolvePrinting(ctx, cards, parsed)
			if err != nil {
				var unresolved *errUnresolved
				if !errors.As(err, &unresolved) {
					return fmt.Errorf("line %d: %w", lineNo, err)
				}
				result.fail(ItemError{Line: lineNo, Item: line, Message: err.Error()})
				continue
			}
			if _, err := owned.AddQuantity(ctx, userID, printing.ID, parsed.Quantity); err != nil {
				result.fail(ItemError{Line: lineNo, Item: line, Message: err.Error()})
				continue
			}
			result.Succeeded++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QuickAdd changes the owned quantity of a printing by delta (default 1)
// and returns the new quantity.
func (s *InventoryService) QuickAdd(ctx context.Context, userID, printingID int64, delta int) (int, error) {
	if delta == 0 {
		delta = 1
	}
	conn := s.services.conn()
	printing, err := repository.NewCardRepository(conn).GetPrinting(ctx, printingID)
	if err != nil {
		return 0, err
	}
	if printing == nil {
		return 0, notFound("printing")
	}
	return repository.NewOwnershipRepository(conn).AddQuantity(ctx, userID, printingID, delta)
}
