package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// ImportStats summarizes a catalog replacement.
type ImportStats struct {
	Sets              int           `json:"sets"`
	Cards             int           `json:"cards"`
	Printings         int           `json:"printings"`
	Rulings           int           `json:"rulings"`
	Prices            int           `json:"prices"`
	PricesSkipped     int           `json:"prices_skipped"`
	DeckCardsRestored int           `json:"deck_cards_restored"`
	DeckCardsNotFound int           `json:"deck_cards_not_found"`
	OwnedRestored     int           `json:"owned_restored"`
	OwnedNotFound     int           `json:"owned_not_found"`
	Duration          time.Duration `json:"duration"`
}

// NotFound is the total number of user references that could not be
// re-resolved.
func (s *ImportStats) NotFound() int {
	return s.DeckCardsNotFound + s.OwnedNotFound
}

// Importer replaces the stored catalog.
type Importer struct {
	db     *storage.DB
	logger *zap.Logger
}

// NewImporter creates an importer.
func NewImporter(db *storage.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: db, logger: logger}
}

type deckCardRef struct {
	card *models.DeckCard
	uuid string
}

type ownedRef struct {
	owned *models.OwnedPrinting
	uuid  string
}

// Replace swaps the whole catalog in one transaction. Deck cards and owned
// printings are snapshotted by printing UUID beforehand and re-attached to
// the new printings afterwards; references whose UUID disappeared are
// dropped and counted. Any other failure rolls everything back.
func (im *Importer) Replace(ctx context.Context, cat *Catalog, prices []*models.Price) (*ImportStats, error) {
	start := time.Now()
	stats := &ImportStats{}

	err := im.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		catalogRepo := repository.NewCatalogRepository(tx)
		deckRepo := repository.NewDeckRepository(tx)
		ownershipRepo := repository.NewOwnershipRepository(tx)

		deckRefs, ownedRefs, err := snapshotReferences(ctx, catalogRepo, deckRepo, ownershipRepo)
		if err != nil {
			return err
		}

		// owned_printings and deck_cards cascade from printings
		if err := catalogRepo.DeleteAll(ctx); err != nil {
			return err
		}

		if err := insertCatalog(ctx, catalogRepo, cat, stats); err != nil {
			return err
		}

		for _, price := range prices {
			ok, err := catalogRepo.UpsertPrice(ctx, price)
			if err != nil {
				return err
			}
			if ok {
				stats.Prices++
			} else {
				stats.PricesSkipped++
			}
		}

		index, err := catalogRepo.PrintingIDsByUUID(ctx)
		if err != nil {
			return err
		}

		for _, ref := range deckRefs {
			id, ok := index[ref.uuid]
			if !ok {
				stats.DeckCardsNotFound++
				continue
			}
			card := *ref.card
			card.ID = 0
			card.PrintingID = id
			if err := deckRepo.AddCard(ctx, &card); err != nil {
				return fmt.Errorf("failed to restore deck card: %w", err)
			}
			stats.DeckCardsRestored++
		}

		for _, ref := range ownedRefs {
			id, ok := index[ref.uuid]
			if !ok {
				stats.OwnedNotFound++
				continue
			}
			if _, err := ownershipRepo.AddQuantity(ctx, ref.owned.UserID, id, ref.owned.Quantity); err != nil {
				return fmt.Errorf("failed to restore owned printing: %w", err)
			}
			stats.OwnedRestored++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog import failed: %w", err)
	}

	stats.Duration = time.Since(start)
	im.logger.Info("catalog replaced",
		zap.Int("sets", stats.Sets),
		zap.Int("cards", stats.Cards),
		zap.Int("printings", stats.Printings),
		zap.Int("prices", stats.Prices),
		zap.Int("prices_skipped", stats.PricesSkipped),
		zap.Int("references_not_found", stats.NotFound()),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

func snapshotReferences(
	ctx context.Context,
	catalogRepo repository.CatalogRepository,
	deckRepo repository.DeckRepository,
	ownershipRepo repository.OwnershipRepository,
) ([]deckCardRef, []ownedRef, error) {
	index, err := catalogRepo.PrintingIDsByUUID(ctx)
	if err != nil {
		return nil, nil, err
	}
	uuids := make(map[int64]string, len(index))
	for uuid, id := range index {
		uuids[id] = uuid
	}

	deckCards, err := deckRepo.ListAllCards(ctx)
	if err != nil {
		return nil, nil, err
	}
	deckRefs := make([]deckCardRef, 0, len(deckCards))
	for _, c := range deckCards {
		deckRefs = append(deckRefs, deckCardRef{card: c, uuid: uuids[c.PrintingID]})
	}

	owned, err := ownershipRepo.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	ownedRefs := make([]ownedRef, 0, len(owned))
	for _, o := range owned {
		ownedRefs = append(ownedRefs, ownedRef{owned: o, uuid: uuids[o.PrintingID]})
	}
	return deckRefs, ownedRefs, nil
}

func insertCatalog(ctx context.Context, repo repository.CatalogRepository, cat *Catalog, stats *ImportStats) error {
	for _, set := range cat.Sets {
		if err := repo.InsertSet(ctx, set); err != nil {
			return err
		}
		stats.Sets++
	}

	cardIDs := make(map[string]int64, len(cat.Cards))
	for _, record := range cat.Cards {
		if err := repo.InsertCard(ctx, record.Card); err != nil {
			return err
		}
		cardIDs[record.Card.Name] = record.Card.ID
		stats.Cards++

		for _, ruling := range record.Rulings {
			ruling.CardID = record.Card.ID
			if err := repo.InsertRuling(ctx, ruling); err != nil {
				return err
			}
			stats.Rulings++
		}
		for _, related := range record.Related {
			related.CardID = record.Card.ID
			if err := repo.InsertRelatedCard(ctx, related); err != nil {
				return err
			}
		}
		for _, fd := range record.ForeignData {
			fd.CardID = record.Card.ID
			if err := repo.InsertForeignData(ctx, fd); err != nil {
				return err
			}
		}
	}

	for _, record := range cat.Printings {
		cardID, ok := cardIDs[record.CardName]
		if !ok {
			return fmt.Errorf("printing %s references unknown card %q", record.Printing.UUID, record.CardName)
		}
		record.Printing.CardID = cardID
		if err := repo.InsertPrinting(ctx, record.Printing); err != nil {
			return err
		}
		stats.Printings++
	}
	return nil
}
