package service

import (
	"context"
	"database/sql"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/events"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

const (
	defaultSearchLimit  = 10
	maxSearchLimit      = 50
	searchCandidates    = 500
	defaultCardPageSize = 50
	defaultCacheSize    = 1024
)

// CardService handles card browsing, search and ownership toggles.
type CardService struct {
	services *Services
	cache    *lru.Cache
}

// NewCardService creates a CardService whose detail cache holds cacheSize
// cards.
func NewCardService(services *Services, cacheSize int) (*CardService, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &CardService{services: services, cache: cache}, nil
}

// CacheObserver purges the detail cache whenever a catalog sync completes.
func (c *CardService) CacheObserver() events.Observer {
	return events.NewFuncObserver("card-cache", func(events.Event) error {
		c.cache.Purge()
		c.services.logger().Debug("card detail cache purged")
		return nil
	}, events.CatalogSyncCompleted)
}

// Browse returns one page of cards matching the filter.
func (c *CardService) Browse(ctx context.Context, userID int64, filter repository.CardFilter) ([]*repository.CardListItem, int, repository.Page, error) {
	filter.Page = filter.Page.Normalize(defaultCardPageSize, maxPageSize)
	filter.UserID = userID

	switch filter.Ownership {
	case "", "owned", "unowned":
	default:
		return nil, 0, filter.Page, validationError("ownership must be owned or unowned")
	}
	switch filter.Sort {
	case "", "name", "cmc", "edhrec", "release":
	default:
		return nil, 0, filter.Page, validationError("unknown sort field %q", filter.Sort)
	}
	if filter.MinCMC != nil && filter.MaxCMC != nil && *filter.MinCMC > *filter.MaxCMC {
		return nil, 0, filter.Page, validationError("cmc_min must not exceed cmc_max")
	}

	items, total, err := repository.NewCardRepository(c.services.conn()).Browse(ctx, filter)
	if err != nil {
		return nil, 0, filter.Page, err
	}
	return items, total, filter.Page, nil
}

// cardRefs implements fuzzy.Source over card names.
type cardRefs []*repository.CardRef

func (r cardRefs) String(i int) string { return strings.ToLower(r[i].Name) }

func (r cardRefs) Len() int { return len(r) }

// Search returns autocomplete candidates ranked by fuzzy score. A LIKE query
// on the name and on its first letter narrows the candidates first.
func (c *CardService) Search(ctx context.Context, query string, limit int) ([]*repository.CardRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	cards := repository.NewCardRepository(c.services.conn())
	substring, err := cards.SearchNames(ctx, query, searchCandidates)
	if err != nil {
		return nil, err
	}
	prefixed, err := cards.NamesWithPrefix(ctx, string([]rune(query)[:1]), searchCandidates)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(substring)+len(prefixed))
	candidates := make(cardRefs, 0, len(substring)+len(prefixed))
	for _, list := range [][]*repository.CardRef{substring, prefixed} {
		for _, ref := range list {
			if !seen[ref.ID] {
				seen[ref.ID] = true
				candidates = append(candidates, ref)
			}
		}
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), candidates)
	results := make([]*repository.CardRef, 0, limit)
	for _, m := range matches {
		if len(results) == limit {
			break
		}
		results = append(results, candidates[m.Index])
	}
	return results, nil
}

// catalogDetail is the user-independent part of a card detail.
type catalogDetail struct {
	card        *models.Card
	rulings     []*models.Ruling
	related     []*models.RelatedCard
	foreignData []*models.ForeignData
}

// CardDetail is a card with everything the detail view shows.
type CardDetail struct {
	*models.Card
	Owned        bool                         `json:"owned"`
	Printings    []*repository.PrintingDetail `json:"printings"`
	Rulings      []*models.Ruling             `json:"rulings"`
	RelatedCards []*models.RelatedCard        `json:"related_cards"`
	ForeignData  []*models.ForeignData        `json:"foreign_data"`
}

// Get returns a card with its printings, prices and the caller's owned
// quantities.
func (c *CardService) Get(ctx context.Context, userID, cardID int64) (*CardDetail, error) {
	cards := repository.NewCardRepository(c.services.conn())

	detail, err := c.catalogDetail(ctx, cards, cardID)
	if err != nil {
		return nil, err
	}

	printings, err := cards.ListPrintings(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	owned := false
	for _, p := range printings {
		if p.OwnedQuantity > 0 {
			owned = true
			break
		}
	}

	return &CardDetail{
		Card:         detail.card,
		Owned:        owned,
		Printings:    printings,
		Rulings:      detail.rulings,
		RelatedCards: detail.related,
		ForeignData:  detail.foreignData,
	}, nil
}

// catalogDetail reads the card row and serves its rulings, related cards and
// foreign data from the cache. Entries are keyed by name and only reused
// while the card keeps the id they were loaded under, since a catalog sync
// from another process reinserts every card.
func (c *CardService) catalogDetail(ctx context.Context, cards repository.CardRepository, cardID int64) (*catalogDetail, error) {
	card, err := cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, notFound("card")
	}

	if cached, ok := c.cache.Get(card.Name); ok {
		if entry := cached.(*catalogDetail); entry.card.ID == card.ID {
			detail := *entry
			detail.card = card
			return &detail, nil
		}
		c.cache.Remove(card.Name)
	}

	detail := &catalogDetail{card: card}
	if detail.rulings, err = cards.Rulings(ctx, cardID); err != nil {
		return nil, err
	}
	if detail.related, err = cards.RelatedCards(ctx, cardID); err != nil {
		return nil, err
	}
	if detail.foreignData, err = cards.ForeignData(ctx, cardID); err != nil {
		return nil, err
	}

	c.cache.Add(card.Name, detail)
	return detail, nil
}

// OwnershipResult reports the state after an ownership change.
type OwnershipResult struct {
	CardID     int64 `json:"card_id"`
	Owned      bool  `json:"owned"`
	PrintingID int64 `json:"printing_id,omitempty"`
	Quantity   int   `json:"quantity"`
}

// ToggleOwned removes every owned printing of the card, or adds one copy of
// its default printing when none is owned.
func (c *CardService) ToggleOwned(ctx context.Context, userID, cardID int64) (*OwnershipResult, error) {
	result := &OwnershipResult{CardID: cardID}

	err := c.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		cards := repository.NewCardRepository(tx)
		owned := repository.NewOwnershipRepository(tx)

		card, err := cards.GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card")
		}

		has, err := owned.OwnsCard(ctx, userID, cardID)
		if err != nil {
			return err
		}
		if has {
			_, err := owned.RemoveCard(ctx, userID, cardID)
			return err
		}

		printing, err := cards.DefaultPrinting(ctx, cardID)
		if err != nil {
			return err
		}
		if printing == nil {
			return validationError("%s has no printings", card.Name)
		}
		qty, err := owned.AddQuantity(ctx, userID, printing.ID, 1)
		if err != nil {
			return err
		}
		result.Owned = true
		result.PrintingID = printing.ID
		result.Quantity = qty
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.services.logger().Debug("card ownership toggled",
		zap.Int64("user_id", userID), zap.Int64("card_id", cardID), zap.Bool("owned", result.Owned))
	return result, nil
}

// SetPrintingQuantity stores an absolute owned quantity; zero or less
// removes the printing from the inventory.
func (c *CardService) SetPrintingQuantity(ctx context.Context, userID, printingID int64, quantity int) (*OwnershipResult, error) {
	conn := c.services.conn()
	printing, err := repository.NewCardRepository(conn).GetPrinting(ctx, printingID)
	if err != nil {
		return nil, err
	}
	if printing == nil {
		return nil, notFound("printing")
	}
	if quantity > 9999 {
		return nil, validationError("quantity must be at most 9999")
	}
	if err := repository.NewOwnershipRepository(conn).SetQuantity(ctx, userID, printingID, quantity); err != nil {
		return nil, err
	}
	if quantity < 0 {
		quantity = 0
	}
	return &OwnershipResult{
		CardID:     printing.CardID,
		Owned:      quantity > 0,
		PrintingID: printingID,
		Quantity:   quantity,
	}, nil
}
