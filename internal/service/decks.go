package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/export"
	"github.com/ramonehamilton/deckvault/internal/mtg/deckimport"
	"github.com/ramonehamilton/deckvault/internal/mtg/deckstats"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

const (
	maxDeckNameLength   = 100
	maxDescriptionBytes = 4000
	maxDeckCardQuantity = models.MaxDeckCardQuantity
)

// DeckService handles the deck builder. Every operation loads the deck
// scoped to the caller; a missing or foreign deck is reported as not found.
type DeckService struct {
	services *Services
}

// NewDeckService creates a new DeckService with the given services.
func NewDeckService(services *Services) *DeckService {
	return &DeckService{services: services}
}

// DeckInput carries the editable deck fields. Nil fields are left unchanged
// on update.
type DeckInput struct {
	Name        *string `json:"name,omitempty"`
	Format      *string `json:"format,omitempty"`
	Description *string `json:"description,omitempty"`
}

// DeckDetail is a deck with its cards.
type DeckDetail struct {
	*models.Deck
	Cards []*models.DeckCardView `json:"cards"`
}

func (d *DeckService) load(ctx context.Context, db repository.DBTX, userID, deckID int64) (*models.Deck, error) {
	deck, err := repository.NewDeckRepository(db).GetForUser(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, notFound("deck")
	}
	return deck, nil
}

func (d *DeckService) loadCards(ctx context.Context, userID, deckID int64) (*models.Deck, []*models.DeckCardView, error) {
	conn := d.services.conn()
	deck, err := d.load(ctx, conn, userID, deckID)
	if err != nil {
		return nil, nil, err
	}
	cards, err := repository.NewDeckRepository(conn).ListCards(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}
	return deck, cards, nil
}

func applyDeckInput(deck *models.Deck, in DeckInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationError("deck name is required")
		}
		if len(name) > maxDeckNameLength {
			return validationError("deck name must be at most %d characters", maxDeckNameLength)
		}
		deck.Name = name
	}
	if in.Format != nil {
		format := strings.ToLower(strings.TrimSpace(*in.Format))
		if format == "" {
			deck.Format = nil
		} else {
			deck.Format = &format
		}
	}
	if in.Description != nil {
		if len(*in.Description) > maxDescriptionBytes {
			return validationError("description must be at most %d bytes", maxDescriptionBytes)
		}
		desc := *in.Description
		if strings.TrimSpace(desc) == "" {
			deck.Description = nil
		} else {
			deck.Description = &desc
		}
	}
	return nil
}

// List returns the caller's decks with partition totals.
func (d *DeckService) List(ctx context.Context, userID int64) ([]*models.DeckSummary, error) {
	return repository.NewDeckRepository(d.services.conn()).ListByUser(ctx, userID)
}

// Create creates an empty deck.
func (d *DeckService) Create(ctx context.Context, userID int64, in DeckInput) (*models.Deck, error) {
	if in.Name == nil {
		return nil, validationError("deck name is required")
	}
	deck := &models.Deck{UserID: userID}
	if err := applyDeckInput(deck, in); err != nil {
		return nil, err
	}
	if err := repository.NewDeckRepository(d.services.conn()).Create(ctx, deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// Get returns a deck with its cards.
func (d *DeckService) Get(ctx context.Context, userID, deckID int64) (*DeckDetail, error) {
	deck, cards, err := d.loadCards(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	return &DeckDetail{Deck: deck, Cards: cards}, nil
}

// Update changes name, format or description.
func (d *DeckService) Update(ctx context.Context, userID, deckID int64, in DeckInput) (*models.Deck, error) {
	conn := d.services.conn()
	deck, err := d.load(ctx, conn, userID, deckID)
	if err != nil {
		return nil, err
	}
	if err := applyDeckInput(deck, in); err != nil {
		return nil, err
	}
	if err := repository.NewDeckRepository(conn).Update(ctx, deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// Delete removes a deck with its cards and shares.
func (d *DeckService) Delete(ctx context.Context, userID, deckID int64) error {
	conn := d.services.conn()
	if _, err := d.load(ctx, conn, userID, deckID); err != nil {
		return err
	}
	return repository.NewDeckRepository(conn).Delete(ctx, deckID)
}

// AddCardRequest adds a printing to a deck. When PrintingID is zero the
// card's default printing is used.
type AddCardRequest struct {
	PrintingID  int64            `json:"printing_id"`
	CardID      int64            `json:"card_id"`
	Quantity    int              `json:"quantity"`
	BoardType   models.BoardType `json:"board_type"`
	IsCommander bool             `json:"is_commander"`
}

// AddCard adds copies of a printing. Adding a printing already present in
// the same board sums the quantities. Sideboard and maybeboard share one row
// per printing, so adding to one while the printing sits in the other is
// rejected; move the row with UpdateCard instead.
func (d *DeckService) AddCard(ctx context.Context, userID, deckID int64, req AddCardRequest) (*models.DeckCard, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxDeckCardQuantity {
		return nil, validationError("quantity must be between 1 and %d", maxDeckCardQuantity)
	}
	if req.BoardType == "" {
		req.BoardType = models.BoardMain
	}
	if !req.BoardType.Valid() {
		return nil, validationError("unknown board type %q", req.BoardType)
	}
	if req.IsCommander && req.BoardType != models.BoardMain {
		return nil, validationError("a commander must be in the mainboard")
	}

	var card *models.DeckCard
	err := d.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := d.load(ctx, tx, userID, deckID); err != nil {
			return err
		}
		cards := repository.NewCardRepository(tx)

		printingID := req.PrintingID
		switch {
		case printingID != 0:
			p, err := cards.GetPrinting(ctx, printingID)
			if err != nil {
				return err
			}
			if p == nil {
				return notFound("printing")
			}
		case req.CardID != 0:
			p, err := cards.DefaultPrinting(ctx, req.CardID)
			if err != nil {
				return err
			}
			if p == nil {
				return notFound("card")
			}
			printingID = p.ID
		default:
			return validationError("printing_id or card_id is required")
		}

		decks := repository.NewDeckRepository(tx)
		existing, err := decks.FindCard(ctx, deckID, printingID, req.BoardType.IsSideboard())
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.BoardType != req.BoardType {
				return validationError("printing is already in the %s; move it there with an update", existing.BoardType)
			}
			if existing.Quantity+req.Quantity > maxDeckCardQuantity {
				return validationError("deck already holds %d copies; quantity must be at most %d in total",
					existing.Quantity, maxDeckCardQuantity)
			}
		}

		card = &models.DeckCard{
			DeckID:      deckID,
			PrintingID:  printingID,
			Quantity:    req.Quantity,
			BoardType:   req.BoardType,
			IsSideboard: req.BoardType.IsSideboard(),
			IsCommander: req.IsCommander,
		}
		if err := decks.AddCard(ctx, card); err != nil {
			return err
		}
		return decks.Touch(ctx, deckID)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCardRequest changes a deck card. Quantity zero or less removes it.
type UpdateCardRequest struct {
	Quantity    *int              `json:"quantity,omitempty"`
	BoardType   *models.BoardType `json:"board_type,omitempty"`
	IsCommander *bool             `json:"is_commander,omitempty"`
	PrintingID  *int64            `json:"printing_id,omitempty"`
}

// UpdateCard edits one deck card. Moving it onto a row that already holds
// the same printing in the same partition merges the two. The returned card
// is nil when the row was removed.
func (d *DeckService) UpdateCard(ctx context.Context, userID, deckID, deckCardID int64, req UpdateCardRequest) (*models.DeckCard, error) {
	var result *models.DeckCard
	err := d.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := d.load(ctx, tx, userID, deckID); err != nil {
			return err
		}
		decks := repository.NewDeckRepository(tx)
		card, err := d.loadDeckCard(ctx, decks, deckID, deckCardID)
		if err != nil {
			return err
		}

		if req.Quantity != nil {
			if *req.Quantity <= 0 {
				if err := decks.RemoveCard(ctx, card.ID); err != nil {
					return err
				}
				return decks.Touch(ctx, deckID)
			}
			if *req.Quantity > maxDeckCardQuantity {
				return validationError("quantity must be at most %d", maxDeckCardQuantity)
			}
			card.Quantity = *req.Quantity
		}
		if req.BoardType != nil {
			if !req.BoardType.Valid() {
				return validationError("unknown board type %q", *req.BoardType)
			}
			card.BoardType = *req.BoardType
			card.IsSideboard = card.BoardType.IsSideboard()
		}
		if req.IsCommander != nil {
			card.IsCommander = *req.IsCommander
		}
		if card.IsCommander && card.BoardType != models.BoardMain {
			return validationError("a commander must be in the mainboard")
		}
		if req.PrintingID != nil && *req.PrintingID != card.PrintingID {
			if err := samePrintingCard(ctx, repository.NewCardRepository(tx), card.PrintingID, *req.PrintingID); err != nil {
				return err
			}
			card.PrintingID = *req.PrintingID
		}

		merged, err := mergeOrUpdate(ctx, decks, card)
		if err != nil {
			return err
		}
		result = merged
		return decks.Touch(ctx, deckID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveCard deletes a deck card.
func (d *DeckService) RemoveCard(ctx context.Context, userID, deckID, deckCardID int64) error {
	return d.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := d.load(ctx, tx, userID, deckID); err != nil {
			return err
		}
		decks := repository.NewDeckRepository(tx)
		if _, err := d.loadDeckCard(ctx, decks, deckID, deckCardID); err != nil {
			return err
		}
		if err := decks.RemoveCard(ctx, deckCardID); err != nil {
			return err
		}
		return decks.Touch(ctx, deckID)
	})
}

func (d *DeckService) loadDeckCard(ctx context.Context, decks repository.DeckRepository, deckID, deckCardID int64) (*models.DeckCard, error) {
	card, err := decks.GetCard(ctx, deckCardID)
	if err != nil {
		return nil, err
	}
	if card == nil || card.DeckID != deckID {
		return nil, notFound("deck card")
	}
	return card, nil
}

// samePrintingCard checks that two printings belong to the same card.
func samePrintingCard(ctx context.Context, cards repository.CardRepository, currentID, newID int64) error {
	next, err := cards.GetPrinting(ctx, newID)
	if err != nil {
		return err
	}
	if next == nil {
		return notFound("printing")
	}
	current, err := cards.GetPrinting(ctx, currentID)
	if err != nil {
		return err
	}
	if current == nil || current.CardID != next.CardID {
		return validationError("printing %d is not a printing of the same card", newID)
	}
	return nil
}

// mergeOrUpdate writes card, folding it into an existing row that holds the
// same printing in the same partition.
func mergeOrUpdate(ctx context.Context, decks repository.DeckRepository, card *models.DeckCard) (*models.DeckCard, error) {
	existing, err := decks.FindCard(ctx, card.DeckID, card.PrintingID, card.IsSideboard)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.ID == card.ID {
		if err := decks.UpdateCard(ctx, card); err != nil {
			return nil, err
		}
		return card, nil
	}

	if existing.Quantity+card.Quantity > maxDeckCardQuantity {
		return nil, validationError("merged quantity must be at most %d", maxDeckCardQuantity)
	}
	existing.Quantity += card.Quantity
	existing.IsCommander = existing.IsCommander || card.IsCommander
	if err := decks.RemoveCard(ctx, card.ID); err != nil {
		return nil, err
	}
	if err := decks.UpdateCard(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Stats returns the deck's mana curve, colour and type distributions.
func (d *DeckService) Stats(ctx context.Context, userID, deckID int64) (*deckstats.Stats, error) {
	_, cards, err := d.loadCards(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	return deckstats.Summarize(cards), nil
}

// Price returns the deck value split by board.
func (d *DeckService) Price(ctx context.Context, userID, deckID int64) (*deckstats.Price, error) {
	_, cards, err := d.loadCards(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	return deckstats.DeckPrice(cards), nil
}

// Legality checks the mainboard against a format, defaulting to the deck's
// own format.
func (d *DeckService) Legality(ctx context.Context, userID, deckID int64, format string) (*deckstats.LegalityReport, error) {
	deck, cards, err := d.loadCards(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = deck.FormatName()
	}
	if format == "" {
		return nil, validationError("format is required")
	}
	return deckstats.CheckLegality(cards, format), nil
}

// Export renders the deck as a downloadable file. format is "text" (the
// import format), "csv" or "json".
func (d *DeckService) Export(ctx context.Context, userID, deckID int64, format string) (*export.File, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	deck, cards, err := d.loadCards(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	return export.Deck(deck, cards, f)
}

// Optimize ranks sets by how many of the deck's cards they could supply.
func (d *DeckService) Optimize(ctx context.Context, userID, deckID int64, opts deckstats.OptimizeOptions) (*deckstats.Optimization, error) {
	_, cards, err := d.loadCards(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	if opts.Limit < 0 || opts.Limit > deckstats.MaxSuggestions {
		return nil, validationError("limit must be between 1 and %d", deckstats.MaxSuggestions)
	}

	seen := make(map[int64]bool)
	cardIDs := make([]int64, 0, len(cards))
	for _, c := range cards {
		if !seen[c.CardID] {
			seen[c.CardID] = true
			cardIDs = append(cardIDs, c.CardID)
		}
	}
	printings, err := repository.NewCardRepository(d.services.conn()).PrintingsForCards(ctx, cardIDs)
	if err != nil {
		return nil, err
	}
	return deckstats.OptimizePrintings(cards, printings, opts), nil
}

// PrintingChange swaps the printing of one deck card.
type PrintingChange struct {
	DeckCardID int64 `json:"deck_card_id"`
	PrintingID int64 `json:"printing_id"`
}

// ApplyResult reports what ApplyOptimization changed.
type ApplyResult struct {
	Updated   int `json:"updated"`
	Merged    int `json:"merged"`
	Unchanged int `json:"unchanged"`
}

// ApplyOptimization swaps printings in one transaction. Every deck card must
// belong to the deck and every new printing must be a printing of the same
// card; any violation rolls back every change.
func (d *DeckService) ApplyOptimization(ctx context.Context, userID, deckID int64, changes []PrintingChange) (*ApplyResult, error) {
	if len(changes) == 0 {
		return nil, validationError("no changes given")
	}

	result := &ApplyResult{}
	err := d.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := d.load(ctx, tx, userID, deckID); err != nil {
			return err
		}
		decks := repository.NewDeckRepository(tx)
		cards := repository.NewCardRepository(tx)

		for _, change := range changes {
			card, err := decks.GetCard(ctx, change.DeckCardID)
			if err != nil {
				return err
			}
			if card == nil || card.DeckID != deckID {
				return validationError("deck card %d does not belong to this deck", change.DeckCardID)
			}
			if card.PrintingID == change.PrintingID {
				result.Unchanged++
				continue
			}
			if err := samePrintingCard(ctx, cards, card.PrintingID, change.PrintingID); err != nil {
				return err
			}

			card.PrintingID = change.PrintingID
			stored, err := mergeOrUpdate(ctx, decks, card)
			if err != nil {
				return err
			}
			if stored.ID != card.ID {
				result.Merged++
			} else {
				result.Updated++
			}
		}
		return decks.Touch(ctx, deckID)
	})
	if err != nil {
		return nil, err
	}

	d.services.logger().Info("deck printings optimized",
		zap.Int64("deck_id", deckID), zap.Int("updated", result.Updated), zap.Int("merged", result.Merged))
	return result, nil
}

// ImportRequest imports a decklist. Replace clears the deck first.
type ImportRequest struct {
	Name    string `json:"name,omitempty"`
	Format  string `json:"format,omitempty"`
	Text    string `json:"text"`
	Replace bool   `json:"replace,omitempty"`
}

// ImportResult reports a decklist import.
type ImportResult struct {
	Deck       *models.Deck `json:"deck"`
	CardsAdded int          `json:"cards_added"`
	BulkResult
}

// CreateFromImport creates a deck from a decklist. The name defaults to the
// one found in the list.
func (d *DeckService) CreateFromImport(ctx context.Context, userID int64, req ImportRequest) (*ImportResult, error) {
	parsed, err := parseDecklist(req.Text)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = parsed.Name
	}
	if name == "" {
		return nil, validationError("deck name is required")
	}

	var result *ImportResult
	err = d.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		deck := &models.Deck{UserID: userID}
		format := req.Format
		if err := applyDeckInput(deck, DeckInput{Name: &name, Format: &format}); err != nil {
			return err
		}
		if err := repository.NewDeckRepository(tx).Create(ctx, deck); err != nil {
			return err
		}
		result, err = importCards(ctx, tx, deck, parsed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Import adds a decklist to an existing deck.
func (d *DeckService) Import(ctx context.Context, userID, deckID int64, req ImportRequest) (*ImportResult, error) {
	parsed, err := parseDecklist(req.Text)
	if err != nil {
		return nil, err
	}

	var result *ImportResult
	err = d.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		deck, err := d.load(ctx, tx, userID, deckID)
		if err != nil {
			return err
		}
		if req.Replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM deck_cards WHERE deck_id = ?`, deckID); err != nil {
				return err
			}
		}
		result, err = importCards(ctx, tx, deck, parsed)
		if err != nil {
			return err
		}
		return repository.NewDeckRepository(tx).Touch(ctx, deckID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseDecklist(text string) (*deckimport.ParsedDeck, error) {
	parsed, err := deckimport.Parse(text)
	switch {
	case errors.Is(err, deckimport.ErrEmptyInput):
		return nil, validationError("decklist is empty")
	case errors.Is(err, deckimport.ErrNoCards):
		msg := "no cards found in decklist"
		if parsed != nil && len(parsed.Errors) > 0 {
			msg += ": " + parsed.Errors[0].Error()
		}
		return nil, validationError("%s", msg)
	case err != nil:
		return nil, validationError("%s", err.Error())
	}
	return parsed, nil
}

// importCards resolves and adds parsed cards. Unresolvable lines are
// recorded and skipped.
func importCards(ctx context.Context, tx repository.DBTX, deck *models.Deck, parsed *deckimport.ParsedDeck) (*ImportResult, error) {
	result := &ImportResult{Deck: deck, BulkResult: *newBulkResult()}
	for _, le := range parsed.Errors {
		result.fail(ItemError{Line: le.Line, Item: le.Text, Message: le.Message})
	}

	cards := repository.NewCardRepository(tx)
	decks := repository.NewDeckRepository(tx)
	for _, pc := range parsed.Cards {
		printing, err := resolvePrinting(ctx, cards, pc)
		if err != nil {
			var unresolved *errUnresolved
			if !errors.As(err, &unresolved) {
				return nil, err
			}
			result.fail(ItemError{Line: pc.LineNumber, Item: pc.Name, Message: err.Error()})
			continue
		}
		card := &models.DeckCard{
			DeckID:      deck.ID,
			PrintingID:  printing.ID,
			Quantity:    pc.Quantity,
			BoardType:   pc.Board,
			IsSideboard: pc.Board.IsSideboard(),
			IsCommander: pc.Commander,
		}
		if err := decks.AddCard(ctx, card); err != nil {
			return nil, err
		}
		result.Succeeded++
		result.CardsAdded += pc.Quantity
	}
	return result, nil
}
