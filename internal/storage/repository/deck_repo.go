package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// DeckRepository handles database operations for decks and their cards.
type DeckRepository interface {
	// Create inserts a new deck and sets its ID and timestamps.
	Create(ctx context.Context, deck *models.Deck) error

	// Update writes name, format and description.
	Update(ctx context.Context, deck *models.Deck) error

	// GetByID retrieves a deck by its ID, nil when absent.
	GetByID(ctx context.Context, id int64) (*models.Deck, error)

	// GetForUser retrieves a deck only if userID owns it.
	GetForUser(ctx context.Context, userID, id int64) (*models.Deck, error)

	// ListByUser returns a user's decks with partition totals, most recently updated first.
	ListByUser(ctx context.Context, userID int64) ([]*models.DeckSummary, error)

	// ListAll returns every deck of every user.
	ListAll(ctx context.Context) ([]*models.Deck, error)

	// CountByUser returns how many decks a user has.
	CountByUser(ctx context.Context, userID int64) (int, error)

	// Delete deletes a deck and its cards.
	Delete(ctx context.Context, id int64) error

	// Touch bumps updated_at.
	Touch(ctx context.Context, id int64) error

	// AddCard inserts a card into a deck partition. When the printing already
	// sits in that partition the quantities are summed. card is updated with
	// the stored row.
	AddCard(ctx context.Context, card *models.DeckCard) error

	// GetCard retrieves a deck card by ID, nil when absent.
	GetCard(ctx context.Context, id int64) (*models.DeckCard, error)

	// FindCard looks up the row for a printing in a partition.
	FindCard(ctx context.Context, deckID, printingID int64, isSideboard bool) (*models.DeckCard, error)

	// UpdateCard writes every mutable column of a deck card.
	UpdateCard(ctx context.Context, card *models.DeckCard) error

	// RemoveCard deletes a deck card.
	RemoveCard(ctx context.Context, id int64) error

	// ListCards returns a deck's cards joined to the catalog.
	ListCards(ctx context.Context, deckID int64) ([]*models.DeckCardView, error)

	// ListMainboardForDecks returns mainboard rows (commanders included) of
	// the given decks owned by userID. An empty deckIDs selects every deck.
	ListMainboardForDecks(ctx context.Context, userID int64, deckIDs []int64) ([]*models.DeckCardView, error)

	// TotalInDecks sums quantities across all boards of all of a user's decks.
	TotalInDecks(ctx context.Context, userID int64) (int, error)

	// ListAllCards returns every deck card row.
	ListAllCards(ctx context.Context) ([]*models.DeckCard, error)
}

type deckRepository struct {
	db DBTX
}

// NewDeckRepository creates a new deck repository.
func NewDeckRepository(db DBTX) DeckRepository {
	return &deckRepository{db: db}
}

const deckColumns = `d.id, d.user_id, d.name, d.format, d.description, d.created_at, d.updated_at`

func scanDeck(row rowScanner, extra ...interface{}) (*models.Deck, error) {
	deck := &models.Deck{}
	var format, description sql.NullString
	dest := []interface{}{&deck.ID, &deck.UserID, &deck.Name, &format, &description, &deck.CreatedAt, &deck.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if format.Valid {
		deck.Format = &format.String
	}
	if description.Valid {
		deck.Description = &description.String
	}
	return deck, nil
}

// Create inserts a new deck.
func (r *deckRepository) Create(ctx context.Context, deck *models.Deck) error {
	now := time.Now().UTC()
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = now
	}
	deck.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO decks (user_id, name, format, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, deck.UserID, deck.Name, deck.Format, deck.Description, deck.CreatedAt, deck.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get deck id: %w", err)
	}
	deck.ID = id
	return nil
}

// Update updates an existing deck.
func (r *deckRepository) Update(ctx context.Context, deck *models.Deck) error {
	deck.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE decks SET name = ?, format = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, deck.Name, deck.Format, deck.Description, deck.UpdatedAt, deck.ID)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	return nil
}

// GetByID retrieves a deck by its ID.
func (r *deckRepository) GetByID(ctx context.Context, id int64) (*models.Deck, error) {
	deck, err := scanDeck(r.db.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks d WHERE d.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck by id: %w", err)
	}
	return deck, nil
}

// GetForUser retrieves a deck scoped to its owner.
func (r *deckRepository) GetForUser(ctx context.Context, userID, id int64) (*models.Deck, error) {
	deck, err := scanDeck(r.db.QueryRowContext(ctx,
		`SELECT `+deckColumns+` FROM decks d WHERE d.id = ? AND d.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return deck, nil
}

// ListByUser lists a user's decks with card totals.
func (r *deckRepository) ListByUser(ctx context.Context, userID int64) ([]*models.DeckSummary, error) {
	query := `
		SELECT ` + deckColumns + `,
			COALESCE(SUM(CASE WHEN dc.board_type = 'mainboard' THEN dc.quantity END), 0),
			COALESCE(SUM(CASE WHEN dc.board_type = 'sideboard' THEN dc.quantity END), 0),
			COALESCE(SUM(CASE WHEN dc.board_type = 'maybeboard' THEN dc.quantity END), 0),
			COUNT(DISTINCT p.card_id)
		FROM decks d
		LEFT JOIN deck_cards dc ON dc.deck_id = d.id
		LEFT JOIN printings p ON p.id = dc.printing_id
		WHERE d.user_id = ?
		GROUP BY d.id
		ORDER BY d.updated_at DESC, d.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	decks := []*models.DeckSummary{}
	for rows.Next() {
		s := &models.DeckSummary{}
		deck, err := scanDeck(rows, &s.MainboardCount, &s.SideboardCount, &s.MaybeboardCount, &s.UniqueCards)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		s.Deck = *deck
		decks = append(decks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decks: %w", err)
	}
	return decks, nil
}

// ListAll returns every deck.
func (r *deckRepository) ListAll(ctx context.Context) ([]*models.Deck, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deckColumns+` FROM decks d ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	decks := []*models.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decks: %w", err)
	}
	return decks, nil
}

// CountByUser counts a user's decks.
func (r *deckRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decks WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count decks: %w", err)
	}
	return n, nil
}

// Delete deletes a deck by its ID.
func (r *deckRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return nil
}

// Touch bumps a deck's updated_at.
func (r *deckRepository) Touch(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE decks SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to touch deck: %w", err)
	}
	return nil
}

const deckCardColumns = `dc.id, dc.deck_id, dc.printing_id, dc.quantity, dc.is_sideboard, dc.is_commander, dc.board_type`

func scanDeckCard(row rowScanner) (*models.DeckCard, error) {
	c := &models.DeckCard{}
	if err := row.Scan(&c.ID, &c.DeckID, &c.PrintingID, &c.Quantity, &c.IsSideboard, &c.IsCommander, &c.BoardType); err != nil {
		return nil, err
	}
	return c, nil
}

// AddCard inserts or merges a deck card. A merged quantity is clamped to
// models.MaxDeckCardQuantity.
func (r *deckRepository) AddCard(ctx context.Context, card *models.DeckCard) error {
	if card.BoardType == "" {
		card.BoardType = models.BoardMain
	}
	card.IsSideboard = card.BoardType.IsSideboard()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deck_cards (deck_id, printing_id, quantity, is_sideboard, is_commander, board_type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(deck_id, printing_id, is_sideboard) DO UPDATE SET
			quantity = MIN(deck_cards.quantity + excluded.quantity, ?),
			is_commander = MAX(deck_cards.is_commander, excluded.is_commander)
	`, card.DeckID, card.PrintingID, card.Quantity, card.IsSideboard, card.IsCommander, string(card.BoardType),
		models.MaxDeckCardQuantity)
	if err != nil {
		return fmt.Errorf("failed to add card to deck: %w", err)
	}

	stored, err := r.FindCard(ctx, card.DeckID, card.PrintingID, card.IsSideboard)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("failed to add card to deck: row missing after insert")
	}
	*card = *stored
	return nil
}

// GetCard retrieves a deck card by ID.
func (r *deckRepository) GetCard(ctx context.Context, id int64) (*models.DeckCard, error) {
	c, err := scanDeckCard(r.db.QueryRowContext(ctx, `SELECT `+deckCardColumns+` FROM deck_cards dc WHERE dc.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck card: %w", err)
	}
	return c, nil
}

// FindCard retrieves a deck card by its uniqueness key.
func (r *deckRepository) FindCard(ctx context.Context, deckID, printingID int64, isSideboard bool) (*models.DeckCard, error) {
	c, err := scanDeckCard(r.db.QueryRowContext(ctx, `
		SELECT `+deckCardColumns+` FROM deck_cards dc
		WHERE dc.deck_id = ? AND dc.printing_id = ? AND dc.is_sideboard = ?`,
		deckID, printingID, isSideboard))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deck card: %w", err)
	}
	return c, nil
}

// UpdateCard writes a deck card.
func (r *deckRepository) UpdateCard(ctx context.Context, card *models.DeckCard) error {
	card.IsSideboard = card.BoardType.IsSideboard()
	_, err := r.db.ExecContext(ctx, `
		UPDATE deck_cards
		SET printing_id = ?, quantity = ?, is_sideboard = ?, is_commander = ?, board_type = ?
		WHERE id = ?
	`, card.PrintingID, card.Quantity, card.IsSideboard, card.IsCommander, string(card.BoardType), card.ID)
	if err != nil {
		return fmt.Errorf("failed to update deck card: %w", err)
	}
	return nil
}

// RemoveCard deletes a deck card.
func (r *deckRepository) RemoveCard(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deck_cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove deck card: %w", err)
	}
	return nil
}

const deckCardViewSelect = `
	SELECT ` + deckCardColumns + `, d.name,
		c.id, c.name, c.mana_cost, c.cmc, c.colors, c.color_identity, c.type_line, c.legalities,
		p.uuid, p.set_code, s.name, s.release_date, p.collector_number, p.rarity, p.image_url,
		%s
	FROM deck_cards dc
	JOIN decks d ON d.id = dc.deck_id
	JOIN printings p ON p.id = dc.printing_id
	JOIN cards c ON c.id = p.card_id
	JOIN sets s ON s.code = p.set_code`

func (r *deckRepository) queryCardViews(ctx context.Context, where string, args ...interface{}) ([]*models.DeckCardView, error) {
	query := fmt.Sprintf(deckCardViewSelect, bestPriceSQL("p.uuid")) + ` ` + where

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deck cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	views := []*models.DeckCardView{}
	for rows.Next() {
		v := &models.DeckCardView{}
		err := rows.Scan(
			&v.ID, &v.DeckID, &v.PrintingID, &v.Quantity, &v.IsSideboard, &v.IsCommander, &v.BoardType,
			&v.DeckName,
			&v.CardID, &v.CardName, &v.ManaCost, &v.CMC, &v.Colors, &v.ColorIdentity, &v.TypeLine, &v.Legalities,
			&v.PrintingUUID, &v.SetCode, &v.SetName, &v.ReleaseDate, &v.CollectorNumber, &v.Rarity, &v.ImageURL,
			&v.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck card: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deck cards: %w", err)
	}
	return views, nil
}

// ListCards returns a deck's cards.
func (r *deckRepository) ListCards(ctx context.Context, deckID int64) ([]*models.DeckCardView, error) {
	return r.queryCardViews(ctx, `WHERE dc.deck_id = ? ORDER BY dc.board_type, c.name, dc.id`, deckID)
}

// ListMainboardForDecks returns mainboard rows of selected decks.
func (r *deckRepository) ListMainboardForDecks(ctx context.Context, userID int64, deckIDs []int64) ([]*models.DeckCardView, error) {
	where := `WHERE d.user_id = ? AND dc.board_type = 'mainboard'`
	args := []interface{}{userID}
	if len(deckIDs) > 0 {
		where += ` AND d.id IN (` + placeholders(len(deckIDs)) + `)`
		for _, id := range deckIDs {
			args = append(args, id)
		}
	}
	return r.queryCardViews(ctx, where+` ORDER BY d.id, c.name, dc.id`, args...)
}

// TotalInDecks sums deck quantities for a user.
func (r *deckRepository) TotalInDecks(ctx context.Context, userID int64) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(dc.quantity), 0)
		FROM deck_cards dc JOIN decks d ON d.id = dc.deck_id
		WHERE d.user_id = ?`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum deck quantities: %w", err)
	}
	return total, nil
}

// ListAllCards returns every deck card row.
func (r *deckRepository) ListAllCards(ctx context.Context) ([]*models.DeckCard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deckCardColumns+` FROM deck_cards dc ORDER BY dc.deck_id, dc.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deck cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	cards := []*models.DeckCard{}
	for rows.Next() {
		c, err := scanDeckCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deck cards: %w", err)
	}
	return cards, nil
}
