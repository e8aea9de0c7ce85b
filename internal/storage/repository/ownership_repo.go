package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// InventoryFilter narrows an inventory listing.
type InventoryFilter struct {
	Search  string // card name substring
	SetCode string
	Rarity  string
	Color   string // single colour symbol, "C" for colourless
	Sort    string // name, set, quantity, price, release
	Desc    bool
	Page    Page
}

// OwnershipRepository owns the owned_printings ledger.
type OwnershipRepository interface {
	// GetQuantity returns 0 when the user does not own the printing.
	GetQuantity(ctx context.Context, userID, printingID int64) (int, error)

	// SetQuantity stores an absolute quantity; quantity <= 0 deletes the row.
	SetQuantity(ctx context.Context, userID, printingID int64, quantity int) error

	// AddQuantity adds delta and returns the new quantity. A result <= 0
	// deletes the row.
	AddQuantity(ctx context.Context, userID, printingID int64, delta int) (int, error)

	// OwnsCard reports whether the user owns any printing of the card.
	OwnsCard(ctx context.Context, userID, cardID int64) (bool, error)

	// RemoveCard deletes every owned printing of the card.
	RemoveCard(ctx context.Context, userID, cardID int64) (int64, error)

	// OwnedCardIDs returns the set of cards the user owns any printing of.
	OwnedCardIDs(ctx context.Context, userID int64) (map[int64]bool, error)

	// ListInventory returns one page of owned printings with deck usage.
	ListInventory(ctx context.Context, userID int64, filter InventoryFilter) ([]*models.InventoryItem, int, error)

	// AllInventory returns every owned printing of the user.
	AllInventory(ctx context.Context, userID int64) ([]*models.InventoryItem, error)

	// ListAll returns the raw ledger of every user.
	ListAll(ctx context.Context) ([]*models.OwnedPrinting, error)

	// DeleteAll wipes the ledger.
	DeleteAll(ctx context.Context) error
}

type ownershipRepository struct {
	db DBTX
}

// NewOwnershipRepository creates a new ownership repository.
func NewOwnershipRepository(db DBTX) OwnershipRepository {
	return &ownershipRepository{db: db}
}

// GetQuantity returns the owned quantity of a printing.
func (r *ownershipRepository) GetQuantity(ctx context.Context, userID, printingID int64) (int, error) {
	var quantity int
	err := r.db.QueryRowContext(ctx,
		`SELECT quantity FROM owned_printings WHERE user_id = ? AND printing_id = ?`,
		userID, printingID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get owned quantity: %w", err)
	}
	return quantity, nil
}

// SetQuantity upserts the owned quantity.
func (r *ownershipRepository) SetQuantity(ctx context.Context, userID, printingID int64, quantity int) error {
	if quantity <= 0 {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM owned_printings WHERE user_id = ? AND printing_id = ?`, userID, printingID); err != nil {
			return fmt.Errorf("failed to delete owned printing: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO owned_printings (user_id, printing_id, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, printing_id) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`, userID, printingID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set owned quantity: %w", err)
	}
	return nil
}

// AddQuantity increments the owned quantity.
func (r *ownershipRepository) AddQuantity(ctx context.Context, userID, printingID int64, delta int) (int, error) {
	current, err := r.GetQuantity(ctx, userID, printingID)
	if err != nil {
		return 0, err
	}
	next := current + delta
	if err := r.SetQuantity(ctx, userID, printingID, next); err != nil {
		return 0, err
	}
	if next < 0 {
		next = 0
	}
	return next, nil
}

// OwnsCard is derived from the printing ledger.
func (r *ownershipRepository) OwnsCard(ctx context.Context, userID, cardID int64) (bool, error) {
	var owned bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM owned_printings op
			JOIN printings p ON p.id = op.printing_id
			WHERE op.user_id = ? AND p.card_id = ?
		)`, userID, cardID).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to check card ownership: %w", err)
	}
	return owned, nil
}

// RemoveCard deletes all printings of a card from the ledger.
func (r *ownershipRepository) RemoveCard(ctx context.Context, userID, cardID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM owned_printings
		WHERE user_id = ? AND printing_id IN (SELECT id FROM printings WHERE card_id = ?)
	`, userID, cardID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove owned card: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// OwnedCardIDs lists the distinct cards owned by a user.
func (r *ownershipRepository) OwnedCardIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT p.card_id FROM owned_printings op
		JOIN printings p ON p.id = op.printing_id
		WHERE op.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	owned := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owned card: %w", err)
		}
		owned[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owned cards: %w", err)
	}
	return owned, nil
}

func inventorySelect() string {
	return `SELECT ` + printingViewColumns + `, ` + bestPriceSQL("p.uuid") + `,
			op.quantity,
			COALESCE((SELECT SUM(dc.quantity) FROM deck_cards dc JOIN decks d ON d.id = dc.deck_id
				WHERE d.user_id = op.user_id AND dc.printing_id = op.printing_id), 0)
		FROM owned_printings op
		JOIN printings p ON p.id = op.printing_id
		JOIN cards c ON c.id = p.card_id
		JOIN sets s ON s.code = p.set_code`
}

func (r *ownershipRepository) queryInventory(ctx context.Context, query string, args ...interface{}) ([]*models.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := []*models.InventoryItem{}
	for rows.Next() {
		item := &models.InventoryItem{}
		view, err := scanPrintingView(rows, &item.Quantity, &item.InDecks)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		item.PrintingView = *view
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}
	return items, nil
}

// ListInventory returns a filtered page of the user's inventory.
func (r *ownershipRepository) ListInventory(ctx context.Context, userID int64, filter InventoryFilter) ([]*models.InventoryItem, int, error) {
	filter.Page = filter.Page.Normalize(50, 200)

	where := []string{"op.user_id = ?"}
	args := []interface{}{userID}
	if filter.Search != "" {
		where = append(where, `c.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Search))
	}
	if filter.SetCode != "" {
		where = append(where, `p.set_code = ? COLLATE NOCASE`)
		args = append(args, filter.SetCode)
	}
	if filter.Rarity != "" {
		where = append(where, `p.rarity = ? COLLATE NOCASE`)
		args = append(args, filter.Rarity)
	}
	if color := strings.ToUpper(strings.TrimSpace(filter.Color)); color != "" {
		if color == "C" {
			where = append(where, `c.colors = ''`)
		} else {
			where = append(where, `(',' || c.colors || ',') LIKE ?`)
			args = append(args, "%,"+color+",%")
		}
	}
	whereSQL := " WHERE " + strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM owned_printings op
		JOIN printings p ON p.id = op.printing_id
		JOIN cards c ON c.id = p.card_id` + whereSQL
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count inventory: %w", err)
	}

	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	var orderBy string
	switch filter.Sort {
	case "set":
		orderBy = "s.name " + direction + ", c.name ASC"
	case "quantity":
		orderBy = "op.quantity " + direction + ", c.name ASC"
	case "price":
		// best price is the 21st selected column
		orderBy = "21 " + direction + ", c.name ASC"
	case "release":
		orderBy = "s.release_date " + direction + ", c.name ASC"
	default:
		orderBy = "c.name " + direction + ", s.release_date DESC"
	}

	query := inventorySelect() + whereSQL + ` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	items, err := r.queryInventory(ctx, query, append(args, filter.Page.PageSize, filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// AllInventory returns every owned printing of the user.
func (r *ownershipRepository) AllInventory(ctx context.Context, userID int64) ([]*models.InventoryItem, error) {
	return r.queryInventory(ctx, inventorySelect()+` WHERE op.user_id = ? ORDER BY c.name, p.id`, userID)
}

// ListAll returns every ledger row.
func (r *ownershipRepository) ListAll(ctx context.Context) ([]*models.OwnedPrinting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, printing_id, quantity, updated_at FROM owned_printings ORDER BY user_id, printing_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned printings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := []*models.OwnedPrinting{}
	for rows.Next() {
		op := &models.OwnedPrinting{}
		if err := rows.Scan(&op.UserID, &op.PrintingID, &op.Quantity, &op.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan owned printing: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owned printings: %w", err)
	}
	return out, nil
}

// DeleteAll wipes the ledger.
func (r *ownershipRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM owned_printings`); err != nil {
		return fmt.Errorf("failed to clear owned printings: %w", err)
	}
	return nil
}
