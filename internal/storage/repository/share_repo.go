package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// ShareRepository handles public deck share links.
type ShareRepository interface {
	// Create inserts a share and sets its ID.
	Create(ctx context.Context, share *models.DeckShare) error

	// GetByToken returns nil when the token is unknown.
	GetByToken(ctx context.Context, token string) (*models.DeckShare, error)

	// GetActiveForDeck returns the deck's active share, if any.
	GetActiveForDeck(ctx context.Context, deckID int64) (*models.DeckShare, error)

	// DeactivateForDeck turns off every share of the deck and returns how many changed.
	DeactivateForDeck(ctx context.Context, deckID int64) (int64, error)

	// IncrementViews bumps view_count.
	IncrementViews(ctx context.Context, id int64) error

	ListAll(ctx context.Context) ([]*models.DeckShare, error)
}

type shareRepository struct {
	db DBTX
}

// NewShareRepository creates a new share repository.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepository{db: db}
}

const shareColumns = `id, deck_id, token, is_active, created_at, expires_at, view_count`

func scanShare(row rowScanner) (*models.DeckShare, error) {
	s := &models.DeckShare{}
	var expires sql.NullTime
	if err := row.Scan(&s.ID, &s.DeckID, &s.Token, &s.IsActive, &s.CreatedAt, &expires, &s.ViewCount); err != nil {
		return nil, err
	}
	if expires.Valid {
		s.ExpiresAt = &expires.Time
	}
	return s, nil
}

// Create inserts a share.
func (r *shareRepository) Create(ctx context.Context, share *models.DeckShare) error {
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO deck_shares (deck_id, token, is_active, created_at, expires_at, view_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, share.DeckID, share.Token, share.IsActive, share.CreatedAt, share.ExpiresAt, share.ViewCount)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get share id: %w", err)
	}
	share.ID = id
	return nil
}

// GetByToken retrieves a share by token.
func (r *shareRepository) GetByToken(ctx context.Context, token string) (*models.DeckShare, error) {
	s, err := scanShare(r.db.QueryRowContext(ctx, `SELECT `+shareColumns+` FROM deck_shares WHERE token = ?`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return s, nil
}

// GetActiveForDeck returns the newest active share of a deck.
func (r *shareRepository) GetActiveForDeck(ctx context.Context, deckID int64) (*models.DeckShare, error) {
	s, err := scanShare(r.db.QueryRowContext(ctx, `
		SELECT `+shareColumns+` FROM deck_shares
		WHERE deck_id = ? AND is_active = 1
		ORDER BY id DESC LIMIT 1`, deckID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active share: %w", err)
	}
	return s, nil
}

// DeactivateForDeck disables a deck's shares.
func (r *shareRepository) DeactivateForDeck(ctx context.Context, deckID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE deck_shares SET is_active = 0 WHERE deck_id = ? AND is_active = 1`, deckID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate shares: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// IncrementViews counts a public view.
func (r *shareRepository) IncrementViews(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE deck_shares SET view_count = view_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to increment share views: %w", err)
	}
	return nil
}

// ListAll returns every share.
func (r *shareRepository) ListAll(ctx context.Context) ([]*models.DeckShare, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shareColumns+` FROM deck_shares ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	shares := []*models.DeckShare{}
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shares: %w", err)
	}
	return shares, nil
}
