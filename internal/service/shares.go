package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/mtg/deckstats"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

const maxShareDays = 365

// ShareService handles public, read-only deck links.
type ShareService struct {
	services *Services
	now      func() time.Time
}

// NewShareService creates a new ShareService with the given services.
func NewShareService(services *Services) *ShareService {
	return &ShareService{services: services, now: time.Now}
}

// Create issues a new share token for a deck. Any previous active token is
// deactivated.
func (s *ShareService) Create(ctx context.Context, userID, deckID int64, expiresInDays *int) (*models.DeckShare, error) {
	if expiresInDays != nil && (*expiresInDays < 1 || *expiresInDays > maxShareDays) {
		return nil, validationError("expires_in_days must be between 1 and %d", maxShareDays)
	}

	share := &models.DeckShare{Token: uuid.NewString(), IsActive: true}
	if expiresInDays != nil {
		expires := s.now().UTC().AddDate(0, 0, *expiresInDays)
		share.ExpiresAt = &expires
	}

	err := s.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		deck, err := repository.NewDeckRepository(tx).GetForUser(ctx, userID, deckID)
		if err != nil {
			return err
		}
		if deck == nil {
			return notFound("deck")
		}
		shares := repository.NewShareRepository(tx)
		if _, err := shares.DeactivateForDeck(ctx, deckID); err != nil {
			return err
		}
		share.DeckID = deckID
		return shares.Create(ctx, share)
	})
	if err != nil {
		return nil, err
	}
	return share, nil
}

// Deactivate revokes the deck's active share.
func (s *ShareService) Deactivate(ctx context.Context, userID, deckID int64) error {
	conn := s.services.conn()
	deck, err := repository.NewDeckRepository(conn).GetForUser(ctx, userID, deckID)
	if err != nil {
		return err
	}
	if deck == nil {
		return notFound("deck")
	}
	n, err := repository.NewShareRepository(conn).DeactivateForDeck(ctx, deckID)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("active share")
	}
	return nil
}

// SharedDeck is the public view of a shared deck.
type SharedDeck struct {
	Deck      *models.Deck           `json:"deck"`
	Owner     string                 `json:"owner"`
	Cards     []*models.DeckCardView `json:"cards"`
	Stats     *deckstats.Stats       `json:"stats"`
	Price     *deckstats.Price       `json:"price"`
	ViewCount int                    `json:"view_count"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

func (s *ShareService) resolve(ctx context.Context, db repository.DBTX, token string) (*models.DeckShare, *models.Deck, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, notFound("shared deck")
	}
	share, err := repository.NewShareRepository(db).GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !share.Usable(s.now()) {
		return nil, nil, notFound("shared deck")
	}
	deck, err := repository.NewDeckRepository(db).GetByID(ctx, share.DeckID)
	if err != nil {
		return nil, nil, err
	}
	if deck == nil {
		return nil, nil, notFound("shared deck")
	}
	return share, deck, nil
}

// Get returns a shared deck and counts the view. Inactive and expired
// tokens are not found.
func (s *ShareService) Get(ctx context.Context, token string) (*SharedDeck, error) {
	conn := s.services.conn()
	share, deck, err := s.resolve(ctx, conn, token)
	if err != nil {
		return nil, err
	}
	if err := repository.NewShareRepository(conn).IncrementViews(ctx, share.ID); err != nil {
		return nil, err
	}

	cards, err := repository.NewDeckRepository(conn).ListCards(ctx, deck.ID)
	if err != nil {
		return nil, err
	}
	owner, err := repository.NewUserRepository(conn).GetByID(ctx, deck.UserID)
	if err != nil {
		return nil, err
	}
	shared := &SharedDeck{
		Deck:      deck,
		Cards:     cards,
		Stats:     deckstats.Summarize(cards),
		Price:     deckstats.DeckPrice(cards),
		ViewCount: share.ViewCount + 1,
		ExpiresAt: share.ExpiresAt,
	}
	if owner != nil {
		shared.Owner = owner.Username
	}
	return shared, nil
}

// Import copies a shared deck into the caller's account.
func (s *ShareService) Import(ctx context.Context, userID int64, token, name string) (*models.Deck, error) {
	var copied *models.Deck
	err := s.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, source, err := s.resolve(ctx, tx, token)
		if err != nil {
			return err
		}
		decks := repository.NewDeckRepository(tx)

		copied = &models.Deck{
			UserID:      userID,
			Name:        source.Name,
			Format:      source.Format,
			Description: source.Description,
		}
		if name = strings.TrimSpace(name); name != "" {
			if err := applyDeckInput(copied, DeckInput{Name: &name}); err != nil {
				return err
			}
		}
		if err := decks.Create(ctx, copied); err != nil {
			return err
		}

		cards, err := decks.ListCards(ctx, source.ID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			row := c.DeckCard
			row.ID = 0
			row.DeckID = copied.ID
			if err := decks.AddCard(ctx, &row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.services.logger().Info("shared deck imported", zap.Int64("user_id", userID), zap.Int64("deck_id", copied.ID))
	return copied, nil
}
