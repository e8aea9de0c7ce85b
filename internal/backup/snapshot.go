package backup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// FormatVersion is written into every snapshot. Snapshots with a newer
// version are refused.
const FormatVersion = 1

// Snapshot is the on-disk backup document. User data references the catalog
// only through printing UUIDs and card names, so a snapshot survives a
// catalog replacement.
type Snapshot struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	Data      Data      `json:"data"`
}

// Data holds every user-owned table.
type Data struct {
	Users          []UserRecord          `json:"users"`
	APIKeys        []APIKeyRecord        `json:"api_keys"`
	OwnedCards     []OwnedCardRecord     `json:"owned_cards"`
	OwnedPrintings []OwnedPrintingRecord `json:"owned_printings"`
	Decks          []DeckRecord          `json:"decks"`
	DeckCards      []DeckCardRecord      `json:"deck_cards"`
	DeckShares     []DeckShareRecord     `json:"deck_shares"`
}

type UserRecord struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type APIKeyRecord struct {
	Username   string     `json:"username"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"key_hash"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// OwnedCardRecord is card-level ownership. It lets a restore fall back to a
// default printing when the owned printing no longer exists.
type OwnedCardRecord struct {
	Username string `json:"username"`
	CardName string `json:"card_name"`
}

type OwnedPrintingRecord struct {
	Username     string `json:"username"`
	PrintingUUID string `json:"printing_uuid"`
	Quantity     int    `json:"quantity"`
}

// DeckRecord keeps the source deck id only to link cards and shares within
// the same snapshot.
type DeckRecord struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Format      *string   `json:"format,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type DeckCardRecord struct {
	DeckID       int64            `json:"deck_id"`
	PrintingUUID string           `json:"printing_uuid"`
	CardName     string           `json:"card_name"`
	Quantity     int              `json:"quantity"`
	IsCommander  bool             `json:"is_commander"`
	BoardType    models.BoardType `json:"board_type"`
}

type DeckShareRecord struct {
	DeckID    int64      `json:"deck_id"`
	Token     string     `json:"token"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ViewCount int        `json:"view_count"`
}

// Collect reads all user data through db.
func Collect(ctx context.Context, db repository.DBTX) (*Data, error) {
	users, err := repository.NewUserRepository(db).List(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := repository.NewCatalogRepository(db).PrintingRefs(ctx)
	if err != nil {
		return nil, err
	}

	data := &Data{
		Users:          []UserRecord{},
		APIKeys:        []APIKeyRecord{},
		OwnedCards:     []OwnedCardRecord{},
		OwnedPrintings: []OwnedPrintingRecord{},
		Decks:          []DeckRecord{},
		DeckCards:      []DeckCardRecord{},
		DeckShares:     []DeckShareRecord{},
	}

	usernames := make(map[int64]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
		data.Users = append(data.Users, UserRecord{
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			IsAdmin:      u.IsAdmin,
			CreatedAt:    u.CreatedAt,
		})
	}

	keys, err := repository.NewAPIKeyRepository(db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		data.APIKeys = append(data.APIKeys, APIKeyRecord{
			Username:   usernames[k.UserID],
			Name:       k.Name,
			KeyPrefix:  k.KeyPrefix,
			KeyHash:    k.KeyHash,
			CreatedAt:  k.CreatedAt,
			LastUsedAt: k.LastUsedAt,
		})
	}

	owned, err := repository.NewOwnershipRepository(db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	ownedCards := make(map[OwnedCardRecord]bool)
	for _, o := range owned {
		ref, ok := refs[o.PrintingID]
		if !ok {
			continue
		}
		username := usernames[o.UserID]
		data.OwnedPrintings = append(data.OwnedPrintings, OwnedPrintingRecord{
			Username:     username,
			PrintingUUID: ref.UUID,
			Quantity:     o.Quantity,
		})
		ownedCards[OwnedCardRecord{Username: username, CardName: ref.CardName}] = true
	}
	for rec := range ownedCards {
		data.OwnedCards = append(data.OwnedCards, rec)
	}
	sort.Slice(data.OwnedCards, func(i, j int) bool {
		a, b := data.OwnedCards[i], data.OwnedCards[j]
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return strings.ToLower(a.CardName) < strings.ToLower(b.CardName)
	})

	deckRepo := repository.NewDeckRepository(db)
	decks, err := deckRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range decks {
		data.Decks = append(data.Decks, DeckRecord{
			ID:          d.ID,
			Username:    usernames[d.UserID],
			Name:        d.Name,
			Format:      d.Format,
			Description: d.Description,
			CreatedAt:   d.CreatedAt,
		})
	}

	cards, err := deckRepo.ListAllCards(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		ref, ok := refs[c.PrintingID]
		if !ok {
			return nil, fmt.Errorf("deck card %d references unknown printing %d", c.ID, c.PrintingID)
		}
		data.DeckCards = append(data.DeckCards, DeckCardRecord{
			DeckID:       c.DeckID,
			PrintingUUID: ref.UUID,
			CardName:     ref.CardName,
			Quantity:     c.Quantity,
			IsCommander:  c.IsCommander,
			BoardType:    c.BoardType,
		})
	}

	shares, err := repository.NewShareRepository(db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range shares {
		data.DeckShares = append(data.DeckShares, DeckShareRecord{
			DeckID:    s.DeckID,
			Token:     s.Token,
			IsActive:  s.IsActive,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			ViewCount: s.ViewCount,
		})
	}
	return data, nil
}
