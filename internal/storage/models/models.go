package models

import "time"

// User is an account. Username and Email are both unique.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIKey grants the same authority as its owner's session. Only the SHA-256
// hash of the secret is stored.
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// OwnedPrinting is the authoritative ownership record.
type OwnedPrinting struct {
	UserID     int64     `json:"user_id"`
	PrintingID int64     `json:"printing_id"`
	Quantity   int       `json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BoardType is the zone a DeckCard occupies.
type BoardType string

// Deck zones.
const (
	BoardMain  BoardType = "mainboard"
	BoardSide  BoardType = "sideboard"
	BoardMaybe BoardType = "maybeboard"
)

// Valid reports whether b is a known zone.
func (b BoardType) Valid() bool {
	switch b {
	case BoardMain, BoardSide, BoardMaybe:
		return true
	}
	return false
}

// IsSideboard is the stored partition flag for the zone. Everything that is
// not mainboard lives in the sideboard partition.
func (b BoardType) IsSideboard() bool {
	return b != BoardMain
}

// MaxDeckCardQuantity caps the copies held by one deck card row.
const MaxDeckCardQuantity = 999

// Deck belongs to exactly one user.
type Deck struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Format      *string   `json:"format,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormatName returns the deck's format or "".
func (d *Deck) FormatName() string {
	if d == nil || d.Format == nil {
		return ""
	}
	return *d.Format
}

// DeckSummary is a deck list row with its partition totals.
type DeckSummary struct {
	Deck
	MainboardCount  int `json:"mainboard_count"`
	SideboardCount  int `json:"sideboard_count"`
	MaybeboardCount int `json:"maybeboard_count"`
	UniqueCards     int `json:"unique_cards"`
}

// DeckCard is one printing in one deck partition.
type DeckCard struct {
	ID          int64     `json:"id"`
	DeckID      int64     `json:"deck_id"`
	PrintingID  int64     `json:"printing_id"`
	Quantity    int       `json:"quantity"`
	IsSideboard bool      `json:"is_sideboard"`
	IsCommander bool      `json:"is_commander"`
	BoardType   BoardType `json:"board_type"`
}

// DeckCardView is a DeckCard joined to its printing, card and set.
type DeckCardView struct {
	DeckCard
	DeckName        string     `json:"deck_name,omitempty"`
	CardID          int64      `json:"card_id"`
	CardName        string     `json:"card_name"`
	ManaCost        string     `json:"mana_cost"`
	CMC             float64    `json:"cmc"`
	Colors          string     `json:"colors"`
	ColorIdentity   string     `json:"color_identity"`
	TypeLine        string     `json:"type_line"`
	Legalities      Legalities `json:"-"`
	PrintingUUID    string     `json:"printing_uuid"`
	SetCode         string     `json:"set_code"`
	SetName         string     `json:"set_name"`
	ReleaseDate     string     `json:"release_date"`
	CollectorNumber string     `json:"collector_number"`
	Rarity          string     `json:"rarity"`
	ImageURL        string     `json:"image_url"`
	Price           float64    `json:"price"`
}

// DeckShare grants read-only public access to a deck.
type DeckShare struct {
	ID        int64      `json:"id"`
	DeckID    int64      `json:"deck_id"`
	Token     string     `json:"token"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ViewCount int        `json:"view_count"`
}

// Usable reports whether the share grants access at time now.
func (s *DeckShare) Usable(now time.Time) bool {
	if s == nil || !s.IsActive {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// InventoryItem is an owned printing with catalog details and deck usage.
type InventoryItem struct {
	PrintingView
	Quantity int `json:"quantity"`
	InDecks  int `json:"in_decks"`
}
