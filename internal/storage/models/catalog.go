package models

import "time"

// Set is a card set (expansion, core set, supplemental product).
type Set struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"` // YYYY-MM-DD
	SetType      string `json:"set_type"`
	BaseSetSize  int    `json:"base_set_size"`
	TotalSetSize int    `json:"total_set_size"`
	IsOnlineOnly bool   `json:"is_online_only"`
}

// Card is the oracle-level identity of a card. One Card has many Printings.
type Card struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	ManaCost        string     `json:"mana_cost"`
	CMC             float64    `json:"cmc"`
	Colors          string     `json:"colors"`         // comma-joined, e.g. "U,W"
	ColorIdentity   string     `json:"color_identity"` // comma-joined
	TypeLine        string     `json:"type_line"`
	OracleText      string     `json:"oracle_text"`
	Power           *string    `json:"power,omitempty"`
	Toughness       *string    `json:"toughness,omitempty"`
	Loyalty         *string    `json:"loyalty,omitempty"`
	Keywords        StringList `json:"keywords"`
	Legalities      Legalities `json:"legalities"`
	Subtypes        StringList `json:"subtypes"`
	Supertypes      StringList `json:"supertypes"`
	Types           StringList `json:"types"`
	Leadership      Leadership `json:"leadership"`
	EDHRecRank      *int       `json:"edhrec_rank,omitempty"`
	EDHRecSaltiness *float64   `json:"edhrec_saltiness,omitempty"`
	Layout          string     `json:"layout"`
}

// Printing is a specific set appearance of a Card. UUID is the stable
// identifier across catalog refreshes; ID is not.
type Printing struct {
	ID              int64      `json:"id"`
	UUID            string     `json:"uuid"`
	CardID          int64      `json:"card_id"`
	SetCode         string     `json:"set_code"`
	CollectorNumber string     `json:"collector_number"`
	Rarity          string     `json:"rarity"`
	Artist          string     `json:"artist"`
	ImageURL        string     `json:"image_url"`
	Finishes        StringList `json:"finishes"`
	PurchaseURLs    StringMap  `json:"purchase_urls"`
	Identifiers     StringMap  `json:"identifiers"`
	IsPromo         bool       `json:"is_promo"`
}

// Price is keyed by (PrintingUUID, Provider, PriceType).
type Price struct {
	PrintingUUID string    `json:"printing_uuid"`
	Provider     string    `json:"provider"`   // tcgplayer, cardkingdom, cardmarket, ...
	PriceType    string    `json:"price_type"` // normal, foil, etched
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ruling is an oracle ruling attached to a Card.
type Ruling struct {
	CardID int64  `json:"-"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

// RelatedCard links a Card to tokens or other faces it references.
type RelatedCard struct {
	CardID      int64  `json:"-"`
	RelatedName string `json:"related_name"`
	Relation    string `json:"relation"` // token, meld, spellbook, reverse
}

// ForeignData is a localized name/text for a Card.
type ForeignData struct {
	CardID   int64  `json:"-"`
	Language string `json:"language"`
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
}

// PrintingView is a printing joined to its card and set, with the best known
// market price. Used by listings that need everything in one row.
type PrintingView struct {
	Printing
	CardName    string  `json:"card_name"`
	TypeLine    string  `json:"type_line"`
	Colors      string  `json:"colors"`
	ManaCost    string  `json:"mana_cost"`
	CMC         float64 `json:"cmc"`
	SetName     string  `json:"set_name"`
	ReleaseDate string  `json:"release_date"`
	SetType     string  `json:"set_type"`
	Price       float64 `json:"price"`
}
