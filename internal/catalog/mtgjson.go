package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// File names on the MTGJSON API.
const (
	AllPrintingsFile   = "AllPrintings.json.gz"
	AllPricesTodayFile = "AllPricesToday.json.gz"
)

const faceSeparator = " // "

type mtgjsonSet struct {
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	ReleaseDate  string        `json:"releaseDate"`
	Type         string        `json:"type"`
	BaseSetSize  int           `json:"baseSetSize"`
	TotalSetSize int           `json:"totalSetSize"`
	IsOnlineOnly bool          `json:"isOnlineOnly"`
	Cards        []mtgjsonCard `json:"cards"`
}

type mtgjsonCard struct {
	UUID             string              `json:"uuid"`
	Name             string              `json:"name"`
	FaceName         string              `json:"faceName"`
	Side             string              `json:"side"`
	ManaCost         string              `json:"manaCost"`
	ManaValue        float64             `json:"manaValue"`
	Colors           []string            `json:"colors"`
	ColorIdentity    []string            `json:"colorIdentity"`
	Type             string              `json:"type"`
	Text             string              `json:"text"`
	Power            *string             `json:"power"`
	Toughness        *string             `json:"toughness"`
	Loyalty          *string             `json:"loyalty"`
	Keywords         []string            `json:"keywords"`
	Legalities       map[string]string   `json:"legalities"`
	Subtypes         []string            `json:"subtypes"`
	Supertypes       []string            `json:"supertypes"`
	Types            []string            `json:"types"`
	LeadershipSkills *models.Leadership  `json:"leadershipSkills"`
	EDHRecRank       *int                `json:"edhrecRank"`
	EDHRecSaltiness  *float64            `json:"edhrecSaltiness"`
	Layout           string              `json:"layout"`
	Number           string              `json:"number"`
	Rarity           string              `json:"rarity"`
	Artist           string              `json:"artist"`
	Finishes         []string            `json:"finishes"`
	PurchaseURLs     map[string]string   `json:"purchaseUrls"`
	Identifiers      map[string]string   `json:"identifiers"`
	IsPromo          bool                `json:"isPromo"`
	Rulings          []mtgjsonRuling     `json:"rulings"`
	ForeignData      []mtgjsonForeign    `json:"foreignData"`
	RelatedCards     map[string][]string `json:"relatedCards"`
}

type mtgjsonRuling struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

type mtgjsonForeign struct {
	Language string `json:"language"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

// CardRecord is a card with the child rows that hang off it.
type CardRecord struct {
	Card        *models.Card
	Rulings     []*models.Ruling
	Related     []*models.RelatedCard
	ForeignData []*models.ForeignData
}

// PrintingRecord is a printing keyed to its card by name, since card ids do
// not exist until insert.
type PrintingRecord struct {
	Printing *models.Printing
	CardName string
}

// Catalog is a parsed AllPrintings file.
type Catalog struct {
	Sets      []*models.Set
	Cards     []*CardRecord
	Printings []*PrintingRecord
}

// ParseAllPrintings streams an AllPrintings document. Cards are deduplicated
// by name with the first face seen winning; back faces of a multi-face
// printing only contribute their type line to the card.
func ParseAllPrintings(r io.Reader) (*Catalog, error) {
	cat := &Catalog{}
	cards := make(map[string]*CardRecord)
	seenPrintings := make(map[string]bool)

	err := decodeDataObject(r, func(dec *json.Decoder, _ string) error {
		var set mtgjsonSet
		if err := dec.Decode(&set); err != nil {
			return fmt.Errorf("failed to decode set: %w", err)
		}
		cat.Sets = append(cat.Sets, &models.Set{
			Code:         strings.ToUpper(set.Code),
			Name:         set.Name,
			ReleaseDate:  set.ReleaseDate,
			SetType:      set.Type,
			BaseSetSize:  set.BaseSetSize,
			TotalSetSize: set.TotalSetSize,
			IsOnlineOnly: set.IsOnlineOnly,
		})

		for i := range set.Cards {
			c := &set.Cards[i]
			if c.Name == "" || c.UUID == "" {
				continue
			}
			record, known := cards[c.Name]
			if !known {
				record = newCardRecord(c)
				cards[c.Name] = record
				cat.Cards = append(cat.Cards, record)
			}

			if c.Side != "" && c.Side != "a" {
				mergeFace(record.Card, c)
				continue
			}
			if seenPrintings[c.UUID] {
				continue
			}
			seenPrintings[c.UUID] = true
			cat.Printings = append(cat.Printings, &PrintingRecord{
				CardName: c.Name,
				Printing: newPrinting(c, strings.ToUpper(set.Code)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(cat.Sets, func(i, j int) bool { return cat.Sets[i].Code < cat.Sets[j].Code })
	return cat, nil
}

func newCardRecord(c *mtgjsonCard) *CardRecord {
	card := &models.Card{
		Name:            c.Name,
		ManaCost:        c.ManaCost,
		CMC:             c.ManaValue,
		Colors:          models.JoinColors(c.Colors),
		ColorIdentity:   models.JoinColors(c.ColorIdentity),
		TypeLine:        c.Type,
		OracleText:      c.Text,
		Power:           c.Power,
		Toughness:       c.Toughness,
		Loyalty:         c.Loyalty,
		Keywords:        models.StringList(nonNil(c.Keywords)),
		Legalities:      models.Legalities{},
		Subtypes:        models.StringList(nonNil(c.Subtypes)),
		Supertypes:      models.StringList(nonNil(c.Supertypes)),
		Types:           models.StringList(nonNil(c.Types)),
		EDHRecRank:      c.EDHRecRank,
		EDHRecSaltiness: c.EDHRecSaltiness,
		Layout:          c.Layout,
	}
	for format, status := range c.Legalities {
		card.Legalities[strings.ToLower(format)] = status
	}
	if c.LeadershipSkills != nil {
		card.Leadership = *c.LeadershipSkills
	}
	if card.Layout == "" {
		card.Layout = "normal"
	}

	record := &CardRecord{Card: card}
	for _, r := range c.Rulings {
		record.Rulings = append(record.Rulings, &models.Ruling{Date: r.Date, Text: r.Text})
	}
	for _, f := range c.ForeignData {
		if f.Language == "" || f.Name == "" {
			continue
		}
		record.ForeignData = append(record.ForeignData, &models.ForeignData{Language: f.Language, Name: f.Name, Text: f.Text})
	}
	relations := make([]string, 0, len(c.RelatedCards))
	for relation := range c.RelatedCards {
		relations = append(relations, relation)
	}
	sort.Strings(relations)
	for _, relation := range relations {
		for _, name := range c.RelatedCards[relation] {
			record.Related = append(record.Related, &models.RelatedCard{RelatedName: name, Relation: relation})
		}
	}
	return record
}

// mergeFace appends a back face's type line to a multi-face card once. The
// mana cost stays the front face's so it agrees with the stored mana value.
func mergeFace(card *models.Card, face *mtgjsonCard) {
	if strings.Contains(card.TypeLine, faceSeparator) {
		return
	}
	if face.Type != "" {
		card.TypeLine += faceSeparator + face.Type
	}
}

func newPrinting(c *mtgjsonCard, setCode string) *models.Printing {
	p := &models.Printing{
		UUID:            c.UUID,
		SetCode:         setCode,
		CollectorNumber: c.Number,
		Rarity:          c.Rarity,
		Artist:          c.Artist,
		Finishes:        models.StringList(nonNil(c.Finishes)),
		PurchaseURLs:    models.StringMap(nonNilMap(c.PurchaseURLs)),
		Identifiers:     models.StringMap(nonNilMap(c.Identifiers)),
		IsPromo:         c.IsPromo,
	}
	if id := c.Identifiers["scryfallId"]; len(id) >= 2 {
		p.ImageURL = fmt.Sprintf("https://cards.scryfall.io/normal/front/%c/%c/%s.jpg", id[0], id[1], id)
	}
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// decodeDataObject walks the top-level document and calls fn once per key of
// the "data" object, leaving the decoder positioned at that key's value.
func decodeDataObject(r io.Reader, fn func(dec *json.Decoder, key string) error) error {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	foundData := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		if key != "data" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("failed to skip %q: %w", key, err)
			}
			continue
		}
		foundData = true
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		for dec.More() {
			entry, err := readKey(dec)
			if err != nil {
				return err
			}
			if err := fn(dec, entry); err != nil {
				return fmt.Errorf("%s: %w", entry, err)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if !foundData {
		return fmt.Errorf("document has no data object")
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected JSON token %v, want %v", tok, want)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("failed to read JSON: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("unexpected JSON token %v, want object key", tok)
	}
	return key, nil
}
