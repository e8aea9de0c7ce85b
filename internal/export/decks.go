// Package export renders decks as downloadable files. The text format is the
// one the deck importer reads, so an exported deck imports unchanged.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// Format represents the export format.
type Format string

const (
	// FormatText is a sectioned decklist: "4 Lightning Bolt (M10) 146".
	FormatText Format = "text"
	// FormatCSV is one row per deck card.
	FormatCSV Format = "csv"
	// FormatJSON is the deck with grouped boards.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "txt":
		return FormatText, nil
	case FormatText, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Extension is the file suffix for the format.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// ContentType is the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// File is a rendered export.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename derives a download name from the deck name.
func Filename(deck *models.Deck, format Format) string {
	base := strings.Trim(unsafeName.ReplaceAllString(deck.Name, "_"), "_")
	if base == "" {
		base = "deck_" + strconv.FormatInt(deck.ID, 10)
	}
	return base + "." + format.Extension()
}

// Deck renders deck in the given format.
func Deck(deck *models.Deck, cards []*models.DeckCardView, format Format) (*File, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatText:
		err = writeText(&buf, cards)
	case FormatCSV:
		err = writeCSV(&buf, deck, cards)
	case FormatJSON:
		err = writeJSON(&buf, deck, cards)
	default:
		err = fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return &File{
		Filename:    Filename(deck, format),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

type section struct {
	header string
	cards  []*models.DeckCardView
}

// sections groups cards as commander, mainboard, sideboard and maybeboard,
// each sorted by name.
func sections(cards []*models.DeckCardView) []section {
	out := []section{{header: "Commander"}, {header: "Deck"}, {header: "Sideboard"}, {header: "Maybeboard"}}
	for _, c := range cards {
		switch {
		case c.IsCommander && c.BoardType == models.BoardMain:
			out[0].cards = append(out[0].cards, c)
		case c.BoardType == models.BoardSide:
			out[2].cards = append(out[2].cards, c)
		case c.BoardType == models.BoardMaybe:
			out[3].cards = append(out[3].cards, c)
		default:
			out[1].cards = append(out[1].cards, c)
		}
	}
	for _, s := range out {
		sort.SliceStable(s.cards, func(i, j int) bool {
			if s.cards[i].CardName != s.cards[j].CardName {
				return s.cards[i].CardName < s.cards[j].CardName
			}
			return s.cards[i].SetCode < s.cards[j].SetCode
		})
	}
	return out
}

func writeText(w io.Writer, cards []*models.DeckCardView) error {
	first := true
	for _, s := range sections(cards) {
		if len(s.cards) == 0 {
			continue
		}
		if !first {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		first = false
		if _, err := fmt.Fprintln(w, s.header); err != nil {
			return err
		}
		for _, c := range s.cards {
			line := fmt.Sprintf("%d %s", c.Quantity, c.CardName)
			if c.SetCode != "" {
				line += fmt.Sprintf(" (%s)", c.SetCode)
				if c.CollectorNumber != "" {
					line += " " + c.CollectorNumber
				}
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCSV(w io.Writer, deck *models.Deck, cards []*models.DeckCardView) error {
	cw := csv.NewWriter(w)
	header := []string{"deck_name", "board", "commander", "quantity", "card_name", "set_code", "collector_number", "rarity", "price"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range sections(cards) {
		for _, c := range s.cards {
			row := []string{
				deck.Name,
				string(c.BoardType),
				strconv.FormatBool(c.IsCommander),
				strconv.Itoa(c.Quantity),
				c.CardName,
				c.SetCode,
				c.CollectorNumber,
				c.Rarity,
				strconv.FormatFloat(c.Price, 'f', 2, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// DeckJSON is the JSON export document.
type DeckJSON struct {
	Name        string         `json:"name"`
	Format      string         `json:"format,omitempty"`
	Description string         `json:"description,omitempty"`
	Commander   []DeckCardJSON `json:"commander,omitempty"`
	Mainboard   []DeckCardJSON `json:"mainboard"`
	Sideboard   []DeckCardJSON `json:"sideboard"`
	Maybeboard  []DeckCardJSON `json:"maybeboard"`
	TotalCards  int            `json:"total_cards"`
}

// DeckCardJSON is one card line in DeckJSON.
type DeckCardJSON struct {
	Quantity        int    `json:"quantity"`
	Name            string `json:"name"`
	SetCode         string `json:"set_code"`
	CollectorNumber string `json:"collector_number,omitempty"`
	PrintingUUID    string `json:"printing_uuid"`
}

func writeJSON(w io.Writer, deck *models.Deck, cards []*models.DeckCardView) error {
	doc := DeckJSON{
		Name:       deck.Name,
		Format:     deck.FormatName(),
		Mainboard:  []DeckCardJSON{},
		Sideboard:  []DeckCardJSON{},
		Maybeboard: []DeckCardJSON{},
	}
	if deck.Description != nil {
		doc.Description = *deck.Description
	}
	groups := sections(cards)
	targets := []*[]DeckCardJSON{&doc.Commander, &doc.Mainboard, &doc.Sideboard, &doc.Maybeboard}
	for i, s := range groups {
		for _, c := range s.cards {
			*targets[i] = append(*targets[i], DeckCardJSON{
				Quantity:        c.Quantity,
				Name:            c.CardName,
				SetCode:         c.SetCode,
				CollectorNumber: c.CollectorNumber,
				PrintingUUID:    c.PrintingUUID,
			})
			doc.TotalCards += c.Quantity
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
