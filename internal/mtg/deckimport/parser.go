// Package deckimport parses decklist text exported by Arena, Moxfield,
// TCGPlayer and plain "4x Card Name" lists into card lines.
package deckimport

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// MaxQuantity caps a single line's quantity.
const MaxQuantity = 999

// ErrEmptyInput is returned when there is nothing to parse.
var ErrEmptyInput = errors.New("empty import string")

// ErrNoCards is returned when no line could be parsed.
var ErrNoCards = errors.New("no cards found in import")

// ParsedCard is one card line.
type ParsedCard struct {
	LineNumber      int              `json:"line"`
	Quantity        int              `json:"quantity"`
	Name            string           `json:"name"`
	SetCode         string           `json:"set_code,omitempty"`
	CollectorNumber string           `json:"collector_number,omitempty"`
	Foil            bool             `json:"foil,omitempty"`
	Etched          bool             `json:"etched,omitempty"`
	Board           models.BoardType `json:"board"`
	Commander       bool             `json:"commander,omitempty"`
}

// LineError reports a line that could not be parsed.
type LineError struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParsedDeck is the result of parsing a whole decklist.
type ParsedDeck struct {
	Name   string        `json:"name,omitempty"`
	Cards  []*ParsedCard `json:"cards"`
	Errors []*LineError  `json:"errors"`
}

// Count sums quantities on a board.
func (d *ParsedDeck) Count(board models.BoardType) int {
	total := 0
	for _, c := range d.Cards {
		if c.Board == board {
			total += c.Quantity
		}
	}
	return total
}

var (
	// "4 Name", "4x Name", "4X Name"
	leadingQtyRe = regexp.MustCompile(`^(\d+)\s*[xX]?\s+(.+)$`)
	// "Name x4"
	trailingQtyRe = regexp.MustCompile(`^(.+?)\s+[xX](\d+)$`)
	// "(SET) 123" or "[SET] 123" at the end of a line; the number is optional
	setRe = regexp.MustCompile(`\s*[(\[]([A-Za-z0-9]{2,6})[)\]](?:\s+([A-Za-z0-9★\-]+))?$`)
	// "*F*" foil, "*E*" etched
	finishRe = regexp.MustCompile(`\s+\*([FfEe])\*$`)
)

var sectionHeaders = map[string]models.BoardType{
	"deck":        models.BoardMain,
	"main":        models.BoardMain,
	"mainboard":   models.BoardMain,
	"main deck":   models.BoardMain,
	"commander":   models.BoardMain,
	"sideboard":   models.BoardSide,
	"companion":   models.BoardSide,
	"maybeboard":  models.BoardMaybe,
	"maybe":       models.BoardMaybe,
	"considering": models.BoardMaybe,
}

// ParseLine parses one card line without section context. A line without a
// quantity means one copy.
func ParseLine(line string) (*ParsedCard, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, errors.New("empty line")
	}

	card := &ParsedCard{Quantity: 1, Board: models.BoardMain}

	if m := finishRe.FindStringSubmatch(line); m != nil {
		if strings.EqualFold(m[1], "E") {
			card.Etched = true
		} else {
			card.Foil = true
		}
		line = strings.TrimSpace(line[:len(line)-len(m[0])])
	}

	if m := leadingQtyRe.FindStringSubmatch(line); m != nil {
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q", m[1])
		}
		card.Quantity = qty
		line = strings.TrimSpace(m[2])
	}

	if m := setRe.FindStringSubmatch(line); m != nil && len(m[0]) < len(line) {
		card.SetCode = strings.ToUpper(m[1])
		card.CollectorNumber = m[2]
		line = strings.TrimSpace(line[:len(line)-len(m[0])])
	}

	if m := trailingQtyRe.FindStringSubmatch(line); m != nil {
		qty, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q", m[2])
		}
		card.Quantity = qty
		line = strings.TrimSpace(m[1])
	}

	if card.Quantity <= 0 || card.Quantity > MaxQuantity {
		return nil, fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
	}
	if line == "" {
		return nil, errors.New("missing card name")
	}
	card.Name = normalizeName(line)
	return card, nil
}

// Moxfield and Arena write split cards with a single slash.
func normalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if strings.Contains(name, " / ") && !strings.Contains(name, " // ") {
		name = strings.ReplaceAll(name, " / ", " // ")
	}
	return name
}

// Parse parses a full decklist. Section headers switch boards; an "SB:"
// prefix puts a single line in the sideboard. In an Arena export (first line
// "Deck") a blank line after the mainboard starts the sideboard.
// Unparseable lines are collected in Errors and parsing continues.
func Parse(input string) (*ParsedDeck, error) {
	input = strings.TrimSpace(strings.ReplaceAll(input, "\r\n", "\n"))
	if input == "" {
		return nil, ErrEmptyInput
	}

	deck := &ParsedDeck{Cards: []*ParsedCard{}, Errors: []*LineError{}}
	board := models.BoardMain
	commander := false
	arena := false
	inAbout := false

	for i, raw := range strings.Split(input, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		if line == "" {
			if arena && board == models.BoardMain && len(deck.Cards) > 0 {
				board = models.BoardSide
				commander = false
			}
			inAbout = false
			continue
		}
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		header := strings.ToLower(strings.TrimSuffix(line, ":"))
		if header == "about" {
			inAbout = true
			continue
		}
		if inAbout {
			if strings.HasPrefix(strings.ToLower(line), "name ") {
				deck.Name = strings.TrimSpace(line[len("name "):])
			}
			continue
		}
		if b, ok := sectionHeaders[header]; ok {
			if header == "deck" && len(deck.Cards) == 0 {
				arena = true
			}
			board = b
			commander = header == "commander"
			continue
		}

		lineBoard := board
		if strings.HasPrefix(strings.ToUpper(line), "SB:") {
			lineBoard = models.BoardSide
			line = strings.TrimSpace(line[3:])
		}

		card, err := ParseLine(line)
		if err != nil {
			deck.Errors = append(deck.Errors, &LineError{Line: lineNo, Text: raw, Message: err.Error()})
			continue
		}
		card.LineNumber = lineNo
		card.Board = lineBoard
		card.Commander = commander && lineBoard == models.BoardMain
		deck.Cards = append(deck.Cards, card)
	}

	if len(deck.Cards) == 0 {
		return deck, ErrNoCards
	}
	return deck, nil
}
