// Package storagetest seeds small, deterministic catalogs and accounts for
// tests in other packages.
package storagetest

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"
)

// Catalog indexes the seeded rows.
type Catalog struct {
	cards     map[string]int64
	printings map[string]int64
}

// Card returns the id of a seeded card by name.
func (c *Catalog) Card(name string) int64 {
	id, ok := c.cards[name]
	if !ok {
		panic(fmt.Sprintf("storagetest: unknown card %q", name))
	}
	return id
}

// Printing returns the id of a seeded printing by card name and set code.
func (c *Catalog) Printing(name, set string) int64 {
	id, ok := c.printings[name+"|"+set]
	if !ok {
		panic(fmt.Sprintf("storagetest: unknown printing %s [%s]", name, set))
	}
	return id
}

// UUID returns the stable UUID of a seeded printing.
func UUID(name, set string) string {
	slug := strings.ToLower(strings.NewReplacer(" // ", "-", " ", "-").Replace(name))
	return slug + "-" + strings.ToLower(set)
}

type seedSet struct {
	code, name, released, setType string
}

type seedCard struct {
	name, manaCost string
	cmc            float64
	colors         string
	typeLine       string
	legalities     string
	subtypes       string
	printings      []string
	rarity         string
}

var seedSets = []seedSet{
	{"LEA", "Limited Edition Alpha", "1993-08-05", "core"},
	{"M10", "Magic 2010", "2009-07-17", "core"},
	{"CMR", "Commander Legends", "2020-11-20", "draft_innovation"},
	{"C21", "Commander 2021", "2021-04-23", "commander"},
	{"SLD", "Secret Lair Drop", "2019-12-02", "box"},
	{"2XM", "Double Masters", "2020-08-07", "masters"},
}

var seedCards = []seedCard{
	{"Lightning Bolt", "{R}", 1, "R", "Instant",
		`{"modern":"Legal","legacy":"Legal","vintage":"Legal","standard":"Not Legal"}`, `[]`,
		[]string{"LEA", "M10", "2XM", "SLD"}, "common"},
	{"Counterspell", "{U}{U}", 2, "U", "Instant",
		`{"legacy":"Legal","vintage":"Legal","pauper":"Legal"}`, `[]`,
		[]string{"LEA", "CMR", "2XM"}, "uncommon"},
	{"Llanowar Elves", "{G}", 1, "G", "Creature — Elf Druid",
		`{"modern":"Legal","legacy":"Legal","vintage":"Legal","commander":"Legal"}`, `["Elf","Druid"]`,
		[]string{"LEA", "M10", "C21"}, "common"},
	{"Forest", "", 0, "", "Basic Land — Forest",
		`{"modern":"Legal","legacy":"Legal","vintage":"Legal","standard":"Legal"}`, `["Forest"]`,
		[]string{"LEA", "M10"}, "common"},
	{"Fire // Ice", "{1}{R} // {1}{U}", 4, "R,U", "Instant // Instant",
		`{"modern":"Legal","legacy":"Legal","vintage":"Legal"}`, `[]`,
		[]string{"M10", "CMR"}, "uncommon"},
	{"Black Lotus", "{0}", 0, "", "Artifact",
		`{"legacy":"Banned","vintage":"Restricted"}`, `[]`,
		[]string{"LEA"}, "rare"},
	{"Sol Ring", "{1}", 1, "", "Artifact",
		`{"commander":"Legal","vintage":"Restricted","legacy":"Banned"}`, `[]`,
		[]string{"CMR", "C21"}, "uncommon"},
}

// SeedCatalog inserts a fixed catalog of sets, cards, printings and prices.
func SeedCatalog(t testing.TB, db *sql.DB) *Catalog {
	t.Helper()

	cat := &Catalog{cards: map[string]int64{}, printings: map[string]int64{}}

	for _, s := range seedSets {
		mustExec(t, db, `INSERT INTO sets (code, name, release_date, set_type) VALUES (?, ?, ?, ?)`,
			s.code, s.name, s.released, s.setType)
	}

	for _, c := range seedCards {
		res, err := db.Exec(`
			INSERT INTO cards (name, mana_cost, cmc, colors, color_identity, type_line, legalities, subtypes, types)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, '[]')`,
			c.name, c.manaCost, c.cmc, c.colors, c.colors, c.typeLine, c.legalities, c.subtypes)
		if err != nil {
			t.Fatalf("storagetest: insert card %s: %v", c.name, err)
		}
		cardID, _ := res.LastInsertId()
		cat.cards[c.name] = cardID

		for i, set := range c.printings {
			res, err := db.Exec(`
				INSERT INTO printings (uuid, card_id, set_code, collector_number, rarity, finishes)
				VALUES (?, ?, ?, ?, ?, '["nonfoil","foil"]')`,
				UUID(c.name, set), cardID, set, fmt.Sprintf("%d", 100+i), c.rarity)
			if err != nil {
				t.Fatalf("storagetest: insert printing %s %s: %v", c.name, set, err)
			}
			printingID, _ := res.LastInsertId()
			cat.printings[c.name+"|"+set] = printingID
		}
	}

	now := time.Now().UTC()
	prices := []struct {
		name, set, provider, priceType string
		price                          float64
	}{
		{"Lightning Bolt", "M10", "tcgplayer", "normal", 2.50},
		{"Lightning Bolt", "M10", "cardkingdom", "normal", 2.99},
		{"Lightning Bolt", "M10", "tcgplayer", "foil", 9.00},
		{"Lightning Bolt", "2XM", "cardmarket", "normal", 1.75},
		{"Counterspell", "CMR", "tcgplayer", "normal", 1.00},
		{"Llanowar Elves", "M10", "cardkingdom", "normal", 0.50},
		{"Llanowar Elves", "C21", "tcgplayer", "foil", 3.00},
		{"Black Lotus", "LEA", "tcgplayer", "normal", 20000},
		{"Sol Ring", "C21", "tcgplayer", "normal", 1.25},
	}
	for _, p := range prices {
		mustExec(t, db, `
			INSERT INTO prices (printing_uuid, provider, price_type, price, currency, updated_at)
			VALUES (?, ?, ?, ?, 'USD', ?)`,
			UUID(p.name, p.set), p.provider, p.priceType, p.price, now)
	}

	return cat
}

// CreateUser inserts a user with a placeholder password hash and returns its id.
func CreateUser(t testing.TB, db *sql.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO users (username, email, password_hash, is_admin) VALUES (?, ?, 'x', 0)`,
		username, username+"@example.com")
	if err != nil {
		t.Fatalf("storagetest: create user %s: %v", username, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// CreateDeck inserts an empty deck and returns its id.
func CreateDeck(t testing.TB, db *sql.DB, userID int64, name string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO decks (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		t.Fatalf("storagetest: create deck %s: %v", name, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// AddDeckCard inserts a deck card row and returns its id.
func AddDeckCard(t testing.TB, db *sql.DB, deckID, printingID int64, quantity int, board string) int64 {
	t.Helper()
	isSideboard := board != "mainboard"
	res, err := db.Exec(`
		INSERT INTO deck_cards (deck_id, printing_id, quantity, is_sideboard, board_type)
		VALUES (?, ?, ?, ?, ?)`, deckID, printingID, quantity, isSideboard, board)
	if err != nil {
		t.Fatalf("storagetest: add deck card: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// Own sets an owned quantity.
func Own(t testing.TB, db *sql.DB, userID, printingID int64, quantity int) {
	t.Helper()
	mustExec(t, db, `INSERT INTO owned_printings (user_id, printing_id, quantity) VALUES (?, ?, ?)`,
		userID, printingID, quantity)
}

func mustExec(t testing.TB, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("storagetest: %v", err)
	}
}
