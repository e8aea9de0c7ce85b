package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// CatalogRepository writes the card catalog. It is used by the import
// pipeline inside a single transaction.
type CatalogRepository interface {
	// DeleteAll removes every set, card, printing and price. Child rows of
	// cards go with them.
	DeleteAll(ctx context.Context) error

	InsertSet(ctx context.Context, set *models.Set) error

	// InsertCard stores the card and sets card.ID.
	InsertCard(ctx context.Context, card *models.Card) error

	// InsertPrinting stores the printing and sets p.ID.
	InsertPrinting(ctx context.Context, p *models.Printing) error

	InsertRuling(ctx context.Context, ruling *models.Ruling) error
	InsertRelatedCard(ctx context.Context, rc *models.RelatedCard) error
	InsertForeignData(ctx context.Context, fd *models.ForeignData) error

	// UpsertPrice writes a price row. It returns false without writing when
	// no printing carries the price's UUID.
	UpsertPrice(ctx context.Context, price *models.Price) (bool, error)

	// PrintingIDsByUUID maps every printing UUID to its current row id.
	PrintingIDsByUUID(ctx context.Context) (map[string]int64, error)

	// PrintingRefs maps every printing id to its UUID and card name.
	PrintingRefs(ctx context.Context) (map[int64]PrintingRef, error)

	// Counts returns the number of sets, cards and printings.
	Counts(ctx context.Context) (sets, cards, printings int, err error)
}

// PrintingRef names a printing by its stable keys.
type PrintingRef struct {
	UUID     string
	CardID   int64
	CardName string
}

type catalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db DBTX) CatalogRepository {
	return &catalogRepository{db: db}
}

// DeleteAll wipes the catalog tables.
func (r *catalogRepository) DeleteAll(ctx context.Context) error {
	for _, table := range []string{"prices", "foreign_data", "related_cards", "rulings", "printings", "cards", "sets"} {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// InsertSet inserts or replaces a set.
func (r *catalogRepository) InsertSet(ctx context.Context, set *models.Set) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sets (code, name, release_date, set_type, base_set_size, total_set_size, is_online_only)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			release_date = excluded.release_date,
			set_type = excluded.set_type,
			base_set_size = excluded.base_set_size,
			total_set_size = excluded.total_set_size,
			is_online_only = excluded.is_online_only
	`, set.Code, set.Name, set.ReleaseDate, set.SetType, set.BaseSetSize, set.TotalSetSize, set.IsOnlineOnly)
	if err != nil {
		return fmt.Errorf("failed to insert set %s: %w", set.Code, err)
	}
	return nil
}

// InsertCard inserts a card.
func (r *catalogRepository) InsertCard(ctx context.Context, card *models.Card) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO cards (
			name, mana_cost, cmc, colors, color_identity, type_line, oracle_text,
			power, toughness, loyalty, keywords, legalities, subtypes, supertypes, types,
			leadership, edhrec_rank, edhrec_saltiness, layout
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.Name, card.ManaCost, card.CMC, card.Colors, card.ColorIdentity, card.TypeLine, card.OracleText,
		card.Power, card.Toughness, card.Loyalty, card.Keywords, card.Legalities, card.Subtypes,
		card.Supertypes, card.Types, card.Leadership, card.EDHRecRank, card.EDHRecSaltiness, card.Layout,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %q: %w", card.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get card id: %w", err)
	}
	card.ID = id
	return nil
}

// InsertPrinting inserts a printing.
func (r *catalogRepository) InsertPrinting(ctx context.Context, p *models.Printing) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO printings (
			uuid, card_id, set_code, collector_number, rarity, artist, image_url,
			finishes, purchase_urls, identifiers, is_promo
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.UUID, p.CardID, p.SetCode, p.CollectorNumber, p.Rarity, p.Artist, p.ImageURL,
		p.Finishes, p.PurchaseURLs, p.Identifiers, p.IsPromo,
	)
	if err != nil {
		return fmt.Errorf("failed to insert printing %s: %w", p.UUID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get printing id: %w", err)
	}
	p.ID = id
	return nil
}

// InsertRuling inserts a ruling.
func (r *catalogRepository) InsertRuling(ctx context.Context, ruling *models.Ruling) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rulings (card_id, date, text) VALUES (?, ?, ?)`,
		ruling.CardID, ruling.Date, ruling.Text)
	if err != nil {
		return fmt.Errorf("failed to insert ruling: %w", err)
	}
	return nil
}

// InsertRelatedCard inserts a related-card link.
func (r *catalogRepository) InsertRelatedCard(ctx context.Context, rc *models.RelatedCard) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO related_cards (card_id, related_name, relation) VALUES (?, ?, ?)`,
		rc.CardID, rc.RelatedName, rc.Relation)
	if err != nil {
		return fmt.Errorf("failed to insert related card: %w", err)
	}
	return nil
}

// InsertForeignData inserts a localized name.
func (r *catalogRepository) InsertForeignData(ctx context.Context, fd *models.ForeignData) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO foreign_data (card_id, language, name, text) VALUES (?, ?, ?, ?)`,
		fd.CardID, fd.Language, fd.Name, fd.Text)
	if err != nil {
		return fmt.Errorf("failed to insert foreign data: %w", err)
	}
	return nil
}

// UpsertPrice writes a price if its printing exists.
func (r *catalogRepository) UpsertPrice(ctx context.Context, price *models.Price) (bool, error) {
	updatedAt := price.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	currency := price.Currency
	if currency == "" {
		currency = "USD"
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO prices (printing_uuid, provider, price_type, price, currency, updated_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM printings WHERE uuid = ?)
		ON CONFLICT(printing_uuid, provider, price_type) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`, price.PrintingUUID, price.Provider, price.PriceType, price.Price, currency, updatedAt, price.PrintingUUID)
	if err != nil {
		return false, fmt.Errorf("failed to upsert price: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read price rows affected: %w", err)
	}
	return affected > 0, nil
}

// PrintingIDsByUUID loads the UUID to id index.
func (r *catalogRepository) PrintingIDsByUUID(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT uuid, id FROM printings`)
	if err != nil {
		return nil, fmt.Errorf("failed to index printings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	index := make(map[string]int64)
	for rows.Next() {
		var uuid string
		var id int64
		if err := rows.Scan(&uuid, &id); err != nil {
			return nil, fmt.Errorf("failed to scan printing index: %w", err)
		}
		index[uuid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating printing index: %w", err)
	}
	return index, nil
}

// PrintingRefs loads the id to UUID and card name index.
func (r *catalogRepository) PrintingRefs(ctx context.Context) (map[int64]PrintingRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.uuid, c.id, c.name
		FROM printings p
		JOIN cards c ON c.id = p.card_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load printing refs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	refs := make(map[int64]PrintingRef)
	for rows.Next() {
		var id int64
		var ref PrintingRef
		if err := rows.Scan(&id, &ref.UUID, &ref.CardID, &ref.CardName); err != nil {
			return nil, fmt.Errorf("failed to scan printing ref: %w", err)
		}
		refs[id] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating printing refs: %w", err)
	}
	return refs, nil
}

// Counts returns catalog table sizes.
func (r *catalogRepository) Counts(ctx context.Context) (sets, cards, printings int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM sets), (SELECT COUNT(*) FROM cards), (SELECT COUNT(*) FROM printings)
	`).Scan(&sets, &cards, &printings)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return sets, cards, printings, nil
}
