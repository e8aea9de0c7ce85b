package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// CardFilter narrows a card browse query.
type CardFilter struct {
	Name      string   // substring, case-insensitive
	Colors    []string // every colour must be in the colour identity; "C" means colourless
	Type      string   // type line substring
	SetCodes  []string // card has a printing in any of these sets
	Subtypes  []string // card has all of these subtypes
	MinCMC    *float64
	MaxCMC    *float64
	Ownership string // "owned", "unowned" or ""
	UserID    int64  // required for Ownership and the Owned flag
	Sort      string // name, cmc, edhrec, release
	Desc      bool
	Page      Page
}

// CardListItem is a browse row.
type CardListItem struct {
	models.Card
	ImageURL string `json:"image_url"`
	Owned    bool   `json:"owned"`
}

// CardRef is the minimal identity of a card used by search.
type CardRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TypeLine string `json:"type_line"`
	ManaCost string `json:"mana_cost"`
}

// PrintingDetail is a printing with all of its prices and the caller's
// owned quantity.
type PrintingDetail struct {
	models.PrintingView
	Prices        []*models.Price `json:"prices"`
	OwnedQuantity int             `json:"owned_quantity"`
}

// CardRepository reads the card catalog.
type CardRepository interface {
	// GetByID returns nil when the card does not exist.
	GetByID(ctx context.Context, id int64) (*models.Card, error)

	// GetByName matches the full name or the front face of a multi-face card.
	GetByName(ctx context.Context, name string) (*models.Card, error)

	// Browse returns one page of cards matching the filter and the total count.
	Browse(ctx context.Context, filter CardFilter) ([]*CardListItem, int, error)

	// SearchNames returns cards whose name contains the substring.
	SearchNames(ctx context.Context, substring string, limit int) ([]*CardRef, error)

	// NamesWithPrefix returns cards whose name starts with prefix.
	NamesWithPrefix(ctx context.Context, prefix string, limit int) ([]*CardRef, error)

	// ListPrintings returns every printing of a card, newest first.
	ListPrintings(ctx context.Context, cardID, userID int64) ([]*PrintingDetail, error)

	// GetPrinting returns nil when the printing does not exist.
	GetPrinting(ctx context.Context, id int64) (*models.PrintingView, error)

	// GetPrintingByUUID returns nil when no printing carries the UUID.
	GetPrintingByUUID(ctx context.Context, uuid string) (*models.Printing, error)

	// FindPrintingInSet returns the printing of a card in a set. An empty
	// collector number picks the lowest one.
	FindPrintingInSet(ctx context.Context, cardID int64, setCode, collectorNumber string) (*models.Printing, error)

	// DefaultPrinting is the most recent paper, non-promo printing of a card.
	DefaultPrinting(ctx context.Context, cardID int64) (*models.Printing, error)

	// PrintingsForCards returns all printings of the given cards keyed by card id.
	PrintingsForCards(ctx context.Context, cardIDs []int64) (map[int64][]*models.PrintingView, error)

	// SearchPrintings returns printings whose card name contains the query.
	SearchPrintings(ctx context.Context, query string, limit int) ([]*models.PrintingView, error)

	// ListSets returns every set keyed by code.
	ListSets(ctx context.Context) (map[string]*models.Set, error)

	// Rulings returns a card's rulings, oldest first.
	Rulings(ctx context.Context, cardID int64) ([]*models.Ruling, error)

	// RelatedCards returns tokens and other cards the card references.
	RelatedCards(ctx context.Context, cardID int64) ([]*models.RelatedCard, error)

	// ForeignData returns localized names of a card.
	ForeignData(ctx context.Context, cardID int64) ([]*models.ForeignData, error)
}

type cardRepository struct {
	db DBTX
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db DBTX) CardRepository {
	return &cardRepository{db: db}
}

const cardColumns = `c.id, c.name, c.mana_cost, c.cmc, c.colors, c.color_identity, c.type_line,
	c.oracle_text, c.power, c.toughness, c.loyalty, c.keywords, c.legalities, c.subtypes,
	c.supertypes, c.types, c.leadership, c.edhrec_rank, c.edhrec_saltiness, c.layout`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row rowScanner, extra ...interface{}) (*models.Card, error) {
	card := &models.Card{}
	var (
		power, toughness, loyalty sql.NullString
		rank                      sql.NullInt64
		saltiness                 sql.NullFloat64
	)
	dest := []interface{}{
		&card.ID, &card.Name, &card.ManaCost, &card.CMC, &card.Colors, &card.ColorIdentity,
		&card.TypeLine, &card.OracleText, &power, &toughness, &loyalty, &card.Keywords,
		&card.Legalities, &card.Subtypes, &card.Supertypes, &card.Types, &card.Leadership,
		&rank, &saltiness, &card.Layout,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if power.Valid {
		card.Power = &power.String
	}
	if toughness.Valid {
		card.Toughness = &toughness.String
	}
	if loyalty.Valid {
		card.Loyalty = &loyalty.String
	}
	if rank.Valid {
		v := int(rank.Int64)
		card.EDHRecRank = &v
	}
	if saltiness.Valid {
		card.EDHRecSaltiness = &saltiness.Float64
	}
	return card, nil
}

// GetByID returns a card by id.
func (r *cardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c WHERE c.id = ?`

	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card by id: %w", err)
	}
	return card, nil
}

// GetByName returns a card by exact name, falling back to a front-face match.
func (r *cardRepository) GetByName(ctx context.Context, name string) (*models.Card, error) {
	name = strings.TrimSpace(name)
	query := `
		SELECT ` + cardColumns + ` FROM cards c
		WHERE c.name = ? COLLATE NOCASE
		   OR c.name LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN c.name = ? COLLATE NOCASE THEN 0 ELSE 1 END, c.name
		LIMIT 1
	`
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(name)

	card, err := scanCard(r.db.QueryRowContext(ctx, query, name, escaped+" // %", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card by name: %w", err)
	}
	return card, nil
}

// Browse returns a filtered, sorted page of cards.
func (r *cardRepository) Browse(ctx context.Context, filter CardFilter) ([]*CardListItem, int, error) {
	filter.Page = filter.Page.Normalize(50, 100)

	var (
		where []string
		args  []interface{}
	)
	if filter.Name != "" {
		where = append(where, `c.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Name))
	}
	for _, color := range filter.Colors {
		color = strings.ToUpper(strings.TrimSpace(color))
		if color == "" {
			continue
		}
		if color == "C" {
			where = append(where, `c.color_identity = ''`)
			continue
		}
		where = append(where, `(',' || c.color_identity || ',') LIKE ?`)
		args = append(args, "%,"+color+",%")
	}
	if filter.Type != "" {
		where = append(where, `c.type_line LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Type))
	}
	if len(filter.SetCodes) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM printings sp WHERE sp.card_id = c.id AND sp.set_code IN (`+
			placeholders(len(filter.SetCodes))+`))`)
		for _, code := range filter.SetCodes {
			args = append(args, strings.ToUpper(code))
		}
	}
	for _, subtype := range filter.Subtypes {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(c.subtypes) st WHERE st.value = ? COLLATE NOCASE)`)
		args = append(args, subtype)
	}
	if filter.MinCMC != nil {
		where = append(where, `c.cmc >= ?`)
		args = append(args, *filter.MinCMC)
	}
	if filter.MaxCMC != nil {
		where = append(where, `c.cmc <= ?`)
		args = append(args, *filter.MaxCMC)
	}

	ownedExpr := `EXISTS (SELECT 1 FROM owned_printings op JOIN printings opp ON opp.id = op.printing_id
		WHERE op.user_id = ? AND opp.card_id = c.id)`
	switch filter.Ownership {
	case "owned":
		where = append(where, ownedExpr)
		args = append(args, filter.UserID)
	case "unowned":
		where = append(where, "NOT "+ownedExpr)
		args = append(args, filter.UserID)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards c `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	var orderBy string
	switch filter.Sort {
	case "cmc":
		orderBy = "c.cmc " + direction + ", c.name ASC"
	case "edhrec":
		orderBy = "c.edhrec_rank IS NULL, c.edhrec_rank " + direction + ", c.name ASC"
	case "release":
		orderBy = `(SELECT MAX(s.release_date) FROM printings rp JOIN sets s ON s.code = rp.set_code
			WHERE rp.card_id = c.id) ` + direction + ", c.name ASC"
	default:
		orderBy = "c.name " + direction
	}

	query := `
		SELECT ` + cardColumns + `,
			COALESCE((SELECT ip.image_url FROM printings ip JOIN sets iss ON iss.code = ip.set_code
				WHERE ip.card_id = c.id ORDER BY ip.is_promo, iss.release_date DESC LIMIT 1), ''),
			` + ownedExpr + `
		FROM cards c
		` + whereSQL + `
		ORDER BY ` + orderBy + `
		LIMIT ? OFFSET ?
	`
	queryArgs := append([]interface{}{filter.UserID}, args...)
	queryArgs = append(queryArgs, filter.Page.PageSize, filter.Page.Offset())

	rows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to browse cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := []*CardListItem{}
	for rows.Next() {
		item := &CardListItem{}
		card, err := scanCard(rows, &item.ImageURL, &item.Owned)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan card: %w", err)
		}
		item.Card = *card
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating cards: %w", err)
	}

	return items, total, nil
}

// SearchNames returns up to limit cards whose name contains substring.
func (r *cardRepository) SearchNames(ctx context.Context, substring string, limit int) ([]*CardRef, error) {
	return r.queryRefs(ctx, `c.name LIKE ? ESCAPE '\'`, likePattern(substring), limit)
}

// NamesWithPrefix returns up to limit cards whose name starts with prefix.
func (r *cardRepository) NamesWithPrefix(ctx context.Context, prefix string, limit int) ([]*CardRef, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return r.queryRefs(ctx, `c.name LIKE ? ESCAPE '\'`, escaped+"%", limit)
}

func (r *cardRepository) queryRefs(ctx context.Context, cond string, arg interface{}, limit int) ([]*CardRef, error) {
	query := `SELECT c.id, c.name, c.type_line, c.mana_cost FROM cards c WHERE ` + cond + ` ORDER BY c.name LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search card names: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	refs := []*CardRef{}
	for rows.Next() {
		ref := &CardRef{}
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.TypeLine, &ref.ManaCost); err != nil {
			return nil, fmt.Errorf("failed to scan card name: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card names: %w", err)
	}
	return refs, nil
}

const printingViewColumns = `p.id, p.uuid, p.card_id, p.set_code, p.collector_number, p.rarity, p.artist,
	p.image_url, p.finishes, p.purchase_urls, p.identifiers, p.is_promo,
	c.name, c.type_line, c.colors, c.mana_cost, c.cmc,
	s.name, s.release_date, s.set_type`

func printingViewSelect() string {
	return `SELECT ` + printingViewColumns + `, ` + bestPriceSQL("p.uuid") + `
		FROM printings p
		JOIN cards c ON c.id = p.card_id
		JOIN sets s ON s.code = p.set_code`
}

func scanPrintingView(row rowScanner, extra ...interface{}) (*models.PrintingView, error) {
	v := &models.PrintingView{}
	dest := []interface{}{
		&v.ID, &v.UUID, &v.CardID, &v.SetCode, &v.CollectorNumber, &v.Rarity, &v.Artist,
		&v.ImageURL, &v.Finishes, &v.PurchaseURLs, &v.Identifiers, &v.IsPromo,
		&v.CardName, &v.TypeLine, &v.Colors, &v.ManaCost, &v.CMC,
		&v.SetName, &v.ReleaseDate, &v.SetType, &v.Price,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return v, nil
}

// ListPrintings returns all printings of a card with prices and ownership.
func (r *cardRepository) ListPrintings(ctx context.Context, cardID, userID int64) ([]*PrintingDetail, error) {
	query := `SELECT ` + printingViewColumns + `, ` + bestPriceSQL("p.uuid") + `,
			COALESCE((SELECT op.quantity FROM owned_printings op WHERE op.user_id = ? AND op.printing_id = p.id), 0)
		FROM printings p
		JOIN cards c ON c.id = p.card_id
		JOIN sets s ON s.code = p.set_code
		WHERE p.card_id = ?
		ORDER BY s.release_date DESC, p.set_code, p.collector_number`

	rows, err := r.db.QueryContext(ctx, query, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list printings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	details := []*PrintingDetail{}
	byUUID := make(map[string]*PrintingDetail)
	for rows.Next() {
		d := &PrintingDetail{Prices: []*models.Price{}}
		view, err := scanPrintingView(rows, &d.OwnedQuantity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printing: %w", err)
		}
		d.PrintingView = *view
		details = append(details, d)
		byUUID[d.UUID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating printings: %w", err)
	}

	priceRows, err := r.db.QueryContext(ctx, `
		SELECT pr.printing_uuid, pr.provider, pr.price_type, pr.price, pr.currency, pr.updated_at
		FROM prices pr
		JOIN printings p ON p.uuid = pr.printing_uuid
		WHERE p.card_id = ?
		ORDER BY pr.provider, pr.price_type`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer func() {
		_ = priceRows.Close()
	}()

	for priceRows.Next() {
		price := &models.Price{}
		if err := priceRows.Scan(&price.PrintingUUID, &price.Provider, &price.PriceType,
			&price.Price, &price.Currency, &price.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if d, ok := byUUID[price.PrintingUUID]; ok {
			d.Prices = append(d.Prices, price)
		}
	}
	if err := priceRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return details, nil
}

// GetPrinting returns a printing view by id.
func (r *cardRepository) GetPrinting(ctx context.Context, id int64) (*models.PrintingView, error) {
	view, err := scanPrintingView(r.db.QueryRowContext(ctx, printingViewSelect()+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printing: %w", err)
	}
	return view, nil
}

const printingColumns = `p.id, p.uuid, p.card_id, p.set_code, p.collector_number, p.rarity, p.artist,
	p.image_url, p.finishes, p.purchase_urls, p.identifiers, p.is_promo`

func scanPrinting(row rowScanner) (*models.Printing, error) {
	p := &models.Printing{}
	err := row.Scan(&p.ID, &p.UUID, &p.CardID, &p.SetCode, &p.CollectorNumber, &p.Rarity, &p.Artist,
		&p.ImageURL, &p.Finishes, &p.PurchaseURLs, &p.Identifiers, &p.IsPromo)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *cardRepository) getPrinting(ctx context.Context, op string, query string, args ...interface{}) (*models.Printing, error) {
	p, err := scanPrinting(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return p, nil
}

// GetPrintingByUUID returns a printing by its stable UUID.
func (r *cardRepository) GetPrintingByUUID(ctx context.Context, uuid string) (*models.Printing, error) {
	return r.getPrinting(ctx, "get printing by uuid",
		`SELECT `+printingColumns+` FROM printings p WHERE p.uuid = ?`, uuid)
}

// FindPrintingInSet returns a card's printing in a given set.
func (r *cardRepository) FindPrintingInSet(ctx context.Context, cardID int64, setCode, collectorNumber string) (*models.Printing, error) {
	if collectorNumber != "" {
		return r.getPrinting(ctx, "find printing in set", `
			SELECT `+printingColumns+` FROM printings p
			WHERE p.card_id = ? AND p.set_code = ? COLLATE NOCASE AND p.collector_number = ? COLLATE NOCASE
			LIMIT 1`, cardID, setCode, collectorNumber)
	}
	return r.getPrinting(ctx, "find printing in set", `
		SELECT `+printingColumns+` FROM printings p
		WHERE p.card_id = ? AND p.set_code = ? COLLATE NOCASE
		ORDER BY p.is_promo, CAST(p.collector_number AS INTEGER), p.collector_number
		LIMIT 1`, cardID, setCode)
}

// DefaultPrinting prefers paper, non-promo, most recent printings.
func (r *cardRepository) DefaultPrinting(ctx context.Context, cardID int64) (*models.Printing, error) {
	return r.getPrinting(ctx, "get default printing", `
		SELECT `+printingColumns+` FROM printings p
		JOIN sets s ON s.code = p.set_code
		WHERE p.card_id = ?
		ORDER BY s.is_online_only, p.is_promo, s.release_date DESC,
			CAST(p.collector_number AS INTEGER), p.collector_number
		LIMIT 1`, cardID)
}

// PrintingsForCards loads every printing of the given cards.
func (r *cardRepository) PrintingsForCards(ctx context.Context, cardIDs []int64) (map[int64][]*models.PrintingView, error) {
	result := make(map[int64][]*models.PrintingView, len(cardIDs))
	if len(cardIDs) == 0 {
		return result, nil
	}

	args := make([]interface{}, len(cardIDs))
	for i, id := range cardIDs {
		args[i] = id
	}
	query := printingViewSelect() + ` WHERE p.card_id IN (` + placeholders(len(cardIDs)) + `)
		ORDER BY p.card_id, s.release_date DESC, p.set_code, p.collector_number`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load printings for cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		view, err := scanPrintingView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printing: %w", err)
		}
		result[view.CardID] = append(result[view.CardID], view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating printings: %w", err)
	}
	return result, nil
}

// SearchPrintings finds printings by card name substring.
func (r *cardRepository) SearchPrintings(ctx context.Context, query string, limit int) ([]*models.PrintingView, error) {
	sqlQuery := printingViewSelect() + ` WHERE c.name LIKE ? ESCAPE '\'
		ORDER BY c.name, s.release_date DESC, p.collector_number
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, sqlQuery, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search printings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	views := []*models.PrintingView{}
	for rows.Next() {
		view, err := scanPrintingView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printing: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating printings: %w", err)
	}
	return views, nil
}

// ListSets returns all sets keyed by code.
func (r *cardRepository) ListSets(ctx context.Context) (map[string]*models.Set, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name, release_date, set_type, base_set_size, total_set_size, is_online_only
		FROM sets`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	sets := make(map[string]*models.Set)
	for rows.Next() {
		s := &models.Set{}
		if err := rows.Scan(&s.Code, &s.Name, &s.ReleaseDate, &s.SetType,
			&s.BaseSetSize, &s.TotalSetSize, &s.IsOnlineOnly); err != nil {
			return nil, fmt.Errorf("failed to scan set: %w", err)
		}
		sets[s.Code] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sets: %w", err)
	}
	return sets, nil
}

// Rulings returns the rulings of a card.
func (r *cardRepository) Rulings(ctx context.Context, cardID int64) ([]*models.Ruling, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT card_id, date, text FROM rulings WHERE card_id = ? ORDER BY date, id`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rulings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	rulings := []*models.Ruling{}
	for rows.Next() {
		ruling := &models.Ruling{}
		if err := rows.Scan(&ruling.CardID, &ruling.Date, &ruling.Text); err != nil {
			return nil, fmt.Errorf("failed to scan ruling: %w", err)
		}
		rulings = append(rulings, ruling)
	}
	return rulings, rows.Err()
}

// RelatedCards returns the cards related to a card.
func (r *cardRepository) RelatedCards(ctx context.Context, cardID int64) ([]*models.RelatedCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT card_id, related_name, relation FROM related_cards WHERE card_id = ? ORDER BY relation, related_name`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list related cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	related := []*models.RelatedCard{}
	for rows.Next() {
		rc := &models.RelatedCard{}
		if err := rows.Scan(&rc.CardID, &rc.RelatedName, &rc.Relation); err != nil {
			return nil, fmt.Errorf("failed to scan related card: %w", err)
		}
		related = append(related, rc)
	}
	return related, rows.Err()
}

// ForeignData returns the localized names of a card.
func (r *cardRepository) ForeignData(ctx context.Context, cardID int64) ([]*models.ForeignData, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT card_id, language, name, text FROM foreign_data WHERE card_id = ? ORDER BY language`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign data: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := []*models.ForeignData{}
	for rows.Next() {
		fd := &models.ForeignData{}
		if err := rows.Scan(&fd.CardID, &fd.Language, &fd.Name, &fd.Text); err != nil {
			return nil, fmt.Errorf("failed to scan foreign data: %w", err)
		}
		out = append(out, fd)
	}
	return out, rows.Err()
}
