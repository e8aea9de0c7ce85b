// Package repository implements one repository per aggregate on top of
// database/sql. Every repository accepts a DBTX, so the same code runs against
// the pool or inside a transaction opened by storage.DB.WithTransaction.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// bestPriceSQL selects the preferred market price for a printing UUID column:
// normal finish first, then tcgplayer > cardkingdom > cardmarket > anything else.
func bestPriceSQL(uuidColumn string) string {
	return fmt.Sprintf(`COALESCE((
		SELECT pr.price FROM prices pr
		WHERE pr.printing_uuid = %s
		ORDER BY
			CASE pr.price_type WHEN 'normal' THEN 0 ELSE 1 END,
			CASE pr.provider
				WHEN 'tcgplayer' THEN 0
				WHEN 'cardkingdom' THEN 1
				WHEN 'cardmarket' THEN 2
				ELSE 3
			END,
			pr.provider, pr.price_type
		LIMIT 1
	), 0)`, uuidColumn)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// likePattern escapes LIKE wildcards in s and wraps it for substring search.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// Page bounds a listing query.
type Page struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to sane values; maxSize caps PageSize.
func (p Page) Normalize(defaultSize, maxSize int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	return p
}

// Offset is the row offset for the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}
