package db

import "database/sql"

// CatalogEntry is one logical title. At most one row may exist per
// concept id and per product id; rows are never deleted because price
// history keeps referencing them.
type CatalogEntry struct {
	ID        int64
	ConceptID sql.NullString
	ProductID sql.NullString
	Name      string
	PosterUrl string
}

type Wish struct {
	ID        string
	UserID    string
	CatalogID int64
}

type PriceSnapshot struct {
	ID            int64
	CatalogID     int64
	CheckDate     string
	Locale        string
	Edition       string
	OriginalPrice float64
	SalePrice     sql.NullFloat64
	ValidUntil    sql.NullString
	Currency      string
}
