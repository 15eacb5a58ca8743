package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const catalogEntryColumns = `id, concept_id, product_id, name, poster_url`

func scanCatalogEntry(row *sql.Row) (CatalogEntry, error) {
	var e CatalogEntry
	err := row.Scan(&e.ID, &e.ConceptID, &e.ProductID, &e.Name, &e.PosterUrl)
	return e, err
}

func (q *Queries) GetCatalogEntryById(ctx context.Context, id int64) (CatalogEntry, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+catalogEntryColumns+` FROM catalog WHERE id = ?`, id)
	return scanCatalogEntry(row)
}

func (q *Queries) GetCatalogEntryByConceptId(ctx context.Context, conceptId string) (CatalogEntry, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+catalogEntryColumns+` FROM catalog WHERE concept_id = ?`, conceptId)
	return scanCatalogEntry(row)
}

func (q *Queries) GetCatalogEntryByProductId(ctx context.Context, productId string) (CatalogEntry, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+catalogEntryColumns+` FROM catalog WHERE product_id = ?`, productId)
	return scanCatalogEntry(row)
}

type CreateCatalogEntryParams struct {
	ConceptID sql.NullString
	ProductID sql.NullString
	Name      string
	PosterUrl string
}

func (q *Queries) CreateCatalogEntry(ctx context.Context, params CreateCatalogEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO catalog (concept_id, product_id, name, poster_url) VALUES (?, ?, ?, ?)`,
		params.ConceptID, params.ProductID, params.Name, params.PosterUrl)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type UpdateCatalogEntryNameParams struct {
	ID   int64
	Name string
}

func (q *Queries) UpdateCatalogEntryName(ctx context.Context, params UpdateCatalogEntryNameParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE catalog SET name = ? WHERE id = ?`, params.Name, params.ID)
	return err
}

type SetCatalogEntryProductIdParams struct {
	ID        int64
	ProductID sql.NullString
}

func (q *Queries) SetCatalogEntryProductId(ctx context.Context, params SetCatalogEntryProductIdParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE catalog SET product_id = ? WHERE id = ? AND product_id IS NULL`,
		params.ProductID, params.ID)
	return err
}

func (q *Queries) CreateUser(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id) VALUES (?)`, id)
	return err
}

type CreateWishParams struct {
	ID        string
	UserID    string
	CatalogID int64
}

// CreateWish inserts the wish if it does not exist yet and reports
// whether a row was actually created.
func (q *Queries) CreateWish(ctx context.Context, params CreateWishParams) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO wishes (id, user_id, catalog_id) VALUES (?, ?, ?)`,
		params.ID, params.UserID, params.CatalogID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type DeleteWishParams struct {
	UserID    string
	CatalogID int64
}

func (q *Queries) DeleteWish(ctx context.Context, params DeleteWishParams) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM wishes WHERE user_id = ? AND catalog_id = ?`,
		params.UserID, params.CatalogID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (q *Queries) GetWishlist(ctx context.Context, userId string) ([]CatalogEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.id, c.concept_id, c.product_id, c.name, c.poster_url
		 FROM wishes w JOIN catalog c ON c.id = w.catalog_id
		 WHERE w.user_id = ?
		 ORDER BY c.name`, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		err := rows.Scan(&e.ID, &e.ConceptID, &e.ProductID, &e.Name, &e.PosterUrl)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) GetWishers(ctx context.Context, catalogId int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT user_id FROM wishes WHERE catalog_id = ?`, catalogId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		err := rows.Scan(&user)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type UpsertPriceSnapshotParams struct {
	CatalogID     int64
	CheckDate     string
	Locale        string
	Edition       string
	OriginalPrice float64
	SalePrice     sql.NullFloat64
	ValidUntil    sql.NullString
	Currency      string
}

// UpsertPriceSnapshot records one dated price point. Re-recording the
// same (catalog, date, locale, edition) overwrites in place.
func (q *Queries) UpsertPriceSnapshot(ctx context.Context, params UpsertPriceSnapshotParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO price_snapshots
		   (catalog_id, check_date, locale, edition, original_price, sale_price, valid_until, currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (catalog_id, check_date, locale, edition) DO UPDATE SET
		   original_price = excluded.original_price,
		   sale_price = excluded.sale_price,
		   valid_until = excluded.valid_until,
		   currency = excluded.currency`,
		params.CatalogID, params.CheckDate, params.Locale, params.Edition,
		params.OriginalPrice, params.SalePrice, params.ValidUntil, params.Currency)
	return err
}

// GetStaleCatalogEntries returns entries whose newest snapshot is older
// than `today`, including entries that have no snapshot at all.
func (q *Queries) GetStaleCatalogEntries(ctx context.Context, today string) ([]CatalogEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.id, c.concept_id, c.product_id, c.name, c.poster_url
		 FROM catalog c
		 LEFT JOIN price_snapshots p ON p.catalog_id = c.id
		 GROUP BY c.id
		 HAVING MAX(p.check_date) IS NULL OR MAX(p.check_date) < ?
		 ORDER BY c.id`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		err := rows.Scan(&e.ID, &e.ConceptID, &e.ProductID, &e.Name, &e.PosterUrl)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type SaleSnapshotRow struct {
	Entry    CatalogEntry
	Snapshot PriceSnapshot
}

// GetSaleSnapshots returns all discounted snapshots recorded on
// `checkDate` together with their catalog entries.
func (q *Queries) GetSaleSnapshots(ctx context.Context, checkDate string) ([]SaleSnapshotRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.id, c.concept_id, c.product_id, c.name, c.poster_url,
		        p.id, p.catalog_id, p.check_date, p.locale, p.edition,
		        p.original_price, p.sale_price, p.valid_until, p.currency
		 FROM price_snapshots p
		 JOIN catalog c ON c.id = p.catalog_id
		 WHERE p.check_date = ? AND p.sale_price IS NOT NULL
		 ORDER BY c.name, p.edition`, checkDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SaleSnapshotRow
	for rows.Next() {
		var r SaleSnapshotRow
		err := rows.Scan(
			&r.Entry.ID, &r.Entry.ConceptID, &r.Entry.ProductID, &r.Entry.Name, &r.Entry.PosterUrl,
			&r.Snapshot.ID, &r.Snapshot.CatalogID, &r.Snapshot.CheckDate, &r.Snapshot.Locale,
			&r.Snapshot.Edition, &r.Snapshot.OriginalPrice, &r.Snapshot.SalePrice,
			&r.Snapshot.ValidUntil, &r.Snapshot.Currency)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetLatestSnapshots returns the snapshots from the most recent check
// date of one catalog entry, one row per (locale, edition).
func (q *Queries) GetLatestSnapshots(ctx context.Context, catalogId int64) ([]PriceSnapshot, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, catalog_id, check_date, locale, edition, original_price, sale_price, valid_until, currency
		 FROM price_snapshots
		 WHERE catalog_id = ?
		   AND check_date = (SELECT MAX(check_date) FROM price_snapshots WHERE catalog_id = ?)
		 ORDER BY locale, edition`, catalogId, catalogId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []PriceSnapshot
	for rows.Next() {
		var s PriceSnapshot
		err := rows.Scan(&s.ID, &s.CatalogID, &s.CheckDate, &s.Locale, &s.Edition,
			&s.OriginalPrice, &s.SalePrice, &s.ValidUntil, &s.Currency)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
