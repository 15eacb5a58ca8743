package wishlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"wishwatch-backend/lib/chrono"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/services/wishlist/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/wishlist")

// ErrUnknownIdentifier means the identifier was well-formed but the
// storefront has nothing behind it.
var ErrUnknownIdentifier = fmt.Errorf("the store has nothing under this id")

// Extractor produces a ProductRecord for an identifier. Implemented by
// psnstore.Client, replaced with a fake in tests.
type Extractor interface {
	Extract(ctx context.Context, id psnstore.Identifier, locale string) (psnstore.ProductRecord, error)
}

type Service struct {
	db     *sql.DB
	qry    *db.Queries
	store  Extractor
	clock  chrono.API
	locale string
}

func NewService(database *sql.DB, store Extractor, clock chrono.API, locale string) Service {
	return Service{
		db:     database,
		qry:    db.New(database),
		store:  store,
		clock:  clock,
		locale: locale,
	}
}

func (s Service) today() string {
	return chrono.Day(s.clock.Now())
}

func (s Service) lookupOwn(ctx context.Context, qry *db.Queries, id psnstore.Identifier) (db.CatalogEntry, error) {
	switch id.Kind {
	case psnstore.KindConcept:
		return qry.GetCatalogEntryByConceptId(ctx, id.Value)
	default:
		return qry.GetCatalogEntryByProductId(ctx, id.Value)
	}
}

// the storefront decorates localized names with marketing suffixes,
// the shorter of two extracted names for the same title is the cleaner one
func shorterName(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if len(b) < len(a) {
		return b
	}
	return a
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// the driver reports a lost lock upgrade as SQLITE_BUSY before the
// uniqueness check ever runs, so a busy write is also a lost race
func isLocked(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY") ||
		strings.Contains(err.Error(), "database is locked")
}

// Resolve maps an identifier onto exactly one catalog entry, creating
// it from a fresh extraction when nothing is catalogued yet. The same
// logical title reached through its concept id and through one of its
// product ids always lands on the same row.
func (s Service) Resolve(ctx context.Context, id psnstore.Identifier) (db.CatalogEntry, bool, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", id.Kind.String()),
		attribute.String("id", id.Value),
	)

	entry, err := s.lookupOwn(ctx, s.qry, id)
	if err == nil {
		return entry, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}

	// the fetch happens before the transaction opens, no lock is held
	// across the network call
	record, err := s.store.Extract(ctx, id, s.locale)
	if err != nil {
		if errors.Is(err, psnstore.ErrNotFound) {
			err = ErrUnknownIdentifier
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}

	entry, created, err := s.reconcile(ctx, id, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}
	span.SetAttributes(attribute.Bool("created", created))

	if created {
		err := s.RecordSnapshot(ctx, entry, s.locale, &record)
		if err != nil {
			slog.WarnContext(ctx, "failed to seed price snapshot",
				"catalog_id", entry.ID, "err", err)
		}
	}
	return entry, created, nil
}

// reconcile runs the lookup/merge/insert steps inside one transaction.
// A concurrent resolution of the same new title loses on the unique
// constraint and falls back to re-reading the winner's row.
func (s Service) reconcile(ctx context.Context, id psnstore.Identifier, record psnstore.ProductRecord) (db.CatalogEntry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if isLocked(err) {
		entry, rerr := s.reRead(ctx, id, record)
		return entry, false, rerr
	}
	if err != nil {
		return db.CatalogEntry{}, false, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	// re-check under the transaction, another caller may have resolved
	// this identifier while we were fetching the page
	entry, err := s.lookupOwn(ctx, txqry, id)
	if err == nil {
		return entry, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return db.CatalogEntry{}, false, err
	}

	// the record carries both ids no matter which namespace the user
	// supplied, so a concept-id lookup catches the entry when it was
	// first catalogued through the other namespace
	if record.ConceptId != "" {
		entry, err := txqry.GetCatalogEntryByConceptId(ctx, record.ConceptId)
		if err == nil {
			return s.mergeEntry(ctx, txqry, tx, entry, record)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return db.CatalogEntry{}, false, err
		}
	}
	if record.ProductId != "" && record.ProductId != id.Value {
		entry, err := txqry.GetCatalogEntryByProductId(ctx, record.ProductId)
		if err == nil {
			return s.mergeEntry(ctx, txqry, tx, entry, record)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return db.CatalogEntry{}, false, err
		}
	}

	entryId, err := txqry.CreateCatalogEntry(ctx, db.CreateCatalogEntryParams{
		ConceptID: nullString(record.ConceptId),
		ProductID: nullString(record.ProductId),
		Name:      record.Name,
		PosterUrl: record.PosterUrl,
	})
	if isUniqueViolation(err) || isLocked(err) {
		// lost the race, the winner's entry is authoritative
		tx.Rollback()
		entry, rerr := s.reRead(ctx, id, record)
		return entry, false, rerr
	}
	if err != nil {
		return db.CatalogEntry{}, false, err
	}

	err = tx.Commit()
	if err != nil {
		return db.CatalogEntry{}, false, err
	}
	entry, err = s.qry.GetCatalogEntryById(ctx, entryId)
	return entry, true, err
}

func (s Service) mergeEntry(ctx context.Context, txqry *db.Queries, tx *sql.Tx, entry db.CatalogEntry, record psnstore.ProductRecord) (db.CatalogEntry, bool, error) {
	merged := shorterName(entry.Name, record.Name)
	if merged != entry.Name {
		err := txqry.UpdateCatalogEntryName(ctx, db.UpdateCatalogEntryNameParams{
			ID:   entry.ID,
			Name: merged,
		})
		if err != nil {
			return db.CatalogEntry{}, false, err
		}
		entry.Name = merged
	}
	// an entry first catalogued through its concept id learns its
	// product id on the first product-side resolution
	if !entry.ProductID.Valid && record.ProductId != "" {
		err := txqry.SetCatalogEntryProductId(ctx, db.SetCatalogEntryProductIdParams{
			ID:        entry.ID,
			ProductID: nullString(record.ProductId),
		})
		if err != nil && !isUniqueViolation(err) {
			return db.CatalogEntry{}, false, err
		}
		if err == nil {
			entry.ProductID = nullString(record.ProductId)
		}
	}
	return entry, false, tx.Commit()
}

func (s Service) reRead(ctx context.Context, id psnstore.Identifier, record psnstore.ProductRecord) (db.CatalogEntry, error) {
	entry, err := s.lookupOwn(ctx, s.qry, id)
	if err == nil {
		return entry, nil
	}
	if record.ConceptId != "" {
		entry, err := s.qry.GetCatalogEntryByConceptId(ctx, record.ConceptId)
		if err == nil {
			return entry, nil
		}
	}
	return s.qry.GetCatalogEntryByProductId(ctx, record.ProductId)
}

// RecordSnapshot upserts one dated price point per edition. A nil
// record triggers a re-fetch through the extractor.
func (s Service) RecordSnapshot(ctx context.Context, entry db.CatalogEntry, locale string, record *psnstore.ProductRecord) error {
	ctx, span := tracer.Start(ctx, "RecordSnapshot")
	defer span.End()
	span.SetAttributes(attribute.Int64("catalog_id", entry.ID))

	if locale == "" {
		locale = s.locale
	}

	if record == nil {
		id, ok := entryIdentifier(entry)
		if !ok {
			return fmt.Errorf("catalog entry %d has no storefront id", entry.ID)
		}
		fetched, err := s.store.Extract(ctx, id, locale)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		record = &fetched
	}

	date := s.today()
	for _, edition := range record.Editions {
		salePrice := sql.NullFloat64{}
		if edition.SalePrice != nil {
			salePrice = sql.NullFloat64{Float64: *edition.SalePrice, Valid: true}
		}
		validUntil := sql.NullString{}
		if edition.ValidUntil != nil {
			validUntil = nullString(edition.ValidUntil.Format(time.RFC3339))
		}

		err := s.qry.UpsertPriceSnapshot(ctx, db.UpsertPriceSnapshotParams{
			CatalogID:     entry.ID,
			CheckDate:     date,
			Locale:        locale,
			Edition:       edition.Name,
			OriginalPrice: edition.OriginalPrice,
			SalePrice:     salePrice,
			ValidUntil:    validUntil,
			Currency:      edition.Currency,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

func entryIdentifier(entry db.CatalogEntry) (psnstore.Identifier, bool) {
	if entry.ConceptID.Valid {
		return psnstore.Identifier{Kind: psnstore.KindConcept, Value: entry.ConceptID.String}, true
	}
	if entry.ProductID.Valid {
		return psnstore.Identifier{Kind: psnstore.KindProduct, Value: entry.ProductID.String}, true
	}
	return psnstore.Identifier{}, false
}

// RefreshStale re-fetches prices for every catalog entry that has no
// snapshot for the current date. Per-entry failures are logged and
// skipped, the sweep reports how many entries it managed to refresh.
func (s Service) RefreshStale(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "RefreshStale")
	defer span.End()

	stale, err := s.qry.GetStaleCatalogEntries(ctx, s.today())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	refreshed := 0
	for _, entry := range stale {
		err := s.RecordSnapshot(ctx, entry, s.locale, nil)
		if err != nil {
			slog.WarnContext(ctx, "failed to refresh price",
				"catalog_id", entry.ID, "name", entry.Name, "err", err)
			continue
		}
		refreshed++
	}
	span.SetAttributes(
		attribute.Int("stale", len(stale)),
		attribute.Int("refreshed", refreshed),
	)
	return refreshed, nil
}
