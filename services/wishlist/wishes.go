package wishlist

import (
	"context"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/services/wishlist/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AddWish resolves the raw identifier and attaches the catalog entry
// to the user's wishlist. wasNew is false when the wish already existed.
func (s Service) AddWish(ctx context.Context, userId, raw string) (db.CatalogEntry, bool, error) {
	ctx, span := tracer.Start(ctx, "AddWish")
	defer span.End()
	span.SetAttributes(attribute.String("user", userId))

	id, err := psnstore.Normalize(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}

	entry, _, err := s.Resolve(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}

	err = s.qry.CreateUser(ctx, userId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}
	wasNew, err := s.qry.CreateWish(ctx, db.CreateWishParams{
		ID:        uuid.NewString(),
		UserID:    userId,
		CatalogID: entry.ID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}
	return entry, wasNew, nil
}

// RemoveWish resolves the raw identifier and detaches the catalog
// entry from the user's wishlist. wasRemoved is false when no such
// wish existed. The catalog entry itself always survives, price
// history keeps referencing it.
func (s Service) RemoveWish(ctx context.Context, userId, raw string) (db.CatalogEntry, bool, error) {
	ctx, span := tracer.Start(ctx, "RemoveWish")
	defer span.End()
	span.SetAttributes(attribute.String("user", userId))

	id, err := psnstore.Normalize(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}

	entry, _, err := s.Resolve(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}

	wasRemoved, err := s.qry.DeleteWish(ctx, db.DeleteWishParams{
		UserID:    userId,
		CatalogID: entry.ID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.CatalogEntry{}, false, err
	}
	return entry, wasRemoved, nil
}

// RemoveWishEntry detaches an already catalogued entry from the user's
// wishlist, skipping identifier resolution.
func (s Service) RemoveWishEntry(ctx context.Context, userId string, entry db.CatalogEntry) (bool, error) {
	ctx, span := tracer.Start(ctx, "RemoveWishEntry")
	defer span.End()
	span.SetAttributes(
		attribute.String("user", userId),
		attribute.Int64("catalog_id", entry.ID),
	)

	wasRemoved, err := s.qry.DeleteWish(ctx, db.DeleteWishParams{
		UserID:    userId,
		CatalogID: entry.ID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	return wasRemoved, nil
}

func (s Service) ListWishlist(ctx context.Context, userId string) ([]db.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "ListWishlist")
	defer span.End()
	span.SetAttributes(attribute.String("user", userId))

	entries, err := s.qry.GetWishlist(ctx, userId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return entries, nil
}

// Deal is a discounted price recorded today together with the users
// wishing for it.
type Deal struct {
	Entry    db.CatalogEntry
	Snapshot db.PriceSnapshot
	Wishers  []string
}

// Deals lists today's discounts across the whole catalog, used by the
// delivery layer to message wishers after a refresh sweep.
func (s Service) Deals(ctx context.Context) ([]Deal, error) {
	ctx, span := tracer.Start(ctx, "Deals")
	defer span.End()

	rows, err := s.qry.GetSaleSnapshots(ctx, s.today())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var deals []Deal
	for _, row := range rows {
		wishers, err := s.qry.GetWishers(ctx, row.Entry.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		deals = append(deals, Deal{
			Entry:    row.Entry,
			Snapshot: row.Snapshot,
			Wishers:  wishers,
		})
	}
	return deals, nil
}

// LatestPrices returns the newest recorded snapshots of one entry.
func (s Service) LatestPrices(ctx context.Context, entry db.CatalogEntry) ([]db.PriceSnapshot, error) {
	return s.qry.GetLatestSnapshots(ctx, entry.ID)
}
