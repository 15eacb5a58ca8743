package wishlist

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"
	"wishwatch-backend/lib/chrono"
	"wishwatch-backend/lib/configutil"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/lib/telemetry"
	"wishwatch-backend/lib/testutil"
	"wishwatch-backend/services/wishlist/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type fakeExtractor struct {
	records map[string]psnstore.ProductRecord
	calls   int
}

func recordKey(id psnstore.Identifier) string {
	return fmt.Sprintf("%s:%s", id.Kind, id.Value)
}

func (f *fakeExtractor) Extract(ctx context.Context, id psnstore.Identifier, locale string) (psnstore.ProductRecord, error) {
	f.calls++
	record, ok := f.records[recordKey(id)]
	if !ok {
		return psnstore.ProductRecord{}, psnstore.ErrNotFound
	}
	return record, nil
}

func (f *fakeExtractor) add(record psnstore.ProductRecord) {
	if f.records == nil {
		f.records = map[string]psnstore.ProductRecord{}
	}
	if record.ConceptId != "" {
		f.records[fmt.Sprintf("%s:%s", psnstore.KindConcept, record.ConceptId)] = record
	}
	if record.ProductId != "" {
		f.records[fmt.Sprintf("%s:%s", psnstore.KindProduct, record.ProductId)] = record
	}
}

var testDay = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func price(v float64) *float64 {
	return &v
}

func valhalla() psnstore.ProductRecord {
	return psnstore.ProductRecord{
		ConceptId: "10000237",
		ProductId: "P1",
		Name:      "Valhalla",
		PosterUrl: "https://img.example/valhalla.png",
		Editions: []psnstore.Edition{
			{
				Name:          "Standard",
				OriginalPrice: 4999,
				SalePrice:     price(2999),
				Currency:      "RUB",
			},
		},
	}
}

func setupService(t *testing.T) (Service, *fakeExtractor) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/wishlist",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	store := &fakeExtractor{}
	service := NewService(setup.DB, store, chrono.Fixed{Time: testDay}, "ru-ru")
	return service, store
}

func TestResolveCreatesEntryAndSeedsSnapshot(t *testing.T) {
	service, store := setupService(t)
	store.add(valhalla())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	entry, created, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "10000237",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Valhalla", entry.Name)
	require.Equal(t, "https://img.example/valhalla.png", entry.PosterUrl)
	require.Equal(t, "10000237", entry.ConceptID.String)
	require.Equal(t, "P1", entry.ProductID.String)

	snapshots, err := service.LatestPrices(ctx, entry)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "2026-08-30", snapshots[0].CheckDate)
	require.Equal(t, "ru-ru", snapshots[0].Locale)
	require.Equal(t, "Standard", snapshots[0].Edition)
	require.Equal(t, float64(4999), snapshots[0].OriginalPrice)
	require.True(t, snapshots[0].SalePrice.Valid)
	require.Equal(t, float64(2999), snapshots[0].SalePrice.Float64)
}

func TestResolveIsIdempotent(t *testing.T) {
	service, store := setupService(t)
	store.add(valhalla())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	id := psnstore.Identifier{Kind: psnstore.KindConcept, Value: "10000237"}

	first, created, err := service.Resolve(ctx, id)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, store.calls)

	second, created, err := service.Resolve(ctx, id)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	// the second resolution must be answered from the catalog alone
	require.Equal(t, 1, store.calls)
}

func TestResolveDeduplicatesAcrossNamespaces(t *testing.T) {
	service, store := setupService(t)
	store.add(valhalla())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	byProduct, created, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindProduct, Value: "P1",
	})
	require.NoError(t, err)
	require.True(t, created)

	byConcept, created, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "10000237",
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, byProduct.ID, byConcept.ID)
	require.Equal(t, 1, store.calls)
}

func TestResolveMergesShorterName(t *testing.T) {
	service, store := setupService(t)

	// the concept page carries the decorated name, a sibling SKU of the
	// same concept carries the plain one
	decorated := valhalla()
	decorated.Name = "Valhalla Deluxe Edition PS4 & PS5"
	store.add(decorated)

	sibling := valhalla()
	sibling.ProductId = "P2"
	store.records[fmt.Sprintf("%s:%s", psnstore.KindProduct, "P2")] = sibling

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	first, created, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "10000237",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Valhalla Deluxe Edition PS4 & PS5", first.Name)

	// P2 is not catalogued, extraction runs and maps onto the same
	// concept, the shorter extracted name wins
	second, created, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindProduct, Value: "P2",
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Valhalla", second.Name)
}

func TestResolveUnknownIdentifier(t *testing.T) {
	service, _ := setupService(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, _, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "99999999",
	})
	require.ErrorIs(t, err, ErrUnknownIdentifier)
}

func TestRecordSnapshotOverwritesSameDay(t *testing.T) {
	service, store := setupService(t)
	store.add(valhalla())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	entry, _, err := service.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "10000237",
	})
	require.NoError(t, err)

	repriced := valhalla()
	repriced.Editions[0].SalePrice = price(1999)
	err = service.RecordSnapshot(ctx, entry, "ru-ru", &repriced)
	require.NoError(t, err)

	snapshots, err := service.LatestPrices(ctx, entry)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, float64(1999), snapshots[0].SalePrice.Float64)
}

func TestRefreshStale(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/wishlist:refresh",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	store := &fakeExtractor{}
	store.add(valhalla())

	stale := psnstore.ProductRecord{
		ConceptId: "20000001",
		ProductId: "P9",
		Name:      "Horizon",
		PosterUrl: "https://img.example/horizon.png",
		Editions: []psnstore.Edition{
			{Name: "Standard", OriginalPrice: 3999, Currency: "RUB"},
		},
	}
	store.add(stale)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	yesterday := NewService(setup.DB, store, chrono.Fixed{Time: testDay.AddDate(0, 0, -1)}, "ru-ru")
	_, _, err := yesterday.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "20000001",
	})
	require.NoError(t, err)

	today := NewService(setup.DB, store, chrono.Fixed{Time: testDay}, "ru-ru")
	_, _, err = today.Resolve(ctx, psnstore.Identifier{
		Kind: psnstore.KindConcept, Value: "10000237",
	})
	require.NoError(t, err)

	// a delisted entry the store no longer answers for must not break
	// the sweep
	_, err = db.New(setup.DB).CreateCatalogEntry(ctx, db.CreateCatalogEntryParams{
		ConceptID: sql.NullString{String: "30000003", Valid: true},
		Name:      "Delisted Game",
		PosterUrl: "https://img.example/delisted.png",
	})
	require.NoError(t, err)

	callsBefore := store.calls
	count, err := today.RefreshStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	// one fetch for the stale entry, one failed fetch for the orphan;
	// the fresh entry is skipped entirely
	require.Equal(t, callsBefore+2, store.calls)

	staleEntry, err := db.New(setup.DB).GetCatalogEntryByConceptId(ctx, "20000001")
	require.NoError(t, err)
	snapshots, err := today.LatestPrices(ctx, staleEntry)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "2026-08-30", snapshots[0].CheckDate)

	// a second sweep on the same day has nothing left to do
	count, err = today.RefreshStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

// gatedExtractor holds every Extract call until release is closed, so
// a test can line up several resolvers behind the catalog-miss check.
type gatedExtractor struct {
	inner   *fakeExtractor
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedExtractor) Extract(ctx context.Context, id psnstore.Identifier, locale string) (psnstore.ProductRecord, error) {
	g.arrived <- struct{}{}
	<-g.release
	return g.inner.Extract(ctx, id, locale)
}

func TestResolveConcurrentCreate(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:services/wishlist:race")
	defer cleanup()

	database, err := configutil.Database{
		File: filepath.Join(t.TempDir(), "wishlist.db"),
	}.Open(db.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	inner := &fakeExtractor{}
	inner.add(valhalla())
	store := &gatedExtractor{
		inner:   inner,
		arrived: make(chan struct{}),
		release: make(chan struct{}),
	}
	service := NewService(database, store, chrono.Fixed{Time: testDay}, "ru-ru")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	id := psnstore.Identifier{Kind: psnstore.KindConcept, Value: "10000237"}

	type result struct {
		entry   db.CatalogEntry
		created bool
		err     error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			entry, created, err := service.Resolve(ctx, id)
			results <- result{entry, created, err}
		}()
	}

	// both resolvers passed the catalog miss and are mid-extraction,
	// now let them race into the insert
	<-store.arrived
	<-store.arrived
	close(store.release)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.Equal(t, first.entry.ID, second.entry.ID)
	require.Equal(t, "Valhalla", first.entry.Name)

	created := 0
	for _, r := range []result{first, second} {
		if r.created {
			created++
		}
	}
	require.Equal(t, 1, created)
}

func TestWishLifecycle(t *testing.T) {
	service, store := setupService(t)
	store.add(valhalla())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, _, err := service.AddWish(ctx, "alice", "!!")
	require.ErrorIs(t, err, psnstore.ErrInvalidIdentifier)

	entry, wasNew, err := service.AddWish(ctx, "alice", "10000237")
	require.NoError(t, err)
	require.True(t, wasNew)

	// adding the same title through its product link changes nothing
	_, wasNew, err = service.AddWish(ctx, "alice", "https://store.playstation.com/ru-ru/product/P1")
	require.NoError(t, err)
	require.False(t, wasNew)
	require.Equal(t, 1, store.calls)

	wishes, err := service.ListWishlist(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, wishes, 1)
	require.Equal(t, entry.ID, wishes[0].ID)

	deals, err := service.Deals(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	require.Equal(t, entry.ID, deals[0].Entry.ID)
	require.Equal(t, []string{"alice"}, deals[0].Wishers)

	_, wasRemoved, err := service.RemoveWish(ctx, "alice", "10000237")
	require.NoError(t, err)
	require.True(t, wasRemoved)

	wishes, err = service.ListWishlist(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, wishes, 0)

	_, wasRemoved, err = service.RemoveWish(ctx, "alice", "10000237")
	require.NoError(t, err)
	require.False(t, wasRemoved)

	// the catalog entry survives the removed wish
	kept, err := db.New(service.db).GetCatalogEntryByConceptId(ctx, "10000237")
	require.NoError(t, err)
	require.Equal(t, entry.ID, kept.ID)
}
