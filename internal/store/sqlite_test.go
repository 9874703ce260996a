// ABOUTME: Tests for the SQLite-backed store
// ABOUTME: Uses temp-file databases; covers round trips, reopen persistence and corrupt rows

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteStore_EmptyOnFirstLoad(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()

	recs, err := s.LoadStores(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	products, err := s.LoadProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	orders, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveStores(ctx, []*StoreRecord{{
		ID:           "store-1",
		Name:         "Corner Shop",
		URL:          "http://localhost:9001",
		Status:       StatusOffline,
		LastSeen:     now,
		RegisteredAt: now,
	}}))
	require.NoError(t, s.SaveProducts(ctx, []Product{
		{"storeId": "store-1", "name": "Espresso Beans", "category": "food", "price": 12.5},
	}))

	recs, err := s.LoadStores(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Corner Shop", recs[0].Name)

	products, err := s.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Espresso Beans", products[0].Name())
	assert.Equal(t, 12.5, products[0]["price"])
}

func TestSQLiteStore_SaveReplacesWholeCollection(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProducts(ctx, []Product{
		{"storeId": "a", "name": "One"},
		{"storeId": "a", "name": "Two"},
	}))
	require.NoError(t, s.SaveProducts(ctx, []Product{
		{"storeId": "a", "name": "Three"},
	}))

	products, err := s.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Three", products[0].Name())
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	s, path := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOrders(ctx, []*Order{
		{ID: "o1", StoreID: "a", StoreName: "A", Status: "pending", CreatedAt: time.Now().UTC()},
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	orders, err := reopened.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
}

func TestSQLiteStore_CorruptRowReadsAsEmpty(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()

	_, err := s.db.Exec(`UPDATE collections SET body = '{broken' WHERE name = 'orders'`)
	require.NoError(t, err)

	orders, err := s.LoadOrders(ctx)
	require.NoError(t, err, "a corrupt document is a warning, never an error")
	assert.Empty(t, orders)
}

func TestSQLiteStore_NilSliceSavesAsEmptyArray(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveStores(ctx, nil))

	var body string
	require.NoError(t, s.db.QueryRow(`SELECT body FROM collections WHERE name = 'stores'`).Scan(&body))
	assert.Equal(t, "[]", body)
}
