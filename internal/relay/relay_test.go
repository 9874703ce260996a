// ABOUTME: Tests for order creation, status updates and best-effort forwarding
// ABOUTME: Origin stores are faked with httptest servers

package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/market-hub/internal/registry"
	"github.com/2389/market-hub/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRelay(t *testing.T) (*Relay, *registry.Registry, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	reg := registry.New(s, 10*time.Minute, testLogger())
	return New(s, reg, 2*time.Second, testLogger()), reg, s
}

func registerStore(t *testing.T, reg *registry.Registry, id, url string) {
	t.Helper()
	_, _, err := reg.Register(context.Background(), map[string]any{
		"storeId": id,
		"name":    "Store " + id,
		"url":     url,
	})
	require.NoError(t, err)
}

func validRequest(storeID string) *CreateRequest {
	return &CreateRequest{
		StoreID:  storeID,
		Items:    []any{map[string]any{"sku": "SKU-1", "qty": 2.0}},
		Customer: map[string]any{"name": "Ola Nordmann", "email": "ola@example.com"},
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	rel, reg, _ := setupRelay(t)
	ctx := context.Background()
	registerStore(t, reg, "a", "http://127.0.0.1:1")

	_, err := rel.Create(ctx, &CreateRequest{Items: []any{"x"}, Customer: map[string]any{"name": "n"}})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = rel.Create(ctx, &CreateRequest{StoreID: "a", Customer: map[string]any{"name": "n"}})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = rel.Create(ctx, &CreateRequest{StoreID: "a", Items: []any{"x"}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCreate_UnknownStoreDoesNotAppend(t *testing.T) {
	rel, _, s := setupRelay(t)
	ctx := context.Background()

	_, err := rel.Create(ctx, validRequest("ghost"))
	assert.ErrorIs(t, err, store.ErrStoreNotFound)

	orders, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders, "a rejected order must not reach the collection")
}

func TestCreate_PersistsAndForwards(t *testing.T) {
	rel, reg, s := setupRelay(t)
	ctx := context.Background()

	var mu sync.Mutex
	var received *store.Order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
			http.NotFound(w, r)
			return
		}
		var o store.Order
		require.NoError(t, json.NewDecoder(r.Body).Decode(&o))
		mu.Lock()
		received = &o
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)
	registerStore(t, reg, "a", srv.URL)

	order, err := rel.Create(ctx, validRequest("a"))
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, "Store a", order.StoreName, "store name is denormalized onto the order")
	assert.False(t, order.CreatedAt.IsZero())

	orders, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	rel.WaitForwards()
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received, "full order payload is pushed to the origin store")
	assert.Equal(t, order.ID, received.ID)
}

func TestCreate_ForwardFailureDoesNotFailCreate(t *testing.T) {
	rel, reg, s := setupRelay(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // store is unreachable
	registerStore(t, reg, "a", url)

	order, err := rel.Create(ctx, validRequest("a"))
	require.NoError(t, err, "central persistence is the source of truth")
	rel.WaitForwards()

	orders, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestUpdateStatus_NotFoundLeavesCollectionUnchanged(t *testing.T) {
	rel, reg, s := setupRelay(t)
	ctx := context.Background()
	registerStore(t, reg, "a", "http://127.0.0.1:1")

	_, err := rel.Create(ctx, validRequest("a"))
	require.NoError(t, err)
	rel.WaitForwards()

	before, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	beforeJSON, err := json.Marshal(before)
	require.NoError(t, err)

	_, err = rel.UpdateStatus(ctx, "ORD-unknown", "shipped", nil)
	assert.ErrorIs(t, err, store.ErrOrderNotFound)

	after, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	afterJSON, err := json.Marshal(after)
	require.NoError(t, err)
	assert.Equal(t, string(beforeJSON), string(afterJSON))
}

func TestUpdateStatus_NotesPreservedUnlessSupplied(t *testing.T) {
	rel, reg, _ := setupRelay(t)
	ctx := context.Background()
	registerStore(t, reg, "a", "http://127.0.0.1:1")

	req := validRequest("a")
	req.Notes = "leave at the door"
	order, err := rel.Create(ctx, req)
	require.NoError(t, err)
	rel.WaitForwards()

	// No notes supplied: prior notes survive, any status string is accepted
	updated, err := rel.UpdateStatus(ctx, order.ID, "making-waffles", nil)
	require.NoError(t, err)
	assert.Equal(t, "making-waffles", updated.Status)
	assert.Equal(t, "leave at the door", updated.Notes)
	require.NotNil(t, updated.UpdatedAt)

	// Supplied notes replace, including an explicit empty string
	empty := ""
	updated, err = rel.UpdateStatus(ctx, order.ID, "done", &empty)
	require.NoError(t, err)
	assert.Empty(t, updated.Notes)
}

func TestUpdateStatus_RequiresStatus(t *testing.T) {
	rel, _, _ := setupRelay(t)

	_, err := rel.UpdateStatus(context.Background(), "ORD-1", "", nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestList_SortedNewestFirst(t *testing.T) {
	rel, _, s := setupRelay(t)
	ctx := context.Background()

	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(1 * time.Hour)
	t3 := t1.Add(2 * time.Hour)
	require.NoError(t, s.SaveOrders(ctx, []*store.Order{
		{ID: "o1", StoreID: "a", Status: "pending", CreatedAt: t1},
		{ID: "o3", StoreID: "a", Status: "pending", CreatedAt: t3},
		{ID: "o2", StoreID: "b", Status: "shipped", CreatedAt: t2},
	}))

	orders, err := rel.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"o3", "o2", "o1"}, []string{orders[0].ID, orders[1].ID, orders[2].ID})
}

func TestList_Filters(t *testing.T) {
	rel, _, s := setupRelay(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.SaveOrders(ctx, []*store.Order{
		{ID: "o1", StoreID: "a", Status: "pending", CreatedAt: now},
		{ID: "o2", StoreID: "a", Status: "shipped", CreatedAt: now.Add(time.Second)},
		{ID: "o3", StoreID: "b", Status: "pending", CreatedAt: now.Add(2 * time.Second)},
	}))

	byStore, err := rel.List(ctx, ListFilter{StoreID: "a"})
	require.NoError(t, err)
	assert.Len(t, byStore, 2)

	byStatus, err := rel.List(ctx, ListFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	// "all" is a sentinel meaning no status filter
	sentinel, err := rel.List(ctx, ListFilter{Status: "all"})
	require.NoError(t, err)
	assert.Len(t, sentinel, 3)

	combined, err := rel.List(ctx, ListFilter{StoreID: "a", Status: "shipped"})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, "o2", combined[0].ID)
}
