// ABOUTME: In-memory Store implementation for tests
// ABOUTME: Holds deep-copied collection snapshots behind a mutex

package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore is an in-memory Store for tests. Saves keep a deep copy (via a
// JSON round-trip) so later mutations by the caller don't leak into the
// stored snapshot.
type MemStore struct {
	mu       sync.Mutex
	stores   []*StoreRecord
	products []Product
	orders   []*Order

	// FailSaves, when set, makes every Save return this error.
	FailSaves error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func deepCopy[T any](in T, out *T) {
	data, err := json.Marshal(in)
	if err != nil {
		panic("memstore: marshal: " + err.Error())
	}
	if err := json.Unmarshal(data, out); err != nil {
		panic("memstore: unmarshal: " + err.Error())
	}
}

func (s *MemStore) LoadStores(ctx context.Context) ([]*StoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*StoreRecord
	deepCopy(s.stores, &out)
	return out, nil
}

func (s *MemStore) SaveStores(ctx context.Context, recs []*StoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	var snap []*StoreRecord
	deepCopy(recs, &snap)
	s.stores = snap
	return nil
}

func (s *MemStore) LoadProducts(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Product
	deepCopy(s.products, &out)
	return out, nil
}

func (s *MemStore) SaveProducts(ctx context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	var snap []Product
	deepCopy(products, &snap)
	s.products = snap
	return nil
}

func (s *MemStore) LoadOrders(ctx context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	deepCopy(s.orders, &out)
	return out, nil
}

func (s *MemStore) SaveOrders(ctx context.Context, orders []*Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	var snap []*Order
	deepCopy(orders, &snap)
	s.orders = snap
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error {
	return nil
}
