// ABOUTME: File-backed Store implementation writing one JSON array document per collection
// ABOUTME: Saves go through a temp file and rename so readers never see a partial write

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore persists each collection as a JSON array document under a data
// directory: stores.json, products.json, orders.json.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a file store rooted at dir. The directory and the
// three collection documents are provisioned empty if absent.
func NewFileStore(dir string) (*FileStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &FileStore{dir: dir, logger: logger}

	for _, name := range []string{CollectionStores, CollectionProducts, CollectionOrders} {
		path := s.path(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte("[]\n"), 0644); err != nil {
				return nil, fmt.Errorf("provisioning %s: %w", name, err)
			}
		}
	}

	logger.Info("file store initialized", "dir", dir)
	return s, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// load reads a collection document into out. A missing or unreadable
// document leaves out untouched (empty) and returns nil: the hub treats
// "no data yet" and "read failed" identically.
func (s *FileStore) load(collection string, out any) error {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable collection, treating as empty", "collection", collection, "error", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("corrupt collection, treating as empty", "collection", collection, "error", err)
	}
	return nil
}

// save writes the full collection document via a temp file in the same
// directory and an atomic rename.
func (s *FileStore) save(collection string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+"-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", collection, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", collection, err)
	}

	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", collection, err)
	}
	return nil
}

func (s *FileStore) LoadStores(ctx context.Context) ([]*StoreRecord, error) {
	var recs []*StoreRecord
	if err := s.load(CollectionStores, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *FileStore) SaveStores(ctx context.Context, recs []*StoreRecord) error {
	if recs == nil {
		recs = []*StoreRecord{}
	}
	return s.save(CollectionStores, recs)
}

func (s *FileStore) LoadProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.load(CollectionProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *FileStore) SaveProducts(ctx context.Context, products []Product) error {
	if products == nil {
		products = []Product{}
	}
	return s.save(CollectionProducts, products)
}

func (s *FileStore) LoadOrders(ctx context.Context) ([]*Order, error) {
	var orders []*Order
	if err := s.load(CollectionOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *FileStore) SaveOrders(ctx context.Context, orders []*Order) error {
	if orders == nil {
		orders = []*Order{}
	}
	return s.save(CollectionOrders, orders)
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
