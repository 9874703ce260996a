// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Keeps each collection as a single JSON document row for atomic whole-collection saves

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite. Collections keep
// their whole-document load/save contract: each one is stored as a single
// JSON array in the collections table, and a save replaces the row in one
// statement.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is created and the three collections provisioned empty if
// they don't exist. Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the collections table and provisions empty documents.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (name IN ('stores', 'products', 'orders'))
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	for _, name := range []string{CollectionStores, CollectionProducts, CollectionOrders} {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO collections (name, body, updated_at) VALUES (?, '[]', ?)`,
			name, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("provisioning %s: %w", name, err)
		}
	}
	return nil
}

// load reads a collection document into out. A missing row or a corrupt
// document degrades to an empty collection rather than an error.
func (s *SQLiteStore) load(ctx context.Context, collection string, out any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM collections WHERE name = ?`, collection,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logger.Warn("unreadable collection, treating as empty", "collection", collection, "error", err)
		return nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		s.logger.Warn("corrupt collection, treating as empty", "collection", collection, "error", err)
	}
	return nil
}

// save replaces a collection document. The upsert is a single statement, so
// concurrent readers see either the old document or the new one.
func (s *SQLiteStore) save(ctx context.Context, collection string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", collection, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, string(body), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving %s: %w", collection, err)
	}
	return nil
}

func (s *SQLiteStore) LoadStores(ctx context.Context) ([]*StoreRecord, error) {
	var recs []*StoreRecord
	if err := s.load(ctx, CollectionStores, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *SQLiteStore) SaveStores(ctx context.Context, recs []*StoreRecord) error {
	if recs == nil {
		recs = []*StoreRecord{}
	}
	return s.save(ctx, CollectionStores, recs)
}

func (s *SQLiteStore) LoadProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.load(ctx, CollectionProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *SQLiteStore) SaveProducts(ctx context.Context, products []Product) error {
	if products == nil {
		products = []Product{}
	}
	return s.save(ctx, CollectionProducts, products)
}

func (s *SQLiteStore) LoadOrders(ctx context.Context) ([]*Order, error) {
	var orders []*Order
	if err := s.load(ctx, CollectionOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *SQLiteStore) SaveOrders(ctx context.Context, orders []*Order) error {
	if orders == nil {
		orders = []*Order{}
	}
	return s.save(ctx, CollectionOrders, orders)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
