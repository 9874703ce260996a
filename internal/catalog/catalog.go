// ABOUTME: Catalog aggregator pulling product listings from remote stores
// ABOUTME: Each sync replaces a store's whole product generation in the shared catalog

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389/market-hub/internal/registry"
	"github.com/2389/market-hub/internal/store"
)

// DefaultSyncTimeout bounds outbound product fetches so one stalled store
// cannot hang a request indefinitely.
const DefaultSyncTimeout = 5 * time.Second

// SyncError reports a failed product fetch from a remote store, carrying
// the upstream message.
type SyncError struct {
	StoreID string
	Message string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncing store %s: %s", e.StoreID, e.Message)
}

// Aggregator merges per-store product listings into the shared catalog,
// partitioned by store identity.
type Aggregator struct {
	store    store.Store
	registry *registry.Registry
	client   *http.Client
	logger   *slog.Logger

	mu sync.Mutex
}

// SyncResult reports a single-store sync.
type SyncResult struct {
	StoreName string
	Count     int
}

// SyncAllResult reports an all-stores sync pass.
type SyncAllResult struct {
	SyncedStores  int
	TotalProducts int
}

// ListFilter narrows a catalog listing. Filters apply conjunctively:
// exact storeId, exact category ("all" and empty mean no filter), then a
// case-insensitive substring search against name or category.
type ListFilter struct {
	StoreID  string
	Category string
	Search   string
}

// New creates an aggregator. A non-positive timeout falls back to
// DefaultSyncTimeout.
func New(s store.Store, reg *registry.Registry, timeout time.Duration, logger *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	return &Aggregator{
		store:    s,
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "catalog"),
	}
}

// SyncOne fetches {store.url}/api/products and replaces that store's
// generation in the catalog: every prior product tagged with the storeId is
// removed and the fetched set appended. Products belonging to other stores
// are untouched.
func (a *Aggregator) SyncOne(ctx context.Context, storeID string) (*SyncResult, error) {
	rec, err := a.registry.FindByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	fetched, err := a.fetchProducts(ctx, rec)
	if err != nil {
		return nil, err
	}

	// Ownership is authoritative here, not in the remote payload.
	for _, p := range fetched {
		p.SetStoreID(storeID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	products, err := a.store.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	merged := make([]store.Product, 0, len(products)+len(fetched))
	for _, p := range products {
		if p.StoreID() != storeID {
			merged = append(merged, p)
		}
	}
	merged = append(merged, fetched...)

	if err := a.store.SaveProducts(ctx, merged); err != nil {
		return nil, fmt.Errorf("saving products: %w", err)
	}

	a.logger.Info("synced store catalog", "store_id", storeID, "products", len(fetched))
	return &SyncResult{StoreName: rec.Name, Count: len(fetched)}, nil
}

// fetchProducts issues the outbound catalog fetch for one store.
func (a *Aggregator) fetchProducts(ctx context.Context, rec *store.StoreRecord) ([]store.Product, error) {
	url := strings.TrimSuffix(rec.URL, "/") + "/api/products"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SyncError{StoreID: rec.ID, Message: err.Error()}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &SyncError{StoreID: rec.ID, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SyncError{StoreID: rec.ID, Message: fmt.Sprintf("store returned status %d", resp.StatusCode)}
	}

	var products []store.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, &SyncError{StoreID: rec.ID, Message: "invalid product payload: " + err.Error()}
	}
	return products, nil
}

// SyncAll attempts SyncOne for every currently online store. A failure for
// one store is logged and skipped; the remaining stores still sync.
func (a *Aggregator) SyncAll(ctx context.Context) (*SyncAllResult, error) {
	recs, err := a.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}

	result := &SyncAllResult{}
	for _, rec := range recs {
		if rec.Status != store.StatusOnline {
			continue
		}
		res, err := a.SyncOne(ctx, rec.ID)
		if err != nil {
			a.logger.Warn("store sync failed, continuing", "store_id", rec.ID, "error", err)
			continue
		}
		result.SyncedStores++
		result.TotalProducts += res.Count
	}

	a.logger.Info("sync pass complete", "synced_stores", result.SyncedStores, "total_products", result.TotalProducts)
	return result, nil
}

// List returns the catalog narrowed by the filter. No persistence side
// effect.
func (a *Aggregator) List(ctx context.Context, f ListFilter) ([]store.Product, error) {
	products, err := a.store.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	out := make([]store.Product, 0, len(products))
	term := strings.ToLower(f.Search)
	for _, p := range products {
		if f.StoreID != "" && p.StoreID() != f.StoreID {
			continue
		}
		if f.Category != "" && f.Category != "all" && p.Category() != f.Category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name()), term) &&
			!strings.Contains(strings.ToLower(p.Category()), term) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Categories returns the distinct non-empty category values across the
// catalog, sorted for stable output.
func (a *Aggregator) Categories(ctx context.Context) ([]string, error) {
	products, err := a.store.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range products {
		if c := p.Category(); c != "" {
			seen[c] = true
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}
