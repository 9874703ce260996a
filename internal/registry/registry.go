// ABOUTME: Store registry managing identity, registration merges and liveness classification
// ABOUTME: Computes online/offline as a pure function of now minus lastSeen

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/market-hub/internal/store"
)

// DefaultLivenessThreshold is how long a store may go without re-registering
// before it is reported offline.
const DefaultLivenessThreshold = 10 * time.Minute

// ErrInvalidStore is returned when a registration is missing required fields.
var ErrInvalidStore = errors.New("invalid store")

// Registry manages store identity and liveness. All read-modify-write
// cycles on the stores collection are serialized behind mu, so two
// registrations cannot clobber each other with stale full-collection
// snapshots.
type Registry struct {
	store     store.Store
	threshold time.Duration
	logger    *slog.Logger

	mu sync.Mutex
}

// Summary holds aggregate liveness counts for the debug listing.
type Summary struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// New creates a registry. A non-positive threshold falls back to
// DefaultLivenessThreshold.
func New(s store.Store, threshold time.Duration, logger *slog.Logger) *Registry {
	if threshold <= 0 {
		threshold = DefaultLivenessThreshold
	}
	return &Registry{
		store:     s,
		threshold: threshold,
		logger:    logger.With("component", "registry"),
	}
}

// statusFor classifies a store: online while the gap since lastSeen is
// strictly below the threshold, offline at or beyond it.
func (r *Registry) statusFor(lastSeen, now time.Time) string {
	if now.Sub(lastSeen) < r.threshold {
		return store.StatusOnline
	}
	return store.StatusOffline
}

// Register records a self-registration. The payload must carry storeId,
// name, and url. If a record with the same storeId exists, the payload is
// shallow-merged over it: supplied fields win, registeredAt is preserved
// from the first registration, and lastSeen/status are stamped fresh.
// Returns the resulting record and the total number of registered stores.
func (r *Registry) Register(ctx context.Context, payload map[string]any) (*store.StoreRecord, int, error) {
	id, _ := payload["storeId"].(string)
	name, _ := payload["name"].(string)
	url, _ := payload["url"].(string)
	if id == "" {
		return nil, 0, fmt.Errorf("%w: storeId is required", ErrInvalidStore)
	}
	if name == "" {
		return nil, 0, fmt.Errorf("%w: name is required", ErrInvalidStore)
	}
	if url == "" {
		return nil, 0, fmt.Errorf("%w: url is required", ErrInvalidStore)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.LoadStores(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("loading stores: %w", err)
	}

	now := time.Now().UTC()
	var rec *store.StoreRecord
	for _, existing := range recs {
		if existing.ID == id {
			rec = existing
			break
		}
	}

	if rec == nil {
		rec = &store.StoreRecord{ID: id, RegisteredAt: now}
		recs = append(recs, rec)
	} else if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = now
	}

	applyPayload(rec, payload)
	rec.LastSeen = now
	rec.Status = store.StatusOnline

	if err := r.store.SaveStores(ctx, recs); err != nil {
		return nil, 0, fmt.Errorf("saving stores: %w", err)
	}

	r.logger.Info("store registered", "store_id", id, "name", rec.Name, "total", len(recs))
	return rec.Clone(), len(recs), nil
}

// applyPayload shallow-merges caller-supplied fields onto a record. Identity
// and registry-stamped fields are never taken from the payload.
func applyPayload(rec *store.StoreRecord, payload map[string]any) {
	for k, v := range payload {
		switch k {
		case "storeId", "registeredAt", "status", "lastSeen":
			// owned by the registry
		case "name":
			if s, ok := v.(string); ok {
				rec.Name = s
			}
		case "url":
			if s, ok := v.(string); ok {
				rec.URL = s
			}
		case "location":
			if s, ok := v.(string); ok {
				rec.Location = s
			}
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]any)
			}
			rec.Extra[k] = v
		}
	}
}

// List returns every registered store with its status recomputed from the
// current time, and persists the recomputed statuses. Listing is a
// read-with-side-effect: the durable status field tracks the last
// classification.
func (r *Registry) List(ctx context.Context) ([]*store.StoreRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.LoadStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stores: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range recs {
		rec.Status = r.statusFor(rec.LastSeen, now)
	}

	if err := r.store.SaveStores(ctx, recs); err != nil {
		return nil, fmt.Errorf("saving stores: %w", err)
	}
	return recs, nil
}

// Summarize returns the store list plus aggregate liveness counts.
func (r *Registry) Summarize(ctx context.Context) ([]*store.StoreRecord, *Summary, error) {
	recs, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	sum := &Summary{Total: len(recs)}
	for _, rec := range recs {
		if rec.Status == store.StatusOnline {
			sum.Online++
		} else {
			sum.Offline++
		}
	}
	return recs, sum, nil
}

// ManualAdd records an operator-supplied store. Unlike Register it replaces
// any existing record with the same storeId wholesale: fields absent from
// the new payload do not survive. This is the "operator corrects wholesale"
// override path.
func (r *Registry) ManualAdd(ctx context.Context, id, name, location, url string) (*store.StoreRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: storeId is required", ErrInvalidStore)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidStore)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.LoadStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stores: %w", err)
	}

	now := time.Now().UTC()
	rec := &store.StoreRecord{
		ID:           id,
		Name:         name,
		URL:          url,
		Location:     location,
		Status:       store.StatusOnline,
		LastSeen:     now,
		RegisteredAt: now,
	}

	replaced := false
	for i, existing := range recs {
		if existing.ID == id {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}

	if err := r.store.SaveStores(ctx, recs); err != nil {
		return nil, fmt.Errorf("saving stores: %w", err)
	}

	r.logger.Info("store added manually", "store_id", id, "name", name, "replaced", replaced)
	return rec.Clone(), nil
}

// FindByID returns the store with the given id, or store.ErrStoreNotFound.
func (r *Registry) FindByID(ctx context.Context, id string) (*store.StoreRecord, error) {
	recs, err := r.store.LoadStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stores: %w", err)
	}
	for _, rec := range recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, store.ErrStoreNotFound
}

// Threshold reports the configured liveness threshold.
func (r *Registry) Threshold() time.Duration {
	return r.threshold
}
