// ABOUTME: Store interface and data types for market-hub persistence
// ABOUTME: Defines StoreRecord, Product, Order and the whole-collection Store interface

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrStoreNotFound is returned when a requested store does not exist.
var ErrStoreNotFound = errors.New("store not found")

// ErrOrderNotFound is returned when a requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Status constants for store liveness.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Collection names for the three persisted datasets.
const (
	CollectionStores   = "stores"
	CollectionProducts = "products"
	CollectionOrders   = "orders"
)

// StoreRecord represents a registered remote store. Stores self-report
// arbitrary extra fields alongside the well-known ones; extras survive
// round-trips as a flat JSON object and merge shallowly on re-registration.
type StoreRecord struct {
	ID           string
	Name         string
	URL          string
	Location     string
	Status       string // "online" or "offline", derived from LastSeen
	LastSeen     time.Time
	RegisteredAt time.Time
	Extra        map[string]any
}

// knownStoreKeys are the JSON keys owned by the struct fields above.
var knownStoreKeys = map[string]bool{
	"storeId":      true,
	"name":         true,
	"url":          true,
	"location":     true,
	"status":       true,
	"lastSeen":     true,
	"registeredAt": true,
}

// MarshalJSON flattens Extra into the top-level object. Well-known fields
// always win over a colliding extra key.
func (r *StoreRecord) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Extra)+7)
	for k, v := range r.Extra {
		if !knownStoreKeys[k] {
			obj[k] = v
		}
	}
	obj["storeId"] = r.ID
	obj["name"] = r.Name
	obj["url"] = r.URL
	if r.Location != "" {
		obj["location"] = r.Location
	}
	obj["status"] = r.Status
	obj["lastSeen"] = r.LastSeen.UTC().Format(time.RFC3339)
	obj["registeredAt"] = r.RegisteredAt.UTC().Format(time.RFC3339)
	return json.Marshal(obj)
}

// UnmarshalJSON picks the well-known fields out of a flat object and stashes
// everything else in Extra.
func (r *StoreRecord) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	r.ID, _ = obj["storeId"].(string)
	r.Name, _ = obj["name"].(string)
	r.URL, _ = obj["url"].(string)
	r.Location, _ = obj["location"].(string)
	r.Status, _ = obj["status"].(string)
	r.LastSeen = parseTimeField(obj["lastSeen"])
	r.RegisteredAt = parseTimeField(obj["registeredAt"])

	r.Extra = nil
	for k, v := range obj {
		if knownStoreKeys[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = v
	}
	return nil
}

// parseTimeField parses an RFC3339 string field, returning the zero time on
// any mismatch.
func parseTimeField(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy of the record.
func (r *StoreRecord) Clone() *StoreRecord {
	c := *r
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Product is an opaque catalog record owned by exactly one store. The hub
// passes products through unmodified apart from stamping storeId, so the
// record is a raw JSON object with typed accessors for the fields the
// aggregator filters on.
type Product map[string]any

// StoreID returns the owning store's identifier.
func (p Product) StoreID() string {
	s, _ := p["storeId"].(string)
	return s
}

// SetStoreID stamps ownership on the product.
func (p Product) SetStoreID(id string) {
	p["storeId"] = id
}

// Name returns the product's display name, if present.
func (p Product) Name() string {
	s, _ := p["name"].(string)
	return s
}

// Category returns the product's category, if present.
func (p Product) Category() string {
	s, _ := p["category"].(string)
	return s
}

// Order represents a customer order relayed through the hub. Orders are
// created once, status-patched in place, and never deleted.
type Order struct {
	ID        string         `json:"orderId"`
	StoreID   string         `json:"storeId"`
	StoreName string         `json:"storeName,omitempty"`
	Items     []any          `json:"items"`
	Customer  map[string]any `json:"customer"`
	Status    string         `json:"status"`
	Notes     string         `json:"notes,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// Store defines whole-collection persistence for the three datasets.
// Load returns an empty slice when the backing resource is missing or
// unreadable; callers cannot distinguish "no data yet" from a failed read.
// Save overwrites the entire collection atomically from a reader's
// perspective.
type Store interface {
	LoadStores(ctx context.Context) ([]*StoreRecord, error)
	SaveStores(ctx context.Context, recs []*StoreRecord) error

	LoadProducts(ctx context.Context) ([]Product, error)
	SaveProducts(ctx context.Context, products []Product) error

	LoadOrders(ctx context.Context) ([]*Order, error)
	SaveOrders(ctx context.Context, orders []*Order) error

	// Close releases any resources held by the store
	Close() error
}
