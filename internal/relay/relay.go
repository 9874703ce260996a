// ABOUTME: Order relay accepting customer orders and forwarding them to origin stores
// ABOUTME: Central persistence is the source of truth; forwarding is fire-and-forget

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/market-hub/internal/registry"
	"github.com/2389/market-hub/internal/store"
)

// DefaultForwardTimeout bounds the fire-and-forget push to the origin store.
const DefaultForwardTimeout = 5 * time.Second

// ErrInvalidOrder is returned when an order is missing required fields.
var ErrInvalidOrder = errors.New("invalid order")

// StatusPending is the enforced initial status. Later statuses are
// free-form strings assigned via UpdateStatus.
const StatusPending = "pending"

// CreateRequest carries an inbound order.
type CreateRequest struct {
	StoreID  string         `json:"storeId"`
	Items    []any          `json:"items"`
	Customer map[string]any `json:"customer"`
	Notes    string         `json:"notes,omitempty"`
}

// ListFilter narrows an order listing by exact matches. A Status of "all"
// or empty means no status filter.
type ListFilter struct {
	StoreID string
	Status  string
}

// Relay accepts orders, enriches them with store metadata, persists them
// centrally, and best-effort forwards them to the originating store.
type Relay struct {
	store    store.Store
	registry *registry.Registry
	client   *http.Client
	logger   *slog.Logger

	mu sync.Mutex

	// forwards tracks in-flight forwarding goroutines so tests and
	// shutdown can wait for them.
	forwards sync.WaitGroup
}

// New creates a relay. A non-positive timeout falls back to
// DefaultForwardTimeout.
func New(s store.Store, reg *registry.Registry, timeout time.Duration, logger *slog.Logger) *Relay {
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}
	return &Relay{
		store:    s,
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "relay"),
	}
}

// Create validates and persists a new order, then schedules a best-effort
// forward of the full payload to the originating store. Forwarding failures
// are logged and never fail the create: the hub's copy is the source of
// truth regardless of downstream delivery.
func (r *Relay) Create(ctx context.Context, req *CreateRequest) (*store.Order, error) {
	if req.StoreID == "" {
		return nil, fmt.Errorf("%w: storeId is required", ErrInvalidOrder)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items are required", ErrInvalidOrder)
	}
	if len(req.Customer) == 0 {
		return nil, fmt.Errorf("%w: customer is required", ErrInvalidOrder)
	}

	rec, err := r.registry.FindByID(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &store.Order{
		ID:        newOrderID(now),
		StoreID:   req.StoreID,
		StoreName: rec.Name,
		Items:     req.Items,
		Customer:  req.Customer,
		Status:    StatusPending,
		Notes:     req.Notes,
		CreatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.store.LoadOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}
	orders = append(orders, order)
	if err := r.store.SaveOrders(ctx, orders); err != nil {
		return nil, fmt.Errorf("saving orders: %w", err)
	}

	r.logger.Info("order created", "order_id", order.ID, "store_id", order.StoreID)

	if rec.URL != "" {
		r.forwards.Add(1)
		go r.forward(order, rec.URL)
	}

	return order, nil
}

// newOrderID derives an order identifier from the creation instant, with a
// short random suffix to break ties within the same millisecond.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// forward pushes the full order payload to {store.url}/api/orders. Runs
// detached from the request: the outcome is logged, never surfaced.
func (r *Relay) forward(order *store.Order, baseURL string) {
	defer r.forwards.Done()

	body, err := json.Marshal(order)
	if err != nil {
		r.logger.Error("encoding order for forwarding", "order_id", order.ID, "error", err)
		return
	}

	url := strings.TrimSuffix(baseURL, "/") + "/api/orders"
	ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("order forwarding failed", "order_id", order.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("order forwarding failed", "order_id", order.ID, "store_url", baseURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Warn("store rejected forwarded order", "order_id", order.ID, "status", resp.StatusCode)
		return
	}
	r.logger.Info("order forwarded to store", "order_id", order.ID, "store_id", order.StoreID)
}

// WaitForwards blocks until all scheduled forwards have finished.
func (r *Relay) WaitForwards() {
	r.forwards.Wait()
}

// UpdateStatus sets an order's status to the caller-supplied value. Any
// string is accepted; there is no transition table. Notes are replaced only
// when supplied, and updatedAt is stamped.
func (r *Relay) UpdateStatus(ctx context.Context, orderID, status string, notes *string) (*store.Order, error) {
	if status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrInvalidOrder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.store.LoadOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}

	var order *store.Order
	for _, o := range orders {
		if o.ID == orderID {
			order = o
			break
		}
	}
	if order == nil {
		return nil, store.ErrOrderNotFound
	}

	now := time.Now().UTC()
	order.Status = status
	if notes != nil {
		order.Notes = *notes
	}
	order.UpdatedAt = &now

	if err := r.store.SaveOrders(ctx, orders); err != nil {
		return nil, fmt.Errorf("saving orders: %w", err)
	}

	r.logger.Info("order status updated", "order_id", orderID, "status", status)
	return order, nil
}

// List returns orders narrowed by the filter, newest first. No persistence
// side effect.
func (r *Relay) List(ctx context.Context, f ListFilter) ([]*store.Order, error) {
	orders, err := r.store.LoadOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}

	out := make([]*store.Order, 0, len(orders))
	for _, o := range orders {
		if f.StoreID != "" && o.StoreID != f.StoreID {
			continue
		}
		if f.Status != "" && f.Status != "all" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
