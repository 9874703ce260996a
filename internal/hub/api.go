// ABOUTME: HTTP API handlers for the market-hub coordination server
// ABOUTME: JSON envelope convention: success payloads carry success=true, errors carry error/details

package hub

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/market-hub/internal/catalog"
	"github.com/2389/market-hub/internal/registry"
	"github.com/2389/market-hub/internal/relay"
	"github.com/2389/market-hub/internal/store"
)

// apiEndpoints is the catalog returned on unmatched /api paths.
var apiEndpoints = []string{
	"GET  /api/health",
	"GET  /api/test",
	"POST /api/stores/register",
	"GET  /api/stores",
	"GET  /api/debug/stores",
	"POST /api/stores/manual-add",
	"POST /api/stores/{storeId}/sync-products",
	"POST /api/stores/sync-all",
	"GET  /api/products",
	"GET  /api/categories",
	"POST /api/orders",
	"PUT  /api/orders/{orderId}/status",
	"GET  /api/orders",
}

// StoresResponse is the JSON response for GET /api/stores.
type StoresResponse struct {
	Success bool                 `json:"success"`
	Stores  []*store.StoreRecord `json:"stores"`
	Count   int                  `json:"count"`
}

// DebugStoresResponse is the JSON response for GET /api/debug/stores.
type DebugStoresResponse struct {
	Success   bool                 `json:"success"`
	Stores    []*store.StoreRecord `json:"stores"`
	Summary   *registry.Summary    `json:"summary"`
	Threshold string               `json:"livenessThreshold"`
}

// RegisterResponse is the JSON response for POST /api/stores/register.
type RegisterResponse struct {
	Success     bool               `json:"success"`
	Store       *store.StoreRecord `json:"store"`
	TotalStores int                `json:"totalStores"`
}

// ManualAddRequest is the JSON request body for POST /api/stores/manual-add.
type ManualAddRequest struct {
	StoreID  string `json:"storeId"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
}

// StoreResponse is the JSON response for single-store operations.
type StoreResponse struct {
	Success bool               `json:"success"`
	Store   *store.StoreRecord `json:"store"`
}

// SyncResponse is the JSON response for POST /api/stores/{storeId}/sync-products.
type SyncResponse struct {
	Success        bool   `json:"success"`
	StoreName      string `json:"storeName"`
	SyncedProducts int    `json:"syncedProducts"`
}

// SyncAllResponse is the JSON response for POST /api/stores/sync-all.
type SyncAllResponse struct {
	Success       bool `json:"success"`
	SyncedStores  int  `json:"syncedStores"`
	TotalProducts int  `json:"totalProducts"`
}

// ProductsResponse is the JSON response for GET /api/products.
type ProductsResponse struct {
	Success  bool            `json:"success"`
	Products []store.Product `json:"products"`
	Count    int             `json:"count"`
}

// CategoriesResponse is the JSON response for GET /api/categories.
type CategoriesResponse struct {
	Success    bool     `json:"success"`
	Categories []string `json:"categories"`
}

// OrderResponse is the JSON response for order create/update.
type OrderResponse struct {
	Success bool         `json:"success"`
	Order   *store.Order `json:"order"`
}

// OrdersResponse is the JSON response for GET /api/orders.
type OrdersResponse struct {
	Success bool           `json:"success"`
	Orders  []*store.Order `json:"orders"`
	Count   int            `json:"count"`
}

// UpdateStatusRequest is the JSON request body for PUT /api/orders/{orderId}/status.
// Notes is a pointer so "absent" and "set to empty" stay distinguishable.
type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// writeJSON writes a JSON response with the given status code.
func (h *Hub) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// sendError writes a JSON error body.
func (h *Hub) sendError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// sendErrorDetails writes a JSON error body with a details message.
func (h *Hub) sendErrorDetails(w http.ResponseWriter, status int, message, details string) {
	h.writeJSON(w, status, map[string]string{"error": message, "details": details})
}

// sendServiceError maps service-layer errors onto the HTTP taxonomy:
// validation 400, unknown id 404, sync failure 500 with the upstream
// message, anything else 500.
func (h *Hub) sendServiceError(w http.ResponseWriter, err error) {
	var syncErr *catalog.SyncError
	switch {
	case errors.Is(err, registry.ErrInvalidStore), errors.Is(err, relay.ErrInvalidOrder):
		h.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrOrderNotFound):
		h.sendError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &syncErr):
		h.sendErrorDetails(w, http.StatusInternalServerError, "product sync failed", syncErr.Message)
	default:
		h.logger.Error("request failed", "error", err)
		h.sendError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleHealth handles GET /api/health.
func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"service": "market-hub",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTest handles GET /api/test, a smoke-test endpoint for store
// operators wiring up a new deployment.
func (h *Hub) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "market-hub is reachable",
	})
}

// handleListStores handles GET /api/stores. Listing recomputes and persists
// each store's online/offline status.
func (h *Hub) handleListStores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	recs, err := h.registry.List(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StoresResponse{Success: true, Stores: recs, Count: len(recs)})
}

// handleDebugStores handles GET /api/debug/stores.
func (h *Hub) handleDebugStores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	recs, summary, err := h.registry.Summarize(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DebugStoresResponse{
		Success:   true,
		Stores:    recs,
		Summary:   summary,
		Threshold: h.registry.Threshold().String(),
	})
}

// parseRegisterPayload decodes a self-registration body into a flat map so
// arbitrary caller-supplied fields survive the merge.
func parseRegisterPayload(r io.Reader) (map[string]any, error) {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return payload, nil
}

// handleRegister handles POST /api/stores/register.
func (h *Hub) handleRegister(w http.ResponseWriter, r *http.Request) {
	payload, err := parseRegisterPayload(r.Body)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, total, err := h.registry.Register(r.Context(), payload)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RegisterResponse{Success: true, Store: rec, TotalStores: total})
}

// handleManualAdd handles POST /api/stores/manual-add.
func (h *Hub) handleManualAdd(w http.ResponseWriter, r *http.Request) {
	var req ManualAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.registry.ManualAdd(r.Context(), req.StoreID, req.Name, req.Location, req.URL)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StoreResponse{Success: true, Store: rec})
}

// handleSyncAll handles POST /api/stores/sync-all.
func (h *Hub) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalog.SyncAll(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SyncAllResponse{
		Success:       true,
		SyncedStores:  result.SyncedStores,
		TotalProducts: result.TotalProducts,
	})
}

// handleSyncOne handles POST /api/stores/{storeId}/sync-products.
func (h *Hub) handleSyncOne(w http.ResponseWriter, r *http.Request, storeID string) {
	result, err := h.catalog.SyncOne(r.Context(), storeID)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SyncResponse{
		Success:        true,
		StoreName:      result.StoreName,
		SyncedProducts: result.Count,
	})
}

// handleStoreRoutes routes POST /api/stores/* subpaths: register,
// manual-add, sync-all, and {storeId}/sync-products.
func (h *Hub) handleStoreRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/stores/")
	switch rest {
	case "register":
		h.handleRegister(w, r)
		return
	case "manual-add":
		h.handleManualAdd(w, r)
		return
	case "sync-all":
		h.handleSyncAll(w, r)
		return
	}

	if storeID, ok := strings.CutSuffix(rest, "/sync-products"); ok && storeID != "" && !strings.Contains(storeID, "/") {
		h.handleSyncOne(w, r, storeID)
		return
	}

	h.handleAPINotFound(w, r)
}

// handleProducts handles GET /api/products with storeId, category, and
// search query parameters.
func (h *Hub) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	products, err := h.catalog.List(r.Context(), catalog.ListFilter{
		StoreID:  q.Get("storeId"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ProductsResponse{Success: true, Products: products, Count: len(products)})
}

// handleCategories handles GET /api/categories.
func (h *Hub) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CategoriesResponse{Success: true, Categories: categories})
}

// handleOrders handles GET and POST /api/orders.
func (h *Hub) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListOrders(w, r)
	case http.MethodPost:
		h.handleCreateOrder(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleCreateOrder handles POST /api/orders.
func (h *Hub) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req relay.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.relay.Create(r.Context(), &req)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, OrderResponse{Success: true, Order: order})
}

// handleListOrders handles GET /api/orders with storeId and status query
// parameters. Orders come back newest first.
func (h *Hub) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.relay.List(r.Context(), relay.ListFilter{
		StoreID: q.Get("storeId"),
		Status:  q.Get("status"),
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, OrdersResponse{Success: true, Orders: orders, Count: len(orders)})
}

// handleOrderRoutes routes PUT /api/orders/{orderId}/status.
func (h *Hub) handleOrderRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	orderID, ok := strings.CutSuffix(rest, "/status")
	if !ok || orderID == "" || strings.Contains(orderID, "/") {
		h.handleAPINotFound(w, r)
		return
	}

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.relay.UpdateStatus(r.Context(), orderID, req.Status, req.Notes)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, OrderResponse{Success: true, Order: order})
}

// handleAPINotFound answers unmatched /api paths with the endpoint catalog.
func (h *Hub) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]any{
		"error":     "endpoint not found",
		"endpoints": apiEndpoints,
	})
}

// handleNotFound answers unmatched non-API paths.
func (h *Hub) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "page not found",
		"path":  r.URL.Path,
	})
}
