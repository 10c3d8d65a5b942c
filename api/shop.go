package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AmolNarang/orderassistant/internal/store"
)

// ShopStore is the subset of store operations the shop endpoints need.
type ShopStore interface {
	Products(ctx context.Context) ([]store.Product, error)
	CustomerByEmail(ctx context.Context, email string) (*store.Customer, error)
	CreateOrder(ctx context.Context, customerID int32, lines []store.OrderLine) (*store.Order, error)
}

// CreateOrderRequest is the POST /api/orders request body.
type CreateOrderRequest struct {
	CustomerEmail string            `json:"customerEmail"`
	Items         []store.OrderLine `json:"items"`
}

// CreateOrderResponse is the POST /api/orders response body.
type CreateOrderResponse struct {
	OrderID string  `json:"orderId"`
	Total   float64 `json:"total"`
	Status  string  `json:"status"`
}

// ShopHandler handles the product catalog and order creation endpoints.
type ShopHandler struct {
	store  ShopStore
	logger *slog.Logger
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(shopStore ShopStore, logger *slog.Logger) *ShopHandler {
	return &ShopHandler{store: shopStore, logger: logger}
}

// RegisterRoutes registers shop routes on the given mux.
func (h *ShopHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/orders", h.createOrder)
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.Products(r.Context())
	if err != nil {
		h.logger.Error("listing products", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "listing products failed", "")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]any{"products": products})
}

func (h *ShopHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}

	if strings.TrimSpace(req.CustomerEmail) == "" {
		writeError(h.logger, w, http.StatusBadRequest, "customerEmail is required", "")
		return
	}
	if len(req.Items) == 0 {
		writeError(h.logger, w, http.StatusBadRequest, "items are required", "")
		return
	}
	for _, line := range req.Items {
		if strings.TrimSpace(line.SKU) == "" || line.Quantity <= 0 {
			writeError(h.logger, w, http.StatusBadRequest, "each item needs a sku and a positive quantity", "")
			return
		}
	}

	customer, err := h.store.CustomerByEmail(r.Context(), req.CustomerEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(h.logger, w, http.StatusNotFound, "customer not found", "")
			return
		}
		h.logger.Error("looking up customer", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "creating order failed", "")
		return
	}

	order, err := h.store.CreateOrder(r.Context(), customer.ID, req.Items)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(h.logger, w, http.StatusBadRequest, "unknown product in order", err.Error())
			return
		}
		h.logger.Error("creating order", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "creating order failed", "")
		return
	}

	writeJSON(h.logger, w, http.StatusCreated, CreateOrderResponse{
		OrderID: order.ID,
		Total:   order.Total,
		Status:  order.Status,
	})
}
