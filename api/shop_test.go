package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmolNarang/orderassistant/internal/log"
	"github.com/AmolNarang/orderassistant/internal/store"
)

// fakeShopStore backs the shop handler tests.
type fakeShopStore struct {
	products   []store.Product
	productErr error

	customers map[string]*store.Customer

	order     *store.Order
	createErr error

	lastCustomerID int32
	lastLines      []store.OrderLine
}

func (f *fakeShopStore) Products(context.Context) ([]store.Product, error) {
	return f.products, f.productErr
}

func (f *fakeShopStore) CustomerByEmail(_ context.Context, email string) (*store.Customer, error) {
	customer, ok := f.customers[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return customer, nil
}

func (f *fakeShopStore) CreateOrder(_ context.Context, customerID int32, lines []store.OrderLine) (*store.Order, error) {
	f.lastCustomerID = customerID
	f.lastLines = lines
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.order, nil
}

// TestShopHandler_ListProducts tests the catalog endpoint.
func TestShopHandler_ListProducts(t *testing.T) {
	t.Parallel()

	t.Run("returns products", func(t *testing.T) {
		t.Parallel()

		h := NewShopHandler(&fakeShopStore{products: []store.Product{
			{ID: 1, SKU: "SKU001", Name: "Wireless Headphones", Price: 49.99},
		}}, log.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()
		h.listProducts(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Products []store.Product `json:"products"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Products, 1)
		assert.Equal(t, "SKU001", body.Products[0].SKU)
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		h := NewShopHandler(&fakeShopStore{productErr: assert.AnError}, log.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()
		h.listProducts(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func postOrder(t *testing.T, h *ShopHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.createOrder(w, req)
	return w
}

// TestShopHandler_CreateOrder tests checkout validation and outcomes.
func TestShopHandler_CreateOrder(t *testing.T) {
	t.Parallel()

	newStore := func() *fakeShopStore {
		return &fakeShopStore{
			customers: map[string]*store.Customer{
				"john@example.com": {ID: 1, Name: "John Doe", Email: "john@example.com"},
			},
			order: &store.Order{ID: "ORD004", Total: 99.98, Status: store.StatusPending},
		}
	}

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()
		w := postOrder(t, NewShopHandler(newStore(), log.NewNop()), "{")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing email", func(t *testing.T) {
		t.Parallel()
		w := postOrder(t, NewShopHandler(newStore(), log.NewNop()),
			`{"items": [{"sku": "SKU001", "quantity": 1}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "customerEmail is required")
	})

	t.Run("missing items", func(t *testing.T) {
		t.Parallel()
		w := postOrder(t, NewShopHandler(newStore(), log.NewNop()),
			`{"customerEmail": "john@example.com", "items": []}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "items are required")
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		t.Parallel()
		w := postOrder(t, NewShopHandler(newStore(), log.NewNop()),
			`{"customerEmail": "john@example.com", "items": [{"sku": "SKU001", "quantity": 0}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown customer", func(t *testing.T) {
		t.Parallel()
		w := postOrder(t, NewShopHandler(newStore(), log.NewNop()),
			`{"customerEmail": "nobody@example.com", "items": [{"sku": "SKU001", "quantity": 1}]}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "customer not found")
	})

	t.Run("unknown product", func(t *testing.T) {
		t.Parallel()
		s := newStore()
		s.createErr = fmt.Errorf("product SKU999: %w", store.ErrNotFound)
		w := postOrder(t, NewShopHandler(s, log.NewNop()),
			`{"customerEmail": "john@example.com", "items": [{"sku": "SKU999", "quantity": 1}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown product")
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		s := newStore()
		s.createErr = assert.AnError
		w := postOrder(t, NewShopHandler(s, log.NewNop()),
			`{"customerEmail": "john@example.com", "items": [{"sku": "SKU001", "quantity": 1}]}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		s := newStore()
		w := postOrder(t, NewShopHandler(s, log.NewNop()),
			`{"customerEmail": "john@example.com", "items": [{"sku": "SKU001", "quantity": 2}]}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp CreateOrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ORD004", resp.OrderID)
		assert.Equal(t, 99.98, resp.Total)
		assert.Equal(t, store.StatusPending, resp.Status)

		assert.EqualValues(t, 1, s.lastCustomerID)
		require.Len(t, s.lastLines, 1)
		assert.Equal(t, "SKU001", s.lastLines[0].SKU)
		assert.EqualValues(t, 2, s.lastLines[0].Quantity)
	})
}
