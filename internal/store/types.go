package store

import "time"

// Order status values.
const (
	StatusPending   = "pending"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Return status values.
const (
	ReturnStatusPending   = "pending"
	ReturnStatusApproved  = "approved"
	ReturnStatusCompleted = "completed"
)

// Customer is a registered buyer. Created by the checkout flow; read-only
// for the agent core.
type Customer struct {
	ID    int32
	Name  string
	Email string
	Phone string
}

// Product is immutable reference data identified by a human-readable SKU.
type Product struct {
	ID    int32
	SKU   string
	Name  string
	Price float64
}

// OrderItem joins an order to a product with a quantity.
type OrderItem struct {
	Product  Product
	Quantity int32
}

// Order is a placed order with its owning customer and items.
// Total is fixed at creation time and never recomputed.
type Order struct {
	ID        string
	Customer  Customer
	Total     float64
	Status    string
	OrderDate time.Time
	Items     []OrderItem
}

// OrderSummary is the compact listing shape used by list_orders.
type OrderSummary struct {
	ID        string
	Status    string
	Total     float64
	OrderDate time.Time
	ItemCount int32
}

// ReturnRequest records a return initiated against an order.
type ReturnRequest struct {
	ID         string
	OrderID    string
	ProductSKU string
	Reason     string
	Status     string
	CreatedAt  time.Time
}

// OrderLine is one requested product in a checkout.
type OrderLine struct {
	SKU      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}
