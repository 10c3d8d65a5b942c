// Package tools defines the typed tool catalog the chat agent can invoke.
//
// Every handler returns a result envelope with Success and Message fields
// instead of a Go error for expected failures (unknown order, email
// mismatch, expired window). The model reads the envelope and relays the
// message; Go errors are reserved for infrastructure faults.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/AmolNarang/orderassistant/internal/store"
)

// Tool name constants for order operations registered with Genkit.
const (
	GetOrderStatusName = "get_order_status"
	InitiateReturnName = "initiate_return"
	ListOrdersName     = "list_customer_orders"
)

// ReturnWindowDays is how long after the order date a return may be opened.
const ReturnWindowDays = 30

// OrderStore is the subset of store operations the order tools need.
type OrderStore interface {
	OrderByID(ctx context.Context, orderID string) (*store.Order, error)
	CustomerByEmail(ctx context.Context, email string) (*store.Customer, error)
	OrdersByCustomer(ctx context.Context, customerID int32) ([]store.OrderSummary, error)
	InsertReturn(ctx context.Context, ret store.ReturnRequest) error
}

// GetOrderStatusInput defines input for the get_order_status tool.
type GetOrderStatusInput struct {
	OrderID       string `json:"order_id" jsonschema_description:"The order ID (e.g., ORD001)"`
	CustomerEmail string `json:"customer_email" jsonschema_description:"Customer's email for verification"`
}

// OrderItemInfo is one line of an order in a tool result.
type OrderItemInfo struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Quantity int32   `json:"quantity"`
	Price    float64 `json:"price"`
}

// GetOrderStatusOutput is the get_order_status result envelope.
type GetOrderStatusOutput struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message,omitempty"`
	OrderID      string          `json:"order_id,omitempty"`
	Status       string          `json:"status,omitempty"`
	OrderDate    string          `json:"order_date,omitempty"`
	Total        string          `json:"total,omitempty"`
	Items        []OrderItemInfo `json:"items,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
}

// InitiateReturnInput defines input for the initiate_return tool.
type InitiateReturnInput struct {
	OrderID       string `json:"order_id" jsonschema_description:"The order ID"`
	ProductSKU    string `json:"product_sku" jsonschema_description:"Product SKU to return (e.g., SKU001)"`
	Reason        string `json:"reason" jsonschema_description:"Reason for return"`
	CustomerEmail string `json:"customer_email" jsonschema_description:"Customer's email for verification"`
}

// InitiateReturnOutput is the initiate_return result envelope.
type InitiateReturnOutput struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ReturnID  string `json:"return_id,omitempty"`
	NextSteps string `json:"next_steps,omitempty"`
}

// ListOrdersInput defines input for the list_customer_orders tool.
type ListOrdersInput struct {
	CustomerEmail string `json:"customer_email" jsonschema_description:"Customer's email address"`
}

// OrderSummaryInfo is one order in a list_customer_orders result.
type OrderSummaryInfo struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	Total      string `json:"total"`
	Date       string `json:"date"`
	ItemsCount int32  `json:"items_count"`
}

// ListOrdersOutput is the list_customer_orders result envelope.
type ListOrdersOutput struct {
	Success      bool               `json:"success"`
	Message      string             `json:"message,omitempty"`
	CustomerName string             `json:"customer_name,omitempty"`
	Orders       []OrderSummaryInfo `json:"orders,omitempty"`
}

// Orders holds dependencies for the order tool handlers.
type Orders struct {
	store  OrderStore
	now    func() time.Time
	logger *slog.Logger
}

// NewOrders creates an Orders instance.
func NewOrders(orderStore OrderStore, logger *slog.Logger) (*Orders, error) {
	if orderStore == nil {
		return nil, errors.New("order store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orders{store: orderStore, now: time.Now, logger: logger}, nil
}

// RegisterOrders registers the order tools with Genkit.
func RegisterOrders(g *genkit.Genkit, o *Orders) ([]ai.Tool, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if o == nil {
		return nil, errors.New("Orders is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, GetOrderStatusName,
			"Get order status and details. Requires order ID and customer email. "+
				"The email must match the order's customer before any details are shown.",
			o.GetOrderStatus),
		genkit.DefineTool(g, InitiateReturnName,
			"Initiate a return request for a product in an order. Requires order ID, "+
				"product SKU, reason, and customer email. Returns are only possible "+
				"within 30 days of the order date.",
			o.InitiateReturn),
		genkit.DefineTool(g, ListOrdersName,
			"List all orders for a customer by email address.",
			o.ListOrders),
	}, nil
}

// GetOrderStatus looks up an order and returns its details once the caller's
// email matches the order's customer. The verification checks run in a fixed
// order so each failure mode has a distinct message.
func (o *Orders) GetOrderStatus(ctx *ai.ToolContext, input GetOrderStatusInput) (GetOrderStatusOutput, error) {
	o.logger.Info("get_order_status called", "order_id", input.OrderID)

	order, err := o.store.OrderByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return GetOrderStatusOutput{
				Success: false,
				Message: fmt.Sprintf("Order %s not found in our system.", input.OrderID),
			}, nil
		}
		return GetOrderStatusOutput{}, fmt.Errorf("looking up order: %w", err)
	}

	if !emailsMatch(order.Customer.Email, input.CustomerEmail) {
		return GetOrderStatusOutput{
			Success: false,
			Message: "The email doesn't match our records for this order.",
		}, nil
	}

	items := make([]OrderItemInfo, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemInfo{
			Name:     item.Product.Name,
			SKU:      item.Product.SKU,
			Quantity: item.Quantity,
			Price:    item.Product.Price,
		})
	}

	return GetOrderStatusOutput{
		Success:      true,
		OrderID:      order.ID,
		Status:       order.Status,
		OrderDate:    order.OrderDate.Format("2006-01-02"),
		Total:        fmt.Sprintf("$%.2f", order.Total),
		Items:        items,
		CustomerName: order.Customer.Name,
	}, nil
}

// InitiateReturn validates a return request and persists it. Checks run in
// order: order exists, email matches, product is in the order, window still
// open. Nothing is written unless every check passes.
func (o *Orders) InitiateReturn(ctx *ai.ToolContext, input InitiateReturnInput) (InitiateReturnOutput, error) {
	o.logger.Info("initiate_return called", "order_id", input.OrderID, "sku", input.ProductSKU)

	order, err := o.store.OrderByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return InitiateReturnOutput{
				Success: false,
				Message: fmt.Sprintf("Order %s not found.", input.OrderID),
			}, nil
		}
		return InitiateReturnOutput{}, fmt.Errorf("looking up order: %w", err)
	}

	if !emailsMatch(order.Customer.Email, input.CustomerEmail) {
		return InitiateReturnOutput{
			Success: false,
			Message: "Email doesn't match order records.",
		}, nil
	}

	inOrder := false
	for _, item := range order.Items {
		if item.Product.SKU == input.ProductSKU {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return InitiateReturnOutput{
			Success: false,
			Message: fmt.Sprintf("Product %s not found in order %s.", input.ProductSKU, input.OrderID),
		}, nil
	}

	days := int(o.now().UTC().Sub(order.OrderDate) / (24 * time.Hour))
	if days > ReturnWindowDays {
		return InitiateReturnOutput{
			Success: false,
			Message: fmt.Sprintf("Return window has expired. Order was placed %d days ago (limit: %d days).",
				days, ReturnWindowDays),
		}, nil
	}

	returnID := fmt.Sprintf("RET%d", rand.IntN(9000)+1000)
	ret := store.ReturnRequest{
		ID:         returnID,
		OrderID:    input.OrderID,
		ProductSKU: input.ProductSKU,
		Reason:     input.Reason,
		Status:     store.ReturnStatusPending,
	}
	if err := o.store.InsertReturn(ctx, ret); err != nil {
		return InitiateReturnOutput{}, fmt.Errorf("creating return request: %w", err)
	}

	return InitiateReturnOutput{
		Success: true,
		Message: fmt.Sprintf("Return request created successfully! Return ID: %s. "+
			"We'll email you a return label within 24 hours.", returnID),
		ReturnID:  returnID,
		NextSteps: "Pack the item in its original packaging and wait for the return label.",
	}, nil
}

// ListOrders lists order summaries for the customer with the given email.
func (o *Orders) ListOrders(ctx *ai.ToolContext, input ListOrdersInput) (ListOrdersOutput, error) {
	o.logger.Info("list_customer_orders called", "email", input.CustomerEmail)

	customer, err := o.store.CustomerByEmail(ctx, input.CustomerEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ListOrdersOutput{
				Success: false,
				Message: "No customer found with that email.",
			}, nil
		}
		return ListOrdersOutput{}, fmt.Errorf("looking up customer: %w", err)
	}

	summaries, err := o.store.OrdersByCustomer(ctx, customer.ID)
	if err != nil {
		return ListOrdersOutput{}, fmt.Errorf("listing orders: %w", err)
	}

	orders := make([]OrderSummaryInfo, 0, len(summaries))
	for _, sum := range summaries {
		orders = append(orders, OrderSummaryInfo{
			OrderID:    sum.ID,
			Status:     sum.Status,
			Total:      fmt.Sprintf("$%.2f", sum.Total),
			Date:       sum.OrderDate.Format("2006-01-02"),
			ItemsCount: sum.ItemCount,
		})
	}

	return ListOrdersOutput{
		Success:      true,
		CustomerName: customer.Name,
		Orders:       orders,
	}, nil
}
