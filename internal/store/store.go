// Package store implements the relational domain store for customers,
// products, orders, order items, and returns.
//
// Store owns no agent logic: it exposes the read operations the tool set
// needs (order by id, customer by email, a customer's orders, product by
// SKU), two bounded write transactions (return insertion, checkout), and a
// read-only query path for the analytics synthesizer.
//
// Store is safe for concurrent use by multiple goroutines.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides PostgreSQL-backed domain persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// OrderByID retrieves an order with its customer and items.
// Returns ErrNotFound when no such order exists.
func (s *Store) OrderByID(ctx context.Context, orderID string) (*Order, error) {
	const orderQuery = `
		SELECT o.id, o.total, o.status, o.order_date,
		       c.id, c.name, c.email, COALESCE(c.phone, '')
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`

	var o Order
	err := s.pool.QueryRow(ctx, orderQuery, orderID).Scan(
		&o.ID, &o.Total, &o.Status, &o.OrderDate,
		&o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("querying order %s: %w", orderID, err)
	}

	const itemsQuery = `
		SELECT p.id, p.sku, p.name, p.price, oi.quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	rows, err := s.pool.Query(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.Product.ID, &item.Product.SKU, &item.Product.Name,
			&item.Product.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading order items: %w", err)
	}

	return &o, nil
}

// CustomerByEmail retrieves a customer by email, compared case-insensitively.
// Returns ErrNotFound when no customer has that email.
func (s *Store) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	const query = `
		SELECT id, name, email, COALESCE(phone, '')
		FROM customers
		WHERE LOWER(email) = LOWER($1)`

	var c Customer
	err := s.pool.QueryRow(ctx, query, email).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("querying customer by email: %w", err)
	}
	return &c, nil
}

// OrdersByCustomer lists order summaries for a customer in natural storage
// order. An empty slice is a valid result for a customer with no orders.
func (s *Store) OrdersByCustomer(ctx context.Context, customerID int32) ([]OrderSummary, error) {
	const query = `
		SELECT o.id, o.status, o.total, o.order_date,
		       (SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id)
		FROM orders o
		WHERE o.customer_id = $1`

	rows, err := s.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying orders for customer %d: %w", customerID, err)
	}
	defer rows.Close()

	summaries := make([]OrderSummary, 0)
	for rows.Next() {
		var sum OrderSummary
		if err := rows.Scan(&sum.ID, &sum.Status, &sum.Total, &sum.OrderDate, &sum.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning order summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading order summaries: %w", err)
	}

	return summaries, nil
}

// ProductBySKU retrieves a product by its SKU.
// Returns ErrNotFound when no product has that SKU.
func (s *Store) ProductBySKU(ctx context.Context, sku string) (*Product, error) {
	const query = `SELECT id, sku, name, price FROM products WHERE sku = $1`

	var p Product
	err := s.pool.QueryRow(ctx, query, sku).Scan(&p.ID, &p.SKU, &p.Name, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", sku, ErrNotFound)
		}
		return nil, fmt.Errorf("querying product %s: %w", sku, err)
	}
	return &p, nil
}

// Products lists all products ordered by SKU.
func (s *Store) Products(ctx context.Context) ([]Product, error) {
	const query = `SELECT id, sku, name, price FROM products ORDER BY sku`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}

	return products, nil
}

// InsertReturn persists a new return request. The caller is responsible for
// all verification checks; this is a single bounded write.
func (s *Store) InsertReturn(ctx context.Context, ret ReturnRequest) error {
	const query = `
		INSERT INTO returns (id, order_id, product_sku, reason, status)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, ret.ID, ret.OrderID, ret.ProductSKU, ret.Reason, ret.Status)
	if err != nil {
		return fmt.Errorf("inserting return %s: %w", ret.ID, err)
	}

	s.logger.Debug("created return request", "return_id", ret.ID, "order_id", ret.OrderID)
	return nil
}

// orderIDLockKey scopes the transaction-level advisory lock that serializes
// order id generation across concurrent checkouts.
const orderIDLockKey = 7541

const (
	acquireOrderIDLockSQL = `SELECT pg_advisory_xact_lock($1)`

	nextOrderIDSQL = `
		SELECT 'ORD' || LPAD((COALESCE(MAX(SUBSTRING(id FROM 4)::int), 0) + 1)::text, 3, '0')
		FROM orders WHERE id ~ '^ORD[0-9]+$'`
)

// CreateOrder inserts an order and its items as a single transaction.
// The total is computed from current product prices; either the full write
// commits or none of it does.
func (s *Store) CreateOrder(ctx context.Context, customerID int32, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, errors.New("order must contain at least one line")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	// Resolve products and compute the total at creation time.
	var total float64
	products := make([]Product, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: quantity must be positive", i)
		}
		var p Product
		err := tx.QueryRow(ctx, `SELECT id, sku, name, price FROM products WHERE sku = $1`, line.SKU).
			Scan(&p.ID, &p.SKU, &p.Name, &p.Price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", line.SKU, ErrNotFound)
			}
			return nil, fmt.Errorf("resolving product %s: %w", line.SKU, err)
		}
		products[i] = p
		total += p.Price * float64(line.Quantity)
	}

	// Next ORD### identifier. Two concurrent checkouts would read the same
	// MAX under READ COMMITTED, so the id is generated under an advisory
	// lock held until this transaction ends.
	if _, err := tx.Exec(ctx, acquireOrderIDLockSQL, orderIDLockKey); err != nil {
		return nil, fmt.Errorf("locking order id generation: %w", err)
	}
	var orderID string
	err = tx.QueryRow(ctx, nextOrderIDSQL).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("generating order id: %w", err)
	}

	var o Order
	o.ID = orderID
	o.Total = total
	o.Status = StatusPending
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, total, status)
		VALUES ($1, $2, $3, $4)
		RETURNING order_date`,
		orderID, customerID, total, StatusPending).Scan(&o.OrderDate)
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}

	for i, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity)
			VALUES ($1, $2, $3)`,
			orderID, products[i].ID, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("inserting order item %s: %w", line.SKU, err)
		}
		o.Items = append(o.Items, OrderItem{Product: products[i], Quantity: line.Quantity})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}

	s.logger.Info("created order", "order_id", orderID, "customer_id", customerID, "total", total)
	return &o, nil
}
