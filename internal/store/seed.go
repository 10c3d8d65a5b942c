package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type seedOrder struct {
	id         string
	customer   string // email
	total      float64
	status     string
	ageDays    int
	itemSKUs   []string
	quantities []int32
}

// Seed replaces all domain data with a small demo dataset: three customers,
// ten products, and three orders at different stages of fulfilment.
func (s *Store) Seed(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("seed rollback", "error", err)
		}
	}()

	for _, table := range []string{"returns", "order_items", "orders", "products", "customers"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	customers := []Customer{
		{Name: "John Doe", Email: "john@example.com", Phone: "555-0001"},
		{Name: "Jane Smith", Email: "jane@example.com", Phone: "555-0002"},
		{Name: "Bob Wilson", Email: "bob@example.com", Phone: "555-0003"},
	}
	customerIDs := make(map[string]int32, len(customers))
	for _, c := range customers {
		var id int32
		err := tx.QueryRow(ctx, `
			INSERT INTO customers (name, email, phone) VALUES ($1, $2, $3)
			RETURNING id`, c.Name, c.Email, c.Phone).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting customer %s: %w", c.Email, err)
		}
		customerIDs[c.Email] = id
	}

	products := []Product{
		{SKU: "SKU001", Name: "Wireless Headphones", Price: 49.99},
		{SKU: "SKU002", Name: "USB-C Cable (6ft)", Price: 15.99},
		{SKU: "SKU003", Name: "Phone Case - Black", Price: 25.00},
		{SKU: "SKU004", Name: "Screen Protector", Price: 12.99},
		{SKU: "SKU005", Name: "Bluetooth Speaker", Price: 79.99},
		{SKU: "SKU006", Name: "Wireless Mouse", Price: 29.99},
		{SKU: "SKU007", Name: "Keyboard - Mechanical", Price: 89.99},
		{SKU: "SKU008", Name: "Laptop Stand", Price: 39.99},
		{SKU: "SKU009", Name: "Webcam HD", Price: 59.99},
		{SKU: "SKU010", Name: "USB Hub 4-Port", Price: 19.99},
	}
	productIDs := make(map[string]int32, len(products))
	for _, p := range products {
		var id int32
		err := tx.QueryRow(ctx, `
			INSERT INTO products (sku, name, price) VALUES ($1, $2, $3)
			RETURNING id`, p.SKU, p.Name, p.Price).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting product %s: %w", p.SKU, err)
		}
		productIDs[p.SKU] = id
	}

	orders := []seedOrder{
		{id: "ORD001", customer: "john@example.com", total: 49.99, status: StatusDelivered,
			ageDays: 10, itemSKUs: []string{"SKU001"}, quantities: []int32{1}},
		{id: "ORD002", customer: "jane@example.com", total: 28.98, status: StatusShipped,
			ageDays: 3, itemSKUs: []string{"SKU002", "SKU004"}, quantities: []int32{1, 1}},
		{id: "ORD003", customer: "bob@example.com", total: 104.99, status: StatusPending,
			ageDays: 1, itemSKUs: []string{"SKU003", "SKU005"}, quantities: []int32{1, 1}},
	}
	now := time.Now().UTC()
	for _, o := range orders {
		orderDate := now.AddDate(0, 0, -o.ageDays)
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, customer_id, total, status, order_date)
			VALUES ($1, $2, $3, $4, $5)`,
			o.id, customerIDs[o.customer], o.total, o.status, orderDate)
		if err != nil {
			return fmt.Errorf("inserting order %s: %w", o.id, err)
		}
		for i, sku := range o.itemSKUs {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity)
				VALUES ($1, $2, $3)`, o.id, productIDs[sku], o.quantities[i])
			if err != nil {
				return fmt.Errorf("inserting item %s for order %s: %w", sku, o.id, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}

	s.logger.Info("seeded demo data",
		"customers", len(customers), "products", len(products), "orders", len(orders))
	return nil
}
