package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AmolNarang/orderassistant/db"
	"github.com/AmolNarang/orderassistant/internal/config"
	"github.com/AmolNarang/orderassistant/internal/log"
	"github.com/AmolNarang/orderassistant/internal/store"
)

const seedTimeout = 30 * time.Second

// runSeed migrates the database and loads the demo dataset. It does not need
// an AI provider, so it connects directly instead of going through app.Setup.
func runSeed(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := store.New(pool, logger).Seed(ctx); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	fmt.Println("Database seeded with demo data.")
	fmt.Println()
	fmt.Println("Test emails:")
	fmt.Println("  - john@example.com (Order: ORD001)")
	fmt.Println("  - jane@example.com (Order: ORD002)")
	fmt.Println("  - bob@example.com  (Order: ORD003)")
	return nil
}
