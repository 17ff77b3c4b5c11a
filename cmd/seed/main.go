// Command seed loads an initial catalog into the store from a JSON file.
//
// File format:
//
//	[{"name": "...", "description": "...", "price": "12,00", "stock": 5, "category": "logins"}]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"bot-loja/internal/logging"
	"bot-loja/internal/money"
	"bot-loja/internal/store"
	"bot-loja/migrations"

	"github.com/joho/godotenv"
)

type seedProduct struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int64  `json:"stock"`
	Category    string `json:"category"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		dsn  = flag.String("dsn", os.Getenv("DATABASE_URL"), "database DSN (postgres:// or sqlite file:)")
		file = flag.String("file", "seed.json", "JSON file with products to load")
	)
	flag.Parse()

	if *dsn == "" {
		return fmt.Errorf("dsn is required (flag -dsn or DATABASE_URL)")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var products []seedProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(products) == 0 {
		return fmt.Errorf("seed file %s contains no products", *file)
	}

	logger := logging.NewLogger("info")
	ctx := context.Background()

	st, err := store.Open(ctx, *dsn, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	for _, p := range products {
		price, err := money.Parse(p.Price)
		if err != nil || price <= 0 {
			return fmt.Errorf("product %q: invalid price %q", p.Name, p.Price)
		}
		created, err := st.AddProduct(ctx, store.NewProduct{
			Name:        p.Name,
			Description: p.Description,
			Price:       price,
			Stock:       p.Stock,
			Category:    p.Category,
		})
		if err != nil {
			return fmt.Errorf("add product %q: %w", p.Name, err)
		}
		logger.Info("product seeded", "product_id", created.ID, "name", created.Name, "price", created.Price, "stock", created.Stock)
	}

	logger.Info("catalog seeded", "count", len(products))
	return nil
}
