// Package store is the single writer and reader of durable state. All
// multi-step mutations (order placement, deposit settlement) are exposed as
// atomic operations; callers never touch raw rows.
package store

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrNotFound signals a missing user, product or transaction.
	ErrNotFound = errors.New("not found")
	// ErrProductUnavailable signals a product that is inactive or out of stock.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrInsufficientFunds signals a debit larger than the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store defines the persistence interface shared by both backends.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Users
	EnsureUser(ctx context.Context, id, displayName string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	AdjustBalance(ctx context.Context, id string, delta int64) (int64, error)
	UserStats(ctx context.Context, id string) (*UserStats, error)

	// Products
	ListProducts(ctx context.Context, category string) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	AddProduct(ctx context.Context, p NewProduct) (*Product, error)
	DeactivateProduct(ctx context.Context, id int64) error

	// Orders
	PlaceOrder(ctx context.Context, userID string, productID int64, credentials string) (*Order, error)

	// Transactions
	RecordDepositIntent(ctx context.Context, userID string, amount int64, sessionID string) (*Transaction, error)
	GetTransactionBySession(ctx context.Context, sessionID string) (*Transaction, error)
	SettleDeposit(ctx context.Context, sessionID string) (*Settlement, error)
	ExpireStaleDeposits(ctx context.Context, olderThan time.Time) (int64, error)
}

// Open picks a backend by DSN: postgres:// URLs go through pgx, anything else
// is treated as an SQLite database path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgres(ctx, dsn, logger)
	}
	return NewSQLite(ctx, dsn, logger)
}

// ReferralCode derives the referral code assigned at user creation. It is
// recorded but not yet redeemed anywhere.
func ReferralCode(userID string) string {
	return "REF" + userID
}
