package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the Store implementation backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres opens a connection pool against databaseURL.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With("component", "store_postgres"),
	}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// RunMigrations applies the postgres/ migration files in lexicographical
// order, each inside its own transaction.
func (p *Postgres) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	sub, err := fs.Sub(filesystem, "postgres")
	if err != nil {
		return fmt.Errorf("postgres migrations dir: %w", err)
	}
	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sqlBytes, err := fs.ReadFile(sub, entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(sqlBytes) == 0 {
			continue
		}
		err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			_, execErr := tx.Exec(ctx, string(sqlBytes))
			return execErr
		})
		if err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// -- Users --

func (p *Postgres) EnsureUser(ctx context.Context, id, displayName string) (*User, error) {
	const insertQ = `
INSERT INTO users (user_id, display_name, referral_code)
VALUES ($1, NULLIF($2, ''), $3)
ON CONFLICT (user_id) DO NOTHING;
`
	if _, err := p.pool.Exec(ctx, insertQ, id, displayName, ReferralCode(id)); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return p.GetUser(ctx, id)
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT user_id, display_name, balance, referral_code, referred_by, created_at
FROM users
WHERE user_id = $1
LIMIT 1;
`
	var u User
	err := p.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.DisplayName, &u.Balance, &u.ReferralCode, &u.ReferredBy, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	const q = `
UPDATE users SET balance = balance + $2
WHERE user_id = $1 AND balance + $2 >= 0
RETURNING balance;
`
	var balance int64
	err := p.pool.QueryRow(ctx, q, id, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing user and refused debit both produce zero rows.
		if _, getErr := p.GetUser(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("user %s: %w", id, ErrInsufficientFunds)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

func (p *Postgres) UserStats(ctx context.Context, id string) (*UserStats, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(price), 0)
FROM orders
WHERE user_id = $1;
`
	var st UserStats
	if err := p.pool.QueryRow(ctx, q, id).Scan(&st.Orders, &st.TotalSpent); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &st, nil
}

// -- Products --

func (p *Postgres) ListProducts(ctx context.Context, category string) ([]Product, error) {
	const q = `
SELECT id, name, description, price, stock, category, is_active, created_at
FROM products
WHERE is_active AND ($1 = '' OR category = $1)
ORDER BY id ASC;
`
	rows, err := p.pool.Query(ctx, q, category)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var prod Product
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Description, &prod.Price, &prod.Stock, &prod.Category, &prod.Active, &prod.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (p *Postgres) GetProduct(ctx context.Context, id int64) (*Product, error) {
	const q = `
SELECT id, name, description, price, stock, category, is_active, created_at
FROM products
WHERE id = $1
LIMIT 1;
`
	var prod Product
	err := p.pool.QueryRow(ctx, q, id).Scan(&prod.ID, &prod.Name, &prod.Description, &prod.Price, &prod.Stock, &prod.Category, &prod.Active, &prod.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &prod, nil
}

func (p *Postgres) AddProduct(ctx context.Context, np NewProduct) (*Product, error) {
	if np.Category == "" {
		np.Category = "logins"
	}
	const q = `
INSERT INTO products (name, description, price, stock, category)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, description, price, stock, category, is_active, created_at;
`
	var prod Product
	err := p.pool.QueryRow(ctx, q, np.Name, np.Description, np.Price, np.Stock, np.Category).
		Scan(&prod.ID, &prod.Name, &prod.Description, &prod.Price, &prod.Stock, &prod.Category, &prod.Active, &prod.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add product: %w", err)
	}
	return &prod, nil
}

func (p *Postgres) DeactivateProduct(ctx context.Context, id int64) error {
	const q = `UPDATE products SET is_active = FALSE WHERE id = $1;`
	ct, err := p.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// -- Orders --

// PlaceOrder mirrors the SQLite implementation: conditional stock decrement,
// order insert at current price and conditional debit in one transaction.
func (p *Postgres) PlaceOrder(ctx context.Context, userID string, productID int64, credentials string) (*Order, error) {
	var order Order
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var price int64
		err := tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1 LIMIT 1;`, productID).Scan(&price)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load product price: %w", err)
		}

		ct, err := tx.Exec(ctx, `
UPDATE products SET stock = stock - 1
WHERE id = $1 AND is_active AND stock > 0;
`, productID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("product %d: %w", productID, ErrProductUnavailable)
		}

		ct, err = tx.Exec(ctx, `
UPDATE users SET balance = balance - $1
WHERE user_id = $2 AND balance >= $1;
`, price, userID)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("user %s: %w", userID, ErrInsufficientFunds)
		}

		err = tx.QueryRow(ctx, `
INSERT INTO orders (user_id, product_id, price, credentials, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, product_id, price, credentials, status, created_at;
`, userID, productID, price, credentials, OrderCompleted).
			Scan(&order.ID, &order.UserID, &order.ProductID, &order.Price, &order.Credentials, &order.Status, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// -- Transactions --

func (p *Postgres) RecordDepositIntent(ctx context.Context, userID string, amount int64, sessionID string) (*Transaction, error) {
	const q = `
INSERT INTO transactions (user_id, amount, type, session_id, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, amount, type, session_id, status, created_at;
`
	var trx Transaction
	err := p.pool.QueryRow(ctx, q, userID, amount, TxTypeDeposit, sessionID, TxPending).
		Scan(&trx.ID, &trx.UserID, &trx.Amount, &trx.Type, &trx.SessionID, &trx.Status, &trx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record deposit intent: %w", err)
	}
	return &trx, nil
}

func (p *Postgres) GetTransactionBySession(ctx context.Context, sessionID string) (*Transaction, error) {
	const q = `
SELECT id, user_id, amount, type, session_id, status, created_at
FROM transactions
WHERE session_id = $1
LIMIT 1;
`
	var trx Transaction
	err := p.pool.QueryRow(ctx, q, sessionID).
		Scan(&trx.ID, &trx.UserID, &trx.Amount, &trx.Type, &trx.SessionID, &trx.Status, &trx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by session: %w", err)
	}
	return &trx, nil
}

// SettleDeposit performs the pending -> completed flip and the wallet credit
// in one transaction; the conditional UPDATE guarantees at most one credit
// per session under concurrent polling.
func (p *Postgres) SettleDeposit(ctx context.Context, sessionID string) (*Settlement, error) {
	settlement := &Settlement{}
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var userID string
		var amount int64
		err := tx.QueryRow(ctx, `
SELECT user_id, amount FROM transactions WHERE session_id = $1 LIMIT 1;
`, sessionID).Scan(&userID, &amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		settlement.UserID = userID
		settlement.Amount = amount

		ct, err := tx.Exec(ctx, `
UPDATE transactions SET status = $1
WHERE session_id = $2 AND status = $3;
`, TxCompleted, sessionID, TxPending)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		err = tx.QueryRow(ctx, `
UPDATE users SET balance = balance + $1 WHERE user_id = $2
RETURNING balance;
`, amount, userID).Scan(&settlement.NewBalance)
		if err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		settlement.Credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (p *Postgres) ExpireStaleDeposits(ctx context.Context, olderThan time.Time) (int64, error) {
	const q = `
UPDATE transactions SET status = $1
WHERE status = $2 AND created_at < $3;
`
	ct, err := p.pool.Exec(ctx, q, TxExpired, TxPending, olderThan)
	if err != nil {
		return 0, fmt.Errorf("expire stale deposits: %w", err)
	}
	return ct.RowsAffected(), nil
}
