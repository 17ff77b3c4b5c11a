package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// -- Users --

func (s *SQLite) EnsureUser(ctx context.Context, id, displayName string) (*User, error) {
	const insertQ = `
INSERT INTO users (user_id, display_name, referral_code)
VALUES (?, NULLIF(?, ''), ?)
ON CONFLICT (user_id) DO NOTHING;
`
	if _, err := s.db.ExecContext(ctx, insertQ, id, displayName, ReferralCode(id)); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLite) GetUser(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT user_id, display_name, balance, referral_code, referred_by, created_at
FROM users
WHERE user_id = ?
LIMIT 1;
`
	var u User
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.DisplayName, &u.Balance, &u.ReferralCode, &u.ReferredBy, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *SQLite) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	const q = `
UPDATE users SET balance = balance + ?
WHERE user_id = ? AND balance + ? >= 0
RETURNING balance;
`
	var balance int64
	err := s.db.QueryRowContext(ctx, q, delta, id, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// Missing user and refused debit both produce zero rows.
		if _, getErr := s.GetUser(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("user %s: %w", id, ErrInsufficientFunds)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

func (s *SQLite) UserStats(ctx context.Context, id string) (*UserStats, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(price), 0)
FROM orders
WHERE user_id = ?;
`
	var st UserStats
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&st.Orders, &st.TotalSpent); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &st, nil
}

// -- Products --

func (s *SQLite) ListProducts(ctx context.Context, category string) ([]Product, error) {
	const q = `
SELECT id, name, description, price, stock, category, is_active, created_at
FROM products
WHERE is_active = 1 AND (? = '' OR category = ?)
ORDER BY id ASC;
`
	rows, err := s.db.QueryContext(ctx, q, category, category)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (s *SQLite) GetProduct(ctx context.Context, id int64) (*Product, error) {
	const q = `
SELECT id, name, description, price, stock, category, is_active, created_at
FROM products
WHERE id = ?
LIMIT 1;
`
	var p Product
	err := s.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (s *SQLite) AddProduct(ctx context.Context, np NewProduct) (*Product, error) {
	if np.Category == "" {
		np.Category = "logins"
	}
	const q = `
INSERT INTO products (name, description, price, stock, category)
VALUES (?, ?, ?, ?, ?)
RETURNING id, name, description, price, stock, category, is_active, created_at;
`
	var p Product
	err := s.db.QueryRowContext(ctx, q, np.Name, np.Description, np.Price, np.Stock, np.Category).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add product: %w", err)
	}
	return &p, nil
}

func (s *SQLite) DeactivateProduct(ctx context.Context, id int64) error {
	const q = `UPDATE products SET is_active = 0 WHERE id = ?;`
	ct, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if n, _ := ct.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// -- Orders --

// PlaceOrder decrements stock, inserts the order at the product's current
// price and debits the buyer inside one transaction. Stock and balance guards
// live in the UPDATE conditions so concurrent racers lose cleanly instead of
// double-spending.
func (s *SQLite) PlaceOrder(ctx context.Context, userID string, productID int64, credentials string) (*Order, error) {
	var order Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var price int64
		err := tx.QueryRowContext(ctx, `SELECT price FROM products WHERE id = ? LIMIT 1;`, productID).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load product price: %w", err)
		}

		ct, err := tx.ExecContext(ctx, `
UPDATE products SET stock = stock - 1
WHERE id = ? AND is_active = 1 AND stock > 0;
`, productID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if n, _ := ct.RowsAffected(); n == 0 {
			return fmt.Errorf("product %d: %w", productID, ErrProductUnavailable)
		}

		ct, err = tx.ExecContext(ctx, `
UPDATE users SET balance = balance - ?
WHERE user_id = ? AND balance >= ?;
`, price, userID, price)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		if n, _ := ct.RowsAffected(); n == 0 {
			return fmt.Errorf("user %s: %w", userID, ErrInsufficientFunds)
		}

		err = tx.QueryRowContext(ctx, `
INSERT INTO orders (user_id, product_id, price, credentials, status)
VALUES (?, ?, ?, ?, ?)
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

func (s *SQLite) RecordDepositIntent(ctx context.Context, userID string, amount int64, sessionID string) (*Transaction, error) {
	const q = `
INSERT INTO transactions (user_id, amount, type, session_id, status)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, amount, type, session_id, status, created_at;
`
	var trx Transaction
	err := s.db.QueryRowContext(ctx, q, userID, amount, TxTypeDeposit, sessionID, TxPending).
		Scan(&trx.ID, &trx.UserID, &trx.Amount, &trx.Type, &trx.SessionID, &trx.Status, &trx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record deposit intent: %w", err)
	}
	return &trx, nil
}

func (s *SQLite) GetTransactionBySession(ctx context.Context, sessionID string) (*Transaction, error) {
	const q = `
SELECT id, user_id, amount, type, session_id, status, created_at
FROM transactions
WHERE session_id = ?
LIMIT 1;
`
	var trx Transaction
	err := s.db.QueryRowContext(ctx, q, sessionID).
		Scan(&trx.ID, &trx.UserID, &trx.Amount, &trx.Type, &trx.SessionID, &trx.Status, &trx.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by session: %w", err)
	}
	return &trx, nil
}

// SettleDeposit flips the transaction pending -> completed and credits the
// wallet in one transaction. The status flip is a conditional UPDATE, so of N
// concurrent calls for the same session exactly one observes a row change and
// credits; the rest report Credited=false with no side effects.
func (s *SQLite) SettleDeposit(ctx context.Context, sessionID string) (*Settlement, error) {
	settlement := &Settlement{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var userID string
		var amount int64
		err := tx.QueryRowContext(ctx, `
SELECT user_id, amount FROM transactions WHERE session_id = ? LIMIT 1;
`, sessionID).Scan(&userID, &amount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil // unknown session, not credited
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		settlement.UserID = userID
		settlement.Amount = amount

		ct, err := tx.ExecContext(ctx, `
UPDATE transactions SET status = ?
WHERE session_id = ? AND status = ?;
`, TxCompleted, sessionID, TxPending)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		if n, _ := ct.RowsAffected(); n == 0 {
			return nil // already completed or expired
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE users SET balance = balance + ? WHERE user_id = ?;
`, amount, userID); err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `
SELECT balance FROM users WHERE user_id = ? LIMIT 1;
`, userID).Scan(&settlement.NewBalance); err != nil {
			return fmt.Errorf("reload balance: %w", err)
		}
		settlement.Credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (s *SQLite) ExpireStaleDeposits(ctx context.Context, olderThan time.Time) (int64, error) {
	const q = `
UPDATE transactions SET status = ?
WHERE status = ? AND created_at < ?;
`
	// created_at defaults to CURRENT_TIMESTAMP, which SQLite stores as
	// "YYYY-MM-DD HH:MM:SS" UTC text; bind the cutoff in the same shape so the
	// comparison is lexicographic-safe.
	cutoff := olderThan.UTC().Format("2006-01-02 15:04:05")
	ct, err := s.db.ExecContext(ctx, q, TxExpired, TxPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire stale deposits: %w", err)
	}
	n, _ := ct.RowsAffected()
	return n, nil
}
