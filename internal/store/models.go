package store

import "time"

// User represents a users table row. ID is the immutable chat-platform
// identifier; Balance is centavos.
type User struct {
	ID           string
	DisplayName  *string
	Balance      int64
	ReferralCode *string
	ReferredBy   *string
	CreatedAt    time.Time
}

// Product represents a products table row. Price is centavos; Stock may reach
// zero, which delists the product from purchase but not from the catalog row.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       int64
	Stock       int64
	Category    string
	Active      bool
	CreatedAt   time.Time
}

// NewProduct carries data for catalog seeding and the admin path.
type NewProduct struct {
	Name        string
	Description string
	Price       int64
	Stock       int64
	Category    string
}

// Order represents an orders table row. Price is captured at purchase time
// and never changes afterwards, even if the product is repriced.
type Order struct {
	ID          int64
	UserID      string
	ProductID   int64
	Price       int64
	Credentials string
	Status      string
	CreatedAt   time.Time
}

// Transaction represents a transactions table row. SessionID is the external
// checkout session identifier and doubles as the idempotency key.
type Transaction struct {
	ID        int64
	UserID    string
	Amount    int64
	Type      string
	SessionID string
	Status    string
	CreatedAt time.Time
}

// Transaction status values. A transaction moves pending -> completed exactly
// once, or pending -> expired via the stale-deposit sweep.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxExpired   = "expired"
)

// TxTypeDeposit is the only transaction type currently produced.
const TxTypeDeposit = "deposit"

// OrderCompleted is the only order status currently produced.
const OrderCompleted = "completed"

// Settlement reports the outcome of SettleDeposit. Credited is false when the
// session is unknown or the transaction already left the pending state; in
// that case no side effects happened.
type Settlement struct {
	Credited   bool
	UserID     string
	Amount     int64
	NewBalance int64
}

// UserStats aggregates a user's purchase history for the profile view.
type UserStats struct {
	Orders     int64
	TotalSpent int64
}
