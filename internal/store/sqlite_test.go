package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bot-loja/internal/logging"
	"bot-loja/migrations"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()

	s, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return s
}

func mustUser(t *testing.T, s *SQLite, id string, balance int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.EnsureUser(ctx, id, ""); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if balance != 0 {
		if _, err := s.AdjustBalance(ctx, id, balance); err != nil {
			t.Fatalf("fund user: %v", err)
		}
	}
}

func mustProduct(t *testing.T, s *SQLite, price, stock int64) *Product {
	t.Helper()
	p, err := s.AddProduct(context.Background(), NewProduct{
		Name:  "Conta Premium",
		Price: price,
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	return p
}

func TestEnsureUserIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, "5511999990000@s.whatsapp.net", "Maria")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if first.Balance != 0 {
		t.Fatalf("new user balance = %d, want 0", first.Balance)
	}
	if first.ReferralCode == nil || *first.ReferralCode != ReferralCode(first.ID) {
		t.Fatalf("referral code not assigned: %v", first.ReferralCode)
	}

	if _, err := s.AdjustBalance(ctx, first.ID, 500); err != nil {
		t.Fatalf("adjust balance: %v", err)
	}

	again, err := s.EnsureUser(ctx, first.ID, "Maria Again")
	if err != nil {
		t.Fatalf("re-ensure user: %v", err)
	}
	if again.Balance != 500 {
		t.Fatalf("re-registration reset balance: got %d, want 500", again.Balance)
	}
	if again.DisplayName == nil || *again.DisplayName != "Maria" {
		t.Fatalf("re-registration overwrote display name: %v", again.DisplayName)
	}
}

func TestAdjustBalanceGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "buyer", 300)

	if _, err := s.AdjustBalance(ctx, "missing", 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: got %v, want ErrNotFound", err)
	}

	if _, err := s.AdjustBalance(ctx, "buyer", -400); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v, want ErrInsufficientFunds", err)
	}

	balance, err := s.AdjustBalance(ctx, "buyer", -300)
	if err != nil {
		t.Fatalf("exact debit: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance after exact debit = %d, want 0", balance)
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "buyer", 1000)
	p := mustProduct(t, s, 400, 3)

	order, err := s.PlaceOrder(ctx, "buyer", p.ID, "acesso: x\nserial: y")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Price != 400 {
		t.Fatalf("order price = %d, want 400", order.Price)
	}
	if order.Credentials != "acesso: x\nserial: y" {
		t.Fatalf("order credentials = %q", order.Credentials)
	}

	user, err := s.GetUser(ctx, "buyer")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Balance != 600 {
		t.Fatalf("balance after purchase = %d, want 600", user.Balance)
	}

	product, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("stock after purchase = %d, want 2", product.Stock)
	}

	stats, err := s.UserStats(ctx, "buyer")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if stats.Orders != 1 || stats.TotalSpent != 400 {
		t.Fatalf("stats = %+v, want 1 order / 400 spent", stats)
	}
}

func TestPlaceOrderInsufficientFundsLeavesNothingBehind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "broke", 399)
	p := mustProduct(t, s, 400, 5)

	_, err := s.PlaceOrder(ctx, "broke", p.ID, "creds")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}

	user, _ := s.GetUser(ctx, "broke")
	if user.Balance != 399 {
		t.Fatalf("balance mutated on failed order: %d", user.Balance)
	}
	product, _ := s.GetProduct(ctx, p.ID)
	if product.Stock != 5 {
		t.Fatalf("stock mutated on failed order: %d", product.Stock)
	}
	stats, _ := s.UserStats(ctx, "broke")
	if stats.Orders != 0 {
		t.Fatalf("order row created on failed order")
	}
}

func TestPlaceOrderSoldOutAndInactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "buyer", 10000)

	soldOut := mustProduct(t, s, 400, 0)
	if _, err := s.PlaceOrder(ctx, "buyer", soldOut.ID, "creds"); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("sold out: got %v, want ErrProductUnavailable", err)
	}

	inactive := mustProduct(t, s, 400, 5)
	if err := s.DeactivateProduct(ctx, inactive.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.PlaceOrder(ctx, "buyer", inactive.ID, "creds"); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("inactive: got %v, want ErrProductUnavailable", err)
	}

	if _, err := s.PlaceOrder(ctx, "buyer", 9999, "creds"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v, want ErrNotFound", err)
	}
}

func TestPlaceOrderLastUnitConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustProduct(t, s, 100, 1)

	const buyers = 8
	for i := 0; i < buyers; i++ {
		mustUser(t, s, userN(i), 1000)
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.PlaceOrder(ctx, userN(i), p.ID, "creds")
		}(i)
	}
	wg.Wait()

	won := 0
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrProductUnavailable):
		default:
			t.Fatalf("buyer %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("%d buyers won the last unit, want exactly 1", won)
	}

	product, _ := s.GetProduct(ctx, p.ID)
	if product.Stock != 0 {
		t.Fatalf("stock = %d after selling out, want 0", product.Stock)
	}
}

func TestSettleDepositExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "payer", 0)

	if _, err := s.RecordDepositIntent(ctx, "payer", 400, "cs_test_1"); err != nil {
		t.Fatalf("record intent: %v", err)
	}

	first, err := s.SettleDeposit(ctx, "cs_test_1")
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if !first.Credited || first.NewBalance != 400 {
		t.Fatalf("first settle = %+v, want credited with balance 400", first)
	}

	second, err := s.SettleDeposit(ctx, "cs_test_1")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if second.Credited {
		t.Fatal("second settle credited again")
	}

	user, _ := s.GetUser(ctx, "payer")
	if user.Balance != 400 {
		t.Fatalf("balance = %d after replayed settle, want 400", user.Balance)
	}

	trx, err := s.GetTransactionBySession(ctx, "cs_test_1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if trx.Status != TxCompleted {
		t.Fatalf("transaction status = %q, want %q", trx.Status, TxCompleted)
	}
}

func TestSettleDepositConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "payer", 0)
	if _, err := s.RecordDepositIntent(ctx, "payer", 777, "cs_test_race"); err != nil {
		t.Fatalf("record intent: %v", err)
	}

	const settlers = 8
	var wg sync.WaitGroup
	credited := make([]bool, settlers)
	for i := 0; i < settlers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.SettleDeposit(ctx, "cs_test_race")
			if err == nil {
				credited[i] = res.Credited
			}
		}(i)
	}
	wg.Wait()

	n := 0
	for _, c := range credited {
		if c {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("%d settlers credited, want exactly 1", n)
	}

	user, _ := s.GetUser(ctx, "payer")
	if user.Balance != 777 {
		t.Fatalf("balance = %d, want 777", user.Balance)
	}
}

func TestSettleDepositUnknownSession(t *testing.T) {
	s := newTestStore(t)

	res, err := s.SettleDeposit(context.Background(), "cs_missing")
	if err != nil {
		t.Fatalf("settle unknown: %v", err)
	}
	if res.Credited {
		t.Fatal("unknown session credited")
	}
}

func TestExpireStaleDepositsBlocksSettlement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "payer", 0)
	if _, err := s.RecordDepositIntent(ctx, "payer", 400, "cs_stale"); err != nil {
		t.Fatalf("record intent: %v", err)
	}

	// A cutoff in the future makes every pending row stale.
	n, err := s.ExpireStaleDeposits(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d rows, want 1", n)
	}

	trx, _ := s.GetTransactionBySession(ctx, "cs_stale")
	if trx.Status != TxExpired {
		t.Fatalf("status = %q, want %q", trx.Status, TxExpired)
	}

	res, err := s.SettleDeposit(ctx, "cs_stale")
	if err != nil {
		t.Fatalf("settle expired: %v", err)
	}
	if res.Credited {
		t.Fatal("expired deposit credited")
	}
	user, _ := s.GetUser(ctx, "payer")
	if user.Balance != 0 {
		t.Fatalf("balance = %d after expired settle, want 0", user.Balance)
	}
}

func TestExpireStaleDepositsSkipsFreshAndCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "payer", 0)

	if _, err := s.RecordDepositIntent(ctx, "payer", 100, "cs_fresh"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if _, err := s.RecordDepositIntent(ctx, "payer", 200, "cs_done"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if _, err := s.SettleDeposit(ctx, "cs_done"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	n, err := s.ExpireStaleDeposits(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired %d fresh rows, want 0", n)
	}

	trx, _ := s.GetTransactionBySession(ctx, "cs_done")
	if trx.Status != TxCompleted {
		t.Fatalf("completed transaction touched by sweep: %q", trx.Status)
	}
}

func TestListProductsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	logins := mustProduct(t, s, 400, 2)
	streaming, err := s.AddProduct(ctx, NewProduct{Name: "Streaming", Price: 900, Stock: 1, Category: "streaming"})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	hidden := mustProduct(t, s, 100, 1)
	if err := s.DeactivateProduct(ctx, hidden.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	all, err := s.ListProducts(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list all returned %d products, want 2", len(all))
	}

	onlyStreaming, err := s.ListProducts(ctx, "streaming")
	if err != nil {
		t.Fatalf("list category: %v", err)
	}
	if len(onlyStreaming) != 1 || onlyStreaming[0].ID != streaming.ID {
		t.Fatalf("category filter wrong: %+v", onlyStreaming)
	}

	if _, err := s.GetProduct(ctx, logins.ID); err != nil {
		t.Fatalf("get product: %v", err)
	}
}

func userN(i int) string {
	return "user" + string(rune('a'+i))
}
