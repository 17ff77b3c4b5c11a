package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"

	"bot-loja/internal/logging"
	"bot-loja/internal/pay"
	"bot-loja/internal/store"
	"bot-loja/internal/wallet"
	"bot-loja/migrations"
)

const payerJID = "5511999990000@s.whatsapp.net"

type stubGateway struct {
	paid map[string]bool
	next int
}

func (g *stubGateway) CreateCheckout(_ context.Context, _ pay.CheckoutRequest) (*pay.CheckoutSession, error) {
	g.next++
	id := fmt.Sprintf("cs_stub_%d", g.next)
	return &pay.CheckoutSession{SessionID: id, CheckoutURL: "https://checkout.test/" + id}, nil
}

func (g *stubGateway) IsPaid(_ context.Context, sessionID string) (bool, error) {
	return g.paid[sessionID], nil
}

type recordingNotifier struct {
	sent []string
	to   []types.JID
}

func (n *recordingNotifier) SendText(_ context.Context, to types.JID, text string) error {
	n.to = append(n.to, to)
	n.sent = append(n.sent, text)
	return nil
}

func newProcessorTest(t *testing.T) (*StripeWebhookProcessor, *recordingNotifier, store.Store, *stubGateway) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(ctx, filepath.Join(t.TempDir(), "hooks.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.RunMigrations(ctx, migrations.Files))

	_, err = st.EnsureUser(ctx, payerJID, "")
	require.NoError(t, err)

	gateway := &stubGateway{paid: map[string]bool{}}
	walletEngine := wallet.New(st, gateway, wallet.Config{MinDeposit: 400}, nil, logging.Discard())

	notifier := &recordingNotifier{}
	return NewStripeWebhookProcessor(walletEngine, notifier, "", logging.Discard()), notifier, st, gateway
}

func TestHandleStripeEventSettlesAndNotifies(t *testing.T) {
	processor, notifier, st, gateway := newProcessorTest(t)
	ctx := context.Background()

	_, err := st.RecordDepositIntent(ctx, payerJID, 1000, "cs_hook_1")
	require.NoError(t, err)
	gateway.paid["cs_hook_1"] = true

	err = processor.HandleStripeEvent(ctx, pay.WebhookEvent{
		Type:      "checkout.session.completed",
		SessionID: "cs_hook_1",
	})
	require.NoError(t, err)

	user, err := st.GetUser(ctx, payerJID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance)

	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "R$10,00")
	assert.Equal(t, payerJID, notifier.to[0].String())
}

func TestHandleStripeEventCopiesAdmin(t *testing.T) {
	_, notifier, st, gateway := newProcessorTest(t)
	ctx := context.Background()

	walletEngine := wallet.New(st, gateway, wallet.Config{MinDeposit: 400}, nil, logging.Discard())
	processor := NewStripeWebhookProcessor(walletEngine, notifier, "5511888880000@s.whatsapp.net", logging.Discard())

	_, err := st.RecordDepositIntent(ctx, payerJID, 1000, "cs_hook_admin")
	require.NoError(t, err)
	gateway.paid["cs_hook_admin"] = true

	require.NoError(t, processor.HandleStripeEvent(ctx, pay.WebhookEvent{
		Type:      "checkout.session.completed",
		SessionID: "cs_hook_admin",
	}))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, payerJID, notifier.to[0].String())
	assert.Equal(t, "5511888880000@s.whatsapp.net", notifier.to[1].String())
	assert.Contains(t, notifier.sent[1], payerJID)
}

func TestHandleStripeEventIsIdempotent(t *testing.T) {
	processor, notifier, st, gateway := newProcessorTest(t)
	ctx := context.Background()

	_, err := st.RecordDepositIntent(ctx, payerJID, 1000, "cs_hook_2")
	require.NoError(t, err)
	gateway.paid["cs_hook_2"] = true

	event := pay.WebhookEvent{Type: "checkout.session.completed", SessionID: "cs_hook_2"}
	require.NoError(t, processor.HandleStripeEvent(ctx, event))
	require.NoError(t, processor.HandleStripeEvent(ctx, event))

	user, err := st.GetUser(ctx, payerJID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance, "replayed webhook must not double credit")
	assert.Len(t, notifier.sent, 1, "only the crediting delivery notifies")
}

func TestHandleStripeEventIgnoresOtherTypes(t *testing.T) {
	processor, notifier, st, _ := newProcessorTest(t)
	ctx := context.Background()

	_, err := st.RecordDepositIntent(ctx, payerJID, 1000, "cs_hook_3")
	require.NoError(t, err)

	require.NoError(t, processor.HandleStripeEvent(ctx, pay.WebhookEvent{
		Type:      "payment_intent.created",
		SessionID: "cs_hook_3",
	}))

	user, err := st.GetUser(ctx, payerJID)
	require.NoError(t, err)
	assert.Zero(t, user.Balance)
	assert.Empty(t, notifier.sent)
}

func TestHandleStripeEventUnpaidSessionStaysPending(t *testing.T) {
	processor, notifier, st, _ := newProcessorTest(t)
	ctx := context.Background()

	_, err := st.RecordDepositIntent(ctx, payerJID, 1000, "cs_hook_4")
	require.NoError(t, err)

	// Event arrived but the provider still reports unpaid: fail closed.
	require.NoError(t, processor.HandleStripeEvent(ctx, pay.WebhookEvent{
		Type:      "checkout.session.completed",
		SessionID: "cs_hook_4",
	}))

	trx, err := st.GetTransactionBySession(ctx, "cs_hook_4")
	require.NoError(t, err)
	assert.Equal(t, store.TxPending, trx.Status)
	assert.Empty(t, notifier.sent)
}
