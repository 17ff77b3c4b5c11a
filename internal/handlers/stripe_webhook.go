// Package handlers bridges verified provider events into engine calls.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"go.mau.fi/whatsmeow/types"

	"bot-loja/internal/money"
	"bot-loja/internal/pay"
	"bot-loja/internal/wallet"
)

// Notifier delivers a settlement notice to the payer. *wa.Client satisfies it.
type Notifier interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// StripeWebhookProcessor settles deposits when Stripe reports a completed
// checkout. It drives the same settlement path the user-initiated poll does,
// so webhook and poll can race freely without double credit.
type StripeWebhookProcessor struct {
	wallet   *wallet.Engine
	notifier Notifier
	adminJID string
	logger   *slog.Logger
}

// NewStripeWebhookProcessor wires the wallet engine behind the webhook. The
// notifier may be nil when running without a messaging transport; adminJID,
// when set, receives a copy of every settlement notice.
func NewStripeWebhookProcessor(walletEngine *wallet.Engine, notifier Notifier, adminJID string, logger *slog.Logger) *StripeWebhookProcessor {
	return &StripeWebhookProcessor{
		wallet:   walletEngine,
		notifier: notifier,
		adminJID: adminJID,
		logger:   logger.With("component", "stripe_processor"),
	}
}

// HandleStripeEvent implements pay.WebhookProcessor.
func (p *StripeWebhookProcessor) HandleStripeEvent(ctx context.Context, event pay.WebhookEvent) error {
	if event.Type != "checkout.session.completed" {
		p.logger.Debug("ignoring event", "type", event.Type)
		return nil
	}
	if event.SessionID == "" {
		p.logger.Warn("completed checkout event without session id")
		return nil
	}

	settlement, err := p.wallet.PollSettlement(ctx, event.SessionID)
	if err != nil {
		return fmt.Errorf("settle from webhook: %w", err)
	}
	if settlement.Status != wallet.StatusSettled {
		// Either the provider has not flipped to paid yet or another path
		// already credited the deposit. Nothing else to do.
		p.logger.Info("webhook settlement no-op", "session_id", event.SessionID, "status", string(settlement.Status))
		return nil
	}

	p.notify(ctx, settlement)
	return nil
}

func (p *StripeWebhookProcessor) notify(ctx context.Context, settlement *wallet.Settlement) {
	if p.notifier == nil || settlement.UserID == "" {
		return
	}
	jid, err := types.ParseJID(settlement.UserID)
	if err != nil {
		p.logger.Warn("cannot parse payer jid", "error", err, "user_id", settlement.UserID)
		return
	}
	text := fmt.Sprintf("Pagamento confirmado! %s adicionados.\nSaldo atual: %s",
		money.Format(settlement.Amount), money.Format(settlement.NewBalance))
	if err := p.notifier.SendText(ctx, jid, text); err != nil {
		p.logger.Error("settlement notification failed", "error", err, "user_id", settlement.UserID)
	}

	if p.adminJID == "" {
		return
	}
	admin, err := types.ParseJID(p.adminJID)
	if err != nil {
		p.logger.Warn("cannot parse admin jid", "error", err, "admin_jid", p.adminJID)
		return
	}
	notice := fmt.Sprintf("Recarga recebida: %s de %s", money.Format(settlement.Amount), settlement.UserID)
	if err := p.notifier.SendText(ctx, admin, notice); err != nil {
		p.logger.Error("admin notification failed", "error", err)
	}
}
