// Package convo turns inbound WhatsApp messages into shop and wallet
// operations and renders their results back in Portuguese. It is the only
// layer that produces user-facing text.
package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"bot-loja/internal/cache"
	"bot-loja/internal/metrics"
	"bot-loja/internal/money"
	"bot-loja/internal/shop"
	"bot-loja/internal/store"
	"bot-loja/internal/wa"
	"bot-loja/internal/wallet"
)

const (
	catalogCacheTTL = 30 * time.Second
	lastDepositTTL  = 24 * time.Hour
)

// Sender delivers outbound text. *wa.Client satisfies it.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// EngineConfig holds copy-level settings rendered into replies.
type EngineConfig struct {
	SupportURL string
	GroupURL   string
}

// Engine is the message processor wired into the WhatsApp client.
type Engine struct {
	store   store.Store
	shop    *shop.Engine
	wallet  *wallet.Engine
	sender  Sender
	cache   *cache.Redis
	cfg     EngineConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates the conversation engine. The cache may be nil, in which case
// catalog caching and deposit-session recall are skipped.
func New(st store.Store, shopEngine *shop.Engine, walletEngine *wallet.Engine, sender Sender, redisCache *cache.Redis, cfg EngineConfig, metricRegistry *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:   st,
		shop:    shopEngine,
		wallet:  walletEngine,
		sender:  sender,
		cache:   redisCache,
		cfg:     cfg,
		metrics: metricRegistry,
		logger:  logger.With("component", "convo"),
	}
}

// ProcessMessage implements wa.MessageProcessor.
func (e *Engine) ProcessMessage(ctx context.Context, evt *events.Message) {
	text := extractText(evt)
	if text == "" {
		return
	}
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	sender := evt.Info.Sender.ToNonAD()
	userID := sender.String()

	if e.metrics != nil {
		e.metrics.WAIncomingMessages.WithLabelValues("text").Inc()
	}

	cmd := parseCommand(text)
	reply, err := e.dispatch(ctx, userID, wa.PushName(evt), cmd)
	if err != nil {
		e.logger.Error("command failed", "error", err, "user_id", userID, "command", string(cmd.Kind))
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("convo").Inc()
		}
		reply = "Algo deu errado, tente novamente em instantes."
	}
	if reply == "" {
		return
	}

	replyCtx := wa.WithReply(ctx, evt)
	if err := e.sender.SendText(replyCtx, sender, reply); err != nil {
		e.logger.Error("reply failed", "error", err, "user_id", userID)
	}
}

func extractText(evt *events.Message) string {
	msg := evt.Message
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if msg.ExtendedTextMessage != nil {
		return msg.GetExtendedTextMessage().GetText()
	}
	return ""
}

func (e *Engine) dispatch(ctx context.Context, userID, displayName string, cmd Command) (string, error) {
	// Every command implies the user exists; registration is idempotent.
	user, err := e.store.EnsureUser(ctx, userID, displayName)
	if err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}

	switch cmd.Kind {
	case CmdStart:
		return renderWelcome(user, e.cfg.SupportURL, e.cfg.GroupURL), nil
	case CmdListCatalog:
		return e.handleCatalog(ctx, cmd.Category)
	case CmdViewProduct:
		return e.handleViewProduct(ctx, user, cmd.ProductID)
	case CmdPurchase:
		return e.handlePurchase(ctx, userID, cmd.ProductID)
	case CmdDeposit:
		return e.handleDeposit(ctx, userID, cmd.Amount)
	case CmdPollDeposit:
		return e.handlePollDeposit(ctx, userID, cmd.SessionID)
	case CmdProfile:
		return e.handleProfile(ctx, user)
	default:
		return renderHelp(e.wallet.MinDeposit()), nil
	}
}

func (e *Engine) handleCatalog(ctx context.Context, category string) (string, error) {
	cacheKey := "catalog:" + category
	var products []store.Product
	if e.cache != nil {
		if hit, err := e.cache.GetJSON(ctx, cacheKey, &products); err == nil && hit {
			return renderCatalog(products), nil
		}
	}

	products, err := e.store.ListProducts(ctx, category)
	if err != nil {
		return "", fmt.Errorf("list products: %w", err)
	}
	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, cacheKey, products, catalogCacheTTL); err != nil {
			e.logger.Warn("catalog cache write failed", "error", err)
		}
	}
	return renderCatalog(products), nil
}

func (e *Engine) handleViewProduct(ctx context.Context, user *store.User, productID int64) (string, error) {
	product, err := e.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Produto #%d não encontrado. Envie: produtos", productID), nil
	}
	if err != nil {
		return "", fmt.Errorf("get product: %w", err)
	}
	if !product.Active {
		return fmt.Sprintf("Produto #%d não está mais disponível.", productID), nil
	}
	return renderProduct(product, user.Balance), nil
}

func (e *Engine) handlePurchase(ctx context.Context, userID string, productID int64) (string, error) {
	order, err := e.shop.Purchase(ctx, userID, productID)

	var insufficient *shop.InsufficientFundsError
	switch {
	case errors.Is(err, store.ErrProductUnavailable):
		return "Este produto está esgotado ou indisponível. Envie: produtos", nil
	case errors.As(err, &insufficient):
		return fmt.Sprintf("Saldo insuficiente. Faltam %s.\nEnvie: recarga %s",
			money.Format(insufficient.Shortfall()),
			money.FormatPlain(insufficient.Shortfall())), nil
	case err != nil:
		return "", fmt.Errorf("purchase: %w", err)
	}

	product, perr := e.store.GetProduct(ctx, productID)
	name := fmt.Sprintf("#%d", productID)
	if perr == nil {
		name = product.Name
	}
	return renderOrder(order, name), nil
}

func (e *Engine) handleDeposit(ctx context.Context, userID, amountText string) (string, error) {
	intent, err := e.wallet.InitiateDeposit(ctx, userID, amountText)

	var belowMin *wallet.BelowMinimumError
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		return fmt.Sprintf("Valor inválido: %q. Exemplo: recarga 10,00", amountText), nil
	case errors.As(err, &belowMin):
		return fmt.Sprintf("O valor mínimo de recarga é %s.", money.Format(belowMin.Minimum)), nil
	case errors.Is(err, wallet.ErrGatewayUnavailable):
		return "O provedor de pagamento está indisponível no momento. Tente novamente em instantes.", nil
	case err != nil:
		return "", fmt.Errorf("initiate deposit: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.SetString(ctx, lastDepositKey(userID), intent.SessionID, lastDepositTTL); err != nil {
			e.logger.Warn("last deposit cache write failed", "error", err)
		}
	}
	return renderDepositIntent(intent), nil
}

func (e *Engine) handlePollDeposit(ctx context.Context, userID, sessionID string) (string, error) {
	if sessionID == "" && e.cache != nil {
		if cached, ok, err := e.cache.GetString(ctx, lastDepositKey(userID)); err == nil && ok {
			sessionID = cached
		}
	}
	if sessionID == "" {
		return "Nenhuma recarga pendente encontrada. Envie: recarga VALOR", nil
	}

	settlement, err := e.wallet.PollSettlement(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("poll settlement: %w", err)
	}
	if settlement.Status != wallet.StatusPending && e.cache != nil {
		if err := e.cache.Delete(ctx, lastDepositKey(userID)); err != nil {
			e.logger.Warn("last deposit cache delete failed", "error", err)
		}
	}
	return renderSettlement(settlement), nil
}

func (e *Engine) handleProfile(ctx context.Context, user *store.User) (string, error) {
	stats, err := e.store.UserStats(ctx, user.ID)
	if err != nil {
		e.logger.Warn("user stats failed", "error", err, "user_id", user.ID)
		stats = nil
	}
	return renderProfile(user, stats), nil
}

func lastDepositKey(userID string) string {
	return "deposit:last:" + userID
}
