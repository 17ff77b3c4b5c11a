package convo

import (
	"strconv"
	"strings"
)

// CommandKind discriminates inbound requests.
type CommandKind string

const (
	CmdStart       CommandKind = "start"
	CmdListCatalog CommandKind = "list_catalog"
	CmdViewProduct CommandKind = "view_product"
	CmdPurchase    CommandKind = "purchase"
	CmdDeposit     CommandKind = "deposit"
	CmdPollDeposit CommandKind = "poll_deposit"
	CmdProfile     CommandKind = "profile"
	CmdUnknown     CommandKind = "unknown"
)

// Command is a parsed inbound message.
type Command struct {
	Kind      CommandKind
	Category  string // list_catalog
	ProductID int64  // view_product, purchase
	Amount    string // deposit, raw text ("10,00")
	SessionID string // poll_deposit, may be empty
}

// parseCommand maps free text onto the bot's command surface. Unknown input
// falls through to the help menu.
func parseCommand(text string) Command {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{Kind: CmdUnknown}
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "menu", "start", "/start", "oi", "ola", "olá", "inicio", "início":
		return Command{Kind: CmdStart}
	case "produtos", "catalogo", "catálogo":
		cmd := Command{Kind: CmdListCatalog}
		if len(args) > 0 {
			cmd.Category = strings.ToLower(args[0])
		}
		return cmd
	case "produto", "ver":
		if id, ok := parseID(args); ok {
			return Command{Kind: CmdViewProduct, ProductID: id}
		}
	case "comprar":
		if id, ok := parseID(args); ok {
			return Command{Kind: CmdPurchase, ProductID: id}
		}
	case "recarga", "recarregar", "depositar":
		if len(args) > 0 {
			return Command{Kind: CmdDeposit, Amount: strings.Join(args, "")}
		}
	case "verificar", "confirmar":
		cmd := Command{Kind: CmdPollDeposit}
		if len(args) > 0 {
			cmd.SessionID = args[0]
		}
		return cmd
	case "perfil", "saldo":
		return Command{Kind: CmdProfile}
	}
	return Command{Kind: CmdUnknown}
}

func parseID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
