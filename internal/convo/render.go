package convo

import (
	"fmt"
	"strings"

	"bot-loja/internal/money"
	"bot-loja/internal/store"
	"bot-loja/internal/wallet"
)

// Rendering lives here, on the transport side: the engines return typed
// results and never produce user-facing text.

func renderWelcome(user *store.User, supportURL, groupURL string) string {
	name := user.ID
	if user.DisplayName != nil && *user.DisplayName != "" {
		name = *user.DisplayName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Bem-vindo à loja, %s!\n\n", name)
	fmt.Fprintf(&b, "Saldo atual: %s\n\n", money.Format(user.Balance))
	b.WriteString("Comandos:\n")
	b.WriteString("  produtos [categoria] - ver o catálogo\n")
	b.WriteString("  produto N            - detalhes do produto N\n")
	b.WriteString("  comprar N            - comprar o produto N\n")
	b.WriteString("  recarga VALOR        - adicionar saldo (ex: recarga 10,00)\n")
	b.WriteString("  verificar            - confirmar o último pagamento\n")
	b.WriteString("  perfil               - seus dados e saldo\n")
	if groupURL != "" {
		fmt.Fprintf(&b, "\nGrupo de clientes: %s", groupURL)
	}
	if supportURL != "" {
		fmt.Fprintf(&b, "\nSuporte: %s", supportURL)
	}
	b.WriteString("\n\nImportante: não realizamos reembolsos em dinheiro, apenas em créditos na loja.")
	return b.String()
}

func renderCatalog(products []store.Product) string {
	if len(products) == 0 {
		return "Nenhum produto disponível no momento."
	}

	grouped, order := groupByCategory(products)
	var b strings.Builder
	b.WriteString("Produtos disponíveis:\n")
	for _, category := range order {
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(category))
		for _, p := range grouped[category] {
			marker := ""
			if p.Stock <= 0 {
				marker = " [esgotado]"
			}
			fmt.Fprintf(&b, "  #%d %s - %s%s\n", p.ID, p.Name, money.Format(p.Price), marker)
		}
	}
	b.WriteString("\nEnvie: produto N para detalhes, comprar N para comprar.")
	return strings.TrimSpace(b.String())
}

func groupByCategory(products []store.Product) (map[string][]store.Product, []string) {
	grouped := map[string][]store.Product{}
	var order []string
	for _, p := range products {
		category := strings.TrimSpace(p.Category)
		if category == "" {
			category = "outros"
		}
		if _, ok := grouped[category]; !ok {
			order = append(order, category)
		}
		grouped[category] = append(grouped[category], p)
	}
	return grouped, order
}

func renderProduct(p *store.Product, balance int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Acesso: %s\n\n", p.Name)
	fmt.Fprintf(&b, "Preço: %s\n", money.Format(p.Price))
	fmt.Fprintf(&b, "Saldo atual: %s\n", money.Format(balance))
	fmt.Fprintf(&b, "Estoque disponível: %d\n", p.Stock)
	if p.Description != "" {
		fmt.Fprintf(&b, "\nDescrição: %s\n", p.Description)
	}
	b.WriteString("\nGarantia: 30 dias. A entrega é imediata após a compra.\n")
	fmt.Fprintf(&b, "\nEnvie: comprar %d", p.ID)
	return b.String()
}

func renderOrder(order *store.Order, productName string) string {
	var b strings.Builder
	b.WriteString("Compra realizada com sucesso!\n\n")
	fmt.Fprintf(&b, "Produto: %s\n", productName)
	fmt.Fprintf(&b, "Valor: %s\n", money.Format(order.Price))
	fmt.Fprintf(&b, "Pedido: #%d\n", order.ID)
	fmt.Fprintf(&b, "\nCredenciais:\n%s\n", order.Credentials)
	b.WriteString("\nGuarde estas credenciais, elas não serão exibidas novamente.")
	return b.String()
}

func renderDepositIntent(intent *wallet.DepositIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recarga de %s criada.\n\n", money.Format(intent.Amount))
	fmt.Fprintf(&b, "Pague pelo link:\n%s\n", intent.CheckoutURL)
	b.WriteString("\nDepois do pagamento, envie: verificar")
	return b.String()
}

func renderSettlement(st *wallet.Settlement) string {
	switch st.Status {
	case wallet.StatusSettled:
		return fmt.Sprintf("Pagamento confirmado! %s adicionados.\nSaldo atual: %s",
			money.Format(st.Amount), money.Format(st.NewBalance))
	case wallet.StatusAlreadySettled:
		return "Este pagamento já foi confirmado anteriormente."
	default:
		return "Pagamento ainda não confirmado. Tente novamente em instantes."
	}
}

func renderProfile(user *store.User, stats *store.UserStats) string {
	var b strings.Builder
	b.WriteString("Seu perfil:\n\n")
	fmt.Fprintf(&b, "ID: %s\n", user.ID)
	fmt.Fprintf(&b, "Saldo: %s\n", money.Format(user.Balance))
	if stats != nil {
		fmt.Fprintf(&b, "Pedidos: %d\n", stats.Orders)
		fmt.Fprintf(&b, "Total gasto: %s\n", money.Format(stats.TotalSpent))
	}
	if user.ReferralCode != nil {
		fmt.Fprintf(&b, "Código de indicação: %s\n", *user.ReferralCode)
	}
	return strings.TrimSpace(b.String())
}

func renderHelp(minDeposit int64) string {
	var b strings.Builder
	b.WriteString("Não entendi. Comandos disponíveis:\n\n")
	b.WriteString("  menu\n  produtos [categoria]\n  produto N\n  comprar N\n")
	fmt.Fprintf(&b, "  recarga VALOR (mínimo %s)\n", money.Format(minDeposit))
	b.WriteString("  verificar\n  perfil")
	return b.String()
}
