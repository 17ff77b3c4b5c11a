package convo

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want Command
	}{
		{"menu", Command{Kind: CmdStart}},
		{"/start", Command{Kind: CmdStart}},
		{"Olá", Command{Kind: CmdStart}},
		{"produtos", Command{Kind: CmdListCatalog}},
		{"Produtos Streaming", Command{Kind: CmdListCatalog, Category: "streaming"}},
		{"catálogo", Command{Kind: CmdListCatalog}},
		{"produto 3", Command{Kind: CmdViewProduct, ProductID: 3}},
		{"ver #12", Command{Kind: CmdViewProduct, ProductID: 12}},
		{"comprar 7", Command{Kind: CmdPurchase, ProductID: 7}},
		{"recarga 10,00", Command{Kind: CmdDeposit, Amount: "10,00"}},
		{"recarga 10 , 00", Command{Kind: CmdDeposit, Amount: "10,00"}},
		{"depositar 25", Command{Kind: CmdDeposit, Amount: "25"}},
		{"verificar", Command{Kind: CmdPollDeposit}},
		{"verificar cs_test_1", Command{Kind: CmdPollDeposit, SessionID: "cs_test_1"}},
		{"perfil", Command{Kind: CmdProfile}},
		{"saldo", Command{Kind: CmdProfile}},
		{"", Command{Kind: CmdUnknown}},
		{"comprar", Command{Kind: CmdUnknown}},
		{"comprar zero", Command{Kind: CmdUnknown}},
		{"comprar -1", Command{Kind: CmdUnknown}},
		{"recarga", Command{Kind: CmdUnknown}},
		{"bom dia tudo bem", Command{Kind: CmdUnknown}},
	}

	for _, tc := range cases {
		got := parseCommand(tc.in)
		if got != tc.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
