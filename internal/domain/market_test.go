package domain

import (
	"errors"
	"testing"
)

func TestMarketKey(t *testing.T) {
	tests := []struct {
		protocol Protocol
		chain    Chain
		asset    string
		want     string
	}{
		{ProtocolAave, ChainArbitrum, "USDC", "aave_arb_usdc"},
		{ProtocolAave, ChainPolygon, "usdce", "aave_pol_usdce"},
		{ProtocolCompound, ChainEthereum, "USDC", "comp_eth_usdc"},
		{ProtocolMorpho, ChainBase, "USDC", "morpho_base_usdc"},
	}

	for _, tt := range tests {
		if got := MarketKey(tt.protocol, tt.chain, tt.asset); got != tt.want {
			t.Errorf("MarketKey(%s, %s, %s) = %s, want %s", tt.protocol, tt.chain, tt.asset, got, tt.want)
		}
	}
}

func TestParseMarketKey(t *testing.T) {
	tests := []struct {
		key      string
		protocol Protocol
		chain    Chain
		asset    string
		wantErr  bool
	}{
		{"aave_arb_usdc", ProtocolAave, ChainArbitrum, "USDC", false},
		{"comp_pol_usdc", ProtocolCompound, ChainPolygon, "USDC", false},
		{"morpho_eth_usda", ProtocolMorpho, ChainEthereum, "USDA", false},
		{"aave_arb", "", "", "", true},
		{"curve_arb_usdc", "", "", "", true},
		{"aave_moon_usdc", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, c, asset, err := ParseMarketKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMarketKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrUnknownMarket) {
					t.Errorf("error %v should wrap ErrUnknownMarket", err)
				}
				return
			}
			if p != tt.protocol || c != tt.chain || asset != tt.asset {
				t.Errorf("got (%s, %s, %s), want (%s, %s, %s)", p, c, asset, tt.protocol, tt.chain, tt.asset)
			}
		})
	}
}

func TestParseChain(t *testing.T) {
	for _, in := range []string{"arb", "Arbitrum", " arbitrum "} {
		c, err := ParseChain(in)
		if err != nil || c != ChainArbitrum {
			t.Errorf("ParseChain(%q) = %v, %v; want arbitrum", in, c, err)
		}
	}
	if _, err := ParseChain("solana"); err == nil {
		t.Error("expected error for unknown chain")
	}
}

func TestRate_HasBorrowAndValid(t *testing.T) {
	m := Market{Key: "aave_arb_usdc"}
	if (Rate{Market: m, SupplyAPY: 4}).HasBorrow() {
		t.Error("zero borrow APY should not count as borrowable")
	}
	if !(Rate{Market: m, SupplyAPY: 4, BorrowAPY: 5}).HasBorrow() {
		t.Error("positive borrow APY should be borrowable")
	}
	if (Rate{Market: m, SupplyAPY: -1}).Valid() {
		t.Error("negative supply APY should be invalid")
	}
	if (Rate{SupplyAPY: 1}).Valid() {
		t.Error("rate without market key should be invalid")
	}
}

func TestOpportunity(t *testing.T) {
	supply := Rate{Market: Market{Key: "aave_arb_usdt", Chain: ChainArbitrum, Asset: "USDT"}, SupplyAPY: 6}
	borrow := Rate{Market: Market{Key: "aave_arb_usdc", Chain: ChainArbitrum, Asset: "USDC"}, BorrowAPY: 4.5}

	o := NewOpportunity(supply, borrow)
	if o.Spread != 1.5 {
		t.Errorf("Spread = %v, want 1.5", o.Spread)
	}
	if !o.NeedsSwap() {
		t.Error("USDT/USDC pair should need a swap")
	}
	if o.Chain() != ChainArbitrum {
		t.Errorf("Chain = %s, want arbitrum", o.Chain())
	}
}

func TestState_Record(t *testing.T) {
	var s State
	s.RecordFailure(errors.New("all sources failed"), s.LastCycleAt)
	s.RecordFailure(nil, s.LastCycleAt)
	if s.ConsecutiveFailures != 2 || s.LastError != "all sources failed" {
		t.Fatalf("unexpected state after failures: %+v", s)
	}

	s.RecordSuccess("snap-1", s.LastCycleAt)
	if s.ConsecutiveFailures != 0 || s.LastError != "" || s.Cycles != 3 || s.LastSnapshotID != "snap-1" {
		t.Fatalf("unexpected state after success: %+v", s)
	}
}
