package domain

// Opportunity pairs a market to supply on with a market to borrow from.
type Opportunity struct {
	Supply Rate `json:"supply"`
	Borrow Rate `json:"borrow"`

	// Spread is Supply.SupplyAPY - Borrow.BorrowAPY in percent.
	Spread float64 `json:"spread"`
}

// NewOpportunity builds an opportunity and computes its spread.
func NewOpportunity(supply, borrow Rate) Opportunity {
	return Opportunity{
		Supply: supply,
		Borrow: borrow,
		Spread: supply.SupplyAPY - borrow.BorrowAPY,
	}
}

// Chain returns the chain shared by both legs.
func (o Opportunity) Chain() Chain {
	return o.Supply.Market.Chain
}

// NeedsSwap reports whether the borrowed asset differs from the supplied one.
func (o Opportunity) NeedsSwap() bool {
	return o.Supply.Market.Asset != o.Borrow.Market.Asset
}
