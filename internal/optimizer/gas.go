package optimizer

// TxPerLoop is the transaction count of one loop during a rebalance.
const TxPerLoop = 4

// Gas summarizes the running cost of rebalancing a looped position.
type Gas struct {
	TxPerRebalance int     `json:"tx_per_rebalance"`
	TxPerDay       float64 `json:"tx_per_day"`
	CostPerTx      float64 `json:"cost_per_tx"`
	DailyCost      float64 `json:"daily_cost"`
	AnnualCost     float64 `json:"annual_cost"`

	// BpsOfCapital is the annual cost in basis points of the initial capital.
	BpsOfCapital float64 `json:"bps_of_capital"`
	// BpsPerMillion is the annual cost in basis points of $1M.
	BpsPerMillion float64 `json:"bps_per_million"`
}

// GasCost estimates rebalancing cost for a strategy with the given loops.
func GasCost(loops int, p Params) (Gas, error) {
	if err := p.Validate(); err != nil {
		return Gas{}, err
	}

	txs := TxPerLoop * loops
	perDay := float64(txs) * 24 / p.RebalanceHours
	daily := p.GasCostPerTx * perDay
	annual := 365 * daily

	return Gas{
		TxPerRebalance: txs,
		TxPerDay:       perDay,
		CostPerTx:      p.GasCostPerTx,
		DailyCost:      daily,
		AnnualCost:     annual,
		BpsOfCapital:   annual / p.InitialCapital * 10_000,
		BpsPerMillion:  annual / 1_000_000 * 10_000,
	}, nil
}
