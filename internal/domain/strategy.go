package domain

// LoopStrategy describes a recursive supply/borrow position.
type LoopStrategy struct {
	LTV           float64 `json:"ltv"`
	StopCondition float64 `json:"stop_condition"`

	// Loops is the number of borrow-then-resupply iterations.
	Loops int `json:"loops"`

	InitialCollateral float64 `json:"initial_collateral"`
	TotalCollateral   float64 `json:"total_collateral"`
	Leverage          float64 `json:"leverage"`

	// NetAPY is the yield on the initial collateral, in percent.
	NetAPY float64 `json:"net_apy"`
}

// ActionKind is the type of a plan step.
type ActionKind string

const (
	ActionSupply   ActionKind = "supply"
	ActionBorrow   ActionKind = "borrow"
	ActionSwap     ActionKind = "swap"
	ActionRepay    ActionKind = "repay"
	ActionWithdraw ActionKind = "withdraw"
)

// Action is one step of a plan.
type Action struct {
	Step   int        `json:"step"`
	Kind   ActionKind `json:"kind"`
	Market string     `json:"market"`
	Asset  string     `json:"asset"`
	// ToAsset is set for swaps.
	ToAsset string  `json:"to_asset,omitempty"`
	Amount  float64 `json:"amount"`

	// Reverses is the forward step an unwind action undoes.
	Reverses int `json:"reverses,omitempty"`
}

// Plan is the ordered action sequence for a loop strategy together with
// the sequence that unwinds it.
type Plan struct {
	Actions []Action `json:"actions"`
	Unwind  []Action `json:"unwind"`
}

// RecoverFrom returns the unwind actions needed after step failedStep
// failed: only steps before it completed, so only those are reversed.
// The result keeps the unwind order (last completed step first).
func (p Plan) RecoverFrom(failedStep int) []Action {
	var out []Action
	for _, a := range p.Unwind {
		if a.Reverses > 0 && a.Reverses < failedStep {
			out = append(out, a)
		}
	}
	return out
}
