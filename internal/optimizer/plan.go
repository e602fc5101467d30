package optimizer

import (
	"github.com/bft-labs/stableopt/internal/domain"
)

// BuildPlan sequences the actions that open strategy s on opp. The initial
// capital is supplied first. Each loop then borrows ltv times the previous
// amount, swaps it when the assets differ and supplies it.
//
// The unwind plan reverses every forward step, last step first.
func BuildPlan(opp domain.Opportunity, s domain.LoopStrategy) domain.Plan {
	supply, borrow := opp.Supply.Market, opp.Borrow.Market

	var actions []domain.Action
	add := func(a domain.Action) {
		a.Step = len(actions) + 1
		actions = append(actions, a)
	}

	amount := s.InitialCollateral
	add(domain.Action{Kind: domain.ActionSupply, Market: supply.Key, Asset: supply.Asset, Amount: amount})

	for i := 0; i < s.Loops; i++ {
		amount *= s.LTV
		add(domain.Action{Kind: domain.ActionBorrow, Market: borrow.Key, Asset: borrow.Asset, Amount: amount})
		if opp.NeedsSwap() {
			add(domain.Action{Kind: domain.ActionSwap, Asset: borrow.Asset, ToAsset: supply.Asset, Amount: amount})
		}
		add(domain.Action{Kind: domain.ActionSupply, Market: supply.Key, Asset: supply.Asset, Amount: amount})
	}

	return domain.Plan{Actions: actions, Unwind: unwind(actions)}
}

func unwind(actions []domain.Action) []domain.Action {
	out := make([]domain.Action, 0, len(actions))
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		inv := domain.Action{
			Step:     len(out) + 1,
			Market:   a.Market,
			Asset:    a.Asset,
			Amount:   a.Amount,
			Reverses: a.Step,
		}
		switch a.Kind {
		case domain.ActionSupply:
			inv.Kind = domain.ActionWithdraw
		case domain.ActionBorrow:
			inv.Kind = domain.ActionRepay
		case domain.ActionSwap:
			inv.Kind = domain.ActionSwap
			inv.Asset, inv.ToAsset = a.ToAsset, a.Asset
		default:
			continue
		}
		out = append(out, inv)
	}
	return out
}
