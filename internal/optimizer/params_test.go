package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stableopt/internal/domain"
)

func TestParams_Validate(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults", func(*Params) {}, true},
		{"zero min spread and gas", func(p *Params) { p.MinSpread, p.GasCostPerTx = 0, 0 }, true},
		{"ltv zero", func(p *Params) { p.LTV = 0 }, false},
		{"ltv one", func(p *Params) { p.LTV = 1 }, false},
		{"ltv NaN", func(p *Params) { p.LTV = nan }, false},
		{"ltv -Inf", func(p *Params) { p.LTV = math.Inf(-1) }, false},
		{"stop NaN", func(p *Params) { p.StopCondition = nan }, false},
		{"stop above one", func(p *Params) { p.StopCondition = 1.2 }, false},
		{"capital NaN", func(p *Params) { p.InitialCapital = nan }, false},
		{"capital +Inf", func(p *Params) { p.InitialCapital = inf }, false},
		{"capital negative", func(p *Params) { p.InitialCapital = -5 }, false},
		{"rebalance NaN", func(p *Params) { p.RebalanceHours = nan }, false},
		{"rebalance +Inf", func(p *Params) { p.RebalanceHours = inf }, false},
		{"min spread NaN", func(p *Params) { p.MinSpread = nan }, false},
		{"min spread +Inf", func(p *Params) { p.MinSpread = inf }, false},
		{"min spread negative", func(p *Params) { p.MinSpread = -0.1 }, false},
		{"gas NaN", func(p *Params) { p.GasCostPerTx = nan }, false},
		{"gas +Inf", func(p *Params) { p.GasCostPerTx = inf }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidStrategy)
		})
	}
}
