package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
)

var _ ports.HistoryStore = (*HistoryStore)(nil)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func obs(t *testing.T, key string, at time.Time, supply, borrow float64) domain.Rate {
	t.Helper()
	m, err := domain.NewMarketFromKey(key, domain.SourceLlama)
	require.NoError(t, err)
	return domain.Rate{Market: m, SupplyAPY: supply, BorrowAPY: borrow, ObservedAt: at}
}

func TestAppendAndRange(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []domain.Rate{
		obs(t, "aave_arb_usdc", base, 5, 6),
		obs(t, "aave_arb_usdc", base.Add(time.Hour), 5.1, 6.1),
		obs(t, "aave_arb_usdc", base.Add(2*time.Hour), 5.2, 6.2),
		obs(t, "comp_arb_usdc", base, 4, 0),
	}))

	all, err := s.Range(ctx, "aave_arb_usdc", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].ObservedAt.Equal(base))
	assert.Equal(t, domain.ProtocolAave, all[0].Market.Protocol)
	assert.Equal(t, domain.ChainArbitrum, all[0].Market.Chain)
	assert.Equal(t, "USDC", all[0].Market.Asset)

	window, err := s.Range(ctx, "aave_arb_usdc", base.Add(30*time.Minute), base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 5.1, window[0].SupplyAPY)

	comp, err := s.Range(ctx, "comp_arb_usdc", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, comp, 1)
	assert.False(t, comp[0].HasBorrow())
}

func TestAppendUpserts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []domain.Rate{obs(t, "aave_arb_usdc", base, 5, 6)}))
	require.NoError(t, s.Append(ctx, []domain.Rate{obs(t, "aave_arb_usdc", base, 7, 8)}))

	got, err := s.Range(ctx, "aave_arb_usdc", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7.0, got[0].SupplyAPY)
	assert.Equal(t, 8.0, got[0].BorrowAPY)

	require.NoError(t, s.Append(ctx, nil))
}

func TestMarketsAndPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []domain.Rate{
		obs(t, "aave_pol_usdc", base.Add(-48*time.Hour), 5, 6),
		obs(t, "aave_arb_usdc", base, 5, 6),
	}))

	keys, err := s.Markets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aave_arb_usdc", "aave_pol_usdc"}, keys)

	n, err := s.Prune(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	keys, err = s.Markets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aave_arb_usdc"}, keys)
}

func TestSeries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []domain.Rate{
		obs(t, "aave_arb_usdc", base, 5, 6),
		obs(t, "aave_arb_dai", base, 4, 3),
		obs(t, "aave_arb_usdc", base.Add(time.Hour), 5.5, 0),
	}))

	series, err := s.Series(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, series.Len())
	assert.Equal(t, []string{"aave_arb_dai", "aave_arb_usdc"}, series.Columns())

	p := series.Points()[1].Values["aave_arb_usdc"]
	require.NotNil(t, p.Supply)
	assert.Nil(t, p.Borrow)

	only, err := s.Series(ctx, []string{"aave_arb_dai"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, only.Len())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, []domain.Rate{obs(t, "aave_arb_usdc", base, 5, 6)}))
	require.NoError(t, s.Close())

	s, err = Open(path, DefaultConfig())
	require.NoError(t, err)
	defer s.Close()

	keys, err := s.Markets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aave_arb_usdc"}, keys)
}
