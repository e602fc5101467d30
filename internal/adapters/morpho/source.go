// Package morpho reads Morpho Blue market rates over JSON-RPC.
package morpho

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/internal/ratemath"
	"github.com/bft-labs/stableopt/pkg/log"
)

var (
	// DefaultAddress is the Morpho Blue singleton on Ethereum and Base.
	DefaultAddress = common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb")

	// DefaultIRM is the adaptive curve IRM on Ethereum and Base.
	DefaultIRM = common.HexToAddress("0x870aC11D48B15DB9a138Cf899d20F13F79Ba00BC")
)

// DefaultAddresses returns the chains Morpho Blue is deployed on with its
// address there.
func DefaultAddresses() map[domain.Chain]common.Address {
	return map[domain.Chain]common.Address{
		domain.ChainEthereum: DefaultAddress,
		domain.ChainBase:     DefaultAddress,
	}
}

// Caller executes read-only contract calls and reports the latest block
// time.
type Caller interface {
	ethrpc.Caller
	BlockTimestamp(ctx context.Context) (int64, error)
}

// MarketParams identifies a Morpho Blue market.
type MarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	IRM             common.Address
	// LLTV is WAD-scaled.
	LLTV *big.Int
}

// Source implements ports.RateSource for Morpho Blue markets on one chain.
// Markets are identified by Market.MarketID.
type Source struct {
	chain   domain.Chain
	rpc     Caller
	morpho  ethrpc.Contract
	markets []domain.Market
	logger  ports.Logger
}

// NewSource creates a source. A zero address selects DefaultAddress.
func NewSource(chain domain.Chain, rpc Caller, address common.Address, markets []domain.Market, logger ports.Logger) *Source {
	if address == (common.Address{}) {
		address = DefaultAddress
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Source{
		chain:   chain,
		rpc:     rpc,
		morpho:  ethrpc.NewContract(address, morphoABI),
		markets: markets,
		logger:  logger,
	}
}

// Name returns the source identifier, qualified by chain.
func (s *Source) Name() string {
	return string(domain.SourceMorpho) + "-" + string(s.chain)
}

// Fetch reads every configured market at the latest block.
func (s *Source) Fetch(ctx context.Context) ([]domain.Rate, error) {
	now, err := s.rpc.BlockTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}

	var (
		rates []domain.Rate
		errs  []error
	)
	for _, m := range s.markets {
		r, err := s.marketRate(ctx, m, now)
		if err != nil {
			s.logger.Warn("morpho market fetch failed",
				log.String("market", m.Key),
				log.String("market_id", m.MarketID),
				log.Err(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", m.Key, err))
			continue
		}
		rates = append(rates, r)
	}

	if len(errs) > 0 && len(rates) == 0 {
		return nil, errors.Join(errs...)
	}
	return rates, nil
}

func (s *Source) marketRate(ctx context.Context, m domain.Market, now int64) (domain.Rate, error) {
	id, err := ethrpc.ParseBytes32(m.MarketID)
	if err != nil {
		return domain.Rate{}, err
	}
	params, err := s.Params(ctx, id)
	if err != nil {
		return domain.Rate{}, err
	}
	state, err := s.State(ctx, id)
	if err != nil {
		return domain.Rate{}, err
	}
	rate, err := s.BorrowRate(ctx, params, state)
	if err != nil {
		return domain.Rate{}, err
	}

	apys, err := ratemath.MorphoAPYs(rate, state, now)
	if err != nil {
		return domain.Rate{}, err
	}

	decimals := m.Decimals
	if decimals == 0 {
		if decimals, err = s.decimals(ctx, params.LoanToken); err != nil {
			return domain.Rate{}, err
		}
	}

	return domain.Rate{
		Market:      m,
		SupplyAPY:   apys.SupplyAPY * 100,
		BorrowAPY:   apys.BorrowAPY * 100,
		Utilization: apys.Utilization,
		TotalSupply: ratemath.FromBase(apys.State.TotalSupplyAssets, decimals),
		TotalBorrow: ratemath.FromBase(apys.State.TotalBorrowAssets, decimals),
		ObservedAt:  time.Unix(now, 0).UTC(),
	}, nil
}

// uints reads the first n outputs as integers.
func uints(method string, out ethrpc.Outputs, n int) ([]*big.Int, error) {
	vals := make([]*big.Int, n)
	for i := range vals {
		v, err := ethrpc.Output[*big.Int](out, i)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// Params reads idToMarketParams for a market ID.
func (s *Source) Params(ctx context.Context, id common.Hash) (MarketParams, error) {
	out, err := s.morpho.Call(ctx, s.rpc, "idToMarketParams", id)
	if err != nil {
		return MarketParams{}, err
	}
	var p MarketParams
	for i, dst := range []*common.Address{&p.LoanToken, &p.CollateralToken, &p.Oracle, &p.IRM} {
		if *dst, err = ethrpc.Output[common.Address](out, i); err != nil {
			return MarketParams{}, fmt.Errorf("idToMarketParams: %w", err)
		}
	}
	if p.LLTV, err = ethrpc.Output[*big.Int](out, 4); err != nil {
		return MarketParams{}, fmt.Errorf("idToMarketParams: %w", err)
	}
	return p, nil
}

// State reads the market totals for a market ID.
func (s *Source) State(ctx context.Context, id common.Hash) (ratemath.MarketState, error) {
	out, err := s.morpho.Call(ctx, s.rpc, "market", id)
	if err != nil {
		return ratemath.MarketState{}, err
	}
	v, err := uints("market", out, 6)
	if err != nil {
		return ratemath.MarketState{}, err
	}
	return ratemath.MarketState{
		TotalSupplyAssets: v[0],
		TotalSupplyShares: v[1],
		TotalBorrowAssets: v[2],
		TotalBorrowShares: v[3],
		LastUpdate:        v[4].Int64(),
		Fee:               v[5],
	}, nil
}

// BorrowRate asks the market's IRM for the per-second borrow rate. Markets
// without an IRM borrow at zero.
func (s *Source) BorrowRate(ctx context.Context, p MarketParams, st ratemath.MarketState) (*big.Int, error) {
	if p.IRM == (common.Address{}) {
		return new(big.Int), nil
	}

	params := marketParamsTuple{
		LoanToken:       p.LoanToken,
		CollateralToken: p.CollateralToken,
		Oracle:          p.Oracle,
		Irm:             p.IRM,
		Lltv:            p.LLTV,
	}
	market := marketTuple{
		TotalSupplyAssets: st.TotalSupplyAssets,
		TotalSupplyShares: st.TotalSupplyShares,
		TotalBorrowAssets: st.TotalBorrowAssets,
		TotalBorrowShares: st.TotalBorrowShares,
		LastUpdate:        big.NewInt(st.LastUpdate),
		Fee:               st.Fee,
	}
	out, err := ethrpc.NewContract(p.IRM, irmABI).Call(ctx, s.rpc, "borrowRateView", params, market)
	if err != nil {
		return nil, err
	}
	rate, err := ethrpc.Output[*big.Int](out, 0)
	if err != nil {
		return nil, fmt.Errorf("borrowRateView: %w", err)
	}
	return rate, nil
}

func (s *Source) decimals(ctx context.Context, token common.Address) (int, error) {
	out, err := ethrpc.NewContract(token, erc20ABI).Call(ctx, s.rpc, "decimals")
	if err != nil {
		return 0, err
	}
	d, err := ethrpc.Output[uint8](out, 0)
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	return int(d), nil
}

// Position evaluates a borrower's health in a market at the latest block.
func (s *Source) Position(ctx context.Context, id common.Hash, user common.Address) (ratemath.MorphoPosition, error) {
	params, err := s.Params(ctx, id)
	if err != nil {
		return ratemath.MorphoPosition{}, err
	}
	state, err := s.State(ctx, id)
	if err != nil {
		return ratemath.MorphoPosition{}, err
	}
	rate, err := s.BorrowRate(ctx, params, state)
	if err != nil {
		return ratemath.MorphoPosition{}, err
	}
	now, err := s.rpc.BlockTimestamp(ctx)
	if err != nil {
		return ratemath.MorphoPosition{}, fmt.Errorf("block timestamp: %w", err)
	}

	out, err := s.morpho.Call(ctx, s.rpc, "position", id, user)
	if err != nil {
		return ratemath.MorphoPosition{}, err
	}
	pos, err := uints("position", out, 3)
	if err != nil {
		return ratemath.MorphoPosition{}, err
	}

	out, err = ethrpc.NewContract(params.Oracle, oracleABI).Call(ctx, s.rpc, "price")
	if err != nil {
		return ratemath.MorphoPosition{}, fmt.Errorf("oracle %w", err)
	}
	price, err := ethrpc.Output[*big.Int](out, 0)
	if err != nil {
		return ratemath.MorphoPosition{}, fmt.Errorf("oracle price: %w", err)
	}

	accrued := ratemath.AccrueInterest(now, state, rate)
	return ratemath.MorphoHealth(pos[2], price, params.LLTV, pos[1], accrued), nil
}

// NormalizeID lower-cases a market ID and adds the 0x prefix.
func NormalizeID(id string) string {
	return "0x" + strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(id, "0x"), "0X"))
}
