// Package aave reads Aave v3 reserve rates and borrower accounts over
// JSON-RPC.
package aave

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/internal/ratemath"
	"github.com/bft-labs/stableopt/pkg/log"
)

// Source implements ports.RateSource for the Aave v3 reserves of one chain.
type Source struct {
	chain    domain.Chain
	rpc      ethrpc.Caller
	provider ethrpc.Contract
	markets  []domain.Market
	logger   ports.Logger
	now      func() time.Time

	mu   sync.Mutex
	pool *ethrpc.Contract
}

// NewSource creates a source. A zero provider selects
// DefaultAddressesProvider.
func NewSource(chain domain.Chain, rpc ethrpc.Caller, provider common.Address, markets []domain.Market, logger ports.Logger) *Source {
	if provider == (common.Address{}) {
		provider = DefaultAddressesProvider
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Source{
		chain:    chain,
		rpc:      rpc,
		provider: ethrpc.NewContract(provider, addressesProviderABI),
		markets:  markets,
		logger:   logger,
		now:      time.Now,
	}
}

// Name returns the source identifier, qualified by chain.
func (s *Source) Name() string {
	return string(domain.SourceAave) + "-" + string(s.chain)
}

// Fetch reads every configured reserve. Reserves that fail are logged and
// skipped; an error is returned only when all of them fail.
func (s *Source) Fetch(ctx context.Context) ([]domain.Rate, error) {
	pool, err := s.poolContract(ctx)
	if err != nil {
		return nil, err
	}

	observed := s.now().UTC()
	var (
		rates []domain.Rate
		errs  []error
	)
	for _, m := range s.markets {
		r, err := s.reserveRate(ctx, pool, m)
		if err != nil {
			s.logger.Warn("aave reserve fetch failed",
				log.String("market", m.Key),
				log.String("chain", string(s.chain)),
				log.Err(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", m.Key, err))
			continue
		}
		r.ObservedAt = observed
		rates = append(rates, r)
	}

	if len(errs) > 0 && len(rates) == 0 {
		return nil, errors.Join(errs...)
	}
	return rates, nil
}

// poolContract resolves the Pool from the addresses provider once.
func (s *Source) poolContract(ctx context.Context) (ethrpc.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return *s.pool, nil
	}
	pool, err := resolve(ctx, s.rpc, s.provider, "getPool", poolABI)
	if err != nil {
		return ethrpc.Contract{}, err
	}
	s.pool = &pool
	return pool, nil
}

// resolve reads an address getter of the addresses provider and binds abi
// to the result.
func resolve(ctx context.Context, rpc ethrpc.Caller, provider ethrpc.Contract, getter string, parsed abi.ABI) (ethrpc.Contract, error) {
	out, err := provider.Call(ctx, rpc, getter)
	if err != nil {
		return ethrpc.Contract{}, err
	}
	addr, err := ethrpc.Output[common.Address](out, 0)
	if err != nil {
		return ethrpc.Contract{}, fmt.Errorf("%s: %w", getter, err)
	}
	if addr == (common.Address{}) {
		return ethrpc.Contract{}, fmt.Errorf("%s: zero address", getter)
	}
	return ethrpc.NewContract(addr, parsed), nil
}

func (s *Source) reserveRate(ctx context.Context, pool ethrpc.Contract, m domain.Market) (domain.Rate, error) {
	asset, err := ethrpc.ParseAddress(m.Address)
	if err != nil {
		return domain.Rate{}, err
	}
	out, err := pool.Call(ctx, s.rpc, "getReserveData", asset)
	if err != nil {
		return domain.Rate{}, err
	}
	liquidityRate, err := ethrpc.Output[*big.Int](out, outLiquidityRate)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("getReserveData: %w", err)
	}
	borrowRate, err := ethrpc.Output[*big.Int](out, outVariableBorrowRate)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("getReserveData: %w", err)
	}
	aToken, err := ethrpc.Output[common.Address](out, outAToken)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("getReserveData: %w", err)
	}
	debtToken, err := ethrpc.Output[common.Address](out, outVariableDebtToken)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("getReserveData: %w", err)
	}

	r := domain.Rate{
		Market:    m,
		SupplyAPY: ratemath.AprToApy(ratemath.FromRay(liquidityRate)) * 100,
		BorrowAPY: ratemath.AprToApy(ratemath.FromRay(borrowRate)) * 100,
	}

	supply, supplyErr := s.totalSupply(ctx, aToken, m.Decimals)
	borrow, borrowErr := s.totalSupply(ctx, debtToken, m.Decimals)
	if supplyErr != nil || borrowErr != nil {
		s.logger.Debug("aave reserve totals unavailable",
			log.String("market", m.Key),
			log.Err(errors.Join(supplyErr, borrowErr)),
		)
		return r, nil
	}
	r.TotalSupply, r.TotalBorrow = supply, borrow
	if supply > 0 {
		r.Utilization = borrow / supply
	}
	return r, nil
}

func (s *Source) totalSupply(ctx context.Context, token common.Address, decimals int) (float64, error) {
	out, err := ethrpc.NewContract(token, erc20ABI).Call(ctx, s.rpc, "totalSupply")
	if err != nil {
		return 0, err
	}
	v, err := ethrpc.Output[*big.Int](out, 0)
	if err != nil {
		return 0, fmt.Errorf("totalSupply: %w", err)
	}
	return ratemath.FromBase(v, decimals), nil
}
