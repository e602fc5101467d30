package llama

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/stableopt/internal/backtest"
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

// maxConcurrentPools bounds parallel requests to the API.
const maxConcurrentPools = 4

// Source implements ports.RateSource from DeFiLlama pool charts.
type Source struct {
	client  *Client
	markets []domain.Market
	logger  ports.Logger
}

// NewSource creates a source for markets. Markets without a pool ID are
// ignored.
func NewSource(client *Client, markets []domain.Market, logger ports.Logger) *Source {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	var withID []domain.Market
	for _, m := range markets {
		if m.PoolID != "" {
			withID = append(withID, m)
		}
	}
	return &Source{client: client, markets: withID, logger: logger}
}

// Name returns the source identifier.
func (s *Source) Name() string { return string(domain.SourceLlama) }

// Markets returns the markets this source fetches.
func (s *Source) Markets() []domain.Market { return s.markets }

// Fetch returns the latest observation of every pool. Pools that fail are
// logged and skipped; an error is returned only when every pool fails.
func (s *Source) Fetch(ctx context.Context) ([]domain.Rate, error) {
	var (
		mu    sync.Mutex
		rates []domain.Rate
		errs  []error
	)

	s.forEach(ctx, func(m domain.Market, points []Point, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		if len(points) == 0 {
			return
		}
		rates = append(rates, toRate(m, points[len(points)-1]))
	})

	if len(errs) > 0 && len(rates) == 0 {
		return nil, errors.Join(errs...)
	}
	return rates, nil
}

// History returns the outer join of every pool's history.
func (s *Source) History(ctx context.Context) (*backtest.Series, error) {
	var (
		mu     sync.Mutex
		series = &backtest.Series{}
		errs   []error
	)

	s.forEach(ctx, func(m domain.Market, points []Point, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		for _, p := range points {
			series.Add(p.Timestamp, m.Key, backtest.Pair{Supply: p.APYBase, Borrow: p.APYBaseBorrow})
		}
	})

	if len(errs) > 0 {
		return series, errors.Join(errs...)
	}
	return series, nil
}

func (s *Source) forEach(ctx context.Context, fn func(domain.Market, []Point, error)) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentPools)

	for _, m := range s.markets {
		g.Go(func() error {
			points, err := s.client.PoolHistory(ctx, m.PoolID)
			if err != nil {
				s.logger.Warn("llama pool fetch failed",
					log.String("market", m.Key),
					log.String("pool_id", m.PoolID),
					log.Err(err),
				)
				err = fmt.Errorf("%s: %w", m.Key, err)
			}
			fn(m, points, err)
			return nil
		})
	}
	_ = g.Wait()
}

func toRate(m domain.Market, p Point) domain.Rate {
	r := domain.Rate{Market: m, ObservedAt: p.Timestamp.UTC()}
	if p.APYBase != nil {
		r.SupplyAPY = *p.APYBase
	}
	if p.APYBaseBorrow != nil {
		r.BorrowAPY = *p.APYBaseBorrow
	}
	if p.TotalSupplyUSD != nil {
		r.TotalSupply = *p.TotalSupplyUSD
	}
	if p.TotalBorrowUSD != nil {
		r.TotalBorrow = *p.TotalBorrowUSD
	}
	if r.TotalSupply > 0 {
		r.Utilization = r.TotalBorrow / r.TotalSupply
	}
	return r
}
