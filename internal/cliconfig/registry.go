package cliconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bft-labs/stableopt/internal/adapters/aave"
	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
	"github.com/bft-labs/stableopt/internal/adapters/llama"
	"github.com/bft-labs/stableopt/internal/adapters/morpho"
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
)

// Registry groups the tracked markets by rate source.
type Registry struct {
	Llama  []domain.Market
	Aave   map[domain.Chain][]domain.Market
	Morpho map[domain.Chain][]domain.Market
}

// Len returns the number of tracked markets.
func (r Registry) Len() int {
	n := len(r.Llama)
	for _, ms := range r.Aave {
		n += len(ms)
	}
	for _, ms := range r.Morpho {
		n += len(ms)
	}
	return n
}

// market converts a [[markets]] entry. The key supplies protocol, chain and
// asset; explicit chain and asset fields override it.
func (m MarketConfig) market() (domain.Market, error) {
	source, err := domain.ParseSource(m.Source)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Key == "" {
		return domain.Market{}, fmt.Errorf("key is required")
	}
	market, err := domain.NewMarketFromKey(m.Key, source)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Chain != "" {
		if market.Chain, err = domain.ParseChain(m.Chain); err != nil {
			return domain.Market{}, err
		}
	}
	if m.Asset != "" {
		market.Asset = strings.ToUpper(m.Asset)
	}
	market.PoolID = m.PoolID
	market.Address = m.Address
	market.Decimals = m.Decimals

	switch source {
	case domain.SourceLlama:
		if market.PoolID == "" {
			return domain.Market{}, fmt.Errorf("%s: pool_id is required for llama markets", m.Key)
		}
	case domain.SourceMorpho:
		if m.MarketID == "" {
			return domain.Market{}, fmt.Errorf("%s: market_id is required for morpho markets", m.Key)
		}
		market.MarketID = morpho.NormalizeID(m.MarketID)
	case domain.SourceAave:
		if market.Address == "" {
			r, ok := defaultReserve(market.Chain, market.Asset)
			if !ok {
				return domain.Market{}, fmt.Errorf("%s: address is required for %s on %s", m.Key, market.Asset, market.Chain)
			}
			market.Address = r.Address
			if market.Decimals == 0 {
				market.Decimals = r.Decimals
			}
		}
	}
	return market, nil
}

func defaultReserve(chain domain.Chain, asset string) (aave.Reserve, bool) {
	for _, r := range aave.DefaultReserves(chain) {
		if strings.EqualFold(r.Asset, asset) {
			return r, true
		}
	}
	return aave.Reserve{}, false
}

// rpcURLs maps the [chains.<name>] sections onto chains.
func (c Config) rpcURLs() map[domain.Chain]string {
	out := make(map[domain.Chain]string, len(c.Chains))
	for name, cc := range c.Chains {
		chain, err := domain.ParseChain(name)
		if err != nil || cc.RPCURL == "" {
			continue
		}
		out[chain] = cc.RPCURL
	}
	return out
}

// RPCURL returns the RPC endpoint configured for chain, or "".
func (c Config) RPCURL(chain domain.Chain) string {
	return c.rpcURLs()[chain]
}

// BuildRegistry resolves the tracked markets. Without [[markets]] it falls
// back to the built-in DeFiLlama pools plus the built-in Aave reserves of
// every chain with an RPC URL.
func BuildRegistry(cfg Config) (Registry, error) {
	reg := Registry{
		Aave:   map[domain.Chain][]domain.Market{},
		Morpho: map[domain.Chain][]domain.Market{},
	}

	if len(cfg.Markets) == 0 {
		reg.Llama = llama.DefaultPools()
		for chain := range cfg.rpcURLs() {
			if ms := aave.DefaultMarkets(chain); len(ms) > 0 {
				reg.Aave[chain] = ms
			}
		}
		return reg, nil
	}

	seen := map[string]bool{}
	for i, mc := range cfg.Markets {
		m, err := mc.market()
		if err != nil {
			return Registry{}, fmt.Errorf("markets[%d]: %w", i, err)
		}
		id := string(m.Source) + "/" + m.Key
		if seen[id] {
			return Registry{}, fmt.Errorf("markets[%d]: duplicate %s market %s", i, m.Source, m.Key)
		}
		seen[id] = true

		switch m.Source {
		case domain.SourceLlama:
			reg.Llama = append(reg.Llama, m)
		case domain.SourceAave:
			reg.Aave[m.Chain] = append(reg.Aave[m.Chain], m)
		case domain.SourceMorpho:
			reg.Morpho[m.Chain] = append(reg.Morpho[m.Chain], m)
		}
	}
	return reg, nil
}

// BuildSources creates one rate source per DeFiLlama registry and per
// chain of on-chain markets. JSON-RPC clients are shared per chain;
// httpClient serves DeFiLlama only.
func BuildSources(cfg Config, reg Registry, httpClient ports.HTTPClient, logger ports.Logger) ([]ports.RateSource, error) {
	var sources []ports.RateSource
	if len(reg.Llama) > 0 {
		sources = append(sources, llama.NewSource(llama.NewClient(cfg.LlamaURL, httpClient), reg.Llama, logger))
	}

	urls := cfg.rpcURLs()
	clients := map[domain.Chain]*ethrpc.Client{}
	client := func(chain domain.Chain) (*ethrpc.Client, error) {
		if c, ok := clients[chain]; ok {
			return c, nil
		}
		url, ok := urls[chain]
		if !ok {
			return nil, fmt.Errorf("%w: no rpc_url configured for chain %s", domain.ErrInvalidConfig, chain)
		}
		c, err := ethrpc.Dial(url,
			ethrpc.WithTimeout(cfg.HTTPTimeout),
			ethrpc.WithRateLimit(cfg.RPCRateLimit, ethrpc.DefaultBurst),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: chain %s: %w", domain.ErrInvalidConfig, chain, err)
		}
		clients[chain] = c
		return c, nil
	}

	for _, chain := range sortedChains(reg.Aave) {
		c, err := client(chain)
		if err != nil {
			return nil, err
		}
		sources = append(sources, aave.NewSource(chain, c, aave.DefaultAddressesProvider, reg.Aave[chain], logger))
	}
	for _, chain := range sortedChains(reg.Morpho) {
		c, err := client(chain)
		if err != nil {
			return nil, err
		}
		sources = append(sources, morpho.NewSource(chain, c, morpho.DefaultAddresses()[chain], reg.Morpho[chain], logger))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no markets to track", domain.ErrInvalidConfig)
	}
	return sources, nil
}

func sortedChains(m map[domain.Chain][]domain.Market) []domain.Chain {
	out := make([]domain.Chain, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
