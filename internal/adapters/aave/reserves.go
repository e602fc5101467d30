package aave

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/domain"
)

// DefaultAddressesProvider is the Aave v3 PoolAddressesProvider on Arbitrum
// and Polygon.
var DefaultAddressesProvider = common.HexToAddress("0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb")

// Reserve identifies an Aave reserve by its underlying token.
type Reserve struct {
	Asset    string
	Address  string
	Decimals int
}

var defaultReserves = map[domain.Chain][]Reserve{
	domain.ChainArbitrum: {
		{"WETH", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18},
		{"USDC", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", 6},
		{"USDCE", "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8", 6},
		{"USDT", "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", 6},
		{"DAI", "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", 18},
	},
	domain.ChainPolygon: {
		{"WMATIC", "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", 18},
		{"USDC", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", 6},
		{"USDT", "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", 6},
		{"DAI", "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", 18},
	},
}

// DefaultReserves returns the built-in reserves of chain, or nil.
func DefaultReserves(chain domain.Chain) []Reserve {
	return append([]Reserve(nil), defaultReserves[chain]...)
}

// DefaultMarkets returns the built-in reserves of chain as markets.
func DefaultMarkets(chain domain.Chain) []domain.Market {
	reserves := defaultReserves[chain]
	out := make([]domain.Market, 0, len(reserves))
	for _, r := range reserves {
		out = append(out, domain.Market{
			Key:      domain.MarketKey(domain.ProtocolAave, chain, r.Asset),
			Protocol: domain.ProtocolAave,
			Chain:    chain,
			Asset:    r.Asset,
			Source:   domain.SourceAave,
			Address:  r.Address,
			Decimals: r.Decimals,
		})
	}
	return out
}
