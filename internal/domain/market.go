package domain

import (
	"fmt"
	"strings"
)

// Protocol identifies a lending protocol.
type Protocol string

const (
	ProtocolAave     Protocol = "aave-v3"
	ProtocolMorpho   Protocol = "morpho-blue"
	ProtocolCompound Protocol = "compound-v3"
)

// keyPrefix is the short protocol prefix used in market keys.
func (p Protocol) keyPrefix() string {
	switch p {
	case ProtocolAave:
		return "aave"
	case ProtocolMorpho:
		return "morpho"
	case ProtocolCompound:
		return "comp"
	default:
		return string(p)
	}
}

// Source identifies where a rate observation came from.
type Source string

const (
	SourceLlama  Source = "llama"
	SourceAave   Source = "aave"
	SourceMorpho Source = "morpho"
)

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(s)) {
	case SourceLlama:
		return SourceLlama, nil
	case SourceAave:
		return SourceAave, nil
	case SourceMorpho:
		return SourceMorpho, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Chain identifies an EVM network.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainArbitrum Chain = "arbitrum"
	ChainPolygon  Chain = "polygon"
	ChainBase     Chain = "base"
	ChainOptimism Chain = "optimism"
	ChainGnosis   Chain = "gnosis"
)

var chainCodes = map[Chain]string{
	ChainEthereum: "eth",
	ChainArbitrum: "arb",
	ChainPolygon:  "pol",
	ChainBase:     "base",
	ChainOptimism: "opt",
	ChainGnosis:   "gno",
}

// Code returns the short chain code used in market keys.
func (c Chain) Code() string {
	if code, ok := chainCodes[c]; ok {
		return code
	}
	return string(c)
}

// ParseChain accepts either a full chain name or its short code.
func ParseChain(s string) (Chain, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for chain, code := range chainCodes {
		if s == string(chain) || s == code {
			return chain, nil
		}
	}
	return "", fmt.Errorf("unknown chain %q", s)
}

// Market identifies one lending market.
type Market struct {
	// Key is the stable identifier, e.g. "aave_arb_usdc".
	Key      string   `json:"key"`
	Protocol Protocol `json:"protocol"`
	Chain    Chain    `json:"chain"`
	Asset    string   `json:"asset"`
	Source   Source   `json:"source"`

	// PoolID is the DeFiLlama pool identifier (llama source).
	PoolID string `json:"pool_id,omitempty"`

	// MarketID is the Morpho Blue market id (morpho source).
	MarketID string `json:"market_id,omitempty"`

	// Address is the underlying token address (aave source).
	Address string `json:"address,omitempty"`

	// Decimals of the underlying token, when known.
	Decimals int `json:"decimals,omitempty"`
}

// MarketKey builds the canonical key for a protocol/chain/asset triple.
func MarketKey(p Protocol, c Chain, asset string) string {
	return fmt.Sprintf("%s_%s_%s", p.keyPrefix(), c.Code(), strings.ToLower(asset))
}

// ParseMarketKey splits a key such as "comp_pol_usdc" into its parts.
func ParseMarketKey(key string) (Protocol, Chain, string, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrUnknownMarket, key)
	}

	var p Protocol
	switch parts[0] {
	case "aave":
		p = ProtocolAave
	case "morpho":
		p = ProtocolMorpho
	case "comp":
		p = ProtocolCompound
	default:
		return "", "", "", fmt.Errorf("%w: unknown protocol in %q", ErrUnknownMarket, key)
	}

	c, err := ParseChain(parts[1])
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrUnknownMarket, err)
	}
	return p, c, strings.ToUpper(parts[2]), nil
}

// NewMarketFromKey fills protocol, chain and asset from a market key.
func NewMarketFromKey(key string, source Source) (Market, error) {
	p, c, asset, err := ParseMarketKey(key)
	if err != nil {
		return Market{}, err
	}
	return Market{Key: key, Protocol: p, Chain: c, Asset: asset, Source: source}, nil
}
