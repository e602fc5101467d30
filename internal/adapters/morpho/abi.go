package morpho

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
)

var morphoABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"idToMarketParams","stateMutability":"view",
	 "inputs":[{"name":"id","type":"bytes32"}],
	 "outputs":[
		{"name":"loanToken","type":"address"},
		{"name":"collateralToken","type":"address"},
		{"name":"oracle","type":"address"},
		{"name":"irm","type":"address"},
		{"name":"lltv","type":"uint256"}]},
	{"type":"function","name":"market","stateMutability":"view",
	 "inputs":[{"name":"id","type":"bytes32"}],
	 "outputs":[
		{"name":"totalSupplyAssets","type":"uint128"},
		{"name":"totalSupplyShares","type":"uint128"},
		{"name":"totalBorrowAssets","type":"uint128"},
		{"name":"totalBorrowShares","type":"uint128"},
		{"name":"lastUpdate","type":"uint128"},
		{"name":"fee","type":"uint128"}]},
	{"type":"function","name":"position","stateMutability":"view",
	 "inputs":[{"name":"id","type":"bytes32"},{"name":"user","type":"address"}],
	 "outputs":[
		{"name":"supplyShares","type":"uint256"},
		{"name":"borrowShares","type":"uint128"},
		{"name":"collateral","type":"uint128"}]}
]`)

var irmABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"borrowRateView","stateMutability":"view",
	 "inputs":[
		{"name":"marketParams","type":"tuple","components":[
			{"name":"loanToken","type":"address"},
			{"name":"collateralToken","type":"address"},
			{"name":"oracle","type":"address"},
			{"name":"irm","type":"address"},
			{"name":"lltv","type":"uint256"}]},
		{"name":"market","type":"tuple","components":[
			{"name":"totalSupplyAssets","type":"uint128"},
			{"name":"totalSupplyShares","type":"uint128"},
			{"name":"totalBorrowAssets","type":"uint128"},
			{"name":"totalBorrowShares","type":"uint128"},
			{"name":"lastUpdate","type":"uint128"},
			{"name":"fee","type":"uint128"}]}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`)

var oracleABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"price","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`)

var erc20ABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`)

// Tuple arguments of borrowRateView. Field names follow the ABI component
// names.
type (
	marketParamsTuple struct {
		LoanToken       common.Address
		CollateralToken common.Address
		Oracle          common.Address
		Irm             common.Address
		Lltv            *big.Int
	}

	marketTuple struct {
		TotalSupplyAssets *big.Int
		TotalSupplyShares *big.Int
		TotalBorrowAssets *big.Int
		TotalBorrowShares *big.Int
		LastUpdate        *big.Int
		Fee               *big.Int
	}
)
