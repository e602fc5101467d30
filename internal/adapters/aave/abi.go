package aave

import "github.com/bft-labs/stableopt/internal/adapters/ethrpc"

// getReserveData returns the ReserveData struct. Its members are all static,
// so it is declared as flat outputs with the same encoding.
var poolABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"getReserveData","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],
	 "outputs":[
		{"name":"configuration","type":"uint256"},
		{"name":"liquidityIndex","type":"uint128"},
		{"name":"currentLiquidityRate","type":"uint128"},
		{"name":"variableBorrowIndex","type":"uint128"},
		{"name":"currentVariableBorrowRate","type":"uint128"},
		{"name":"currentStableBorrowRate","type":"uint128"},
		{"name":"lastUpdateTimestamp","type":"uint40"},
		{"name":"id","type":"uint16"},
		{"name":"aTokenAddress","type":"address"},
		{"name":"stableDebtTokenAddress","type":"address"},
		{"name":"variableDebtTokenAddress","type":"address"},
		{"name":"interestRateStrategyAddress","type":"address"},
		{"name":"accruedToTreasury","type":"uint128"},
		{"name":"unbacked","type":"uint128"},
		{"name":"isolationModeTotalDebt","type":"uint128"}]},
	{"type":"function","name":"getUserAccountData","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[
		{"name":"totalCollateralBase","type":"uint256"},
		{"name":"totalDebtBase","type":"uint256"},
		{"name":"availableBorrowsBase","type":"uint256"},
		{"name":"currentLiquidationThreshold","type":"uint256"},
		{"name":"ltv","type":"uint256"},
		{"name":"healthFactor","type":"uint256"}]}
]`)

var addressesProviderABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"getPool","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getPriceOracle","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]}
]`)

var oracleABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"getAssetPrice","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`)

var erc20ABI = ethrpc.MustParseABI(`[
	{"type":"function","name":"totalSupply","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`)

// Output positions in getReserveData.
const (
	outLiquidityRate      = 2
	outVariableBorrowRate = 4
	outAToken             = 8
	outVariableDebtToken  = 10
)

// Output positions in getUserAccountData.
const (
	outTotalCollateral = iota
	outTotalDebt
	outAvailableBorrows
	outLiquidationThreshold
	outLTV
	outHealthFactor
)
