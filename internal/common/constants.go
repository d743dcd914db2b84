package common

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variable keys recognized by the configuration resolver.
// The table is closed: variables not listed here never reach the config.
const (
	EnvBinanceAPIKey   = "BINANCE_API_KEY"
	EnvBinanceSecret   = "BINANCE_API_SECRET"
	EnvUseTestnet      = "BOT_USE_TESTNET"
	EnvSymbol          = "BOT_SYMBOL"
	EnvMaxPositionSize = "BOT_MAX_POSITION_SIZE"
	EnvStrategy        = "BOT_STRATEGY"
)

// Strategy identifiers. The registry registers exactly this set and the
// resolver validates STRATEGY against it.
const (
	StrategyMarketMaking = "market_making"
	StrategyArbitrage    = "arbitrage"
	StrategyMomentum     = "momentum"
)

// ValidStrategies lists every strategy identifier accepted by the registry,
// in the order they are presented to the operator.
var ValidStrategies = []string{
	StrategyMarketMaking,
	StrategyArbitrage,
	StrategyMomentum,
}

// IsValidStrategy reports whether name is a known strategy identifier.
func IsValidStrategy(name string) bool {
	for _, s := range ValidStrategies {
		if s == name {
			return true
		}
	}
	return false
}

// Exchange endpoints
const (
	MainnetBaseURL = "https://api.binance.com"
	TestnetBaseURL = "https://testnet.binance.vision"
	MainnetWsURL   = "wss://stream.binance.com:9443"
	TestnetWsURL   = "wss://stream.testnet.binance.vision"
)

// Trading constants
const (
	TakerFeeBps = 10.0 // 0.10%
	MakerFeeBps = 1.0  // 0.01%

	// QuoteStaleAfter bounds how old a cached websocket quote may be
	// before market snapshots fall back to REST.
	QuoteStaleAfter = 5 * time.Second
)

// Common error messages
const (
	ErrMsgCredentialsRequired = "API key and secret are required"
	ErrMsgUnknownStrategy     = "unknown strategy"
)

// ParseTimeframe converts a candle timeframe token such as "1m", "15m" or
// "4h" into a duration. Accepted units match the exchange's kline intervals:
// s, m, h, d.
func ParseTimeframe(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe unit in %q", tf)
	}
}
