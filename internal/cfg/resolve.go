package cfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"hftbot/internal/common"
)

// ErrMalformed marks configuration input that is syntactically or
// structurally invalid: an unreadable or undecodable file, a known key
// holding a value of the wrong type, or an environment override that does
// not parse. Malformed input is always fatal.
var ErrMalformed = errors.New("malformed configuration")

// Resolve builds a configuration snapshot from three layers with increasing
// precedence: built-in defaults, the JSON file at path, and the enumerated
// environment overrides. A missing file is not an error; the defaults are
// persisted to path so the operator has a file to edit. A file that exists
// but cannot be decoded is fatal.
func Resolve(path string) (Config, error) {
	c := Defaults()
	c.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", path).Msg("config file not found, writing defaults")
		if saveErr := c.Save(path); saveErr != nil {
			log.Warn().Err(saveErr).Str("path", path).Msg("could not persist default config")
		}
	case err != nil:
		return Config{}, fmt.Errorf("%w: reading %s: %v", ErrMalformed, path, err)
	default:
		if err := c.applyFile(path, data); err != nil {
			return Config{}, err
		}
	}

	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}

	for _, w := range c.Warnings() {
		log.Warn().Msg(w)
	}
	return c, nil
}

// applyFile merges the file layer. The merge is shallow: a top-level key
// present in the file replaces the default value wholesale, nested groups
// included. Keys outside the default set are logged and ignored.
func (c *Config) applyFile(path string, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrMalformed, path, err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		known, err := c.applyKey(key, raw[key])
		if err != nil {
			return err
		}
		if !known {
			log.Warn().Str("key", key).Str("path", path).Msg("ignoring unknown configuration key")
		}
	}
	return nil
}

// applyEnv merges the environment layer. Only the variables in the table
// below are consulted; empty values count as unset. The testnet toggle
// follows the historical contract: any value other than "true" (case
// insensitive) means false.
func (c *Config) applyEnv() error {
	if v := os.Getenv(common.EnvBinanceAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(common.EnvBinanceSecret); v != "" {
		c.APISecret = v
	}
	if v := os.Getenv(common.EnvUseTestnet); v != "" {
		c.UseTestnet = strings.EqualFold(v, "true")
	}
	if v := os.Getenv(common.EnvSymbol); v != "" {
		c.Symbol = v
	}
	if v := os.Getenv(common.EnvMaxPositionSize); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: environment %s=%q: %v", ErrMalformed, common.EnvMaxPositionSize, v, err)
		}
		c.MaxPositionSize = f
	}
	if v := os.Getenv(common.EnvStrategy); v != "" {
		c.Strategy = v
	}
	return nil
}

// applyKey decodes raw into the field addressed by key, replacing the
// current value wholesale. It reports whether the key belongs to the default
// key set.
func (c *Config) applyKey(key string, raw json.RawMessage) (bool, error) {
	switch key {
	case "LOOP_INTERVAL":
		return true, assign(&c.LoopInterval, key, raw)
	case "USE_TESTNET":
		return true, assign(&c.UseTestnet, key, raw)
	case "DB_PATH":
		return true, assign(&c.DBPath, key, raw)
	case "DATA_PATH":
		return true, assign(&c.DataPath, key, raw)
	case "LOG_LEVEL":
		return true, assign(&c.LogLevel, key, raw)
	case "LOG_FILE":
		return true, assign(&c.LogFile, key, raw)
	case "METRICS_PORT":
		return true, assign(&c.MetricsPort, key, raw)
	case "REST_TIMEOUT":
		return true, assign(&c.RESTTimeoutSec, key, raw)
	case "SYMBOL":
		return true, assign(&c.Symbol, key, raw)
	case "API_KEY":
		return true, assign(&c.APIKey, key, raw)
	case "API_SECRET":
		return true, assign(&c.APISecret, key, raw)
	case "EMAIL_CONFIG":
		return true, assign(&c.Email, key, raw)
	case "TELEGRAM_CONFIG":
		return true, assign(&c.Telegram, key, raw)
	case "NATS_CONFIG":
		return true, assign(&c.NATS, key, raw)
	case "MAX_POSITION_SIZE":
		return true, assign(&c.MaxPositionSize, key, raw)
	case "MAX_RISK_PER_TRADE":
		return true, assign(&c.MaxRiskPerTrade, key, raw)
	case "MAX_DAILY_LOSS":
		return true, assign(&c.MaxDailyLoss, key, raw)
	case "MAX_OPEN_ORDERS":
		return true, assign(&c.MaxOpenOrders, key, raw)
	case "MAX_TRADES_PER_DAY":
		return true, assign(&c.MaxTradesPerDay, key, raw)
	case "STRATEGY":
		return true, assign(&c.Strategy, key, raw)
	case "MM_SPREAD":
		return true, assign(&c.MMSpread, key, raw)
	case "MM_ORDER_SIZE":
		return true, assign(&c.MMOrderSize, key, raw)
	case "MM_ORDER_COUNT":
		return true, assign(&c.MMOrderCount, key, raw)
	case "MM_REFRESH_RATE":
		return true, assign(&c.MMRefreshRate, key, raw)
	case "ARBITRAGE_SYMBOLS":
		return true, assign(&c.ArbitrageSymbols, key, raw)
	case "MIN_PROFIT_THRESHOLD":
		return true, assign(&c.MinProfitThreshold, key, raw)
	case "MOMENTUM_TIMEFRAME":
		return true, assign(&c.MomentumTimeframe, key, raw)
	case "LOOKBACK_PERIOD":
		return true, assign(&c.LookbackPeriod, key, raw)
	case "RSI_PERIOD":
		return true, assign(&c.RSIPeriod, key, raw)
	case "RSI_OVERBOUGHT":
		return true, assign(&c.RSIOverbought, key, raw)
	case "RSI_OVERSOLD":
		return true, assign(&c.RSIOversold, key, raw)
	case "EMA_SHORT":
		return true, assign(&c.EMAShort, key, raw)
	case "EMA_LONG":
		return true, assign(&c.EMALong, key, raw)
	case "AVAILABLE_PAIRS":
		return true, assign(&c.AvailablePairs, key, raw)
	case "AVAILABLE_TIMEFRAMES":
		return true, assign(&c.AvailableTimeframes, key, raw)
	default:
		return false, nil
	}
}

// assign decodes raw into a fresh zero value before storing it, so nested
// groups and slices replace rather than merge.
func assign[T any](dst *T, key string, raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: key %s: %v", ErrMalformed, key, err)
	}
	*dst = v
	return nil
}
