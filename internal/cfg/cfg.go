package cfg

import (
	"fmt"
	"strings"
	"time"

	"hftbot/internal/common"
)

// Config is a resolved configuration snapshot. Snapshots are immutable:
// Update returns a new value instead of mutating the receiver. JSON tags
// keep the historical key names so persisted files stay exchangeable with
// earlier deployments.
type Config struct {
	LoopInterval   float64 `json:"LOOP_INTERVAL"`
	UseTestnet     bool    `json:"USE_TESTNET"`
	DBPath         string  `json:"DB_PATH"`
	DataPath       string  `json:"DATA_PATH"`
	LogLevel       string  `json:"LOG_LEVEL"`
	LogFile        string  `json:"LOG_FILE"`
	MetricsPort    int     `json:"METRICS_PORT"`
	RESTTimeoutSec float64 `json:"REST_TIMEOUT"`

	Symbol    string `json:"SYMBOL"`
	APIKey    string `json:"API_KEY"`
	APISecret string `json:"API_SECRET"`

	Email    EmailConfig    `json:"EMAIL_CONFIG"`
	Telegram TelegramConfig `json:"TELEGRAM_CONFIG"`
	NATS     NATSConfig     `json:"NATS_CONFIG"`

	MaxPositionSize float64 `json:"MAX_POSITION_SIZE"`
	MaxRiskPerTrade float64 `json:"MAX_RISK_PER_TRADE"`
	MaxDailyLoss    float64 `json:"MAX_DAILY_LOSS"`
	MaxOpenOrders   int     `json:"MAX_OPEN_ORDERS"`
	MaxTradesPerDay int     `json:"MAX_TRADES_PER_DAY"`

	Strategy string `json:"STRATEGY"`

	MMSpread      float64 `json:"MM_SPREAD"`
	MMOrderSize   float64 `json:"MM_ORDER_SIZE"`
	MMOrderCount  int     `json:"MM_ORDER_COUNT"`
	MMRefreshRate float64 `json:"MM_REFRESH_RATE"`

	ArbitrageSymbols   []string `json:"ARBITRAGE_SYMBOLS"`
	MinProfitThreshold float64  `json:"MIN_PROFIT_THRESHOLD"`

	MomentumTimeframe string `json:"MOMENTUM_TIMEFRAME"`
	LookbackPeriod    int    `json:"LOOKBACK_PERIOD"`
	RSIPeriod         int    `json:"RSI_PERIOD"`
	RSIOverbought     int    `json:"RSI_OVERBOUGHT"`
	RSIOversold       int    `json:"RSI_OVERSOLD"`
	EMAShort          int    `json:"EMA_SHORT"`
	EMALong           int    `json:"EMA_LONG"`

	AvailablePairs      []string `json:"AVAILABLE_PAIRS"`
	AvailableTimeframes []string `json:"AVAILABLE_TIMEFRAMES"`

	path string
}

type EmailConfig struct {
	Enabled       bool   `json:"enabled"`
	SMTPServer    string `json:"smtp_server"`
	SMTPPort      int    `json:"smtp_port"`
	SenderEmail   string `json:"sender_email"`
	ReceiverEmail string `json:"receiver_email"`
	Password      string `json:"password"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// Defaults returns the built-in configuration. Every key the resolver
// understands has a value here; file and environment layers can only
// override keys from this set.
func Defaults() Config {
	return Config{
		LoopInterval:   0.1,
		UseTestnet:     true,
		DBPath:         "data/trading_data.db",
		DataPath:       "data/market",
		LogLevel:       "INFO",
		LogFile:        "logs/hftbot.log",
		MetricsPort:    8080,
		RESTTimeoutSec: 5.0,

		Symbol: "BTCUSDT",

		Email: EmailConfig{
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "hftbot.alerts",
		},

		MaxPositionSize: 0.01,
		MaxRiskPerTrade: 0.02,
		MaxDailyLoss:    0.05,
		MaxOpenOrders:   10,
		MaxTradesPerDay: 500,

		Strategy: common.StrategyMarketMaking,

		MMSpread:      0.002,
		MMOrderSize:   0.001,
		MMOrderCount:  3,
		MMRefreshRate: 1,

		ArbitrageSymbols:   []string{"BTCUSDT", "ETHUSDT", "ETHBTC"},
		MinProfitThreshold: 0.003,

		MomentumTimeframe: "1m",
		LookbackPeriod:    20,
		RSIPeriod:         14,
		RSIOverbought:     70,
		RSIOversold:       30,
		EMAShort:          9,
		EMALong:           21,

		AvailablePairs: []string{
			"BTCUSDT", "ETHUSDT", "BNBUSDT", "ADAUSDT", "SOLUSDT",
			"XRPUSDT", "DOTUSDT", "DOGEUSDT", "AVAXUSDT", "MATICUSDT",
		},
		AvailableTimeframes: []string{
			"1s", "1m", "3m", "5m", "15m", "30m", "1h", "4h", "1d",
		},
	}
}

// Path returns the file the snapshot was resolved from, empty for defaults
// that never touched disk.
func (c Config) Path() string { return c.path }

// Interval returns the main loop interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.LoopInterval * float64(time.Second))
}

// RESTTimeout bounds every REST call to the exchange.
func (c Config) RESTTimeout() time.Duration {
	return time.Duration(c.RESTTimeoutSec * float64(time.Second))
}

// RefreshRate returns the market-making re-quote interval.
func (c Config) RefreshRate() time.Duration {
	return time.Duration(c.MMRefreshRate * float64(time.Second))
}

// Warnings runs the advisory checks and returns one message per finding.
// Findings never fail resolution; the conditions they describe are enforced
// later, during collaborator construction.
func (c Config) Warnings() []string {
	var warns []string
	if c.APIKey == "" || c.APISecret == "" {
		warns = append(warns, "exchange credentials not configured, authenticated calls will fail")
	}
	if !containsString(c.AvailablePairs, c.Symbol) {
		warns = append(warns, fmt.Sprintf("symbol %s is not in AVAILABLE_PAIRS", c.Symbol))
	}
	if !common.IsValidStrategy(c.Strategy) {
		warns = append(warns, fmt.Sprintf("unknown strategy %q, valid strategies: %s",
			c.Strategy, strings.Join(common.ValidStrategies, ", ")))
	}
	return warns
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
