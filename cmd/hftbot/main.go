package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"hftbot/internal/bot"
	"hftbot/internal/cfg"
	"hftbot/internal/metrics"
	"hftbot/internal/strategy"
)

func main() {
	godotenv.Load()

	var (
		configPath = flag.String("config", "config.json", "path to the configuration file")
		debug      = flag.Bool("debug", false, "force debug logging")
		backtest   = flag.Bool("backtest", false, "trade against the exchange testnet")
		strat      = flag.String("strategy", "", "override the configured strategy")
	)
	flag.Parse()

	if *strat != "" && !knownStrategy(*strat) {
		fmt.Fprintf(os.Stderr, "unknown strategy %q, valid strategies: %s\n",
			*strat, strings.Join(strategy.Names(), ", "))
		os.Exit(2)
	}

	c, err := cfg.Resolve(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config resolution failed")
	}
	if *strat != "" {
		c.Strategy = *strat
	}
	if *backtest {
		c.UseTestnet = true
	}

	setupLogging(c, *debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	startMetricsServer(ctx, c)

	s, err := bot.New(ctx, c, bot.Wiring{Metrics: m})
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
	if err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("session ended with a failure")
		os.Exit(1)
	}
}

func knownStrategy(name string) bool {
	for _, s := range strategy.Names() {
		if s == name {
			return true
		}
	}
	return false
}

// setupLogging points the global logger at stderr, and at a rotating file as
// well when LOG_FILE is set. The resolved LOG_LEVEL applies unless --debug
// overrides it.
func setupLogging(c cfg.Config, debug bool) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if c.LogFile != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	if err != nil {
		log.Warn().Str("level", c.LogLevel).Msg("unparseable log level, using info")
	}
}

// startMetricsServer serves /health and /metrics until the context ends.
func startMetricsServer(ctx context.Context, c cfg.Config) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
