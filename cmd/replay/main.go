package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hftbot/internal/backtest"
	"hftbot/internal/capture"
	"hftbot/internal/cfg"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "scenario.yaml", "path to the replay scenario file")
		configPath   = flag.String("config", "config.json", "path to the configuration file")
		outputPath   = flag.String("output", "", "directory for report files (console only when empty)")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	sc, err := backtest.LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("scenario load failed")
	}

	c, err := cfg.Resolve(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config resolution failed")
	}

	store, err := capture.Open(sc.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("capture open failed")
	}
	defer store.Close()

	engine, err := backtest.NewEngine(sc, c)
	if err != nil {
		log.Fatal().Err(err).Msg("engine build failed")
	}
	results, err := engine.Run(store)
	if err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}
	if results.Snapshots == 0 {
		log.Warn().
			Str("symbol", sc.Symbol).
			Str("data_path", sc.DataPath).
			Msg("no captured snapshots in the requested window")
	}

	reporter := backtest.NewReporter(results, *outputPath)
	if *outputPath != "" {
		if err := reporter.Write(); err != nil {
			log.Error().Err(err).Msg("report writing failed")
		}
	}
	reporter.PrintSummary()
}
