package main

import (
	"fmt"
	"os"
	"strings"

	"hedge_watcher/internal/analytics"
	"hedge_watcher/internal/config"
	"hedge_watcher/internal/logger"
	"hedge_watcher/internal/market"
	"hedge_watcher/internal/market/alpaca"
	"hedge_watcher/internal/market/deribit"
	"hedge_watcher/internal/market/okx"
	"hedge_watcher/internal/storage"
	"hedge_watcher/internal/volatility"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const VersionFile = "version.latest"

var rootCmd = &cobra.Command{
	Use:   "hedge_watcher",
	Short: "Spot exposure monitor and hedge advisor",
	Long: `hedge_watcher watches monitored spot positions, alerts on exposure
breaches and suggests perpetual or options hedges over Telegram.
It never places orders.`,
	SilenceUsage: true,
}

var rootLogLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "override WATCHER_LOG_LEVEL")
}

// setup loads the configuration and starts logging. The returned rotator
// must be closed by the caller.
func setup() (*config.Config, *logger.Rotator) {
	cfg := config.Load()
	if rootLogLevel != "" {
		cfg.LogLevel = strings.ToUpper(rootLogLevel)
	}
	rot := logger.Setup(logger.Options{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFile,
		MaxSizeMB:  cfg.MaxLogSizeMB,
		MaxBackups: cfg.MaxLogBackups,
		Console:    cfg.LogConsole,
	})
	return cfg, rot
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}

func symbolsFor(cfg *config.Config, venue string) market.Symbols {
	s := cfg.Symbols[venue]
	return market.Symbols{Format: s.Format, Overrides: s.Overrides}
}

// buildGateway registers OKX and Deribit, plus Alpaca when credentials are
// configured. Deribit also serves the option chain.
func buildGateway(cfg *config.Config) (*market.Gateway, error) {
	opts := market.DefaultTransportOptions()
	if cfg.HTTPTimeout > 0 {
		opts.Timeout = cfg.HTTPTimeout
	}
	if cfg.HTTPRequestsPerSec > 0 {
		opts.RequestsPerSecond = cfg.HTTPRequestsPerSec
	}

	der := deribit.NewProvider(cfg.DeribitBaseURL, symbolsFor(cfg, "deribit"), opts)
	venues := []market.Venue{
		okx.NewProvider(cfg.OKXBaseURL, symbolsFor(cfg, "okx"), opts),
		der,
	}
	if cfg.AlpacaEnabled() {
		venues = append(venues, alpaca.NewProvider(symbolsFor(cfg, "alpaca")))
	}

	gw := market.NewGateway(cfg.PriceVenue, der, venues...)
	for _, v := range gw.Venues() {
		if v == gw.DefaultVenue() {
			return gw, nil
		}
	}
	return nil, fmt.Errorf("price venue %q is not one of %s", cfg.PriceVenue, strings.Join(gw.Venues(), ", "))
}

func openStore(cfg *config.Config) (storage.Store, error) {
	store, err := storage.Open(storage.Options{
		Backend:   cfg.StoreBackend,
		DBPath:    cfg.DBPath,
		StateFile: cfg.StateFile,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return store, nil
}

func analyticsConfig(cfg *config.Config) analytics.Config {
	ac := analytics.Config{
		Venue:        cfg.PriceVenue,
		RiskFreeRate: cfg.RiskFreeRate,
		AssumedVol:   cfg.AssumedVol,
		Confidence:   cfg.VaRConfidence,
		HistoryLimit: cfg.HistoryLimit,
	}
	if tf, err := market.ParseTimeframe(cfg.HistoryTimeframe); err == nil {
		ac.Timeframe = tf
	} else {
		log.Warn().Err(err).Str("timeframe", cfg.HistoryTimeframe).Msg("Invalid history timeframe, using default")
	}
	return ac
}

func newPredictor(cfg *config.Config, gw *market.Gateway) *volatility.Predictor {
	return &volatility.Predictor{Source: gw, Venue: cfg.PriceVenue}
}
