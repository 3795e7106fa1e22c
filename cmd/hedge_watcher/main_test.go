package main

import (
	"bytes"
	"testing"

	"hedge_watcher/internal/config"
	"hedge_watcher/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreeksCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"greeks", "call", "60000", "60000", "30", "0.5"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "call S=60000.00 K=60000.00 T=30d")
	assert.Contains(t, out.String(), "Delta: 0.5")

	rootCmd.SetArgs([]string{"greeks", "straddle", "1", "1", "1", "1"})
	assert.Error(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"greeks", "put", "100", "100", "0", "0.5"})
	assert.Error(t, rootCmd.Execute())
}

func TestBuildGateway(t *testing.T) {
	cfg := &config.Config{
		PriceVenue: "okx",
		Symbols:    map[string]config.SymbolMap{"okx": {Format: "%s-USDC"}},
	}
	gw, err := buildGateway(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"deribit", "okx"}, gw.Venues())
	assert.Equal(t, "okx", gw.DefaultVenue())

	assert.Equal(t, market.Symbols{Format: "%s-USDC"}, symbolsFor(cfg, "okx"))

	cfg.PriceVenue = "binance"
	_, err = buildGateway(cfg)
	assert.ErrorContains(t, err, `price venue "binance"`)
}

func TestAnalyticsConfig_FallsBackOnBadTimeframe(t *testing.T) {
	ac := analyticsConfig(&config.Config{PriceVenue: "okx", HistoryTimeframe: "1h", VaRConfidence: 0.99})
	assert.Equal(t, market.OneHour, ac.Timeframe)
	assert.Equal(t, 0.99, ac.Confidence)

	ac = analyticsConfig(&config.Config{HistoryTimeframe: "fortnight"})
	assert.Empty(t, ac.Timeframe)
}
