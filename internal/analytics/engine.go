// Package analytics computes read-only portfolio risk figures over the
// monitored positions: historical VaR, return correlation, max drawdown,
// stress scenarios, aggregate option Greeks and P&L.
//
// Every analysis tolerates per-asset failures. A failing asset is logged,
// omitted from the figures and listed in the result's Skipped field.
package analytics

import (
	"context"
	"fmt"
	"time"

	"hedge_watcher/internal/greeks"
	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"
	"hedge_watcher/internal/options"

	"github.com/rs/zerolog/log"
)

// PositionSource lists the monitored positions.
type PositionSource interface {
	ListMonitoredPositions(ctx context.Context) ([]models.MonitoredPosition, error)
}

// MarketData is the subset of the market gateway the engine reads.
type MarketData interface {
	Price(ctx context.Context, asset, venue string) (float64, error)
	HistoricalCloses(ctx context.Context, asset, venue string, timeframe market.Timeframe, limit int) ([]float64, error)
	OptionChain(ctx context.Context, asset string) ([]models.OptionContract, error)
}

// Config holds the engine's pricing assumptions.
type Config struct {
	Venue string
	// Flat assumptions for hedge Greeks, not market-implied.
	RiskFreeRate float64
	AssumedVol   float64
	Confidence   float64
	HistoryLimit int
	Timeframe    market.Timeframe
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		Venue:        "okx",
		RiskFreeRate: 0.05,
		AssumedVol:   0.5,
		Confidence:   0.95,
		HistoryLimit: 90,
		Timeframe:    market.OneDay,
	}
}

// Engine is stateless apart from its collaborators and is safe for
// concurrent use.
type Engine struct {
	positions PositionSource
	market    MarketData
	cfg       Config
	now       func() time.Time
}

// NewEngine wires an engine. Zero config fields fall back to DefaultConfig.
func NewEngine(positions PositionSource, md MarketData, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Venue == "" {
		cfg.Venue = def.Venue
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = def.Confidence
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = def.Timeframe
	}
	return &Engine{positions: positions, market: md, cfg: cfg, now: time.Now}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) listPositions(ctx context.Context) ([]models.MonitoredPosition, error) {
	positions, err := e.positions.ListMonitoredPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitored positions: %w", err)
	}
	return positions, nil
}

// skip logs a per-asset failure and appends it to list.
func skip(list []models.AssetFailure, analysis, asset string, err error) []models.AssetFailure {
	log.Warn().Err(err).Str("analysis", analysis).Str("asset", asset).
		Str("kind", models.ErrorKind(err)).Msg("Asset skipped")
	return append(list, models.AssetFailure{Asset: asset, Err: err})
}

// assetReturns is one position's return series and, optionally, its spot.
type assetReturns struct {
	asset    string
	size     float64
	spot     float64
	exposure float64
	returns  []float64
}

func (e *Engine) fetchReturns(ctx context.Context, p models.MonitoredPosition, withSpot bool) (assetReturns, error) {
	closes, err := e.market.HistoricalCloses(ctx, p.Asset, e.cfg.Venue, e.cfg.Timeframe, e.cfg.HistoryLimit)
	if err != nil {
		return assetReturns{}, err
	}
	rets, err := SimpleReturns(closes)
	if err != nil {
		return assetReturns{}, fmt.Errorf("%s: %w", p.Asset, err)
	}
	ar := assetReturns{asset: p.Asset, size: p.PositionSize, returns: rets}
	if withSpot {
		spot, err := e.market.Price(ctx, p.Asset, e.cfg.Venue)
		if err != nil {
			return assetReturns{}, err
		}
		ar.spot = spot
		ar.exposure = spot * p.PositionSize
	}
	return ar, nil
}

type hedgeQuote struct {
	spot   float64
	option models.OptionContract
	greeks greeks.Vector
}

// protectivePut prices the asset's best-fit protective put under the flat
// rate and volatility assumptions.
func (e *Engine) protectivePut(ctx context.Context, asset string) (hedgeQuote, error) {
	spot, err := e.market.Price(ctx, asset, e.cfg.Venue)
	if err != nil {
		return hedgeQuote{}, fmt.Errorf("%s: %v: %w", asset, err, models.ErrSpotPriceUnavailable)
	}
	chain, err := e.market.OptionChain(ctx, asset)
	if err != nil {
		return hedgeQuote{}, err
	}
	now := e.now()
	opt, err := options.SelectHedgeOption(models.Put, asset, spot, chain, now)
	if err != nil {
		return hedgeQuote{}, err
	}
	g := greeks.Compute(models.Put, spot, opt.Strike, opt.YearsToExpiry(now), e.cfg.RiskFreeRate, e.cfg.AssumedVol)
	return hedgeQuote{spot: spot, option: opt, greeks: g}, nil
}
