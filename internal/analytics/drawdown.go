package analytics

import (
	"context"
	"fmt"

	"hedge_watcher/internal/models"
)

// MaxDrawdown returns the largest peak-to-trough decline of prices as a
// percentage of the running peak.
func MaxDrawdown(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, fmt.Errorf("empty price series: %w", models.ErrInsufficientHistory)
	}
	peak := prices[0]
	maxDD := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak <= 0 {
			return 0, fmt.Errorf("non-positive peak %v: %w", peak, models.ErrComputation)
		}
		if dd := (peak - p) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD * 100, nil
}

// AssetDrawdown is one asset's contribution to the portfolio drawdown.
type AssetDrawdown struct {
	Asset          string
	MaxDrawdownPct float64
	Exposure       float64
}

// DrawdownResult holds per-asset drawdowns and their exposure-weighted
// average. PortfolioPct is meaningful only when Weighted is true, which
// requires a positive total exposure.
type DrawdownResult struct {
	Assets        []AssetDrawdown
	TotalExposure float64
	PortfolioPct  float64
	Weighted      bool
	Skipped       []models.AssetFailure
}

// PortfolioMaxDrawdown computes MaxDrawdown over each asset's closes and
// weights it by current exposure.
func (e *Engine) PortfolioMaxDrawdown(ctx context.Context) (DrawdownResult, error) {
	var res DrawdownResult

	positions, err := e.listPositions(ctx)
	if err != nil {
		return res, err
	}

	var weighted float64
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ad, err := e.assetDrawdown(ctx, p)
		if err != nil {
			res.Skipped = skip(res.Skipped, "drawdown", p.Asset, err)
			continue
		}
		res.Assets = append(res.Assets, ad)
		res.TotalExposure += ad.Exposure
		weighted += ad.MaxDrawdownPct * ad.Exposure
	}

	if res.TotalExposure > 0 {
		res.PortfolioPct = weighted / res.TotalExposure
		res.Weighted = true
	}
	return res, nil
}

func (e *Engine) assetDrawdown(ctx context.Context, p models.MonitoredPosition) (AssetDrawdown, error) {
	closes, err := e.market.HistoricalCloses(ctx, p.Asset, e.cfg.Venue, e.cfg.Timeframe, e.cfg.HistoryLimit)
	if err != nil {
		return AssetDrawdown{}, err
	}
	if len(closes) < 2 {
		return AssetDrawdown{}, fmt.Errorf("%s: %d closes: %w", p.Asset, len(closes), models.ErrInsufficientHistory)
	}
	dd, err := MaxDrawdown(closes)
	if err != nil {
		return AssetDrawdown{}, fmt.Errorf("%s: %w", p.Asset, err)
	}
	spot, err := e.market.Price(ctx, p.Asset, e.cfg.Venue)
	if err != nil {
		return AssetDrawdown{}, err
	}
	return AssetDrawdown{Asset: p.Asset, MaxDrawdownPct: dd, Exposure: p.PositionSize * spot}, nil
}
