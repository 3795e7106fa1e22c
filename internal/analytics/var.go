package analytics

import (
	"context"
	"fmt"

	"hedge_watcher/internal/models"
)

// VaRResult is a historical-simulation Value at Risk.
type VaRResult struct {
	Confidence    float64
	Samples       int
	Assets        []string
	Weights       []float64
	TotalExposure float64
	// VaR is the currency loss at Confidence; positive means a loss.
	VaR     float64
	Skipped []models.AssetFailure
}

// HistoricalVaR weights each asset's aligned simple returns by its share of
// total exposure and takes the (1-confidence) percentile of the portfolio
// return series.
func (e *Engine) HistoricalVaR(ctx context.Context) (VaRResult, error) {
	res := VaRResult{Confidence: e.cfg.Confidence}

	positions, err := e.listPositions(ctx)
	if err != nil {
		return res, err
	}

	var series []assetReturns
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ar, err := e.fetchReturns(ctx, p, true)
		if err != nil {
			res.Skipped = skip(res.Skipped, "var", p.Asset, err)
			continue
		}
		series = append(series, ar)
	}
	if len(series) == 0 {
		return res, fmt.Errorf("no asset with usable history: %w", models.ErrInsufficientHistory)
	}

	returns := make([][]float64, len(series))
	exposures := make([]float64, len(series))
	for i, s := range series {
		res.Assets = append(res.Assets, s.asset)
		returns[i] = s.returns
		exposures[i] = s.exposure
		res.TotalExposure += s.exposure
	}

	v, weights, n, err := PortfolioVaR(returns, exposures, e.cfg.Confidence)
	if err != nil {
		return res, err
	}
	res.VaR = v
	res.Weights = weights
	res.Samples = n
	return res, nil
}

// PortfolioVaR is the numeric core of HistoricalVaR: returns are aligned by
// count, weighted by exposure share, and VaR = -percentile * totalExposure.
// It also returns the weights and the aligned sample count.
func PortfolioVaR(returns [][]float64, exposures []float64, confidence float64) (float64, []float64, int, error) {
	if len(returns) == 0 || len(returns) != len(exposures) {
		return 0, nil, 0, fmt.Errorf("%d return series for %d exposures: %w", len(returns), len(exposures), models.ErrComputation)
	}
	var total float64
	for _, x := range exposures {
		total += x
	}
	if total == 0 {
		return 0, nil, 0, fmt.Errorf("zero total exposure: %w", models.ErrComputation)
	}

	weights := make([]float64, len(exposures))
	for i, x := range exposures {
		weights[i] = x / total
	}

	aligned := AlignByCount(returns)
	portfolio := WeightedSum(aligned, weights)
	pct, err := Percentile(portfolio, (1-confidence)*100)
	if err != nil {
		return 0, nil, 0, err
	}
	return -pct * total, weights, len(portfolio), nil
}
