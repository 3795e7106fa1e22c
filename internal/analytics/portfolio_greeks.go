package analytics

import (
	"context"

	"hedge_watcher/internal/greeks"
	"hedge_watcher/internal/models"
)

// AssetGreeks is one asset's size-scaled protective put Greeks.
type AssetGreeks struct {
	Asset  string
	Option models.OptionContract
	Greeks greeks.Vector
}

// GreeksResult sums AssetGreeks componentwise.
type GreeksResult struct {
	Total   greeks.Vector
	Assets  []AssetGreeks
	Skipped []models.AssetFailure
}

// PortfolioGreeks prices each asset's protective put and scales its Greeks
// by position size.
func (e *Engine) PortfolioGreeks(ctx context.Context) (GreeksResult, error) {
	var res GreeksResult

	positions, err := e.listPositions(ctx)
	if err != nil {
		return res, err
	}

	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		q, err := e.protectivePut(ctx, p.Asset)
		if err != nil {
			res.Skipped = skip(res.Skipped, "greeks", p.Asset, err)
			continue
		}
		scaled := q.greeks.Scale(p.PositionSize)
		res.Assets = append(res.Assets, AssetGreeks{Asset: p.Asset, Option: q.option, Greeks: scaled})
		res.Total = res.Total.Add(scaled)
	}
	return res, nil
}
