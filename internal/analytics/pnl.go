package analytics

import (
	"context"
	"fmt"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"
)

// AssetPnL is the mark-to-market move of one position.
type AssetPnL struct {
	Asset     string
	PastPrice float64
	Price     float64
	PnL       float64
}

// PnLResult totals AssetPnL.
type PnLResult struct {
	Days    int
	Assets  []AssetPnL
	Total   float64
	Skipped []models.AssetFailure
}

// PortfolioPnL compares the current price with the first daily close of the
// last days+1 bars.
func (e *Engine) PortfolioPnL(ctx context.Context, days int) (PnLResult, error) {
	if days < 1 {
		days = 1
	}
	res := PnLResult{Days: days}

	positions, err := e.listPositions(ctx)
	if err != nil {
		return res, err
	}

	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		closes, err := e.market.HistoricalCloses(ctx, p.Asset, e.cfg.Venue, market.OneDay, days+1)
		if err != nil {
			res.Skipped = skip(res.Skipped, "pnl", p.Asset, err)
			continue
		}
		if len(closes) < 2 {
			res.Skipped = skip(res.Skipped, "pnl", p.Asset,
				fmt.Errorf("%s: %d closes: %w", p.Asset, len(closes), models.ErrInsufficientHistory))
			continue
		}
		price, err := e.market.Price(ctx, p.Asset, e.cfg.Venue)
		if err != nil {
			res.Skipped = skip(res.Skipped, "pnl", p.Asset, err)
			continue
		}
		pnl := (price - closes[0]) * p.PositionSize
		res.Assets = append(res.Assets, AssetPnL{Asset: p.Asset, PastPrice: closes[0], Price: price, PnL: pnl})
		res.Total += pnl
	}
	return res, nil
}

// AssetValue is price × size for one position.
type AssetValue struct {
	Asset string
	Price float64
	Size  float64
	Value float64
}

// ValueResult totals AssetValue.
type ValueResult struct {
	Assets  []AssetValue
	Total   float64
	Skipped []models.AssetFailure
}

// PortfolioValue marks every position at the current price.
func (e *Engine) PortfolioValue(ctx context.Context) (ValueResult, error) {
	var res ValueResult

	positions, err := e.listPositions(ctx)
	if err != nil {
		return res, err
	}
	for _, p := range positions {
		price, err := e.market.Price(ctx, p.Asset, e.cfg.Venue)
		if err != nil {
			res.Skipped = skip(res.Skipped, "value", p.Asset, err)
			continue
		}
		v := price * p.PositionSize
		res.Assets = append(res.Assets, AssetValue{Asset: p.Asset, Price: price, Size: p.PositionSize, Value: v})
		res.Total += v
	}
	return res, nil
}
