package volatility

import (
	"context"
	"fmt"

	"hedge_watcher/internal/market"
)

// Defaults for PredictHedgeTiming.
const (
	DefaultHorizon   = 12
	DefaultThreshold = 2.5
	// Hourly bars fetched by Predictor.
	DefaultLookback = 500
)

// Prediction says whether the coming hours look volatile enough to hedge.
type Prediction struct {
	ShouldHedge  bool
	HighVolHours int
	// VolForecast[i] is the forecast std dev (percent) i+1 steps ahead.
	VolForecast []float64
	// HedgeHours are the zero-based steps whose forecast exceeds the threshold.
	HedgeHours      []int
	RecommendedHour int
	Model           Model
}

// PredictHedgeTiming fits GARCH(1,1) to the closes' log returns and flags
// the steps whose forecast volatility exceeds threshold. Hedging is advised
// when more than half the horizon is flagged; the recommended hour is the
// forecast peak.
func PredictHedgeTiming(closes []float64, horizon int, threshold float64) (Prediction, error) {
	if horizon < 1 {
		horizon = DefaultHorizon
	}
	rets, err := LogReturns(closes)
	if err != nil {
		return Prediction{}, err
	}
	m, err := FitGARCH(rets)
	if err != nil {
		return Prediction{}, err
	}

	p := Prediction{VolForecast: m.Forecast(horizon), Model: m}
	for i, v := range p.VolForecast {
		if v > threshold {
			p.HedgeHours = append(p.HedgeHours, i)
		}
		if v > p.VolForecast[p.RecommendedHour] {
			p.RecommendedHour = i
		}
	}
	p.HighVolHours = len(p.HedgeHours)
	p.ShouldHedge = float64(p.HighVolHours) > float64(horizon)/2
	return p, nil
}

// CandleSource is the part of the market gateway the predictor needs.
type CandleSource interface {
	HistoricalCloses(ctx context.Context, asset, venue string, timeframe market.Timeframe, limit int) ([]float64, error)
}

// Predictor runs PredictHedgeTiming on hourly closes from a venue.
type Predictor struct {
	Source    CandleSource
	Venue     string
	Horizon   int
	Threshold float64
	Lookback  int
}

// EffectiveThreshold is Threshold or DefaultThreshold when unset.
func (p *Predictor) EffectiveThreshold() float64 {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// History fetches the hourly closes Predict works on.
func (p *Predictor) History(ctx context.Context, asset string) ([]float64, error) {
	lookback := p.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	closes, err := p.Source.HistoricalCloses(ctx, asset, p.Venue, market.OneHour, lookback)
	if err != nil {
		return nil, fmt.Errorf("%s hourly history: %w", asset, err)
	}
	return closes, nil
}

// Predict fetches hourly history for asset and predicts hedge timing.
func (p *Predictor) Predict(ctx context.Context, asset string) (Prediction, error) {
	closes, err := p.History(ctx, asset)
	if err != nil {
		return Prediction{}, err
	}
	pred, err := PredictHedgeTiming(closes, p.Horizon, p.EffectiveThreshold())
	if err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", asset, err)
	}
	return pred, nil
}
