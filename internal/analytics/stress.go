package analytics

import (
	"context"
	"fmt"

	"hedge_watcher/internal/models"
)

// DefaultShocks are the spot moves applied by StressTest.
var DefaultShocks = []float64{-0.05, -0.10, -0.20}

// Scenario aggregates one shock across the portfolio.
type Scenario struct {
	Shock    float64
	Value    float64
	DeltaPnL float64
	// LossPct is relative to the pre-shock total value.
	LossPct float64
}

// StressResult lists scenarios in shock order.
type StressResult struct {
	InitialValue float64
	Scenarios    []Scenario
	Skipped      []models.AssetFailure
}

// StressTest shocks each asset's spot and estimates the linear P&L of its
// protective put, priced with the engine's flat rate and volatility.
func (e *Engine) StressTest(ctx context.Context) (StressResult, error) {
	return e.StressTestWith(ctx, DefaultShocks)
}

// StressTestWith runs StressTest over custom shocks.
func (e *Engine) StressTestWith(ctx context.Context, shocks []float64) (StressResult, error) {
	res := StressResult{Scenarios: make([]Scenario, len(shocks))}
	for i, s := range shocks {
		res.Scenarios[i].Shock = s
	}

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
			res.Skipped = skip(res.Skipped, "stress", p.Asset, err)
			continue
		}

		res.InitialValue += p.PositionSize * q.spot
		for i, s := range shocks {
			shocked := q.spot * (1 + s)
			res.Scenarios[i].Value += p.PositionSize * shocked
			res.Scenarios[i].DeltaPnL += q.greeks.Delta * p.PositionSize * (shocked - q.spot)
		}
	}

	if res.InitialValue == 0 {
		return res, fmt.Errorf("zero pre-shock portfolio value: %w", models.ErrComputation)
	}
	for i := range res.Scenarios {
		sc := &res.Scenarios[i]
		sc.LossPct = (res.InitialValue - sc.Value) / res.InitialValue * 100
	}
	return res, nil
}
