package analytics

import (
	"context"
	"fmt"

	"hedge_watcher/internal/models"
)

// CorrelationResult is a symmetric Pearson matrix indexed like Assets.
// Entries involving a constant return series are NaN.
type CorrelationResult struct {
	Assets  []string
	Matrix  [][]float64
	Samples int
	Skipped []models.AssetFailure
}

// Get returns the correlation of assets a and b, false if either is absent.
func (r CorrelationResult) Get(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, asset := range r.Assets {
		if asset == a {
			i = k
		}
		if asset == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return r.Matrix[i][j], true
}

// CorrelationMatrix correlates count-aligned simple returns. At least two
// assets with usable history are required.
func (e *Engine) CorrelationMatrix(ctx context.Context) (CorrelationResult, error) {
	var res CorrelationResult

	positions, err := e.listPositions(ctx)
	if err != nil {
		return res, err
	}

	var returns [][]float64
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ar, err := e.fetchReturns(ctx, p, false)
		if err != nil {
			res.Skipped = skip(res.Skipped, "correlation", p.Asset, err)
			continue
		}
		res.Assets = append(res.Assets, ar.asset)
		returns = append(returns, ar.returns)
	}
	if len(returns) < 2 {
		return res, fmt.Errorf("%d assets with usable history, need 2: %w", len(returns), models.ErrInsufficientHistory)
	}

	aligned := AlignByCount(returns)
	res.Samples = len(aligned[0])
	res.Matrix = Correlate(aligned)
	return res, nil
}

// Correlate builds the pairwise Pearson matrix of aligned series.
func Correlate(aligned [][]float64) [][]float64 {
	n := len(aligned)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := Pearson(aligned[i], aligned[j])
			m[i][j] = c
			m[j][i] = c
		}
	}
	return m
}
