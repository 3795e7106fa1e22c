package analytics

import (
	"fmt"
	"math"
	"sort"

	"hedge_watcher/internal/models"
)

// SimpleReturns returns (p[i]-p[i-1])/p[i-1] for consecutive closes.
func SimpleReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("%d closes: %w", len(closes), models.ErrInsufficientHistory)
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(closes[i]) {
			return nil, fmt.Errorf("invalid close at %d: %w", i-1, models.ErrComputation)
		}
		out[i-1] = (closes[i] - prev) / prev
	}
	return out, nil
}

// AlignByCount truncates every series to the shortest length, keeping the
// most recent samples. Series are matched by position, not by timestamp.
func AlignByCount(series [][]float64) [][]float64 {
	if len(series) == 0 {
		return nil
	}
	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	out := make([][]float64, len(series))
	for i, s := range series {
		out[i] = s[len(s)-minLen:]
	}
	return out
}

// Percentile uses linear interpolation between closest ranks, the default
// method of numpy.percentile. p is in [0, 100].
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("percentile of empty series: %w", models.ErrInsufficientHistory)
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("percentile %v out of range: %w", p, models.ErrComputation)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// Pearson is the sample correlation of two equal-length series. A constant
// series yields NaN.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// WeightedSum returns sum_j w[j]*series[j][i] for every i. Series must be
// aligned.
func WeightedSum(series [][]float64, weights []float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	out := make([]float64, len(series[0]))
	for j, s := range series {
		for i, v := range s {
			out[i] += v * weights[j]
		}
	}
	return out
}
