package volatility

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulateCloses draws a GARCH(1,1) path with the given percent-return
// parameters from a fixed seed.
func simulateCloses(n int, omega, alpha, beta float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, 0, n+1)
	price := 100.0
	closes = append(closes, price)
	v := omega / (1 - alpha - beta)
	e := 0.0
	for i := 0; i < n; i++ {
		v = omega + alpha*e*e + beta*v
		e = math.Sqrt(v) * rng.NormFloat64()
		price *= math.Exp(e / 100)
		closes = append(closes, price)
	}
	return closes
}

func TestLogReturns(t *testing.T) {
	r, err := LogReturns([]float64{100, 110})
	require.NoError(t, err)
	assert.InDelta(t, 100*math.Log(1.1), r[0], 1e-12)

	_, err = LogReturns([]float64{100})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)

	_, err = LogReturns([]float64{100, 0})
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestFitGARCH_RecoversStationaryModel(t *testing.T) {
	closes := simulateCloses(2000, 0.1, 0.1, 0.8, 7)
	rets, err := LogReturns(closes)
	require.NoError(t, err)

	m, err := FitGARCH(rets)
	require.NoError(t, err)

	assert.Greater(t, m.Omega, 0.0)
	assert.GreaterOrEqual(t, m.Alpha, 0.0)
	assert.GreaterOrEqual(t, m.Beta, 0.0)
	assert.Less(t, m.Persistence(), 1.0)
	assert.InDelta(t, 0.9, m.Persistence(), 0.1)
}

func TestFitGARCH_RejectsShortSample(t *testing.T) {
	_, err := FitGARCH(make([]float64, MinObservations-1))
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestFitGARCH_RejectsConstantReturns(t *testing.T) {
	rets := make([]float64, 50)
	_, err := FitGARCH(rets)
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestForecast_RevertsToLongRunVariance(t *testing.T) {
	m := Model{Omega: 0.2, Alpha: 0.1, Beta: 0.7, lastResid: 3, lastVar: 4}

	f := m.Forecast(50)
	require.Len(t, f, 50)
	// First step: 0.2 + 0.1*9 + 0.7*4 = 3.9.
	assert.InDelta(t, math.Sqrt(3.9), f[0], 1e-12)
	assert.InDelta(t, math.Sqrt(0.2+0.8*3.9), f[1], 1e-12)
	for i := 1; i < len(f); i++ {
		assert.LessOrEqual(t, f[i], f[i-1])
	}
	assert.InDelta(t, math.Sqrt(m.LongRunVariance()), f[49], 1e-3)

	assert.Nil(t, m.Forecast(0))
}

func TestRealizedVol(t *testing.T) {
	rv, err := RealizedVol([]float64{1, -1, 1, -1}, 2)
	require.NoError(t, err)
	require.Len(t, rv, 3)
	for _, v := range rv {
		assert.InDelta(t, 200.0, v, 1e-9)
	}

	_, err = RealizedVol([]float64{1}, 24)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestPredictHedgeTiming(t *testing.T) {
	wild := simulateCloses(500, 10, 0.1, 0.8, 11) // long-run std 10%
	p, err := PredictHedgeTiming(wild, 12, 2.5)
	require.NoError(t, err)
	require.Len(t, p.VolForecast, 12)
	assert.True(t, p.ShouldHedge)
	assert.Greater(t, p.HighVolHours, 6)
	assert.Equal(t, p.HighVolHours, len(p.HedgeHours))

	calm := simulateCloses(500, 0.001, 0.1, 0.8, 13) // long-run std 0.1%
	p, err = PredictHedgeTiming(calm, 12, 2.5)
	require.NoError(t, err)
	assert.False(t, p.ShouldHedge)
	assert.Zero(t, p.HighVolHours)
	assert.Empty(t, p.HedgeHours)

	peak := 0
	for i, v := range p.VolForecast {
		if v > p.VolForecast[peak] {
			peak = i
		}
	}
	assert.Equal(t, peak, p.RecommendedHour)
}

type fakeCandles struct {
	closes    []float64
	timeframe market.Timeframe
	limit     int
}

func (f *fakeCandles) HistoricalCloses(_ context.Context, _, _ string, tf market.Timeframe, limit int) ([]float64, error) {
	f.timeframe, f.limit = tf, limit
	return f.closes, nil
}

func TestPredictor_UsesHourlyHistory(t *testing.T) {
	src := &fakeCandles{closes: simulateCloses(300, 0.1, 0.1, 0.8, 3)}
	pred := &Predictor{Source: src, Venue: "okx"}

	p, err := pred.Predict(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, p.VolForecast, DefaultHorizon)
	assert.Equal(t, market.OneHour, src.timeframe)
	assert.Equal(t, DefaultLookback, src.limit)
}
