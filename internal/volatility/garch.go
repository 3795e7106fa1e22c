// Package volatility fits a GARCH(1,1) model with constant mean to
// percentage log returns and forecasts conditional volatility.
package volatility

import (
	"fmt"
	"math"

	"hedge_watcher/internal/models"
)

// MinObservations is the smallest return sample FitGARCH accepts.
const MinObservations = 20

// Model is a fitted GARCH(1,1):
//
//	r_t = Mu + e_t,  s2_t = Omega + Alpha*e_{t-1}^2 + Beta*s2_{t-1}
type Model struct {
	Mu    float64
	Omega float64
	Alpha float64
	Beta  float64

	LogLikelihood float64
	// Last residual and conditional variance, the forecast origin.
	lastResid float64
	lastVar   float64
}

// Persistence is Alpha+Beta; below 1 the process is stationary.
func (m Model) Persistence() float64 { return m.Alpha + m.Beta }

// LongRunVariance is Omega/(1-Alpha-Beta).
func (m Model) LongRunVariance() float64 {
	return m.Omega / (1 - m.Persistence())
}

// LogReturns returns 100*ln(p[i]/p[i-1]).
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("%d closes: %w", len(closes), models.ErrInsufficientHistory)
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return nil, fmt.Errorf("non-positive close at %d: %w", i, models.ErrComputation)
		}
		out = append(out, 100*math.Log(closes[i]/closes[i-1]))
	}
	return out, nil
}

// FitGARCH estimates the model by maximum likelihood: a coarse grid over
// (Alpha, Beta) with variance targeting, then coordinate refinement of all
// three variance parameters under Omega>0, Alpha,Beta>=0, Alpha+Beta<1.
func FitGARCH(returns []float64) (Model, error) {
	if len(returns) < MinObservations {
		return Model{}, fmt.Errorf("%d returns, need %d: %w", len(returns), MinObservations, models.ErrInsufficientHistory)
	}

	mu := mean(returns)
	resid := make([]float64, len(returns))
	for i, r := range returns {
		resid[i] = r - mu
	}
	sampleVar := variance(resid)
	if sampleVar <= 0 || math.IsNaN(sampleVar) {
		return Model{}, fmt.Errorf("degenerate return variance: %w", models.ErrComputation)
	}

	best := params{omega: sampleVar * 0.1, alpha: 0.05, beta: 0.85}
	bestLL := logLikelihood(resid, sampleVar, best)

	for a := 0.01; a <= 0.30; a += 0.01 {
		for b := 0.50; b <= 0.98; b += 0.01 {
			if a+b >= 0.999 {
				continue
			}
			p := params{omega: sampleVar * (1 - a - b), alpha: a, beta: b}
			if ll := logLikelihood(resid, sampleVar, p); ll > bestLL {
				best, bestLL = p, ll
			}
		}
	}

	steps := params{omega: best.omega * 0.5, alpha: 0.005, beta: 0.005}
	for iter := 0; iter < 200; iter++ {
		improved := false
		for _, cand := range best.neighbours(steps) {
			if !cand.valid() {
				continue
			}
			if ll := logLikelihood(resid, sampleVar, cand); ll > bestLL {
				best, bestLL = cand, ll
				improved = true
			}
		}
		if !improved {
			steps = params{omega: steps.omega / 2, alpha: steps.alpha / 2, beta: steps.beta / 2}
			if steps.alpha < 1e-7 {
				break
			}
		}
	}

	if math.IsInf(bestLL, -1) || math.IsNaN(bestLL) {
		return Model{}, fmt.Errorf("likelihood did not converge: %w", models.ErrComputation)
	}

	m := Model{Mu: mu, Omega: best.omega, Alpha: best.alpha, Beta: best.beta, LogLikelihood: bestLL}
	m.lastResid, m.lastVar = lastState(resid, sampleVar, best)
	return m, nil
}

// Forecast returns the conditional standard deviation for steps 1..horizon
// ahead of the last observation, in return units (percent).
func (m Model) Forecast(horizon int) []float64 {
	if horizon < 1 {
		return nil
	}
	out := make([]float64, horizon)
	v := m.Omega + m.Alpha*m.lastResid*m.lastResid + m.Beta*m.lastVar
	for h := 0; h < horizon; h++ {
		if h > 0 {
			v = m.Omega + m.Persistence()*v
		}
		out[h] = math.Sqrt(v)
	}
	return out
}

// RealizedVol is the rolling sample standard deviation of log returns over
// window, scaled by sqrt(window) and expressed in percent. The result has
// len(logReturns)-window+1 points.
func RealizedVol(logReturns []float64, window int) ([]float64, error) {
	if window < 2 || len(logReturns) < window {
		return nil, fmt.Errorf("%d returns for window %d: %w", len(logReturns), window, models.ErrInsufficientHistory)
	}
	scale := math.Sqrt(float64(window)) * 100
	out := make([]float64, 0, len(logReturns)-window+1)
	for end := window; end <= len(logReturns); end++ {
		out = append(out, math.Sqrt(variance(logReturns[end-window:end]))*scale)
	}
	return out, nil
}

type params struct {
	omega, alpha, beta float64
}

func (p params) valid() bool {
	return p.omega > 0 && p.alpha >= 0 && p.beta >= 0 && p.alpha+p.beta < 1
}

func (p params) neighbours(s params) []params {
	return []params{
		{p.omega + s.omega, p.alpha, p.beta},
		{p.omega - s.omega, p.alpha, p.beta},
		{p.omega, p.alpha + s.alpha, p.beta},
		{p.omega, p.alpha - s.alpha, p.beta},
		{p.omega, p.alpha, p.beta + s.beta},
		{p.omega, p.alpha, p.beta - s.beta},
	}
}

// logLikelihood is the Gaussian log likelihood with the recursion seeded at
// the sample variance.
func logLikelihood(resid []float64, seed float64, p params) float64 {
	v := seed
	ll := 0.0
	for i, e := range resid {
		if i > 0 {
			prev := resid[i-1]
			v = p.omega + p.alpha*prev*prev + p.beta*v
		}
		if v <= 0 {
			return math.Inf(-1)
		}
		ll += -0.5 * (math.Log(2*math.Pi) + math.Log(v) + e*e/v)
	}
	return ll
}

func lastState(resid []float64, seed float64, p params) (float64, float64) {
	v := seed
	for i := 1; i < len(resid); i++ {
		prev := resid[i-1]
		v = p.omega + p.alpha*prev*prev + p.beta*v
	}
	return resid[len(resid)-1], v
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// variance is the sample (n-1) variance.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		d := x - m
		s += d * d
	}
	return s / float64(len(xs)-1)
}
