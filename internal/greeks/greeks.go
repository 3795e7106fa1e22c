// Package greeks computes Black-Scholes option sensitivities.
package greeks

import (
	"math"

	"hedge_watcher/internal/models"
)

// Vector holds the four sensitivities of one option contract.
// Vega is per 1 percentage point of implied volatility, Theta per calendar day.
type Vector struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
}

// Add returns the componentwise sum.
func (v Vector) Add(o Vector) Vector {
	return Vector{
		Delta: v.Delta + o.Delta,
		Gamma: v.Gamma + o.Gamma,
		Vega:  v.Vega + o.Vega,
		Theta: v.Theta + o.Theta,
	}
}

// Scale multiplies every component by k (e.g. a position size).
func (v Vector) Scale(k float64) Vector {
	return Vector{
		Delta: v.Delta * k,
		Gamma: v.Gamma * k,
		Vega:  v.Vega * k,
		Theta: v.Theta * k,
	}
}

// Compute returns the Greeks of a European option.
//
// s is spot, k strike, t years to expiry, r the annual risk-free rate and
// sigma the annual implied volatility. Expired or degenerate inputs
// (t <= 0 or sigma <= 0) return the zero vector.
func Compute(optionType models.OptionType, s, k, t, r, sigma float64) Vector {
	if t <= 0 || sigma <= 0 {
		return Vector{}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+sigma*sigma/2)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	decay := -s * pdf(d1) * sigma / (2 * sqrtT)
	discounted := r * k * math.Exp(-r*t)

	var delta, theta float64
	if optionType == models.Call {
		delta = cdf(d1)
		theta = decay - discounted*cdf(d2)
	} else {
		delta = -cdf(-d1)
		theta = decay + discounted*cdf(-d2)
	}

	gamma := pdf(d1) / (s * sigma * sqrtT)
	vega := s * pdf(d1) * sqrtT

	return Vector{
		Delta: delta,
		Gamma: gamma,
		Vega:  vega / 100,
		Theta: theta / 365,
	}
}

// cdf is the standard normal cumulative distribution.
func cdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// pdf is the standard normal density.
func pdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
