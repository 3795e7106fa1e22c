package greeks

import (
	"math"
	"testing"

	"hedge_watcher/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCompute_DegenerateInputsReturnZero(t *testing.T) {
	cases := []struct {
		name  string
		t     float64
		sigma float64
	}{
		{"expired", 0, 0.5},
		{"negative time", -0.1, 0.5},
		{"zero vol", 0.25, 0},
		{"negative vol", 0.25, -0.2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, ot := range []models.OptionType{models.Call, models.Put} {
				assert.Equal(t, Vector{}, Compute(ot, 50000, 49000, tc.t, 0.05, tc.sigma))
			}
		})
	}
}

func TestCompute_PutCallDeltaParity(t *testing.T) {
	inputs := [][5]float64{
		{50000, 49000, 5.0 / 365, 0.05, 0.5},
		{100, 100, 1, 0.01, 0.2},
		{3000, 3500, 0.5, 0.03, 0.8},
		{1.2, 0.9, 2, 0, 1.5},
	}

	for _, in := range inputs {
		call := Compute(models.Call, in[0], in[1], in[2], in[3], in[4])
		put := Compute(models.Put, in[0], in[1], in[2], in[3], in[4])
		assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9)
		assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
		assert.InDelta(t, call.Vega, put.Vega, 1e-12)
	}
}

func TestCompute_ReferenceValues(t *testing.T) {
	// S=100 K=100 T=1 r=5% sigma=20%: d1=0.35, d2=0.15.
	call := Compute(models.Call, 100, 100, 1, 0.05, 0.2)
	put := Compute(models.Put, 100, 100, 1, 0.05, 0.2)

	assert.InDelta(t, 0.636831, call.Delta, 1e-6)
	assert.InDelta(t, -0.363169, put.Delta, 1e-6)
	assert.InDelta(t, 0.018762, call.Gamma, 1e-6)
	assert.InDelta(t, 0.375240, call.Vega, 1e-6)
	assert.InDelta(t, -6.414028/365, call.Theta, 1e-6)
	assert.InDelta(t, -1.657880/365, put.Theta, 1e-6)
}

func TestVector_ScaleAndAdd(t *testing.T) {
	v := Vector{Delta: -0.4, Gamma: 0.01, Vega: 2, Theta: -3}
	sum := v.Scale(2).Add(v.Scale(-0.5))

	assert.InDelta(t, -0.6, sum.Delta, 1e-12)
	assert.InDelta(t, 0.015, sum.Gamma, 1e-12)
	assert.InDelta(t, 3, sum.Vega, 1e-12)
	assert.InDelta(t, -4.5, sum.Theta, 1e-12)
	assert.False(t, math.IsNaN(sum.Delta))
}
