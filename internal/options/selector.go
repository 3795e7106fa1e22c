// Package options picks hedge contracts out of an option chain.
package options

import (
	"fmt"
	"sort"
	"time"

	"hedge_watcher/internal/models"
)

// MaxExpiryWindow limits hedges to near-term contracts.
const MaxExpiryWindow = 10 * 24 * time.Hour

// Band is an inclusive strike window expressed as multiples of spot.
type Band struct {
	Low  float64
	High float64
}

var (
	// ProtectivePutBand keeps puts slightly out of the money.
	ProtectivePutBand = Band{Low: 0.85, High: 0.99}
	// CoveredCallBand keeps calls slightly out of the money.
	CoveredCallBand = Band{Low: 1.01, High: 1.15}
)

// BandFor returns the strike band used for the given option type.
func BandFor(kind models.OptionType) Band {
	if kind == models.Call {
		return CoveredCallBand
	}
	return ProtectivePutBand
}

// Contains reports whether strike sits inside the band around spot.
func (b Band) Contains(strike, spot float64) bool {
	return b.Low*spot <= strike && strike <= b.High*spot
}

// SelectHedgeOption returns the best-fit hedge contract for asset.
//
// Survivors of the type, expiry (<= now+10d) and strike-band filters are
// ordered by ascending expiry, then by distance of strike to spot; the first
// one wins.
func SelectHedgeOption(kind models.OptionType, asset string, spot float64, chain []models.OptionContract, now time.Time) (models.OptionContract, error) {
	if spot <= 0 {
		return models.OptionContract{}, fmt.Errorf("%s: %w", asset, models.ErrSpotPriceUnavailable)
	}

	cutoff := now.Add(MaxExpiryWindow)
	band := BandFor(kind)

	var candidates []models.OptionContract
	for _, c := range chain {
		if c.OptionType != kind {
			continue
		}
		if c.Expiry.After(cutoff) {
			continue
		}
		if !band.Contains(c.Strike, spot) {
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return models.OptionContract{}, fmt.Errorf("%s %s within %.0f%%-%.0f%% of %.2f: %w",
			asset, kind, band.Low*100, band.High*100, spot, models.ErrNoSuitableOption)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.Expiry.Equal(b.Expiry) {
			return a.Expiry.Before(b.Expiry)
		}
		return distance(a.Strike, spot) < distance(b.Strike, spot)
	})

	return candidates[0], nil
}

func distance(strike, spot float64) float64 {
	d := strike - spot
	if d < 0 {
		return -d
	}
	return d
}
