package models

import (
	"fmt"
	"strings"
	"time"
)

// OptionType is either a put or a call.
type OptionType string

const (
	Put  OptionType = "put"
	Call OptionType = "call"
)

// ParseOptionType accepts "put"/"call" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "put":
		return Put, nil
	case "call":
		return Call, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// OptionContract is an immutable snapshot of a listed option, translated from
// the provider payload at the gateway boundary.
type OptionContract struct {
	Symbol          string
	OptionType      OptionType
	Strike          float64
	Expiry          time.Time
	UnderlyingAsset string
}

// YearsToExpiry returns whole days to expiry divided by 365, matching how
// hedges are priced throughout the watcher. Expired contracts return <= 0.
func (c OptionContract) YearsToExpiry(now time.Time) float64 {
	days := int(c.Expiry.Sub(now).Hours() / 24)
	return float64(days) / 365
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Closes extracts the close column.
func Closes(candles []Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Close)
	}
	return out
}

// Level is one [price, size] order book row.
type Level struct {
	Price float64
	Size  float64
}

// OrderBook holds the top levels of a book, best first.
type OrderBook struct {
	Asset     string
	Venue     string
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// BestAsk returns the first ask level or ErrDataUnavailable on an empty side.
func (b OrderBook) BestAsk() (float64, error) {
	if len(b.Asks) == 0 || b.Asks[0].Price <= 0 {
		return 0, fmt.Errorf("%s: empty ask side on %s: %w", b.Asset, b.Venue, ErrDataUnavailable)
	}
	return b.Asks[0].Price, nil
}

// BestBid returns the first bid level or ErrDataUnavailable on an empty side.
func (b OrderBook) BestBid() (float64, error) {
	if len(b.Bids) == 0 || b.Bids[0].Price <= 0 {
		return 0, fmt.Errorf("%s: empty bid side on %s: %w", b.Asset, b.Venue, ErrDataUnavailable)
	}
	return b.Bids[0].Price, nil
}
