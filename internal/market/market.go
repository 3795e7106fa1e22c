package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"hedge_watcher/internal/models"
)

// Venue is a spot/perp market data source. Implementations translate venue
// payloads into models types at this boundary; callers never see raw JSON.
type Venue interface {
	Name() string
	Price(ctx context.Context, asset string) (float64, error)
	OrderBook(ctx context.Context, asset string, depth int) (models.OrderBook, error)
	Candles(ctx context.Context, asset string, timeframe Timeframe, limit int) ([]models.Candle, error)
}

// OptionsVenue lists option contracts and quotes them.
type OptionsVenue interface {
	OptionChain(ctx context.Context, asset string) ([]models.OptionContract, error)
	OptionMidPrice(ctx context.Context, symbol string) (float64, error)
	IndexPrice(ctx context.Context, asset string) (float64, error)
}

// Gateway routes market data requests to the venue named by the caller,
// falling back to the default venue when the name is empty.
type Gateway struct {
	defaultVenue string
	venues       map[string]Venue
	options      OptionsVenue
}

// NewGateway registers venues by Name(). options may be nil when no options
// venue is configured.
func NewGateway(defaultVenue string, options OptionsVenue, venues ...Venue) *Gateway {
	g := &Gateway{
		defaultVenue: strings.ToLower(defaultVenue),
		venues:       make(map[string]Venue, len(venues)),
		options:      options,
	}
	for _, v := range venues {
		g.venues[strings.ToLower(v.Name())] = v
	}
	return g
}

// DefaultVenue is the venue used when none is named.
func (g *Gateway) DefaultVenue() string { return g.defaultVenue }

// Venues lists the registered venue names, sorted.
func (g *Gateway) Venues() []string {
	names := make([]string, 0, len(g.venues))
	for name := range g.venues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Gateway) venue(name string) (Venue, error) {
	if name == "" {
		name = g.defaultVenue
	}
	v, ok := g.venues[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown venue %q: %w", name, models.ErrDataUnavailable)
	}
	return v, nil
}

// Price returns the last traded price of asset on venue.
func (g *Gateway) Price(ctx context.Context, asset, venue string) (float64, error) {
	v, err := g.venue(venue)
	if err != nil {
		return 0, err
	}
	p, err := v.Price(ctx, models.NormalizeAsset(asset))
	if err != nil {
		return 0, unavailable(asset, v.Name(), "price", err)
	}
	if p <= 0 {
		return 0, fmt.Errorf("%s: non-positive price on %s: %w", asset, v.Name(), models.ErrDataUnavailable)
	}
	return p, nil
}

// OrderBook returns the top depth levels of asset's book on venue.
func (g *Gateway) OrderBook(ctx context.Context, asset, venue string, depth int) (models.OrderBook, error) {
	v, err := g.venue(venue)
	if err != nil {
		return models.OrderBook{}, err
	}
	book, err := v.OrderBook(ctx, models.NormalizeAsset(asset), depth)
	if err != nil {
		return models.OrderBook{}, unavailable(asset, v.Name(), "order book", err)
	}
	return book, nil
}

// HistoricalCloses returns up to limit closes, oldest first.
func (g *Gateway) HistoricalCloses(ctx context.Context, asset, venue string, timeframe Timeframe, limit int) ([]float64, error) {
	candles, err := g.Candles(ctx, asset, venue, timeframe, limit)
	if err != nil {
		return nil, err
	}
	return models.Closes(candles), nil
}

// Candles returns up to limit bars, oldest first.
func (g *Gateway) Candles(ctx context.Context, asset, venue string, timeframe Timeframe, limit int) ([]models.Candle, error) {
	v, err := g.venue(venue)
	if err != nil {
		return nil, err
	}
	candles, err := v.Candles(ctx, models.NormalizeAsset(asset), timeframe, limit)
	if err != nil {
		return nil, unavailable(asset, v.Name(), "candles", err)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

// OptionChain lists the option contracts on asset from the options venue.
func (g *Gateway) OptionChain(ctx context.Context, asset string) ([]models.OptionContract, error) {
	if g.options == nil {
		return nil, fmt.Errorf("%s: no options venue configured: %w", asset, models.ErrDataUnavailable)
	}
	chain, err := g.options.OptionChain(ctx, models.NormalizeAsset(asset))
	if err != nil {
		return nil, unavailable(asset, "options", "option chain", err)
	}
	return chain, nil
}

// OptionMidPrice quotes one option contract by symbol.
func (g *Gateway) OptionMidPrice(ctx context.Context, symbol string) (float64, error) {
	if g.options == nil {
		return 0, fmt.Errorf("%s: no options venue configured: %w", symbol, models.ErrDataUnavailable)
	}
	p, err := g.options.OptionMidPrice(ctx, symbol)
	if err != nil {
		return 0, unavailable(symbol, "options", "option quote", err)
	}
	return p, nil
}

// OptionSpot returns the options venue's index price for asset, the spot
// reference used when selecting strikes.
func (g *Gateway) OptionSpot(ctx context.Context, asset string) (float64, error) {
	if g.options == nil {
		return 0, fmt.Errorf("%s: no options venue configured: %w", asset, models.ErrSpotPriceUnavailable)
	}
	p, err := g.options.IndexPrice(ctx, models.NormalizeAsset(asset))
	if err != nil {
		return 0, fmt.Errorf("%s: index price: %v: %w", asset, err, models.ErrSpotPriceUnavailable)
	}
	if p <= 0 {
		return 0, fmt.Errorf("%s: non-positive index price: %w", asset, models.ErrSpotPriceUnavailable)
	}
	return p, nil
}

// unavailable wraps venue errors as ErrDataUnavailable unless they already
// carry a taxonomy error.
func unavailable(asset, venue, what string, err error) error {
	if models.ErrorKind(err) != "unexpected" {
		return fmt.Errorf("%s: %s on %s: %w", asset, what, venue, err)
	}
	return fmt.Errorf("%s: %s on %s: %v: %w", asset, what, venue, err, models.ErrDataUnavailable)
}

// Timeframe is a candle width such as "1h" or "1d".
type Timeframe string

const (
	OneHour  Timeframe = "1h"
	FourHour Timeframe = "4h"
	OneDay   Timeframe = "1d"
)

// ParseTimeframe validates s.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, err := tf.Duration(); err != nil {
		return "", err
	}
	return tf, nil
}

// Duration returns the bar width.
func (t Timeframe) Duration() (time.Duration, error) {
	switch t {
	case OneHour:
		return time.Hour, nil
	case FourHour:
		return 4 * time.Hour, nil
	case OneDay:
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported timeframe %q", string(t))
}

// Symbols maps canonical assets to venue instrument names. Overrides win
// over Format, which receives the asset once (e.g. "%s-USDT").
type Symbols struct {
	Format    string
	Overrides map[string]string
}

// For returns the venue symbol for asset.
func (s Symbols) For(asset string) string {
	asset = models.NormalizeAsset(asset)
	if sym, ok := s.Overrides[asset]; ok {
		return sym
	}
	if s.Format == "" {
		return asset
	}
	return fmt.Sprintf(s.Format, asset)
}
