// Package okx reads public OKX v5 market data: ticker, order book and
// candles. No credentials are needed.
package okx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"
)

// DefaultBaseURL is the public REST root.
const DefaultBaseURL = "https://www.okx.com"

// maxCandles is the per-request cap of /market/candles.
const maxCandles = 300

// Provider implements market.Venue for OKX spot.
type Provider struct {
	transport *market.Transport
	symbols   market.Symbols
}

var _ market.Venue = (*Provider)(nil)

// DefaultSymbols maps BTC to BTC-USDT.
func DefaultSymbols() market.Symbols {
	return market.Symbols{Format: "%s-USDT"}
}

// NewProvider returns an OKX venue. An empty baseURL uses DefaultBaseURL.
func NewProvider(baseURL string, symbols market.Symbols, opts market.TransportOptions) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if symbols.Format == "" && len(symbols.Overrides) == 0 {
		symbols = DefaultSymbols()
	}
	return &Provider{
		transport: market.NewTransport("okx", baseURL, opts),
		symbols:   symbols,
	}
}

func (p *Provider) Name() string { return "okx" }

type envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e envelope) err() error {
	if e.Code != "0" {
		return fmt.Errorf("OKX API error: code %s: %s", e.Code, e.Msg)
	}
	return nil
}

func (p *Provider) Price(ctx context.Context, asset string) (float64, error) {
	params := url.Values{}
	params.Set("instId", p.symbols.For(asset))

	var result struct {
		envelope
		Data []struct {
			InstID string `json:"instId"`
			Last   string `json:"last"`
		} `json:"data"`
	}
	if err := p.transport.GetJSON(ctx, "/api/v5/market/ticker", params, &result); err != nil {
		return 0, err
	}
	if err := result.err(); err != nil {
		return 0, err
	}
	if len(result.Data) == 0 {
		return 0, fmt.Errorf("no ticker for %s: %w", asset, models.ErrDataUnavailable)
	}
	last, err := strconv.ParseFloat(result.Data[0].Last, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last price %q: %w", result.Data[0].Last, err)
	}
	return last, nil
}

func (p *Provider) OrderBook(ctx context.Context, asset string, depth int) (models.OrderBook, error) {
	if depth <= 0 {
		depth = 5
	}
	params := url.Values{}
	params.Set("instId", p.symbols.For(asset))
	params.Set("sz", strconv.Itoa(depth))

	var result struct {
		envelope
		Data []struct {
			Asks [][]string `json:"asks"`
			Bids [][]string `json:"bids"`
			Ts   string     `json:"ts"`
		} `json:"data"`
	}
	if err := p.transport.GetJSON(ctx, "/api/v5/market/books", params, &result); err != nil {
		return models.OrderBook{}, err
	}
	if err := result.err(); err != nil {
		return models.OrderBook{}, err
	}
	if len(result.Data) == 0 {
		return models.OrderBook{}, fmt.Errorf("no order book for %s: %w", asset, models.ErrDataUnavailable)
	}

	d := result.Data[0]
	book := models.OrderBook{
		Asset:     asset,
		Venue:     p.Name(),
		Bids:      parseLevels(d.Bids),
		Asks:      parseLevels(d.Asks),
		Timestamp: parseMillis(d.Ts),
	}
	return book, nil
}

func (p *Provider) Candles(ctx context.Context, asset string, timeframe market.Timeframe, limit int) ([]models.Candle, error) {
	bar, err := barFor(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxCandles {
		limit = maxCandles
	}
	params := url.Values{}
	params.Set("instId", p.symbols.For(asset))
	params.Set("bar", bar)
	params.Set("limit", strconv.Itoa(limit))

	var result struct {
		envelope
		Data [][]string `json:"data"`
	}
	if err := p.transport.GetJSON(ctx, "/api/v5/market/candles", params, &result); err != nil {
		return nil, err
	}
	if err := result.err(); err != nil {
		return nil, err
	}

	// Rows arrive newest first: [ts, o, h, l, c, vol, ...].
	candles := make([]models.Candle, 0, len(result.Data))
	for i := len(result.Data) - 1; i >= 0; i-- {
		row := result.Data[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, models.Candle{
			Time:   parseMillis(row[0]),
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
		})
	}
	return candles, nil
}

func barFor(tf market.Timeframe) (string, error) {
	switch tf {
	case market.OneHour:
		return "1H", nil
	case market.FourHour:
		return "4H", nil
	case market.OneDay, "":
		return "1D", nil
	}
	return "", fmt.Errorf("okx: unsupported timeframe %q", string(tf))
}

func parseLevels(rows [][]string) []models.Level {
	levels := make([]models.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		levels = append(levels, models.Level{Price: parseFloat(row[0]), Size: parseFloat(row[1])})
	}
	return levels
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
