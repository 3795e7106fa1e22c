// Package deribit reads Deribit public v2 data: the options chain, option
// quotes, index prices and the perpetual book.
package deribit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"
)

// DefaultBaseURL is the public REST root.
const DefaultBaseURL = "https://www.deribit.com"

// Provider implements market.Venue for perpetuals and market.OptionsVenue.
type Provider struct {
	transport *market.Transport
	symbols   market.Symbols
	now       func() time.Time
}

var (
	_ market.Venue        = (*Provider)(nil)
	_ market.OptionsVenue = (*Provider)(nil)
)

// DefaultSymbols maps BTC to BTC-PERPETUAL.
func DefaultSymbols() market.Symbols {
	return market.Symbols{Format: "%s-PERPETUAL"}
}

// NewProvider returns a Deribit venue. An empty baseURL uses DefaultBaseURL.
func NewProvider(baseURL string, symbols market.Symbols, opts market.TransportOptions) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if symbols.Format == "" && len(symbols.Overrides) == 0 {
		symbols = DefaultSymbols()
	}
	return &Provider{
		transport: market.NewTransport("deribit", baseURL, opts),
		symbols:   symbols,
		now:       time.Now,
	}
}

func (p *Provider) Name() string { return "deribit" }

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call decodes the JSON-RPC style {"result": ..., "error": ...} envelope.
func (p *Provider) call(ctx context.Context, method string, params url.Values, result interface{}) error {
	var env struct {
		Result interface{} `json:"result"`
		Error  *rpcError   `json:"error"`
	}
	env.Result = result
	if err := p.transport.GetJSON(ctx, "/api/v2/public/"+method, params, &env); err != nil {
		return err
	}
	if env.Error != nil {
		return fmt.Errorf("deribit %s: code %d: %s", method, env.Error.Code, env.Error.Message)
	}
	return nil
}

type instrument struct {
	InstrumentName      string  `json:"instrument_name"`
	Kind                string  `json:"kind"`
	OptionType          string  `json:"option_type"`
	Strike              float64 `json:"strike"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"`
	BaseCurrency        string  `json:"base_currency"`
	IsActive            bool    `json:"is_active"`
}

// OptionChain lists active options on asset, translated to OptionContract.
// Rows with an unknown option type are skipped.
func (p *Provider) OptionChain(ctx context.Context, asset string) ([]models.OptionContract, error) {
	params := url.Values{}
	params.Set("currency", asset)
	params.Set("kind", "option")
	params.Set("expired", "false")

	var rows []instrument
	if err := p.call(ctx, "get_instruments", params, &rows); err != nil {
		return nil, err
	}

	chain := make([]models.OptionContract, 0, len(rows))
	for _, r := range rows {
		if r.Kind != "" && r.Kind != "option" {
			continue
		}
		ot, err := models.ParseOptionType(r.OptionType)
		if err != nil {
			continue
		}
		underlying := models.NormalizeAsset(r.BaseCurrency)
		if underlying == "" {
			underlying = asset
		}
		chain = append(chain, models.OptionContract{
			Symbol:          r.InstrumentName,
			OptionType:      ot,
			Strike:          r.Strike,
			Expiry:          time.UnixMilli(r.ExpirationTimestamp).UTC(),
			UnderlyingAsset: underlying,
		})
	}
	return chain, nil
}

type bookResult struct {
	Bids      [][]float64 `json:"bids"`
	Asks      [][]float64 `json:"asks"`
	LastPrice *float64    `json:"last_price"`
	Timestamp int64       `json:"timestamp"`
}

func (p *Provider) book(ctx context.Context, instrumentName string, depth int) (bookResult, error) {
	params := url.Values{}
	params.Set("instrument_name", instrumentName)
	if depth > 0 {
		params.Set("depth", strconv.Itoa(depth))
	}
	var res bookResult
	err := p.call(ctx, "get_order_book", params, &res)
	return res, err
}

// OptionMidPrice returns (bid+ask)/2 when both sides are quoted, else the
// ticker last price, else 0.
func (p *Provider) OptionMidPrice(ctx context.Context, symbol string) (float64, error) {
	b, err := p.book(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	var bid, ask float64
	if len(b.Bids) > 0 && len(b.Bids[0]) > 0 {
		bid = b.Bids[0][0]
	}
	if len(b.Asks) > 0 && len(b.Asks[0]) > 0 {
		ask = b.Asks[0][0]
	}
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2, nil
	}

	params := url.Values{}
	params.Set("instrument_name", symbol)
	var ticker struct {
		LastPrice *float64 `json:"last_price"`
	}
	if err := p.call(ctx, "ticker", params, &ticker); err != nil {
		return 0, err
	}
	if ticker.LastPrice == nil {
		return 0, nil
	}
	return *ticker.LastPrice, nil
}

// IndexPrice returns the asset's USD index, e.g. btc_usd.
func (p *Provider) IndexPrice(ctx context.Context, asset string) (float64, error) {
	params := url.Values{}
	params.Set("index_name", strings.ToLower(asset)+"_usd")
	var res struct {
		IndexPrice float64 `json:"index_price"`
	}
	if err := p.call(ctx, "get_index_price", params, &res); err != nil {
		return 0, err
	}
	return res.IndexPrice, nil
}

// Price is the last traded price of the asset's perpetual.
func (p *Provider) Price(ctx context.Context, asset string) (float64, error) {
	params := url.Values{}
	params.Set("instrument_name", p.symbols.For(asset))
	var ticker struct {
		LastPrice *float64 `json:"last_price"`
	}
	if err := p.call(ctx, "ticker", params, &ticker); err != nil {
		return 0, err
	}
	if ticker.LastPrice == nil {
		return 0, fmt.Errorf("no last price for %s: %w", asset, models.ErrDataUnavailable)
	}
	return *ticker.LastPrice, nil
}

// OrderBook returns the perpetual book.
func (p *Provider) OrderBook(ctx context.Context, asset string, depth int) (models.OrderBook, error) {
	if depth <= 0 {
		depth = 5
	}
	b, err := p.book(ctx, p.symbols.For(asset), depth)
	if err != nil {
		return models.OrderBook{}, err
	}
	return models.OrderBook{
		Asset:     asset,
		Venue:     p.Name(),
		Bids:      levels(b.Bids),
		Asks:      levels(b.Asks),
		Timestamp: time.UnixMilli(b.Timestamp).UTC(),
	}, nil
}

// Candles reads the perpetual's chart data ending now.
func (p *Provider) Candles(ctx context.Context, asset string, timeframe market.Timeframe, limit int) ([]models.Candle, error) {
	if timeframe == "" {
		timeframe = market.OneDay
	}
	width, err := timeframe.Duration()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	end := p.now()
	start := end.Add(-width * time.Duration(limit))

	params := url.Values{}
	params.Set("instrument_name", p.symbols.For(asset))
	params.Set("start_timestamp", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("end_timestamp", strconv.FormatInt(end.UnixMilli(), 10))
	params.Set("resolution", resolutionFor(timeframe))

	var res struct {
		Status string    `json:"status"`
		Ticks  []int64   `json:"ticks"`
		Open   []float64 `json:"open"`
		High   []float64 `json:"high"`
		Low    []float64 `json:"low"`
		Close  []float64 `json:"close"`
		Volume []float64 `json:"volume"`
	}
	if err := p.call(ctx, "get_tradingview_chart_data", params, &res); err != nil {
		return nil, err
	}
	if res.Status == "no_data" {
		return nil, fmt.Errorf("no chart data for %s: %w", asset, models.ErrDataUnavailable)
	}

	n := len(res.Ticks)
	for _, col := range [][]float64{res.Open, res.High, res.Low, res.Close, res.Volume} {
		if len(col) < n {
			n = len(col)
		}
	}
	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, models.Candle{
			Time:   time.UnixMilli(res.Ticks[i]).UTC(),
			Open:   res.Open[i],
			High:   res.High[i],
			Low:    res.Low[i],
			Close:  res.Close[i],
			Volume: res.Volume[i],
		})
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func resolutionFor(tf market.Timeframe) string {
	switch tf {
	case market.OneHour:
		return "60"
	case market.FourHour:
		return "240"
	}
	return "1D"
}

func levels(rows [][]float64) []models.Level {
	out := make([]models.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, models.Level{Price: row[0], Size: row[1]})
	}
	return out
}
