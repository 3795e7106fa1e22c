// Package alpaca serves crypto spot data through the Alpaca market data SDK.
// Credentials come from APCA_API_KEY_ID / APCA_API_SECRET_KEY.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// cryptoData is the part of *marketdata.Client the provider calls.
type cryptoData interface {
	GetLatestCryptoTrade(symbol string, req marketdata.GetLatestCryptoTradeRequest) (*marketdata.CryptoTrade, error)
	GetLatestCryptoQuote(symbol string, req marketdata.GetLatestCryptoQuoteRequest) (*marketdata.CryptoQuote, error)
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// Provider implements market.Venue for Alpaca crypto.
type Provider struct {
	mdClient cryptoData
	symbols  market.Symbols
	now      func() time.Time
}

var _ market.Venue = (*Provider)(nil)

// DefaultSymbols maps BTC to BTC/USD.
func DefaultSymbols() market.Symbols {
	return market.Symbols{Format: "%s/USD"}
}

// NewProvider returns a new Alpaca provider.
func NewProvider(symbols market.Symbols) *Provider {
	if symbols.Format == "" && len(symbols.Overrides) == 0 {
		symbols = DefaultSymbols()
	}
	return &Provider{
		mdClient: marketdata.NewClient(marketdata.ClientOpts{}),
		symbols:  symbols,
		now:      time.Now,
	}
}

func (p *Provider) Name() string { return "alpaca" }

// The SDK calls are synchronous and take no context; ctx is checked up front
// so a cancelled cycle does not start new requests.

func (p *Provider) Price(ctx context.Context, asset string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	trade, err := p.mdClient.GetLatestCryptoTrade(p.symbols.For(asset), marketdata.GetLatestCryptoTradeRequest{})
	if err != nil {
		return 0, err
	}
	if trade == nil {
		return 0, fmt.Errorf("no trade found for %s: %w", asset, models.ErrDataUnavailable)
	}
	return trade.Price, nil
}

// OrderBook returns a one-level book from the latest quote. The REST API
// serves no depth, so depth is ignored.
func (p *Provider) OrderBook(ctx context.Context, asset string, _ int) (models.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return models.OrderBook{}, err
	}
	q, err := p.mdClient.GetLatestCryptoQuote(p.symbols.For(asset), marketdata.GetLatestCryptoQuoteRequest{})
	if err != nil {
		return models.OrderBook{}, err
	}
	if q == nil {
		return models.OrderBook{}, fmt.Errorf("no quote for %s: %w", asset, models.ErrDataUnavailable)
	}

	book := models.OrderBook{Asset: asset, Venue: p.Name(), Timestamp: q.Timestamp}
	if q.BidPrice > 0 {
		book.Bids = []models.Level{{Price: q.BidPrice, Size: q.BidSize}}
	}
	if q.AskPrice > 0 {
		book.Asks = []models.Level{{Price: q.AskPrice, Size: q.AskSize}}
	}
	return book, nil
}

func (p *Provider) Candles(ctx context.Context, asset string, timeframe market.Timeframe, limit int) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf, width, err := timeFrameFor(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	end := p.now()
	bars, err := p.mdClient.GetCryptoBars(p.symbols.For(asset), marketdata.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     end.Add(-width * time.Duration(limit+1)),
		End:       end,
	})
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, models.Candle{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func timeFrameFor(tf market.Timeframe) (marketdata.TimeFrame, time.Duration, error) {
	switch tf {
	case market.OneHour:
		return marketdata.OneHour, time.Hour, nil
	case market.FourHour:
		return marketdata.NewTimeFrame(4, marketdata.Hour), 4 * time.Hour, nil
	case market.OneDay, "":
		return marketdata.OneDay, 24 * time.Hour, nil
	}
	return marketdata.TimeFrame{}, 0, fmt.Errorf("alpaca: unsupported timeframe %q", string(tf))
}
