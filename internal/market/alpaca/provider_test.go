package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	symbol string
	trade  *marketdata.CryptoTrade
	quote  *marketdata.CryptoQuote
	bars   []marketdata.CryptoBar
	barReq marketdata.GetCryptoBarsRequest
	err    error
}

func (s *stubClient) GetLatestCryptoTrade(symbol string, _ marketdata.GetLatestCryptoTradeRequest) (*marketdata.CryptoTrade, error) {
	s.symbol = symbol
	return s.trade, s.err
}

func (s *stubClient) GetLatestCryptoQuote(symbol string, _ marketdata.GetLatestCryptoQuoteRequest) (*marketdata.CryptoQuote, error) {
	s.symbol = symbol
	return s.quote, s.err
}

func (s *stubClient) GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error) {
	s.symbol, s.barReq = symbol, req
	return s.bars, s.err
}

func newStubbed(c *stubClient) *Provider {
	p := NewProvider(market.Symbols{})
	p.mdClient = c
	return p
}

func TestOrderBook_FromLatestQuote(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &stubClient{quote: &marketdata.CryptoQuote{
		Timestamp: ts, BidPrice: 49990, BidSize: 0.4, AskPrice: 50010, AskSize: 0.7,
	}}
	book, err := newStubbed(c).OrderBook(context.Background(), "btc", 5)
	require.NoError(t, err)

	assert.Equal(t, "BTC/USD", c.symbol)
	assert.Equal(t, "alpaca", book.Venue)
	assert.Equal(t, ts, book.Timestamp)
	assert.Equal(t, []models.Level{{Price: 49990, Size: 0.4}}, book.Bids)
	assert.Equal(t, []models.Level{{Price: 50010, Size: 0.7}}, book.Asks)

	ask, err := book.BestAsk()
	require.NoError(t, err)
	assert.Equal(t, 50010.0, ask)
}

func TestOrderBook_EmptyAskSide(t *testing.T) {
	c := &stubClient{quote: &marketdata.CryptoQuote{BidPrice: 49990, BidSize: 1}}
	book, err := newStubbed(c).OrderBook(context.Background(), "BTC", 5)
	require.NoError(t, err)
	assert.Empty(t, book.Asks)

	_, err = book.BestAsk()
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestOrderBook_Errors(t *testing.T) {
	_, err := newStubbed(&stubClient{}).OrderBook(context.Background(), "BTC", 5)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	boom := errors.New("403 forbidden")
	_, err = newStubbed(&stubClient{err: boom}).OrderBook(context.Background(), "BTC", 5)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newStubbed(&stubClient{}).OrderBook(ctx, "BTC", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrice_LatestTrade(t *testing.T) {
	c := &stubClient{trade: &marketdata.CryptoTrade{Price: 3012.5}}
	price, err := newStubbed(c).Price(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 3012.5, price)
	assert.Equal(t, "ETH/USD", c.symbol)

	_, err = newStubbed(&stubClient{}).Price(context.Background(), "ETH")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestCandles_TrimsToLimit(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &stubClient{bars: []marketdata.CryptoBar{
		{Timestamp: now.Add(-3 * time.Hour), Close: 1},
		{Timestamp: now.Add(-2 * time.Hour), Close: 2},
		{Timestamp: now.Add(-time.Hour), Close: 3},
	}}
	p := newStubbed(c)
	p.now = func() time.Time { return now }

	candles, err := p.Candles(context.Background(), "BTC", market.OneHour, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 2.0, candles[0].Close)
	assert.Equal(t, 3.0, candles[1].Close)
	assert.Equal(t, marketdata.OneHour, c.barReq.TimeFrame)
	assert.Equal(t, now.Add(-3*time.Hour), c.barReq.Start)

	_, err = p.Candles(context.Background(), "BTC", market.Timeframe("1w"), 2)
	assert.Error(t, err)
}
