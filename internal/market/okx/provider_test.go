package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hedge_watcher/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(srv.URL, market.Symbols{}, market.TransportOptions{RequestsPerSecond: 1000, Burst: 10})
}

func TestProvider_Price(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/ticker", r.URL.Path)
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{"instId":"BTC-USDT","last":"50123.5"}]}`))
	})

	price, err := p.Price(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 50123.5, price)
}

func TestProvider_APIErrorCode(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	})

	_, err := p.Price(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")
}

func TestProvider_OrderBook(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/books", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("sz"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{
			"asks":[["50010","0.5","0","2"],["50020","1.2","0","3"]],
			"bids":[["50000","0.7","0","1"],["49990","2","0","4"]],
			"ts":"1735689600000"}]}`))
	})

	book, err := p.OrderBook(context.Background(), "BTC", 2)
	require.NoError(t, err)
	assert.Equal(t, "okx", book.Venue)
	require.Len(t, book.Asks, 2)
	ask, err := book.BestAsk()
	require.NoError(t, err)
	assert.Equal(t, 50010.0, ask)
	assert.Equal(t, 0.7, book.Bids[0].Size)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), book.Timestamp)
}

func TestProvider_CandlesReversedToOldestFirst(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/candles", r.URL.Path)
		assert.Equal(t, "1D", r.URL.Query().Get("bar"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1735862400000","102","104","101","103","10","0","0","1"],
			["1735776000000","101","103","100","102","11","0","0","1"],
			["1735689600000","100","102","99","101","12","0","0","1"]]}`))
	})

	candles, err := p.Candles(context.Background(), "BTC", market.OneDay, 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 103.0, candles[2].Close)
	assert.True(t, candles[0].Time.Before(candles[2].Time))
}

func TestProvider_UnsupportedTimeframe(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := p.Candles(context.Background(), "BTC", market.Timeframe("2w"), 10)
	assert.Error(t, err)
}
