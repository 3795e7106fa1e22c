package deribit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hedge_watcher/internal/market"
	"hedge_watcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, routes map[string]string) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewProvider(srv.URL, market.Symbols{}, market.TransportOptions{RequestsPerSecond: 1000, Burst: 10})
}

func TestProvider_OptionChain(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_instruments": `{"jsonrpc":"2.0","result":[
			{"instrument_name":"BTC-10JAN25-49000-P","kind":"option","option_type":"put","strike":49000,"expiration_timestamp":1736496000000,"base_currency":"BTC","is_active":true},
			{"instrument_name":"BTC-10JAN25-52000-C","kind":"option","option_type":"call","strike":52000,"expiration_timestamp":1736496000000,"base_currency":"BTC","is_active":true},
			{"instrument_name":"BTC-WEIRD","kind":"option","option_type":"straddle","strike":1,"expiration_timestamp":1736496000000,"base_currency":"BTC"}
		]}`,
	})

	chain, err := p.OptionChain(context.Background(), "BTC")
	require.NoError(t, err)
	require.Len(t, chain, 2)

	put := chain[0]
	assert.Equal(t, "BTC-10JAN25-49000-P", put.Symbol)
	assert.Equal(t, models.Put, put.OptionType)
	assert.Equal(t, 49000.0, put.Strike)
	assert.Equal(t, "BTC", put.UnderlyingAsset)
	assert.Equal(t, time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), put.Expiry)
	assert.Equal(t, models.Call, chain[1].OptionType)
}

func TestProvider_OptionMidPrice(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_order_book": `{"result":{"bids":[[0.010,5]],"asks":[[0.012,3]],"timestamp":1735689600000}}`,
	})
	mid, err := p.OptionMidPrice(context.Background(), "BTC-10JAN25-49000-P")
	require.NoError(t, err)
	assert.InDelta(t, 0.011, mid, 1e-12)
}

func TestProvider_OptionMidFallsBackToLastPrice(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_order_book": `{"result":{"bids":[],"asks":[[0.012,3]],"timestamp":1735689600000}}`,
		"/api/v2/public/ticker":         `{"result":{"last_price":0.0115}}`,
	})
	mid, err := p.OptionMidPrice(context.Background(), "BTC-10JAN25-49000-P")
	require.NoError(t, err)
	assert.Equal(t, 0.0115, mid)
}

func TestProvider_OptionMidZeroWhenNoQuotes(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_order_book": `{"result":{"bids":[],"asks":[]}}`,
		"/api/v2/public/ticker":         `{"result":{"last_price":null}}`,
	})
	mid, err := p.OptionMidPrice(context.Background(), "BTC-10JAN25-49000-P")
	require.NoError(t, err)
	assert.Zero(t, mid)
}

func TestProvider_RPCError(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_index_price": `{"error":{"code":10001,"message":"invalid index"}}`,
	})
	_, err := p.IndexPrice(context.Background(), "DOGE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid index")
}

func TestProvider_PerpetualBookAndIndex(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_order_book":  `{"result":{"bids":[[49990,1000]],"asks":[[50010,2000]],"timestamp":1735689600000}}`,
		"/api/v2/public/get_index_price": `{"result":{"index_price":50001.25}}`,
	})

	book, err := p.OrderBook(context.Background(), "BTC", 5)
	require.NoError(t, err)
	ask, err := book.BestAsk()
	require.NoError(t, err)
	assert.Equal(t, 50010.0, ask)

	idx, err := p.IndexPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 50001.25, idx)
}

func TestProvider_Candles(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v2/public/get_tradingview_chart_data": `{"result":{"status":"ok",
			"ticks":[1735689600000,1735776000000,1735862400000],
			"open":[100,101,102],"high":[102,103,104],"low":[99,100,101],
			"close":[101,102,103],"volume":[1,2,3]}}`,
	})
	p.now = func() time.Time { return time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC) }

	candles, err := p.Candles(context.Background(), "BTC", market.OneDay, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 102.0, candles[0].Close)
	assert.Equal(t, 103.0, candles[1].Close)
}
