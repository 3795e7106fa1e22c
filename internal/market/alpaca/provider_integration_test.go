//go:build integration

package alpaca

import (
	"context"
	"os"
	"testing"
	"time"

	"hedge_watcher/internal/market"
)

func setupTestEnv(t *testing.T) {
	key := os.Getenv("TEST_APCA_API_KEY_ID")
	secret := os.Getenv("TEST_APCA_API_SECRET_KEY")

	if key == "" || secret == "" {
		t.Skip("Skipping integration test: TEST_APCA credentials not set")
	}

	// Override standard env vars for the library
	t.Setenv("APCA_API_KEY_ID", key)
	t.Setenv("APCA_API_SECRET_KEY", secret)
}

func TestIntegration_CryptoMarketData(t *testing.T) {
	setupTestEnv(t)

	provider := NewProvider(market.Symbols{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	price, err := provider.Price(ctx, "BTC")
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if price <= 0 {
		t.Fatalf("Expected positive BTC price, got %f", price)
	}

	book, err := provider.OrderBook(ctx, "BTC", 5)
	if err != nil {
		t.Fatalf("OrderBook failed: %v", err)
	}
	if _, err := book.BestAsk(); err != nil {
		t.Errorf("Expected an ask side: %v", err)
	}
	if len(book.Asks) > 5 {
		t.Errorf("Depth not honored: %d asks", len(book.Asks))
	}

	candles, err := provider.Candles(ctx, "BTC", market.OneDay, 30)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(candles) == 0 || len(candles) > 30 {
		t.Fatalf("Expected 1..30 daily candles, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			t.Fatalf("Candles out of order at %d", i)
		}
	}
}
