package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hedge_watcher/internal/models"
	"hedge_watcher/internal/telegram"

	"github.com/rs/zerolog/log"
)

// HandleCallback processes button clicks from Telegram.
func (w *Watcher) HandleCallback(ctx context.Context, cb telegram.Callback) []telegram.Reply {
	data := cb.Data
	switch {
	case strings.HasPrefix(data, "hedge_now_"):
		return w.hedgeNowReply(ctx, strings.TrimPrefix(data, "hedge_now_"), "")
	case strings.HasPrefix(data, "options_hedge_"):
		return handleOptionsHedgeCallback(data)
	case strings.HasPrefix(data, "forecast_vol_"):
		return w.forecastReply(ctx, strings.TrimPrefix(data, "forecast_vol_"), 10)
	case strings.HasPrefix(data, "delete_asset_"):
		return w.deleteAssetReply(ctx, strings.TrimPrefix(data, "delete_asset_"))
	case data == "price_BACK":
		return text("Cancelled.")
	case strings.HasPrefix(data, "price_"):
		return w.priceReply(ctx, strings.TrimPrefix(data, "price_"))
	}
	log.Warn().Str("data", data).Msg("Unknown callback")
	return text("Invalid callback data.")
}

// handleOptionsHedgeCallback acknowledges options_hedge_<action>_<type>_<ASSET>.
// Orders are never placed from here.
func handleOptionsHedgeCallback(data string) []telegram.Reply {
	parts := strings.Split(data, "_")
	if len(parts) < 5 {
		return text("Invalid hedge action.")
	}
	action, optionType := parts[2], parts[3]
	asset := models.NormalizeAsset(strings.Join(parts[4:], "_"))
	return text(fmt.Sprintf("Confirmed: %s %s option for %s.\nPlace the order on the venue; this bot does not execute trades.",
		titleCase(action), titleCase(optionType), asset))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func (w *Watcher) deleteAssetReply(ctx context.Context, asset string) []telegram.Reply {
	asset = models.NormalizeAsset(asset)
	err := w.store.DeleteMonitoredPosition(ctx, asset)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return text(fmt.Sprintf("No monitored position found for %s", asset))
	case err != nil:
		log.Error().Err(err).Str("asset", asset).Msg("Delete position failed")
		return text(fmt.Sprintf("Failed to delete %s.", asset))
	}
	log.Info().Str("asset", asset).Msg("Monitored position deleted")
	return text(fmt.Sprintf("%s removed from monitoring.", asset))
}
