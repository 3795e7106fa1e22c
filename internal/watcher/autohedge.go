package watcher

import (
	"context"
	"errors"
	"fmt"

	"hedge_watcher/internal/models"
	"hedge_watcher/internal/telegram"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DriftExceeded reports whether cost moved at least threshold (a fraction,
// 0.01 for 1%) away from the last hedged amount.
//
// The change is measured against the last amount, so 1000 to 1010 is
// exactly 1%. Before any hedge (last == 0) it is measured against cost
// itself, which always triggers. A zero cost never triggers.
//
// Dividing by last instead of by cost differs in two cases. A fall from 1000
// to 990.05 is 0.995% of last and does not trigger, while relative to cost it
// is 1.005%. Short positions (negative cost) drift like long ones, so -1000
// to -1100 triggers, where a cost-relative test with a signed cost never
// does.
func DriftExceeded(last, cost, threshold float64) bool {
	c := decimal.NewFromFloat(cost)
	if c.IsZero() {
		return false
	}
	base := decimal.NewFromFloat(last).Abs()
	if base.IsZero() {
		base = c.Abs()
	}
	change := c.Sub(decimal.NewFromFloat(last)).Abs().Div(base)
	return change.GreaterThanOrEqual(decimal.NewFromFloat(threshold))
}

// RunAutoHedgeCycle re-prices every auto-hedge config once and suggests a
// rebalance when the hedge cost drifted.
func (w *Watcher) RunAutoHedgeCycle(ctx context.Context) error {
	configs, err := w.store.ListAutoHedgeConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list auto hedge configs: %w", err)
	}
	for _, c := range configs {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.checkAutoHedge(ctx, c)
		switch {
		case err == nil:
		case errors.Is(err, models.ErrNotMonitored):
			log.Warn().Str("loop", LoopAutoHedge).Str("asset", c.Asset).Msg("Skipped, asset no longer monitored")
			w.metrics.AssetFailure(LoopAutoHedge, err)
		default:
			w.assetFailed(LoopAutoHedge, c.Asset, err)
		}
	}
	w.metrics.LedgerSize(models.KindRebalanceSuggested, w.state.Hedges.Len())
	return nil
}

func (w *Watcher) checkAutoHedge(ctx context.Context, c models.AutoHedgeConfig) error {
	size, err := w.store.GetPositionSize(ctx, c.Asset)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s: %w", c.Asset, models.ErrNotMonitored)
	}
	if err != nil {
		return err
	}

	venue := w.venue()
	spot, err := w.market.Price(ctx, c.Asset, venue)
	if err != nil {
		return err
	}
	book, err := w.market.OrderBook(ctx, c.Asset, venue, w.config.OrderBookDepth)
	if err != nil {
		return err
	}
	ask, err := book.BestAsk()
	if err != nil {
		return err
	}

	cost := ask * size
	if !DriftExceeded(c.LastHedgeAmount, cost, w.config.DriftThreshold) {
		return nil
	}
	if !w.state.Hedges.ShouldNotify(c.Asset, cost) {
		w.metrics.Suppressed(models.KindRebalanceSuggested)
		return nil
	}

	ev := models.RebalanceSuggested{
		ID:           models.NewEventID(),
		Asset:        c.Asset,
		SpotPrice:    spot,
		BestAsk:      ask,
		PositionSize: size,
		HedgeCost:    cost,
		At:           w.now(),
	}

	// Fire and forget: the suggestion counts as made once attempted, with or
	// without a bound chat.
	notifyErr := w.notifier.Notify(ctx, telegram.Message{
		Text:     rebalanceMessage(ev),
		Markdown: true,
		Keyboard: [][]telegram.Button{{{Text: "Hedge Now", CallbackData: "hedge_now_" + ev.Asset}}},
	})
	w.state.Hedges.RecordNotified(c.Asset, cost)
	if !undeliverable(notifyErr) {
		w.metrics.Alert(models.KindRebalanceSuggested)
	}

	if err := w.store.UpdateHedgeState(ctx, c.Asset, cost, ev.At); err != nil {
		return fmt.Errorf("%s: persist hedge state: %w", c.Asset, err)
	}

	log.Info().Str("event", ev.ID).Str("asset", ev.Asset).Float64("last", c.LastHedgeAmount).
		Float64("cost", cost).Bool("delivered", notifyErr == nil).Msg("Rebalance suggested")
	return nil
}

func rebalanceMessage(ev models.RebalanceSuggested) string {
	return fmt.Sprintf("*Auto Rebalancing Alert for %s*\n\n"+
		"• Spot Price: %s\n"+
		"• Perpetual Best Ask: %s\n"+
		"• Position Size: %s %s\n"+
		"• Updated Hedge Cost: %s",
		ev.Asset, usd(ev.SpotPrice), usd(ev.BestAsk), qty(ev.PositionSize), ev.Asset, usd(ev.HedgeCost))
}
