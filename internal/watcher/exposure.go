package watcher

import (
	"context"
	"fmt"

	"hedge_watcher/internal/models"
	"hedge_watcher/internal/telegram"

	"github.com/rs/zerolog/log"
)

// EvaluateExposure applies the breach rule to one position at price.
//
// allowed = exposure * threshold/100 and a breach is exposure > allowed.
// The comparison is kept literal: for a long position every threshold
// below 100 breaches.
func EvaluateExposure(p models.MonitoredPosition, price float64) (exposure, allowed float64, breach bool) {
	exposure = p.PositionSize * price
	allowed = exposure * (p.RiskThresholdPct / 100)
	return exposure, allowed, exposure > allowed
}

// RunExposureCycle checks every monitored position once. Per-asset failures
// are logged and skipped; only a store failure fails the cycle.
func (w *Watcher) RunExposureCycle(ctx context.Context) error {
	positions, err := w.store.ListMonitoredPositions(ctx)
	if err != nil {
		return fmt.Errorf("list monitored positions: %w", err)
	}
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.checkExposure(ctx, p); err != nil {
			w.assetFailed(LoopExposure, p.Asset, err)
		}
	}
	w.metrics.LedgerSize(models.KindRiskBreach, w.state.Breaches.Len())
	return nil
}

func (w *Watcher) checkExposure(ctx context.Context, p models.MonitoredPosition) error {
	price, err := w.market.Price(ctx, p.Asset, w.venue())
	if err != nil {
		return err
	}
	exposure, allowed, breach := EvaluateExposure(p, price)
	if !breach {
		return nil
	}

	// The alerted setup is (asset, size, threshold); price moves alone never
	// re-alert.
	if !w.state.Breaches.ShouldNotify(p.Asset, p.PositionSize, p.RiskThresholdPct) {
		w.metrics.Suppressed(models.KindRiskBreach)
		return nil
	}

	ev := models.RiskBreach{
		ID:              models.NewEventID(),
		Asset:           p.Asset,
		PositionSize:    p.PositionSize,
		Price:           price,
		Exposure:        exposure,
		AllowedExposure: allowed,
		ThresholdPct:    p.RiskThresholdPct,
		At:              w.now(),
	}

	err = w.notifier.Notify(ctx, telegram.Message{Text: breachMessage(ev)})
	if undeliverable(err) {
		// Without a recipient the breach stays pending until a chat binds.
		log.Debug().Str("asset", p.Asset).Msg("Risk breach pending, no chat bound")
		return nil
	}
	w.state.Breaches.RecordNotified(p.Asset, p.PositionSize, p.RiskThresholdPct)
	w.metrics.Alert(models.KindRiskBreach)

	log.Info().Str("event", ev.ID).Str("asset", ev.Asset).Float64("exposure", ev.Exposure).
		Float64("allowed", ev.AllowedExposure).Bool("delivered", err == nil).Msg("Risk breach alerted")
	return nil
}

func breachMessage(ev models.RiskBreach) string {
	return fmt.Sprintf("Risk Breach Detected!\n\n"+
		"Asset: %s\n"+
		"Position Size: %s\n"+
		"Price: %s\n"+
		"Exposure: %s\n"+
		"Threshold: %s%% of exposure (%s)\n\n"+
		"Use /hedge_now %s to hedge.",
		ev.Asset, qty(ev.PositionSize), usd(ev.Price), usd(ev.Exposure),
		fixed(ev.ThresholdPct, 2), usd(ev.AllowedExposure), ev.Asset)
}
