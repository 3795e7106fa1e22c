// Package watcher runs the two monitor loops (exposure breaches and
// auto-hedge drift) and serves the chat command surface on top of the
// store, the market gateway and the analytics engine.
package watcher

import (
	"context"
	"errors"
	"time"

	"hedge_watcher/internal/analytics"
	"hedge_watcher/internal/config"
	"hedge_watcher/internal/ledger"
	"hedge_watcher/internal/metrics"
	"hedge_watcher/internal/models"
	"hedge_watcher/internal/scheduler"
	"hedge_watcher/internal/storage"
	"hedge_watcher/internal/telegram"
	"hedge_watcher/internal/volatility"

	"github.com/rs/zerolog/log"
)

// Loop names, used in logs and metrics labels.
const (
	LoopExposure  = "exposure"
	LoopAutoHedge = "auto_hedge"
)

// MarketData is the part of the market gateway the watcher reads.
type MarketData interface {
	Price(ctx context.Context, asset, venue string) (float64, error)
	OrderBook(ctx context.Context, asset, venue string, depth int) (models.OrderBook, error)
	OptionChain(ctx context.Context, asset string) ([]models.OptionContract, error)
	OptionMidPrice(ctx context.Context, symbol string) (float64, error)
	Venues() []string
}

// Notifier delivers chat messages. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, m telegram.Message) error
}

// Deps are the collaborators of a Watcher. Metrics may be nil.
type Deps struct {
	Store     storage.Store
	Market    MarketData
	Analytics *analytics.Engine
	Predictor *volatility.Predictor
	Notifier  Notifier
	Metrics   *metrics.Metrics
}

type Watcher struct {
	store     storage.Store
	market    MarketData
	analytics *analytics.Engine
	predictor *volatility.Predictor
	notifier  Notifier
	metrics   *metrics.Metrics
	state     *ledger.EngineState
	config    *config.Config
	commands  []CommandDoc
	now       func() time.Time
}

// New wires a watcher with a fresh EngineState. Each watcher owns its
// ledgers, so independent instances never share alert history.
func New(cfg *config.Config, deps Deps) *Watcher {
	return &Watcher{
		store:     deps.Store,
		market:    deps.Market,
		analytics: deps.Analytics,
		predictor: deps.Predictor,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		state:     ledger.NewEngineState(),
		config:    cfg,
		commands:  commandDocs,
		now:       time.Now,
	}
}

// State exposes the dedup ledgers, mainly for tests and diagnostics.
func (w *Watcher) State() *ledger.EngineState { return w.state }

// Loops returns the exposure and auto-hedge loops at their configured
// cadence, reporting to metrics.
func (w *Watcher) Loops(clock scheduler.Clock) []*scheduler.Loop {
	return []*scheduler.Loop{
		{
			Name:     LoopExposure,
			Interval: w.config.ExposureInterval,
			Clock:    clock,
			Cycle:    w.RunExposureCycle,
			OnCycle:  w.metrics.ObserveCycle,
		},
		{
			Name:     LoopAutoHedge,
			Interval: w.config.AutoHedgeInterval,
			Clock:    clock,
			Cycle:    w.RunAutoHedgeCycle,
			OnCycle:  w.metrics.ObserveCycle,
		},
	}
}

// assetFailed logs and counts a per-asset failure. The cycle carries on.
func (w *Watcher) assetFailed(loop, asset string, err error) {
	log.Warn().Err(err).Str("loop", loop).Str("asset", asset).
		Str("kind", models.ErrorKind(err)).Msg("Asset skipped")
	w.metrics.AssetFailure(loop, err)
}

// undeliverable reports whether a notify error means nobody could receive
// the message, as opposed to a failed attempt.
func undeliverable(err error) bool {
	return errors.Is(err, telegram.ErrNoChat) || errors.Is(err, telegram.ErrDisabled)
}

func (w *Watcher) venue() string {
	if w.config.PriceVenue != "" {
		return w.config.PriceVenue
	}
	return "okx"
}
