package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hedge_watcher/internal/models"
	"hedge_watcher/internal/options"
)

// HedgeSuggestion is a perpetual short sized to offset a spot position.
type HedgeSuggestion struct {
	Asset        string
	Venue        string
	PositionSize float64
	BestAsk      float64
	ShortSize    float64
	HedgeCost    float64
}

// HedgeNow quotes a perp hedge for a monitored asset on venue (the price
// venue when empty). It only suggests; hedge state is left to the
// auto-hedge loop.
func (w *Watcher) HedgeNow(ctx context.Context, asset, venue string) (HedgeSuggestion, error) {
	asset = models.NormalizeAsset(asset)
	if venue == "" {
		venue = w.venue()
	}
	venue = strings.ToLower(venue)

	size, err := w.store.GetPositionSize(ctx, asset)
	if errors.Is(err, models.ErrNotFound) {
		return HedgeSuggestion{}, fmt.Errorf("%s: %w", asset, models.ErrNotMonitored)
	}
	if err != nil {
		return HedgeSuggestion{}, err
	}

	book, err := w.market.OrderBook(ctx, asset, venue, w.config.OrderBookDepth)
	if err != nil {
		return HedgeSuggestion{}, err
	}
	ask, err := book.BestAsk()
	if err != nil {
		return HedgeSuggestion{}, err
	}
	return HedgeSuggestion{
		Asset:        asset,
		Venue:        venue,
		PositionSize: size,
		BestAsk:      ask,
		ShortSize:    size,
		HedgeCost:    ask * size,
	}, nil
}

// Strategy is an options hedge structure.
type Strategy string

const (
	ProtectivePut Strategy = "protective_put"
	CoveredCall   Strategy = "covered_call"
	Collar        Strategy = "collar"
)

// ParseStrategy accepts the three strategy names in any case.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case ProtectivePut, CoveredCall, Collar:
		return st, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Title renders "protective_put" as "Protective Put".
func (s Strategy) Title() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// OptionLeg is one selected contract with its quoted premium.
type OptionLeg struct {
	Contract models.OptionContract
	// Premium is the venue mid price per unit of underlying.
	Premium float64
}

// OptionsHedge prices a strategy for a monitored position. For a collar,
// NetPremium is put minus call; for a covered call it is the (positive)
// premium received.
type OptionsHedge struct {
	Asset        string
	Strategy     Strategy
	Spot         float64
	PositionSize float64
	Put          *OptionLeg
	Call         *OptionLeg
	NetPremium   float64
	Total        float64
}

// HedgeOptions selects and prices the legs of strategy for asset.
func (w *Watcher) HedgeOptions(ctx context.Context, asset string, strategy Strategy) (OptionsHedge, error) {
	asset = models.NormalizeAsset(asset)
	size, err := w.store.GetPositionSize(ctx, asset)
	if errors.Is(err, models.ErrNotFound) {
		return OptionsHedge{}, fmt.Errorf("%s: %w", asset, models.ErrNotMonitored)
	}
	if err != nil {
		return OptionsHedge{}, err
	}

	spot, err := w.market.Price(ctx, asset, w.venue())
	if err != nil {
		return OptionsHedge{}, fmt.Errorf("%s: %v: %w", asset, err, models.ErrSpotPriceUnavailable)
	}
	chain, err := w.market.OptionChain(ctx, asset)
	if err != nil {
		return OptionsHedge{}, err
	}

	h := OptionsHedge{Asset: asset, Strategy: strategy, Spot: spot, PositionSize: size}
	if strategy == ProtectivePut || strategy == Collar {
		if h.Put, err = w.optionLeg(ctx, models.Put, asset, spot, chain); err != nil {
			return OptionsHedge{}, err
		}
		h.NetPremium += h.Put.Premium
	}
	if strategy == CoveredCall || strategy == Collar {
		if h.Call, err = w.optionLeg(ctx, models.Call, asset, spot, chain); err != nil {
			return OptionsHedge{}, err
		}
		if strategy == Collar {
			h.NetPremium -= h.Call.Premium
		} else {
			h.NetPremium = h.Call.Premium
		}
	}
	h.Total = h.NetPremium * size
	return h, nil
}

func (w *Watcher) optionLeg(ctx context.Context, kind models.OptionType, asset string, spot float64, chain []models.OptionContract) (*OptionLeg, error) {
	c, err := options.SelectHedgeOption(kind, asset, spot, chain, w.now())
	if err != nil {
		return nil, err
	}
	premium, err := w.market.OptionMidPrice(ctx, c.Symbol)
	if err != nil {
		return nil, err
	}
	return &OptionLeg{Contract: c, Premium: premium}, nil
}
