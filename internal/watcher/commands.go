package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hedge_watcher/internal/greeks"
	"hedge_watcher/internal/models"
	"hedge_watcher/internal/telegram"
	"hedge_watcher/internal/volatility"

	"github.com/rs/zerolog/log"
)

type CommandDoc struct {
	Name        string
	Description string
	Example     string
}

var commandDocs = []CommandDoc{
	{"/start", "Bind this chat for alerts", "/start"},
	{"/help", "Show this help message", "/help"},
	{"/monitor_risk", "Start monitoring a spot position", "/monitor_risk BTC 1.5 5%"},
	{"/auto_hedge", "Enable auto hedging for an asset", "/auto_hedge BTC 15"},
	{"/hedge_status", "Auto hedge state (alias /status)", "/hedge_status BTC"},
	{"/hedge_history", "Recorded hedge amounts", "/hedge_history BTC"},
	{"/hedge_now", "Perp hedge suggestion", "/hedge_now BTC [okx|deribit]"},
	{"/hedge_options", "Options hedge (protective_put, covered_call, collar)", "/hedge_options BTC collar"},
	{"/greeks", "Black-Scholes Greeks at the live spot", "/greeks BTC call 60000 30 0.5"},
	{"/var", "Historical VaR of the monitored portfolio", "/var"},
	{"/correlation", "Pairwise return correlation", "/correlation"},
	{"/drawdown", "Max drawdown per asset and portfolio", "/drawdown"},
	{"/stress", "Spot shocks with protective put delta", "/stress"},
	{"/portfolio_greeks", "Summed protective put Greeks", "/portfolio_greeks"},
	{"/risk_report", "All five risk analyses", "/risk_report"},
	{"/pnl_report", "Portfolio value, or P&L over N days", "/pnl_report [days]"},
	{"/predict_hedge", "GARCH hedge timing", "/predict_hedge BTC"},
	{"/forecast_volatility", "GARCH volatility forecast", "/forecast_volatility BTC [steps]"},
	{"/price", "Latest price", "/price [asset]"},
	{"/show_db", "List monitored positions", "/show_db"},
	{"/delete_all_db", "Delete all monitored positions", "/delete_all_db"},
}

func text(s string) []telegram.Reply { return []telegram.Reply{{Text: s}} }

// HandleCommand processes inbound chat commands. Nothing here places
// orders; hedges are only suggested.
func (w *Watcher) HandleCommand(ctx context.Context, cmd telegram.Command) []telegram.Reply {
	args := cmd.Args()
	switch cmd.Name() {
	case "start":
		return text("Spot Exposure Hedging Bot is online!")
	case "help":
		return text(w.getHelp())
	case "monitor_risk":
		return w.handleMonitorRisk(ctx, args)
	case "auto_hedge":
		return w.handleAutoHedge(ctx, args)
	case "hedge_status", "status":
		return w.handleHedgeStatus(ctx, args)
	case "hedge_history":
		return w.handleHedgeHistory(ctx, args)
	case "hedge_now":
		if len(args) < 1 {
			return text("Usage: /hedge_now <asset> [exchange]")
		}
		venue := ""
		if len(args) > 1 {
			venue = args[1]
		}
		return w.hedgeNowReply(ctx, args[0], venue)
	case "hedge_options":
		return w.handleHedgeOptions(ctx, args)
	case "greeks":
		return w.handleGreeks(ctx, args)
	case "var":
		r, err := w.analytics.HistoricalVaR(ctx)
		return analysisReply("VaR", varReport(r), err)
	case "correlation":
		r, err := w.analytics.CorrelationMatrix(ctx)
		return analysisReply("correlation", correlationReport(r), err)
	case "drawdown":
		r, err := w.analytics.PortfolioMaxDrawdown(ctx)
		return analysisReply("drawdown", drawdownReport(r), err)
	case "stress":
		r, err := w.analytics.StressTest(ctx)
		return analysisReply("stress test", stressReport(r), err)
	case "portfolio_greeks":
		r, err := w.analytics.PortfolioGreeks(ctx)
		return analysisReply("portfolio Greeks", greeksReport(r), err)
	case "risk_report":
		var out []telegram.Reply
		for _, s := range w.RiskReport(ctx) {
			out = append(out, telegram.Reply{Text: s})
		}
		return out
	case "pnl_report":
		return w.handlePnL(ctx, args)
	case "predict_hedge":
		if len(args) < 1 {
			return text("Usage: /predict_hedge <asset>")
		}
		return w.predictReply(ctx, args[0])
	case "forecast_volatility":
		return w.handleForecast(ctx, args)
	case "price":
		if len(args) > 0 {
			return w.priceReply(ctx, args[0])
		}
		return []telegram.Reply{{
			Text: "Select an asset to view price:",
			Keyboard: [][]telegram.Button{
				{{Text: "BTC", CallbackData: "price_BTC"}, {Text: "ETH", CallbackData: "price_ETH"}},
				{{Text: "Cancel", CallbackData: "price_BACK"}},
			},
		}}
	case "show_db":
		return w.handleShowDB(ctx)
	case "delete_all_db":
		n, err := w.store.DeleteAllMonitoredPositions(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Delete all positions failed")
			return text("Failed to delete database contents.")
		}
		log.Info().Int64("deleted", n).Msg("All monitored positions deleted")
		return text("All positions have been deleted from the database.")
	default:
		return text("Unknown command. Try /help.")
	}
}

func (w *Watcher) getHelp() string {
	var sb strings.Builder
	sb.WriteString("Available Commands:\n\n")
	for _, c := range w.commands {
		sb.WriteString(fmt.Sprintf("%s - %s\n  e.g. %s\n", c.Name, c.Description, c.Example))
	}
	return sb.String()
}

func analysisReply(name, body string, err error) []telegram.Reply {
	if err != nil {
		log.Warn().Err(err).Str("analysis", name).Msg("Analysis failed")
		return text(fmt.Sprintf("Failed to compute %s: %s.", name, models.ErrorKind(err)))
	}
	return text(body)
}

// parseThreshold accepts "5", "5%" and "5.5 %".
func parseThreshold(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
}

func (w *Watcher) handleMonitorRisk(ctx context.Context, args []string) []telegram.Reply {
	const usage = "Usage: /monitor_risk <asset> <position_size> <risk_threshold>"
	if len(args) < 3 {
		return text(usage)
	}
	size, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return text(usage)
	}
	threshold, err := parseThreshold(args[2])
	if err != nil {
		return text(usage)
	}
	p := models.MonitoredPosition{
		Asset:            models.NormalizeAsset(args[0]),
		PositionSize:     size,
		RiskThresholdPct: threshold,
	}
	if err := w.store.UpsertMonitoredPosition(ctx, p); err != nil {
		log.Warn().Err(err).Str("asset", p.Asset).Msg("Monitor risk rejected")
		return text(fmt.Sprintf("Could not monitor %s: %v", p.Asset, err))
	}
	return text(fmt.Sprintf("Now monitoring %s:\n• Size: %s\n• Risk Threshold: %s%%", p.Asset, qty(size), qty(threshold)))
}

func (w *Watcher) handleAutoHedge(ctx context.Context, args []string) []telegram.Reply {
	if len(args) < 2 {
		return text("Usage: /auto_hedge <asset> <rebalance_interval_minutes>")
	}
	asset := models.NormalizeAsset(args[0])
	interval, err := strconv.Atoi(args[1])
	if err != nil {
		return text("Please provide a valid integer interval.")
	}
	if err := w.store.UpsertAutoHedge(ctx, asset, interval); err != nil {
		return text(fmt.Sprintf("Could not enable auto hedge for %s: %v", asset, err))
	}
	return text(fmt.Sprintf("Auto hedge for %s enabled.\nInterval: %d minutes.", asset, interval))
}

func (w *Watcher) handleHedgeStatus(ctx context.Context, args []string) []telegram.Reply {
	if len(args) < 1 {
		return text("Usage: /hedge_status <asset>")
	}
	asset := models.NormalizeAsset(args[0])
	c, err := w.store.GetAutoHedgeConfig(ctx, asset)
	if errors.Is(err, models.ErrNotFound) {
		return text(fmt.Sprintf("No auto hedge data found for %s.", asset))
	}
	if err != nil {
		log.Error().Err(err).Str("asset", asset).Msg("Hedge status failed")
		return text("Failed to fetch hedge status.")
	}
	return []telegram.Reply{{
		Text: fmt.Sprintf("Auto Hedge Status for %s:\n\n• Rebalance Interval: %d min\n• Last Hedge Amount: %s\n• Last Hedge Time: %s",
			asset, c.RebalanceIntervalMinutes, usd(c.LastHedgeAmount), timestamp(c.LastHedgeTime)),
		Keyboard: [][]telegram.Button{{
			{Text: "Hedge Now", CallbackData: "hedge_now_" + asset},
			{Text: "Forecast Vol", CallbackData: "forecast_vol_" + asset},
		}},
	}}
}

func (w *Watcher) handleHedgeHistory(ctx context.Context, args []string) []telegram.Reply {
	if len(args) < 1 {
		return text("Usage: /hedge_history <asset>")
	}
	asset := models.NormalizeAsset(args[0])
	c, err := w.store.GetAutoHedgeConfig(ctx, asset)
	if errors.Is(err, models.ErrNotFound) {
		return text(fmt.Sprintf("No hedge history found for %s.", asset))
	}
	if err != nil {
		return text("Error fetching hedge history.")
	}
	// Only the latest hedge is stored per asset.
	return text(fmt.Sprintf("Hedge History for %s:\n\n• Interval: %d min, Amount: %s, Time: %s\n",
		asset, c.RebalanceIntervalMinutes, usd(c.LastHedgeAmount), timestamp(c.LastHedgeTime)))
}

func (w *Watcher) hedgeNowReply(ctx context.Context, asset, venue string) []telegram.Reply {
	if venue != "" && !w.knownVenue(venue) {
		return text(fmt.Sprintf("Unknown exchange %s. Available: %s", venue, strings.Join(w.market.Venues(), ", ")))
	}
	s, err := w.HedgeNow(ctx, asset, venue)
	switch {
	case errors.Is(err, models.ErrNotMonitored):
		return text(fmt.Sprintf("No monitored position found for %s", models.NormalizeAsset(asset)))
	case err != nil:
		log.Error().Err(err).Str("asset", asset).Msg("Hedge now failed")
		return text("Error processing hedge request. Please try again.")
	}
	return text(fmt.Sprintf("Hedge Suggestion for %s on %s:\n\n"+
		"Spot Position Size: %s %s\n"+
		"Best Ask Price: %s\n"+
		"Recommended Short (Perp): %s %s\n"+
		"Estimated Hedge Cost: %s",
		s.Asset, strings.ToUpper(s.Venue), qty(s.PositionSize), s.Asset, usd(s.BestAsk),
		qty(s.ShortSize), s.Asset, usd(s.HedgeCost)))
}

func (w *Watcher) knownVenue(venue string) bool {
	for _, v := range w.market.Venues() {
		if strings.EqualFold(v, venue) {
			return true
		}
	}
	return false
}

func (w *Watcher) handleHedgeOptions(ctx context.Context, args []string) []telegram.Reply {
	const usage = "Usage: /hedge_options <asset> <strategy>\nStrategies: protective_put, covered_call, collar"
	if len(args) < 2 {
		return text(usage)
	}
	strategy, err := ParseStrategy(args[1])
	if err != nil {
		return text(usage)
	}
	asset := models.NormalizeAsset(args[0])
	h, err := w.HedgeOptions(ctx, asset, strategy)
	switch {
	case errors.Is(err, models.ErrNotMonitored):
		return text(fmt.Sprintf("No monitored position found for %s", asset))
	case errors.Is(err, models.ErrNoSuitableOption):
		return text(fmt.Sprintf("No suitable options found for %s within 10 days.", asset))
	case err != nil:
		log.Error().Err(err).Str("asset", asset).Str("strategy", string(strategy)).Msg("Options hedge failed")
		return text("Error building options hedge. Please try again.")
	}
	return []telegram.Reply{optionsHedgeReply(h)}
}

func legLine(l *OptionLeg) string {
	return fmt.Sprintf("%s (Strike: %s, Expiry: %s, Premium: %s)",
		l.Contract.Symbol, qty(l.Contract.Strike), l.Contract.Expiry.UTC().Format("2006-01-02"), usd(l.Premium))
}

func optionsHedgeReply(h OptionsHedge) telegram.Reply {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hedging Strategy: %s for %s\n\n", h.Strategy.Title(), h.Asset))
	sb.WriteString(fmt.Sprintf("Spot Price: %s\nPosition Size: %s %s\n\n", usd(h.Spot), qty(h.PositionSize), h.Asset))

	buyPut := telegram.Button{Text: "Buy Put", CallbackData: "options_hedge_buy_put_" + h.Asset}
	sellCall := telegram.Button{Text: "Sell Call", CallbackData: "options_hedge_sell_call_" + h.Asset}
	var row []telegram.Button

	switch h.Strategy {
	case ProtectivePut:
		sb.WriteString("Protective Put:\n• " + legLine(h.Put) + "\n")
		sb.WriteString("• Cost: " + usd(h.Total))
		row = []telegram.Button{buyPut}
	case CoveredCall:
		sb.WriteString("Covered Call:\n• " + legLine(h.Call) + "\n")
		sb.WriteString("• Income: " + usd(h.Total))
		row = []telegram.Button{sellCall}
	case Collar:
		sb.WriteString("Collar Strategy:\n")
		sb.WriteString("• Long Put: " + legLine(h.Put) + "\n")
		sb.WriteString("• Short Call: " + legLine(h.Call) + "\n")
		sb.WriteString("• Net Cost per Unit: " + usd(h.NetPremium) + "\n")
		sb.WriteString("• Total Cost: " + usd(h.Total))
		row = []telegram.Button{buyPut, sellCall}
	}
	return telegram.Reply{Text: sb.String(), Keyboard: [][]telegram.Button{row}}
}

func (w *Watcher) handleGreeks(ctx context.Context, args []string) []telegram.Reply {
	const usage = "Usage: /greeks <asset> <call/put> <strike> <expiry_days> <volatility_decimal>\nExample: /greeks BTC call 60000 30 0.5"
	if len(args) < 5 {
		return text(usage)
	}
	asset := models.NormalizeAsset(args[0])
	kind, err := models.ParseOptionType(args[1])
	if err != nil {
		return text(usage)
	}
	strike, err1 := strconv.ParseFloat(args[2], 64)
	days, err2 := strconv.Atoi(args[3])
	vol, err3 := strconv.ParseFloat(args[4], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return text(usage)
	}

	spot, err := w.market.Price(ctx, asset, w.venue())
	if err != nil {
		log.Error().Err(err).Str("asset", asset).Msg("Greeks spot fetch failed")
		return text("Failed to calculate Greeks. Please check your input.")
	}
	g := greeks.Compute(kind, spot, strike, float64(days)/365, w.config.RiskFreeRate, vol)
	return text(fmt.Sprintf("Greeks for %s %s option:\n\n"+
		"Spot Price: %s\nStrike: %s\nExpiry: %d days\nVolatility: %s%%\n\n"+
		"Δ Delta: %s\nΓ Gamma: %s\nν Vega: %s\nΘ Theta: %s",
		asset, kind, usd(spot), usd(strike), days, fixed(vol*100, 2),
		fixed(g.Delta, 4), fixed(g.Gamma, 4), fixed(g.Vega, 4), fixed(g.Theta, 4)))
}

func (w *Watcher) handlePnL(ctx context.Context, args []string) []telegram.Reply {
	if len(args) > 0 {
		days, err := strconv.Atoi(args[0])
		if err != nil || days < 1 {
			return text("Usage: /pnl_report [days]")
		}
		r, err := w.analytics.PortfolioPnL(ctx, days)
		return analysisReply("P&L", pnlReport(r), err)
	}
	r, err := w.analytics.PortfolioValue(ctx)
	if err == nil && len(r.Assets) == 0 && len(r.Skipped) == 0 {
		return text("No monitored positions for PnL calculation.")
	}
	return analysisReply("P&L", valueReport(r), err)
}

func (w *Watcher) predictReply(ctx context.Context, asset string) []telegram.Reply {
	asset = models.NormalizeAsset(asset)
	p, err := w.predictor.Predict(ctx, asset)
	if err != nil {
		log.Error().Err(err).Str("asset", asset).Msg("Hedge timing prediction failed")
		return text("Error predicting hedge timing.")
	}
	return text(predictionReport(asset, p, w.predictor.EffectiveThreshold()))
}

func (w *Watcher) handleForecast(ctx context.Context, args []string) []telegram.Reply {
	if len(args) < 1 {
		return text("Usage: /forecast_volatility <asset> [steps_ahead]")
	}
	steps := 10
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return text("Usage: /forecast_volatility <asset> [steps_ahead]")
		}
		steps = n
	}
	return w.forecastReply(ctx, args[0], steps)
}

func (w *Watcher) forecastReply(ctx context.Context, asset string, steps int) []telegram.Reply {
	asset = models.NormalizeAsset(asset)
	closes, err := w.predictor.History(ctx, asset)
	if err != nil {
		log.Error().Err(err).Str("asset", asset).Msg("Volatility history fetch failed")
		return text(fmt.Sprintf("Error forecasting volatility for %s.", asset))
	}
	p, err := volatility.PredictHedgeTiming(closes, steps, w.predictor.EffectiveThreshold())
	if err != nil {
		log.Error().Err(err).Str("asset", asset).Msg("Volatility forecast failed")
		return text(fmt.Sprintf("Error forecasting volatility for %s.", asset))
	}

	var realized []float64
	if rets, err := volatility.LogReturns(closes); err == nil {
		// LogReturns is in percent, RealizedVol takes raw log returns.
		for i := range rets {
			rets[i] /= 100
		}
		realized, _ = volatility.RealizedVol(rets, 24)
	}
	return text(forecastReport(asset, p, realized))
}

func (w *Watcher) priceReply(ctx context.Context, asset string) []telegram.Reply {
	asset = models.NormalizeAsset(asset)
	price, err := w.market.Price(ctx, asset, w.venue())
	if err != nil {
		log.Error().Err(err).Str("asset", asset).Msg("Price fetch failed")
		return text("Failed to fetch price.")
	}
	return text(fmt.Sprintf("Current Price of %s on %s:\n\n%s", asset, strings.ToUpper(w.venue()), usd(price)))
}

func (w *Watcher) handleShowDB(ctx context.Context) []telegram.Reply {
	positions, err := w.store.ListMonitoredPositions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Show positions failed")
		return text("Failed to retrieve DB records.")
	}
	if len(positions) == 0 {
		return text("No records in the database.")
	}
	out := make([]telegram.Reply, 0, len(positions))
	for _, p := range positions {
		out = append(out, telegram.Reply{
			Text: fmt.Sprintf("Asset: %s\n• Size: %s\n• Risk Threshold: %s%%", p.Asset, qty(p.PositionSize), qty(p.RiskThresholdPct)),
			Keyboard: [][]telegram.Button{
				{
					{Text: "Hedge Now", CallbackData: "hedge_now_" + p.Asset},
					{Text: "Forecast Vol", CallbackData: "forecast_vol_" + p.Asset},
				},
				{{Text: "Delete", CallbackData: "delete_asset_" + p.Asset}},
			},
		})
	}
	return out
}
