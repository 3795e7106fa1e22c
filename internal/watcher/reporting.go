package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hedge_watcher/internal/analytics"
	"hedge_watcher/internal/models"
	"hedge_watcher/internal/volatility"

	"github.com/rs/zerolog/log"
)

func writeSkipped(sb *strings.Builder, skipped []models.AssetFailure) {
	if len(skipped) == 0 {
		return
	}
	names := make([]string, 0, len(skipped))
	for _, f := range skipped {
		names = append(names, fmt.Sprintf("%s (%s)", f.Asset, f.Kind()))
	}
	sb.WriteString("\nSkipped: " + strings.Join(names, ", ") + "\n")
}

func varReport(r analytics.VaRResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Historical VaR (%s%% confidence, %d samples):\n\n", fixed(r.Confidence*100, 0), r.Samples))
	for i, a := range r.Assets {
		sb.WriteString(fmt.Sprintf("• %s weight %s%%\n", a, fixed(r.Weights[i]*100, 2)))
	}
	sb.WriteString(fmt.Sprintf("\nTotal Exposure: %s\nValue at Risk: %s\n", usd(r.TotalExposure), usd(r.VaR)))
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func correlationReport(r analytics.CorrelationResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Return Correlation (%d samples):\n\n", r.Samples))
	for i, a := range r.Assets {
		for j := i + 1; j < len(r.Assets); j++ {
			sb.WriteString(fmt.Sprintf("• %s / %s: %s\n", a, r.Assets[j], fixed(r.Matrix[i][j], 2)))
		}
	}
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func drawdownReport(r analytics.DrawdownResult) string {
	var sb strings.Builder
	sb.WriteString("Max Drawdown:\n\n")
	for _, a := range r.Assets {
		sb.WriteString(fmt.Sprintf("• %s: %s%%\n", a.Asset, fixed(a.MaxDrawdownPct, 2)))
	}
	if r.Weighted {
		sb.WriteString(fmt.Sprintf("\nPortfolio (exposure weighted): %s%%\n", fixed(r.PortfolioPct, 2)))
	}
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func stressReport(r analytics.StressResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Stress Test (initial value %s):\n\n", usd(r.InitialValue)))
	for _, s := range r.Scenarios {
		sb.WriteString(fmt.Sprintf("• Shock %s%%: value %s, put delta P&L %s, loss %s%%\n",
			fixed(s.Shock*100, 0), usd(s.Value), usd(s.DeltaPnL), fixed(s.LossPct, 2)))
	}
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func greeksReport(r analytics.GreeksResult) string {
	var sb strings.Builder
	sb.WriteString("Portfolio Greeks (protective puts):\n\n")
	for _, a := range r.Assets {
		sb.WriteString(fmt.Sprintf("• %s via %s: Δ %s Γ %s ν %s Θ %s\n", a.Asset, a.Option.Symbol,
			fixed(a.Greeks.Delta, 4), fixed(a.Greeks.Gamma, 4), fixed(a.Greeks.Vega, 4), fixed(a.Greeks.Theta, 4)))
	}
	t := r.Total
	sb.WriteString(fmt.Sprintf("\nTotal: Δ %s Γ %s ν %s Θ %s\n",
		fixed(t.Delta, 4), fixed(t.Gamma, 4), fixed(t.Vega, 4), fixed(t.Theta, 4)))
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func valueReport(r analytics.ValueResult) string {
	var sb strings.Builder
	sb.WriteString("Portfolio PnL Report:\n\n")
	for _, a := range r.Assets {
		sb.WriteString(fmt.Sprintf("• %s: %s × %s = %s\n", a.Asset, usd(a.Price), qty(a.Size), usd(a.Value)))
	}
	sb.WriteString(fmt.Sprintf("\nTotal Portfolio Value: %s", usd(r.Total)))
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func pnlReport(r analytics.PnLResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("P&L over %d day(s):\n\n", r.Days))
	for _, a := range r.Assets {
		sb.WriteString(fmt.Sprintf("• %s: %s → %s, P&L %s\n", a.Asset, usd(a.PastPrice), usd(a.Price), usd(a.PnL)))
	}
	sb.WriteString(fmt.Sprintf("\nTotal P&L: %s", usd(r.Total)))
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func predictionReport(asset string, p volatility.Prediction, threshold float64) string {
	var sb strings.Builder
	yes := "No"
	if p.ShouldHedge {
		yes = "Yes"
	}
	sb.WriteString(fmt.Sprintf("Volatility Forecast for %s (next %dh):\n\n", asset, len(p.VolForecast)))
	sb.WriteString(fmt.Sprintf("High Volatility Hours (>%s%%): %d\n", fixed(threshold, 1), p.HighVolHours))
	sb.WriteString(fmt.Sprintf("Should Hedge Now? %s\n", yes))
	if len(p.HedgeHours) > 0 {
		hours := make([]string, len(p.HedgeHours))
		for i, h := range p.HedgeHours {
			hours[i] = fmt.Sprintf("%dh", h)
		}
		sb.WriteString("High-Volatility Expected At: " + strings.Join(hours, ", ") + "\n")
	}
	sb.WriteString(fmt.Sprintf("Recommended Hedge In ~%d hour(s)\n", p.RecommendedHour))
	sb.WriteString("\nForecasted Volatility:\n")
	sb.WriteString(percentList(p.VolForecast))
	return sb.String()
}

func forecastReport(asset string, p volatility.Prediction, realized []float64) string {
	var sb strings.Builder
	m := p.Model
	sb.WriteString(fmt.Sprintf("GARCH(1,1) for %s (hourly):\n\n", asset))
	sb.WriteString(fmt.Sprintf("ω %s  α %s  β %s  (persistence %s)\n",
		fixed(m.Omega, 4), fixed(m.Alpha, 4), fixed(m.Beta, 4), fixed(m.Persistence(), 4)))
	if n := len(realized); n > 0 {
		sb.WriteString(fmt.Sprintf("Realized Vol (24h window): %s%%\n", fixed(realized[n-1], 2)))
	}
	sb.WriteString(fmt.Sprintf("\nForecast (next %d steps):\n", len(p.VolForecast)))
	sb.WriteString(percentList(p.VolForecast))
	return sb.String()
}

func percentList(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fixed(v, 2) + "%"
	}
	return strings.Join(parts, ", ")
}

// RiskReport runs the five portfolio analyses concurrently and renders them
// as one message per analysis. A failed analysis renders its error.
func (w *Watcher) RiskReport(ctx context.Context) []string {
	type section struct {
		name string
		run  func() (string, error)
	}
	sections := []section{
		{"var", func() (string, error) {
			r, err := w.analytics.HistoricalVaR(ctx)
			return varReport(r), err
		}},
		{"correlation", func() (string, error) {
			r, err := w.analytics.CorrelationMatrix(ctx)
			return correlationReport(r), err
		}},
		{"drawdown", func() (string, error) {
			r, err := w.analytics.PortfolioMaxDrawdown(ctx)
			return drawdownReport(r), err
		}},
		{"stress", func() (string, error) {
			r, err := w.analytics.StressTest(ctx)
			return stressReport(r), err
		}},
		{"greeks", func() (string, error) {
			r, err := w.analytics.PortfolioGreeks(ctx)
			return greeksReport(r), err
		}},
	}

	out := make([]string, len(sections))
	var wg sync.WaitGroup
	for i, s := range sections {
		wg.Add(1)
		go func(i int, s section) {
			defer wg.Done()
			text, err := s.run()
			if err != nil {
				log.Warn().Err(err).Str("analysis", s.name).Msg("Risk report section failed")
				out[i] = fmt.Sprintf("%s: unavailable (%s)", s.name, models.ErrorKind(err))
				return
			}
			out[i] = text
		}(i, s)
	}
	wg.Wait()
	return out
}
