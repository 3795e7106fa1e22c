package main

import (
	"fmt"
	"strconv"

	"hedge_watcher/internal/analytics"
	"hedge_watcher/internal/greeks"
	"hedge_watcher/internal/models"
	"hedge_watcher/internal/watcher"

	"github.com/spf13/cobra"
)

var greeksCmd = &cobra.Command{
	Use:   "greeks <call|put> <spot> <strike> <expiry_days> <volatility>",
	Short: "Black-Scholes Greeks for a European option, no network access",
	Example: `  hedge_watcher greeks call 60000 60000 30 0.5
  hedge_watcher greeks put 3000 2800 7 0.65 --rate 0.04`,
	Args: cobra.ExactArgs(5),
	RunE: runGreeks,
}

var greeksRate float64

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the portfolio risk report for the monitored positions",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(greeksCmd, reportCmd)
	greeksCmd.Flags().Float64Var(&greeksRate, "rate", 0.05, "annual risk-free rate")
}

func runGreeks(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseOptionType(args[0])
	if err != nil {
		return err
	}
	vals := make([]float64, 4)
	for i, a := range args[1:] {
		if vals[i], err = strconv.ParseFloat(a, 64); err != nil {
			return fmt.Errorf("argument %d (%q): %w", i+2, a, err)
		}
	}
	spot, strike, days, vol := vals[0], vals[1], vals[2], vals[3]
	if spot <= 0 || strike <= 0 || days <= 0 || vol <= 0 {
		return fmt.Errorf("spot, strike, expiry_days and volatility must be positive")
	}

	g := greeks.Compute(kind, spot, strike, days/365, greeksRate, vol)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s S=%.2f K=%.2f T=%.0fd sigma=%.4f r=%.4f\n", kind, spot, strike, days, vol, greeksRate)
	fmt.Fprintf(out, "Delta: %.4f\nGamma: %.6f\nVega:  %.4f\nTheta: %.4f\n", g.Delta, g.Gamma, g.Vega, g.Theta)
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, rot := setup()
	defer rot.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	gw, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	w := watcher.New(cfg, watcher.Deps{
		Store:     store,
		Market:    gw,
		Analytics: analytics.NewEngine(store, gw, analyticsConfig(cfg)),
		Predictor: newPredictor(cfg, gw),
	})
	for _, section := range w.RiskReport(cmd.Context()) {
		fmt.Fprintln(cmd.OutOrStdout(), section)
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
