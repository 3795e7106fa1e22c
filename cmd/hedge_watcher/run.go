package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"hedge_watcher/internal/analytics"
	"hedge_watcher/internal/metrics"
	"hedge_watcher/internal/scheduler"
	"hedge_watcher/internal/telegram"
	"hedge_watcher/internal/watcher"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor loops, the Telegram bot and the metrics endpoint",
	RunE:  runWatcher,
}

var runNoMetrics bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoMetrics, "no-metrics", false, "do not serve /metrics and /healthz")
}

func runWatcher(cmd *cobra.Command, _ []string) error {
	cfg, rot := setup()
	defer rot.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	gw, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	bot := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID)
	w := watcher.New(cfg, watcher.Deps{
		Store:     store,
		Market:    gw,
		Analytics: analytics.NewEngine(store, gw, analyticsConfig(cfg)),
		Predictor: newPredictor(cfg, gw),
		Notifier:  bot,
		Metrics:   m,
	})
	if err := w.Bootstrap(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, l := range w.Loops(scheduler.SystemClock{}) {
		wg.Add(1)
		go func(l *scheduler.Loop) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		telegram.NewListener(bot, w.HandleCommand, w.HandleCallback).Run(ctx)
	}()

	if !runNoMetrics && cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := metrics.NewServer(cfg.MetricsAddr, m)
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server stopped")
			}
		}()
	}

	log.Info().Str("version", readVersion()).Str("venue", gw.DefaultVenue()).
		Strs("venues", gw.Venues()).Str("store", cfg.StoreBackend).
		Dur("exposure_interval", cfg.ExposureInterval).Dur("auto_hedge_interval", cfg.AutoHedgeInterval).
		Msg("Hedge watcher initialized")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, waiting for loops")
	wg.Wait()
	log.Info().Msg("Hedge watcher stopped")
	return nil
}
