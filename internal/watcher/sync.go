package watcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Bootstrap reconciles the store before the loops start: auto-hedge configs
// whose position is gone are deleted.
func (w *Watcher) Bootstrap(ctx context.Context) error {
	pruned, err := w.store.PruneOrphanAutoHedges(ctx)
	if err != nil {
		return fmt.Errorf("prune orphan auto hedges: %w", err)
	}
	positions, err := w.store.ListMonitoredPositions(ctx)
	if err != nil {
		return fmt.Errorf("list monitored positions: %w", err)
	}
	configs, err := w.store.ListAutoHedgeConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list auto hedge configs: %w", err)
	}
	log.Info().Int64("pruned", pruned).Int("positions", len(positions)).
		Int("auto_hedges", len(configs)).Msg("Store reconciled")
	return nil
}
