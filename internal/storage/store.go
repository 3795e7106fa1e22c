package storage

import (
	"context"
	"fmt"
	"time"

	"hedge_watcher/internal/models"
)

// Store is the Position Store: monitored positions and auto-hedge configs
// keyed by uppercase asset, with atomic read/update-by-key semantics.
type Store interface {
	ListMonitoredPositions(ctx context.Context) ([]models.MonitoredPosition, error)
	ListAutoHedgeConfigs(ctx context.Context) ([]models.AutoHedgeConfig, error)
	GetPositionSize(ctx context.Context, asset string) (float64, error)
	UpdateHedgeState(ctx context.Context, asset string, amount float64, at time.Time) error

	UpsertMonitoredPosition(ctx context.Context, p models.MonitoredPosition) error
	UpsertAutoHedge(ctx context.Context, asset string, intervalMinutes int) error
	GetAutoHedgeConfig(ctx context.Context, asset string) (models.AutoHedgeConfig, error)
	DeleteMonitoredPosition(ctx context.Context, asset string) error
	DeleteAllMonitoredPositions(ctx context.Context) (int64, error)
	PruneOrphanAutoHedges(ctx context.Context) (int64, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	DBPath    string
	StateFile string
}

// Open returns the configured Store.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		return OpenSQLStore(opts.DBPath)
	case BackendJSON:
		return OpenFileStore(opts.StateFile)
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}

func validatePosition(p models.MonitoredPosition) error {
	if p.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	if p.PositionSize == 0 {
		return fmt.Errorf("%s: position size must be nonzero", p.Asset)
	}
	return nil
}

func validateInterval(asset string, minutes int) error {
	if asset == "" {
		return fmt.Errorf("asset is required")
	}
	if minutes < 1 {
		return fmt.Errorf("%s: rebalance interval must be >= 1 minute", asset)
	}
	return nil
}
