package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hedge_watcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlStore, err := OpenSQLStore(filepath.Join(dir, "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	fileStore, err := OpenFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	return map[string]Store{"sqlite": sqlStore, "json": fileStore}
}

func TestStore_PositionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{
				Asset: "btc", PositionSize: 1.5, RiskThresholdPct: 5,
			}))
			require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{
				Asset: "ETH", PositionSize: -10, RiskThresholdPct: 150,
			}))
			// Upsert replaces by key.
			require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{
				Asset: "BTC", PositionSize: 2, RiskThresholdPct: 4,
			}))

			positions, err := s.ListMonitoredPositions(ctx)
			require.NoError(t, err)
			require.Len(t, positions, 2)
			assert.Equal(t, models.MonitoredPosition{Asset: "BTC", PositionSize: 2, RiskThresholdPct: 4}, positions[0])
			assert.Equal(t, -10.0, positions[1].PositionSize)

			size, err := s.GetPositionSize(ctx, "btc")
			require.NoError(t, err)
			assert.Equal(t, 2.0, size)

			_, err = s.GetPositionSize(ctx, "SOL")
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestStore_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{Asset: "BTC"}))
			assert.Error(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{PositionSize: 1}))
			assert.Error(t, s.UpsertAutoHedge(ctx, "BTC", 0))
		})
	}
}

func TestStore_HedgeStateLifecycle(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertAutoHedge(ctx, "btc", 15))

			cfg, err := s.GetAutoHedgeConfig(ctx, "BTC")
			require.NoError(t, err)
			assert.Equal(t, 15, cfg.RebalanceIntervalMinutes)
			assert.Zero(t, cfg.LastHedgeAmount)
			assert.Nil(t, cfg.LastHedgeTime)

			require.NoError(t, s.UpdateHedgeState(ctx, "BTC", 1010, at))

			// Interval changes must not reset hedge state.
			require.NoError(t, s.UpsertAutoHedge(ctx, "BTC", 30))

			configs, err := s.ListAutoHedgeConfigs(ctx)
			require.NoError(t, err)
			require.Len(t, configs, 1)
			assert.Equal(t, 30, configs[0].RebalanceIntervalMinutes)
			assert.Equal(t, 1010.0, configs[0].LastHedgeAmount)
			require.NotNil(t, configs[0].LastHedgeTime)
			assert.True(t, at.Equal(*configs[0].LastHedgeTime))

			err = s.UpdateHedgeState(ctx, "DOGE", 1, at)
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestStore_DeleteAndPrune(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{Asset: "BTC", PositionSize: 1, RiskThresholdPct: 5}))
			require.NoError(t, s.UpsertAutoHedge(ctx, "BTC", 10))
			require.NoError(t, s.UpsertAutoHedge(ctx, "ETH", 10))

			n, err := s.PruneOrphanAutoHedges(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = s.DeleteAllMonitoredPositions(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			positions, err := s.ListMonitoredPositions(ctx)
			require.NoError(t, err)
			assert.Empty(t, positions)

			n, err = s.PruneOrphanAutoHedges(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestStore_DeleteSinglePosition(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{Asset: "BTC", PositionSize: 1, RiskThresholdPct: 5}))
			require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{Asset: "ETH", PositionSize: 2, RiskThresholdPct: 5}))

			require.NoError(t, s.DeleteMonitoredPosition(ctx, "btc"))
			assert.ErrorIs(t, s.DeleteMonitoredPosition(ctx, "BTC"), models.ErrNotFound)

			positions, err := s.ListMonitoredPositions(ctx)
			require.NoError(t, err)
			require.Len(t, positions, 1)
			assert.Equal(t, "ETH", positions[0].Asset)
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{Asset: "SOL", PositionSize: 100, RiskThresholdPct: 10}))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	size, err := reopened.GetPositionSize(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, size)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestMigrateState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	legacyJSON := `{
		"version": "1.0",
		"positions": [
			{"asset": " btc ", "position_size": 1, "risk_threshold": 5}
		],
		"auto_hedges": [
			{"asset": "btc", "rebalance_interval": 0, "last_hedge_amount": 0}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacyJSON), 0o644))

	s, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, s.Version)
	require.Len(t, s.Positions, 1)
	assert.Equal(t, "BTC", s.Positions[0].Asset)
	require.Len(t, s.AutoHedges, 1)
	assert.Equal(t, "BTC", s.AutoHedges[0].Asset)
	assert.Equal(t, 1, s.AutoHedges[0].RebalanceIntervalMinutes)

	reloaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, reloaded.Version)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "mongo"})
	assert.Error(t, err)
}

func TestFileStore_LastHedgeTimeIsUnixSeconds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertMonitoredPosition(ctx, models.MonitoredPosition{Asset: "BTC", PositionSize: 1, RiskThresholdPct: 5}))
	require.NoError(t, s.UpsertAutoHedge(ctx, "BTC", 15))
	require.NoError(t, s.UpdateHedgeState(ctx, "BTC", 50100, at))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		AutoHedges []map[string]interface{} `json:"auto_hedges"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.AutoHedges, 1)
	assert.Equal(t, float64(at.Unix()), doc.AutoHedges[0]["last_hedge_time"])

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	c, err := reopened.GetAutoHedgeConfig(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, c.LastHedgeTime)
	assert.True(t, at.Equal(*c.LastHedgeTime))
}

func TestMigrateState_RFC3339HedgeTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacyJSON := `{
		"version": "1.1",
		"positions": [{"asset": "BTC", "position_size": 1, "risk_threshold": 5}],
		"auto_hedges": [
			{"asset": "BTC", "rebalance_interval": 15, "last_hedge_amount": 1000, "last_hedge_time": "2025-03-01T12:00:00Z"},
			{"asset": "ETH", "rebalance_interval": 5, "last_hedge_amount": 0}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacyJSON), 0o644))

	s, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2", s.Version)
	require.Len(t, s.AutoHedges, 2)
	require.NotNil(t, s.AutoHedges[0].LastHedgeTime)
	assert.Equal(t, int64(1740830400), s.AutoHedges[0].LastHedgeTime.Unix())
	assert.Nil(t, s.AutoHedges[1].LastHedgeTime)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last_hedge_time": 1740830400`)
	assert.NotContains(t, string(raw), "2025-03-01T12:00:00Z")
}
