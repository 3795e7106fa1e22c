package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"hedge_watcher/internal/models"

	"github.com/rs/zerolog/log"
)

// DefaultStateFile is where the file-backed store keeps its document.
const DefaultStateFile = "hedge_state.json"

// CurrentVersion is the schema version written by SaveState.
const CurrentVersion = "1.2"

// FileStore keeps the whole portfolio in one JSON document and rewrites it
// atomically on every mutation.
type FileStore struct {
	path string

	mu    sync.Mutex
	state models.PortfolioState
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads (or creates) the state document at path.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultStateFile
	}
	s, err := LoadState(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, state: s}, nil
}

// LoadState reads the state document, writing a template when it is missing
// and migrating older versions in place.
func LoadState(path string) (models.PortfolioState, error) {
	var s models.PortfolioState

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("State file missing, generating template")
		s = models.PortfolioState{Version: CurrentVersion}
		if err := SaveState(path, s); err != nil {
			return s, err
		}
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("open state: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return s, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("decode state: %w", err)
	}

	if migrateState(&s) {
		log.Info().Str("version", s.Version).Msg("State migrated, saving")
		if err := SaveState(path, s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// migrateState reports whether s changed and needs saving.
func migrateState(s *models.PortfolioState) bool {
	updated := false

	// 1.0 -> 1.1: canonical asset keys, interval floor of one minute.
	if s.Version < "1.1" {
		log.Info().Msg("Migrating state schema from 1.0 to 1.1")
		for i := range s.Positions {
			s.Positions[i].Asset = models.NormalizeAsset(s.Positions[i].Asset)
		}
		for i := range s.AutoHedges {
			s.AutoHedges[i].Asset = models.NormalizeAsset(s.AutoHedges[i].Asset)
			if s.AutoHedges[i].RebalanceIntervalMinutes < 1 {
				s.AutoHedges[i].RebalanceIntervalMinutes = 1
			}
		}
		s.Version = "1.1"
		updated = true
	}

	// 1.1 -> 1.2: last_hedge_time as unix seconds. Decoding already accepted
	// the old RFC3339 strings; saving rewrites them.
	if s.Version < "1.2" {
		log.Info().Msg("Migrating state schema from 1.1 to 1.2")
		s.Version = "1.2"
		updated = true
	}

	return updated
}

// SaveState writes s with a tmp file, fsync and rename so readers never see
// a partial document.
func SaveState(path string, s models.PortfolioState) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpFile := path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp state: %w", err)
	}
	// Close before rename (required on Windows).
	f.Close()

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the state and persists it; on failure the
// in-memory state is left untouched.
func (s *FileStore) mutate(fn func(st *models.PortfolioState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneState(s.state)
	if err := fn(&next); err != nil {
		return err
	}
	next.LastSync = time.Now().UTC().Format(time.RFC3339)
	if err := SaveState(s.path, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *FileStore) ListMonitoredPositions(_ context.Context) ([]models.MonitoredPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MonitoredPosition(nil), s.state.Positions...), nil
}

func (s *FileStore) ListAutoHedgeConfigs(_ context.Context) ([]models.AutoHedgeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := cloneState(s.state).AutoHedges
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (s *FileStore) GetPositionSize(_ context.Context, asset string) (float64, error) {
	asset = models.NormalizeAsset(asset)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.Positions {
		if p.Asset == asset {
			return p.PositionSize, nil
		}
	}
	return 0, fmt.Errorf("position %s: %w", asset, models.ErrNotFound)
}

func (s *FileStore) UpdateHedgeState(_ context.Context, asset string, amount float64, at time.Time) error {
	asset = models.NormalizeAsset(asset)
	ts := time.Unix(at.Unix(), 0).UTC()
	return s.mutate(func(st *models.PortfolioState) error {
		for i := range st.AutoHedges {
			if st.AutoHedges[i].Asset == asset {
				st.AutoHedges[i].LastHedgeAmount = amount
				st.AutoHedges[i].LastHedgeTime = &ts
				return nil
			}
		}
		return fmt.Errorf("auto hedge %s: %w", asset, models.ErrNotFound)
	})
}

func (s *FileStore) UpsertMonitoredPosition(_ context.Context, p models.MonitoredPosition) error {
	p.Asset = models.NormalizeAsset(p.Asset)
	if err := validatePosition(p); err != nil {
		return err
	}
	return s.mutate(func(st *models.PortfolioState) error {
		for i := range st.Positions {
			if st.Positions[i].Asset == p.Asset {
				st.Positions[i] = p
				return nil
			}
		}
		st.Positions = append(st.Positions, p)
		return nil
	})
}

func (s *FileStore) UpsertAutoHedge(_ context.Context, asset string, intervalMinutes int) error {
	asset = models.NormalizeAsset(asset)
	if err := validateInterval(asset, intervalMinutes); err != nil {
		return err
	}
	return s.mutate(func(st *models.PortfolioState) error {
		for i := range st.AutoHedges {
			if st.AutoHedges[i].Asset == asset {
				st.AutoHedges[i].RebalanceIntervalMinutes = intervalMinutes
				return nil
			}
		}
		st.AutoHedges = append(st.AutoHedges, models.AutoHedgeConfig{
			Asset:                    asset,
			RebalanceIntervalMinutes: intervalMinutes,
		})
		return nil
	})
}

func (s *FileStore) GetAutoHedgeConfig(_ context.Context, asset string) (models.AutoHedgeConfig, error) {
	asset = models.NormalizeAsset(asset)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cloneState(s.state).AutoHedges {
		if c.Asset == asset {
			return c, nil
		}
	}
	return models.AutoHedgeConfig{}, fmt.Errorf("auto hedge %s: %w", asset, models.ErrNotFound)
}

func (s *FileStore) DeleteAllMonitoredPositions(_ context.Context) (int64, error) {
	var n int64
	err := s.mutate(func(st *models.PortfolioState) error {
		n = int64(len(st.Positions))
		st.Positions = nil
		return nil
	})
	return n, err
}

func (s *FileStore) DeleteMonitoredPosition(_ context.Context, asset string) error {
	asset = models.NormalizeAsset(asset)
	return s.mutate(func(st *models.PortfolioState) error {
		for i, p := range st.Positions {
			if p.Asset == asset {
				st.Positions = append(st.Positions[:i], st.Positions[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("position %s: %w", asset, models.ErrNotFound)
	})
}

func (s *FileStore) PruneOrphanAutoHedges(_ context.Context) (int64, error) {
	var n int64
	err := s.mutate(func(st *models.PortfolioState) error {
		monitored := make(map[string]bool, len(st.Positions))
		for _, p := range st.Positions {
			monitored[p.Asset] = true
		}
		kept := st.AutoHedges[:0]
		for _, c := range st.AutoHedges {
			if monitored[c.Asset] {
				kept = append(kept, c)
			} else {
				n++
			}
		}
		st.AutoHedges = kept
		return nil
	})
	return n, err
}

func (s *FileStore) Close() error { return nil }

func cloneState(s models.PortfolioState) models.PortfolioState {
	out := s
	out.Positions = append([]models.MonitoredPosition(nil), s.Positions...)
	out.AutoHedges = make([]models.AutoHedgeConfig, len(s.AutoHedges))
	for i, c := range s.AutoHedges {
		if c.LastHedgeTime != nil {
			t := *c.LastHedgeTime
			c.LastHedgeTime = &t
		}
		out.AutoHedges[i] = c
	}
	return out
}
