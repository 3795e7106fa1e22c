package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hedge_watcher/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultDBPath matches the historical database location.
const DefaultDBPath = "db/perpetuals.db"

type positionRow struct {
	ID            uint    `gorm:"primaryKey;autoIncrement"`
	Asset         string  `gorm:"not null;uniqueIndex"`
	PositionSize  float64 `gorm:"not null"`
	RiskThreshold float64 `gorm:"not null"`
}

func (positionRow) TableName() string { return "monitored_positions" }

type autoHedgeRow struct {
	Asset             string  `gorm:"primaryKey"`
	RebalanceInterval int     `gorm:"not null"`
	LastHedgeAmount   float64 `gorm:"not null;default:0"`
	LastHedgeTime     *int64
}

func (autoHedgeRow) TableName() string { return "auto_hedges" }

// SQLStore persists positions in sqlite through gorm.
type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

// OpenSQLStore opens (creating if needed) the sqlite database at path and
// migrates the schema.
func OpenSQLStore(path string) (*SQLStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&positionRow{}, &autoHedgeRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	abs, _ := filepath.Abs(path)
	log.Info().Str("path", abs).Msg("Position store opened")
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) ListMonitoredPositions(ctx context.Context) ([]models.MonitoredPosition, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list monitored positions: %w", err)
	}
	out := make([]models.MonitoredPosition, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.MonitoredPosition{
			Asset:            r.Asset,
			PositionSize:     r.PositionSize,
			RiskThresholdPct: r.RiskThreshold,
		})
	}
	return out, nil
}

func (s *SQLStore) ListAutoHedgeConfigs(ctx context.Context) ([]models.AutoHedgeConfig, error) {
	var rows []autoHedgeRow
	if err := s.db.WithContext(ctx).Order("asset").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list auto hedges: %w", err)
	}
	out := make([]models.AutoHedgeConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) GetPositionSize(ctx context.Context, asset string) (float64, error) {
	asset = models.NormalizeAsset(asset)
	var row positionRow
	err := s.db.WithContext(ctx).Where("asset = ?", asset).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("position %s: %w", asset, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get position %s: %w", asset, err)
	}
	return row.PositionSize, nil
}

func (s *SQLStore) UpdateHedgeState(ctx context.Context, asset string, amount float64, at time.Time) error {
	asset = models.NormalizeAsset(asset)
	ts := at.Unix()
	res := s.db.WithContext(ctx).Model(&autoHedgeRow{}).
		Where("asset = ?", asset).
		Updates(map[string]interface{}{
			"last_hedge_amount": amount,
			"last_hedge_time":   ts,
		})
	if res.Error != nil {
		return fmt.Errorf("update hedge state %s: %w", asset, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("auto hedge %s: %w", asset, models.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) UpsertMonitoredPosition(ctx context.Context, p models.MonitoredPosition) error {
	p.Asset = models.NormalizeAsset(p.Asset)
	if err := validatePosition(p); err != nil {
		return err
	}
	row := positionRow{Asset: p.Asset, PositionSize: p.PositionSize, RiskThreshold: p.RiskThresholdPct}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{"position_size", "risk_threshold"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.Asset, err)
	}
	return nil
}

func (s *SQLStore) UpsertAutoHedge(ctx context.Context, asset string, intervalMinutes int) error {
	asset = models.NormalizeAsset(asset)
	if err := validateInterval(asset, intervalMinutes); err != nil {
		return err
	}
	row := autoHedgeRow{Asset: asset, RebalanceInterval: intervalMinutes}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{"rebalance_interval"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert auto hedge %s: %w", asset, err)
	}
	return nil
}

func (s *SQLStore) GetAutoHedgeConfig(ctx context.Context, asset string) (models.AutoHedgeConfig, error) {
	asset = models.NormalizeAsset(asset)
	var row autoHedgeRow
	err := s.db.WithContext(ctx).Where("asset = ?", asset).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AutoHedgeConfig{}, fmt.Errorf("auto hedge %s: %w", asset, models.ErrNotFound)
	}
	if err != nil {
		return models.AutoHedgeConfig{}, fmt.Errorf("get auto hedge %s: %w", asset, err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) DeleteAllMonitoredPositions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&positionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete positions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *SQLStore) DeleteMonitoredPosition(ctx context.Context, asset string) error {
	asset = models.NormalizeAsset(asset)
	res := s.db.WithContext(ctx).Where("asset = ?", asset).Delete(&positionRow{})
	if res.Error != nil {
		return fmt.Errorf("delete position %s: %w", asset, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("position %s: %w", asset, models.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) PruneOrphanAutoHedges(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("asset NOT IN (?)", s.db.Model(&positionRow{}).Select("asset")).
		Delete(&autoHedgeRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune auto hedges: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r autoHedgeRow) toModel() models.AutoHedgeConfig {
	cfg := models.AutoHedgeConfig{
		Asset:                    r.Asset,
		RebalanceIntervalMinutes: r.RebalanceInterval,
		LastHedgeAmount:          r.LastHedgeAmount,
	}
	if r.LastHedgeTime != nil {
		t := time.Unix(*r.LastHedgeTime, 0).UTC()
		cfg.LastHedgeTime = &t
	}
	return cfg
}
