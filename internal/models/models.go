package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MonitoredPosition is a spot position watched for exposure breaches.
//
// Asset is the uppercase symbol and the unique key. PositionSize may be long
// (positive) or short (negative). RiskThresholdPct is a percentage of
// exposure; values above 100 are legal and mean "never alert".
type MonitoredPosition struct {
	Asset            string  `json:"asset"`
	PositionSize     float64 `json:"position_size"`
	RiskThresholdPct float64 `json:"risk_threshold"`
}

// AutoHedgeConfig tracks the auto-hedge state of one asset.
// Only the auto-hedge loop mutates LastHedgeAmount and LastHedgeTime.
type AutoHedgeConfig struct {
	Asset                    string     `json:"asset"`
	RebalanceIntervalMinutes int        `json:"rebalance_interval"`
	LastHedgeAmount          float64    `json:"last_hedge_amount"`
	LastHedgeTime            *time.Time `json:"-"`
}

// autoHedgeJSON is the stored form: last_hedge_time is integer unix seconds,
// the same column type the sqlite table uses.
type autoHedgeJSON struct {
	Asset                    string          `json:"asset"`
	RebalanceIntervalMinutes int             `json:"rebalance_interval"`
	LastHedgeAmount          float64         `json:"last_hedge_amount"`
	LastHedgeTime            json.RawMessage `json:"last_hedge_time,omitempty"`
}

func (c AutoHedgeConfig) MarshalJSON() ([]byte, error) {
	doc := autoHedgeJSON{
		Asset:                    c.Asset,
		RebalanceIntervalMinutes: c.RebalanceIntervalMinutes,
		LastHedgeAmount:          c.LastHedgeAmount,
	}
	if c.LastHedgeTime != nil {
		doc.LastHedgeTime = json.RawMessage(fmt.Sprintf("%d", c.LastHedgeTime.Unix()))
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads unix seconds and, for documents written before
// schema 1.2, an RFC3339 string.
func (c *AutoHedgeConfig) UnmarshalJSON(b []byte) error {
	var doc autoHedgeJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*c = AutoHedgeConfig{
		Asset:                    doc.Asset,
		RebalanceIntervalMinutes: doc.RebalanceIntervalMinutes,
		LastHedgeAmount:          doc.LastHedgeAmount,
	}
	if len(doc.LastHedgeTime) == 0 || string(doc.LastHedgeTime) == "null" {
		return nil
	}
	var secs int64
	if err := json.Unmarshal(doc.LastHedgeTime, &secs); err == nil {
		t := time.Unix(secs, 0).UTC()
		c.LastHedgeTime = &t
		return nil
	}
	var legacy time.Time
	if err := json.Unmarshal(doc.LastHedgeTime, &legacy); err != nil {
		return fmt.Errorf("last_hedge_time %s: %w", doc.LastHedgeTime, err)
	}
	t := time.Unix(legacy.Unix(), 0).UTC()
	c.LastHedgeTime = &t
	return nil
}

// NormalizeAsset returns the canonical (trimmed, uppercase) symbol.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// PortfolioState is the document persisted by the file-backed store.
type PortfolioState struct {
	Version    string              `json:"version"`
	LastSync   string              `json:"last_sync"`
	Positions  []MonitoredPosition `json:"positions"`
	AutoHedges []AutoHedgeConfig   `json:"auto_hedges"`
}
