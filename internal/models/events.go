package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the notification emitted by a monitor loop.
type EventKind string

const (
	KindRiskBreach         EventKind = "risk_breach"
	KindRebalanceSuggested EventKind = "rebalance_suggested"
)

// RiskBreach is emitted by the exposure loop.
type RiskBreach struct {
	ID              string
	Asset           string
	PositionSize    float64
	Price           float64
	Exposure        float64
	AllowedExposure float64
	ThresholdPct    float64
	At              time.Time
}

// RebalanceSuggested is emitted by the auto-hedge loop.
type RebalanceSuggested struct {
	ID           string
	Asset        string
	SpotPrice    float64
	BestAsk      float64
	PositionSize float64
	HedgeCost    float64
	At           time.Time
}

// NewEventID returns a random identifier for log correlation.
func NewEventID() string {
	return uuid.NewString()
}
