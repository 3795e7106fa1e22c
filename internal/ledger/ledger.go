// Package ledger gates notifications so that one logical event alerts at most
// once per process lifetime.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"hedge_watcher/internal/models"

	"github.com/shopspring/decimal"
)

// ExactPrecision keeps the full shortest decimal form of each value.
const ExactPrecision = -1

// Ledger is an append-only set of alert fingerprints for one event kind.
// It is safe for concurrent use.
type Ledger struct {
	kind      models.EventKind
	precision int32

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a ledger for kind. Values are rounded to precision decimal
// places before fingerprinting; ExactPrecision disables rounding.
func New(kind models.EventKind, precision int32) *Ledger {
	return &Ledger{
		kind:      kind,
		precision: precision,
		seen:      make(map[string]struct{}),
	}
}

// Kind returns the event kind this ledger deduplicates.
func (l *Ledger) Kind() models.EventKind { return l.kind }

// Fingerprint returns the deterministic digest of (kind, ASSET, values).
func (l *Ledger) Fingerprint(asset string, values ...float64) string {
	parts := make([]string, 0, len(values)+2)
	parts = append(parts, string(l.kind), models.NormalizeAsset(asset))
	for _, v := range values {
		d := decimal.NewFromFloat(v)
		if l.precision != ExactPrecision {
			d = d.Round(l.precision)
		}
		parts = append(parts, d.String())
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "_")))
	return hex.EncodeToString(sum[:])
}

// ShouldNotify reports whether the event has not been recorded yet.
// It does not record; call RecordNotified after dispatching.
func (l *Ledger) ShouldNotify(asset string, values ...float64) bool {
	fp := l.Fingerprint(asset, values...)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, dup := l.seen[fp]
	return !dup
}

// RecordNotified marks the event as delivered.
func (l *Ledger) RecordNotified(asset string, values ...float64) {
	fp := l.Fingerprint(asset, values...)
	l.mu.Lock()
	l.seen[fp] = struct{}{}
	l.mu.Unlock()
}

// Claim atomically checks and records the event. It returns true for the
// first caller only, for loops that fan out per asset.
func (l *Ledger) Claim(asset string, values ...float64) bool {
	fp := l.Fingerprint(asset, values...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.seen[fp]; dup {
		return false
	}
	l.seen[fp] = struct{}{}
	return true
}

// Len returns the number of recorded fingerprints.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// EngineState owns the two fingerprint namespaces of one engine instance.
type EngineState struct {
	// Breaches is keyed by (asset, size, threshold): the alerted setup, at
	// full precision so sub-cent size changes count as a new setup.
	Breaches *Ledger
	// Hedges is keyed by (asset, hedge cost rounded to cents).
	Hedges *Ledger
}

// NewEngineState returns empty ledgers for both monitor loops.
func NewEngineState() *EngineState {
	return &EngineState{
		Breaches: New(models.KindRiskBreach, ExactPrecision),
		Hedges:   New(models.KindRebalanceSuggested, 2),
	}
}
