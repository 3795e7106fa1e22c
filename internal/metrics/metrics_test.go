package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hedge_watcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveCycle("exposure", 20*time.Millisecond, nil)
	m.ObserveCycle("exposure", 20*time.Millisecond, errors.New("boom"))
	m.AssetFailure("exposure", fmt.Errorf("BTC: %w", models.ErrDataUnavailable))
	m.Alert(models.KindRiskBreach)
	m.Suppressed(models.KindRiskBreach)
	m.Suppressed(models.KindRiskBreach)
	m.LedgerSize(models.KindRebalanceSuggested, 3)

	out := scrape(t, m)
	assert.Contains(t, out, `hedge_watcher_cycles_total{loop="exposure",outcome="ok"} 1`)
	assert.Contains(t, out, `hedge_watcher_cycles_total{loop="exposure",outcome="error"} 1`)
	assert.Contains(t, out, `hedge_watcher_cycle_duration_seconds_count{loop="exposure"} 2`)
	assert.Contains(t, out, `hedge_watcher_asset_failures_total{kind="data_unavailable",loop="exposure"} 1`)
	assert.Contains(t, out, `hedge_watcher_alerts_total{kind="risk_breach"} 1`)
	assert.Contains(t, out, `hedge_watcher_alerts_suppressed_total{kind="risk_breach"} 2`)
	assert.Contains(t, out, `hedge_watcher_ledger_size{kind="rebalance_suggested"} 3`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(":0", m).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle("x", time.Second, nil)
		m.AssetFailure("x", nil)
		m.Alert(models.KindRiskBreach)
		m.Suppressed(models.KindRiskBreach)
		m.LedgerSize(models.KindRiskBreach, 1)
	})
}

func TestServer_Routes(t *testing.T) {
	m := New()
	m.Alert(models.KindRiskBreach)
	srv := httptest.NewServer(NewServer(":0", m).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hedge_watcher_alerts_total{kind="risk_breach"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
