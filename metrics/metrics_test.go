package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	// 不应 panic
	c.ObserveFetch("binance", time.Second, "")
	c.ObserveFetch("binance", time.Second, "network")
	c.ObserveCycle(time.Second)
	c.ObserveSnapshots("SOL/USDT", 3)
	c.ObserveOpportunity("SOL/USDT", 1.5)
}

func TestObserveFetchCounts(t *testing.T) {
	c := New(DefaultConfig())

	c.ObserveFetch("binance", 120*time.Millisecond, "")
	c.ObserveFetch("binance", 80*time.Millisecond, "")
	c.ObserveFetch("okx", 2*time.Second, "network")

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			key := fam.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetValue()
			}
			if m.GetCounter() != nil {
				got[key] = m.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, got["obm_monitor_fetches_total|binance"])
	assert.Equal(t, 1.0, got["obm_monitor_fetches_total|okx"])
	assert.Equal(t, 1.0, got["obm_monitor_fetch_errors_total|okx|network"])
}

func TestObserveOpportunitySetsGauge(t *testing.T) {
	c := New(DefaultConfig())
	c.ObserveOpportunity("SOL/USDT", 1.5)
	c.ObserveOpportunity("SOL/USDT", 2.25)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	var opportunities, spread float64
	for _, fam := range families {
		switch fam.GetName() {
		case "obm_monitor_opportunities_total":
			opportunities = fam.GetMetric()[0].GetCounter().GetValue()
		case "obm_monitor_last_spread_percent":
			spread = fam.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 2.0, opportunities)
	assert.Equal(t, 2.25, spread, "gauge 保留最近一次价差")
}

func TestHandlerServesMetrics(t *testing.T) {
	c := New(DefaultConfig())
	c.ObserveCycle(300 * time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "obm_monitor_cycles_total 1"), body)
}
