package metric

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/errors"
)

func gatheredNames(t *testing.T, r *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetricsRegistry_RegisterKinds(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "c"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "g"})
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counter_vec", Help: "cv"}, []string{"type"})
	histVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist_vec", Help: "hv"}, []string{"method"})
	summary := prometheus.NewSummary(prometheus.SummaryOpts{Name: "test_summary", Help: "s"})

	require.NoError(t, registry.RegisterCounter("svc", "counter", counter))
	require.NoError(t, registry.RegisterGauge("svc", "gauge", gauge))
	require.NoError(t, registry.RegisterCounterVec("svc", "counter_vec", counterVec))
	require.NoError(t, registry.RegisterHistogramVec("svc", "hist_vec", histVec))
	require.NoError(t, registry.Register("svc", "summary", summary))

	counter.Inc()
	gauge.Set(3)
	counterVec.WithLabelValues("PinToggled").Inc()
	histVec.WithLabelValues("SendPinToggled").Observe(0.01)
	summary.Observe(1)

	names := gatheredNames(t, registry)
	for _, n := range []string{"test_counter", "test_gauge", "test_counter_vec", "test_hist_vec", "test_summary"} {
		assert.True(t, names[n], "%s should be registered", n)
	}
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "dup"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "dup"})

	require.NoError(t, registry.RegisterCounter("hub", "dup_counter", first))

	err := registry.RegisterCounter("hub", "dup_counter", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")

	err = registry.RegisterCounter("agent", "dup_counter", second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	const n = 10
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", id),
				Help: "concurrent",
			})
			c.Inc()
			assert.NoError(t, registry.RegisterCounter("svc", fmt.Sprintf("c%d", id), c))
		}(i)
	}
	wg.Wait()

	count := 0
	for name := range gatheredNames(t, registry) {
		if strings.HasPrefix(name, "concurrent_counter_") {
			count++
		}
	}
	assert.Equal(t, n, count)
}

func TestProcessMetrics(t *testing.T) {
	registry := NewMetricsRegistry()
	p := registry.Process()
	require.NotNil(t, p)

	p.SetHealth("hub", 2)
	p.SetHealth("mirror", 0)
	p.SetNATSConnected(true)
	p.CountNATSReconnect()

	assert.Equal(t, float64(2), testutil.ToFloat64(p.health.WithLabelValues("hub")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.natsConnected))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.natsReconnects))

	p.ForgetHealth("mirror")
	assert.Equal(t, 1, testutil.CollectAndCount(p.health))

	names := gatheredNames(t, registry)
	for _, n := range []string{
		"alusync_health_state",
		"alusync_mirror_nats_connected",
		"alusync_mirror_nats_reconnects_total",
		"go_goroutines",
	} {
		assert.True(t, names[n], "metric %s should be present", n)
	}
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.Process().SetHealth("hub", 2)

	srv := NewServer(0, "", registry)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "alusync_health_state")
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(0, "/m", NewMetricsRegistry())
	srv.port = 0 // NewServer substitutes 9090 for zero; force an ephemeral bind
	require.NoError(t, srv.Start())

	err := srv.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)

	resp, err := http.Get(srv.Address())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))
}
