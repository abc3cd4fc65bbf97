package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prometheusServer(t *testing.T, metricNames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/label/__name__/values" {
			http.NotFound(w, r)
			return
		}
		var quoted []string
		for _, name := range metricNames {
			quoted = append(quoted, `"`+name+`"`)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "success", "data": [` + strings.Join(quoted, ",") + `]}`))
	}))
}

func TestPrometheusMetricNames(t *testing.T) {
	srv := prometheusServer(t, []string{
		"kube_ovn_pinger_latency_ms",
		"kube_ovn_subnet_available_ip_count",
	})
	defer srv.Close()

	p, err := NewPrometheusClient(srv.URL, testLogger(t))
	require.NoError(t, err)
	names, err := p.MetricNames(context.Background())
	require.NoError(t, err)
	assert.True(t, names["kube_ovn_pinger_latency_ms"], "pinger metric should be present")
	assert.True(t, names["kube_ovn_subnet_available_ip_count"])
}

func TestPrometheusVerifyMetrics(t *testing.T) {
	srv := prometheusServer(t, []string{"kube_ovn_pinger_latency_ms"})
	defer srv.Close()

	p, err := NewPrometheusClient(srv.URL, testLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, p.VerifyMetrics(ctx, []string{"kube_ovn_pinger_latency_ms"}))

	err = p.VerifyMetrics(ctx, []string{"kube_ovn_cni_op_latency_ms"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kube_ovn_cni_op_latency_ms",
		"error should name the missing metric")
}

func TestExpectedMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.json")
	content := `["kube_ovn_pinger_latency_ms", "kube_ovn_subnet_used_ip_count"]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	names, err := ExpectedMetrics(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kube_ovn_pinger_latency_ms", "kube_ovn_subnet_used_ip_count"}, names)
}

func TestExpectedMetricsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	_, err := ExpectedMetrics(path)
	assert.Error(t, err, "an empty metrics list should be rejected")
	_, err = ExpectedMetrics(filepath.Join(dir, "missing.json"))
	assert.Error(t, err, "a missing metrics file should be rejected")
}
