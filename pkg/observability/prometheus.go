package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// PrometheusClient queries a Prometheus server for scraped metric names.
type PrometheusClient struct {
	api promv1.API
	log *logging.Logger
}

// NewPrometheusClient creates a client for the Prometheus API at baseURL.
func NewPrometheusClient(baseURL string, log *logging.Logger) (*PrometheusClient, error) {
	client, err := api.NewClient(api.Config{Address: baseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return &PrometheusClient{
		api: promv1.NewAPI(client),
		log: log.WithName("prometheus"),
	}, nil
}

// MetricNames returns every metric name the server has seen in the last
// hour.
func (p *PrometheusClient) MetricNames(ctx context.Context) (map[string]bool, error) {
	end := time.Now()
	start := end.Add(-1 * time.Hour)
	values, warnings, err := p.api.LabelValues(ctx, model.MetricNameLabel, nil, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric names: %w", err)
	}
	for _, w := range warnings {
		p.log.Warn("prometheus warning", "warning", w)
	}
	names := make(map[string]bool, len(values))
	for _, v := range values {
		names[string(v)] = true
	}
	return names, nil
}

// VerifyMetrics checks that every expected metric name has been scraped.
func (p *PrometheusClient) VerifyMetrics(ctx context.Context, expected []string) error {
	names, err := p.MetricNames(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, want := range expected {
		if !names[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prometheus is missing %d metric(s): %s",
			len(missing), strings.Join(missing, ", "))
	}
	p.log.Info("all expected metrics scraped", "count", len(expected))
	return nil
}

// Query runs an instant query and returns the result vector.
func (p *PrometheusClient) Query(ctx context.Context, expr string) (model.Vector, error) {
	result, warnings, err := p.api.Query(ctx, expr, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", expr, err)
	}
	for _, w := range warnings {
		p.log.Warn("prometheus warning", "query", expr, "warning", w)
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("query %q returned %s, want vector", expr, result.Type())
	}
	return vector, nil
}

// ExpectedMetrics reads a JSON file holding the list of metric names the
// CNI exporters are expected to publish.
func ExpectedMetrics(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expected metrics: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse expected metrics: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("expected metrics file %s is empty", path)
	}
	return names, nil
}
