// Package observability verifies the Grafana and Prometheus side of a
// deployment: that the dashboards shipped with the charm made it into
// Grafana and that the metrics the dashboards draw on are actually
// scraped.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// GrafanaClient talks to the Grafana HTTP API with basic auth.
type GrafanaClient struct {
	BaseURL  string
	Username string
	Password string

	httpClient *http.Client
	log        *logging.Logger
}

// NewGrafanaClient creates a client for the Grafana API at baseURL.
func NewGrafanaClient(baseURL, username, password string, log *logging.Logger) *GrafanaClient {
	return &GrafanaClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		Password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithName("grafana"),
	}
}

// dashboardHit is one result from the Grafana search API.
type dashboardHit struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Dashboards returns the titles of all dashboards known to Grafana.
func (g *GrafanaClient) Dashboards(ctx context.Context) ([]string, error) {
	endpoint := g.BaseURL + "/api/search?" + url.Values{"type": {"dash-db"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.Username, g.Password)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grafana search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("grafana search returned %s", resp.Status)
	}

	var hits []dashboardHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("failed to decode grafana search response: %w", err)
	}
	titles := make([]string, 0, len(hits))
	for _, hit := range hits {
		titles = append(titles, hit.Title)
	}
	sort.Strings(titles)
	return titles, nil
}

// VerifyDashboards checks that every expected title is present in
// Grafana. Extra dashboards are tolerated.
func (g *GrafanaClient) VerifyDashboards(ctx context.Context, expected []string) error {
	titles, err := g.Dashboards(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(titles))
	for _, t := range titles {
		present[t] = true
	}
	var missing []string
	for _, want := range expected {
		if !present[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("grafana is missing %d dashboard(s): %s",
			len(missing), strings.Join(missing, ", "))
	}
	g.log.Info("all expected dashboards present", "count", len(expected))
	return nil
}

// ExpectedDashboardTitles reads every *.json dashboard file in dir and
// returns their titles. These files are the same dashboard documents the
// charm feeds to Grafana.
func ExpectedDashboardTitles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboards dir: %w", err)
	}
	var titles []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read dashboard %s: %w", entry.Name(), err)
		}
		var doc struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse dashboard %s: %w", entry.Name(), err)
		}
		if doc.Title == "" {
			return nil, fmt.Errorf("dashboard %s has no title", entry.Name())
		}
		titles = append(titles, doc.Title)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("no dashboard files found in %s", dir)
	}
	sort.Strings(titles)
	return titles, nil
}
