// Package e2e contains observability E2E tests: grafana must carry the
// dashboards the charm ships and prometheus must have scraped the CNI
// exporter metrics.
package e2e

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"

	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
	"github.com/charmed-network/kube-ovn-harness/pkg/observability"
)

var _ = Describe("Observability Stack", func() {
	var (
		ctx      context.Context
		f        *TestFramework
		nodeAddr string
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = GetFramework()
		Expect(f).NotTo(BeNil(), "Test framework not initialized")

		worker, err := f.WorkerNode(ctx)
		Expect(err).NotTo(HaveOccurred())
		nodeAddr, err = kube.NodeAddress(worker, corev1.NodeExternalIP)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should expose the charm dashboards and metrics", func() {
		By("Deploying grafana and prometheus with cross-model relations")
		password, err := f.Harness.DeployObservability(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(password).NotTo(BeEmpty())

		By("Checking every shipped dashboard is present in grafana")
		expected, err := observability.ExpectedDashboardTitles(f.Config.Paths.DashboardsDir)
		Expect(err).NotTo(HaveOccurred())
		grafanaURL := fmt.Sprintf("http://%s:%d", nodeAddr, f.Config.Observability.GrafanaPort)
		grafana := observability.NewGrafanaClient(grafanaURL, "admin", password, f.log)
		Expect(grafana.VerifyDashboards(ctx, expected)).To(Succeed())

		By("Checking the CNI metrics were scraped by prometheus")
		metrics, err := observability.ExpectedMetrics(f.DataFile("prometheus_metrics.json"))
		Expect(err).NotTo(HaveOccurred())
		promURL := fmt.Sprintf("http://%s:%d", nodeAddr, f.Config.Observability.PrometheusPort)
		prom, err := observability.NewPrometheusClient(promURL, f.log)
		Expect(err).NotTo(HaveOccurred())
		Expect(prom.VerifyMetrics(ctx, metrics)).To(Succeed())
	})
})
