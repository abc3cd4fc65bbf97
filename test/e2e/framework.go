// Package e2e provides the E2E testing framework for the kube-ovn
// charm harness.
package e2e

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/charmed-network/kube-ovn-harness/pkg/config"
	"github.com/charmed-network/kube-ovn-harness/pkg/harness"
	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

const (
	DefaultTestNamespace = "kube-ovn-e2e"
)

// TestFramework holds the shared state for one suite run.
type TestFramework struct {
	Config        *config.Config
	Harness       *harness.Harness
	Fixture       *kube.Fixture
	TestNamespace string
	DataDir       string

	log *logging.Logger
}

var framework *TestFramework

// InitTestFramework builds the framework, fetches the kubeconfig,
// registers the cluster as a Juju cloud with a scratch model, deploys
// multus and prepares the test namespace. This mirrors the environment
// every spec assumes.
func InitTestFramework() error {
	if _, err := exec.LookPath("juju"); err != nil {
		return fmt.Errorf("juju CLI not found: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logging.NewLogger(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	h, err := harness.New(cfg, log)
	if err != nil {
		return err
	}
	if err := h.FetchKubeconfig(ctx); err != nil {
		return fmt.Errorf("failed to fetch kubeconfig: %w", err)
	}
	if err := h.EnsureK8sCloud(ctx); err != nil {
		return err
	}
	if err := h.EnsureK8sModel(ctx); err != nil {
		return err
	}
	if err := h.DeployMultus(ctx); err != nil {
		return err
	}

	framework = &TestFramework{
		Config:        cfg,
		Harness:       h,
		Fixture:       kube.NewFixture(h.Kube, log),
		TestNamespace: getEnvOrDefault("E2E_NAMESPACE", DefaultTestNamespace),
		DataDir:       cfg.Paths.DataDir,
		log:           log,
	}
	return framework.createTestNamespace()
}

// CleanupTestFramework tears down applied fixtures, the test namespace
// and anything the harness deployed.
func CleanupTestFramework() {
	if framework == nil {
		return
	}
	ctx := context.Background()
	if err := framework.Fixture.Teardown(ctx); err != nil {
		framework.log.Warn("fixture teardown reported errors", "error", err)
	}
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: framework.TestNamespace}}
	_ = framework.Harness.Kube.Delete(ctx, ns)
	if err := framework.Harness.Teardown(ctx); err != nil {
		framework.log.Warn("harness teardown reported errors", "error", err)
	}
}

// GetFramework returns the suite framework singleton.
func GetFramework() *TestFramework { return framework }

func (f *TestFramework) createTestNamespace() error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   f.TestNamespace,
			Labels: map[string]string{"app.kubernetes.io/name": "kube-ovn-e2e"},
		},
	}
	err := f.Harness.Kube.Create(context.Background(), ns)
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// Client returns the Kubernetes client connected to the cluster.
func (f *TestFramework) Client() client.Client { return f.Harness.Kube }

// Waiter returns the workload readiness waiter.
func (f *TestFramework) Waiter() *kube.Waiter { return f.Harness.Waiter }

// DataFile resolves a file under the suite data directory.
func (f *TestFramework) DataFile(name string) string {
	return filepath.Join(f.DataDir, name)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
