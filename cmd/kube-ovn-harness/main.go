// Package main provides the entry point for kube-ovn-harness.
//
// kube-ovn-harness drives a full kube-ovn charm test environment on an
// existing Charmed Kubernetes cluster:
// - Fetches the cluster kubeconfig from the control plane leader
// - Registers the cluster as a Juju k8s cloud and creates a scratch model
// - Deploys multus, grafana, prometheus and bird alongside the CNI charm
// - Verifies subnets and pods against the OVN Northbound database
// - Tears the whole environment down in reverse order
//
// Usage:
//
//	kube-ovn-harness [flags]
//
// Flags:
//
//	--config string     Path to configuration file
//	--phase string      Phase to run: deploy, verify, cleanup or all (default: all)
//	--keep-models       Keep Juju models on exit for inspection
//	--log-level string  Log level: debug, info, warn, error (default: info)
//
// Environment Variables:
//
//	KUBE_OVN_HARNESS_CONFIG_FILE   Path to configuration file
//	KUBE_OVN_HARNESS_CONTROLLER    Juju controller name
//	KUBE_OVN_HARNESS_NBDB_ADDRESS  OVN Northbound DB address
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	corev1 "k8s.io/api/core/v1"

	kubeovnv1 "github.com/charmed-network/kube-ovn-harness/api/v1"
	"github.com/charmed-network/kube-ovn-harness/pkg/config"
	"github.com/charmed-network/kube-ovn-harness/pkg/harness"
	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
	"github.com/charmed-network/kube-ovn-harness/pkg/observability"
	"github.com/charmed-network/kube-ovn-harness/pkg/ovnverify"
)

var (
	// Version information (set at build time)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Options contains command-line options for the harness
type Options struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// Phase selects which part of the run to execute
	Phase string

	// KeepModels keeps Juju models on exit
	KeepModels bool

	// LogLevel is the log level
	LogLevel string

	// PrintVersion prints version information and exits
	PrintVersion bool
}

func main() {
	opts := parseFlags()

	if opts.PrintVersion {
		fmt.Printf("kube-ovn-harness %s (commit: %s, built: %s)\n",
			version, gitCommit, buildDate)
		os.Exit(0)
	}

	cfg, err := loadConfiguration(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLogger(log)

	log.Info("starting kube-ovn-harness",
		"version", version, "commit", gitCommit, "phase", opts.Phase)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, cfg, log); err != nil {
		log.Error(err, "harness failed")
		os.Exit(1)
	}
	log.Info("harness finished")
}

// parseFlags parses command-line flags and returns Options
func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigFile, "config", "",
		"Path to configuration file (can also use KUBE_OVN_HARNESS_CONFIG_FILE env var)")
	flag.StringVar(&opts.Phase, "phase", "all",
		"Phase to run: deploy, verify, cleanup or all")
	flag.BoolVar(&opts.KeepModels, "keep-models", false,
		"Keep Juju models on exit for inspection")
	flag.StringVar(&opts.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config file)")
	flag.BoolVar(&opts.PrintVersion, "version", false,
		"Print version information and exit")

	flag.Parse()
	return opts
}

// loadConfiguration loads the config file and applies flag overrides on
// top of it.
func loadConfiguration(opts *Options) (*config.Config, error) {
	if opts.ConfigFile != "" {
		os.Setenv("KUBE_OVN_HARNESS_CONFIG_FILE", opts.ConfigFile)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.KeepModels {
		cfg.Juju.KeepModels = true
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	return cfg, nil
}

func run(ctx context.Context, opts *Options, cfg *config.Config, log *logging.Logger) error {
	h, err := harness.New(cfg, log)
	if err != nil {
		return err
	}

	switch opts.Phase {
	case "deploy":
		return deploy(ctx, h, log)
	case "verify":
		if err := h.FetchKubeconfig(ctx); err != nil {
			return err
		}
		return verify(ctx, h, cfg, log)
	case "cleanup":
		return h.DestroyScratchModels(ctx)
	case "all":
		defer func() {
			if err := h.Teardown(ctx); err != nil {
				log.Warn("teardown reported errors", "error", err)
			}
		}()
		if err := deploy(ctx, h, log); err != nil {
			return err
		}
		return verify(ctx, h, cfg, log)
	default:
		return fmt.Errorf("unknown phase %q", opts.Phase)
	}
}

// deploy brings up the scratch environment around the CNI charm.
func deploy(ctx context.Context, h *harness.Harness, log *logging.Logger) error {
	if err := h.FetchKubeconfig(ctx); err != nil {
		return err
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
	password, err := h.DeployObservability(ctx)
	if err != nil {
		return err
	}
	log.Info("observability stack ready", "grafanaPasswordLength", len(password))
	return nil
}

// verify checks the deployed environment: every subnet against the OVN
// NB database when an address is configured, and the observability
// stack against the dashboards and metrics the charm ships.
func verify(ctx context.Context, h *harness.Harness, cfg *config.Config, log *logging.Logger) error {
	if cfg.OVNVerificationEnabled() {
		if err := verifyOVN(ctx, h, cfg, log); err != nil {
			return err
		}
	} else {
		log.Info("OVN verification disabled, no NB DB address configured")
	}
	if cfg.Paths.DashboardsDir != "" {
		if err := verifyObservability(ctx, h, cfg, log); err != nil {
			return err
		}
	}
	return nil
}

// verifyOVN checks every subnet resource in the cluster against its
// logical switch in the NB database.
func verifyOVN(ctx context.Context, h *harness.Harness, cfg *config.Config, log *logging.Logger) error {
	nb, err := ovnverify.Connect(ctx, &cfg.OVN, log)
	if err != nil {
		return err
	}
	defer nb.Close()

	subnets := &kubeovnv1.SubnetList{}
	if err := h.Kube.List(ctx, subnets); err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}
	for i := range subnets.Items {
		subnet := &subnets.Items[i]
		if err := nb.VerifySubnet(ctx, subnet); err != nil {
			return err
		}
		log.Info("subnet verified against NB DB", "subnet", subnet.Name)
	}
	log.Info("OVN verification passed", "subnets", len(subnets.Items))
	return nil
}

// verifyObservability checks grafana for the shipped dashboards and
// prometheus for the exporter metrics, reaching both through their node
// ports on a worker.
func verifyObservability(ctx context.Context, h *harness.Harness, cfg *config.Config, log *logging.Logger) error {
	if h.K8sModel == "" {
		if err := h.AttachScratchModel(ctx); err != nil {
			return err
		}
	}
	password, err := h.GrafanaAdminPassword(ctx)
	if err != nil {
		return err
	}

	worker, err := kube.FirstWorkerNode(ctx, h.Kube, cfg.Charm.WorkerApp)
	if err != nil {
		return err
	}
	nodeAddr, err := kube.NodeAddress(worker, corev1.NodeExternalIP)
	if err != nil {
		return err
	}

	expected, err := observability.ExpectedDashboardTitles(cfg.Paths.DashboardsDir)
	if err != nil {
		return err
	}
	grafanaURL := fmt.Sprintf("http://%s:%d", nodeAddr, cfg.Observability.GrafanaPort)
	grafana := observability.NewGrafanaClient(grafanaURL, "admin", password, log)
	if err := grafana.VerifyDashboards(ctx, expected); err != nil {
		return err
	}
	log.Info("grafana dashboards verified", "count", len(expected))

	metrics, err := observability.ExpectedMetrics(
		filepath.Join(cfg.Paths.DataDir, "prometheus_metrics.json"))
	if err != nil {
		return err
	}
	promURL := fmt.Sprintf("http://%s:%d", nodeAddr, cfg.Observability.PrometheusPort)
	prom, err := observability.NewPrometheusClient(promURL, log)
	if err != nil {
		return err
	}
	if err := prom.VerifyMetrics(ctx, metrics); err != nil {
		return err
	}
	log.Info("prometheus metrics verified", "count", len(metrics))
	return nil
}
