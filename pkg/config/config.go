// Package config provides configuration management for kube-ovn-harness.
//
// This package handles:
// - Configuration file parsing (YAML/JSON)
// - Environment variable overrides
// - Configuration validation
//
// Configuration Priority (highest to lowest):
// 1. Environment variables (KUBE_OVN_HARNESS_*)
// 2. Configuration file
// 3. Default values
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the global configuration structure for the harness.
type Config struct {
	// Juju contains controller and model settings
	Juju JujuConfig `json:"juju" yaml:"juju"`

	// Charm contains settings for the charm under test
	Charm CharmConfig `json:"charm" yaml:"charm"`

	// Paths contains filesystem locations used by the harness
	Paths PathsConfig `json:"paths" yaml:"paths"`

	// Timeouts contains deadlines for deployment and readiness waits
	Timeouts TimeoutsConfig `json:"timeouts" yaml:"timeouts"`

	// OVN contains northbound database settings for verification
	OVN OVNConfig `json:"ovn" yaml:"ovn"`

	// Observability contains Grafana/Prometheus verification settings
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`

	// Logging contains logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// JujuConfig contains controller and model settings.
type JujuConfig struct {
	// Binary is the juju executable name or path
	// Default: "juju"
	Binary string `json:"binary" yaml:"binary"`

	// Controller is the Juju controller name
	// If empty, the client's current controller is used
	Controller string `json:"controller" yaml:"controller"`

	// MachineModel is the machine model hosting Charmed Kubernetes
	MachineModel string `json:"machineModel" yaml:"machineModel"`

	// K8sCloud is an existing k8s cloud to reuse
	// If empty, the harness registers a new cloud via add-k8s
	K8sCloud string `json:"k8sCloud" yaml:"k8sCloud"`

	// KeepModels leaves models in place on teardown for debugging
	// Default: false
	KeepModels bool `json:"keepModels" yaml:"keepModels"`
}

// CharmConfig contains settings for the charm under test.
type CharmConfig struct {
	// Application is the deployed application name of the CNI charm
	// Default: "kube-ovn"
	Application string `json:"application" yaml:"application"`

	// ControlPlaneApp is the kubernetes control plane application name
	// Default: "kubernetes-control-plane"
	ControlPlaneApp string `json:"controlPlaneApp" yaml:"controlPlaneApp"`

	// WorkerApp is the kubernetes worker application name
	// Default: "kubernetes-worker"
	WorkerApp string `json:"workerApp" yaml:"workerApp"`

	// Channel is the charm store channel for auxiliary deployments
	// Default: "edge"
	Channel string `json:"channel" yaml:"channel"`
}

// PathsConfig contains filesystem locations used by the harness.
type PathsConfig struct {
	// DataDir holds the YAML manifests seeded into the cluster
	// Default: "test/e2e/data"
	DataDir string `json:"dataDir" yaml:"dataDir"`

	// DashboardsDir holds the Grafana dashboard JSON files the charm ships
	// Default: "test/e2e/data/dashboards"
	DashboardsDir string `json:"dashboardsDir" yaml:"dashboardsDir"`

	// Kubeconfig overrides the kubeconfig fetched from the control plane
	// If empty, the harness copies it from the control plane leader
	Kubeconfig string `json:"kubeconfig" yaml:"kubeconfig"`

	// WorkDir is where the harness writes temporary files
	// If empty, a temporary directory is created
	WorkDir string `json:"workDir" yaml:"workDir"`

	// ProbeBinary is a harness-probe build matching the worker
	// architecture, copied to each worker to report CNI state.
	// If empty, the harness falls back to listing the CNI conf dir.
	ProbeBinary string `json:"probeBinary" yaml:"probeBinary"`
}

// TimeoutsConfig contains deadlines for deployment and readiness waits.
type TimeoutsConfig struct {
	// Deploy bounds application deployment plus settling
	// Default: 60m
	Deploy time.Duration `json:"deploy" yaml:"deploy"`

	// Idle bounds wait-for-idle style status polls
	// Default: 10m
	Idle time.Duration `json:"idle" yaml:"idle"`

	// PodReady bounds waits for pod readiness conditions
	// Default: 5m
	PodReady time.Duration `json:"podReady" yaml:"podReady"`

	// Teardown bounds model destruction and resource removal
	// Default: 10m
	Teardown time.Duration `json:"teardown" yaml:"teardown"`

	// PollInterval is the fixed interval between readiness polls
	// Default: 5s
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// OVNConfig contains northbound database settings for verification.
type OVNConfig struct {
	// NBDBAddress is the Northbound Database address
	// Format: tcp:IP:PORT, ssl:IP:PORT or unix:PATH
	// Empty disables OVN-level verification
	NBDBAddress string `json:"nbdbAddress" yaml:"nbdbAddress"`

	// SSL contains TLS material for ssl: addresses
	SSL SSLConfig `json:"ssl" yaml:"ssl"`

	// ConnectTimeout is the timeout for the initial connection
	// Default: 30s
	ConnectTimeout time.Duration `json:"connectTimeout" yaml:"connectTimeout"`
}

// SSLConfig contains TLS material for OVN connections.
type SSLConfig struct {
	// Enabled indicates whether TLS is used
	Enabled bool `json:"enabled" yaml:"enabled"`

	// CACert is the path to the CA certificate file
	CACert string `json:"caCert" yaml:"caCert"`

	// ClientCert is the path to the client certificate file
	ClientCert string `json:"clientCert" yaml:"clientCert"`

	// ClientKey is the path to the client private key file
	ClientKey string `json:"clientKey" yaml:"clientKey"`
}

// ObservabilityConfig contains Grafana/Prometheus verification settings.
type ObservabilityConfig struct {
	// GrafanaPort is the NodePort the grafana service is exposed on
	// Default: 30600
	GrafanaPort int `json:"grafanaPort" yaml:"grafanaPort"`

	// PrometheusPort is the NodePort the prometheus service is exposed on
	// Default: 30900
	PrometheusPort int `json:"prometheusPort" yaml:"prometheusPort"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `json:"level" yaml:"level"`

	// Format is the log format: "json" or "text"
	// Default: "text"
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Juju: JujuConfig{
			Binary: "juju",
		},
		Charm: CharmConfig{
			Application:     "kube-ovn",
			ControlPlaneApp: "kubernetes-control-plane",
			WorkerApp:       "kubernetes-worker",
			Channel:         "edge",
		},
		Paths: PathsConfig{
			DataDir:       "test/e2e/data",
			DashboardsDir: "test/e2e/data/dashboards",
		},
		Timeouts: TimeoutsConfig{
			Deploy:       60 * time.Minute,
			Idle:         10 * time.Minute,
			PodReady:     5 * time.Minute,
			Teardown:     10 * time.Minute,
			PollInterval: 5 * time.Second,
		},
		OVN: OVNConfig{
			ConnectTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			GrafanaPort:    30600,
			PrometheusPort: 30900,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
//
// Configuration is loaded in the following order:
// 1. Default values
// 2. Configuration file (if specified via KUBE_OVN_HARNESS_CONFIG_FILE)
// 3. Environment variable overrides
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configFile := os.Getenv("KUBE_OVN_HARNESS_CONFIG_FILE")
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML is a superset of JSON, so one parser covers both
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Environment variables follow the pattern KUBE_OVN_HARNESS_<KEY>:
//   - KUBE_OVN_HARNESS_CONTROLLER=overlord
//   - KUBE_OVN_HARNESS_MACHINE_MODEL=charmed-k8s
//   - KUBE_OVN_HARNESS_K8S_CLOUD=reused-cloud
//   - KUBE_OVN_HARNESS_KEEP_MODELS=true
//   - KUBE_OVN_HARNESS_KUBECONFIG=/path/to/kubeconfig
//   - KUBE_OVN_HARNESS_NBDB_ADDRESS=tcp:192.168.1.100:6641
//   - KUBE_OVN_HARNESS_LOG_LEVEL=debug
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KUBE_OVN_HARNESS_JUJU_BINARY"); v != "" {
		c.Juju.Binary = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_CONTROLLER"); v != "" {
		c.Juju.Controller = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_MACHINE_MODEL"); v != "" {
		c.Juju.MachineModel = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_K8S_CLOUD"); v != "" {
		c.Juju.K8sCloud = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_KEEP_MODELS"); v != "" {
		c.Juju.KeepModels = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_APPLICATION"); v != "" {
		c.Charm.Application = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_DASHBOARDS_DIR"); v != "" {
		c.Paths.DashboardsDir = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_KUBECONFIG"); v != "" {
		c.Paths.Kubeconfig = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_PROBE_BINARY"); v != "" {
		c.Paths.ProbeBinary = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_NBDB_ADDRESS"); v != "" {
		c.OVN.NBDBAddress = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_GRAFANA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Observability.GrafanaPort = port
		}
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_PROMETHEUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Observability.PrometheusPort = port
		}
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KUBE_OVN_HARNESS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Juju.Binary == "" {
		errs = append(errs, "juju binary is required")
	}
	if c.Charm.Application == "" {
		errs = append(errs, "charm application name is required")
	}
	if c.Charm.WorkerApp == "" {
		errs = append(errs, "worker application name is required")
	}
	if c.Charm.ControlPlaneApp == "" {
		errs = append(errs, "control plane application name is required")
	}

	if c.Timeouts.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("invalid poll interval: %s (must be positive)", c.Timeouts.PollInterval))
	}
	for name, d := range map[string]time.Duration{
		"deploy":   c.Timeouts.Deploy,
		"idle":     c.Timeouts.Idle,
		"podReady": c.Timeouts.PodReady,
		"teardown": c.Timeouts.Teardown,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("invalid %s timeout: %s (must be positive)", name, d))
		}
	}

	if c.OVN.NBDBAddress != "" {
		if err := validateDBAddressFormat(c.OVN.NBDBAddress); err != nil {
			errs = append(errs, fmt.Sprintf("invalid nbdbAddress: %v", err))
		}
	}
	if c.OVN.SSL.Enabled {
		if c.OVN.SSL.CACert == "" {
			errs = append(errs, "SSL CA certificate path is required when SSL is enabled")
		}
		if c.OVN.SSL.ClientCert == "" {
			errs = append(errs, "SSL client certificate path is required when SSL is enabled")
		}
		if c.OVN.SSL.ClientKey == "" {
			errs = append(errs, "SSL client key path is required when SSL is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be 'json' or 'text')", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateDBAddressFormat validates the format of an OVN database address.
// Multiple comma separated addresses are accepted for HA deployments.
func validateDBAddressFormat(address string) error {
	if address == "" {
		return fmt.Errorf("address is empty")
	}

	for _, addr := range strings.Split(address, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}

		if !strings.HasPrefix(addr, "tcp:") &&
			!strings.HasPrefix(addr, "ssl:") &&
			!strings.HasPrefix(addr, "unix:") {
			return fmt.Errorf("invalid address scheme: %s (must be tcp:, ssl:, or unix:)", addr)
		}

		if strings.HasPrefix(addr, "tcp:") || strings.HasPrefix(addr, "ssl:") {
			hostPort := strings.TrimPrefix(addr, "tcp:")
			hostPort = strings.TrimPrefix(hostPort, "ssl:")

			if !strings.Contains(hostPort, ":") {
				return fmt.Errorf("invalid address format: %s (expected IP:PORT)", addr)
			}
		}
	}

	return nil
}

// OVNVerificationEnabled reports whether OVN-level checks are configured.
func (c *Config) OVNVerificationEnabled() bool {
	return c.OVN.NBDBAddress != ""
}
