// Package config provides tests for configuration management.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Verify default values
	if cfg.Juju.Binary != "juju" {
		t.Errorf("expected juju binary 'juju', got '%s'", cfg.Juju.Binary)
	}
	if cfg.Charm.Application != "kube-ovn" {
		t.Errorf("expected application 'kube-ovn', got '%s'", cfg.Charm.Application)
	}
	if cfg.Charm.WorkerApp != "kubernetes-worker" {
		t.Errorf("expected worker app 'kubernetes-worker', got '%s'", cfg.Charm.WorkerApp)
	}
	if cfg.Timeouts.Deploy != 60*time.Minute {
		t.Errorf("expected deploy timeout 60m, got %s", cfg.Timeouts.Deploy)
	}
	if cfg.Timeouts.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %s", cfg.Timeouts.PollInterval)
	}
	if cfg.Observability.GrafanaPort != 30600 {
		t.Errorf("expected grafana port 30600, got %d", cfg.Observability.GrafanaPort)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}
	if cfg.OVNVerificationEnabled() {
		t.Error("expected OVN verification disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
juju:
  controller: overlord
  machineModel: charmed-k8s
  k8sCloud: scratch-cloud
  keepModels: true
charm:
  application: tigera
  channel: stable
ovn:
  nbdbAddress: "tcp:192.168.1.100:6641"
timeouts:
  deploy: 30m
  podReady: 2m
logging:
  level: debug
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("failed to load config file: %v", err)
	}

	// Verify loaded values
	if cfg.Juju.Controller != "overlord" {
		t.Errorf("expected controller 'overlord', got '%s'", cfg.Juju.Controller)
	}
	if cfg.Juju.MachineModel != "charmed-k8s" {
		t.Errorf("expected machine model 'charmed-k8s', got '%s'", cfg.Juju.MachineModel)
	}
	if !cfg.Juju.KeepModels {
		t.Error("expected keepModels true")
	}
	if cfg.Charm.Application != "tigera" {
		t.Errorf("expected application 'tigera', got '%s'", cfg.Charm.Application)
	}
	if cfg.OVN.NBDBAddress != "tcp:192.168.1.100:6641" {
		t.Errorf("unexpected NB address '%s'", cfg.OVN.NBDBAddress)
	}
	if cfg.Timeouts.Deploy != 30*time.Minute {
		t.Errorf("expected deploy timeout 30m, got %s", cfg.Timeouts.Deploy)
	}
	if cfg.Timeouts.PodReady != 2*time.Minute {
		t.Errorf("expected podReady timeout 2m, got %s", cfg.Timeouts.PodReady)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.Logging.Level)
	}

	// Values absent from the file keep their defaults
	if cfg.Charm.WorkerApp != "kubernetes-worker" {
		t.Errorf("expected default worker app, got '%s'", cfg.Charm.WorkerApp)
	}
	if !cfg.OVNVerificationEnabled() {
		t.Error("expected OVN verification enabled with NB address set")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KUBE_OVN_HARNESS_CONTROLLER", "env-controller")
	t.Setenv("KUBE_OVN_HARNESS_K8S_CLOUD", "env-cloud")
	t.Setenv("KUBE_OVN_HARNESS_KEEP_MODELS", "TRUE")
	t.Setenv("KUBE_OVN_HARNESS_NBDB_ADDRESS", "ssl:10.0.0.1:6641")
	t.Setenv("KUBE_OVN_HARNESS_GRAFANA_PORT", "31000")
	t.Setenv("KUBE_OVN_HARNESS_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Juju.Controller != "env-controller" {
		t.Errorf("expected controller 'env-controller', got '%s'", cfg.Juju.Controller)
	}
	if cfg.Juju.K8sCloud != "env-cloud" {
		t.Errorf("expected cloud 'env-cloud', got '%s'", cfg.Juju.K8sCloud)
	}
	if !cfg.Juju.KeepModels {
		t.Error("expected keepModels true from KEEP_MODELS=TRUE")
	}
	if cfg.OVN.NBDBAddress != "ssl:10.0.0.1:6641" {
		t.Errorf("unexpected NB address '%s'", cfg.OVN.NBDBAddress)
	}
	if cfg.Observability.GrafanaPort != 31000 {
		t.Errorf("expected grafana port 31000, got %d", cfg.Observability.GrafanaPort)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level 'warn', got '%s'", cfg.Logging.Level)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Juju.Binary = ""
	cfg.Charm.Application = ""
	cfg.Timeouts.Deploy = 0
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"juju binary is required",
		"charm application name is required",
		"invalid deploy timeout",
		"invalid log level: verbose",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error should mention %q, got:\n%s", want, msg)
		}
	}
}

func TestValidateSSLRequiresMaterial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OVN.NBDBAddress = "ssl:10.0.0.1:6641"
	cfg.OVN.SSL.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for SSL without certificates")
	}
	if !strings.Contains(err.Error(), "SSL CA certificate path is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateDBAddressFormat(t *testing.T) {
	valid := []string{
		"tcp:192.168.1.100:6641",
		"ssl:10.0.0.1:6641",
		"unix:/var/run/ovn/ovnnb_db.sock",
		"tcp:10.0.0.1:6641,tcp:10.0.0.2:6641,tcp:10.0.0.3:6641",
	}
	for _, addr := range valid {
		if err := validateDBAddressFormat(addr); err != nil {
			t.Errorf("address %q should be valid: %v", addr, err)
		}
	}

	invalid := []string{
		"",
		"192.168.1.100:6641",
		"http:10.0.0.1:6641",
		"tcp:10.0.0.1:6641,udp:10.0.0.2:6641",
	}
	for _, addr := range invalid {
		if err := validateDBAddressFormat(addr); err == nil {
			t.Errorf("address %q should be invalid", addr)
		}
	}
}
