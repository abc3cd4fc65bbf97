package charm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKubeconfigPath is where the charm drops the cluster kubeconfig
// on its units.
const DefaultKubeconfigPath = "/root/.kube/config"

// Kubectl builds and runs kubectl invocations the way the charm does on
// its units, always pinning the kubeconfig explicitly.
type Kubectl struct {
	KubeconfigPath string

	// runCommand is replaceable by tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewKubectl returns a Kubectl pinned to the given kubeconfig. An empty
// path falls back to the charm default.
func NewKubectl(kubeconfigPath string) *Kubectl {
	if kubeconfigPath == "" {
		kubeconfigPath = DefaultKubeconfigPath
	}
	return &Kubectl{
		KubeconfigPath: kubeconfigPath,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Command returns the full argv for a kubectl invocation.
func (k *Kubectl) Command(args ...string) []string {
	cmd := []string{"kubectl", "--kubeconfig", k.KubeconfigPath}
	return append(cmd, args...)
}

// Run executes kubectl with the given arguments and returns its stdout.
func (k *Kubectl) Run(ctx context.Context, args ...string) (string, error) {
	argv := k.Command(args...)
	out, err := k.runCommand(ctx, argv[0], argv[1:]...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("kubectl %s failed: %s: %w",
				strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return "", fmt.Errorf("kubectl %s failed: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// GetJSON fetches a resource with -o json and decodes it into out.
func (k *Kubectl) GetJSON(ctx context.Context, out interface{}, args ...string) error {
	full := append(append([]string{"get"}, args...), "-o", "json")
	raw, err := k.Run(ctx, full...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode kubectl output: %w", err)
	}
	return nil
}
