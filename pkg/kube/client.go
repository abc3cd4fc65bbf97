// Package kube provides the Kubernetes side of the harness: a
// controller-runtime client wired for kube-ovn resources, YAML manifest
// loading with mutation hooks, fixtures with LIFO teardown, and waiters
// for workload readiness.
package kube

import (
	"fmt"
	"os"

	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	kubeovnv1 "github.com/charmed-network/kube-ovn-harness/api/v1"
)

// NewScheme builds a runtime.Scheme carrying the core types the harness
// manipulates plus the kube-ovn CRDs.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to register client-go types: %w", err)
	}
	if err := kubeovnv1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to register kube-ovn types: %w", err)
	}
	return scheme, nil
}

// RESTConfigFromKubeconfig builds a rest.Config from a kubeconfig file.
func RESTConfigFromKubeconfig(path string) (*rest.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("kubeconfig path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("kubeconfig not readable: %w", err)
	}
	config, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("failed to build config from %s: %w", path, err)
	}
	return config, nil
}

// NewClient creates a controller-runtime client from a kubeconfig file.
func NewClient(kubeconfigPath string) (client.Client, error) {
	config, err := RESTConfigFromKubeconfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}
	return NewClientFromConfig(config)
}

// NewClientFromConfig creates a controller-runtime client from a rest.Config.
func NewClientFromConfig(config *rest.Config) (client.Client, error) {
	scheme, err := NewScheme()
	if err != nil {
		return nil, err
	}
	c, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return c, nil
}
