package e2e

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/charmed-network/kube-ovn-harness/pkg/charm"
	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
)

// PodExec runs a command inside a pod in the test namespace through
// kubectl, using the kubeconfig the harness fetched.
func (f *TestFramework) PodExec(ctx context.Context, pod string, command ...string) (string, error) {
	kubectl := charm.NewKubectl(f.Harness.KubeconfigPath)
	args := append([]string{"exec", "-n", f.TestNamespace, pod, "--"}, command...)
	return kubectl.Run(ctx, args...)
}

// WorkerNode returns the first kubernetes-worker node in the cluster.
func (f *TestFramework) WorkerNode(ctx context.Context) (*corev1.Node, error) {
	return kube.FirstWorkerNode(ctx, f.Harness.Kube, f.Config.Charm.WorkerApp)
}
