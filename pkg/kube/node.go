package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// WorkerLabel marks nodes managed by the kubernetes-worker charm. Juju
// stamps every node it brings up with this label.
const WorkerLabel = "juju-application"

// WorkerNodes lists the nodes belonging to the given worker application.
func WorkerNodes(ctx context.Context, c client.Client, app string) ([]corev1.Node, error) {
	nodes := &corev1.NodeList{}
	if err := c.List(ctx, nodes, client.MatchingLabels{WorkerLabel: app}); err != nil {
		return nil, fmt.Errorf("failed to list worker nodes: %w", err)
	}
	if len(nodes.Items) == 0 {
		return nil, fmt.Errorf("no nodes labelled %s=%s", WorkerLabel, app)
	}
	return nodes.Items, nil
}

// FirstWorkerNode returns the first worker node by list order. Fixtures
// that pin a gateway or egress hop need one stable node to point at.
func FirstWorkerNode(ctx context.Context, c client.Client, app string) (*corev1.Node, error) {
	nodes, err := WorkerNodes(ctx, c, app)
	if err != nil {
		return nil, err
	}
	return &nodes[0], nil
}

// NodeAddress returns the node address of the given type, preferring
// that type but falling back to InternalIP.
func NodeAddress(node *corev1.Node, addrType corev1.NodeAddressType) (string, error) {
	for _, addr := range node.Status.Addresses {
		if addr.Type == addrType {
			return addr.Address, nil
		}
	}
	if addrType != corev1.NodeInternalIP {
		for _, addr := range node.Status.Addresses {
			if addr.Type == corev1.NodeInternalIP {
				return addr.Address, nil
			}
		}
	}
	return "", fmt.Errorf("node %s has no %s address", node.Name, addrType)
}

// AnnotateNode patches annotations onto the named node.
func AnnotateNode(ctx context.Context, c client.Client, name string, annotations map[string]string) error {
	node := &corev1.Node{}
	if err := c.Get(ctx, client.ObjectKey{Name: name}, node); err != nil {
		return fmt.Errorf("failed to fetch node %s: %w", name, err)
	}
	patched := node.DeepCopy()
	if patched.Annotations == nil {
		patched.Annotations = make(map[string]string, len(annotations))
	}
	for k, v := range annotations {
		patched.Annotations[k] = v
	}
	if err := c.Patch(ctx, patched, client.MergeFrom(node)); err != nil {
		return fmt.Errorf("failed to annotate node %s: %w", name, err)
	}
	return nil
}
