package kube

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Waiter polls the cluster until workloads reach the desired state.
type Waiter struct {
	Client       client.Client
	PollInterval time.Duration
	Timeout      time.Duration
}

// NewWaiter creates a Waiter with the given tuning. Zero values get
// sensible defaults.
func NewWaiter(c client.Client, pollInterval, timeout time.Duration) *Waiter {
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Waiter{Client: c, PollInterval: pollInterval, Timeout: timeout}
}

func (w *Waiter) poll(ctx context.Context, what string, cond wait.ConditionWithContextFunc) error {
	if err := wait.PollUntilContextTimeout(ctx, w.PollInterval, w.Timeout, true, cond); err != nil {
		return fmt.Errorf("timed out waiting for %s: %w", what, err)
	}
	return nil
}

// PodReady waits until the named pod reports a true Ready condition.
func (w *Waiter) PodReady(ctx context.Context, namespace, name string) error {
	return w.poll(ctx, fmt.Sprintf("pod %s/%s ready", namespace, name),
		func(ctx context.Context) (bool, error) {
			pod := &corev1.Pod{}
			if err := w.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, pod); err != nil {
				if apierrors.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			return isPodReady(pod), nil
		})
}

// PodIP waits until the named pod has an IP assigned and returns it.
func (w *Waiter) PodIP(ctx context.Context, namespace, name string) (string, error) {
	var ip string
	err := w.poll(ctx, fmt.Sprintf("pod %s/%s IP", namespace, name),
		func(ctx context.Context) (bool, error) {
			pod := &corev1.Pod{}
			if err := w.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, pod); err != nil {
				if apierrors.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			ip = pod.Status.PodIP
			return ip != "", nil
		})
	return ip, err
}

// PodsReady waits until every pod matching the label selector in the
// namespace is ready, requiring at least one match.
func (w *Waiter) PodsReady(ctx context.Context, namespace string, selector map[string]string) error {
	return w.poll(ctx, fmt.Sprintf("pods in %s matching %v ready", namespace, selector),
		func(ctx context.Context) (bool, error) {
			pods := &corev1.PodList{}
			err := w.Client.List(ctx, pods,
				client.InNamespace(namespace), client.MatchingLabels(selector))
			if err != nil {
				return false, err
			}
			if len(pods.Items) == 0 {
				return false, nil
			}
			for i := range pods.Items {
				if !isPodReady(&pods.Items[i]) {
					return false, nil
				}
			}
			return true, nil
		})
}

// DaemonSetReady waits until the named DaemonSet has every desired pod
// ready.
func (w *Waiter) DaemonSetReady(ctx context.Context, namespace, name string) error {
	return w.poll(ctx, fmt.Sprintf("daemonset %s/%s ready", namespace, name),
		func(ctx context.Context) (bool, error) {
			ds := &appsv1.DaemonSet{}
			if err := w.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, ds); err != nil {
				if apierrors.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			desired := ds.Status.DesiredNumberScheduled
			return desired > 0 && ds.Status.NumberReady == desired, nil
		})
}

// DeploymentAvailable waits until the named Deployment reports an
// Available condition.
func (w *Waiter) DeploymentAvailable(ctx context.Context, namespace, name string) error {
	return w.poll(ctx, fmt.Sprintf("deployment %s/%s available", namespace, name),
		func(ctx context.Context) (bool, error) {
			dep := &appsv1.Deployment{}
			if err := w.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, dep); err != nil {
				if apierrors.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			for _, cond := range dep.Status.Conditions {
				if cond.Type == appsv1.DeploymentAvailable {
					return cond.Status == corev1.ConditionTrue, nil
				}
			}
			return false, nil
		})
}

// NamespaceGone waits until the named namespace no longer exists.
func (w *Waiter) NamespaceGone(ctx context.Context, name string) error {
	return w.poll(ctx, fmt.Sprintf("namespace %s deleted", name),
		func(ctx context.Context) (bool, error) {
			ns := &corev1.Namespace{}
			err := w.Client.Get(ctx, types.NamespacedName{Name: name}, ns)
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			return false, nil
		})
}

func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
