package kube

import (
	"context"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// Fixture applies Kubernetes objects and tears them down in LIFO order.
// Every object applied through the fixture is tracked; Teardown deletes
// them newest first and waits for each to disappear, mirroring how
// dependent resources were stacked up during setup.
type Fixture struct {
	Client       client.Client
	PollInterval time.Duration
	DeleteWait   time.Duration

	log     *logging.Logger
	applied []*unstructured.Unstructured
}

// NewFixture creates a Fixture around a client with default wait tuning.
func NewFixture(c client.Client, log *logging.Logger) *Fixture {
	return &Fixture{
		Client:       c,
		PollInterval: 2 * time.Second,
		DeleteWait:   2 * time.Minute,
		log:          log.WithName("fixture"),
	}
}

// Apply creates or updates the given objects and records them for
// teardown. On update the live resourceVersion is carried over so the
// server accepts the write.
func (f *Fixture) Apply(ctx context.Context, objs ...*unstructured.Unstructured) error {
	for _, obj := range objs {
		if err := f.applyOne(ctx, obj); err != nil {
			return err
		}
		f.applied = append(f.applied, obj)
	}
	return nil
}

func (f *Fixture) applyOne(ctx context.Context, obj *unstructured.Unstructured) error {
	f.log.Debug("applying object",
		"kind", obj.GetKind(), "namespace", obj.GetNamespace(), "name", obj.GetName())
	err := f.Client.Create(ctx, obj)
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create %s %s: %w", obj.GetKind(), obj.GetName(), err)
	}
	existing := &unstructured.Unstructured{}
	existing.SetGroupVersionKind(obj.GroupVersionKind())
	if err := f.Client.Get(ctx, client.ObjectKeyFromObject(obj), existing); err != nil {
		return fmt.Errorf("failed to fetch existing %s %s: %w", obj.GetKind(), obj.GetName(), err)
	}
	obj.SetResourceVersion(existing.GetResourceVersion())
	if err := f.Client.Update(ctx, obj); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return nil
}

// ApplyManifest loads a manifest file with the given mutations and
// applies every object in it.
func (f *Fixture) ApplyManifest(ctx context.Context, path string, mutations ...Mutation) ([]*unstructured.Unstructured, error) {
	objs, err := LoadManifest(path, mutations...)
	if err != nil {
		return nil, err
	}
	if err := f.Apply(ctx, objs...); err != nil {
		return nil, err
	}
	return objs, nil
}

// Teardown deletes every applied object in reverse order of application
// and waits for each deletion to complete. Errors are collected rather
// than aborting so later objects still get cleaned up.
func (f *Fixture) Teardown(ctx context.Context) error {
	var errs []error
	for i := len(f.applied) - 1; i >= 0; i-- {
		obj := f.applied[i]
		if err := f.deleteAndWait(ctx, obj); err != nil {
			f.log.Warn("teardown failed for object",
				"kind", obj.GetKind(), "name", obj.GetName(), "error", err)
			errs = append(errs, err)
		}
	}
	f.applied = nil
	if len(errs) > 0 {
		return fmt.Errorf("teardown completed with %d error(s), first: %w", len(errs), errs[0])
	}
	return nil
}

func (f *Fixture) deleteAndWait(ctx context.Context, obj *unstructured.Unstructured) error {
	f.log.Debug("deleting object",
		"kind", obj.GetKind(), "namespace", obj.GetNamespace(), "name", obj.GetName())
	if err := f.Client.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete %s %s: %w", obj.GetKind(), obj.GetName(), err)
	}
	key := client.ObjectKeyFromObject(obj)
	return wait.PollUntilContextTimeout(ctx, f.PollInterval, f.DeleteWait, true,
		func(ctx context.Context) (bool, error) {
			probe := &unstructured.Unstructured{}
			probe.SetGroupVersionKind(obj.GroupVersionKind())
			err := f.Client.Get(ctx, key, probe)
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			return false, nil
		})
}

// Applied returns the objects currently tracked for teardown, oldest first.
func (f *Fixture) Applied() []*unstructured.Unstructured {
	out := make([]*unstructured.Unstructured, len(f.applied))
	copy(out, f.applied)
	return out
}
