package kube

import (
	"context"
	"testing"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

func newTestFixture(t *testing.T) (*Fixture, client.Client) {
	t.Helper()
	scheme, err := NewScheme()
	if err != nil {
		t.Fatalf("failed to build scheme: %v", err)
	}
	c := fake.NewClientBuilder().WithScheme(scheme).Build()
	log, err := logging.NewLogger(logging.Options{Level: "error", Format: "text"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	f := NewFixture(c, log)
	f.PollInterval = 5 * time.Millisecond
	f.DeleteWait = time.Second
	return f, c
}

func configMap(name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"})
	obj.SetNamespace("default")
	obj.SetName(name)
	return obj
}

func TestFixtureApplyAndTeardown(t *testing.T) {
	ctx := context.Background()
	f, c := newTestFixture(t)

	if err := f.Apply(ctx, configMap("one"), configMap("two")); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got := len(f.Applied()); got != 2 {
		t.Fatalf("expected 2 tracked objects, got %d", got)
	}

	probe := configMap("one")
	if err := c.Get(ctx, client.ObjectKeyFromObject(probe), probe); err != nil {
		t.Fatalf("object should exist after apply: %v", err)
	}

	if err := f.Teardown(ctx); err != nil {
		t.Fatalf("teardown failed: %v", err)
	}
	err := c.Get(ctx, client.ObjectKeyFromObject(probe), configMap("one"))
	if !apierrors.IsNotFound(err) {
		t.Errorf("expected object gone after teardown, got %v", err)
	}
	if got := len(f.Applied()); got != 0 {
		t.Errorf("expected tracking cleared after teardown, got %d", got)
	}
}

func TestFixtureApplyUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	f, c := newTestFixture(t)

	first := configMap("shared")
	first.Object["data"] = map[string]interface{}{"rev": "1"}
	if err := f.Apply(ctx, first); err != nil {
		t.Fatalf("initial apply failed: %v", err)
	}

	second := configMap("shared")
	second.Object["data"] = map[string]interface{}{"rev": "2"}
	if err := f.Apply(ctx, second); err != nil {
		t.Fatalf("re-apply failed: %v", err)
	}

	live := configMap("shared")
	if err := c.Get(ctx, client.ObjectKeyFromObject(live), live); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	data, _, _ := unstructured.NestedStringMap(live.Object, "data")
	if data["rev"] != "2" {
		t.Errorf("expected updated data, got %v", data)
	}
}

func TestFixtureTeardownIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f, c := newTestFixture(t)

	obj := configMap("victim")
	if err := f.Apply(ctx, obj); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	// Delete out of band; teardown must not fail on the missing object.
	if err := c.Delete(ctx, obj); err != nil {
		t.Fatalf("out of band delete failed: %v", err)
	}
	if err := f.Teardown(ctx); err != nil {
		t.Errorf("teardown should tolerate already deleted objects: %v", err)
	}
}
