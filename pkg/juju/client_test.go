package juju

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

// newFakeClient builds a Client whose runner records invocations and
// returns the canned stdout.
func newFakeClient(controller, stdout string, calls *[][]string) *Client {
	c := NewClient("juju", controller, nil)
	c.runner.newCommand = fakeCommand(calls, stdout)
	return c
}

func lastCall(t *testing.T, calls [][]string) []string {
	t.Helper()
	if len(calls) == 0 {
		t.Fatal("no commands were run")
	}
	return calls[len(calls)-1]
}

func TestAddK8sCloudArgs(t *testing.T) {
	var calls [][]string
	c := newFakeClient("overlord", "", &calls)

	if err := c.AddK8sCloud(context.Background(), "scratch", "/tmp/kubeconfig"); err != nil {
		t.Fatalf("AddK8sCloud failed: %v", err)
	}
	want := []string{"juju", "add-k8s", "scratch", "--client", "--controller=overlord"}
	if got := lastCall(t, calls); !reflect.DeepEqual(got, want) {
		t.Errorf("expected args %v, got %v", want, got)
	}
}

func TestDeployArgs(t *testing.T) {
	var calls [][]string
	c := newFakeClient("overlord", "", &calls)

	err := c.Deploy(context.Background(), "scratch", DeployArgs{
		Entity:      "grafana-k8s",
		Application: "grafana",
		Channel:     "edge",
		Trust:       true,
	})
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	got := strings.Join(lastCall(t, calls), " ")
	want := "juju deploy -m overlord:scratch grafana-k8s grafana --channel edge --trust"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDeployRequiresEntity(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "", &calls)
	if err := c.Deploy(context.Background(), "m", DeployArgs{}); err == nil {
		t.Error("expected error for empty entity")
	}
	if len(calls) != 0 {
		t.Error("no command should run for invalid args")
	}
}

func TestModelFlagWithoutController(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "", &calls)
	if got := c.modelFlag("scratch"); got != "scratch" {
		t.Errorf("expected bare model name, got %q", got)
	}
	c = newFakeClient("overlord", "", &calls)
	if got := c.modelFlag("scratch"); got != "overlord:scratch" {
		t.Errorf("expected qualified model name, got %q", got)
	}
}

func TestRemoveApplicationValidatesName(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "", &calls)
	if err := c.RemoveApplication(context.Background(), "m", "Not_An_App"); err == nil {
		t.Error("expected error for invalid application name")
	}
	if len(calls) != 0 {
		t.Error("no command should run for an invalid name")
	}
}

func TestRelateUsesRelate(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "", &calls)
	if err := c.Relate(context.Background(), "m", "kube-ovn:grafana-dashboard", "grafana"); err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	want := []string{"juju", "relate", "-m", "m", "kube-ovn:grafana-dashboard", "grafana"}
	if got := lastCall(t, calls); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestOfferReturnsOfferName(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "", &calls)
	offer, err := c.Offer(context.Background(), "scratch", "grafana", "grafana-dashboard")
	if err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	if offer != "scratch.grafana" {
		t.Errorf("expected offer 'scratch.grafana', got %q", offer)
	}
	want := []string{"juju", "offer", "scratch.grafana:grafana-dashboard"}
	if got := lastCall(t, calls); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCloudsParsesNames(t *testing.T) {
	stdout := `
microk8s:
  defined: built-in
  type: k8s
scratch-cloud:
  type: k8s
`
	var calls [][]string
	c := newFakeClient("", stdout, &calls)
	clouds, err := c.Clouds(context.Background())
	if err != nil {
		t.Fatalf("Clouds failed: %v", err)
	}
	found := map[string]bool{}
	for _, name := range clouds {
		found[name] = true
	}
	if !found["microk8s"] || !found["scratch-cloud"] {
		t.Errorf("expected both clouds, got %v", clouds)
	}
}

func TestModelsParsesSummaries(t *testing.T) {
	stdout := `
models:
  - name: admin/default
    model-uuid: aaaa-bbbb
  - name: admin/test-kube-ovn-x1y2
    model-uuid: cccc-dddd
`
	var calls [][]string
	c := newFakeClient("", stdout, &calls)
	models, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[1].ModelUUID != "cccc-dddd" {
		t.Errorf("unexpected model UUID %q", models[1].ModelUUID)
	}
}

func TestRunActionCompleted(t *testing.T) {
	stdout := `
unit-grafana-0:
  id: "4"
  status: completed
  results:
    admin-password: s3cret
`
	var calls [][]string
	c := newFakeClient("", stdout, &calls)
	results, err := c.RunAction(context.Background(), "scratch", "grafana/0", "get-admin-password")
	if err != nil {
		t.Fatalf("RunAction failed: %v", err)
	}
	if results["admin-password"] != "s3cret" {
		t.Errorf("expected password in results, got %v", results)
	}

	got := strings.Join(lastCall(t, calls), " ")
	want := "juju run-action -m scratch grafana/0 get-admin-password --wait --format yaml"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRunActionFailed(t *testing.T) {
	stdout := `
unit-grafana-0:
  status: failed
  message: no such action
`
	var calls [][]string
	c := newFakeClient("", stdout, &calls)
	_, err := c.RunAction(context.Background(), "scratch", "grafana/0", "get-admin-password")
	if err == nil {
		t.Fatal("expected error for failed action")
	}
	if !strings.Contains(err.Error(), "no such action") {
		t.Errorf("error should carry the action message, got: %v", err)
	}
}

func TestRunActionValidatesUnit(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "", &calls)
	if _, err := c.RunAction(context.Background(), "m", "not-a-unit", "act"); err == nil {
		t.Error("expected error for invalid unit name")
	}
}

func TestShowUnit(t *testing.T) {
	stdout := `
bird/0:
  public-address: 10.5.0.17
  machine: "3"
  leader: true
`
	var calls [][]string
	c := newFakeClient("", stdout, &calls)
	info, err := c.ShowUnit(context.Background(), "m", "bird/0")
	if err != nil {
		t.Fatalf("ShowUnit failed: %v", err)
	}
	if info.PublicAddress != "10.5.0.17" {
		t.Errorf("unexpected address %q", info.PublicAddress)
	}
	if !info.Leader {
		t.Error("expected leader true")
	}
}

func TestLeaderKubeconfigEmpty(t *testing.T) {
	var calls [][]string
	c := newFakeClient("", "   \n", &calls)
	_, err := c.LeaderKubeconfig(context.Background(), "m", "kubernetes-control-plane")
	if err == nil {
		t.Fatal("expected error for empty kubeconfig")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSCPArgs(t *testing.T) {
	var calls [][]string
	c := newFakeClient("overlord", "", &calls)
	err := c.SCP(context.Background(), "kubernetes",
		"/tmp/harness-probe", "kubernetes-worker/0", "/tmp/harness-probe")
	if err != nil {
		t.Fatalf("SCP failed: %v", err)
	}
	want := []string{
		"juju", "scp", "-m", "overlord:kubernetes",
		"/tmp/harness-probe", "kubernetes-worker/0:/tmp/harness-probe",
	}
	if got := lastCall(t, calls); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDestroyModelArgs(t *testing.T) {
	var calls [][]string
	c := newFakeClient("overlord", "", &calls)
	if err := c.DestroyModel(context.Background(), "scratch"); err != nil {
		t.Fatalf("DestroyModel failed: %v", err)
	}
	want := []string{
		"juju", "destroy-model", "overlord:scratch",
		"--destroy-storage", "--force", "-y",
	}
	if got := lastCall(t, calls); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
