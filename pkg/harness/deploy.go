package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmed-network/kube-ovn-harness/pkg/charm"
	"github.com/charmed-network/kube-ovn-harness/pkg/juju"
	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
	"github.com/charmed-network/kube-ovn-harness/pkg/probe"
)

// Application names used in the scratch k8s model and the machine model.
const (
	MultusApp     = "multus"
	GrafanaApp    = "grafana"
	PrometheusApp = "prometheus"
	BirdApp       = "bird"
)

// DeployMultus deploys the multus charm into the scratch model and
// waits until every worker has the multus CNI config installed.
func (h *Harness) DeployMultus(ctx context.Context) error {
	if err := h.Juju.Deploy(ctx, h.K8sModel, juju.DeployArgs{
		Entity:      "multus",
		Application: MultusApp,
		Channel:     h.Config.Charm.Channel,
		Trust:       true,
	}); err != nil {
		return err
	}
	h.pushCleanup("remove multus", func(ctx context.Context) error {
		if h.Config.Juju.KeepModels {
			return nil
		}
		if err := h.Juju.RemoveApplication(ctx, h.K8sModel, MultusApp); err != nil {
			return err
		}
		return h.Juju.WaitForApplicationGone(ctx, h.K8sModel, MultusApp,
			h.Config.Timeouts.PollInterval, h.Config.Timeouts.Teardown)
	})

	if err := h.Juju.WaitForActive(ctx, h.K8sModel,
		h.Config.Timeouts.PollInterval, h.Config.Timeouts.Deploy, MultusApp); err != nil {
		return err
	}
	return h.waitForWorkerCNIConfig(ctx, "00-multus.conf", MultusNetwork)
}

// MultusNetwork is the CNI network name multus installs on the workers.
const MultusNetwork = "multus-cni-network"

// probeRemotePath is where the harness-probe binary lands on a unit.
const probeRemotePath = "/tmp/harness-probe"

// waitForWorkerCNIConfig polls every worker unit until the CNI network
// shows up in its config directory. Multus writes its config out of
// band of charm status, so active units alone do not mean the workers
// are ready. When a probe binary is configured it is copied to the
// units and its report checked for the network; otherwise the directory
// listing is checked for the config file.
func (h *Harness) waitForWorkerCNIConfig(ctx context.Context, filename, network string) error {
	status, err := h.Juju.Status(ctx, h.Config.Juju.MachineModel)
	if err != nil {
		return err
	}
	app, ok := status.Applications[h.Config.Charm.WorkerApp]
	if !ok {
		return fmt.Errorf("application %s not found in model %s",
			h.Config.Charm.WorkerApp, h.Config.Juju.MachineModel)
	}

	probeBinary := h.Config.Paths.ProbeBinary
	for unit := range app.Units {
		unit := unit
		if probeBinary != "" {
			if err := h.Juju.SCP(ctx, h.Config.Juju.MachineModel,
				probeBinary, unit, probeRemotePath); err != nil {
				return err
			}
		}
		err := h.Juju.WaitForCondition(ctx,
			fmt.Sprintf("CNI network %s on %s", network, unit),
			h.Config.Timeouts.PollInterval, h.Config.Timeouts.Deploy,
			func(ctx context.Context) (bool, string, error) {
				if probeBinary != "" {
					result, err := h.Juju.SSH(ctx, h.Config.Juju.MachineModel, unit,
						probeRemotePath, "--cni-conf-dir", "/etc/cni/net.d")
					if err != nil {
						return false, "probe run failed", nil
					}
					return probeReportsNetwork([]byte(result.Stdout), network)
				}
				result, err := h.Juju.SSH(ctx, h.Config.Juju.MachineModel, unit,
					"ls", "/etc/cni/net.d")
				if err != nil {
					return false, "ssh failed", nil
				}
				if strings.Contains(result.Stdout, filename) {
					return true, "", nil
				}
				return false, fmt.Sprintf("files: %s", strings.TrimSpace(result.Stdout)), nil
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// probeReportsNetwork decides a CNI readiness poll from a probe report.
func probeReportsNetwork(out []byte, network string) (bool, string, error) {
	report, err := probe.ParseReport(out)
	if err != nil {
		return false, fmt.Sprintf("unreadable report: %v", err), nil
	}
	if report.HasNetwork(network) {
		return true, "", nil
	}
	names := make([]string, 0, len(report.CNIConfigs))
	for _, conf := range report.CNIConfigs {
		names = append(names, conf.Name)
	}
	return false, fmt.Sprintf("networks: %s", strings.Join(names, ", ")), nil
}

// DeployObservability deploys grafana and prometheus into the scratch
// model and cross-model relates them to the CNI charm in the machine
// model. Returns the grafana admin password obtained by action.
func (h *Harness) DeployObservability(ctx context.Context) (string, error) {
	for _, app := range []string{GrafanaApp, PrometheusApp} {
		app := app
		if err := h.Juju.Deploy(ctx, h.K8sModel, juju.DeployArgs{
			Entity:      app + "-k8s",
			Application: app,
			Channel:     h.Config.Charm.Channel,
			Trust:       true,
		}); err != nil {
			return "", err
		}
		h.pushCleanup("remove "+app, func(ctx context.Context) error {
			if h.Config.Juju.KeepModels {
				return nil
			}
			if err := h.Juju.RemoveApplication(ctx, h.K8sModel, app); err != nil {
				return err
			}
			return h.Juju.WaitForApplicationGone(ctx, h.K8sModel, app,
				h.Config.Timeouts.PollInterval, h.Config.Timeouts.Teardown)
		})
	}
	if err := h.Juju.WaitForActive(ctx, h.K8sModel,
		h.Config.Timeouts.PollInterval, h.Config.Timeouts.Deploy,
		GrafanaApp, PrometheusApp); err != nil {
		return "", err
	}

	relations := []struct {
		app, endpoint, saasEndpoint string
	}{
		{GrafanaApp, "grafana-dashboard", "grafana-dashboard"},
		{PrometheusApp, "metrics-endpoint", "prometheus-manual"},
	}
	cniApp := h.Config.Charm.Application
	for _, rel := range relations {
		rel := rel
		offerURL, err := h.Juju.Offer(ctx, h.K8sModel, rel.app, rel.endpoint)
		if err != nil {
			return "", err
		}
		h.pushCleanup("remove offer "+offerURL, func(ctx context.Context) error {
			if h.Config.Juju.KeepModels {
				return nil
			}
			return h.Juju.RemoveOffer(ctx, offerURL)
		})

		if err := h.Juju.Consume(ctx, h.Config.Juju.MachineModel, offerURL); err != nil {
			return "", err
		}
		h.pushCleanup("remove saas "+rel.app, func(ctx context.Context) error {
			if h.Config.Juju.KeepModels {
				return nil
			}
			return h.Juju.RemoveSaas(ctx, h.Config.Juju.MachineModel, rel.app)
		})

		if err := h.Juju.Relate(ctx, h.Config.Juju.MachineModel,
			cniApp+":"+rel.saasEndpoint, rel.app); err != nil {
			return "", err
		}
	}

	if err := h.Juju.WaitForActive(ctx, h.Config.Juju.MachineModel,
		h.Config.Timeouts.PollInterval, h.Config.Timeouts.Idle, cniApp); err != nil {
		return "", err
	}
	return h.GrafanaAdminPassword(ctx)
}

// GrafanaAdminPassword fetches the admin password from the grafana
// leader by action.
func (h *Harness) GrafanaAdminPassword(ctx context.Context) (string, error) {
	results, err := h.Juju.RunAction(ctx, h.K8sModel, GrafanaApp+"/0", "get-admin-password")
	if err != nil {
		return "", err
	}
	password, ok := results["admin-password"].(string)
	if !ok || password == "" {
		return "", fmt.Errorf("get-admin-password returned no admin-password: %v", results)
	}
	return password, nil
}

// DeployBird deploys the bird BGP daemon into the machine model with
// one unit per worker node.
func (h *Harness) DeployBird(ctx context.Context, units int) error {
	if units < 1 {
		units = 1
	}
	if err := h.Juju.Deploy(ctx, h.Config.Juju.MachineModel, juju.DeployArgs{
		Entity:      "bird",
		Application: BirdApp,
		NumUnits:    units,
	}); err != nil {
		return err
	}
	h.pushCleanup("remove bird", func(ctx context.Context) error {
		if h.Config.Juju.KeepModels {
			return nil
		}
		if err := h.Juju.RemoveApplication(ctx, h.Config.Juju.MachineModel, BirdApp); err != nil {
			return err
		}
		return h.Juju.WaitForApplicationGone(ctx, h.Config.Juju.MachineModel, BirdApp,
			h.Config.Timeouts.PollInterval, h.Config.Timeouts.Teardown)
	})
	return h.Juju.WaitForActive(ctx, h.Config.Juju.MachineModel,
		h.Config.Timeouts.PollInterval, h.Config.Timeouts.Deploy, BirdApp)
}

// ConfigureBGP pairs each worker node with a bird unit and pushes the
// bgp-speakers document to the CNI charm and the bgp-peers document to
// bird, so bird sessions back to the worker addresses. Both keys are
// reset on teardown.
func (h *Harness) ConfigureBGP(ctx context.Context, clusterAS, birdAS int) error {
	workers, err := kube.WorkerNodes(ctx, h.Kube, h.Config.Charm.WorkerApp)
	if err != nil {
		return err
	}
	nodeNames := make([]string, 0, len(workers))
	for _, node := range workers {
		nodeNames = append(nodeNames, node.Name)
	}

	status, err := h.Juju.Status(ctx, h.Config.Juju.MachineModel)
	if err != nil {
		return err
	}
	birdAddrs, err := unitAddresses(status, BirdApp)
	if err != nil {
		return err
	}
	workerAddrs, err := unitAddresses(status, h.Config.Charm.WorkerApp)
	if err != nil {
		return err
	}

	speakers, peers := buildBGPConfig(nodeNames, workerAddrs, birdAddrs, clusterAS, birdAS)
	speakersYAML, err := charm.RenderBGPSpeakers(speakers)
	if err != nil {
		return err
	}
	peersYAML, err := charm.RenderBGPPeers(peers)
	if err != nil {
		return err
	}

	cniApp := h.Config.Charm.Application
	if err := h.Juju.SetConfig(ctx, h.Config.Juju.MachineModel, cniApp, map[string]string{
		"bgp-speakers": speakersYAML,
	}); err != nil {
		return err
	}
	if err := h.Juju.SetConfig(ctx, h.Config.Juju.MachineModel, BirdApp, map[string]string{
		"bgp-peers": peersYAML,
	}); err != nil {
		return err
	}
	h.pushCleanup("reset bgp config", func(ctx context.Context) error {
		if h.Config.Juju.KeepModels {
			return nil
		}
		if err := h.Juju.SetConfig(ctx, h.Config.Juju.MachineModel, cniApp, map[string]string{
			"bgp-speakers": "",
		}); err != nil {
			return err
		}
		return h.Juju.SetConfig(ctx, h.Config.Juju.MachineModel, BirdApp, map[string]string{
			"bgp-peers": "",
		})
	})

	return h.Juju.WaitForActive(ctx, h.Config.Juju.MachineModel,
		h.Config.Timeouts.PollInterval, h.Config.Timeouts.Idle, cniApp, BirdApp)
}

// unitAddresses returns the public addresses of app's units in unit
// name order. Every unit must have an address already.
func unitAddresses(status *juju.Status, app string) ([]string, error) {
	appStatus, ok := status.Applications[app]
	if !ok {
		return nil, fmt.Errorf("application %s not found in model %s", app, status.Model.Name)
	}
	if len(appStatus.Units) == 0 {
		return nil, fmt.Errorf("application %s has no units", app)
	}
	names := make([]string, 0, len(appStatus.Units))
	for unit := range appStatus.Units {
		names = append(names, unit)
	}
	sort.Strings(names)
	addrs := make([]string, 0, len(names))
	for _, unit := range names {
		addr := appStatus.Units[unit].PublicAddress
		if addr == "" {
			return nil, fmt.Errorf("unit %s has no public address yet", unit)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// buildBGPConfig builds the two halves of the BGP relation: one speaker
// per worker node, each assigned a bird address round-robin, and one
// bird peer entry per worker address carrying the cluster AS.
func buildBGPConfig(nodeNames, workerAddrs, birdAddrs []string, clusterAS, birdAS int) ([]charm.BGPSpeaker, []charm.BGPPeer) {
	speakers := make([]charm.BGPSpeaker, 0, len(nodeNames))
	for i, name := range nodeNames {
		addr := birdAddrs[i%len(birdAddrs)]
		speakers = append(speakers, charm.SpeakerForUnit(
			fmt.Sprintf("speaker-%d", i), name, addr, clusterAS, birdAS))
	}
	peers := make([]charm.BGPPeer, 0, len(workerAddrs))
	for _, addr := range workerAddrs {
		peers = append(peers, charm.BGPPeer{Address: addr, ASNumber: clusterAS})
	}
	return speakers, peers
}
