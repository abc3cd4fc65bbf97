package harness

import (
	"strings"
	"testing"

	"github.com/charmed-network/kube-ovn-harness/pkg/juju"
	"github.com/charmed-network/kube-ovn-harness/pkg/probe"
)

func TestBuildBGPConfig(t *testing.T) {
	nodeNames := []string{"worker-0", "worker-1", "worker-2"}
	workerAddrs := []string{"10.5.0.20", "10.5.0.21", "10.5.0.22"}
	birdAddrs := []string{"10.5.0.17", "10.5.0.18"}

	speakers, peers := buildBGPConfig(nodeNames, workerAddrs, birdAddrs, 64512, 64513)

	if len(speakers) != 3 {
		t.Fatalf("expected one speaker per worker node, got %d", len(speakers))
	}
	for i, s := range speakers {
		wantAddr := birdAddrs[i%len(birdAddrs)]
		if s.NeighborAddress != wantAddr {
			t.Errorf("speaker %d: expected bird neighbor %s, got %s", i, wantAddr, s.NeighborAddress)
		}
		if s.NeighborAS != 64513 || s.ClusterAS != 64512 {
			t.Errorf("speaker %d: unexpected AS pair %d/%d", i, s.NeighborAS, s.ClusterAS)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("speaker %d should validate: %v", i, err)
		}
	}

	if len(peers) != 3 {
		t.Fatalf("expected one bird peer per worker unit, got %d", len(peers))
	}
	for i, p := range peers {
		if p.Address != workerAddrs[i] {
			t.Errorf("peer %d: expected worker address %s, got %s", i, workerAddrs[i], p.Address)
		}
		if p.ASNumber != 64512 {
			t.Errorf("peer %d: bird must session with the cluster AS, got %d", i, p.ASNumber)
		}
	}
}

func TestProbeReportsNetwork(t *testing.T) {
	report := &probe.Report{
		Hostname: "worker-0",
		CNIConfigs: []probe.CNIConf{
			{Path: "/etc/cni/net.d/00-multus.conf", Name: "multus-cni-network", Plugins: []string{"multus"}},
			{Path: "/etc/cni/net.d/01-kube-ovn.conflist", Name: "kube-ovn", Plugins: []string{"kube-ovn"}},
		},
	}
	out, err := report.JSON()
	if err != nil {
		t.Fatalf("failed to render report: %v", err)
	}

	ready, _, err := probeReportsNetwork(out, MultusNetwork)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Error("expected report with multus network to be ready")
	}

	ready, detail, err := probeReportsNetwork(out, "sriov")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Error("missing network must not report ready")
	}
	if !strings.Contains(detail, "kube-ovn") {
		t.Errorf("detail should list installed networks, got %q", detail)
	}

	ready, detail, err = probeReportsNetwork([]byte("ls: not json"), MultusNetwork)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Error("unparseable output must not report ready")
	}
	if !strings.Contains(detail, "unreadable") {
		t.Errorf("detail should flag the bad report, got %q", detail)
	}
}

func TestUnitAddresses(t *testing.T) {
	status := &juju.Status{
		Model: juju.ModelStatus{Name: "test-model"},
		Applications: map[string]juju.ApplicationStatus{
			"kubernetes-worker": {Units: map[string]juju.UnitStatus{
				"kubernetes-worker/1": {PublicAddress: "10.5.0.21"},
				"kubernetes-worker/0": {PublicAddress: "10.5.0.20"},
			}},
			"bird": {Units: map[string]juju.UnitStatus{
				"bird/0": {PublicAddress: ""},
			}},
			"idle": {},
		},
	}

	addrs, err := unitAddresses(status, "kubernetes-worker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != "10.5.0.20" || addrs[1] != "10.5.0.21" {
		t.Errorf("expected addresses in unit order, got %v", addrs)
	}

	if _, err := unitAddresses(status, "bird"); err == nil {
		t.Error("expected error for unit without an address")
	}
	if _, err := unitAddresses(status, "idle"); err == nil {
		t.Error("expected error for application without units")
	}
	if _, err := unitAddresses(status, "missing"); err == nil {
		t.Error("expected error for unknown application")
	}
}
