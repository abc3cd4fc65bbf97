// Package probe gathers node-level networking facts for debugging a CNI
// deployment: installed CNI configurations, interface and route state,
// and kernel forwarding settings. The harness ships the probe binary to
// worker units and collects its JSON report when a test fails.
package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/containernetworking/cni/libcni"
)

// DefaultCNIConfDir is where kubelet looks for CNI network configs.
const DefaultCNIConfDir = "/etc/cni/net.d"

// CNIConf summarizes one installed CNI network configuration.
type CNIConf struct {
	// Path is the config file location
	Path string `json:"path"`

	// Name is the network name from the config
	Name string `json:"name"`

	// Type is the plugin type, or the plugin chain for conflists
	Plugins []string `json:"plugins"`
}

// Interface summarizes one network interface on the node.
type Interface struct {
	Name      string   `json:"name"`
	Index     int      `json:"index"`
	MTU       int      `json:"mtu"`
	MAC       string   `json:"mac,omitempty"`
	Up        bool     `json:"up"`
	Addresses []string `json:"addresses,omitempty"`
}

// Route summarizes one route table entry.
type Route struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
	Interface   string `json:"interface,omitempty"`
	Table       int    `json:"table,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// Report is the full probe output for one node.
type Report struct {
	Hostname    string      `json:"hostname"`
	CNIConfigs  []CNIConf   `json:"cniConfigs"`
	Interfaces  []Interface `json:"interfaces"`
	Routes      []Route     `json:"routes"`
	IPForward   bool        `json:"ipForward"`
	ProbeErrors []string    `json:"probeErrors,omitempty"`
}

// Gather collects a full report. Collection errors are recorded in the
// report rather than aborting it so a partially broken node still
// produces useful output.
func Gather(cniConfDir string) *Report {
	report := &Report{}
	if hostname, err := os.Hostname(); err == nil {
		report.Hostname = hostname
	}

	confs, err := ScanCNIConfigs(cniConfDir)
	if err != nil {
		report.ProbeErrors = append(report.ProbeErrors, fmt.Sprintf("cni configs: %v", err))
	}
	report.CNIConfigs = confs

	ifaces, routes, ipForward, err := gatherNetwork()
	if err != nil {
		report.ProbeErrors = append(report.ProbeErrors, fmt.Sprintf("network state: %v", err))
	}
	report.Interfaces = ifaces
	report.Routes = routes
	report.IPForward = ipForward
	return report
}

// ScanCNIConfigs lists the CNI network configurations in dir, in the
// lexical order kubelet would consider them.
func ScanCNIConfigs(dir string) ([]CNIConf, error) {
	if dir == "" {
		dir = DefaultCNIConfDir
	}
	files, err := libcni.ConfFiles(dir, []string{".conf", ".conflist", ".json"})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)

	var confs []CNIConf
	for _, file := range files {
		conf, err := loadCNIConf(file)
		if err != nil {
			return confs, err
		}
		confs = append(confs, conf)
	}
	return confs, nil
}

func loadCNIConf(path string) (CNIConf, error) {
	confList, err := libcni.ConfListFromFile(path)
	if err == nil {
		conf := CNIConf{Path: path, Name: confList.Name}
		for _, plugin := range confList.Plugins {
			conf.Plugins = append(conf.Plugins, plugin.Network.Type)
		}
		return conf, nil
	}
	// Not a conflist, try a single-plugin conf.
	single, err := libcni.ConfFromFile(path)
	if err != nil {
		return CNIConf{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return CNIConf{
		Path:    path,
		Name:    single.Network.Name,
		Plugins: []string{single.Network.Type},
	}, nil
}

// HasNetwork reports whether a network with the given name is installed.
func (r *Report) HasNetwork(name string) bool {
	for _, conf := range r.CNIConfigs {
		if conf.Name == name {
			return true
		}
	}
	return false
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ParseReport decodes a report produced by JSON.
func ParseReport(data []byte) (*Report, error) {
	report := &Report{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to parse probe report: %w", err)
	}
	return report, nil
}
