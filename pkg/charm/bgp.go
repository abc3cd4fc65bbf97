// Package charm models the configuration surface of the CNI charms the
// harness drives: BGP speaker and peer config documents, the kubectl
// invocation the charm code uses on units, the charm's hook state
// machine, and Tigera EE licensing material.
package charm

import (
	"fmt"
	"net"
	"strings"

	"gopkg.in/yaml.v3"
)

// BGP speaker log levels, 0 (quiet) through 5 (most verbose).
const (
	BGPLogLevelMin = 0
	BGPLogLevelMax = 5
)

// maxASNumber is the top of the 32-bit AS number range.
const maxASNumber = 4294967295

// BGPSpeaker describes one BGP speaker instance scheduled by node
// selector.
type BGPSpeaker struct {
	Name              string `yaml:"name"`
	NodeSelector      string `yaml:"node-selector"`
	NeighborAddress   string `yaml:"neighbor-address"`
	NeighborAS        int    `yaml:"neighbor-as"`
	ClusterAS         int    `yaml:"cluster-as"`
	AnnounceClusterIP bool   `yaml:"announce-cluster-ip"`
	LogLevel          int    `yaml:"log-level"`
}

// BGPPeer describes one external peer the speakers should session with.
type BGPPeer struct {
	Address  string `yaml:"address"`
	ASNumber int    `yaml:"as-number"`
}

// Validate checks the speaker for fields the charm would reject.
func (s *BGPSpeaker) Validate() error {
	var problems []string
	if !isRFC1123Label(s.Name) {
		problems = append(problems, fmt.Sprintf("name %q is not a valid RFC 1123 label", s.Name))
	}
	if key, value, ok := strings.Cut(s.NodeSelector, "="); !ok || key == "" || value == "" {
		problems = append(problems, fmt.Sprintf("node-selector %q is not of the form key=value", s.NodeSelector))
	}
	if net.ParseIP(s.NeighborAddress) == nil {
		problems = append(problems, fmt.Sprintf("neighbor-address %q is not a parseable IP", s.NeighborAddress))
	}
	if s.NeighborAS < 1 || s.NeighborAS > maxASNumber {
		problems = append(problems, fmt.Sprintf("neighbor-as %d out of range 1..%d", s.NeighborAS, maxASNumber))
	}
	if s.ClusterAS < 1 || s.ClusterAS > maxASNumber {
		problems = append(problems, fmt.Sprintf("cluster-as %d out of range 1..%d", s.ClusterAS, maxASNumber))
	}
	if s.LogLevel < BGPLogLevelMin || s.LogLevel > BGPLogLevelMax {
		problems = append(problems, fmt.Sprintf("log-level %d out of range %d..%d",
			s.LogLevel, BGPLogLevelMin, BGPLogLevelMax))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid BGP speaker %q:\n  - %s", s.Name, strings.Join(problems, "\n  - "))
	}
	return nil
}

// Validate checks the peer for fields the charm would reject.
func (p *BGPPeer) Validate() error {
	var problems []string
	if net.ParseIP(p.Address) == nil {
		problems = append(problems, fmt.Sprintf("address %q is not a parseable IP", p.Address))
	}
	if p.ASNumber < 1 || p.ASNumber > maxASNumber {
		problems = append(problems, fmt.Sprintf("as-number %d out of range 1..%d", p.ASNumber, maxASNumber))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid BGP peer %q:\n  - %s", p.Address, strings.Join(problems, "\n  - "))
	}
	return nil
}

// isRFC1123Label reports whether s is a lowercase DNS label of at most
// 63 characters, alphanumeric at both ends.
func isRFC1123Label(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if i == 0 || i == len(s)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RenderBGPSpeakers renders the bgp-speakers charm config value, a YAML
// list the charm parses on config-changed.
func RenderBGPSpeakers(speakers []BGPSpeaker) (string, error) {
	for i := range speakers {
		if err := speakers[i].Validate(); err != nil {
			return "", err
		}
	}
	out, err := yaml.Marshal(speakers)
	if err != nil {
		return "", fmt.Errorf("failed to render bgp-speakers: %w", err)
	}
	return string(out), nil
}

// RenderBGPPeers renders the bgp-peers charm config value.
func RenderBGPPeers(peers []BGPPeer) (string, error) {
	for i := range peers {
		if err := peers[i].Validate(); err != nil {
			return "", err
		}
	}
	out, err := yaml.Marshal(peers)
	if err != nil {
		return "", fmt.Errorf("failed to render bgp-peers: %w", err)
	}
	return string(out), nil
}

// ParseBGPSpeakers parses a bgp-speakers config value back into speakers.
func ParseBGPSpeakers(raw string) ([]BGPSpeaker, error) {
	var speakers []BGPSpeaker
	if err := yaml.Unmarshal([]byte(raw), &speakers); err != nil {
		return nil, fmt.Errorf("failed to parse bgp-speakers: %w", err)
	}
	return speakers, nil
}

// ParseBGPPeers parses a bgp-peers config value back into peers.
func ParseBGPPeers(raw string) ([]BGPPeer, error) {
	var peers []BGPPeer
	if err := yaml.Unmarshal([]byte(raw), &peers); err != nil {
		return nil, fmt.Errorf("failed to parse bgp-peers: %w", err)
	}
	return peers, nil
}

// SpeakerForUnit builds a speaker pinned to one worker node peering with
// one bird unit. The harness uses this to stitch worker/bird pairs into
// a bgp-speakers document.
func SpeakerForUnit(name, nodeHostname, birdAddress string, clusterAS, birdAS int) BGPSpeaker {
	return BGPSpeaker{
		Name:              name,
		NodeSelector:      fmt.Sprintf("kubernetes.io/hostname=%s", nodeHostname),
		NeighborAddress:   birdAddress,
		NeighborAS:        birdAS,
		ClusterAS:         clusterAS,
		AnnounceClusterIP: true,
		LogLevel:          BGPLogLevelMax,
	}
}
