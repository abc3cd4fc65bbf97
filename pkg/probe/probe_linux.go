//go:build linux

package probe

import (
	"fmt"
	"net"
	"strings"

	"github.com/containernetworking/plugins/pkg/utils/sysctl"
	"github.com/vishvananda/netlink"
)

// gatherNetwork collects interface, route and forwarding state through
// netlink. Partial results are returned alongside the first error.
func gatherNetwork() ([]Interface, []Route, bool, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to list links: %w", err)
	}

	byIndex := make(map[int]string, len(links))
	var ifaces []Interface
	for _, link := range links {
		attrs := link.Attrs()
		byIndex[attrs.Index] = attrs.Name
		iface := Interface{
			Name:  attrs.Name,
			Index: attrs.Index,
			MTU:   attrs.MTU,
			Up:    attrs.Flags&net.FlagUp != 0,
		}
		if attrs.HardwareAddr != nil {
			iface.MAC = attrs.HardwareAddr.String()
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		if err != nil {
			return ifaces, nil, false, fmt.Errorf("failed to list addresses on %s: %w", attrs.Name, err)
		}
		for _, addr := range addrs {
			iface.Addresses = append(iface.Addresses, addr.IPNet.String())
		}
		ifaces = append(ifaces, iface)
	}

	rawRoutes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return ifaces, nil, false, fmt.Errorf("failed to list routes: %w", err)
	}
	var routes []Route
	for _, r := range rawRoutes {
		route := Route{
			Destination: "default",
			Table:       r.Table,
			Priority:    r.Priority,
			Interface:   byIndex[r.LinkIndex],
		}
		if r.Dst != nil {
			route.Destination = r.Dst.String()
		}
		if r.Gw != nil {
			route.Gateway = r.Gw.String()
		}
		routes = append(routes, route)
	}

	ipForward, err := kernelIPForward()
	if err != nil {
		return ifaces, routes, false, err
	}
	return ifaces, routes, ipForward, nil
}

func kernelIPForward() (bool, error) {
	value, err := sysctl.Sysctl("net/ipv4/ip_forward")
	if err != nil {
		return false, fmt.Errorf("failed to read ip_forward: %w", err)
	}
	return strings.TrimSpace(value) == "1", nil
}
