// Package main provides the entry point for harness-probe.
//
// harness-probe prints a JSON report of node networking state: installed
// CNI configurations, interfaces, routes and the kernel ip_forward
// setting. The harness copies this binary to worker units and runs it
// over juju ssh when a test needs node-level diagnostics.
//
// Usage:
//
//	harness-probe [flags]
//
// Flags:
//
//	--cni-conf-dir string  CNI config directory (default: /etc/cni/net.d)
//	--network string       Exit non-zero unless this CNI network is installed
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmed-network/kube-ovn-harness/pkg/probe"
)

var (
	// Version information (set at build time)
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	cniConfDir := flag.String("cni-conf-dir", probe.DefaultCNIConfDir,
		"CNI config directory to scan")
	network := flag.String("network", "",
		"Exit non-zero unless this CNI network is installed")
	printVersion := flag.Bool("version", false,
		"Print version information and exit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("harness-probe %s (commit: %s)\n", version, gitCommit)
		os.Exit(0)
	}

	report := probe.Gather(*cniConfDir)
	out, err := report.JSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *network != "" && !report.HasNetwork(*network) {
		fmt.Fprintf(os.Stderr, "CNI network %q is not installed\n", *network)
		os.Exit(2)
	}
	if len(report.ProbeErrors) > 0 {
		os.Exit(3)
	}
}
