package ovnverify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/ovn-org/libovsdb/client"

	"github.com/charmed-network/kube-ovn-harness/pkg/config"
	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// Client wraps a monitoring libovsdb connection to the Northbound
// database. All access is read-only; the harness never writes to OVN.
type Client struct {
	ovs client.Client
	log *logging.Logger
}

// Connect dials the Northbound database, retrying with exponential
// backoff until the connect timeout, then starts a full monitor so the
// cache tracks the tables in NBDBModel.
func Connect(ctx context.Context, cfg *config.OVNConfig, log *logging.Logger) (*Client, error) {
	dbModel, err := NBDBModel()
	if err != nil {
		return nil, fmt.Errorf("failed to build NB DB model: %w", err)
	}

	opts := []client.Option{
		client.WithReconnect(cfg.ConnectTimeout, &backoff.ZeroBackOff{}),
	}
	for _, endpoint := range strings.Split(cfg.NBDBAddress, ",") {
		opts = append(opts, client.WithEndpoint(strings.TrimSpace(endpoint)))
	}
	if cfg.SSL.Enabled {
		tlsConfig, err := tlsConfigFromFiles(&cfg.SSL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithTLSConfig(tlsConfig))
	}

	ovs, err := client.NewOVSDBClient(dbModel, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OVSDB client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	connect := func() error { return ovs.Connect(connectCtx) }
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), connectCtx)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, &ConnectionError{Address: cfg.NBDBAddress, Cause: err}
	}

	if _, err := ovs.MonitorAll(ctx); err != nil {
		ovs.Close()
		return nil, fmt.Errorf("failed to start NB monitor: %w", err)
	}
	return &Client{ovs: ovs, log: log.WithName("ovnverify")}, nil
}

// Close disconnects from the database.
func (c *Client) Close() {
	if c.ovs != nil {
		c.ovs.Close()
	}
}

func tlsConfigFromFiles(ssl *config.SSLConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(ssl.ClientCert, ssl.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}
	caData, err := os.ReadFile(ssl.CACert)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("no certificates parsed from %s", ssl.CACert)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, nil
}

// LogicalSwitchByName looks up a logical switch in the monitored cache.
func (c *Client) LogicalSwitchByName(ctx context.Context, name string) (*LogicalSwitch, error) {
	var switches []LogicalSwitch
	err := c.ovs.WhereCache(func(ls *LogicalSwitch) bool {
		return ls.Name == name
	}).List(ctx, &switches)
	if err != nil {
		return nil, fmt.Errorf("failed to list logical switches: %w", err)
	}
	if len(switches) == 0 {
		return nil, &NotFoundError{ObjectType: "Logical_Switch", Name: name}
	}
	return &switches[0], nil
}

// PortsForPod looks up logical switch ports belonging to the given pod.
// Kube-ovn names pod ports "podName.namespace".
func (c *Client) PortsForPod(ctx context.Context, namespace, podName string) ([]LogicalSwitchPort, error) {
	wanted := fmt.Sprintf("%s.%s", podName, namespace)
	var ports []LogicalSwitchPort
	err := c.ovs.WhereCache(func(lsp *LogicalSwitchPort) bool {
		return lsp.Name == wanted
	}).List(ctx, &ports)
	if err != nil {
		return nil, fmt.Errorf("failed to list logical switch ports: %w", err)
	}
	return ports, nil
}

// ReroutePolicies lists router policies with the reroute action,
// optionally filtered by nexthop.
func (c *Client) ReroutePolicies(ctx context.Context, nexthop string) ([]LogicalRouterPolicy, error) {
	var policies []LogicalRouterPolicy
	err := c.ovs.WhereCache(func(p *LogicalRouterPolicy) bool {
		if p.Action != "reroute" {
			return false
		}
		if nexthop == "" {
			return true
		}
		for _, nh := range p.Nexthops {
			if nh == nexthop {
				return true
			}
		}
		return false
	}).List(ctx, &policies)
	if err != nil {
		return nil, fmt.Errorf("failed to list router policies: %w", err)
	}
	return policies, nil
}
