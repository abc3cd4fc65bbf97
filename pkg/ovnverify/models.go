// Package ovnverify provides read-only verification against the OVN
// Northbound database. The harness uses it to confirm that subnets and
// pods applied through Kubernetes materialized as the expected logical
// network objects.
//
// OVN Northbound tables monitored:
// - Logical_Switch: one per kube-ovn subnet, named after the subnet
// - Logical_Switch_Port: one per pod attached to a subnet
// - Logical_Router: the cluster router joining subnets
package ovnverify

import (
	"github.com/ovn-org/libovsdb/model"
)

// LogicalSwitch is an OVN Logical Switch row. Kube-ovn records the
// subnet CIDR in other_config under the "subnet" key.
type LogicalSwitch struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Ports       []string          `ovsdb:"ports"`
	ACLs        []string          `ovsdb:"acls"`
	OtherConfig map[string]string `ovsdb:"other_config"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// LogicalSwitchPort is an OVN Logical Switch Port row. Kube-ovn names
// pod ports "podName.namespace".
type LogicalSwitchPort struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Addresses   []string          `ovsdb:"addresses"`
	Type        string            `ovsdb:"type"`
	Options     map[string]string `ovsdb:"options"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
	Up          *bool             `ovsdb:"up"`
}

// LogicalRouter is an OVN Logical Router row.
type LogicalRouter struct {
	UUID         string            `ovsdb:"_uuid"`
	Name         string            `ovsdb:"name"`
	Ports        []string          `ovsdb:"ports"`
	StaticRoutes []string          `ovsdb:"static_routes"`
	Policies     []string          `ovsdb:"policies"`
	ExternalIDs  map[string]string `ovsdb:"external_ids"`
}

// LogicalRouterPolicy is an OVN policy routing rule. External egress
// gateways show up here as reroute policies.
type LogicalRouterPolicy struct {
	UUID        string            `ovsdb:"_uuid"`
	Priority    int               `ovsdb:"priority"`
	Match       string            `ovsdb:"match"`
	Action      string            `ovsdb:"action"`
	Nexthops    []string          `ovsdb:"nexthops"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// NBDBModel builds the client database model for the subset of the
// Northbound schema the verifier monitors.
func NBDBModel() (model.ClientDBModel, error) {
	return model.NewClientDBModel("OVN_Northbound", map[string]model.Model{
		"Logical_Switch":        &LogicalSwitch{},
		"Logical_Switch_Port":   &LogicalSwitchPort{},
		"Logical_Router":        &LogicalRouter{},
		"Logical_Router_Policy": &LogicalRouterPolicy{},
	})
}
