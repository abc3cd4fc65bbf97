package ovnverify

import (
	"context"
	"fmt"

	kubeovnv1 "github.com/charmed-network/kube-ovn-harness/api/v1"
)

// VerifySubnet checks that a Subnet materialized as a Logical Switch
// with matching CIDR and exclude list. Returns NotFoundError if the
// switch is absent, MismatchError if it disagrees with the subnet.
func (c *Client) VerifySubnet(ctx context.Context, subnet *kubeovnv1.Subnet) error {
	name := subnet.LogicalSwitchName()
	ls, err := c.LogicalSwitchByName(ctx, name)
	if err != nil {
		return err
	}

	if got := ls.OtherConfig["subnet"]; got != subnet.Spec.CIDRBlock {
		return &MismatchError{
			ObjectType: "Logical_Switch",
			Name:       name,
			Field:      "other_config:subnet",
			Want:       subnet.Spec.CIDRBlock,
			Got:        got,
		}
	}

	if len(subnet.Spec.ExcludeIPs) > 0 {
		excluded := ls.OtherConfig["exclude_ips"]
		for _, ip := range subnet.Spec.ExcludeIPs {
			if !containsToken(excluded, ip) {
				return &MismatchError{
					ObjectType: "Logical_Switch",
					Name:       name,
					Field:      "other_config:exclude_ips",
					Want:       ip,
					Got:        excluded,
				}
			}
		}
	}

	c.log.Debug("subnet verified against NB DB",
		"subnet", subnet.Name, "switch", name, "cidr", subnet.Spec.CIDRBlock)
	return nil
}

// VerifyPodPort checks that a pod attached to a subnet got a logical
// switch port on that subnet's switch, and that the port is up.
func (c *Client) VerifyPodPort(ctx context.Context, namespace, podName string, subnet *kubeovnv1.Subnet) error {
	ports, err := c.PortsForPod(ctx, namespace, podName)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		return &NotFoundError{
			ObjectType: "Logical_Switch_Port",
			Name:       fmt.Sprintf("%s.%s", podName, namespace),
		}
	}

	ls, err := c.LogicalSwitchByName(ctx, subnet.LogicalSwitchName())
	if err != nil {
		return err
	}
	for _, port := range ports {
		if !containsString(ls.Ports, port.UUID) {
			return &MismatchError{
				ObjectType: "Logical_Switch_Port",
				Name:       port.Name,
				Field:      "switch",
				Want:       ls.Name,
				Got:        "not attached",
			}
		}
		if port.Up == nil || !*port.Up {
			return &MismatchError{
				ObjectType: "Logical_Switch_Port",
				Name:       port.Name,
				Field:      "up",
				Want:       "true",
				Got:        "false",
			}
		}
	}
	return nil
}

// VerifyExternalEgress checks that a subnet with an external egress
// gateway produced a reroute policy pointing at that gateway.
func (c *Client) VerifyExternalEgress(ctx context.Context, subnet *kubeovnv1.Subnet) error {
	if !subnet.HasExternalEgressGateway() {
		return fmt.Errorf("subnet %s has no external egress gateway configured", subnet.Name)
	}
	policies, err := c.ReroutePolicies(ctx, subnet.Spec.ExternalEgressGateway)
	if err != nil {
		return err
	}
	if len(policies) == 0 {
		return &NotFoundError{
			ObjectType: "Logical_Router_Policy",
			Name:       fmt.Sprintf("reroute to %s", subnet.Spec.ExternalEgressGateway),
		}
	}
	if prio := subnet.Spec.PolicyRoutingPriority; prio != 0 {
		for _, p := range policies {
			if p.Priority == int(prio) {
				return nil
			}
		}
		return &MismatchError{
			ObjectType: "Logical_Router_Policy",
			Name:       fmt.Sprintf("reroute to %s", subnet.Spec.ExternalEgressGateway),
			Field:      "priority",
			Want:       fmt.Sprintf("%d", prio),
			Got:        fmt.Sprintf("%d", policies[0].Priority),
		}
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// containsToken reports whether a space or comma separated list contains
// the token exactly.
func containsToken(list, token string) bool {
	start := 0
	for i := 0; i <= len(list); i++ {
		if i == len(list) || list[i] == ' ' || list[i] == ',' {
			if list[start:i] == token {
				return true
			}
			start = i + 1
		}
	}
	return false
}
