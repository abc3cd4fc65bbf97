package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// SubnetProtocol represents the IP protocol version
type SubnetProtocol string

const (
	SubnetProtocolIPv4 SubnetProtocol = "IPv4"
	SubnetProtocolIPv6 SubnetProtocol = "IPv6"
	SubnetProtocolDual SubnetProtocol = "Dual"
)

// Gateway types for a Subnet
const (
	// GatewayTypeDistributed routes egress traffic through every node
	GatewayTypeDistributed = "distributed"

	// GatewayTypeCentralized routes egress traffic through the gateway node
	GatewayTypeCentralized = "centralized"
)

// SubnetSpec defines the desired state of Subnet.
type SubnetSpec struct {
	// CIDRBlock is the IP range for this subnet in CIDR notation.
	// +kubebuilder:validation:Required
	CIDRBlock string `json:"cidrBlock"`

	// Gateway is the default gateway IP for this subnet.
	// +optional
	Gateway string `json:"gateway,omitempty"`

	// GatewayType selects distributed or centralized egress.
	// +kubebuilder:validation:Enum=distributed;centralized
	// +optional
	GatewayType string `json:"gatewayType,omitempty"`

	// GatewayNode is the node name carrying egress traffic for
	// centralized gateway subnets.
	// +optional
	GatewayNode string `json:"gatewayNode,omitempty"`

	// ExternalEgressGateway is an external next hop for egress traffic,
	// used instead of the distributed/centralized gateway when set.
	// +optional
	ExternalEgressGateway string `json:"externalEgressGateway,omitempty"`

	// PolicyRoutingPriority is the ip rule priority used with
	// ExternalEgressGateway.
	// +optional
	PolicyRoutingPriority uint32 `json:"policyRoutingPriority,omitempty"`

	// PolicyRoutingTableID is the routing table used with
	// ExternalEgressGateway.
	// +optional
	PolicyRoutingTableID uint32 `json:"policyRoutingTableID,omitempty"`

	// ExcludeIPs is a list of IPs or IP ranges to exclude from allocation.
	// +optional
	ExcludeIPs []string `json:"excludeIps,omitempty"`

	// Namespaces is a list of namespaces bound to this subnet.
	// +optional
	Namespaces []string `json:"namespaces,omitempty"`

	// NatOutgoing enables NAT for egress traffic from this subnet.
	// +optional
	NatOutgoing bool `json:"natOutgoing,omitempty"`

	// Protocol is the IP protocol version for this subnet.
	// +kubebuilder:validation:Enum=IPv4;IPv6;Dual
	// +optional
	Protocol SubnetProtocol `json:"protocol,omitempty"`

	// Default indicates whether this is the default subnet for the cluster.
	// +optional
	Default bool `json:"default,omitempty"`
}

// SubnetStatus defines the observed state of Subnet.
type SubnetStatus struct {
	// AvailableIPs is the number of available IP addresses in the subnet.
	AvailableIPs float64 `json:"availableIPs,omitempty"`

	// UsingIPs is the number of IP addresses currently allocated.
	UsingIPs float64 `json:"usingIPs,omitempty"`

	// ActivateGateway is the node currently acting as the gateway for
	// centralized gateway subnets.
	ActivateGateway string `json:"activateGateway,omitempty"`

	// Conditions represent the latest available observations of the
	// subnet's state.
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// Subnet condition types
const (
	SubnetConditionReady     = "Ready"
	SubnetConditionValidated = "Validated"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="CIDR",type=string,JSONPath=`.spec.cidrBlock`
// +kubebuilder:printcolumn:name="Gateway",type=string,JSONPath=`.spec.gateway`
// +kubebuilder:printcolumn:name="Available",type=number,JSONPath=`.status.availableIPs`

// Subnet is the Schema for the kube-ovn subnets API.
type Subnet struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   SubnetSpec   `json:"spec,omitempty"`
	Status SubnetStatus `json:"status,omitempty"`
}

// IsCentralizedGateway returns true when egress routes through a gateway node.
func (s *Subnet) IsCentralizedGateway() bool {
	return s.Spec.GatewayType == GatewayTypeCentralized || s.Spec.GatewayNode != ""
}

// HasExternalEgressGateway returns true when egress is redirected to an
// external next hop.
func (s *Subnet) HasExternalEgressGateway() bool {
	return s.Spec.ExternalEgressGateway != ""
}

// LogicalSwitchName returns the name of the OVN Logical Switch backing this
// subnet. Kube-OVN names the switch after the subnet itself.
func (s *Subnet) LogicalSwitchName() string {
	return s.Name
}

// Ready reports whether the subnet carries a true Ready condition.
func (s *Subnet) Ready() bool {
	for _, c := range s.Status.Conditions {
		if c.Type == SubnetConditionReady {
			return c.Status == metav1.ConditionTrue
		}
	}
	return false
}

// +kubebuilder:object:root=true

// SubnetList contains a list of Subnet
type SubnetList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Subnet `json:"items"`
}

// DeepCopyInto copies the receiver into the given *Subnet.
func (in *Subnet) DeepCopyInto(out *Subnet) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy creates a deep copy of the Subnet.
func (in *Subnet) DeepCopy() *Subnet {
	if in == nil {
		return nil
	}
	out := new(Subnet)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject returns a deep copy as runtime.Object.
func (in *Subnet) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver into the given *SubnetSpec.
func (in *SubnetSpec) DeepCopyInto(out *SubnetSpec) {
	*out = *in
	if in.ExcludeIPs != nil {
		in, out := &in.ExcludeIPs, &out.ExcludeIPs
		*out = make([]string, len(*in))
		copy(*out, *in)
	}
	if in.Namespaces != nil {
		in, out := &in.Namespaces, &out.Namespaces
		*out = make([]string, len(*in))
		copy(*out, *in)
	}
}

// DeepCopy creates a deep copy of the SubnetSpec.
func (in *SubnetSpec) DeepCopy() *SubnetSpec {
	if in == nil {
		return nil
	}
	out := new(SubnetSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into the given *SubnetStatus.
func (in *SubnetStatus) DeepCopyInto(out *SubnetStatus) {
	*out = *in
	if in.Conditions != nil {
		in, out := &in.Conditions, &out.Conditions
		*out = make([]metav1.Condition, len(*in))
		for i := range *in {
			(*in)[i].DeepCopyInto(&(*out)[i])
		}
	}
}

// DeepCopy creates a deep copy of the SubnetStatus.
func (in *SubnetStatus) DeepCopy() *SubnetStatus {
	if in == nil {
		return nil
	}
	out := new(SubnetStatus)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into the given *SubnetList.
func (in *SubnetList) DeepCopyInto(out *SubnetList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		in, out := &in.Items, &out.Items
		*out = make([]Subnet, len(*in))
		for i := range *in {
			(*in)[i].DeepCopyInto(&(*out)[i])
		}
	}
}

// DeepCopy creates a deep copy of the SubnetList.
func (in *SubnetList) DeepCopy() *SubnetList {
	if in == nil {
		return nil
	}
	out := new(SubnetList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject returns a deep copy as runtime.Object.
func (in *SubnetList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
