package charm

import (
	"fmt"
)

// StatusKind is the workload status class a charm unit reports.
type StatusKind string

const (
	StatusActive      StatusKind = "active"
	StatusWaiting     StatusKind = "waiting"
	StatusBlocked     StatusKind = "blocked"
	StatusMaintenance StatusKind = "maintenance"
)

// Status is a unit workload status with its operator message.
type Status struct {
	Kind    StatusKind
	Message string
}

func (s Status) String() string {
	if s.Message == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

// StoredState is the charm's persistent flag set. Flags start false and
// flip as the charm makes progress through its relations.
type StoredState struct {
	TigeraConfigured  bool
	PodRestartNeeded  bool
	CNIConfigured     bool
	KubeconfigWritten bool
}

// Event names dispatched to the charm, in the order juju emits them
// during initial deployment.
const (
	EventInstall       = "install"
	EventConfigChanged = "config-changed"
	EventStart         = "start"
	EventUpdateStatus  = "update-status"
	EventCNIConnected  = "cni-relation-joined"
	EventCNIChanged    = "cni-relation-changed"
)

// Charm models the hook state machine of the CNI charm. It mirrors the
// charm's behavior closely enough that the hook sequence and resulting
// status can be exercised without a live unit.
type Charm struct {
	State   StoredState
	Kubectl *Kubectl

	status Status
	config map[string]string
}

// NewCharm returns a charm in its initial state: all flags false,
// kubectl pinned to the charm's default kubeconfig path.
func NewCharm() *Charm {
	return &Charm{
		Kubectl: NewKubectl(DefaultKubeconfigPath),
		status:  Status{Kind: StatusMaintenance, Message: "installing"},
		config:  make(map[string]string),
	}
}

// Status returns the unit's current workload status.
func (c *Charm) Status() Status { return c.status }

// SetConfig records charm config values, as juju would on config-changed.
func (c *Charm) SetConfig(values map[string]string) {
	for k, v := range values {
		c.config[k] = v
	}
}

// Config returns the value of one config key.
func (c *Charm) Config(key string) string { return c.config[key] }

// Dispatch runs one hook event against the charm state machine.
func (c *Charm) Dispatch(event string) error {
	switch event {
	case EventInstall:
		c.status = Status{Kind: StatusMaintenance, Message: "installing"}
	case EventConfigChanged, EventStart, EventUpdateStatus:
		c.evaluate()
	case EventCNIConnected, EventCNIChanged:
		c.State.CNIConfigured = true
		c.evaluate()
	default:
		return fmt.Errorf("unknown event %q", event)
	}
	return nil
}

// RunInitialHooks dispatches the install/config-changed/start sequence
// juju emits when a unit first comes up.
func (c *Charm) RunInitialHooks() error {
	for _, event := range []string{EventInstall, EventConfigChanged, EventStart} {
		if err := c.Dispatch(event); err != nil {
			return fmt.Errorf("hook %s failed: %w", event, err)
		}
	}
	return nil
}

// evaluate recomputes the workload status from stored state. Without a
// CNI relation the charm cannot configure anything and must wait.
func (c *Charm) evaluate() {
	if !c.State.CNIConfigured {
		c.status = Status{Kind: StatusWaiting, Message: "Waiting for CNI relation"}
		return
	}
	if !c.State.TigeraConfigured {
		c.status = Status{Kind: StatusMaintenance, Message: "Configuring Tigera"}
		return
	}
	if c.State.PodRestartNeeded {
		c.status = Status{Kind: StatusMaintenance, Message: "Restarting pods"}
		return
	}
	c.status = Status{Kind: StatusActive, Message: ""}
}

// MarkTigeraConfigured records that Tigera resources were applied and
// recomputes status.
func (c *Charm) MarkTigeraConfigured() {
	c.State.TigeraConfigured = true
	c.evaluate()
}

// MarkPodRestartNeeded flags that workload pods must be bounced before
// the unit can go active.
func (c *Charm) MarkPodRestartNeeded(needed bool) {
	c.State.PodRestartNeeded = needed
	c.evaluate()
}
