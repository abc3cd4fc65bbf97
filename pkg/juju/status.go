package juju

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status models the subset of `juju status --format json` the harness reads.
type Status struct {
	Model        ModelStatus                  `json:"model"`
	Applications map[string]ApplicationStatus `json:"applications"`
}

// ModelStatus is the model block of a status document.
type ModelStatus struct {
	Name       string `json:"name"`
	Controller string `json:"controller"`
	Cloud      string `json:"cloud"`
}

// ApplicationStatus is one application block of a status document.
type ApplicationStatus struct {
	Charm            string                `json:"charm"`
	ApplicationState StatusInfo            `json:"application-status"`
	Units            map[string]UnitStatus `json:"units"`
}

// UnitStatus is one unit block of a status document.
type UnitStatus struct {
	WorkloadState StatusInfo `json:"workload-status"`
	AgentState    StatusInfo `json:"juju-status"`
	PublicAddress string     `json:"public-address"`
	Machine       string     `json:"machine"`
	Leader        bool       `json:"leader"`
}

// StatusInfo is a current/message pair.
type StatusInfo struct {
	Current string `json:"current"`
	Message string `json:"message"`
}

// Status fetches and parses the status of a model.
func (c *Client) Status(ctx context.Context, model string) (*Status, error) {
	res, err := c.runner.Run(ctx, "status", "-m", c.modelFlag(model), "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to get status of model %s: %w", model, err)
	}

	var st Status
	if err := json.Unmarshal([]byte(res.Stdout), &st); err != nil {
		return nil, fmt.Errorf("failed to parse status output: %w", err)
	}
	return &st, nil
}

// WaitTimeoutError is returned when a wait loop exhausts its deadline.
type WaitTimeoutError struct {
	// What describes the awaited condition
	What string

	// Timeout is the deadline that was exceeded
	Timeout time.Duration

	// Last describes the most recently observed state
	Last string
}

func (e *WaitTimeoutError) Error() string {
	if e.Last != "" {
		return fmt.Sprintf("timed out after %s waiting for %s (last: %s)", e.Timeout, e.What, e.Last)
	}
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}

// waitFor polls cond at a fixed interval until it succeeds, the timeout
// expires or the context is cancelled. cond returns done plus a description
// of the observed state for timeout reporting.
func waitFor(ctx context.Context, what string, interval, timeout time.Duration, cond func(ctx context.Context) (bool, string, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last string
	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	err := backoff.Retry(func() error {
		done, observed, err := cond(ctx)
		if err != nil {
			// backoff.Retry unwraps Permanent errors before returning them.
			return backoff.Permanent(err)
		}
		last = observed
		if !done {
			return errConditionNotMet
		}
		return nil
	}, policy)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errConditionNotMet), errors.Is(err, context.DeadlineExceeded):
		return &WaitTimeoutError{What: what, Timeout: timeout, Last: last}
	default:
		return err
	}
}

// errConditionNotMet marks a healthy still-waiting poll iteration.
var errConditionNotMet = errors.New("condition not met")

// WaitForCondition polls an arbitrary condition with the same timeout
// semantics as the status waiters. cond returns done plus a description
// of the observed state for timeout reporting.
func (c *Client) WaitForCondition(ctx context.Context, what string, interval, timeout time.Duration, cond func(ctx context.Context) (bool, string, error)) error {
	return waitFor(ctx, what, interval, timeout, cond)
}

// WaitForActive blocks until every listed application (all applications when
// the list is empty) reports an active workload status on all units.
func (c *Client) WaitForActive(ctx context.Context, model string, interval, timeout time.Duration, apps ...string) error {
	what := fmt.Sprintf("applications in model %s to become active", model)
	return waitFor(ctx, what, interval, timeout, func(ctx context.Context) (bool, string, error) {
		st, err := c.Status(ctx, model)
		if err != nil {
			// Status can transiently fail while the model is settling.
			return false, err.Error(), nil
		}

		watch := apps
		if len(watch) == 0 {
			watch = make([]string, 0, len(st.Applications))
			for name := range st.Applications {
				watch = append(watch, name)
			}
		}

		for _, name := range watch {
			app, ok := st.Applications[name]
			if !ok {
				return false, fmt.Sprintf("application %s not present", name), nil
			}
			if app.ApplicationState.Current == "error" {
				return false, "", fmt.Errorf("application %s is in error state: %s",
					name, app.ApplicationState.Message)
			}
			if app.ApplicationState.Current != "active" {
				return false, fmt.Sprintf("application %s is %s", name, app.ApplicationState.Current), nil
			}
			for unit, u := range app.Units {
				if u.WorkloadState.Current != "active" {
					return false, fmt.Sprintf("unit %s is %s", unit, u.WorkloadState.Current), nil
				}
			}
		}
		return true, "", nil
	})
}

// WaitForApplication blocks until an application appears in the model.
func (c *Client) WaitForApplication(ctx context.Context, model, app string, interval, timeout time.Duration) error {
	what := fmt.Sprintf("application %s to appear in model %s", app, model)
	return waitFor(ctx, what, interval, timeout, func(ctx context.Context) (bool, string, error) {
		st, err := c.Status(ctx, model)
		if err != nil {
			return false, err.Error(), nil
		}
		_, ok := st.Applications[app]
		return ok, fmt.Sprintf("application %s not present", app), nil
	})
}

// WaitForApplicationGone blocks until an application disappears from the model.
func (c *Client) WaitForApplicationGone(ctx context.Context, model, app string, interval, timeout time.Duration) error {
	what := fmt.Sprintf("application %s to be removed from model %s", app, model)
	return waitFor(ctx, what, interval, timeout, func(ctx context.Context) (bool, string, error) {
		st, err := c.Status(ctx, model)
		if err != nil {
			return false, err.Error(), nil
		}
		_, ok := st.Applications[app]
		return !ok, fmt.Sprintf("application %s still present", app), nil
	})
}

// WaitForModelGone blocks until no model with the given UUID remains on the
// controller. Used after DestroyModel, which returns before removal finishes.
func (c *Client) WaitForModelGone(ctx context.Context, modelUUID string, interval, timeout time.Duration) error {
	what := fmt.Sprintf("model %s to be removed", modelUUID)
	return waitFor(ctx, what, interval, timeout, func(ctx context.Context) (bool, string, error) {
		models, err := c.Models(ctx)
		if err != nil {
			return false, err.Error(), nil
		}
		for _, m := range models {
			if m.ModelUUID == modelUUID {
				return false, fmt.Sprintf("model %s still present", m.Name), nil
			}
		}
		return true, "", nil
	})
}

// ModelUUID resolves a model name to its UUID.
func (c *Client) ModelUUID(ctx context.Context, modelName string) (string, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range models {
		// Model names are owner qualified, e.g. admin/test-kube-ovn-x1y2.
		if m.Name == modelName || strings.HasSuffix(m.Name, "/"+modelName) {
			return m.ModelUUID, nil
		}
	}
	return "", fmt.Errorf("model %s not found on controller", modelName)
}
