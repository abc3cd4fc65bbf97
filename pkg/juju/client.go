package juju

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/names/v5"
	"gopkg.in/yaml.v3"

	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// Client exposes typed operations over the juju CLI.
//
// Model-scoped operations take an explicit model name so a single client can
// drive both the machine model hosting Charmed Kubernetes and the k8s model
// hosting sidecar charms (Grafana, Prometheus).
type Client struct {
	runner     *Runner
	controller string
	log        *logging.Logger
}

// NewClient creates a Client around the given juju binary.
// controller may be empty to use the CLI's current controller.
func NewClient(binary, controller string, log *logging.Logger) *Client {
	if log == nil {
		log = logging.L()
	}
	return &Client{
		runner:     NewRunner(binary, log),
		controller: controller,
		log:        log.WithName("juju"),
	}
}

// Controller returns the controller name the client targets.
func (c *Client) Controller() string {
	return c.controller
}

// Run executes a raw juju command.
func (c *Client) Run(ctx context.Context, args ...string) (Result, error) {
	return c.runner.Run(ctx, args...)
}

// modelFlag renders the -m argument for a model, qualified with the
// controller when one is configured.
func (c *Client) modelFlag(model string) string {
	if c.controller != "" {
		return c.controller + ":" + model
	}
	return model
}

// DeployArgs describes an application deployment.
type DeployArgs struct {
	// Entity is the charm name or URL
	Entity string

	// Application overrides the application name; empty uses the charm name
	Application string

	// Channel is the charm store channel, e.g. "edge" or "stable"
	Channel string

	// NumUnits is the unit count; 0 means the juju default of one
	NumUnits int

	// Trust grants the charm access to cloud credentials
	Trust bool

	// Config is applied at deploy time via --config key=value
	Config map[string]string
}

// AddK8sCloud registers a Kubernetes cloud on the controller and client
// from the given kubeconfig.
func (c *Client) AddK8sCloud(ctx context.Context, cloudName, kubeconfigPath string) error {
	args := []string{"add-k8s", cloudName, "--client"}
	if c.controller != "" {
		args = append(args, "--controller="+c.controller)
	}
	runner := c.runner.WithEnv("KUBECONFIG=" + kubeconfigPath)
	if _, err := runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to add-k8s %s: %w", cloudName, err)
	}
	return nil
}

// RemoveK8sCloud removes a Kubernetes cloud from the controller and client.
func (c *Client) RemoveK8sCloud(ctx context.Context, cloudName string) error {
	args := []string{"remove-cloud", cloudName, "--client"}
	if c.controller != "" {
		args = append(args, "--controller", c.controller)
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to remove cloud %s: %w", cloudName, err)
	}
	return nil
}

// Clouds lists the cloud names known to the controller.
func (c *Client) Clouds(ctx context.Context) ([]string, error) {
	args := []string{"clouds", "--format", "yaml"}
	if c.controller != "" {
		args = append(args, "--controller", c.controller)
	}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clouds: %w", err)
	}

	var clouds map[string]struct{}
	if err := yaml.Unmarshal([]byte(res.Stdout), &clouds); err != nil {
		return nil, fmt.Errorf("failed to parse clouds output: %w", err)
	}
	names := make([]string, 0, len(clouds))
	for name := range clouds {
		names = append(names, name)
	}
	return names, nil
}

// AddModel creates a model on the given cloud without switching to it.
func (c *Client) AddModel(ctx context.Context, modelName, cloud string) error {
	args := []string{"add-model"}
	if c.controller != "" {
		args = append(args, "--controller="+c.controller)
	}
	args = append(args, modelName)
	if cloud != "" {
		args = append(args, cloud)
	}
	args = append(args, "--no-switch")
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to add model %s: %w", modelName, err)
	}
	return nil
}

// DestroyModel destroys a model along with its storage.
func (c *Client) DestroyModel(ctx context.Context, modelName string) error {
	args := []string{
		"destroy-model", c.modelFlag(modelName),
		"--destroy-storage", "--force", "-y",
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to destroy model %s: %w", modelName, err)
	}
	return nil
}

// ModelSummary is one entry of `juju models`.
type ModelSummary struct {
	Name      string `yaml:"name"`
	ModelUUID string `yaml:"model-uuid"`
}

// Models lists the models on the controller.
func (c *Client) Models(ctx context.Context) ([]ModelSummary, error) {
	args := []string{"models", "--format", "yaml"}
	if c.controller != "" {
		args = append(args, "--controller", c.controller)
	}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var out struct {
		Models []ModelSummary `yaml:"models"`
	}
	if err := yaml.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("failed to parse models output: %w", err)
	}
	return out.Models, nil
}

// Deploy deploys an application into a model.
func (c *Client) Deploy(ctx context.Context, model string, d DeployArgs) error {
	if d.Entity == "" {
		return fmt.Errorf("deploy entity is required")
	}
	args := []string{"deploy", "-m", c.modelFlag(model), d.Entity}
	if d.Application != "" {
		args = append(args, d.Application)
	}
	if d.Channel != "" {
		args = append(args, "--channel", d.Channel)
	}
	if d.NumUnits > 0 {
		args = append(args, "-n", fmt.Sprintf("%d", d.NumUnits))
	}
	if d.Trust {
		args = append(args, "--trust")
	}
	for k, v := range d.Config {
		args = append(args, "--config", k+"="+v)
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to deploy %s: %w", d.Entity, err)
	}
	return nil
}

// RemoveApplication removes an application, destroying its storage.
func (c *Client) RemoveApplication(ctx context.Context, model, app string) error {
	if !names.IsValidApplication(app) {
		return fmt.Errorf("invalid application name %q", app)
	}
	args := []string{
		"remove-application", "-m", c.modelFlag(model), app,
		"--destroy-storage", "--force",
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to remove application %s: %w", app, err)
	}
	return nil
}

// SetConfig applies configuration values to an application.
func (c *Client) SetConfig(ctx context.Context, model, app string, values map[string]string) error {
	if !names.IsValidApplication(app) {
		return fmt.Errorf("invalid application name %q", app)
	}
	args := []string{"config", "-m", c.modelFlag(model), app}
	for k, v := range values {
		args = append(args, k+"="+v)
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to set config on %s: %w", app, err)
	}
	return nil
}

// Relate adds a relation between two application endpoints.
func (c *Client) Relate(ctx context.Context, model, a, b string) error {
	args := []string{"relate", "-m", c.modelFlag(model), a, b}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to relate %s and %s: %w", a, b, err)
	}
	return nil
}

// Offer publishes an application endpoint for cross model consumption and
// returns the offer name (model.application).
func (c *Client) Offer(ctx context.Context, model, app, endpoint string) (string, error) {
	target := fmt.Sprintf("%s.%s:%s", model, app, endpoint)
	if _, err := c.runner.Run(ctx, "offer", target); err != nil {
		return "", fmt.Errorf("failed to offer %s: %w", target, err)
	}
	return fmt.Sprintf("%s.%s", model, app), nil
}

// Consume makes an offer from another model available in a model.
// offerURL has the form owner/model.application.
func (c *Client) Consume(ctx context.Context, model, offerURL string) error {
	args := []string{"consume", "-m", c.modelFlag(model), offerURL}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to consume %s: %w", offerURL, err)
	}
	return nil
}

// RemoveSaas removes a consumed cross model application from a model.
func (c *Client) RemoveSaas(ctx context.Context, model, name string) error {
	args := []string{"remove-saas", "-m", c.modelFlag(model), name}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to remove saas %s: %w", name, err)
	}
	return nil
}

// RemoveOffer removes an offer, severing existing relations.
func (c *Client) RemoveOffer(ctx context.Context, offer string) error {
	args := []string{"remove-offer", offer, "--force", "-y"}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to remove offer %s: %w", offer, err)
	}
	return nil
}

// RunAction runs an action on a unit, waits for completion and returns the
// action results map.
func (c *Client) RunAction(ctx context.Context, model, unit, action string) (map[string]interface{}, error) {
	if !names.IsValidUnit(unit) {
		return nil, fmt.Errorf("invalid unit name %q", unit)
	}
	args := []string{
		"run-action", "-m", c.modelFlag(model), unit, action,
		"--wait", "--format", "yaml",
	}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run action %s on %s: %w", action, unit, err)
	}

	// Output is keyed by the unit tag, e.g. unit-grafana-k8s-0.
	var out map[string]struct {
		Status  string                 `yaml:"status"`
		Message string                 `yaml:"message"`
		Results map[string]interface{} `yaml:"results"`
	}
	if err := yaml.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("failed to parse action output: %w", err)
	}
	for _, r := range out {
		if r.Status != "completed" {
			return nil, fmt.Errorf("action %s on %s %s: %s", action, unit, r.Status, r.Message)
		}
		return r.Results, nil
	}
	return nil, fmt.Errorf("action %s on %s produced no output", action, unit)
}

// Exec runs a command on a unit via `juju exec`.
func (c *Client) Exec(ctx context.Context, model, unit string, command ...string) (Result, error) {
	if !names.IsValidUnit(unit) {
		return Result{}, fmt.Errorf("invalid unit name %q", unit)
	}
	args := []string{"exec", "-m", c.modelFlag(model), "--unit", unit, "--"}
	args = append(args, command...)
	return c.runner.Run(ctx, args...)
}

// SSH runs a command on a unit or machine via `juju ssh`.
// target may also be an application leader reference like app/leader.
func (c *Client) SSH(ctx context.Context, model, target string, command ...string) (Result, error) {
	args := []string{"ssh", "-m", c.modelFlag(model), target, "--"}
	args = append(args, command...)
	return c.runner.Run(ctx, args...)
}

// SCP copies a local file to a unit or machine via `juju scp`.
func (c *Client) SCP(ctx context.Context, model, localPath, target, remotePath string) error {
	args := []string{"scp", "-m", c.modelFlag(model), localPath, target + ":" + remotePath}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", localPath, target, err)
	}
	return nil
}

// UnitInfo holds the subset of `juju show-unit` the harness consumes.
type UnitInfo struct {
	PublicAddress string `yaml:"public-address"`
	Machine       string `yaml:"machine"`
	Leader        bool   `yaml:"leader"`
}

// ShowUnit returns details for a single unit.
func (c *Client) ShowUnit(ctx context.Context, model, unit string) (*UnitInfo, error) {
	if !names.IsValidUnit(unit) {
		return nil, fmt.Errorf("invalid unit name %q", unit)
	}
	args := []string{"show-unit", "-m", c.modelFlag(model), unit, "--format", "yaml"}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s unit data: %w", unit, err)
	}

	var out map[string]UnitInfo
	if err := yaml.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("failed to parse show-unit output: %w", err)
	}
	info, ok := out[unit]
	if !ok {
		return nil, fmt.Errorf("unit %s not present in show-unit output", unit)
	}
	return &info, nil
}

// LeaderKubeconfig fetches the kubeconfig from the control plane leader.
func (c *Client) LeaderKubeconfig(ctx context.Context, model, controlPlaneApp string) (string, error) {
	res, err := c.SSH(ctx, model, controlPlaneApp+"/leader", "cat", "config")
	if err != nil {
		return "", fmt.Errorf("failed to copy kubeconfig from %s: %w", controlPlaneApp, err)
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return "", fmt.Errorf("kubeconfig fetched from %s is empty", controlPlaneApp)
	}
	return res.Stdout, nil
}
