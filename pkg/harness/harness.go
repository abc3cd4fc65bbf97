// Package harness orchestrates a full kube-ovn charm test environment:
// it fetches the cluster kubeconfig from the control plane, registers
// the cluster as a Juju k8s cloud, creates a scratch model, deploys the
// supporting applications, and tears everything down again in reverse
// order.
package harness

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/charmed-network/kube-ovn-harness/pkg/config"
	"github.com/charmed-network/kube-ovn-harness/pkg/juju"
	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// Cleanup is one teardown step registered during setup.
type Cleanup struct {
	Name string
	Run  func(ctx context.Context) error
}

// Harness owns the test environment lifecycle. Setup methods push
// cleanup functions; Teardown pops them newest first.
type Harness struct {
	Config *config.Config
	Juju   *juju.Client
	Kube   client.Client
	Waiter *kube.Waiter

	// KubeconfigPath is where the fetched cluster kubeconfig lives.
	KubeconfigPath string

	// K8sModel is the scratch model holding k8s-side applications.
	K8sModel string

	// CloudCreated records whether Teardown owns the k8s cloud.
	CloudCreated bool

	log      *logging.Logger
	workDir  string
	cleanups []Cleanup
}

// New creates a Harness from configuration. The work directory holds
// fetched kubeconfigs and other scratch files and is removed on
// teardown unless the config pins it.
func New(cfg *config.Config, log *logging.Logger) (*Harness, error) {
	workDir := cfg.Paths.WorkDir
	ownsWorkDir := false
	if workDir == "" {
		dir, err := os.MkdirTemp("", "kube-ovn-harness-")
		if err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		workDir = dir
		ownsWorkDir = true
	}

	h := &Harness{
		Config:  cfg,
		Juju:    juju.NewClient(cfg.Juju.Binary, cfg.Juju.Controller, log),
		log:     log.WithName("harness"),
		workDir: workDir,
	}
	if ownsWorkDir {
		h.pushCleanup("remove work dir", func(ctx context.Context) error {
			return os.RemoveAll(workDir)
		})
	}
	return h, nil
}

// WorkDir returns the harness scratch directory.
func (h *Harness) WorkDir() string { return h.workDir }

func (h *Harness) pushCleanup(name string, run func(ctx context.Context) error) {
	h.cleanups = append(h.cleanups, Cleanup{Name: name, Run: run})
}

// Teardown runs all registered cleanups in reverse order. When the
// config asks to keep models, model and cloud removal steps are skipped
// so the environment can be inspected after a failure.
func (h *Harness) Teardown(ctx context.Context) error {
	var errs []error
	for i := len(h.cleanups) - 1; i >= 0; i-- {
		step := h.cleanups[i]
		h.log.Info("teardown", "step", step.Name)
		if err := step.Run(ctx); err != nil {
			h.log.Warn("teardown step failed", "step", step.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	h.cleanups = nil
	if len(errs) > 0 {
		return fmt.Errorf("teardown finished with %d error(s), first: %w", len(errs), errs[0])
	}
	return nil
}

// FetchKubeconfig copies the cluster kubeconfig off the control plane
// leader over juju ssh and connects the Kubernetes client to it.
func (h *Harness) FetchKubeconfig(ctx context.Context) error {
	if h.Config.Paths.Kubeconfig != "" {
		h.KubeconfigPath = h.Config.Paths.Kubeconfig
	} else {
		content, err := h.Juju.LeaderKubeconfig(ctx,
			h.Config.Juju.MachineModel, h.Config.Charm.ControlPlaneApp)
		if err != nil {
			return fmt.Errorf("failed to fetch kubeconfig: %w", err)
		}
		path := filepath.Join(h.workDir, "kubeconfig")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write kubeconfig: %w", err)
		}
		h.KubeconfigPath = path
	}

	c, err := kube.NewClient(h.KubeconfigPath)
	if err != nil {
		return err
	}
	h.Kube = c
	h.Waiter = kube.NewWaiter(c,
		h.Config.Timeouts.PollInterval, h.Config.Timeouts.PodReady)
	return nil
}

// EnsureK8sCloud registers the cluster as a Juju cloud unless it is
// already known. A cloud the harness created is removed on teardown;
// a pre-existing one is left alone.
func (h *Harness) EnsureK8sCloud(ctx context.Context) error {
	cloudName := h.Config.Juju.K8sCloud
	clouds, err := h.Juju.Clouds(ctx)
	if err != nil {
		return err
	}
	for _, name := range clouds {
		if name == cloudName {
			h.log.Info("reusing existing k8s cloud", "cloud", cloudName)
			return nil
		}
	}

	if err := h.Juju.AddK8sCloud(ctx, cloudName, h.KubeconfigPath); err != nil {
		return err
	}
	h.CloudCreated = true
	h.pushCleanup("remove k8s cloud", func(ctx context.Context) error {
		if h.Config.Juju.KeepModels {
			h.log.Info("keeping k8s cloud", "cloud", cloudName)
			return nil
		}
		return h.Juju.RemoveK8sCloud(ctx, cloudName)
	})
	return nil
}

// ScratchModelPrefix namespaces the harness's models on the controller
// so leftover models from earlier runs can be found again.
const ScratchModelPrefix = "test-kube-ovn-"

// EnsureK8sModel creates a scratch model on the k8s cloud with a random
// suffix so concurrent runs on the same controller never collide.
func (h *Harness) EnsureK8sModel(ctx context.Context) error {
	suffix, err := randomSuffix(4)
	if err != nil {
		return err
	}
	model := ScratchModelPrefix + suffix
	if err := h.Juju.AddModel(ctx, model, h.Config.Juju.K8sCloud); err != nil {
		return err
	}
	h.K8sModel = model

	uuid, err := h.Juju.ModelUUID(ctx, model)
	if err != nil {
		return err
	}
	h.pushCleanup("destroy k8s model", func(ctx context.Context) error {
		if h.Config.Juju.KeepModels {
			h.log.Info("keeping model", "model", model)
			return nil
		}
		if err := h.Juju.DestroyModel(ctx, model); err != nil {
			return err
		}
		return h.Juju.WaitForModelGone(ctx, uuid,
			h.Config.Timeouts.PollInterval, h.Config.Timeouts.Teardown)
	})
	h.log.Info("created scratch model", "model", model, "uuid", uuid)
	return nil
}

// AttachScratchModel points the harness at a scratch model left behind
// by an earlier deploy phase, so verify can run against it.
func (h *Harness) AttachScratchModel(ctx context.Context) error {
	models, err := h.Juju.Models(ctx)
	if err != nil {
		return err
	}
	names := scratchModels(models)
	if len(names) == 0 {
		return fmt.Errorf("no %s* model found on controller %s",
			ScratchModelPrefix, h.Config.Juju.Controller)
	}
	h.K8sModel = names[0]
	h.log.Info("attached to scratch model", "model", h.K8sModel)
	return nil
}

// DestroyScratchModels finds and destroys every scratch model left on
// the controller.
func (h *Harness) DestroyScratchModels(ctx context.Context) error {
	models, err := h.Juju.Models(ctx)
	if err != nil {
		return err
	}
	names := scratchModels(models)
	if len(names) == 0 {
		h.log.Info("no scratch models to clean up")
		return nil
	}
	var errs []error
	for _, model := range names {
		h.log.Info("destroying leftover model", "model", model)
		uuid, err := h.Juju.ModelUUID(ctx, model)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}
		if err := h.Juju.DestroyModel(ctx, model); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}
		if err := h.Juju.WaitForModelGone(ctx, uuid,
			h.Config.Timeouts.PollInterval, h.Config.Timeouts.Teardown); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup finished with %d error(s), first: %w", len(errs), errs[0])
	}
	return nil
}

// scratchModels filters a controller model listing down to the
// harness's own models, sorted by name.
func scratchModels(models []juju.ModelSummary) []string {
	var names []string
	for _, m := range models {
		if strings.HasPrefix(m.Name, ScratchModelPrefix) {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// randomSuffix returns n lowercase alphanumeric characters.
func randomSuffix(n int) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate model suffix: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
