// Package e2e contains BGP E2E tests: a bird deployment in the machine
// model peered with per-worker speakers configured on the CNI charm.
package e2e

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	testClusterAS = 64512
	testBirdAS    = 64513
)

var _ = Describe("BGP Speakers", func() {
	var (
		ctx context.Context
		f   *TestFramework
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = GetFramework()
		Expect(f).NotTo(BeNil(), "Test framework not initialized")
	})

	It("should establish sessions between workers and bird", func() {
		By("Deploying bird into the machine model")
		Expect(f.Harness.DeployBird(ctx, 1)).To(Succeed())

		By("Configuring per-worker speakers on the CNI charm")
		Expect(f.Harness.ConfigureBGP(ctx, testClusterAS, testBirdAS)).To(Succeed())

		By("Checking bird sees an established session")
		result, err := f.Harness.Juju.Exec(ctx, f.Config.Juju.MachineModel,
			"bird/0", "birdc", "show", "protocols")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.ToLower(result.Stdout)).To(ContainSubstring("established"),
			"bird protocols output: %s", result.Stdout)
	})
})
