// Package e2e contains network policy E2E tests. These verify that the
// CNI enforces NetworkPolicy objects: labelled client pods reach the
// server while unlabelled ones are dropped.
package e2e

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Network Policy Enforcement", func() {
	var (
		ctx context.Context
		f   *TestFramework
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = GetFramework()
		Expect(f).NotTo(BeNil(), "Test framework not initialized")
	})

	Describe("Ingress policy", func() {
		It("should allow labelled clients and block others", func() {
			By("Applying the policy manifest with server and client pods")
			objs, err := f.Fixture.ApplyManifest(ctx,
				f.DataFile("network_policy.yaml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(objs).NotTo(BeEmpty())

			By("Waiting for the server pod to come up")
			ip, err := f.Waiter().PodIP(ctx, f.TestNamespace, "np-server")
			Expect(err).NotTo(HaveOccurred())
			Expect(ip).NotTo(BeEmpty())
			Expect(f.Waiter().PodReady(ctx, f.TestNamespace, "np-server")).To(Succeed())

			By("Waiting for both client pods")
			Expect(f.Waiter().PodReady(ctx, f.TestNamespace, "np-client-allowed")).To(Succeed())
			Expect(f.Waiter().PodReady(ctx, f.TestNamespace, "np-client-blocked")).To(Succeed())

			By("Checking the allowed client reaches the server")
			target := fmt.Sprintf("http://%s:8080", ip)
			out, err := f.PodExec(ctx, "np-client-allowed",
				"wget", "-q", "-T", "5", "-O", "-", target)
			Expect(err).NotTo(HaveOccurred(), "allowed client should reach server: %s", out)

			By("Checking the blocked client is dropped")
			_, err = f.PodExec(ctx, "np-client-blocked",
				"wget", "-q", "-T", "5", "-O", "-", target)
			Expect(err).To(HaveOccurred(), "blocked client should not reach server")
		})
	})
})
