// Package e2e contains subnet gateway E2E tests: centralized gateway
// subnets pinned to a live worker, and external egress gateway subnets
// verified against the OVN Northbound database when it is reachable.
package e2e

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	ktypes "k8s.io/apimachinery/pkg/types"

	kubeovnv1 "github.com/charmed-network/kube-ovn-harness/api/v1"
	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
	"github.com/charmed-network/kube-ovn-harness/pkg/ovnverify"
)

var _ = Describe("Subnet Gateways", func() {
	var (
		ctx context.Context
		f   *TestFramework
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = GetFramework()
		Expect(f).NotTo(BeNil(), "Test framework not initialized")
	})

	Describe("Centralized gateway subnet", func() {
		It("should pin egress to a worker node", func() {
			By("Picking a worker node to carry egress traffic")
			worker, err := f.WorkerNode(ctx)
			Expect(err).NotTo(HaveOccurred())

			By("Applying the gateway subnet pinned to that node")
			objs, err := f.Fixture.ApplyManifest(ctx,
				f.DataFile("gateway_subnet.yaml"),
				kube.SetField("Subnet", worker.Name, "spec", "gatewayNode"))
			Expect(err).NotTo(HaveOccurred())
			Expect(objs).To(HaveLen(1))

			By("Checking the API server accepted the pinned node")
			subnet := &kubeovnv1.Subnet{}
			err = f.Client().Get(ctx, ktypes.NamespacedName{Name: objs[0].GetName()}, subnet)
			Expect(err).NotTo(HaveOccurred())
			Expect(subnet.Spec.GatewayNode).To(Equal(worker.Name))
			Expect(subnet.IsCentralizedGateway()).To(BeTrue())

			if f.Config.OVNVerificationEnabled() {
				By("Verifying the logical switch in the NB database")
				nb, err := ovnverify.Connect(ctx, &f.Config.OVN, f.log)
				Expect(err).NotTo(HaveOccurred())
				defer nb.Close()
				Expect(nb.VerifySubnet(ctx, subnet)).To(Succeed())
			}
		})
	})

	Describe("External egress gateway subnet", func() {
		It("should route egress through the external next hop", func() {
			By("Applying the external gateway subnet")
			objs, err := f.Fixture.ApplyManifest(ctx,
				f.DataFile("external_gateway_subnet.yaml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(objs).To(HaveLen(1))

			subnet := &kubeovnv1.Subnet{}
			err = f.Client().Get(ctx, ktypes.NamespacedName{Name: objs[0].GetName()}, subnet)
			Expect(err).NotTo(HaveOccurred())
			Expect(subnet.HasExternalEgressGateway()).To(BeTrue())

			if f.Config.OVNVerificationEnabled() {
				By("Verifying the reroute policy in the NB database")
				nb, err := ovnverify.Connect(ctx, &f.Config.OVN, f.log)
				Expect(err).NotTo(HaveOccurred())
				defer nb.Close()
				Expect(nb.VerifyExternalEgress(ctx, subnet)).To(Succeed())
			}
		})
	})
})
