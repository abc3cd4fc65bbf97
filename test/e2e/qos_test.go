// Package e2e contains gateway QoS tests: pods rate-limited through the
// ovn.kubernetes.io annotations, measured with an iperf3 daemonset that
// puts one server on every node.
package e2e

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	ktypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/charmed-network/kube-ovn-harness/pkg/kube"
)

const (
	ingressRateAnnotation = "ovn.kubernetes.io/ingress_rate"
	egressRateAnnotation  = "ovn.kubernetes.io/egress_rate"

	// Rate limit in Mbit/s applied to the QoS client pod.
	qosRateLimit = "30"
)

var _ = Describe("Gateway QoS", func() {
	var (
		ctx context.Context
		f   *TestFramework
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = GetFramework()
		Expect(f).NotTo(BeNil(), "Test framework not initialized")
	})

	It("should rate limit annotated pods", func() {
		By("Deploying an iperf3 server on every node")
		_, err := f.Fixture.ApplyManifest(ctx, f.DataFile("iperf3_daemonset.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Waiter().DaemonSetReady(ctx, f.TestNamespace, "iperf3-server")).To(Succeed())

		By("Starting a client pod with ingress and egress rate annotations")
		_, err = f.Fixture.ApplyManifest(ctx, f.DataFile("gateway_qos.yaml"),
			kube.SetAnnotations("Pod", map[string]string{
				ingressRateAnnotation: qosRateLimit,
				egressRateAnnotation:  qosRateLimit,
			}))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Waiter().PodReady(ctx, f.TestNamespace, "qos-client")).To(Succeed())

		By("Checking the annotations survived admission")
		pod := &corev1.Pod{}
		err = f.Client().Get(ctx,
			ktypes.NamespacedName{Namespace: f.TestNamespace, Name: "qos-client"}, pod)
		Expect(err).NotTo(HaveOccurred())
		Expect(pod.Annotations).To(HaveKeyWithValue(ingressRateAnnotation, qosRateLimit))
		Expect(pod.Annotations).To(HaveKeyWithValue(egressRateAnnotation, qosRateLimit))

		By("Measuring throughput against a node-local iperf3 server")
		serverIP, err := firstPodIP(ctx, f.Client(), f.TestNamespace,
			map[string]string{"app": "iperf3-server"})
		Expect(err).NotTo(HaveOccurred())

		output, err := f.PodExec(ctx, "qos-client", "iperf3", "-c", serverIP, "-t", "5")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring("receiver"),
			"iperf3 should complete a measured transfer")
	})
})

// firstPodIP returns the IP of any running pod matching the selector.
func firstPodIP(ctx context.Context, c client.Client, namespace string, selector map[string]string) (string, error) {
	pods := &corev1.PodList{}
	err := c.List(ctx, pods,
		client.InNamespace(namespace), client.MatchingLabels(selector))
	if err != nil {
		return "", err
	}
	for _, pod := range pods.Items {
		if pod.Status.PodIP != "" {
			return pod.Status.PodIP, nil
		}
	}
	return "", fmt.Errorf("no pod matching %v has an IP in namespace %s", selector, namespace)
}
