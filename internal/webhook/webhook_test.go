package webhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	admissionv1 "k8s.io/api/admission/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	corev1 "k8s.io/api/core/v1"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	ingresspolicy "go.magiclouds.cn/ingress-tls-webhook/internal/policy/ingress"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, gatewayv1.Install(scheme))
	return scheme
}

func ingressRequest(t *testing.T, ing *networkingv1.Ingress) admission.Request {
	t.Helper()
	raw, err := json.Marshal(ing)
	require.NoError(t, err)
	return admission.Request{
		AdmissionRequest: admissionv1.AdmissionRequest{
			Kind:      metav1.GroupVersionKind{Kind: "Ingress"},
			Namespace: ing.Namespace,
			Name:      ing.Name,
			Object:    runtime.RawExtension{Raw: raw},
		},
	}
}

func TestValidatorHandleDeniesIngressWithoutTLS(t *testing.T) {
	v := &Validator{Client: fake.NewClientBuilder().WithScheme(newScheme(t)).Build()}
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec:       networkingv1.IngressSpec{Rules: []networkingv1.IngressRule{{Host: "example.com"}}},
	}

	resp := v.Handle(context.Background(), ingressRequest(t, ing))
	assert.False(t, resp.Allowed)
}

func TestValidatorHandleAllowsIngressWithTLS(t *testing.T) {
	v := &Validator{Client: fake.NewClientBuilder().WithScheme(newScheme(t)).Build()}
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec:       networkingv1.IngressSpec{TLS: []networkingv1.IngressTLS{{Hosts: []string{"example.com"}}}},
	}

	resp := v.Handle(context.Background(), ingressRequest(t, ing))
	assert.True(t, resp.Allowed)
}

func TestValidatorHandleRejectsUnsupportedKind(t *testing.T) {
	v := &Validator{Client: fake.NewClientBuilder().WithScheme(newScheme(t)).Build()}
	req := admission.Request{AdmissionRequest: admissionv1.AdmissionRequest{Kind: metav1.GroupVersionKind{Kind: "Pod"}}}

	resp := v.Handle(context.Background(), req)
	assert.False(t, resp.Allowed)
	assert.EqualValues(t, 500, resp.Result.Code)
}

func TestMutatorHandlePatchesIngressWithoutTLS(t *testing.T) {
	m := &Mutator{Client: fake.NewClientBuilder().WithScheme(newScheme(t)).Build()}
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec:       networkingv1.IngressSpec{Rules: []networkingv1.IngressRule{{Host: "example.com"}}},
	}

	resp := m.Handle(context.Background(), ingressRequest(t, ing))
	assert.True(t, resp.Allowed)
	assert.NotEmpty(t, resp.Patches)
}

func TestMutatorHandleNoopWhenAlreadyAllowed(t *testing.T) {
	m := &Mutator{Client: fake.NewClientBuilder().WithScheme(newScheme(t)).Build(), Options: Options{Ingress: ingresspolicy.Options{}}}
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec:       networkingv1.IngressSpec{TLS: []networkingv1.IngressTLS{{Hosts: []string{"example.com"}}}},
	}

	resp := m.Handle(context.Background(), ingressRequest(t, ing))
	assert.True(t, resp.Allowed)
	assert.Empty(t, resp.Patches)
}
