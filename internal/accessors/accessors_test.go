package accessors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, gatewayv1.Install(scheme))
	return scheme
}

func TestFilterNamespacesMatchLabels(t *testing.T) {
	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "prod", Labels: map[string]string{"env": "prod"}}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "dev", Labels: map[string]string{"env": "dev"}}},
	).Build()

	got, err := FilterNamespaces(context.Background(), c, &metav1.LabelSelector{MatchLabels: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, got.Names)
}

func TestFilterNamespacesInRequiresValues(t *testing.T) {
	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()

	_, err := FilterNamespaces(context.Background(), c, &metav1.LabelSelector{
		MatchExpressions: []metav1.LabelSelectorRequirement{
			{Key: "env", Operator: metav1.LabelSelectorOpIn, Values: nil},
		},
	})
	assert.Error(t, err)
}

func TestFilterNamespacesExistsOperator(t *testing.T) {
	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "has-team", Labels: map[string]string{"team": "x"}}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "no-team"}},
	).Build()

	got, err := FilterNamespaces(context.Background(), c, &metav1.LabelSelector{
		MatchExpressions: []metav1.LabelSelectorRequirement{
			{Key: "team", Operator: metav1.LabelSelectorOpExists},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"has-team"}, got.Names)
}

func TestListHTTPRoutesAllVsSome(t *testing.T) {
	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(
		&gatewayv1.HTTPRoute{ObjectMeta: metav1.ObjectMeta{Name: "r1", Namespace: "a"}},
		&gatewayv1.HTTPRoute{ObjectMeta: metav1.ObjectMeta{Name: "r2", Namespace: "b"}},
	).Build()

	all, err := ListHTTPRoutes(context.Background(), c, AllNamespaces())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := ListHTTPRoutes(context.Background(), c, SomeNamespaces("a"))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "r1", some[0].Name)
}

func TestGetGateway(t *testing.T) {
	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(
		&gatewayv1.Gateway{ObjectMeta: metav1.ObjectMeta{Name: "gw", Namespace: "web"}},
	).Build()

	gw, err := GetGateway(context.Background(), c, "web", "gw")
	require.NoError(t, err)
	assert.Equal(t, "gw", gw.Name)

	_, err = GetGateway(context.Background(), c, "web", "missing")
	assert.Error(t, err)
}
