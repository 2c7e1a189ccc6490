// Package attach decides which Gateway listeners an HTTPRoute parentRef
// actually attaches to, resolves a listener's allowed namespaces, and
// audits a Gateway's listeners for non-redirect routes sitting on an HTTP
// (non-TLS) listener.
package attach

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/types"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"go.magiclouds.cn/ingress-tls-webhook/internal/accessors"
	"go.magiclouds.cn/ingress-tls-webhook/internal/classify"
	"go.magiclouds.cn/ingress-tls-webhook/internal/decision"
)

// GatewayListenerPair is an owned Gateway together with the indices of its
// listeners that a given parentRef attaches to. Indices into
// Gateway.Spec.Listeners are resolved lazily via Listeners() rather than
// holding onto listener pointers, so the pair stays a plain value type.
type GatewayListenerPair struct {
	Gateway         gatewayv1.Gateway
	ListenerIndices []int
}

func (p GatewayListenerPair) Listeners() []gatewayv1.Listener {
	out := make([]gatewayv1.Listener, 0, len(p.ListenerIndices))
	for _, i := range p.ListenerIndices {
		out = append(out, p.Gateway.Spec.Listeners[i])
	}
	return out
}

// ParentRefMatchesListener reports whether a parentRef attaches to a
// specific listener: the ref must target a Gateway with the given name and
// namespace (falling back to hostNamespace when the ref omits a
// namespace), and any sectionName/port it specifies must match the
// listener exactly.
func ParentRefMatchesListener(ref gatewayv1.ParentReference, listener gatewayv1.Listener, gatewayName, gatewayNamespace, hostNamespace string) bool {
	if ref.Kind != nil && string(*ref.Kind) != "Gateway" {
		return false
	}
	if ref.Group != nil && *ref.Group != "" && string(*ref.Group) != gatewayv1.GroupName {
		return false
	}
	if string(ref.Name) != gatewayName {
		return false
	}

	ns := hostNamespace
	if ref.Namespace != nil {
		ns = string(*ref.Namespace)
	}
	if ns != gatewayNamespace {
		return false
	}

	if ref.SectionName != nil && *ref.SectionName != listener.Name {
		return false
	}
	if ref.Port != nil && *ref.Port != listener.Port {
		return false
	}
	return true
}

// AllowedNamespacesForListener resolves a listener's allowedRoutes policy
// into a concrete Namespaces value. Absent allowedRoutes, or an absent or
// "Same" namespaces policy, defaults to the Gateway's own namespace - and
// deliberately does not re-check a route found there against the
// Gateway's namespace (see DESIGN.md open question 1).
func AllowedNamespacesForListener(ctx context.Context, c client.Client, listener gatewayv1.Listener, gatewayNamespace string) (accessors.Namespaces, error) {
	ar := listener.AllowedRoutes
	if ar == nil || ar.Namespaces == nil || ar.Namespaces.From == nil {
		return accessors.SomeNamespaces(gatewayNamespace), nil
	}

	switch *ar.Namespaces.From {
	case gatewayv1.NamespacesFromAll:
		return accessors.AllNamespaces(), nil
	case gatewayv1.NamespacesFromSelector:
		if ar.Namespaces.Selector == nil {
			return accessors.Namespaces{}, fmt.Errorf("allowedRoutes.namespaces.from is Selector but no selector was provided")
		}
		return accessors.FilterNamespaces(ctx, c, ar.Namespaces.Selector)
	default:
		return accessors.SomeNamespaces(gatewayNamespace), nil
	}
}

// RoutesForListener lists every HTTPRoute in the listener's allowed
// namespaces whose parentRefs all match this listener.
func RoutesForListener(ctx context.Context, c client.Client, listener gatewayv1.Listener, gatewayName, gatewayNamespace string) ([]gatewayv1.HTTPRoute, error) {
	ns, err := AllowedNamespacesForListener(ctx, c, listener, gatewayNamespace)
	if err != nil {
		return nil, fmt.Errorf("resolving allowed namespaces for listener %q: %w", listener.Name, err)
	}

	candidates, err := accessors.ListHTTPRoutes(ctx, c, ns)
	if err != nil {
		return nil, err
	}

	var matched []gatewayv1.HTTPRoute
	for _, route := range candidates {
		if allParentRefsMatch(route, listener, gatewayName, gatewayNamespace) {
			matched = append(matched, route)
		}
	}
	return matched, nil
}

func allParentRefsMatch(route gatewayv1.HTTPRoute, listener gatewayv1.Listener, gatewayName, gatewayNamespace string) bool {
	if len(route.Spec.ParentRefs) == 0 {
		return false
	}
	for _, ref := range route.Spec.ParentRefs {
		if !ParentRefMatchesListener(ref, listener, gatewayName, gatewayNamespace, route.Namespace) {
			return false
		}
	}
	return true
}

// AuditGatewayListeners checks every non-HTTPS listener on gateway for
// attached HTTPRoutes that are not pure redirect rules, returning one
// BadListener entry per offending listener.
func AuditGatewayListeners(ctx context.Context, c client.Client, gateway *gatewayv1.Gateway) ([]decision.BadListener, error) {
	var bad []decision.BadListener
	for _, listener := range gateway.Spec.Listeners {
		if listener.Protocol == gatewayv1.HTTPSProtocolType {
			continue
		}

		routes, err := RoutesForListener(ctx, c, listener, gateway.Name, gateway.Namespace)
		if err != nil {
			return nil, fmt.Errorf("auditing listener %q: %w", listener.Name, err)
		}

		parted := decision.PartitionBy(routes, func(r gatewayv1.HTTPRoute) bool {
			return classify.IsRedirectOrNoRule(&r)
		})
		if len(parted.Bad) == 0 {
			continue
		}

		bad = append(bad, decision.BadListener{
			ListenerName: string(listener.Name),
			BadRoutes:    namespacedNames(parted.Bad),
		})
	}
	return bad, nil
}

// HTTPListenersAttachedTo resolves the Gateway a parentRef points at and
// returns the subset of its non-HTTPS listeners that the ref attaches to.
// It returns (nil, nil) when the ref doesn't target a Gateway at all, or
// targets one with no matching HTTP listeners.
func HTTPListenersAttachedTo(ctx context.Context, c client.Client, ref gatewayv1.ParentReference, routeNamespace string) (*GatewayListenerPair, error) {
	if ref.Kind != nil && string(*ref.Kind) != "Gateway" {
		return nil, nil
	}

	gatewayNamespace := routeNamespace
	if ref.Namespace != nil {
		gatewayNamespace = string(*ref.Namespace)
	}

	gw, err := accessors.GetGateway(ctx, c, gatewayNamespace, string(ref.Name))
	if err != nil {
		return nil, err
	}

	var indices []int
	for i, listener := range gw.Spec.Listeners {
		if listener.Protocol == gatewayv1.HTTPSProtocolType {
			continue
		}
		if ParentRefMatchesListener(ref, listener, gw.Name, gw.Namespace, routeNamespace) {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, nil
	}
	return &GatewayListenerPair{Gateway: *gw, ListenerIndices: indices}, nil
}

func namespacedNames(routes []gatewayv1.HTTPRoute) []types.NamespacedName {
	out := make([]types.NamespacedName, 0, len(routes))
	for _, r := range routes {
		out = append(out, types.NamespacedName{Namespace: r.Namespace, Name: r.Name})
	}
	return out
}
