// Package httproute implements the Validate and Mutate admission operations
// for HTTPRoute objects.
package httproute

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"go.magiclouds.cn/ingress-tls-webhook/internal/annotate"
	"go.magiclouds.cn/ingress-tls-webhook/internal/attach"
	"go.magiclouds.cn/ingress-tls-webhook/internal/checks"
	"go.magiclouds.cn/ingress-tls-webhook/internal/classify"
	"go.magiclouds.cn/ingress-tls-webhook/internal/decision"
	"go.magiclouds.cn/ingress-tls-webhook/internal/patchdiff"
)

func pipeline(c client.Client) checks.Pipeline[*gatewayv1.HTTPRoute] {
	return checks.Pipeline[*gatewayv1.HTTPRoute]{
		skipCheck,
		redirectOrNoRuleCheck,
		noParentRefsCheck,
		attachedToHTTPListenerCheck(c),
	}
}

// Validate runs the check pipeline: skip, redirect-or-no-rule,
// no-parent-refs, attached-to-HTTP-listener.
func Validate(ctx context.Context, c client.Client, route *gatewayv1.HTTPRoute) decision.Status {
	return pipeline(c).Run(ctx, route)
}

func skipCheck(_ context.Context, route *gatewayv1.HTTPRoute) (decision.Status, error) {
	if annotate.GetSkip(route.Annotations) {
		return decision.AllowedStatus(), nil
	}
	return decision.MoveOnStatus(), nil
}

func redirectOrNoRuleCheck(_ context.Context, route *gatewayv1.HTTPRoute) (decision.Status, error) {
	if classify.IsRedirectOrNoRule(route) {
		return decision.AllowedStatus(), nil
	}
	return decision.MoveOnStatus(), nil
}

func noParentRefsCheck(_ context.Context, route *gatewayv1.HTTPRoute) (decision.Status, error) {
	if len(route.Spec.ParentRefs) == 0 {
		return decision.AllowedStatus(), nil
	}
	return decision.MoveOnStatus(), nil
}

func attachedToHTTPListenerCheck(c client.Client) checks.Check[*gatewayv1.HTTPRoute] {
	return func(ctx context.Context, route *gatewayv1.HTTPRoute) (decision.Status, error) {
		var bad []decision.BadParentRef
		for _, ref := range route.Spec.ParentRefs {
			pair, err := attach.HTTPListenersAttachedTo(ctx, c, ref, route.Namespace)
			if err != nil {
				return decision.Status{}, err
			}
			if pair == nil {
				continue
			}
			bad = append(bad, decision.BadParentRef{
				ParentRefName: refDisplayName(ref),
				GatewayName:   types.NamespacedName{Namespace: pair.Gateway.Namespace, Name: pair.Gateway.Name},
				ListenerNames: listenerNames(pair.Listeners()),
			})
		}
		if len(bad) == 0 {
			return decision.AllowedStatus(), nil
		}
		return decision.DeniedStatus(decision.HTTPRouteNonRedirectAttachedToHTTPListener{Bad: bad}), nil
	}
}

// Mutate runs Validate and, on a HTTPRouteNonRedirectAttachedToHTTPListener
// denial, tries to re-parent each offending parentRef onto the HTTPS
// listener(s) of the same Gateway: the only HTTPS listener when there is
// exactly one, otherwise those that together cover every hostname the
// route needs. If any offending ref has no such HTTPS home, the denial is
// forwarded unchanged rather than guessing.
func Mutate(ctx context.Context, c client.Client, route *gatewayv1.HTTPRoute) (decision.Status, error) {
	status := Validate(ctx, c, route)
	if status.Kind != decision.Denied {
		return status, nil
	}
	if _, ok := status.Reason.(decision.HTTPRouteNonRedirectAttachedToHTTPListener); !ok {
		return status, nil
	}

	target := route.DeepCopy()
	var keptRefs []gatewayv1.ParentReference
	var addedRefs []gatewayv1.ParentReference

	for _, ref := range route.Spec.ParentRefs {
		pair, err := attach.HTTPListenersAttachedTo(ctx, c, ref, route.Namespace)
		if err != nil {
			return decision.Status{}, err
		}
		if pair == nil {
			keptRefs = append(keptRefs, ref)
			continue
		}

		newRefs, ok := reparentToHTTPSListeners(route, *pair)
		if !ok {
			// Not convertible: forward the existing denial unchanged.
			return status, nil
		}
		addedRefs = append(addedRefs, newRefs...)
	}

	target.Spec.ParentRefs = append(keptRefs, addedRefs...)

	ops, err := patchdiff.Diff(route, target)
	if err != nil {
		return decision.Status{}, err
	}
	return decision.PatchStatus(ops), nil
}

// reparentToHTTPSListeners returns the parentRefs that should replace the
// offending one. A Gateway with exactly one HTTPS listener yields a ref to
// that listener, whatever its hostname. Otherwise it picks the HTTPS
// listener(s) on pair.Gateway matching a hostname the route needs (its own
// spec.hostnames plus the hostnames of the HTTP listeners it was wrongly
// attached to), and reports ok=false unless those listeners cover every
// such hostname.
func reparentToHTTPSListeners(route *gatewayv1.HTTPRoute, pair attach.GatewayListenerPair) ([]gatewayv1.ParentReference, bool) {
	hostnames := unionHostnames(route, pair.Listeners())

	var candidates []gatewayv1.Listener
	for _, l := range pair.Gateway.Spec.Listeners {
		if l.Protocol == gatewayv1.HTTPSProtocolType {
			candidates = append(candidates, l)
		}
	}

	if len(candidates) == 1 {
		return []gatewayv1.ParentReference{parentRefFor(pair.Gateway, candidates[0])}, true
	}

	var matching []gatewayv1.Listener
	for _, c := range candidates {
		if listenerCoversHostnames(c, hostnames) {
			matching = append(matching, c)
		}
	}
	if !everyHostnameCovered(hostnames, matching) {
		return nil, false
	}

	refs := make([]gatewayv1.ParentReference, 0, len(matching))
	for _, c := range matching {
		refs = append(refs, parentRefFor(pair.Gateway, c))
	}
	return refs, true
}

func parentRefFor(gw gatewayv1.Gateway, listener gatewayv1.Listener) gatewayv1.ParentReference {
	return gatewayv1.ParentReference{
		Kind:        ptr.To(gatewayv1.Kind("Gateway")),
		Name:        gatewayv1.ObjectName(gw.Name),
		Namespace:   ptr.To(gatewayv1.Namespace(gw.Namespace)),
		SectionName: ptr.To(listener.Name),
		Port:        ptr.To(listener.Port),
	}
}

func unionHostnames(route *gatewayv1.HTTPRoute, httpListeners []gatewayv1.Listener) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(h string) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	for _, h := range route.Spec.Hostnames {
		add(string(h))
	}
	for _, l := range httpListeners {
		if l.Hostname != nil {
			add(string(*l.Hostname))
		}
	}
	return out
}

// listenerCoversHostnames reports whether the listener covers at least one
// hostname in the set: an empty listener hostname covers everything (given
// a non-empty set), otherwise the listener's hostname must equal one of
// the hostnames exactly.
func listenerCoversHostnames(l gatewayv1.Listener, hostnames []string) bool {
	if l.Hostname == nil || *l.Hostname == "" {
		return len(hostnames) > 0
	}
	for _, h := range hostnames {
		if h == string(*l.Hostname) {
			return true
		}
	}
	return false
}

func everyHostnameCovered(hostnames []string, listeners []gatewayv1.Listener) bool {
	if len(hostnames) == 0 || len(listeners) == 0 {
		return false
	}
	for _, h := range hostnames {
		covered := false
		for _, l := range listeners {
			if l.Hostname == nil || *l.Hostname == "" || string(*l.Hostname) == h {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

func listenerNames(listeners []gatewayv1.Listener) []string {
	out := make([]string, 0, len(listeners))
	for _, l := range listeners {
		out = append(out, string(l.Name))
	}
	return out
}

func refDisplayName(ref gatewayv1.ParentReference) string {
	if ref.SectionName != nil {
		return fmt.Sprintf("%s/%s", ref.Name, *ref.SectionName)
	}
	return string(ref.Name)
}
