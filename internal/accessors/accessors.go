// Package accessors implements the cluster read operations the decision
// engine needs: fetching a Gateway, listing HTTPRoutes, and resolving a
// namespace label selector. Every function takes a context.Context and a
// controller-runtime client.Client, consistent with the rest of this
// codebase's cluster reads.
package accessors

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Namespaces is the resolved set of namespaces a listener's allowed routes
// may come from: either every namespace in the cluster, or an explicit
// list. The zero value (All: false, Names: nil) means "no namespaces",
// distinct from "all namespaces" - callers that mean "all" must set All.
type Namespaces struct {
	All   bool
	Names []string
}

func AllNamespaces() Namespaces { return Namespaces{All: true} }

func SomeNamespaces(names ...string) Namespaces { return Namespaces{Names: names} }

// GetGateway fetches a single Gateway by namespace and name.
func GetGateway(ctx context.Context, c client.Client, namespace, name string) (*gatewayv1.Gateway, error) {
	var gw gatewayv1.Gateway
	if err := c.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, &gw); err != nil {
		return nil, fmt.Errorf("getting gateway %s/%s: %w", namespace, name, err)
	}
	return &gw, nil
}

// ListHTTPRoutes lists every HTTPRoute across the resolved namespace set.
// When ns.All is true it lists cluster-wide in one call; otherwise it
// issues one namespaced list per name and concatenates the results.
func ListHTTPRoutes(ctx context.Context, c client.Client, ns Namespaces) ([]gatewayv1.HTTPRoute, error) {
	if ns.All {
		var list gatewayv1.HTTPRouteList
		if err := c.List(ctx, &list); err != nil {
			return nil, fmt.Errorf("listing httproutes across all namespaces: %w", err)
		}
		return list.Items, nil
	}

	var routes []gatewayv1.HTTPRoute
	for _, n := range ns.Names {
		var list gatewayv1.HTTPRouteList
		if err := c.List(ctx, &list, client.InNamespace(n)); err != nil {
			return nil, fmt.Errorf("listing httproutes in namespace %q: %w", n, err)
		}
		routes = append(routes, list.Items...)
	}
	return routes, nil
}

// FilterNamespaces resolves a Gateway listener's allowedRoutes label
// selector into the concrete set of namespace names that satisfy it. It
// combines matchLabels and matchExpressions into a single labels.Selector
// built from explicit labels.Requirements rather than
// metav1.LabelSelectorAsSelector, because an In/NotIn expression with no
// Values must be reported as an internal error here - the stock helper
// silently turns it into a selector that can never match, which would
// surface as "no namespaces allowed" instead of a diagnosable failure.
func FilterNamespaces(ctx context.Context, c client.Client, selector *metav1.LabelSelector) (Namespaces, error) {
	sel, err := buildSelector(selector)
	if err != nil {
		return Namespaces{}, err
	}

	var list corev1.NamespaceList
	if err := c.List(ctx, &list); err != nil {
		return Namespaces{}, fmt.Errorf("listing namespaces: %w", err)
	}

	var names []string
	for _, ns := range list.Items {
		if sel.Matches(labels.Set(ns.Labels)) {
			names = append(names, ns.Name)
		}
	}
	return SomeNamespaces(names...), nil
}

func buildSelector(selector *metav1.LabelSelector) (labels.Selector, error) {
	sel := labels.NewSelector()
	if selector == nil {
		return sel, nil
	}

	for k, v := range selector.MatchLabels {
		req, err := labels.NewRequirement(k, selection.Equals, []string{v})
		if err != nil {
			return nil, fmt.Errorf("building matchLabels requirement for %q: %w", k, err)
		}
		sel = sel.Add(*req)
	}

	for _, expr := range selector.MatchExpressions {
		op, err := toSelectionOperator(expr.Operator)
		if err != nil {
			return nil, err
		}

		if (expr.Operator == metav1.LabelSelectorOpIn || expr.Operator == metav1.LabelSelectorOpNotIn) && len(expr.Values) == 0 {
			return nil, fmt.Errorf("matchExpressions operator %q on key %q requires at least one value", expr.Operator, expr.Key)
		}

		req, err := labels.NewRequirement(expr.Key, op, append([]string(nil), expr.Values...))
		if err != nil {
			return nil, fmt.Errorf("building matchExpressions requirement for %q: %w", expr.Key, err)
		}
		sel = sel.Add(*req)
	}

	return sel, nil
}

func toSelectionOperator(op metav1.LabelSelectorOperator) (selection.Operator, error) {
	switch op {
	case metav1.LabelSelectorOpIn:
		return selection.In, nil
	case metav1.LabelSelectorOpNotIn:
		return selection.NotIn, nil
	case metav1.LabelSelectorOpExists:
		return selection.Exists, nil
	case metav1.LabelSelectorOpDoesNotExist:
		return selection.DoesNotExist, nil
	default:
		return "", fmt.Errorf("unsupported matchExpressions operator %q", op)
	}
}
