// Package classify decides whether an HTTPRoute's rule set is "just a TLS
// redirect", which is the only rule shape this webhook lets through on an
// HTTP (non-TLS) listener.
package classify

import (
	apiequality "k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/utils/ptr"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// canonicalRedirectRule is the single rule shape that makes an HTTPRoute
// exempt from the "must terminate TLS" requirement: match everything under
// "/", redirect to https with a 302.
var canonicalRedirectRule = gatewayv1.HTTPRouteRule{
	Matches: []gatewayv1.HTTPRouteMatch{
		{
			Path: &gatewayv1.HTTPPathMatch{
				Type:  ptr.To(gatewayv1.PathMatchPathPrefix),
				Value: ptr.To("/"),
			},
		},
	},
	Filters: []gatewayv1.HTTPRouteFilter{
		{
			Type: gatewayv1.HTTPRouteFilterRequestRedirect,
			RequestRedirect: &gatewayv1.HTTPRequestRedirectFilter{
				Scheme:     ptr.To("https"),
				StatusCode: ptr.To(302),
			},
		},
	},
}

// IsRedirectOrNoRule reports whether route has no rules at all, or exactly
// one rule that is structurally identical to canonicalRedirectRule. Any
// other shape - additional rules, a different match, a different filter -
// is not a pure redirect and returns false.
func IsRedirectOrNoRule(route *gatewayv1.HTTPRoute) bool {
	rules := route.Spec.Rules
	if len(rules) == 0 {
		return true
	}
	if len(rules) != 1 {
		return false
	}
	return apiequality.Semantic.DeepEqual(rules[0], canonicalRedirectRule)
}
