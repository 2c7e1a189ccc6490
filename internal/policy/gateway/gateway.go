// Package gateway implements the Validate and Mutate admission operations
// for Gateway objects.
package gateway

import (
	"context"

	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"go.magiclouds.cn/ingress-tls-webhook/internal/annotate"
	"go.magiclouds.cn/ingress-tls-webhook/internal/attach"
	"go.magiclouds.cn/ingress-tls-webhook/internal/checks"
	"go.magiclouds.cn/ingress-tls-webhook/internal/decision"
	"go.magiclouds.cn/ingress-tls-webhook/internal/patchdiff"
	gatewayutil "go.magiclouds.cn/ingress-tls-webhook/internal/util/gateway"
)

// Options configures the annotations Mutate writes.
type Options struct {
	CertManager *annotate.CertManagerAnnotations
}

func pipeline(c client.Client) checks.Pipeline[*gatewayv1.Gateway] {
	return checks.Pipeline[*gatewayv1.Gateway]{
		skipCheck,
		badAttachedRoutesCheck(c),
		noTLSListenerCheck,
	}
}

// Validate runs the check pipeline: skip, bad-HTTPRoutes-attached,
// no-TLS-listener.
func Validate(ctx context.Context, c client.Client, gw *gatewayv1.Gateway) decision.Status {
	return pipeline(c).Run(ctx, gw)
}

func skipCheck(_ context.Context, gw *gatewayv1.Gateway) (decision.Status, error) {
	if annotate.GetSkip(gw.Annotations) {
		return decision.AllowedStatus(), nil
	}
	return decision.MoveOnStatus(), nil
}

func badAttachedRoutesCheck(c client.Client) checks.Check[*gatewayv1.Gateway] {
	return func(ctx context.Context, gw *gatewayv1.Gateway) (decision.Status, error) {
		bad, err := attach.AuditGatewayListeners(ctx, c, gw)
		if err != nil {
			return decision.Status{}, err
		}
		if len(bad) == 0 {
			return decision.MoveOnStatus(), nil
		}
		return decision.DeniedStatus(decision.GatewayNonRedirectHTTPRouteAttachedToHTTPListener{Bad: bad}), nil
	}
}

func noTLSListenerCheck(_ context.Context, gw *gatewayv1.Gateway) (decision.Status, error) {
	for _, l := range gw.Spec.Listeners {
		if l.Protocol == gatewayv1.HTTPSProtocolType {
			return decision.AllowedStatus(), nil
		}
	}
	return decision.DeniedStatus(decision.GatewayNoTLSListener{}), nil
}

// Mutate runs Validate and, on a denial, produces the corresponding patch:
// GatewayNoTLSListener gets one HTTPS listener added per known hostname
// (none when no hostname is known);
// GatewayNonRedirectHTTPRouteAttachedToHTTPListener gets its offending
// listeners converted to HTTPS in place where possible. Any other outcome
// is forwarded unchanged.
func Mutate(ctx context.Context, c client.Client, gw *gatewayv1.Gateway, opts Options) (decision.Status, error) {
	status := Validate(ctx, c, gw)
	if status.Kind != decision.Denied {
		return status, nil
	}

	switch reason := status.Reason.(type) {
	case decision.GatewayNoTLSListener:
		return mutateAddListeners(gw, opts)
	case decision.GatewayNonRedirectHTTPRouteAttachedToHTTPListener:
		return mutateConvertListeners(gw, reason, status)
	default:
		return status, nil
	}
}

func mutateAddListeners(gw *gatewayv1.Gateway, opts Options) (decision.Status, error) {
	port := gatewayutil.HTTPSPortFor(string(gw.Spec.GatewayClassName))
	hostnames := collectHostnames(gw)

	target := gw.DeepCopy()
	for i, h := range hostnames {
		hostname := gatewayv1.Hostname(h)
		gatewayutil.SetListener(target, gatewayutil.BuildAddedHTTPSListener(gw.Name, gw.Namespace, i, port, &hostname))
	}
	target.Annotations = annotate.PatchCertManagerAnnotations(target.Annotations, opts.CertManager)

	ops, err := patchdiff.Diff(gw, target)
	if err != nil {
		return decision.Status{}, err
	}
	return decision.PatchStatus(ops), nil
}

// mutateConvertListeners converts each bad HTTP listener to HTTPS in place
// when it is convertible - it serves at least one known hostname to put on
// the generated certificate - and otherwise leaves the Gateway's denial
// unchanged.
func mutateConvertListeners(gw *gatewayv1.Gateway, reason decision.GatewayNonRedirectHTTPRouteAttachedToHTTPListener, unchanged decision.Status) (decision.Status, error) {
	target := gw.DeepCopy()

	for _, bl := range reason.Bad {
		listener := gatewayutil.GetListenerByName(target.Spec.Listeners, gatewayv1.SectionName(bl.ListenerName))
		if listener == nil {
			continue
		}
		if listener.Hostname == nil || *listener.Hostname == "" {
			// No known hostname for this listener's certificate SAN: not
			// convertible, the denial stands.
			return unchanged, nil
		}

		port := gatewayutil.HTTPSPortFor(string(gw.Spec.GatewayClassName))
		gatewayutil.ConvertListenerToHTTPS(listener, gw.Name, gw.Namespace, port)
	}

	ops, err := patchdiff.Diff(gw, target)
	if err != nil {
		return decision.Status{}, err
	}
	return decision.PatchStatus(ops), nil
}

func collectHostnames(gw *gatewayv1.Gateway) []string {
	seen := make(map[string]struct{})
	var hostnames []string
	add := func(h string) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		hostnames = append(hostnames, h)
	}

	for _, l := range gw.Spec.Listeners {
		if l.Hostname != nil {
			add(string(*l.Hostname))
		}
	}
	for _, h := range annotate.GetExternalDNSHostnames(gw.Annotations) {
		add(h)
	}
	return hostnames
}
