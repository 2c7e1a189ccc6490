// Package ingress implements the Validate and Mutate admission operations
// for Ingress objects.
package ingress

import (
	"context"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/annotate"
	"go.magiclouds.cn/ingress-tls-webhook/internal/checks"
	"go.magiclouds.cn/ingress-tls-webhook/internal/decision"
	"go.magiclouds.cn/ingress-tls-webhook/internal/patchdiff"
	"go.magiclouds.cn/ingress-tls-webhook/internal/util/resourcename"
)

// Options configures the annotations Mutate writes, per the CLI flags in
// internal/config.
type Options struct {
	CertManager                        *annotate.CertManagerAnnotations
	TraefikIngressRedirectResourceName string
}

const (
	ingressClassAnnotation = "kubernetes.io/ingress.class"
	traefikIngressClass    = "traefik"
	nginxIngressClass      = "nginx"
)

func pipeline() checks.Pipeline[*networkingv1.Ingress] {
	return checks.Pipeline[*networkingv1.Ingress]{skipCheck, hasTLSCheck}
}

// Validate runs the check pipeline: skip, then has-TLS.
func Validate(ctx context.Context, ing *networkingv1.Ingress) decision.Status {
	return pipeline().Run(ctx, ing)
}

func skipCheck(_ context.Context, ing *networkingv1.Ingress) (decision.Status, error) {
	if annotate.GetSkip(ing.Annotations) {
		return decision.AllowedStatus(), nil
	}
	return decision.MoveOnStatus(), nil
}

func hasTLSCheck(_ context.Context, ing *networkingv1.Ingress) (decision.Status, error) {
	if len(ing.Spec.TLS) == 0 {
		return decision.DeniedStatus(decision.IngressNoTLS{}), nil
	}
	return decision.AllowedStatus(), nil
}

// Mutate runs Validate and, on an IngressNoTLS denial, produces a patch
// that adds a spec.tls entry covering every host the Ingress serves and
// the cert-manager/Traefik/NGINX annotations opts configures. Any other
// outcome (Allowed, a different denial) is forwarded unchanged.
func Mutate(ctx context.Context, ing *networkingv1.Ingress, opts Options) (decision.Status, error) {
	status := Validate(ctx, ing)
	if status.Kind != decision.Denied {
		return status, nil
	}
	if _, ok := status.Reason.(decision.IngressNoTLS); !ok {
		return status, nil
	}

	hosts := collectHosts(ing)
	if len(hosts) == 0 {
		return decision.InvalidStatus("the Ingress does not contain hosts information"), nil
	}

	target := ing.DeepCopy()
	target.Spec.TLS = []networkingv1.IngressTLS{
		{
			Hosts:      hosts,
			SecretName: resourcename.IngressTLSSecretName(ing.Name),
		},
	}
	target.Annotations = patchAnnotations(target.Annotations, ingressClass(ing), ing.Namespace, opts)

	ops, err := patchdiff.Diff(ing, target)
	if err != nil {
		return decision.Status{}, err
	}
	return decision.PatchStatus(ops), nil
}

func collectHosts(ing *networkingv1.Ingress) []string {
	seen := make(map[string]struct{})
	var hosts []string
	add := func(h string) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
	}

	for _, rule := range ing.Spec.Rules {
		add(rule.Host)
	}
	for _, h := range annotate.GetExternalDNSHostnames(ing.Annotations) {
		add(h)
	}
	return hosts
}

func ingressClass(ing *networkingv1.Ingress) string {
	if ing.Spec.IngressClassName != nil && *ing.Spec.IngressClassName != "" {
		return strings.ToLower(*ing.Spec.IngressClassName)
	}
	return strings.ToLower(ing.Annotations[ingressClassAnnotation])
}

func patchAnnotations(annotations map[string]string, class, namespace string, opts Options) map[string]string {
	annotations = annotate.PatchCertManagerAnnotations(annotations, opts.CertManager)

	switch class {
	case traefikIngressClass:
		annotations = annotate.PatchTraefikMiddleware(annotations, opts.TraefikIngressRedirectResourceName, namespace)
	case nginxIngressClass:
		annotations = annotate.PatchNginxForceSSLRedirect(annotations)
	}
	return annotations
}
