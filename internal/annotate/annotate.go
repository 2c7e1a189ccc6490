// Package annotate centralizes the annotation keys this webhook reads and
// writes, and the logic for inserting cert-manager/Traefik/NGINX
// annotations into a mutated object without clobbering ones the user
// already set.
package annotate

import (
	"fmt"
	"strings"

	cmapi "github.com/cert-manager/cert-manager/pkg/apis/certmanager/v1"
)

const (
	// Skip is set on an Ingress/Gateway/HTTPRoute to opt it out of this
	// webhook's validation and mutation entirely.
	Skip = "ingress-tls.magiclouds.cn/skip"

	// ExternalDNSHostname is read (not written) to discover additional
	// hostnames a Gateway/Ingress serves beyond what its rules/listeners
	// already declare.
	ExternalDNSHostname = "external-dns.alpha.kubernetes.io/hostname"

	CertManagerIssuer        = "cert-manager.io/issuer"
	CertManagerClusterIssuer = "cert-manager.io/cluster-issuer"
	CertManagerIssuerKind    = "cert-manager.io/issuer-kind"
	CertManagerIssuerGroup   = "cert-manager.io/issuer-group"

	TraefikMiddleware  = "traefik.ingress.kubernetes.io/router.middlewares"
	NginxForceSSLRedir = "nginx.ingress.kubernetes.io/force-ssl-redirect"
)

// Issuer names the cert-manager issuer a generated Certificate/TLS secret
// should be issued through.
type Issuer struct {
	Name      string
	Clustered bool
}

// CertManagerAnnotations is the optional cert-manager configuration this
// webhook was started with. A nil *CertManagerAnnotations means "no
// cert-manager integration configured" - annotation insertion is skipped
// entirely.
type CertManagerAnnotations struct {
	Issuer Issuer
	Kind   string
	Group  string
}

// PatchCertManagerAnnotations inserts the issuer-kind annotation, the
// issuer-group annotation (when a group is configured) and the issuer or
// cluster-issuer annotation into annotations, only for keys not already
// present, so it never overwrites
// an annotation the user already set. No-op when cma is nil.
func PatchCertManagerAnnotations(annotations map[string]string, cma *CertManagerAnnotations) map[string]string {
	if cma == nil {
		return annotations
	}
	if annotations == nil {
		annotations = map[string]string{}
	}

	kind := cma.Kind
	if kind == "" {
		if cma.Issuer.Clustered {
			kind = cmapi.ClusterIssuerKind
		} else {
			kind = cmapi.IssuerKind
		}
	}
	orInsert(annotations, CertManagerIssuerKind, kind)

	if cma.Group != "" {
		orInsert(annotations, CertManagerIssuerGroup, cma.Group)
	}

	if cma.Issuer.Clustered {
		orInsert(annotations, CertManagerClusterIssuer, cma.Issuer.Name)
	} else {
		orInsert(annotations, CertManagerIssuer, cma.Issuer.Name)
	}
	return annotations
}

// PatchTraefikMiddleware inserts the Traefik router-middleware annotation
// pointing at the configured redirect middleware resource. resourceRef may
// be "name" (defaulting to the object's own namespace) or
// "namespace/name". No-op when resourceRef is empty.
func PatchTraefikMiddleware(annotations map[string]string, resourceRef, objectNamespace string) map[string]string {
	if resourceRef == "" {
		return annotations
	}
	if annotations == nil {
		annotations = map[string]string{}
	}

	ns, name := objectNamespace, resourceRef
	if idx := strings.IndexByte(resourceRef, '/'); idx >= 0 {
		ns, name = resourceRef[:idx], resourceRef[idx+1:]
	}

	orInsert(annotations, TraefikMiddleware, fmt.Sprintf("%s-%s@kubernetescrd", ns, name))
	return annotations
}

// PatchNginxForceSSLRedirect inserts the NGINX force-ssl-redirect
// annotation.
func PatchNginxForceSSLRedirect(annotations map[string]string) map[string]string {
	if annotations == nil {
		annotations = map[string]string{}
	}
	orInsert(annotations, NginxForceSSLRedir, "true")
	return annotations
}

func orInsert(m map[string]string, key, value string) {
	if _, ok := m[key]; ok {
		return
	}
	m[key] = value
}

// GetSkip reports whether the Skip annotation is set to "true" on
// annotations, opting the owning object out of validation and mutation
// entirely. Any other value, including present-but-empty, does not skip.
func GetSkip(annotations map[string]string) bool {
	return annotations[Skip] == "true"
}

// GetExternalDNSHostnames reads and parses the external-dns hostname
// annotation, comma-splitting its value and prepending "*" to any
// hostname written in the external-dns "wildcard" shorthand (a hostname
// starting with ".").
func GetExternalDNSHostnames(annotations map[string]string) []string {
	raw, ok := annotations[ExternalDNSHostname]
	if !ok || raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	hostnames := make([]string, 0, len(parts))
	for _, p := range parts {
		h := strings.TrimSpace(p)
		if h == "" {
			continue
		}
		if strings.HasPrefix(h, ".") {
			h = "*" + h
		}
		hostnames = append(hostnames, h)
	}
	return hostnames
}
