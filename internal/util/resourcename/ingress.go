package resourcename

import "fmt"

// IngressTLSSecretName is the TLS secret name this webhook assigns an
// Ingress it adds a spec.tls entry to: "<name>-tls", truncated to fit
// DNS-1123 subdomain limits like any other generated name.
func IngressTLSSecretName(ingressName string) string {
	return GetValidDNS1123Name(fmt.Sprintf("%s-tls", ingressName))
}
