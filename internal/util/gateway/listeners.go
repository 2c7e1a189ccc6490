// Package gateway holds small Gateway-listener helpers shared by the
// gateway and httproute policy packages: lookup/insert-by-name primitives
// plus the HTTPS-listener construction and in-place HTTP-to-HTTPS
// conversion the mutator needs.
package gateway

import (
	"fmt"

	"k8s.io/utils/ptr"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/util/resourcename"
)

const (
	// TraefikHTTPSPort is the port traefik gateways serve HTTPS on; every
	// other GatewayClass is assumed to front port 443 directly.
	TraefikHTTPSPort = 8443
	DefaultHTTPSPort = 443

	TraefikGatewayClassName = "traefik"
)

// HTTPSPortFor returns the port a generated HTTPS listener should bind,
// based on the Gateway's class.
func HTTPSPortFor(gatewayClassName string) gatewayv1.PortNumber {
	if gatewayClassName == TraefikGatewayClassName {
		return TraefikHTTPSPort
	}
	return DefaultHTTPSPort
}

func GetListenerByName(listeners []gatewayv1.Listener, name gatewayv1.SectionName) *gatewayv1.Listener {
	for i, l := range listeners {
		if l.Name == name {
			return &listeners[i]
		}
	}
	return nil
}

// SetListener inserts a listener into the gateway, or replaces the
// existing listener of the same name.
func SetListener(gateway *gatewayv1.Gateway, listener gatewayv1.Listener) {
	for i, l := range gateway.Spec.Listeners {
		if l.Name == listener.Name {
			gateway.Spec.Listeners[i] = listener
			return
		}
	}
	gateway.Spec.Listeners = append(gateway.Spec.Listeners, listener)
}

// AddedHTTPSListenerName is the name of the synthetic HTTPS listener this
// webhook adds to a Gateway that had none, e.g. "<gn>-https". index
// distinguishes multiple added listeners when the Gateway serves more than
// one hostname; index 0 keeps the bare "<gn>-https" name.
func AddedHTTPSListenerName(gatewayName string, index int) gatewayv1.SectionName {
	base := fmt.Sprintf("%s-https", gatewayName)
	if index > 0 {
		base = fmt.Sprintf("%s-%d", base, index)
	}
	return gatewayv1.SectionName(resourcename.GetValidDNS1035Name(base))
}

// AddedHTTPSSecretName is the TLS secret name backing the added listener
// ("<gn>-https-tls").
func AddedHTTPSSecretName(gatewayName string, index int) gatewayv1.ObjectName {
	base := fmt.Sprintf("%s-https-tls", gatewayName)
	if index > 0 {
		base = fmt.Sprintf("%s-%d-tls", fmt.Sprintf("%s-https", gatewayName), index)
	}
	return gatewayv1.ObjectName(resourcename.GetValidDNS1123Name(base))
}

// ConvertedListenerSecretName is the TLS secret name backing an existing
// HTTP listener converted in place to HTTPS ("<gn>-<listener>-tls").
func ConvertedListenerSecretName(gatewayName string, listenerName gatewayv1.SectionName) gatewayv1.ObjectName {
	return gatewayv1.ObjectName(resourcename.GetValidDNS1123Name(fmt.Sprintf("%s-%s-tls", gatewayName, listenerName)))
}

// BuildAddedHTTPSListener constructs the synthetic HTTPS listener added to
// a Gateway with no HTTPS listener at all, terminating TLS via a secret in
// the Gateway's own namespace.
func BuildAddedHTTPSListener(gatewayName, gatewayNamespace string, index int, port gatewayv1.PortNumber, hostname *gatewayv1.Hostname) gatewayv1.Listener {
	return gatewayv1.Listener{
		Name:     AddedHTTPSListenerName(gatewayName, index),
		Protocol: gatewayv1.HTTPSProtocolType,
		Port:     port,
		Hostname: hostname,
		AllowedRoutes: &gatewayv1.AllowedRoutes{
			Namespaces: &gatewayv1.RouteNamespaces{
				From: ptr.To(gatewayv1.NamespacesFromSame),
			},
		},
		TLS: &gatewayv1.GatewayTLSConfig{
			Mode: ptr.To(gatewayv1.TLSModeTerminate),
			CertificateRefs: []gatewayv1.SecretObjectReference{
				{
					Name:      AddedHTTPSSecretName(gatewayName, index),
					Namespace: ptr.To(gatewayv1.Namespace(gatewayNamespace)),
				},
			},
		},
	}
}

// ConvertListenerToHTTPS mutates an existing HTTP listener in place into
// an HTTPS listener terminating TLS via a per-listener secret, keeping its
// name, hostname and allowedRoutes policy.
func ConvertListenerToHTTPS(listener *gatewayv1.Listener, gatewayName, gatewayNamespace string, port gatewayv1.PortNumber) {
	listener.Protocol = gatewayv1.HTTPSProtocolType
	listener.Port = port
	listener.TLS = &gatewayv1.GatewayTLSConfig{
		Mode: ptr.To(gatewayv1.TLSModeTerminate),
		CertificateRefs: []gatewayv1.SecretObjectReference{
			{
				Name:      ConvertedListenerSecretName(gatewayName, listener.Name),
				Namespace: ptr.To(gatewayv1.Namespace(gatewayNamespace)),
			},
		},
	}
}
