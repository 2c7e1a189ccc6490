// Package config parses this webhook's CLI flags into an Options value:
// listen address as HOST:PORT, an optional cert-manager issuer reference,
// the Traefik redirect Middleware name, and the TLS serving folder. Uses
// github.com/alecthomas/kingpin/v2 for typed, custom-parsed flags in the
// style of projectcontour-contour's cmd/contour/contour.go.
//
// There is no kubebuilder-style declarative operator config here: this
// webhook's entire configuration surface is the flag set below.
package config

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"go.magiclouds.cn/ingress-tls-webhook/internal/annotate"
)

// Options is the fully parsed configuration for a webhook process.
type Options struct {
	ListenAddress string
	ListenPort    uint16

	CertManager *annotate.CertManagerAnnotations

	TraefikIngressRedirectResourceName string

	TLSFolder              string
	TLSCertificateFileName string
	TLSPrivateKeyFileName  string
}

// ParseFlags builds the flag set and parses args (typically os.Args[1:])
// into an Options.
func ParseFlags(appName, args []string) (*Options, error) {
	app := kingpin.New(name(appName), "TLS-termination admission webhook for Ingress, Gateway and HTTPRoute.")

	opts := &Options{}

	listen := &hostPortValue{host: "0.0.0.0", port: 443}
	app.Flag("listen-address", "Address to serve the admission webhook on, as HOST:PORT.").
		Default(listen.String()).SetValue(listen)

	issuerRaw := app.Flag("issuer", "cert-manager issuer to reference, as namespaced:NAME or clustered:NAME. "+
		"Omit to disable cert-manager annotation insertion entirely.").String()

	issuerKind := app.Flag("issuer-kind", "Override the cert-manager.io/issuer-kind annotation value.").String()
	issuerGroup := app.Flag("issuer-group", "Value for the cert-manager.io/issuer-group annotation.").String()

	app.Flag("traefik-ingress-redirect-resource-name", "Traefik Middleware resource (as NAME or NAMESPACE/NAME) "+
		"to reference from the router.middlewares annotation on mutated Ingresses.").
		StringVar(&opts.TraefikIngressRedirectResourceName)

	app.Flag("tls-folder", "Directory containing the webhook's serving certificate and key.").
		Default("/etc/ingress-tls-webhook/tls").StringVar(&opts.TLSFolder)
	app.Flag("tls-certificate-file-name", "Certificate file name within --tls-folder.").
		Default("tls.crt").StringVar(&opts.TLSCertificateFileName)
	app.Flag("tls-private-key-file-name", "Private key file name within --tls-folder.").
		Default("tls.key").StringVar(&opts.TLSPrivateKeyFileName)

	if _, err := app.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	opts.ListenAddress = listen.host
	opts.ListenPort = listen.port

	if *issuerRaw != "" {
		issuer := &issuerValue{}
		if err := issuer.Set(*issuerRaw); err != nil {
			return nil, fmt.Errorf("parsing --issuer: %w", err)
		}
		opts.CertManager = &annotate.CertManagerAnnotations{
			Issuer: issuer.issuer,
			Kind:   *issuerKind,
			Group:  *issuerGroup,
		}
	} else if *issuerKind != "" || *issuerGroup != "" {
		return nil, fmt.Errorf("--issuer-kind and --issuer-group require --issuer")
	}

	return opts, nil
}

func name(appName []string) string {
	if len(appName) == 0 {
		return "ingress-tls-webhook"
	}
	return strings.Join(appName, " ")
}

// hostPortValue parses a kingpin flag of the form HOST:PORT.
type hostPortValue struct {
	host string
	port uint16
}

func (v *hostPortValue) String() string {
	return fmt.Sprintf("%s:%d", v.host, v.port)
}

func (v *hostPortValue) Set(raw string) error {
	idx := strings.LastIndexByte(raw, ':')
	if idx < 0 {
		return fmt.Errorf("expected HOST:PORT, got %q", raw)
	}
	host, portStr := raw[:idx], raw[idx+1:]

	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return fmt.Errorf("invalid port in %q: %w", raw, err)
	}
	v.host, v.port = host, port
	return nil
}

// issuerValue parses a kingpin flag of the form TYPE:VALUE, where TYPE is
// "namespaced" or "clustered".
type issuerValue struct {
	issuer annotate.Issuer
}

func (v *issuerValue) String() string {
	if v.issuer.Clustered {
		return "clustered:" + v.issuer.Name
	}
	return "namespaced:" + v.issuer.Name
}

func (v *issuerValue) Set(raw string) error {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return fmt.Errorf("expected TYPE:VALUE (TYPE one of namespaced, clustered), got %q", raw)
	}
	kind, value := raw[:idx], raw[idx+1:]
	if value == "" {
		return fmt.Errorf("issuer name must not be empty in %q", raw)
	}

	switch kind {
	case "namespaced":
		v.issuer = annotate.Issuer{Name: value}
	case "clustered":
		v.issuer = annotate.Issuer{Name: value, Clustered: true}
	default:
		return fmt.Errorf("unknown issuer type %q, expected namespaced or clustered", kind)
	}
	return nil
}
