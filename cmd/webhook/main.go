// Command webhook serves the TLS-termination admission webhook: two
// endpoints, /validate and /mutate, backed by a controller-runtime
// manager with a zap-backed logr.Logger and kingpin-parsed flags in the
// style of projectcontour-contour/cmd/contour/contour.go.
package main

import (
	"crypto/tls"
	"os"

	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/certwatch"
	"go.magiclouds.cn/ingress-tls-webhook/internal/config"
	gatewaypolicy "go.magiclouds.cn/ingress-tls-webhook/internal/policy/gateway"
	ingresspolicy "go.magiclouds.cn/ingress-tls-webhook/internal/policy/ingress"
	ourwebhook "go.magiclouds.cn/ingress-tls-webhook/internal/webhook"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(networkingv1.AddToScheme(scheme))
	utilruntime.Must(gatewayv1.Install(scheme))
}

func main() {
	opts, err := config.ParseFlags(os.Args[:1], os.Args[1:])
	if err != nil {
		setupLog.Error(err, "unable to parse flags")
		os.Exit(1)
	}

	ctrl.SetLogger(zap.New(zap.UseDevMode(false)))

	watcher, err := certwatch.New(ctrl.Log.WithName("certwatch"), opts.TLSFolder, opts.TLSCertificateFileName, opts.TLSPrivateKeyFileName)
	if err != nil {
		setupLog.Error(err, "unable to start TLS certificate watcher")
		os.Exit(1)
	}

	webhookServer := webhook.NewServer(webhook.Options{
		Host: opts.ListenAddress,
		Port: int(opts.ListenPort),
		TLSOpts: []func(*tls.Config){
			func(c *tls.Config) { c.GetCertificate = watcher.GetCertificate },
		},
	})

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:        scheme,
		WebhookServer: webhookServer,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	handlerOpts := ourwebhook.Options{
		Ingress: ingresspolicy.Options{
			CertManager:                        opts.CertManager,
			TraefikIngressRedirectResourceName: opts.TraefikIngressRedirectResourceName,
		},
		Gateway: gatewaypolicy.Options{
			CertManager: opts.CertManager,
		},
	}

	ws := mgr.GetWebhookServer()
	ws.Register("/validate", &admission.Webhook{Handler: &ourwebhook.Validator{Client: mgr.GetClient()}})
	ws.Register("/mutate", &admission.Webhook{Handler: &ourwebhook.Mutator{Client: mgr.GetClient(), Options: handlerOpts}})

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager", "listenAddress", opts.ListenAddress, "listenPort", opts.ListenPort)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
