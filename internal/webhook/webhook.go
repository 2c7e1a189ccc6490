// Package webhook wires the policy packages to the two admission paths
// this server exposes: /validate and /mutate, each dispatching internally
// on req.Kind.Kind rather than being registered once per
// GroupVersionKind the way kubebuilder's webhook.CustomValidator scaffold
// does. A single endpoint per verb keeps the TLS listener and manager setup
// small while still covering Ingress, Gateway and HTTPRoute, adapted onto
// sigs.k8s.io/controller-runtime/pkg/webhook/admission's Handler interface.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	networkingv1 "k8s.io/api/networking/v1"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"go.magiclouds.cn/ingress-tls-webhook/internal/decision"
	gatewaypolicy "go.magiclouds.cn/ingress-tls-webhook/internal/policy/gateway"
	httproutepolicy "go.magiclouds.cn/ingress-tls-webhook/internal/policy/httproute"
	ingresspolicy "go.magiclouds.cn/ingress-tls-webhook/internal/policy/ingress"
)

// Options bundles the per-kind mutation configuration the handlers need.
type Options struct {
	Ingress ingresspolicy.Options
	Gateway gatewaypolicy.Options
}

// Validator implements admission.Handler for the /validate path.
type Validator struct {
	Client client.Client
}

// Mutator implements admission.Handler for the /mutate path.
type Mutator struct {
	Client  client.Client
	Options Options
}

var _ admission.Handler = (*Validator)(nil)
var _ admission.Handler = (*Mutator)(nil)

func (v *Validator) Handle(ctx context.Context, req admission.Request) admission.Response {
	logger := log.FromContext(ctx).WithValues("kind", req.Kind.Kind, "namespace", req.Namespace, "name", req.Name)
	logger.Info("validating")

	obj, err := decodeObject(req)
	if err != nil {
		return admission.Errored(decodeErrorCode(err), err)
	}

	var status decision.Status
	switch o := obj.(type) {
	case *networkingv1.Ingress:
		status = ingresspolicy.Validate(ctx, o)
	case *gatewayv1.Gateway:
		status = gatewaypolicy.Validate(ctx, v.Client, o)
	case *gatewayv1.HTTPRoute:
		status = httproutepolicy.Validate(ctx, v.Client, o)
	}

	resp := toResponse(req, status, logger)
	logger.Info("validated", "allowed", resp.Allowed)
	return resp
}

func (m *Mutator) Handle(ctx context.Context, req admission.Request) admission.Response {
	logger := log.FromContext(ctx).WithValues("kind", req.Kind.Kind, "namespace", req.Namespace, "name", req.Name)
	logger.Info("mutating")

	obj, err := decodeObject(req)
	if err != nil {
		return admission.Errored(decodeErrorCode(err), err)
	}

	var status decision.Status
	switch o := obj.(type) {
	case *networkingv1.Ingress:
		status, err = ingresspolicy.Mutate(ctx, o, m.Options.Ingress)
	case *gatewayv1.Gateway:
		status, err = gatewaypolicy.Mutate(ctx, m.Client, o, m.Options.Gateway)
	case *gatewayv1.HTTPRoute:
		status, err = httproutepolicy.Mutate(ctx, m.Client, o)
	}
	if err != nil {
		return admission.Errored(http.StatusInternalServerError, err)
	}

	resp := toResponse(req, status, logger)
	logger.Info("mutated", "allowed", resp.Allowed, "patches", len(status.Ops))
	return resp
}

func toResponse(req admission.Request, status decision.Status, logger logr.Logger) admission.Response {
	switch status.Kind {
	case decision.Allowed, decision.MoveOn, decision.NotApplicable:
		return admission.Allowed("")
	case decision.Denied:
		msg := decision.AdmissionMessage(req.Namespace, req.Name, status.Reason.Error())
		if ie, ok := status.Reason.(decision.InternalError); ok {
			logger.Error(ie.Err, "internal error evaluating admission request")
		}
		return admission.Denied(msg)
	case decision.Invalid:
		return admission.Errored(http.StatusBadRequest, errors.New(decision.AdmissionMessage(req.Namespace, req.Name, status.Message)))
	case decision.Patch:
		return admission.Patched("", status.Ops...)
	default:
		return admission.Errored(http.StatusInternalServerError, fmt.Errorf("unreachable status kind %d", status.Kind))
	}
}

// unsupportedKindError marks a request for a kind this webhook is not
// registered to handle. It is a server-side configuration problem (the
// ValidatingWebhookConfiguration/MutatingWebhookConfiguration rules
// selected a kind this binary doesn't know about), not a malformed
// request, so it is reported as a 5xx rather than a 400.
type unsupportedKindError struct{ kind string }

func (e unsupportedKindError) Error() string { return fmt.Sprintf("unsupported kind %q", e.kind) }

// decodeErrorCode maps a decodeObject error to the HTTP status admission
// should report it with: a malformed request body is a 400, an
// unsupported kind is a 500.
func decodeErrorCode(err error) int32 {
	var unsupported unsupportedKindError
	if errors.As(err, &unsupported) {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func decodeObject(req admission.Request) (any, error) {
	switch req.Kind.Kind {
	case "Ingress":
		var ing networkingv1.Ingress
		if err := json.Unmarshal(req.Object.Raw, &ing); err != nil {
			return nil, fmt.Errorf("decoding Ingress: %w", err)
		}
		return &ing, nil
	case "Gateway":
		var gw gatewayv1.Gateway
		if err := json.Unmarshal(req.Object.Raw, &gw); err != nil {
			return nil, fmt.Errorf("decoding Gateway: %w", err)
		}
		return &gw, nil
	case "HTTPRoute":
		var route gatewayv1.HTTPRoute
		if err := json.Unmarshal(req.Object.Raw, &route); err != nil {
			return nil, fmt.Errorf("decoding HTTPRoute: %w", err)
		}
		return &route, nil
	default:
		return nil, unsupportedKindError{kind: req.Kind.Kind}
	}
}
