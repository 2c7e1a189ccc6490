// Package decision defines the outcome types produced by the admission
// engine: the per-check Status returned by the check pipeline, and the
// DenyReason payloads attached to a denial.
//
// Status doubles as a control-flow signal for the pipeline in internal/checks:
// its zero value is NotApplicable, meaning no check had an opinion yet, and
// callers keep using the normal Go `error` return rather than folding
// failure into the enum.
package decision

import (
	"fmt"
	"sort"

	"gomodules.xyz/jsonpatch/v2"
	"k8s.io/apimachinery/pkg/types"
)

// Kind discriminates the variants a Status can hold.
type Kind int

const (
	// NotApplicable is the zero value: no check in the pipeline produced an
	// opinion about the input. A pipeline that terminates here is converted
	// to Invalid by the caller.
	NotApplicable Kind = iota
	// MoveOn means this check had nothing to say; the pipeline should try
	// the next one.
	MoveOn
	// Allowed means the object satisfies policy unconditionally.
	Allowed
	// Denied means the object violates policy; Reason explains why.
	Denied
	// Invalid means the admission request itself could not be processed;
	// Message explains why.
	Invalid
	// Patch means the object should be admitted with the accompanying JSON
	// patch applied.
	Patch
)

// Status is the result of running a single check, or of running the whole
// pipeline for a kind.
type Status struct {
	Kind    Kind
	Reason  DenyReason
	Message string
	Ops     []jsonpatch.Operation
}

// IsContinue reports whether the pipeline should keep evaluating further
// checks. It is true exactly for MoveOn and the zero value.
func (s Status) IsContinue() bool {
	return s.Kind == NotApplicable || s.Kind == MoveOn
}

func MoveOnStatus() Status { return Status{Kind: MoveOn} }

func AllowedStatus() Status { return Status{Kind: Allowed} }

func DeniedStatus(reason DenyReason) Status { return Status{Kind: Denied, Reason: reason} }

func InvalidStatus(format string, args ...any) Status {
	return Status{Kind: Invalid, Message: fmt.Sprintf(format, args...)}
}

func PatchStatus(ops []jsonpatch.Operation) Status { return Status{Kind: Patch, Ops: ops} }

// FromCheckResult folds a single check's (Status, error) pair into a
// Status: a non-nil error always denies with InternalError; otherwise the
// Status is used as-is.
func FromCheckResult(s Status, err error) Status {
	if err != nil {
		return DeniedStatus(InternalError{Err: err})
	}
	return s
}

// DenyReason explains why an object was denied admission.
type DenyReason interface {
	error
	isDenyReason()
}

// InternalError wraps an unexpected failure (a client read error, a
// malformed selector, ...). It always results in an admission denial —
// the webhook never allows an object through when it could not fully
// evaluate policy for it.
type InternalError struct{ Err error }

func (e InternalError) Error() string { return fmt.Sprintf("internal error: %v", e.Err) }
func (e InternalError) Unwrap() error { return e.Err }
func (InternalError) isDenyReason()   {}

// IngressNoTLS denies an Ingress with no spec.tls entries.
type IngressNoTLS struct{}

func (IngressNoTLS) Error() string { return "Ingress does not terminate TLS on any host" }
func (IngressNoTLS) isDenyReason() {}

// GatewayNoTLSListener denies a Gateway with no HTTPS listener.
type GatewayNoTLSListener struct{}

func (GatewayNoTLSListener) Error() string { return "Gateway has no HTTPS listener" }
func (GatewayNoTLSListener) isDenyReason() {}

// BadListener names an HTTP listener on a Gateway together with the
// non-redirect HTTPRoutes attached to it.
type BadListener struct {
	ListenerName string
	BadRoutes    []types.NamespacedName
}

// GatewayNonRedirectHTTPRouteAttachedToHTTPListener denies a Gateway that
// has an HTTP (non-TLS) listener with non-redirect HTTPRoutes attached.
type GatewayNonRedirectHTTPRouteAttachedToHTTPListener struct {
	Bad []BadListener
}

func (d GatewayNonRedirectHTTPRouteAttachedToHTTPListener) Error() string {
	msg := "Gateway has HTTP listener(s) with non-redirect HTTPRoutes attached:"
	for _, bl := range d.Bad {
		routes := dedupeAndSortRoutes(bl.BadRoutes)
		msg += fmt.Sprintf(" listener %q attached by", bl.ListenerName)
		for i, r := range routes {
			if i > 0 {
				msg += ","
			}
			ns := r.Namespace
			if ns == "" {
				ns = "CLUSTERED"
			}
			msg += fmt.Sprintf(" %s/%s", ns, r.Name)
		}
		msg += ";"
	}
	return msg
}
func (GatewayNonRedirectHTTPRouteAttachedToHTTPListener) isDenyReason() {}

// BadParentRef names a parent ref on an HTTPRoute together with the HTTP
// listeners of the referenced Gateway it is attached to.
type BadParentRef struct {
	ParentRefName string
	GatewayName   types.NamespacedName
	ListenerNames []string
}

// HTTPRouteNonRedirectAttachedToHTTPListener denies an HTTPRoute that is
// not a pure redirect rule but is attached to an HTTP (non-TLS) listener.
type HTTPRouteNonRedirectAttachedToHTTPListener struct {
	Bad []BadParentRef
}

func (d HTTPRouteNonRedirectAttachedToHTTPListener) Error() string {
	msg := "HTTPRoute is not a redirect rule but is attached to an HTTP listener:"
	for _, b := range d.Bad {
		msg += fmt.Sprintf(" parentRef %q on Gateway %s/%s listener(s) %v;",
			b.ParentRefName, b.GatewayName.Namespace, b.GatewayName.Name, b.ListenerNames)
	}
	return msg
}
func (HTTPRouteNonRedirectAttachedToHTTPListener) isDenyReason() {}

// CannotInferenceMutation denies an object the mutator could not produce a
// safe patch for. No check currently constructs this variant; it is kept
// for a future mutator that needs to report "I understood the problem but
// not how to fix it" distinctly from Invalid.
type CannotInferenceMutation struct{}

func (CannotInferenceMutation) Error() string { return "cannot infer a mutation for this object" }
func (CannotInferenceMutation) isDenyReason() {}

func dedupeAndSortRoutes(routes []types.NamespacedName) []types.NamespacedName {
	seen := make(map[types.NamespacedName]struct{}, len(routes))
	out := make([]types.NamespacedName, 0, len(routes))
	for _, r := range routes {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AdmissionMessage renders a DenyReason/Invalid message as
// "<namespace>/<name>: <reason>", substituting CLUSTERED for an empty
// namespace (cluster-scoped objects have none).
func AdmissionMessage(namespace, name, reason string) string {
	ns := namespace
	if ns == "" {
		ns = "CLUSTERED"
	}
	return fmt.Sprintf("%s/%s: %s", ns, name, reason)
}

// Parted splits a slice into a "good" and "bad" partition.
type Parted[T any] struct {
	Good []T
	Bad  []T
}

func PartitionBy[T any](items []T, isGood func(T) bool) Parted[T] {
	p := Parted[T]{}
	for _, it := range items {
		if isGood(it) {
			p.Good = append(p.Good, it)
		} else {
			p.Bad = append(p.Bad, it)
		}
	}
	return p
}
