// Package checks implements a short-circuiting check pipeline: run a
// fixed, ordered list of checks against an input, stopping at the first
// one that produces an opinion.
//
// Pipeline is generic so each policy package (ingress, gateway, httproute)
// can build its own typed pipeline without repeating the driver loop.
package checks

import (
	"context"

	"go.magiclouds.cn/ingress-tls-webhook/internal/decision"
)

// Check evaluates one admission rule against an input. A non-nil error is
// always turned into a Denied InternalError by the pipeline driver, which
// then stops — individual checks do not need to fold errors into Status
// themselves.
type Check[I any] func(ctx context.Context, in I) (decision.Status, error)

// Pipeline is an ordered list of checks, run until one breaks out of
// MoveOn.
type Pipeline[I any] []Check[I]

// Run evaluates the pipeline in order. It stops at the first check whose
// result is not MoveOn (after folding a returned error into a Denied
// InternalError), and converts an input that exhausted every check still
// on MoveOn into Invalid.
func (p Pipeline[I]) Run(ctx context.Context, in I) decision.Status {
	accum := decision.MoveOnStatus()
	for _, check := range p {
		if !accum.IsContinue() {
			break
		}
		result, err := check(ctx, in)
		accum = decision.FromCheckResult(result, err)
	}
	if accum.Kind == decision.NotApplicable || accum.Kind == decision.MoveOn {
		return decision.InvalidStatus("input does not contain enough information")
	}
	return accum
}
