// Package patchdiff computes a JSON Patch between an object's observed
// state and the mutated state this webhook wants to admit it as. It wraps
// gomodules.xyz/jsonpatch/v2, the same library
// sigs.k8s.io/controller-runtime/pkg/webhook/admission.PatchResponseFromRaw
// uses internally - promoted here from an indirect to a direct dependency
// so the diff can be computed ahead of building the admission.Response.
package patchdiff

import (
	"encoding/json"
	"fmt"

	"gomodules.xyz/jsonpatch/v2"
)

// Diff marshals source and target to JSON and returns the patch operations
// that transform source into target.
func Diff(source, target any) ([]jsonpatch.Operation, error) {
	srcJSON, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("marshaling patch source: %w", err)
	}
	dstJSON, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("marshaling patch target: %w", err)
	}

	ops, err := jsonpatch.CreatePatch(srcJSON, dstJSON)
	if err != nil {
		return nil, fmt.Errorf("computing json patch: %w", err)
	}
	return ops, nil
}
