package patchdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name string            `json:"name"`
	Tags map[string]string `json:"tags,omitempty"`
}

func TestDiffAddsField(t *testing.T) {
	ops, err := Diff(widget{Name: "a"}, widget{Name: "a", Tags: map[string]string{"k": "v"}})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "add", ops[0].Operation)
	assert.Equal(t, "/tags", ops[0].Path)
}

func TestDiffNoChangeIsEmpty(t *testing.T) {
	ops, err := Diff(widget{Name: "a"}, widget{Name: "a"})
	require.NoError(t, err)
	assert.Empty(t, ops)
}
