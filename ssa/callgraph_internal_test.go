package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/callgraph"
)

func TestEdgesWithoutCalls(t *testing.T) {
	g := &CallGraph{cg: callgraph.New(nil)}
	calls, err := g.edges()
	require.NoError(t, err)
	assert.Empty(t, calls)

	// The graph is not visited again.
	g.cg = nil
	assert.NotPanics(t, func() {
		calls, err = g.edges()
	})
	assert.NoError(t, err)
	assert.Empty(t, calls)
}
