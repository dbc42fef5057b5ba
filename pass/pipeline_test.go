package pass_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nickng/ssadom/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPipeline(t *testing.T) {
	p, err := pass.LoadPipeline(strings.NewReader(`
passes:
  - split-critical-edges
  - verify-dominance
  - print-domtree
  - print-loops
`))
	require.NoError(t, err)
	assert.Equal(t, pass.Names(), p.Names)

	passes, err := p.Passes(new(bytes.Buffer), true)
	require.NoError(t, err)
	require.Len(t, passes, 4)
	for i, name := range pass.Names() {
		assert.Equal(t, name, passes[i].Name())
	}
	_, ok := passes[0].(pass.Preserver)
	assert.True(t, ok, "split-critical-edges preserves dominance")
}

func TestLoadPipelineErrors(t *testing.T) {
	_, err := pass.LoadPipeline(strings.NewReader(""))
	assert.Equal(t, pass.ErrEmptyPipeline, err)
	_, err = pass.LoadPipeline(strings.NewReader("passes: []\n"))
	assert.Equal(t, pass.ErrEmptyPipeline, err)
	_, err = pass.LoadPipeline(strings.NewReader("pases: [print-domtree]\n"))
	assert.Error(t, err, "unknown fields are rejected")
	_, err = pass.LoadPipeline(strings.NewReader("passes: {\n"))
	assert.Error(t, err)
}

func TestParsePipeline(t *testing.T) {
	p, err := pass.ParsePipeline("split-critical-edges, print-domtree,")
	require.NoError(t, err)
	assert.Equal(t, []string{"split-critical-edges", "print-domtree"}, p.Names)

	_, err = pass.ParsePipeline(" , ")
	assert.Equal(t, pass.ErrEmptyPipeline, err)
}

func TestUnknownPass(t *testing.T) {
	p, err := pass.ParsePipeline("print-domtree,dce")
	require.NoError(t, err)
	_, err = p.Passes(new(bytes.Buffer), true)
	assert.Equal(t, pass.UnknownPassError{Name: "dce"}, err)
	assert.Contains(t, err.Error(), "known: split-critical-edges")
}
