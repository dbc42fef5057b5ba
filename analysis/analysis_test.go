package analysis_test

import (
	"strings"
	"testing"

	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/ssa/build"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/tools/go/ssa"
)

// event is an invalidation seen by a fake analysis; fn is nil for the coarse
// hook.
type event struct {
	name string
	fn   *ssa.Function
	kind analysis.InvalidationKind
}

type fake struct {
	analysis.Base
	name   string
	events *[]event
}

func (f *fake) Invalidate(k analysis.InvalidationKind) {
	*f.events = append(*f.events, event{f.name, nil, k})
}

func (f *fake) InvalidateFunc(fn *ssa.Function, k analysis.InvalidationKind) {
	*f.events = append(*f.events, event{f.name, fn, k})
}

// closer is a fake analysis which holds resources.
type closer struct {
	fake
	err    error
	closed *[]string
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "dominance", analysis.DominanceAnalysis.String())
	assert.Equal(t, "callgraph", analysis.CallGraphAnalysis.String())
	assert.Equal(t, "loop", analysis.LoopAnalysis.String())
	assert.Equal(t, "kind(42)", analysis.Kind(42).String())

	assert.Equal(t, "cfg", analysis.CFG.String())
	assert.Equal(t, "invalidation(9)", analysis.InvalidationKind(9).String())
}

func TestInvalidationOrder(t *testing.T) {
	kinds := []analysis.InvalidationKind{analysis.Nothing, analysis.Instructions, analysis.CFG, analysis.CallGraph, analysis.All}
	for i, k := range kinds {
		for j, threshold := range kinds {
			assert.Equal(t, i >= j, k.AtLeast(threshold), "%s.AtLeast(%s)", k, threshold)
		}
	}
}

func TestBase(t *testing.T) {
	b := analysis.NewBase(nil, analysis.LoopAnalysis)
	assert.Equal(t, analysis.LoopAnalysis, b.Kind())
	assert.True(t, b.IsKind(analysis.LoopAnalysis))
	assert.False(t, b.IsKind(analysis.DominanceAnalysis))
	assert.Nil(t, b.Program())

	var events []event
	f := &fake{Base: b, events: &events}
	assert.True(t, analysis.Is(f, analysis.LoopAnalysis))
	assert.False(t, analysis.Is(f, analysis.CallGraphAnalysis))
	assert.False(t, analysis.Is(nil, analysis.LoopAnalysis))
}

func TestRegister(t *testing.T) {
	var events []event
	m := analysis.NewManager(nil)
	a := &fake{Base: analysis.NewBase(nil, analysis.DominanceAnalysis), name: "a", events: &events}
	require.NoError(t, m.Register(a))

	dup := &fake{Base: analysis.NewBase(nil, analysis.DominanceAnalysis), name: "dup", events: &events}
	err := m.Register(dup)
	assert.Equal(t, analysis.ErrDuplicateKind, errors.Cause(err))
	assert.Equal(t, analysis.ErrNilAnalysis, m.Register(nil))

	got, ok := m.Get(analysis.DominanceAnalysis)
	assert.True(t, ok)
	assert.Same(t, a, got)
	_, ok = m.Get(analysis.LoopAnalysis)
	assert.False(t, ok)

	as := m.Analyses()
	require.Len(t, as, 1)
	as[0] = nil
	assert.NotNil(t, m.Analyses()[0], "Analyses returns a copy")
}

func TestBroadcast(t *testing.T) {
	var events []event
	m := analysis.NewManager(nil)
	a := &fake{Base: analysis.NewBase(nil, analysis.DominanceAnalysis), name: "a", events: &events}
	b := &fake{Base: analysis.NewBase(nil, analysis.LoopAnalysis), name: "b", events: &events}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))
	info, err := build.FromReader(strings.NewReader(`package main; func main() {}`)).Build()
	require.NoError(t, err)
	fn, err := info.FindFunc("main")
	require.NoError(t, err)

	m.Invalidate(analysis.CFG)
	m.InvalidateFunc(fn, analysis.Instructions)
	m.InvalidateFuncExcept(fn, analysis.CFG, analysis.DominanceAnalysis)
	assert.Equal(t, []event{
		{"a", nil, analysis.CFG},
		{"b", nil, analysis.CFG},
		{"a", fn, analysis.Instructions},
		{"b", fn, analysis.Instructions},
		{"b", fn, analysis.CFG},
	}, events, "events are broadcast in registration order")
}

func TestClose(t *testing.T) {
	var events []event
	var closed []string
	errA, errC := errors.New("a"), errors.New("c")
	m := analysis.NewManager(nil)
	require.NoError(t, m.Register(&closer{fake{analysis.NewBase(nil, analysis.DominanceAnalysis), "a", &events}, errA, &closed}))
	require.NoError(t, m.Register(&fake{analysis.NewBase(nil, analysis.CallGraphAnalysis), "b", &events}))
	require.NoError(t, m.Register(&closer{fake{analysis.NewBase(nil, analysis.LoopAnalysis), "c", &events}, errC, &closed}))

	err := m.Close()
	assert.Equal(t, []string{"c", "a"}, closed, "closed in reverse registration order")
	assert.Equal(t, []error{errC, errA}, multierr.Errors(err))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := analysis.NewManager(nil)
	m.SetLogger(zap.New(core))
	m.InvalidateFunc(nil, analysis.All)
	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "analysis", entries[0].LoggerName)
	assert.Equal(t, "<nil>", entries[0].ContextMap()["func"])
}

func TestFuncName(t *testing.T) {
	assert.Equal(t, "<nil>", analysis.FuncName(nil))
	info, err := build.FromReader(strings.NewReader(`package main; func main() {}`)).Build()
	require.NoError(t, err)
	fn, err := info.FindFunc("main")
	require.NoError(t, err)
	assert.Equal(t, "main.main", analysis.FuncName(fn))
}
