package pass_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/block"
	"github.com/nickng/ssadom/dom"
	"github.com/nickng/ssadom/dominance"
	"github.com/nickng/ssadom/loop"
	"github.com/nickng/ssadom/pass"
	"github.com/nickng/ssadom/ssa/build"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"golang.org/x/tools/go/ssa"
)

const src = `package main

func crit(a, b bool) int {
	x := 0
	if a {
		x = 1
		if b {
			x = 2
		}
	}
	return x
}

func trap(c bool) int {
	if c {
		for {
		}
	}
	return 0
}

func f(c bool) int {
	if c {
		return 1
	}
	return 2
}

func g(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}

func main() {}
`

type fixture struct {
	am    *analysis.Manager
	doms  *dominance.Analysis
	loops *loop.Analysis
	find  func(string) *ssa.Function
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupSrc(t, src)
}

func setupSrc(t *testing.T, src string) *fixture {
	t.Helper()
	info, err := build.FromReader(strings.NewReader(src)).Build()
	require.NoError(t, err, "SSA build failed")
	fx := &fixture{am: analysis.NewManager(info.Prog)}
	fx.doms = dominance.New(info.Prog, nil)
	fx.loops = loop.New(info.Prog, fx.doms)
	require.NoError(t, fx.am.Register(fx.doms))
	require.NoError(t, fx.am.Register(fx.loops))
	fx.find = func(name string) *ssa.Function {
		fn, err := info.FindFunc(name)
		require.NoError(t, err)
		return fn
	}
	return fx
}

func TestSplitCriticalEdges(t *testing.T) {
	for _, name := range []string{"crit", "trap"} {
		t.Run(name, func(t *testing.T) {
			fx := setup(t)
			fn := fx.find(name)
			nEdges := len(block.CriticalEdges(fn))
			require.NotZero(t, nEdges)
			nBlocks := len(fn.Blocks)
			_, err := fx.loops.Loops(fn)
			require.NoError(t, err)
			before, err := fx.doms.DomTree(fn)
			require.NoError(t, err)

			err = pass.NewRunner(fx.am).Add(pass.SplitCriticalEdges{}).Run([]*ssa.Function{fn})
			require.NoError(t, err)
			assert.Empty(t, block.CriticalEdges(fn))
			assert.Len(t, fn.Blocks, nBlocks+nEdges)

			// The trees were kept up to date rather than rebuilt.
			require.True(t, fx.doms.HasDomTree(fn))
			require.True(t, fx.doms.HasPostDomTree(fn))
			dt, err := fx.doms.DomTree(fn)
			require.NoError(t, err)
			assert.Same(t, before, dt)
			pdt, err := fx.doms.PostDomTree(fn)
			require.NoError(t, err)

			fresh, err := dom.DefaultBuilder{}.BuildDom(fn)
			require.NoError(t, err)
			freshPost, err := dom.DefaultBuilder{}.BuildPostDom(fn)
			require.NoError(t, err)
			assert.True(t, dt.Equal(fresh), "updated dominator tree equals a fresh build")
			assert.True(t, pdt.Equal(freshPost), "updated post-dominator tree equals a fresh build")
			assert.NoError(t, dom.VerifyDom(dt))
			assert.NoError(t, dom.VerifyPostDom(pdt))
		})
	}
}

// exitsSrc has functions with several exits inside loops, so blocks whose
// immediate post-dominator is the virtual exit have successors.
const exitsSrc = `package main

func index(xs []int, k int) int {
	for i, x := range xs {
		if x == k {
			return i
		}
		if x < 0 {
			break
		}
		if x == 0 {
			continue
		}
		if x > 100 {
			return -2
		}
	}
	return -1
}

func jump(n int) int {
	i := 0
loop:
	if i < n {
		switch {
		case i == 3 && n > 4:
			return i
		case i%2 == 0:
			i += 3
			goto loop
		}
		i++
		goto loop
	}
	return n
}

func cond(p, q bool, n int) int {
	for n > 0 {
		if p && q {
			return 1
		}
		if p || q {
			n--
			continue
		}
		for {
			if n == 7 {
				return 7
			}
		}
	}
	return 0
}

func stuck(c bool, n int) int {
	for n > 0 {
		if c {
			for {
			}
		}
		if n == 5 {
			return 5
		}
		n--
	}
	return 0
}

func main() {}
`

func TestSplitCriticalEdgesMultipleExits(t *testing.T) {
	for _, name := range []string{"index", "jump", "cond", "stuck"} {
		t.Run(name, func(t *testing.T) {
			fx := setupSrc(t, exitsSrc)
			fn := fx.find(name)
			require.NotEmpty(t, block.CriticalEdges(fn))
			require.Greater(t, len(dom.Exits(fn)), 1)

			err := pass.NewRunner(fx.am).Add(pass.SplitCriticalEdges{}).Run([]*ssa.Function{fn})
			require.NoError(t, err)
			assert.Empty(t, block.CriticalEdges(fn))

			require.True(t, fx.doms.HasPostDomTree(fn))
			dt, err := fx.doms.DomTree(fn)
			require.NoError(t, err)
			pdt, err := fx.doms.PostDomTree(fn)
			require.NoError(t, err)
			assert.NoError(t, dom.VerifyDom(dt))
			assert.NoError(t, dom.VerifyPostDom(pdt))

			fresh, err := dom.DefaultBuilder{}.BuildDom(fn)
			require.NoError(t, err)
			freshPost, err := dom.DefaultBuilder{}.BuildPostDom(fn)
			require.NoError(t, err)
			assert.True(t, dt.Equal(fresh), "updated dominator tree equals a fresh build")
			assert.True(t, pdt.Equal(freshPost), "updated post-dominator tree equals a fresh build")
			for _, b := range fn.Blocks {
				assert.Equal(t, freshPost.Reachable(b), pdt.Reachable(b), "exit reachable from %d:%s", b.Index, b.Comment)
			}
		})
	}
}

// A split which fails after the CFG changed must not hand back the partly
// updated trees.
func TestSplitFailureReleasesTrees(t *testing.T) {
	fx := setup(t)
	fn := fx.find("crit")
	dt, err := fx.doms.DomTree(fn)
	require.NoError(t, err)
	pdt, err := fx.doms.PostDomTree(fn)
	require.NoError(t, err)

	// The cached trees are stale: they miss a block appended to fn, so adding
	// the first split block to them fails.
	fn.Blocks = append(fn.Blocks, &ssa.BasicBlock{Index: len(fn.Blocks), Comment: "orphan"})

	err = pass.NewRunner(fx.am).Add(pass.SplitCriticalEdges{}).Run([]*ssa.Function{fn})
	var badIndex dom.BadBlockIndexError
	require.ErrorAs(t, err, &badIndex)
	assert.Equal(t, block.SplitComment, badIndex.Block.Comment)

	assert.True(t, dt.Released())
	assert.True(t, pdt.Released())
	assert.False(t, fx.doms.HasDomTree(fn))
	assert.False(t, fx.doms.HasPostDomTree(fn))

	rebuilt, err := fx.doms.DomTree(fn)
	require.NoError(t, err)
	assert.NoError(t, dom.VerifyDom(rebuilt))
	rebuiltPost, err := fx.doms.PostDomTree(fn)
	require.NoError(t, err)
	assert.NoError(t, dom.VerifyPostDom(rebuiltPost))
}

func TestSplitNoCriticalEdges(t *testing.T) {
	fx := setup(t)
	fn := fx.find("g")
	k, err := pass.SplitCriticalEdges{}.RunOnFunc(fn, fx.am)
	require.NoError(t, err)
	assert.Equal(t, analysis.Nothing, k)
	assert.False(t, fx.doms.HasDomTree(fn), "nothing to split, no tree built")
}

func TestSplitNoDominance(t *testing.T) {
	fx := setup(t)
	_, err := pass.SplitCriticalEdges{}.RunOnFunc(fx.find("crit"), analysis.NewManager(nil))
	assert.Equal(t, dominance.ErrNotRegistered, err)
}

func TestVerifyDominance(t *testing.T) {
	fx := setup(t)
	fn := fx.find("crit")
	k, err := pass.VerifyDominance{}.RunOnFunc(fn, fx.am)
	require.NoError(t, err)
	assert.Equal(t, analysis.Nothing, k)

	bad, err := dom.DefaultBuilder{}.BuildDom(fn)
	require.NoError(t, err)
	children := bad.Children(fn.Blocks[0])
	require.GreaterOrEqual(t, len(children), 2)
	x, y := children[1], children[0]
	require.NoError(t, bad.SetParent(x, y))
	fx.doms.UpdateDomTree(fn, bad)
	_, err = pass.VerifyDominance{}.RunOnFunc(fn, fx.am)
	var verr dom.VerifyError
	assert.ErrorAs(t, err, &verr)
}

func TestPrintDomTree(t *testing.T) {
	fx := setup(t)
	var buf bytes.Buffer
	err := pass.NewRunner(fx.am).Add(pass.NewPrintDomTree(&buf, true)).Run([]*ssa.Function{fx.find("f")})
	require.NoError(t, err)
	assert.Equal(t, `# domtree main.f
0:entry
    1:if.then
    2:if.done
# postdomtree main.f
0:entry
1:if.then
2:if.done
`, buf.String())
}

func TestPrintLoops(t *testing.T) {
	fx := setup(t)
	var buf bytes.Buffer
	_, err := pass.NewPrintLoops(&buf, true).RunOnFunc(fx.find("g"), fx.am)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "# loops main.g", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "loop@"))
	assert.Contains(t, lines[1], "depth=1")

	am := analysis.NewManager(nil)
	_, err = pass.NewPrintLoops(&buf, true).RunOnFunc(fx.find("g"), am)
	assert.Equal(t, pass.ErrNoLoopAnalysis, err)
}

// recorder is an analysis which records invalidation events.
type recorder struct {
	analysis.Base
	global []analysis.InvalidationKind
	funcs  []analysis.InvalidationKind
}

func (r *recorder) Invalidate(k analysis.InvalidationKind) { r.global = append(r.global, k) }

func (r *recorder) InvalidateFunc(fn *ssa.Function, k analysis.InvalidationKind) {
	r.funcs = append(r.funcs, k)
}

// fakePass reports kind, and fails if err is set.
type fakePass struct {
	name      string
	kind      analysis.InvalidationKind
	err       error
	preserved []analysis.Kind
	runs      int
}

func (p *fakePass) Name() string { return p.name }

func (p *fakePass) RunOnFunc(fn *ssa.Function, am *analysis.Manager) (analysis.InvalidationKind, error) {
	p.runs++
	return p.kind, p.err
}

type preservingPass struct{ fakePass }

func (p *preservingPass) Preserved() []analysis.Kind { return p.preserved }

func TestRunnerInvalidation(t *testing.T) {
	fx := setup(t)
	rec := &recorder{Base: analysis.NewBase(nil, analysis.CallGraphAnalysis)}
	require.NoError(t, fx.am.Register(rec))
	fns := []*ssa.Function{fx.find("f"), fx.find("g")}

	nop := &fakePass{name: "nop"}
	edit := &fakePass{name: "edit", kind: analysis.Instructions}
	require.NoError(t, pass.NewRunner(fx.am).Add(nop, edit).Run(fns))
	assert.Equal(t, 2, nop.runs)
	assert.Equal(t, []analysis.InvalidationKind{analysis.Instructions, analysis.Instructions}, rec.funcs)
	assert.Empty(t, rec.global, "no program wide invalidation below CallGraph")

	rec.funcs = nil
	keep := &preservingPass{fakePass{name: "keep", kind: analysis.CFG, preserved: []analysis.Kind{analysis.CallGraphAnalysis}}}
	require.NoError(t, pass.NewRunner(fx.am).Add(keep).Run(fns))
	assert.Empty(t, rec.funcs, "preserved analysis is not invalidated")

	calls := &fakePass{name: "calls", kind: analysis.CallGraph}
	require.NoError(t, pass.NewRunner(fx.am).Add(calls).Run(fns))
	assert.Equal(t, []analysis.InvalidationKind{analysis.CallGraph, analysis.CallGraph}, rec.funcs)
	assert.Equal(t, []analysis.InvalidationKind{analysis.CallGraph}, rec.global, "one program wide invalidation at the end")
}

func TestRunnerErrors(t *testing.T) {
	fx := setup(t)
	fns := []*ssa.Function{fx.find("f"), fx.find("g")}
	errFail := errors.New("fail")
	fail := &fakePass{name: "fail", err: errFail}
	after := &fakePass{name: "after"}

	r := pass.NewRunner(fx.am).Add(fail, after)
	assert.Len(t, r.Passes(), 2)
	err := r.Run(fns)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2, "one error per function")
	assert.Equal(t, errFail, errors.Cause(errs[0]))
	assert.Contains(t, errs[0].Error(), "fail on main.f")
	assert.Contains(t, errs[1].Error(), "fail on main.g")
	assert.Equal(t, 2, fail.runs, "a failure does not stop other functions")
	assert.Zero(t, after.runs, "a failure stops the pipeline of its function")
}

// A pass which changed the CFG before failing still invalidates.
func TestRunnerErrorInvalidates(t *testing.T) {
	fx := setup(t)
	fn := fx.find("f")
	_, err := fx.doms.DomTree(fn)
	require.NoError(t, err)
	fail := &fakePass{name: "fail", kind: analysis.CFG, err: errors.New("half done")}
	assert.Error(t, pass.NewRunner(fx.am).Add(fail).Run([]*ssa.Function{fn}))
	assert.False(t, fx.doms.HasDomTree(fn))
}
