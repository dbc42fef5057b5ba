package loop

import (
	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/dominance"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ssa"
)

// Analysis is the loop analysis of a program. It caches the loops of each
// function, computed from the dominator trees of a dominance analysis.
//
// Loops hold no reference to the dominator tree they were computed from.
type Analysis struct {
	analysis.Base

	doms   *dominance.Analysis
	loops  map[*ssa.Function][]*Loop
	logger *zap.SugaredLogger
}

// New returns a loop analysis of prog which takes dominator trees from doms.
func New(prog *ssa.Program, doms *dominance.Analysis) *Analysis {
	return &Analysis{
		Base:   analysis.NewBase(prog, analysis.LoopAnalysis),
		doms:   doms,
		loops:  make(map[*ssa.Function][]*Loop),
		logger: zap.NewNop().Sugar(),
	}
}

// SetLogger sets the logger.
func (a *Analysis) SetLogger(l *zap.Logger) {
	if l != nil {
		a.logger = l.Sugar().Named("loop")
	}
}

// Loops returns the natural loops of fn, outer loops before the loops they
// contain.
func (a *Analysis) Loops(fn *ssa.Function) ([]*Loop, error) {
	if loops, ok := a.loops[fn]; ok {
		return loops, nil
	}
	dt, err := a.doms.DomTree(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "loops of %s", analysis.FuncName(fn))
	}
	loops := Find(dt)
	a.loops[fn] = loops
	a.logger.Debugw("find", "func", analysis.FuncName(fn), "loops", len(loops))
	return loops, nil
}

// LoopOf returns the innermost loop of fn which contains b, or nil if b is not
// in a loop.
func (a *Analysis) LoopOf(fn *ssa.Function, b *ssa.BasicBlock) (*Loop, error) {
	loops, err := a.Loops(fn)
	if err != nil {
		return nil, err
	}
	var inner *Loop
	for _, l := range loops {
		if l.Contains(b) && (inner == nil || l.Depth > inner.Depth) {
			inner = l
		}
	}
	return inner, nil
}

// Invalidate drops the loops of every function if the instructions changed,
// since induction variables are read from the instructions.
func (a *Analysis) Invalidate(k analysis.InvalidationKind) {
	if !k.AtLeast(analysis.Instructions) {
		return
	}
	a.logger.Debugw("invalidate", "kind", k, "funcs", len(a.loops))
	a.loops = make(map[*ssa.Function][]*Loop)
}

// InvalidateFunc drops the loops of fn if its instructions changed.
func (a *Analysis) InvalidateFunc(fn *ssa.Function, k analysis.InvalidationKind) {
	if !k.AtLeast(analysis.Instructions) {
		return
	}
	if _, ok := a.loops[fn]; ok {
		delete(a.loops, fn)
		a.logger.Debugw("invalidate func", "func", analysis.FuncName(fn), "kind", k)
	}
}

// FromManager returns the loop analysis registered in am.
func FromManager(am *analysis.Manager) (*Analysis, bool) {
	a, ok := am.Get(analysis.LoopAnalysis)
	if !ok {
		return nil, false
	}
	la, ok := a.(*Analysis)
	return la, ok
}
