// Package callgraph provides the call graph analysis, a cached whole program
// call graph which is dropped when calls change.
package callgraph

import (
	"sort"

	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/ssa"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	gossa "golang.org/x/tools/go/ssa"
)

// Analysis is the call graph analysis of a program.
type Analysis struct {
	analysis.Base

	algo   string
	graph  *ssa.CallGraph
	logger *zap.SugaredLogger
}

// New returns a call graph analysis of prog which builds the graph with algo,
// one of ssa.Algorithms.
func New(prog *gossa.Program, algo string) (*Analysis, error) {
	known := false
	for _, a := range ssa.Algorithms {
		known = known || a == algo
	}
	if !known {
		return nil, errors.Wrapf(ssa.ErrUnknownAlgo, "callgraph %q", algo)
	}
	return &Analysis{
		Base:   analysis.NewBase(prog, analysis.CallGraphAnalysis),
		algo:   algo,
		logger: zap.NewNop().Sugar(),
	}, nil
}

// SetLogger sets the logger.
func (a *Analysis) SetLogger(l *zap.Logger) {
	if l != nil {
		a.logger = l.Sugar().Named("callgraph")
	}
}

// Algorithm returns the call graph algorithm.
func (a *Analysis) Algorithm() string { return a.algo }

// Graph returns the call graph, building it if it is not cached.
func (a *Analysis) Graph() (*ssa.CallGraph, error) {
	if a.graph != nil {
		return a.graph, nil
	}
	g, err := ssa.BuildCallGraph(a.Program(), a.algo)
	if err != nil {
		return nil, err
	}
	a.graph = g
	a.logger.Debugw("build", "algo", a.algo, "funcs", len(g.Graph().Nodes))
	return g, nil
}

// Callees returns the functions called by fn, sorted by name.
func (a *Analysis) Callees(fn *gossa.Function) ([]*gossa.Function, error) {
	g, err := a.Graph()
	if err != nil {
		return nil, err
	}
	node, ok := g.Graph().Nodes[fn]
	if !ok {
		return nil, nil
	}
	var fns []*gossa.Function
	for _, e := range node.Out {
		fns = append(fns, e.Callee.Func)
	}
	return uniq(fns), nil
}

// Callers returns the functions which call fn, sorted by name.
func (a *Analysis) Callers(fn *gossa.Function) ([]*gossa.Function, error) {
	g, err := a.Graph()
	if err != nil {
		return nil, err
	}
	node, ok := g.Graph().Nodes[fn]
	if !ok {
		return nil, nil
	}
	var fns []*gossa.Function
	for _, e := range node.In {
		fns = append(fns, e.Caller.Func)
	}
	return uniq(fns), nil
}

func uniq(fns []*gossa.Function) []*gossa.Function {
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	out := fns[:0]
	for i, fn := range fns {
		if i == 0 || fn != fns[i-1] {
			out = append(out, fn)
		}
	}
	return out
}

// Invalidate drops the call graph if calls changed.
func (a *Analysis) Invalidate(k analysis.InvalidationKind) {
	if k.AtLeast(analysis.CallGraph) && a.graph != nil {
		a.graph = nil
		a.logger.Debugw("invalidate", "kind", k)
	}
}

// InvalidateFunc drops the call graph if calls of fn changed. The graph is of
// the whole program, so it is dropped for every function.
func (a *Analysis) InvalidateFunc(fn *gossa.Function, k analysis.InvalidationKind) {
	if k.AtLeast(analysis.CallGraph) && a.graph != nil {
		a.graph = nil
		a.logger.Debugw("invalidate func", "func", analysis.FuncName(fn), "kind", k)
	}
}
