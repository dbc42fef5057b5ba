// Package dominance provides the dominance analysis: a per-function cache of
// dominator and post-dominator trees which takes part in the invalidation
// protocol of the analysis package.
//
// Trees are built on demand and owned by the cache. A pass which transforms a
// function can take a tree out of the cache with Reclaim, keep it current
// while it changes the CFG, and hand it back with Update. Every tree the cache
// drops, whether replaced, invalidated or torn down, is released exactly once.
//
// The analysis is not safe for concurrent use.
package dominance

import (
	"fmt"

	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/dom"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ssa"
)

var (
	ErrNilTree       = errors.New("dominance: builder returned no tree")
	ErrNotRegistered = errors.New("dominance: analysis not registered")
)

// ContractError is the panic value when the ownership protocol of the cache
// is violated by a caller.
type ContractError struct {
	Op     string
	Func   *ssa.Function
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("dominance: %s(%s): %s", e.Op, analysis.FuncName(e.Func), e.Reason)
}

// Analysis is the dominance analysis of a program.
type Analysis struct {
	analysis.Base

	doms     *cache[*dom.DomTree]
	postDoms *cache[*dom.PostDomTree]

	logger  *zap.SugaredLogger
	metrics *metrics
}

// New returns an empty dominance analysis for prog.
// A nil conf is the same as NewConfig().
func New(prog *ssa.Program, conf *Config) *Analysis {
	if conf == nil {
		conf = NewConfig()
	}
	logger := conf.logger.Sugar().Named("dominance")
	m := newMetrics(conf.namespace)
	return &Analysis{
		Base:     analysis.NewBase(prog, analysis.DominanceAnalysis),
		doms:     newCache(treeDom, conf.builder.BuildDom, logger, m),
		postDoms: newCache(treePostDom, conf.builder.BuildPostDom, logger, m),
		logger:   logger,
		metrics:  m,
	}
}

// Is returns true if a is a dominance analysis.
func Is(a analysis.Analysis) bool {
	return analysis.Is(a, analysis.DominanceAnalysis)
}

// FromManager returns the dominance analysis registered in am.
func FromManager(am *analysis.Manager) (*Analysis, error) {
	if a, ok := am.Get(analysis.DominanceAnalysis); ok {
		if da, ok := a.(*Analysis); ok {
			return da, nil
		}
	}
	return nil, ErrNotRegistered
}

// DomTree returns the dominator tree of fn, building it if it is not cached.
// The tree stays owned by the analysis.
//
// If the build fails, the error of the builder is returned as is and nothing
// is cached.
func (a *Analysis) DomTree(fn *ssa.Function) (*dom.DomTree, error) {
	return a.doms.get(fn)
}

// PostDomTree returns the post-dominator tree of fn, building it if it is not
// cached. The tree stays owned by the analysis.
//
// If the build fails, the error of the builder is returned as is and nothing
// is cached.
func (a *Analysis) PostDomTree(fn *ssa.Function) (*dom.PostDomTree, error) {
	return a.postDoms.get(fn)
}

// UpdateDomTree transfers the ownership of t to the analysis as the dominator
// tree of fn. The tree it replaces, if any, is released first.
//
// It panics with a *ContractError if t is nil, released, of another function,
// or already the cached tree of fn.
func (a *Analysis) UpdateDomTree(fn *ssa.Function, t *dom.DomTree) {
	a.doms.update("UpdateDomTree", fn, t)
}

// UpdatePostDomTree transfers the ownership of t to the analysis as the
// post-dominator tree of fn. The tree it replaces, if any, is released first.
//
// It panics with a *ContractError if t is nil, released, of another function,
// or already the cached tree of fn.
func (a *Analysis) UpdatePostDomTree(fn *ssa.Function, t *dom.PostDomTree) {
	a.postDoms.update("UpdatePostDomTree", fn, t)
}

// ReclaimDomTree removes the dominator tree of fn from the analysis and
// transfers its ownership to the caller. The tree is not released.
//
// It panics with a *ContractError if no tree of fn is cached.
func (a *Analysis) ReclaimDomTree(fn *ssa.Function) *dom.DomTree {
	return a.doms.reclaim("ReclaimDomTree", fn)
}

// ReclaimPostDomTree removes the post-dominator tree of fn from the analysis
// and transfers its ownership to the caller. The tree is not released.
//
// It panics with a *ContractError if no tree of fn is cached.
func (a *Analysis) ReclaimPostDomTree(fn *ssa.Function) *dom.PostDomTree {
	return a.postDoms.reclaim("ReclaimPostDomTree", fn)
}

// Invalidate releases every cached tree if k is CFG or above.
func (a *Analysis) Invalidate(k analysis.InvalidationKind) {
	if !k.AtLeast(analysis.CFG) {
		return
	}
	// TODO(ssadom): CallGraph changes calls, not edges. Split the kinds which
	// change the CFG from those which only change the call graph, and keep the
	// trees for the latter.
	nDom, nPostDom := a.doms.clear(), a.postDoms.clear()
	a.logger.Debugw("invalidate", "kind", k, "dom", nDom, "postdom", nPostDom)
}

// InvalidateFunc releases the cached trees of fn if k is CFG or above.
// A function without cached trees is ignored.
func (a *Analysis) InvalidateFunc(fn *ssa.Function, k analysis.InvalidationKind) {
	if !k.AtLeast(analysis.CFG) {
		return
	}
	dropDom, dropPostDom := a.doms.drop(fn), a.postDoms.drop(fn)
	if dropDom || dropPostDom {
		a.logger.Debugw("invalidate func", "func", analysis.FuncName(fn), "kind", k)
	}
}

// Close releases every cached tree.
func (a *Analysis) Close() error {
	a.doms.clear()
	a.postDoms.clear()
	return nil
}

// HasDomTree returns true if the dominator tree of fn is cached.
func (a *Analysis) HasDomTree(fn *ssa.Function) bool { return a.doms.has(fn) }

// HasPostDomTree returns true if the post-dominator tree of fn is cached.
func (a *Analysis) HasPostDomTree(fn *ssa.Function) bool { return a.postDoms.has(fn) }

// Len returns the number of cached dominator and post-dominator trees.
func (a *Analysis) Len() (doms, postDoms int) {
	return len(a.doms.entries), len(a.postDoms.entries)
}

// Metrics returns the collector of the cache metrics, for registration with a
// prometheus.Registerer.
func (a *Analysis) Metrics() prometheus.Collector { return a.metrics }
