package pass

import (
	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/block"
	"github.com/nickng/ssadom/dom"
	"github.com/nickng/ssadom/dominance"
	"golang.org/x/tools/go/ssa"
)

// SplitCriticalEdges inserts an empty block on every critical edge of a
// function.
//
// The dominator and post-dominator trees of the function are taken out of the
// dominance analysis, updated for each new block, and handed back, so the
// dominance analysis is preserved. If a split fails, the trees are released instead, and
// the dominance analysis builds them again on the next lookup.
type SplitCriticalEdges struct{}

func (SplitCriticalEdges) Name() string { return "split-critical-edges" }

func (SplitCriticalEdges) Preserved() []analysis.Kind {
	return []analysis.Kind{analysis.DominanceAnalysis}
}

func (SplitCriticalEdges) RunOnFunc(fn *ssa.Function, am *analysis.Manager) (analysis.InvalidationKind, error) {
	edges := block.CriticalEdges(fn)
	if len(edges) == 0 {
		return analysis.Nothing, nil
	}
	da, err := dominance.FromManager(am)
	if err != nil {
		return analysis.Nothing, err
	}
	if _, err := da.DomTree(fn); err != nil {
		return analysis.Nothing, err
	}
	if _, err := da.PostDomTree(fn); err != nil {
		return analysis.Nothing, err
	}
	dt, pdt := da.ReclaimDomTree(fn), da.ReclaimPostDomTree(fn)
	if err := split(fn, edges, dt, pdt); err != nil {
		// The CFG may be changed already, and the trees only partly updated.
		dt.Release()
		pdt.Release()
		return analysis.CFG, err
	}
	da.UpdateDomTree(fn, dt)
	da.UpdatePostDomTree(fn, pdt)
	return analysis.CFG, nil
}

func split(fn *ssa.Function, edges []block.Edge, dt *dom.DomTree, pdt *dom.PostDomTree) error {
	for _, e := range edges {
		b, err := block.SplitEdge(fn, e)
		if err != nil {
			return err
		}
		if err := splitDom(dt, e, b); err != nil {
			return err
		}
		if err := splitPostDom(pdt, e, b); err != nil {
			return err
		}
	}
	return nil
}

// splitDom updates dt for b inserted on e. The idom of b is e.From; b becomes
// the idom of e.To if every other edge into e.To is a back edge.
func splitDom(dt *dom.DomTree, e block.Edge, b *ssa.BasicBlock) error {
	if err := dt.AddBlock(b, e.From); err != nil {
		return err
	}
	if e.To == dt.Root() {
		return nil
	}
	for _, q := range e.To.Preds {
		if q != b && dt.Reachable(q) && !dt.Dominates(e.To, q) {
			return nil
		}
	}
	return dt.SetParent(e.To, b)
}

// splitPostDom updates pdt for b inserted on e, as splitDom on the reverse
// CFG. A block which cannot reach an exit stays a root of its own.
func splitPostDom(pdt *dom.PostDomTree, e block.Edge, b *ssa.BasicBlock) error {
	if !pdt.Reachable(e.To) {
		return pdt.AddBlock(b, nil)
	}
	if err := pdt.AddBlock(b, e.To); err != nil {
		return err
	}
	for _, r := range e.From.Succs {
		if r != b && pdt.Reachable(r) && !pdt.PostDominates(e.From, r) {
			return nil
		}
	}
	return pdt.SetParent(e.From, b)
}
