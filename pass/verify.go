package pass

import (
	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/dom"
	"github.com/nickng/ssadom/dominance"
	"go.uber.org/multierr"
	"golang.org/x/tools/go/ssa"
)

// VerifyDominance checks the dominator and post-dominator trees of a function
// against the dominance relation of its CFG. It does not change the function.
type VerifyDominance struct{}

func (VerifyDominance) Name() string { return "verify-dominance" }

func (VerifyDominance) RunOnFunc(fn *ssa.Function, am *analysis.Manager) (analysis.InvalidationKind, error) {
	da, err := dominance.FromManager(am)
	if err != nil {
		return analysis.Nothing, err
	}
	dt, err := da.DomTree(fn)
	if err != nil {
		return analysis.Nothing, err
	}
	pdt, err := da.PostDomTree(fn)
	if err != nil {
		return analysis.Nothing, err
	}
	return analysis.Nothing, multierr.Combine(dom.VerifyDom(dt), dom.VerifyPostDom(pdt))
}
