// Package analysis provides the Analysis interface for cached, invalidatable
// results derived from SSA functions, and the Manager which holds them.
//
// An analysis identifies itself with a Kind tag, and takes part in the
// invalidation protocol through two hooks: a coarse Invalidate for the whole
// program, and a fine InvalidateFunc for a single function. Both hooks receive
// an InvalidationKind which describes how much of the IR may have changed.
package analysis

import (
	"fmt"

	"golang.org/x/tools/go/ssa"
)

// Kind is the tag which identifies an analysis.
type Kind int

const (
	DominanceAnalysis Kind = iota // Dominator and post-dominator trees.
	CallGraphAnalysis             // Whole program call graph.
	LoopAnalysis                  // Natural loops.
)

func (k Kind) String() string {
	switch k {
	case DominanceAnalysis:
		return "dominance"
	case CallGraphAnalysis:
		return "callgraph"
	case LoopAnalysis:
		return "loop"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// InvalidationKind classifies how much the IR changed.
// The values are totally ordered: a kind implies every kind below it.
type InvalidationKind int

const (
	Nothing      InvalidationKind = iota // Nothing changed.
	Instructions                         // Instructions changed, edges did not.
	CFG                                  // The control flow graph may have changed.
	CallGraph                            // Calls were added, removed or retargeted.
	All                                  // Everything may have changed.
)

func (k InvalidationKind) String() string {
	switch k {
	case Nothing:
		return "nothing"
	case Instructions:
		return "instructions"
	case CFG:
		return "cfg"
	case CallGraph:
		return "callgraph"
	case All:
		return "all"
	}
	return fmt.Sprintf("invalidation(%d)", int(k))
}

// AtLeast returns true if k is at or above threshold.
func (k InvalidationKind) AtLeast(threshold InvalidationKind) bool {
	return k >= threshold
}

// Analysis is a cached result which is kept coherent with the IR through
// invalidation events.
type Analysis interface {
	// Kind returns the tag of the analysis.
	Kind() Kind

	// Invalidate discards results for every function if k is severe enough
	// for the analysis.
	Invalidate(k InvalidationKind)

	// InvalidateFunc discards results for fn only.
	InvalidateFunc(fn *ssa.Function, k InvalidationKind)
}

// Base is embedded by analyses for the Kind tag.
type Base struct {
	kind Kind
	prog *ssa.Program
}

// NewBase returns a Base for an analysis of kind k on the program prog.
func NewBase(prog *ssa.Program, k Kind) Base {
	return Base{kind: k, prog: prog}
}

// Kind returns the tag of the analysis.
func (b Base) Kind() Kind { return b.kind }

// IsKind returns true if the analysis is of kind k.
func (b Base) IsKind(k Kind) bool { return b.kind == k }

// Program returns the program the analysis was created for.
func (b Base) Program() *ssa.Program { return b.prog }

// Is returns true if a is an analysis of kind k.
func Is(a Analysis, k Kind) bool {
	return a != nil && a.Kind() == k
}
