package block

import (
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// SplitComment is the comment of blocks inserted by SplitEdge.
const SplitComment = "split.critical"

var ErrBadEdge = errors.New("block: edge is not in the CFG")

// CriticalEdges returns the critical edges reachable from the entry block of
// fn.
func CriticalEdges(fn *ssa.Function) []Edge {
	var edges []Edge
	TraverseEdges(fn, func(e Edge) {
		if e.IsCritical() {
			edges = append(edges, e)
		}
	})
	return edges
}

// SplitEdge inserts a new block on e, appended to the blocks of fn, and
// returns it. The new block jumps to e.To and takes the place of e.From among
// the predecessors of e.To, so φ-nodes of e.To keep their edges.
//
// Splitting an edge does not change which edges are critical.
func SplitEdge(fn *ssa.Function, e Edge) (*ssa.BasicBlock, error) {
	if e.From == nil || e.To == nil || e.Index < 0 || e.Index >= len(e.From.Succs) || e.From.Succs[e.Index] != e.To {
		return nil, errors.Wrapf(ErrBadEdge, "split %v", e)
	}
	// The same pair of blocks can be joined by more than one edge: e is the
	// nth of them in From.Succs, and so in To.Preds.
	nth := 0
	for _, s := range e.From.Succs[:e.Index] {
		if s == e.To {
			nth++
		}
	}
	pos := -1
	for i, p := range e.To.Preds {
		if p == e.From {
			if nth == 0 {
				pos = i
				break
			}
			nth--
		}
	}
	if pos < 0 {
		return nil, errors.Wrapf(ErrBadEdge, "split %v: missing predecessor", e)
	}

	b := &ssa.BasicBlock{
		Index:   len(fn.Blocks),
		Comment: SplitComment,
		Instrs:  []ssa.Instruction{new(ssa.Jump)},
		Preds:   []*ssa.BasicBlock{e.From},
		Succs:   []*ssa.BasicBlock{e.To},
	}
	fn.Blocks = append(fn.Blocks, b)
	e.From.Succs[e.Index] = b
	e.To.Preds[pos] = b
	return b, nil
}
