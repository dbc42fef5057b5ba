// Package block provides traversal and editing of the control flow edges
// between basic blocks.
package block

import (
	"fmt"

	"golang.org/x/tools/go/ssa"
)

// Edge is a control flow edge, the Index-th successor of From.
type Edge struct {
	From, To *ssa.BasicBlock
	Index    int
}

func (e Edge) String() string {
	if e.From == nil || e.To == nil {
		return "<nil edge>"
	}
	return fmt.Sprintf("%d -> %d", e.From.Index, e.To.Index)
}

// IsCritical returns true if e is a critical edge, i.e. From has more than one
// successor and To has more than one predecessor.
func (e Edge) IsCritical() bool {
	return len(e.From.Succs) > 1 && len(e.To.Preds) > 1
}

// TraverseEdges takes a Function and apply visit to each edge reachable from
// the entry block, in breadth first order of the source blocks.
func TraverseEdges(fn *ssa.Function, visit func(e Edge)) {
	if len(fn.Blocks) == 0 {
		return
	}
	visited := make(map[*ssa.BasicBlock]bool)
	visited[fn.Blocks[0]] = true
	queue := []*ssa.BasicBlock{fn.Blocks[0]}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for i, succ := range b.Succs {
			visit(Edge{From: b, To: succ, Index: i})
			if !visited[succ] {
				visited[succ] = true
				queue = append(queue, succ)
			}
		}
	}
}
