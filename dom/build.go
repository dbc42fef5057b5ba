package dom

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

var (
	ErrNilFunc  = errors.New("dom: function is nil")
	ErrNoBlocks = errors.New("dom: function has no blocks")
)

// BadBlockIndexError is the error when a block index does not match its
// position in the function.
type BadBlockIndexError struct {
	Block *ssa.BasicBlock
	Want  int
}

func (e BadBlockIndexError) Error() string {
	if e.Block == nil {
		return fmt.Sprintf("dom: nil block (want index %d)", e.Want)
	}
	return fmt.Sprintf("dom: block %s has index %d, want %d", e.Block.Comment, e.Block.Index, e.Want)
}

// NotInTreeError is the error when a block is not part of a tree.
type NotInTreeError struct {
	Block *ssa.BasicBlock
}

func (e NotInTreeError) Error() string {
	return fmt.Sprintf("dom: block %v is not in the tree", e.Block)
}

// Builder constructs dominance trees of functions.
type Builder interface {
	BuildDom(fn *ssa.Function) (*DomTree, error)
	BuildPostDom(fn *ssa.Function) (*PostDomTree, error)
}

// DefaultBuilder computes the trees with the iterative algorithm of Cooper,
// Harvey and Kennedy, A Simple, Fast Dominance Algorithm, 2001.
type DefaultBuilder struct{}

// BuildDom returns the dominator tree of fn, rooted at Blocks[0].
func (DefaultBuilder) BuildDom(fn *ssa.Function) (*DomTree, error) {
	if err := checkFunc(fn); err != nil {
		return nil, err
	}
	entry := []*ssa.BasicBlock{fn.Blocks[0]}
	parents, reached := idoms(fn, entry, succs, preds)
	return &DomTree{tree: newTree(fn, parents, reached)}, nil
}

// BuildPostDom returns the post-dominator tree of fn, rooted at a virtual exit
// whose predecessors are the blocks without successors.
func (DefaultBuilder) BuildPostDom(fn *ssa.Function) (*PostDomTree, error) {
	if err := checkFunc(fn); err != nil {
		return nil, err
	}
	parents, reached := idoms(fn, Exits(fn), preds, succs)
	return &PostDomTree{tree: newTree(fn, parents, reached)}, nil
}

func checkFunc(fn *ssa.Function) error {
	if fn == nil {
		return ErrNilFunc
	}
	if len(fn.Blocks) == 0 {
		return errors.Wrapf(ErrNoBlocks, "build %s", fn.String())
	}
	for i, b := range fn.Blocks {
		if b == nil || b.Index != i {
			return BadBlockIndexError{Block: b, Want: i}
		}
	}
	return nil
}

// Exits returns the blocks of fn without successors, e.g. those ending with a
// return or a panic.
func Exits(fn *ssa.Function) []*ssa.BasicBlock {
	var exits []*ssa.BasicBlock
	for _, b := range fn.Blocks {
		if len(b.Succs) == 0 {
			exits = append(exits, b)
		}
	}
	return exits
}

func succs(b *ssa.BasicBlock) []*ssa.BasicBlock { return b.Succs }
func preds(b *ssa.BasicBlock) []*ssa.BasicBlock { return b.Preds }

// idoms returns the immediate dominator of every block of fn, indexed by
// block index, over the graph given by next (forward edges) and prev (backward
// edges), entered at roots through a virtual root.
//
// Roots and blocks unreachable from the roots get a nil dominator. reached
// tells which blocks are reachable from the roots.
func idoms(fn *ssa.Function, roots []*ssa.BasicBlock, next, prev func(*ssa.BasicBlock) []*ssa.BasicBlock) (parents []*ssa.BasicBlock, reached []bool) {
	n := len(fn.Blocks)
	virtual := n // index of the virtual root

	// postorder numbers of the depth-first search from the virtual root,
	// -1 for blocks not reached.
	po := make([]int, n+1)
	for i := range po {
		po[i] = -1
	}
	isRoot := make([]bool, n)
	order := make([]int, 0, n+1)
	seen := make([]bool, n)
	var dfs func(b *ssa.BasicBlock)
	dfs = func(b *ssa.BasicBlock) {
		seen[b.Index] = true
		for _, s := range next(b) {
			if !seen[s.Index] {
				dfs(s)
			}
		}
		po[b.Index] = len(order)
		order = append(order, b.Index)
	}
	for _, r := range roots {
		isRoot[r.Index] = true
		if !seen[r.Index] {
			dfs(r)
		}
	}
	po[virtual] = len(order)
	order = append(order, virtual)

	idom := make([]int, n+1)
	for i := range idom {
		idom[i] = -1
	}
	idom[virtual] = virtual

	intersect := func(a, b int) int {
		for a != b {
			for po[a] < po[b] {
				a = idom[a]
			}
			for po[b] < po[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		// Reverse postorder, skipping the virtual root.
		for i := len(order) - 2; i >= 0; i-- {
			b := order[i]
			newIdom := -1
			if isRoot[b] {
				newIdom = virtual
			}
			for _, p := range prev(fn.Blocks[b]) {
				if idom[p.Index] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p.Index
				} else {
					newIdom = intersect(p.Index, newIdom)
				}
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	parents = make([]*ssa.BasicBlock, n)
	for i := 0; i < n; i++ {
		if idom[i] >= 0 && idom[i] != virtual {
			parents[i] = fn.Blocks[idom[i]]
		}
	}
	return parents, seen
}
