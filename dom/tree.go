// Package dom provides dominator and post-dominator trees of SSA functions,
// and the Builder which constructs them.
//
// A tree is a snapshot: it describes the CFG of its function at the time it
// was built or last updated, and is not notified of later changes to the
// function. Trees are owned values; the owner calls Release exactly once when
// the tree is dropped, after which the tree must not be used.
package dom

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// ErrReleased is the panic value when a released tree is used or released
// again.
var ErrReleased = errors.New("dom: use of released tree")

// node is the dominance information of a single block.
type node struct {
	blk       *ssa.BasicBlock
	parent    *ssa.BasicBlock   // immediate (post-)dominator, nil for roots
	children  []*ssa.BasicBlock // blocks immediately (post-)dominated by blk
	pre, post int32             // pre- and post-order numbering within the tree
	reach     bool              // reached from a root of the CFG walk
}

// tree is a forest of blocks keyed by block index.
//
// The pre- and post-order numbers answer dominance queries in constant time.
// They are recomputed lazily after a mutation.
type tree struct {
	fn       *ssa.Function
	nodes    []node
	roots    []*ssa.BasicBlock
	numbered bool
	released bool
}

func newTree(fn *ssa.Function, parents []*ssa.BasicBlock, reached []bool) tree {
	t := tree{fn: fn, nodes: make([]node, len(fn.Blocks))}
	for i, b := range fn.Blocks {
		t.nodes[i].blk = b
		t.nodes[i].reach = reached[i]
	}
	for i, p := range parents {
		t.nodes[i].parent = p
		if p == nil {
			t.roots = append(t.roots, fn.Blocks[i])
			continue
		}
		t.nodes[p.Index].children = append(t.nodes[p.Index].children, fn.Blocks[i])
	}
	return t
}

func (t *tree) check() {
	if t.released {
		panic(ErrReleased)
	}
}

// node returns the node of b, or nil if b is not in the tree.
func (t *tree) node(b *ssa.BasicBlock) *node {
	if b == nil || b.Index < 0 || b.Index >= len(t.nodes) || t.nodes[b.Index].blk != b {
		return nil
	}
	return &t.nodes[b.Index]
}

// number sets the pre- and post-order numbers of every node.
func (t *tree) number() {
	if t.numbered {
		return
	}
	var pre, post int32
	var visit func(b *ssa.BasicBlock)
	visit = func(b *ssa.BasicBlock) {
		n := &t.nodes[b.Index]
		n.pre = pre
		pre++
		for _, child := range n.children {
			visit(child)
		}
		n.post = post
		post++
	}
	for _, root := range t.roots {
		visit(root)
	}
	t.numbered = true
}

// Func returns the function the tree describes.
func (t *tree) Func() *ssa.Function {
	t.check()
	return t.fn
}

// Len returns the number of blocks in the tree.
func (t *tree) Len() int {
	t.check()
	return len(t.nodes)
}

// Contains returns true if b is a block of the tree.
func (t *tree) Contains(b *ssa.BasicBlock) bool {
	t.check()
	return t.node(b) != nil
}

// Roots returns the blocks which have no parent in the tree.
func (t *tree) Roots() []*ssa.BasicBlock {
	t.check()
	roots := make([]*ssa.BasicBlock, len(t.roots))
	copy(roots, t.roots)
	return roots
}

// Children returns the blocks whose parent in the tree is b.
func (t *tree) Children(b *ssa.BasicBlock) []*ssa.BasicBlock {
	t.check()
	if n := t.node(b); n != nil {
		children := make([]*ssa.BasicBlock, len(n.children))
		copy(children, n.children)
		return children
	}
	return nil
}

func (t *tree) parent(b *ssa.BasicBlock) *ssa.BasicBlock {
	t.check()
	if n := t.node(b); n != nil {
		return n.parent
	}
	return nil
}

// dominates returns true if a is an ancestor of b (or b itself).
func (t *tree) dominates(a, b *ssa.BasicBlock) bool {
	t.check()
	na, nb := t.node(a), t.node(b)
	if na == nil || nb == nil {
		return false
	}
	t.number()
	return na.pre <= nb.pre && nb.post <= na.post
}

// root returns the root of the subtree containing b.
func (t *tree) root(b *ssa.BasicBlock) *ssa.BasicBlock {
	for n := t.node(b); n != nil; n = t.node(n.parent) {
		if n.parent == nil {
			return n.blk
		}
	}
	return nil
}

// Preorder returns the blocks of the tree in preorder.
func (t *tree) Preorder() []*ssa.BasicBlock {
	t.check()
	t.number()
	order := make([]*ssa.BasicBlock, len(t.nodes))
	for _, n := range t.nodes {
		order[n.pre] = n.blk
	}
	return order
}

// AddBlock adds b to the tree with parent as its parent; a nil parent makes b
// a root. The block must be the next block of the function, i.e. b.Index is
// the current Len of the tree.
//
// b is reached by the walk the tree was built from if parent is, or if b is a
// root without successors.
func (t *tree) AddBlock(b, parent *ssa.BasicBlock) error {
	t.check()
	if b == nil || b.Index != len(t.nodes) {
		return BadBlockIndexError{Block: b, Want: len(t.nodes)}
	}
	if parent != nil && t.node(parent) == nil {
		return NotInTreeError{Block: parent}
	}
	reach := len(b.Succs) == 0
	if parent != nil {
		reach = t.nodes[parent.Index].reach
	}
	t.nodes = append(t.nodes, node{blk: b, reach: reach})
	t.link(b, parent)
	t.numbered = false
	return nil
}

// SetParent moves b under parent; a nil parent makes b a root.
func (t *tree) SetParent(b, parent *ssa.BasicBlock) error {
	t.check()
	n := t.node(b)
	if n == nil {
		return NotInTreeError{Block: b}
	}
	if parent != nil {
		if t.node(parent) == nil {
			return NotInTreeError{Block: parent}
		}
		for p := parent; p != nil; p = t.nodes[p.Index].parent {
			if p == b {
				return errors.Errorf("dom: cannot move %s under its descendant %s", b, parent)
			}
		}
	}
	if n.parent == nil {
		t.roots = remove(t.roots, b)
	} else {
		pn := &t.nodes[n.parent.Index]
		pn.children = remove(pn.children, b)
	}
	t.link(b, parent)
	t.numbered = false
	return nil
}

func (t *tree) link(b, parent *ssa.BasicBlock) {
	t.nodes[b.Index].parent = parent
	if parent == nil {
		t.roots = append(t.roots, b)
		return
	}
	pn := &t.nodes[parent.Index]
	pn.children = append(pn.children, b)
}

// remove returns a copy of blocks without b.
func remove(blocks []*ssa.BasicBlock, b *ssa.BasicBlock) []*ssa.BasicBlock {
	out := make([]*ssa.BasicBlock, 0, len(blocks))
	for _, blk := range blocks {
		if blk != b {
			out = append(out, blk)
		}
	}
	return out
}

// equal returns true if both trees describe the same function with the same
// parent for every block.
func (t *tree) equal(u *tree) bool {
	t.check()
	u.check()
	if t.fn != u.fn || len(t.nodes) != len(u.nodes) {
		return false
	}
	for i := range t.nodes {
		if t.nodes[i].blk != u.nodes[i].blk || t.nodes[i].parent != u.nodes[i].parent {
			return false
		}
	}
	return true
}

// Release drops the tree. Every later use of the tree panics.
func (t *tree) Release() {
	t.check()
	t.released = true
	t.nodes = nil
	t.roots = nil
}

// Released returns true if the tree has been released.
func (t *tree) Released() bool { return t.released }

func label(b *ssa.BasicBlock) string {
	return fmt.Sprintf("%d:%s", b.Index, b.Comment)
}

// WriteText writes the tree to w as text, one block per line, indented by
// depth.
func (t *tree) WriteText(w io.Writer) error {
	t.check()
	bufw := bufio.NewWriter(w)
	var visit func(b *ssa.BasicBlock, depth int)
	visit = func(b *ssa.BasicBlock, depth int) {
		fmt.Fprintf(bufw, "%*s%s\n", 4*depth, "", label(b))
		for _, child := range t.nodes[b.Index].children {
			visit(child, depth+1)
		}
	}
	for _, root := range t.roots {
		visit(root, 0)
	}
	return bufw.Flush()
}

// writeGraphviz writes the tree in graphviz dot format.
func (t *tree) writeGraphviz(w io.Writer, name string) error {
	t.check()
	bufw := bufio.NewWriter(w)
	fmt.Fprintf(bufw, "digraph %s {\n", name)
	for _, n := range t.nodes {
		fmt.Fprintf(bufw, "  n%d [label=%q,shape=\"rectangle\"];\n", n.blk.Index, label(n.blk))
	}
	for _, n := range t.nodes {
		if n.parent != nil {
			fmt.Fprintf(bufw, "  n%d -> n%d;\n", n.parent.Index, n.blk.Index)
		}
	}
	bufw.WriteString("}\n")
	return bufw.Flush()
}

// DomTree is the dominator tree of a function.
// Its root is the entry block; blocks unreachable from the entry are roots
// of their own.
type DomTree struct {
	tree
}

// Root returns the entry block.
func (d *DomTree) Root() *ssa.BasicBlock {
	d.check()
	if len(d.nodes) == 0 {
		return nil
	}
	return d.nodes[0].blk
}

// Idom returns the immediate dominator of b, or nil if b is a root.
func (d *DomTree) Idom(b *ssa.BasicBlock) *ssa.BasicBlock { return d.parent(b) }

// Dominates returns true if a dominates b. Every block dominates itself.
func (d *DomTree) Dominates(a, b *ssa.BasicBlock) bool { return d.dominates(a, b) }

// Reachable returns true if b is reachable from the entry block.
func (d *DomTree) Reachable(b *ssa.BasicBlock) bool {
	d.check()
	return d.Root() != nil && d.root(b) == d.Root()
}

// Equal returns true if d and o describe the same function with the same
// immediate dominators.
func (d *DomTree) Equal(o *DomTree) bool { return d.equal(&o.tree) }

// WriteGraphviz writes the tree to w in graphviz dot format.
func (d *DomTree) WriteGraphviz(w io.Writer) error { return d.writeGraphviz(w, "domtree") }

// PostDomTree is the post-dominator tree of a function.
//
// The tree is rooted at a virtual exit block, which is not part of the
// function and is represented by a nil parent: every exit block (a block
// without successors) is a root. Blocks which cannot reach an exit are roots
// of their own.
type PostDomTree struct {
	tree
}

// Ipdom returns the immediate post-dominator of b, or nil if the immediate
// post-dominator is the virtual exit.
func (p *PostDomTree) Ipdom(b *ssa.BasicBlock) *ssa.BasicBlock { return p.parent(b) }

// PostDominates returns true if a post-dominates b. Every block
// post-dominates itself.
func (p *PostDomTree) PostDominates(a, b *ssa.BasicBlock) bool { return p.dominates(a, b) }

// Reachable returns true if an exit block is reachable from b.
func (p *PostDomTree) Reachable(b *ssa.BasicBlock) bool {
	p.check()
	n := p.node(b)
	return n != nil && n.reach
}

// Equal returns true if p and o describe the same function with the same
// immediate post-dominators.
func (p *PostDomTree) Equal(o *PostDomTree) bool { return p.equal(&o.tree) }

// WriteGraphviz writes the tree to w in graphviz dot format.
func (p *PostDomTree) WriteGraphviz(w io.Writer) error { return p.writeGraphviz(w, "postdomtree") }
