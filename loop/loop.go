package loop

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/nickng/ssadom/dom"
	"golang.org/x/tools/go/ssa"
)

// Loop is a natural loop.
type Loop struct {
	Header  *ssa.BasicBlock   // Header dominates every block of the loop.
	Blocks  []*ssa.BasicBlock // Blocks of the loop, sorted by index.
	Latches []*ssa.BasicBlock // Sources of the back edges, sorted by index.
	Depth   int               // Nesting depth, 1 for outermost loops.
	Parent  *Loop             // Innermost enclosing loop, nil for outermost loops.

	Inductions []*Induction // Simple induction variables of the header.

	body map[*ssa.BasicBlock]bool
}

// Contains returns true if b is a block of the loop.
func (l *Loop) Contains(b *ssa.BasicBlock) bool { return l.body[b] }

// Exits returns the blocks outside the loop with a predecessor in the loop,
// sorted by index.
func (l *Loop) Exits() []*ssa.BasicBlock {
	seen := make(map[*ssa.BasicBlock]bool)
	var exits []*ssa.BasicBlock
	for _, b := range l.Blocks {
		for _, s := range b.Succs {
			if !l.body[s] && !seen[s] {
				seen[s] = true
				exits = append(exits, s)
			}
		}
	}
	sortBlocks(exits)
	return exits
}

func (l *Loop) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "loop@%d depth=%d blocks=%s latches=%s exits=%s",
		l.Header.Index, l.Depth, indices(l.Blocks), indices(l.Latches), indices(l.Exits()))
	for _, ind := range l.Inductions {
		fmt.Fprintf(&buf, " [%s]", ind)
	}
	return buf.String()
}

func indices(blocks []*ssa.BasicBlock) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range blocks {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%d", b.Index)
	}
	buf.WriteByte(']')
	return buf.String()
}

func sortBlocks(blocks []*ssa.BasicBlock) {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })
}

// Find returns the natural loops of the function of dt, outer loops before
// the loops they contain.
func Find(dt *dom.DomTree) []*Loop {
	var loops []*Loop
	for _, h := range dt.Preorder() {
		if !dt.Reachable(h) {
			continue
		}
		var latches []*ssa.BasicBlock
		for _, p := range h.Preds {
			if dt.Reachable(p) && dt.Dominates(h, p) {
				latches = append(latches, p)
			}
		}
		if len(latches) == 0 {
			continue
		}
		l := newLoop(dt, h, latches)
		for i := len(loops) - 1; i >= 0; i-- {
			if loops[i].Contains(h) {
				l.Parent = loops[i]
				l.Depth = loops[i].Depth + 1
				break
			}
		}
		loops = append(loops, l)
	}
	return loops
}

func newLoop(dt *dom.DomTree, h *ssa.BasicBlock, latches []*ssa.BasicBlock) *Loop {
	l := &Loop{
		Header: h,
		Depth:  1,
		body:   map[*ssa.BasicBlock]bool{h: true},
	}
	stack := make([]*ssa.BasicBlock, 0, len(latches))
	for _, b := range latches {
		if !l.body[b] {
			l.body[b] = true
			stack = append(stack, b)
		}
	}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range b.Preds {
			if !l.body[p] && dt.Reachable(p) {
				l.body[p] = true
				stack = append(stack, p)
			}
		}
	}
	for b := range l.body {
		l.Blocks = append(l.Blocks, b)
	}
	sortBlocks(l.Blocks)
	l.Latches = append(l.Latches, latches...)
	sortBlocks(l.Latches)
	l.Inductions = inductions(l)
	return l
}
