package dom

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// StaleTreeError is the error when a tree does not cover the blocks of its
// function, i.e. the CFG was changed without updating or dropping the tree.
type StaleTreeError struct {
	Func          *ssa.Function
	Blocks, Nodes int
}

func (e StaleTreeError) Error() string {
	return fmt.Sprintf("dom: stale tree for %s: function has %d blocks, tree has %d",
		e.Func, e.Blocks, e.Nodes)
}

// Mismatch is a pair of blocks where a tree and the dataflow solution
// disagree.
type Mismatch struct {
	A, B      *ssa.BasicBlock
	Got, Want bool
}

// VerifyError is the error listing every Mismatch of a tree.
type VerifyError struct {
	Func       *ssa.Function
	Post       bool
	Mismatches []Mismatch
}

func (e VerifyError) Error() string {
	rel := "dominates"
	if e.Post {
		rel = "postdominates"
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "dom: %d mismatches in %s", len(e.Mismatches), e.Func)
	for _, m := range e.Mismatches {
		fmt.Fprintf(&buf, "\n\t%s(%s, %s)==%t, want %t", rel, label(m.A), label(m.B), m.Got, m.Want)
	}
	return buf.String()
}

// VerifyDom checks d against the dominance relation computed by a naive
// Kildall-style dataflow analysis of its function.
func VerifyDom(d *DomTree) error {
	fn := d.Func()
	if err := checkCovered(&d.tree); err != nil {
		return err
	}
	return verify(&d.tree, []*ssa.BasicBlock{fn.Blocks[0]}, preds, succs, false)
}

// VerifyPostDom checks p against the post-dominance relation computed by a
// naive Kildall-style dataflow analysis of its function.
func VerifyPostDom(p *PostDomTree) error {
	fn := p.Func()
	if err := checkCovered(&p.tree); err != nil {
		return err
	}
	return verify(&p.tree, Exits(fn), succs, preds, true)
}

func checkCovered(t *tree) error {
	if err := checkFunc(t.fn); err != nil {
		return err
	}
	if len(t.fn.Blocks) != len(t.nodes) {
		return StaleTreeError{Func: t.fn, Blocks: len(t.fn.Blocks), Nodes: len(t.nodes)}
	}
	for i, b := range t.fn.Blocks {
		if t.nodes[i].blk != b {
			return StaleTreeError{Func: t.fn, Blocks: len(t.fn.Blocks), Nodes: len(t.nodes)}
		}
	}
	return nil
}

// verify solves D[b] = {b} ∪ ⋂ D[p] for p in prev(b), with D[r] = {r} for
// every root r, and compares D with t for every pair of blocks.
// Blocks not reachable from a root are dominated by themselves only.
func verify(t *tree, roots []*ssa.BasicBlock, prev, next func(*ssa.BasicBlock) []*ssa.BasicBlock, post bool) error {
	fn := t.fn
	n := len(fn.Blocks)

	reachable := make([]bool, n)
	var walk func(b *ssa.BasicBlock)
	walk = func(b *ssa.BasicBlock) {
		if reachable[b.Index] {
			return
		}
		reachable[b.Index] = true
		for _, s := range next(b) {
			walk(s)
		}
	}
	isRoot := make([]bool, n)
	for _, r := range roots {
		isRoot[r.Index] = true
		walk(r)
	}

	D := make([]big.Int, n)
	one := big.NewInt(1)
	var all big.Int
	all.Set(one).Lsh(&all, uint(n)).Sub(&all, one)

	for i := range fn.Blocks {
		if isRoot[i] || !reachable[i] {
			D[i].SetBit(&D[i], i, 1)
		} else {
			D[i].Set(&all)
		}
	}

	for changed := true; changed; {
		changed = false
		for i, b := range fn.Blocks {
			if isRoot[i] || !reachable[i] {
				continue
			}
			var x big.Int
			x.Set(&all)
			for _, p := range prev(b) {
				if reachable[p.Index] {
					x.And(&x, &D[p.Index])
				}
			}
			x.SetBit(&x, i, 1)
			if D[i].Cmp(&x) != 0 {
				D[i].Set(&x)
				changed = true
			}
		}
	}

	var mismatches []Mismatch
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a, b := fn.Blocks[i], fn.Blocks[j]
			got := t.dominates(a, b)
			want := D[j].Bit(i) == 1
			if got != want {
				mismatches = append(mismatches, Mismatch{A: a, B: b, Got: got, Want: want})
			}
		}
	}
	if len(mismatches) > 0 {
		return VerifyError{Func: fn, Post: post, Mismatches: mismatches}
	}
	return nil
}
