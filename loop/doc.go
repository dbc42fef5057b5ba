// Package loop provides the natural loops of SSA functions.
//
// A back edge is an edge b → h where h dominates b; h is the header of the
// loop, and b one of its latches. The body of the loop is h and every block
// which reaches a latch without passing through h. Loops which share a header
// are merged into one, so the loops of a function are either disjoint or
// nested.
//
// Loops are computed from the dominator trees of the dominance analysis, and
// the loop analysis caches them until the CFG or the instructions of the
// function change. Loops are extracted with the simple induction variables of
// their headers, e.g. i in
//
//	for i := 0; i < n; i++ { }
package loop
