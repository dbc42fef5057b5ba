package ssa

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// CallGraph is a call graph of a program with the function sets derived from
// it. The sets are computed on first use.
type CallGraph struct {
	prog *ssa.Program
	cg   *callgraph.Graph

	visited bool            // calls is computed.
	calls   []call          // Sorted by caller then callee.
	all     []*ssa.Function // Functions with an edge.
	used    []*ssa.Function // Functions with an edge reachable from main.init and main.main.
}

type call struct {
	caller, callee *ssa.Function
}

// Graph returns the underlying call graph.
func (g *CallGraph) Graph() *callgraph.Graph { return g.cg }

// edges returns the calls of the graph, deduplicated.
func (g *CallGraph) edges() ([]call, error) {
	if g.visited {
		return g.calls, nil
	}
	seen := make(map[call]bool)
	err := callgraph.GraphVisitEdges(g.cg, func(e *callgraph.Edge) error {
		c := call{caller: e.Caller.Func, callee: e.Callee.Func}
		if !seen[c] {
			seen[c] = true
			g.calls = append(g.calls, c)
		}
		return nil
	})
	if err != nil {
		g.calls = nil
		return nil, errors.Wrap(err, "callgraph: cannot visit edges")
	}
	g.visited = true
	sort.Slice(g.calls, func(i, j int) bool {
		ci, cj := g.calls[i], g.calls[j]
		if ci.caller != cj.caller {
			return ci.caller.String() < cj.caller.String()
		}
		return ci.callee.String() < cj.callee.String()
	})
	return g.calls, nil
}

// AllFunctions returns the functions which call or are called in the graph,
// sorted by name.
func (g *CallGraph) AllFunctions() ([]*ssa.Function, error) {
	if g.all != nil {
		return g.all, nil
	}
	calls, err := g.edges()
	if err != nil {
		return nil, err
	}
	set := make(map[*ssa.Function]bool)
	for _, c := range calls {
		set[c.caller], set[c.callee] = true, true
	}
	g.all = funcSet(set)
	return g.all, nil
}

// UsedFunctions returns the functions of AllFunctions reachable in the graph
// from init and main of the main packages, sorted by name.
func (g *CallGraph) UsedFunctions() ([]*ssa.Function, error) {
	if g.used != nil {
		return g.used, nil
	}
	calls, err := g.edges()
	if err != nil {
		return nil, err
	}
	roots, err := mainRoots(g.prog)
	if err != nil {
		return nil, errors.Wrap(err, "callgraph: no roots for used functions")
	}
	callees := make(map[*ssa.Function][]*ssa.Function)
	inGraph := make(map[*ssa.Function]bool)
	for _, c := range calls {
		callees[c.caller] = append(callees[c.caller], c.callee)
		inGraph[c.caller], inGraph[c.callee] = true, true
	}
	var queue []*ssa.Function
	for _, fn := range roots {
		if inGraph[fn] {
			queue = append(queue, fn)
		}
	}
	set := make(map[*ssa.Function]bool)
	for ; len(queue) > 0; queue = queue[1:] {
		if set[queue[0]] {
			continue
		}
		set[queue[0]] = true
		queue = append(queue, callees[queue[0]]...)
	}
	g.used = funcSet(set)
	return g.used, nil
}

func funcSet(set map[*ssa.Function]bool) []*ssa.Function {
	fns := make([]*ssa.Function, 0, len(set))
	for fn := range set {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}

// WriteGraphviz writes the calls of the graph to w in graphviz dot format.
func (g *CallGraph) WriteGraphviz(w io.Writer) error {
	calls, err := g.edges()
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(w)
	bufw.WriteString("digraph callgraph {\n")
	for _, c := range calls {
		fmt.Fprintf(bufw, "  %q -> %q\n", c.caller, c.callee)
	}
	bufw.WriteString("}\n")
	return bufw.Flush()
}

// mainRoots returns init and main of the main packages.
func mainRoots(prog *ssa.Program) ([]*ssa.Function, error) {
	mains, err := MainPkgs(prog)
	if err != nil {
		return nil, err
	}
	var roots []*ssa.Function
	for _, main := range mains {
		for _, name := range []string{"init", "main"} {
			if fn := main.Func(name); fn != nil {
				roots = append(roots, fn)
			}
		}
	}
	return roots, nil
}

// BuildCallGraph constructs a call graph of prog with algo, one of
// Algorithms:
//  - static  static calls only (unsound)
//  - cha     Class Hierarchy Analysis
//  - rta     Rapid Type Analysis (requires a main package)
//  - vta     Variable Type Analysis, refined from cha
//
// Synthetic nodes are removed from the graph.
func BuildCallGraph(prog *ssa.Program, algo string) (*CallGraph, error) {
	var cg *callgraph.Graph
	switch algo {
	case "static":
		cg = static.CallGraph(prog)
	case "cha":
		cg = cha.CallGraph(prog)
	case "rta":
		roots, err := mainRoots(prog)
		if err != nil {
			return nil, err
		}
		cg = rta.Analyze(roots, true).CallGraph
	case "vta":
		cg = vta.CallGraph(ssautil.AllFunctions(prog), cha.CallGraph(prog))
	default:
		return nil, errors.Wrapf(ErrUnknownAlgo, "callgraph %q", algo)
	}
	cg.DeleteSyntheticNodes()
	return &CallGraph{prog: prog, cg: cg}, nil
}

// BuildCallGraph constructs a call graph of the program of info.
func (info *Info) BuildCallGraph(algo string) (*CallGraph, error) {
	return BuildCallGraph(info.Prog, algo)
}
