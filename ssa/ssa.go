// Package ssa is a library to build and work with SSA.
// For most part the package contains helper or wrapper functions to use the
// packages in Go project's extra tools.
//
// In particular, the SSA IR is from golang.org/x/tools/go/ssa, and the call
// graphs are from golang.org/x/tools/go/callgraph.
package ssa

import (
	"go/token"
	"io"
	"sort"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Info holds the results of a SSA build for analysis.
// To populate this structure, the 'build' subpackage should be used.
//
type Info struct {
	IgnoredPkgs []string // Record of ignored package during the build process.

	FSet *token.FileSet // FileSet for parsed source files.
	Prog *ssa.Program   // SSA IR for whole program.
	Pkgs []*ssa.Package // Packages given to the build (not dependencies).

	BldLog io.Writer // Build log.
}

// SrcFuncs returns the functions with a body declared in the packages given to
// the build, including anonymous functions, sorted by name.
func (info *Info) SrcFuncs() []*ssa.Function {
	initial := make(map[*ssa.Package]bool)
	for _, pkg := range info.Pkgs {
		initial[pkg] = true
	}
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(info.Prog) {
		if len(fn.Blocks) == 0 {
			continue
		}
		if pkg := fn.Package(); pkg != nil && initial[pkg] {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}
