// Package build loads Go source code and builds its SSA IR into an ssa.Info.
//
// A configuration is created from the source, then adjusted with the
// Configurer methods before Build:
//
//	info, err := build.FromFiles(args).Default().WithBuildLog(os.Stderr, 0).Build()
//
// FromFiles takes file names or package patterns, loaded with
// golang.org/x/tools/go/packages together with their dependencies. Packages
// marked bad are left out of the program.
//
// FromReader takes a single file, mostly for tests. Only its package gets
// function bodies; imports are type checked from export data.
package build
