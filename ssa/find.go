package ssa

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// FuncNotFoundError is the error when no function matches a path.
type FuncNotFoundError struct {
	Path string
}

func (e FuncNotFoundError) Error() string {
	return fmt.Sprintf("function not found: %s", e.Path)
}

// FindFunc parses path (e.g. "github.com/nickng/ssadom/ssa".MainPkgs) and
// returns Function body in SSA IR. The package is matched by path or by name,
// and a path without a package matches the function name in any of the
// packages given to the build.
func (info *Info) FindFunc(path string) (*ssa.Function, error) {
	pkgPath, fnName := parseFuncPath(path)
	for _, f := range info.SrcFuncs() {
		if f.Name() != fnName {
			continue
		}
		if pkgPath == "" || (f.Pkg != nil && (f.Pkg.Pkg.Path() == pkgPath || f.Pkg.Pkg.Name() == pkgPath)) {
			return f, nil
		}
	}
	return nil, FuncNotFoundError{Path: path}
}

// quotedPkg matches a function path with a parenthesised or quoted package,
// e.g. (import/path).Name or "import/path".Name.
var quotedPkg = regexp.MustCompile(`^(?:\(([^)]+)\)|"([^"]+)")\.(.+)$`)

// parseFuncPath splits path into its package and function name. Methods are
// not supported.
func parseFuncPath(path string) (pkgPath, fnName string) {
	if m := quotedPkg.FindStringSubmatch(path); m != nil {
		return m[1] + m[2], m[3]
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
