package build

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"io"
	"log"

	"github.com/nickng/ssadom/ssa"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
	gossa "golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// ErrBadPackages is the error when the loaded packages have errors.
var ErrBadPackages = errors.New("packages contain errors")

type Configurer interface {
	Builder
	Default() Configurer
	AddBadPkg(pkg, reason string) Configurer
	WithBuildLog(l io.Writer, flags int) Configurer
	WithMode(mode gossa.BuilderMode) Configurer
}

// Config represents a build configuration.
type Config struct {
	badPkgs map[string]string

	bldLog    io.Writer         // Build log.
	bldLFlags int               // Build log flags.
	mode      gossa.BuilderMode // SSA builder mode.

	src Builder // src points to the program source.
}

func newConfig(src interface{}) *Config {
	c := &Config{
		badPkgs:   make(map[string]string),
		bldLog:    io.Discard,
		bldLFlags: log.LstdFlags,
		mode:      gossa.InstantiateGenerics,
	}
	switch src := src.(type) {
	case *FileSrc:
		c.src = fileBuilder{c, src}
	case *ReaderSrc:
		c.src = readerBuilder{c, src}
	}
	return c
}

// WithBuildLog adds build log to config.
func (c *Config) WithBuildLog(l io.Writer, flags int) Configurer {
	c.bldLog = l
	c.bldLFlags = flags
	return c
}

// WithMode sets the SSA builder mode.
func (c *Config) WithMode(mode gossa.BuilderMode) Configurer {
	c.mode = mode
	return c
}

// AddBadPkg marks a package 'bad' to avoid building function bodies.
func (c *Config) AddBadPkg(pkg, reason string) Configurer {
	c.badPkgs[pkg] = reason
	return c
}

// Build loads, type checks and builds the SSA IR of the source.
func (c *Config) Build() (*ssa.Info, error) {
	return c.src.Build()
}

// Default returns a default configuration for static analysis.
func (c *Config) Default() Configurer {
	return c.
		AddBadPkg("reflect", "Reflection is not supported").
		AddBadPkg("runtime", "Runtime is ignored for static analysis")
}

func (c *Config) logger() *log.Logger {
	return log.New(c.bldLog, "ssabuild: ", c.bldLFlags)
}

type fileBuilder struct {
	conf *Config
	src  *FileSrc
}

func (b fileBuilder) Build() (*ssa.Info, error) {
	bldLog := b.conf.logger()
	fset := token.NewFileSet()
	lconf := &packages.Config{Mode: packages.LoadAllSyntax, Fset: fset}
	initial, err := packages.Load(lconf, b.src.Files...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load packages")
	}
	if n := packages.PrintErrors(initial); n > 0 {
		return nil, errors.Wrapf(ErrBadPackages, "%d errors", n)
	}
	bldLog.Print("Program loaded and type checked")

	prog, pkgs := ssautil.AllPackages(initial, b.conf.mode)
	var ignoredPkgs []string
	for _, pkg := range prog.AllPackages() {
		if reason, badPkg := b.conf.badPkgs[pkg.Pkg.Name()]; badPkg {
			bldLog.Printf("Skip package: %s (%s)", pkg.Pkg.Name(), reason)
			ignoredPkgs = append(ignoredPkgs, pkg.Pkg.Name())
			continue
		}
		pkg.Build()
	}

	var initPkgs []*gossa.Package
	for _, pkg := range pkgs {
		if pkg != nil {
			initPkgs = append(initPkgs, pkg)
		}
	}
	return &ssa.Info{
		IgnoredPkgs: ignoredPkgs,
		FSet:        fset,
		Prog:        prog,
		Pkgs:        initPkgs,
		BldLog:      b.conf.bldLog,
	}, nil
}

type readerBuilder struct {
	conf *Config
	src  *ReaderSrc
}

func (b readerBuilder) Build() (*ssa.Info, error) {
	if b.src.err != nil {
		return nil, b.src.err
	}
	bldLog := b.conf.logger()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "tmp", b.src.Reader(), parser.ParseComments)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse source")
	}
	name := f.Name.Name
	tconf := &types.Config{Importer: importer.Default()}
	pkg, _, err := ssautil.BuildPackage(tconf, fset, types.NewPackage(name, name), []*ast.File{f}, b.conf.mode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to type check source")
	}
	bldLog.Print("Program loaded and type checked")
	return &ssa.Info{
		FSet:   fset,
		Prog:   pkg.Prog,
		Pkgs:   []*gossa.Package{pkg},
		BldLog: b.conf.bldLog,
	}, nil
}
