package pass

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/nickng/ssadom/analysis"
	"github.com/nickng/ssadom/dominance"
	"github.com/nickng/ssadom/loop"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

var ErrNoLoopAnalysis = errors.New("loop analysis not registered")

func header(noColor bool) *color.Color {
	c := color.New(color.FgCyan, color.Bold)
	if noColor {
		c.DisableColor()
	}
	return c
}

// PrintDomTree writes the dominator and post-dominator trees of a function.
type PrintDomTree struct {
	w   io.Writer
	hdr *color.Color
}

// NewPrintDomTree returns a PrintDomTree which writes to w.
func NewPrintDomTree(w io.Writer, noColor bool) *PrintDomTree {
	return &PrintDomTree{w: w, hdr: header(noColor)}
}

func (*PrintDomTree) Name() string { return "print-domtree" }

func (p *PrintDomTree) RunOnFunc(fn *ssa.Function, am *analysis.Manager) (analysis.InvalidationKind, error) {
	da, err := dominance.FromManager(am)
	if err != nil {
		return analysis.Nothing, err
	}
	dt, err := da.DomTree(fn)
	if err != nil {
		return analysis.Nothing, err
	}
	pdt, err := da.PostDomTree(fn)
	if err != nil {
		return analysis.Nothing, err
	}
	p.hdr.Fprintf(p.w, "# domtree %s\n", fn)
	if err := dt.WriteText(p.w); err != nil {
		return analysis.Nothing, err
	}
	p.hdr.Fprintf(p.w, "# postdomtree %s\n", fn)
	return analysis.Nothing, pdt.WriteText(p.w)
}

// PrintLoops writes the natural loops of a function, indented by depth.
type PrintLoops struct {
	w   io.Writer
	hdr *color.Color
}

// NewPrintLoops returns a PrintLoops which writes to w.
func NewPrintLoops(w io.Writer, noColor bool) *PrintLoops {
	return &PrintLoops{w: w, hdr: header(noColor)}
}

func (*PrintLoops) Name() string { return "print-loops" }

func (p *PrintLoops) RunOnFunc(fn *ssa.Function, am *analysis.Manager) (analysis.InvalidationKind, error) {
	la, ok := loop.FromManager(am)
	if !ok {
		return analysis.Nothing, ErrNoLoopAnalysis
	}
	loops, err := la.Loops(fn)
	if err != nil {
		return analysis.Nothing, err
	}
	p.hdr.Fprintf(p.w, "# loops %s\n", fn)
	bufw := bufio.NewWriter(p.w)
	for _, l := range loops {
		fmt.Fprintf(bufw, "%s%s\n", strings.Repeat("    ", l.Depth-1), l)
	}
	return analysis.Nothing, bufw.Flush()
}
