// Package pass provides function passes and the Runner which applies them
// and keeps the analyses of a Manager coherent with the changes they make.
package pass

import (
	"github.com/nickng/ssadom/analysis"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ssa"
)

// FunctionPass is a pass over a single function.
type FunctionPass interface {
	// Name returns the name of the pass in pipelines.
	Name() string

	// RunOnFunc runs the pass on fn and returns how much of fn it changed,
	// analysis.Nothing if it did not change fn.
	RunOnFunc(fn *ssa.Function, am *analysis.Manager) (analysis.InvalidationKind, error)
}

// Preserver is a FunctionPass which keeps some analyses up to date by itself.
// The analyses of the preserved kinds are not invalidated by its changes.
type Preserver interface {
	Preserved() []analysis.Kind
}

// Runner runs function passes over functions.
type Runner struct {
	am     *analysis.Manager
	passes []FunctionPass
	logger *zap.SugaredLogger
}

// NewRunner returns a Runner of the analyses of am.
func NewRunner(am *analysis.Manager) *Runner {
	return &Runner{am: am, logger: zap.NewNop().Sugar()}
}

// SetLogger sets the logger.
func (r *Runner) SetLogger(l *zap.Logger) {
	if l != nil {
		r.logger = l.Sugar().Named("pass")
	}
}

// Add appends passes to the pipeline.
func (r *Runner) Add(passes ...FunctionPass) *Runner {
	r.passes = append(r.passes, passes...)
	return r
}

// Passes returns the pipeline.
func (r *Runner) Passes() []FunctionPass { return r.passes }

// Run runs the pipeline on each function of fns in turn.
//
// After a pass changes a function, every analysis it does not preserve is
// invalidated for the function. If any pass changed calls, every analysis
// is invalidated for the whole program at the end.
//
// A failing pass stops the pipeline for its function only; the errors of all
// functions are combined.
func (r *Runner) Run(fns []*ssa.Function) error {
	var errs error
	worst := analysis.Nothing
	for _, fn := range fns {
		for _, p := range r.passes {
			k, err := p.RunOnFunc(fn, r.am)
			if k.AtLeast(analysis.Instructions) {
				var preserved []analysis.Kind
				if pr, ok := p.(Preserver); ok {
					preserved = pr.Preserved()
				}
				r.logger.Debugw("changed", "pass", p.Name(), "func", analysis.FuncName(fn), "kind", k)
				r.am.InvalidateFuncExcept(fn, k, preserved...)
				if k > worst {
					worst = k
				}
			}
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s on %s", p.Name(), analysis.FuncName(fn)))
				break
			}
		}
	}
	if worst.AtLeast(analysis.CallGraph) {
		r.am.Invalidate(worst)
	}
	return errs
}
