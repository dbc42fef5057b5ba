package analysis

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ssa"
)

var (
	ErrNilAnalysis   = errors.New("analysis is nil")
	ErrDuplicateKind = errors.New("analysis of the same kind already registered")
)

// Manager is the registry of analyses for a program.
//
// Invalidation events are broadcast to every registered analysis in the order
// of registration. Each analysis decides for itself whether the event is
// severe enough to discard its results.
type Manager struct {
	prog     *ssa.Program
	analyses []Analysis
	byKind   map[Kind]Analysis
	logger   *zap.SugaredLogger
}

// NewManager returns an empty Manager for the program prog.
func NewManager(prog *ssa.Program) *Manager {
	return &Manager{
		prog:   prog,
		byKind: make(map[Kind]Analysis),
		logger: zap.NewNop().Sugar(),
	}
}

// SetLogger sets the logger for invalidation events.
func (m *Manager) SetLogger(l *zap.Logger) {
	if l != nil {
		m.logger = l.Sugar().Named("analysis")
	}
}

// Program returns the program of the Manager.
func (m *Manager) Program() *ssa.Program { return m.prog }

// Register adds a to the Manager.
// At most one analysis of each Kind can be registered.
func (m *Manager) Register(a Analysis) error {
	if a == nil {
		return ErrNilAnalysis
	}
	if _, exists := m.byKind[a.Kind()]; exists {
		return errors.Wrapf(ErrDuplicateKind, "register %s", a.Kind())
	}
	m.byKind[a.Kind()] = a
	m.analyses = append(m.analyses, a)
	m.logger.Debugw("registered", "kind", a.Kind())
	return nil
}

// Get returns the analysis of kind k.
func (m *Manager) Get(k Kind) (Analysis, bool) {
	a, ok := m.byKind[k]
	return a, ok
}

// Analyses returns the registered analyses in registration order.
func (m *Manager) Analyses() []Analysis {
	analyses := make([]Analysis, len(m.analyses))
	copy(analyses, m.analyses)
	return analyses
}

// Invalidate broadcasts a program-wide invalidation of kind k.
func (m *Manager) Invalidate(k InvalidationKind) {
	m.logger.Debugw("invalidate", "kind", k)
	for _, a := range m.analyses {
		a.Invalidate(k)
	}
}

// InvalidateFunc broadcasts an invalidation of kind k for fn.
func (m *Manager) InvalidateFunc(fn *ssa.Function, k InvalidationKind) {
	m.InvalidateFuncExcept(fn, k)
}

// InvalidateFuncExcept broadcasts an invalidation of kind k for fn to every
// analysis except those of the preserved kinds. A pass which keeps an analysis
// up to date by itself preserves it.
func (m *Manager) InvalidateFuncExcept(fn *ssa.Function, k InvalidationKind, preserved ...Kind) {
	m.logger.Debugw("invalidate func", "func", FuncName(fn), "kind", k, "preserved", preserved)
NEXT:
	for _, a := range m.analyses {
		for _, p := range preserved {
			if a.Kind() == p {
				continue NEXT
			}
		}
		a.InvalidateFunc(fn, k)
	}
}

// Close tears down every registered analysis which holds resources, in
// reverse registration order.
func (m *Manager) Close() error {
	var err error
	for i := len(m.analyses) - 1; i >= 0; i-- {
		if c, ok := m.analyses[i].(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// FuncName returns the name of fn for logs and errors; fn can be nil.
func FuncName(fn *ssa.Function) string {
	if fn == nil {
		return "<nil>"
	}
	return fn.String()
}
