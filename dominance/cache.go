package dominance

import (
	"github.com/nickng/ssadom/analysis"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ssa"
)

// tree is an owned tree of a function.
type tree interface {
	comparable
	Func() *ssa.Function
	Release()
	Released() bool
}

// cache is the map from functions to one kind of tree.
type cache[T tree] struct {
	label   string // Tree label for logs and metrics.
	entries map[*ssa.Function]T
	build   func(*ssa.Function) (T, error)

	logger  *zap.SugaredLogger
	metrics *metrics
}

func newCache[T tree](label string, build func(*ssa.Function) (T, error), logger *zap.SugaredLogger, m *metrics) *cache[T] {
	return &cache[T]{
		label:   label,
		entries: make(map[*ssa.Function]T),
		build:   build,
		logger:  logger,
		metrics: m,
	}
}

func (c *cache[T]) get(fn *ssa.Function) (T, error) {
	if t, ok := c.entries[fn]; ok {
		c.metrics.lookups.WithLabelValues(c.label, resultHit).Inc()
		return t, nil
	}
	c.metrics.lookups.WithLabelValues(c.label, resultMiss).Inc()

	var zero T
	t, err := c.build(fn)
	if err != nil {
		c.logger.Debugw("build failed", "tree", c.label, "func", analysis.FuncName(fn), "error", err)
		return zero, err
	}
	if t == zero {
		return zero, ErrNilTree
	}
	c.entries[fn] = t
	c.metrics.built.WithLabelValues(c.label).Inc()
	c.setEntries()
	c.logger.Debugw("build", "tree", c.label, "func", analysis.FuncName(fn))
	return t, nil
}

func (c *cache[T]) update(op string, fn *ssa.Function, t T) {
	var zero T
	old, cached := c.entries[fn]
	switch {
	case t == zero:
		panic(&ContractError{Op: op, Func: fn, Reason: "tree is nil"})
	case cached && t == old:
		panic(&ContractError{Op: op, Func: fn, Reason: "tree is already cached"})
	case t.Released():
		panic(&ContractError{Op: op, Func: fn, Reason: "tree is released"})
	case t.Func() != fn:
		panic(&ContractError{Op: op, Func: fn, Reason: "tree is of " + analysis.FuncName(t.Func())})
	}
	if cached {
		c.release(old)
	}
	c.entries[fn] = t
	c.metrics.updated.WithLabelValues(c.label).Inc()
	c.setEntries()
	c.logger.Debugw("update", "tree", c.label, "func", analysis.FuncName(fn), "replaced", cached)
}

func (c *cache[T]) reclaim(op string, fn *ssa.Function) T {
	t, ok := c.entries[fn]
	if !ok {
		panic(&ContractError{Op: op, Func: fn, Reason: "no tree is cached"})
	}
	delete(c.entries, fn)
	c.metrics.reclaimed.WithLabelValues(c.label).Inc()
	c.setEntries()
	c.logger.Debugw("reclaim", "tree", c.label, "func", analysis.FuncName(fn))
	return t
}

// drop releases the tree of fn, and returns false if there is none.
func (c *cache[T]) drop(fn *ssa.Function) bool {
	t, ok := c.entries[fn]
	if !ok {
		return false
	}
	delete(c.entries, fn)
	c.release(t)
	c.setEntries()
	return true
}

// clear releases every tree and returns the number of trees released.
func (c *cache[T]) clear() int {
	n := len(c.entries)
	for fn, t := range c.entries {
		delete(c.entries, fn)
		c.release(t)
	}
	c.setEntries()
	return n
}

func (c *cache[T]) has(fn *ssa.Function) bool {
	_, ok := c.entries[fn]
	return ok
}

func (c *cache[T]) release(t T) {
	t.Release()
	c.metrics.released.WithLabelValues(c.label).Inc()
}

func (c *cache[T]) setEntries() {
	c.metrics.entries.WithLabelValues(c.label).Set(float64(len(c.entries)))
}
