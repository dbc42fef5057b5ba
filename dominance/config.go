package dominance

import (
	"github.com/nickng/ssadom/dom"
	"go.uber.org/zap"
)

// Config is the configuration of a dominance analysis.
type Config struct {
	builder   dom.Builder
	logger    *zap.Logger
	namespace string // Metrics namespace.
}

// NewConfig returns the default configuration: trees are built with
// dom.DefaultBuilder and nothing is logged.
func NewConfig() *Config {
	return &Config{
		builder:   dom.DefaultBuilder{},
		logger:    zap.NewNop(),
		namespace: "ssadom",
	}
}

// WithBuilder sets the builder of the trees.
func (c *Config) WithBuilder(b dom.Builder) *Config {
	if b != nil {
		c.builder = b
	}
	return c
}

// WithLogger sets the logger.
func (c *Config) WithLogger(l *zap.Logger) *Config {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithNamespace sets the namespace of the metrics.
func (c *Config) WithNamespace(ns string) *Config {
	c.namespace = ns
	return c
}
