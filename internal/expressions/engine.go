package expressions

import (
	"context"

	"github.com/note89/sitehooks/pkg/schema"
)

// Engine evaluates the expressions that make up script plugin hooks.
// Three implementations: Expr (hook bodies), GoJQ (JSON reshaping), CEL (guards).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Set resolves engines by name.
type Set struct {
	engines map[string]Engine
}

// NewSet builds a Set with the expr, jq and cel engines.
func NewSet() (*Set, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return NewSetOf(NewExprEngine(), NewGoJQEngine(), celEngine), nil
}

// NewSetOf builds a Set from the given engines.
func NewSetOf(engines ...Engine) *Set {
	s := &Set{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		s.engines[e.Name()] = e
	}
	return s
}

// Get returns the engine registered under name.
func (s *Set) Get(name string) (Engine, error) {
	e, ok := s.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "expression engine %q not available", name)
	}
	return e, nil
}
