package program

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// UniformBinder uploads one named uniform value to the active program.
// Implementations may panic on values they cannot convert.
type UniformBinder interface {
	BindUniform(name string, value any)
}

// Params is a set of named uniform values. Binding is best effort: a value
// the binder rejects is skipped and the rest are still bound.
type Params struct {
	values map[string]any
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// Set stores a value under name, replacing any previous value.
func (p *Params) Set(name string, value any) {
	p.values[name] = value
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Len returns the number of stored values.
func (p *Params) Len() int {
	return len(p.values)
}

// Names returns the stored names in sorted order.
func (p *Params) Names() []string {
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Bind hands every value to binder in name order. Panics raised by the binder
// for a value are recovered and logged at debug level.
//
// Parameters:
//   - binder: the program-side uniform setter
//   - logger: receives skipped values; nil discards them
//
// Returns:
//   - int: the number of values bound without error
func (p *Params) Bind(binder UniformBinder, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}
	bound := 0
	for _, name := range p.Names() {
		if err := bindOne(binder, name, p.values[name]); err != nil {
			logger.Debug("uniform skipped", zap.String("name", name), zap.Error(err))
			continue
		}
		bound++
	}
	return bound
}

func bindOne(binder UniformBinder, name string, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("program: bind %q: %v", name, r)
		}
	}()
	binder.BindUniform(name, value)
	return nil
}
