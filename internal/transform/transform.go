// Package transform provides field-transform hooks applied to seed literals
// while a graph is parsed.
//
// A registry field names its hook (transform: "bcrypt"); the parser looks the
// name up here and replaces the literal before the node is built. Hooks never
// see storage and must be deterministic except where hashing adds salt.
package transform

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/seedgraph/internal/ir"
)

// Func transforms one literal. Null literals are not passed to hooks.
type Func func(v ir.IRValue) (ir.IRValue, error)

// Built-in hook names.
const (
	Bcrypt = "bcrypt"
	NFC    = "nfc"
	Lower  = "lower"
	Trim   = "trim"
)

// Registry maps hook names to functions.
type Registry struct {
	hooks map[string]Func
}

// Option configures the built-in hooks.
type Option func(*options)

type options struct {
	bcryptCost int
}

// WithBcryptCost sets the bcrypt work factor. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// NewRegistry returns a registry holding the built-in hooks.
func NewRegistry(opts ...Option) *Registry {
	o := options{bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{hooks: make(map[string]Func)}
	r.Register(Bcrypt, stringHook(func(s string) (string, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(s), o.bcryptCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	}))
	r.Register(NFC, stringHook(func(s string) (string, error) {
		return norm.NFC.String(s), nil
	}))
	r.Register(Lower, stringHook(func(s string) (string, error) {
		// A Caser keeps state; one per call keeps hooks safe for concurrent use.
		return cases.Lower(language.Und).String(s), nil
	}))
	r.Register(Trim, stringHook(func(s string) (string, error) {
		return strings.TrimSpace(s), nil
	}))
	return r
}

// Register adds or replaces a hook.
func (r *Registry) Register(name string, fn Func) {
	r.hooks[name] = fn
}

// Has reports whether a hook is registered under name.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.hooks[name]
	return ok
}

// Names returns the registered hook names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for n := range r.hooks {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Apply runs the named hook. Null values pass through untouched.
func (r *Registry) Apply(name string, v ir.IRValue) (ir.IRValue, error) {
	fn, ok := r.hooks[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	if ir.IsNull(v) {
		return v, nil
	}
	out, err := fn(v)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", name, err)
	}
	return out, nil
}

// stringHook adapts a string function to Func, rejecting other value types.
func stringHook(fn func(string) (string, error)) Func {
	return func(v ir.IRValue) (ir.IRValue, error) {
		s, ok := v.(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		out, err := fn(string(s))
		if err != nil {
			return nil, err
		}
		return ir.IRString(out), nil
	}
}
