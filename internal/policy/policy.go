// Package policy decides which destinations tokens may be issued for.
package policy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var ErrDenied = errors.New("destination denied by policy")

// Env is what a policy expression is evaluated against.
type Env struct {
	Destination string `expr:"destination"`
	Scheme      string `expr:"scheme"`
	Host        string `expr:"host"`
	Port        string `expr:"port"`
	Path        string `expr:"path"`
}

// NewEnv splits a destination into its parts.
// Destinations that are not valid URLs only carry the raw destination.
func NewEnv(destination string) Env {
	env := Env{Destination: destination}
	u, err := url.Parse(destination)
	if err != nil {
		return env
	}
	env.Scheme = strings.ToLower(u.Scheme)
	env.Host = u.Hostname()
	env.Port = u.Port()
	env.Path = u.Path
	return env
}

// Guard evaluates a compiled expression. A nil Guard allows everything.
type Guard struct {
	source  string
	program *vm.Program
}

// Compile returns nil for an empty expression.
func Compile(code string) (*Guard, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	program, err := expr.Compile(code, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling policy expression: %w", err)
	}
	return &Guard{source: code, program: program}, nil
}

// Allow returns ErrDenied if the destination does not satisfy the expression.
func (g *Guard) Allow(destination string) error {
	if g == nil {
		return nil
	}
	out, err := expr.Run(g.program, NewEnv(destination))
	if err != nil {
		return fmt.Errorf("evaluating policy expression: %w", err)
	}
	if allowed, _ := out.(bool); !allowed {
		return fmt.Errorf("%w: '%s'", ErrDenied, destination)
	}
	return nil
}

func (g *Guard) String() string {
	if g == nil {
		return "(allow all)"
	}
	return g.source
}
