package release

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Selector filters releases with a CEL expression over the variable
// `release`, a map with keys distro, codename, channel and locales_all.
type Selector struct {
	expr string
	prg  cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("release", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewSelector compiles expr. An empty expression selects every release.
func NewSelector(expr string) (*Selector, error) {
	if expr == "" {
		return &Selector{}, nil
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid release selector %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building release selector %q: %w", expr, err)
	}
	return &Selector{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (s *Selector) String() string {
	return s.expr
}

// Match evaluates the selector against one release.
func (s *Selector) Match(r Release) (bool, error) {
	if s.prg == nil {
		return true, nil
	}
	out, _, err := s.prg.Eval(map[string]any{
		"release": map[string]any{
			"distro":      r.Distro,
			"codename":    r.Codename,
			"channel":     string(r.Channel),
			"locales_all": r.LocalesAll,
		},
	})
	if err != nil {
		return false, fmt.Errorf("evaluating release selector %q for %s: %w", s.expr, r, err)
	}
	match, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("release selector %q returned %T, not bool", s.expr, out.Value())
	}
	return match, nil
}

// Select returns the releases the selector matches, in order.
func (s *Selector) Select(releases []Release) ([]Release, error) {
	var out []Release
	for _, r := range releases {
		ok, err := s.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
