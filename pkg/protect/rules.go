package protect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// rule is a compiled protection expression. Expressions see three
// variables: entity (the remote record's attributes), key and remoteId.
//
//	entity.userType == "Guest"
//	has(entity.onPremisesSyncEnabled) && entity.onPremisesSyncEnabled == true
type rule struct {
	expr    string
	program cel.Program
}

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("key", cel.StringType),
		cel.Variable("remoteId", cel.StringType),
	)
}

func compileRules(exprs []string) ([]rule, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	env, err := newRuleEnv()
	if err != nil {
		return nil, err
	}
	out := make([]rule, 0, len(exprs))
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("protection expression %q: %w", expr, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
			return nil, fmt.Errorf("protection expression %q: must evaluate to bool", expr)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("protection expression %q: %w", expr, err)
		}
		out = append(out, rule{expr: expr, program: program})
	}
	return out, nil
}

func (r rule) eval(c Candidate) (bool, error) {
	attrs := map[string]any{}
	if c.Remote != nil && c.Remote.Attributes != nil {
		attrs = c.Remote.Attributes
	}
	out, _, err := r.program.Eval(map[string]any{
		"entity":   attrs,
		"key":      c.Key,
		"remoteId": c.RemoteID,
	})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("expression did not evaluate to bool")
	}
	return v, nil
}
