package gate

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// celRules holds deployment-specific deny expressions, compiled once at gate
// construction. Expressions are evaluated only for requests the ordered
// rules would allow; they can tighten policy, never loosen it.
type celRules struct {
	programs []compiledRule
}

type compiledRule struct {
	expr    string
	program cel.Program
}

func compileDenyRules(exprs []string) (*celRules, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("target", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("gate cel env: %w", err)
	}

	rules := &celRules{}
	for _, expr := range exprs {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("gate cel rule %q: %w", expr, issues.Err())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("gate cel program %q: %w", expr, err)
		}
		rules.programs = append(rules.programs, compiledRule{expr: expr, program: program})
	}
	return rules, nil
}

// deny reports whether any rule evaluates to true for the request. An
// evaluation error counts as a hit: a rule that cannot be evaluated fails
// closed.
func (r *celRules) deny(req ActionRequest) (bool, string) {
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}
	input := map[string]any{
		"type":   req.Type,
		"target": req.Target,
		"source": string(req.Source),
		"params": params,
	}
	for _, rule := range r.programs {
		out, _, err := rule.program.Eval(input)
		if err != nil {
			return true, rule.expr
		}
		if hit, ok := out.Value().(bool); ok && hit {
			return true, rule.expr
		}
	}
	return false, ""
}
