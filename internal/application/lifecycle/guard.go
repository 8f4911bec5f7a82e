package lifecycle

import (
	"fmt"
	"strconv"

	"github.com/Knetic/govaluate"

	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/ticket"
)

// GuardSet holds optional per-operation guard expressions evaluated
// against submitted form fields, e.g. "quantity <= 1000" on shop
// creation. A failing guard is a validation failure, not an error.
type GuardSet struct {
	exprs map[action.Type]*govaluate.EvaluableExpression
}

// NewGuardSet compiles the configured expressions. Unparseable
// expressions fail startup rather than silently passing everything.
func NewGuardSet(rules map[action.Type]string) (*GuardSet, error) {
	exprs := make(map[action.Type]*govaluate.EvaluableExpression, len(rules))
	for op, rule := range rules {
		if rule == "" {
			continue
		}
		expr, err := govaluate.NewEvaluableExpression(rule)
		if err != nil {
			return nil, fmt.Errorf("guard for %s: %w", op, err)
		}
		exprs[op] = expr
	}
	return &GuardSet{exprs: exprs}, nil
}

// Check evaluates the guard for op, if any. Numeric-looking field values
// are evaluated as numbers so expressions can compare them.
func (g *GuardSet) Check(op action.Type, fields map[string]string) error {
	if g == nil {
		return nil
	}
	expr, ok := g.exprs[op]
	if !ok {
		return nil
	}
	params := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params[k] = f
		} else {
			params[k] = v
		}
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return fmt.Errorf("%w: %s", ticket.ErrValidationFailed, err)
	}
	pass, ok := result.(bool)
	if !ok {
		return fmt.Errorf("%w: guard for %s did not evaluate to boolean", ticket.ErrValidationFailed, op)
	}
	if !pass {
		return fmt.Errorf("%w: submission rejected by guard", ticket.ErrValidationFailed)
	}
	return nil
}
