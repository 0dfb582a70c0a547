package physical

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql/execution"
)

type ExpressionType string

const (
	ExpressionTypeConstant   ExpressionType = "constant"
	ExpressionTypeColumn     ExpressionType = "column"
	ExpressionTypeBoundField ExpressionType = "bound_field"
	ExpressionTypeBoundValue ExpressionType = "bound_value"
	ExpressionTypeEqual      ExpressionType = "equal"
	ExpressionTypeAdd        ExpressionType = "add"
)

type Expression struct {
	Type ExpressionType `yaml:"type"`

	// constant
	Value interface{} `yaml:"value"`
	// column, bound_field
	Index int `yaml:"index"`
	// bound_field, bound_value
	Position int `yaml:"position"`
	// equal, add
	Left  *Expression `yaml:"left"`
	Right *Expression `yaml:"right"`
}

func (expr *Expression) Materialize(ctx context.Context, env Environment) (execution.Expression, error) {
	switch expr.Type {
	case ExpressionTypeConstant:
		value, err := toValue(expr.Value)
		if err != nil {
			return nil, errors.Wrap(err, "invalid constant")
		}
		return execution.NewConstant(value), nil
	case ExpressionTypeColumn:
		if expr.Index < 0 {
			return nil, errors.Errorf("invalid column index %d", expr.Index)
		}
		return execution.NewColumn(expr.Index), nil
	case ExpressionTypeBoundField:
		if !env.inScope(expr.Position) {
			return nil, errors.Errorf("no row is bound at position %d here", expr.Position)
		}
		return execution.NewBoundField(expr.Position, expr.Index), nil
	case ExpressionTypeBoundValue:
		return execution.NewBoundValue(expr.Position), nil
	case ExpressionTypeEqual, ExpressionTypeAdd:
		if expr.Left == nil || expr.Right == nil {
			return nil, errors.Errorf("%s expression needs a left and a right operand", expr.Type)
		}
		left, err := expr.Left.Materialize(ctx, env)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't materialize left operand")
		}
		right, err := expr.Right.Materialize(ctx, env)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't materialize right operand")
		}
		if expr.Type == ExpressionTypeEqual {
			return execution.NewEqual(left, right), nil
		}
		return execution.NewAdd(left, right), nil
	}
	return nil, errors.Errorf("unknown expression type: %s", expr.Type)
}
