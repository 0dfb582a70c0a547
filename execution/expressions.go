package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
)

// Expression computes a value from the current row and the bindings in scope.
type Expression interface {
	fmt.Stringer
	Evaluate(row cursorql.Row, bindings *cursorql.Bindings) (cursorql.Value, error)
}

type Constant struct {
	value cursorql.Value
}

func NewConstant(value cursorql.Value) *Constant {
	return &Constant{value: value}
}

func (c *Constant) Evaluate(cursorql.Row, *cursorql.Bindings) (cursorql.Value, error) {
	return c.value, nil
}

func (c *Constant) String() string {
	return c.value.String()
}

// Column reads a column of the current row.
type Column struct {
	index int
}

func NewColumn(index int) *Column {
	return &Column{index: index}
}

func (c *Column) Evaluate(row cursorql.Row, _ *cursorql.Bindings) (cursorql.Value, error) {
	if c.index < 0 || c.index >= len(row) {
		return nil, errors.Errorf("column %d out of range for row of %d columns", c.index, len(row))
	}
	return row[c.index], nil
}

func (c *Column) String() string {
	return fmt.Sprintf("$%d", c.index)
}

// BoundField reads a column of the row bound at position, which is how correlated
// inner plans see the current outer row.
type BoundField struct {
	position, column int
}

func NewBoundField(position, column int) *BoundField {
	return &BoundField{
		position: position,
		column:   column,
	}
}

func (f *BoundField) Evaluate(_ cursorql.Row, bindings *cursorql.Bindings) (cursorql.Value, error) {
	if bindings == nil {
		return nil, errors.Errorf("no bindings available for %s", f)
	}
	row, err := bindings.Row(f.position)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't get bound row for %s", f)
	}
	if f.column < 0 || f.column >= len(row) {
		return nil, errors.Errorf("column %d out of range for bound row of %d columns", f.column, len(row))
	}
	return row[f.column], nil
}

func (f *BoundField) String() string {
	return fmt.Sprintf("bound[%d].$%d", f.position, f.column)
}

// BoundValue reads a parameter value bound at position. Unbound positions are null.
type BoundValue struct {
	position int
}

func NewBoundValue(position int) *BoundValue {
	return &BoundValue{position: position}
}

func (v *BoundValue) Evaluate(_ cursorql.Row, bindings *cursorql.Bindings) (cursorql.Value, error) {
	if bindings == nil {
		return cursorql.MakeNull(), nil
	}
	return bindings.Value(v.position), nil
}

func (v *BoundValue) String() string {
	return fmt.Sprintf("param[%d]", v.position)
}

type Equal struct {
	left, right Expression
}

func NewEqual(left, right Expression) *Equal {
	return &Equal{
		left:  left,
		right: right,
	}
}

func (e *Equal) Evaluate(row cursorql.Row, bindings *cursorql.Bindings) (cursorql.Value, error) {
	left, err := e.left.Evaluate(row, bindings)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't evaluate left operand")
	}
	right, err := e.right.Evaluate(row, bindings)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't evaluate right operand")
	}
	if _, ok := left.(cursorql.Null); ok {
		return cursorql.MakeNull(), nil
	}
	if _, ok := right.(cursorql.Null); ok {
		return cursorql.MakeNull(), nil
	}
	return cursorql.MakeBool(cursorql.Compare(left, right) == 0), nil
}

func (e *Equal) String() string {
	return fmt.Sprintf("%s = %s", e.left, e.right)
}

type Add struct {
	left, right Expression
}

func NewAdd(left, right Expression) *Add {
	return &Add{
		left:  left,
		right: right,
	}
}

func (e *Add) Evaluate(row cursorql.Row, bindings *cursorql.Bindings) (cursorql.Value, error) {
	left, err := e.left.Evaluate(row, bindings)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't evaluate left operand")
	}
	right, err := e.right.Evaluate(row, bindings)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't evaluate right operand")
	}
	switch left := left.(type) {
	case cursorql.Null:
		return cursorql.MakeNull(), nil
	case cursorql.Int:
		switch right := right.(type) {
		case cursorql.Null:
			return cursorql.MakeNull(), nil
		case cursorql.Int:
			return left + right, nil
		case cursorql.Float:
			return cursorql.MakeFloat(float64(left) + float64(right)), nil
		}
	case cursorql.Float:
		switch right := right.(type) {
		case cursorql.Null:
			return cursorql.MakeNull(), nil
		case cursorql.Int:
			return cursorql.MakeFloat(float64(left) + float64(right)), nil
		case cursorql.Float:
			return left + right, nil
		}
	case cursorql.String:
		if right, ok := right.(cursorql.String); ok {
			return left + right, nil
		}
	}
	return nil, errors.Errorf("can't add %s and %s", left, right)
}

func (e *Add) String() string {
	return fmt.Sprintf("%s + %s", e.left, e.right)
}
