package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// Filter passes the input rows for which the predicate is true.
type Filter struct {
	input     Operator
	predicate Expression
}

func NewFilter(input Operator, predicate Expression) *Filter {
	return &Filter{
		input:     input,
		predicate: predicate,
	}
}

func (node *Filter) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &filterCursor{
		chainedCursor: newChainedCursor("Filter", qc, node.input.Cursor(qc, bindings)),
		predicate:     node.predicate,
	}
}

func (node *Filter) InputOperators() []Operator {
	return []Operator{node.input}
}

func (node *Filter) String() string {
	return fmt.Sprintf("Filter(%s: %s)", node.predicate, node.input)
}

func (node *Filter) Visualize() *graph.Node {
	n := graph.NewNode("Filter")
	n.AddField("predicate", node.predicate.String())
	n.AddChild("input", node.input.Visualize())
	return n
}

type filterCursor struct {
	chainedCursor
	predicate Expression
}

func (c *filterCursor) Next() (cursorql.Row, error) {
	if err := c.checkIdleOrActive("next"); err != nil {
		return nil, err
	}
	if !c.isActive() {
		return nil, ErrEndOfStream
	}
	if err := c.qc.CheckCancelation(); err != nil {
		return nil, c.fail(err)
	}
	for {
		row, err := c.input.Next()
		if err == ErrEndOfStream {
			if err := c.Close(); err != nil {
				return nil, err
			}
			return nil, ErrEndOfStream
		} else if err != nil {
			return nil, c.fail(errors.Wrap(err, "couldn't get input row"))
		}

		value, err := c.predicate.Evaluate(row, c.bindings)
		if err != nil {
			return nil, c.fail(errors.Wrap(err, "couldn't evaluate predicate"))
		}
		if b, ok := value.(cursorql.Bool); ok && bool(b) {
			c.trace(row)
			return row, nil
		}
	}
}
