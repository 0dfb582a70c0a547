package execution

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// Project computes an output row out of every input row.
type Project struct {
	input       Operator
	expressions []Expression
}

func NewProject(input Operator, expressions []Expression) *Project {
	return &Project{
		input:       input,
		expressions: expressions,
	}
}

func (node *Project) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &projectCursor{
		chainedCursor: newChainedCursor("Project", qc, node.input.Cursor(qc, bindings)),
		expressions:   node.expressions,
	}
}

func (node *Project) InputOperators() []Operator {
	return []Operator{node.input}
}

func (node *Project) String() string {
	return fmt.Sprintf("Project(%s: %s)", expressionList(node.expressions), node.input)
}

func (node *Project) Visualize() *graph.Node {
	n := graph.NewNode("Project")
	n.AddField("expressions", expressionList(node.expressions))
	n.AddChild("input", node.input.Visualize())
	return n
}

func expressionList(expressions []Expression) string {
	parts := make([]string, len(expressions))
	for i := range expressions {
		parts[i] = expressions[i].String()
	}
	return strings.Join(parts, ", ")
}

type projectCursor struct {
	chainedCursor
	expressions []Expression
}

func (c *projectCursor) Next() (cursorql.Row, error) {
	if err := c.checkIdleOrActive("next"); err != nil {
		return nil, err
	}
	if !c.isActive() {
		return nil, ErrEndOfStream
	}
	if err := c.qc.CheckCancelation(); err != nil {
		return nil, c.fail(err)
	}
	row, err := c.input.Next()
	if err == ErrEndOfStream {
		if err := c.Close(); err != nil {
			return nil, err
		}
		return nil, ErrEndOfStream
	} else if err != nil {
		return nil, c.fail(errors.Wrap(err, "couldn't get input row"))
	}

	out := make(cursorql.Row, len(c.expressions))
	for i, expr := range c.expressions {
		value, err := expr.Evaluate(row, c.bindings)
		if err != nil {
			return nil, c.fail(errors.Wrapf(err, "couldn't evaluate expression %s", expr))
		}
		out[i] = value
	}
	c.trace(out)
	return out, nil
}
