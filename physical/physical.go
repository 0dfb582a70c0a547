package physical

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/execution"
)

type NodeType string

const (
	NodeTypeValues  NodeType = "values"
	NodeTypeJSON    NodeType = "json"
	NodeTypeTable   NodeType = "table"
	NodeTypeProject NodeType = "project"
	NodeTypeFilter  NodeType = "filter"
	NodeTypeLimit   NodeType = "limit"
	NodeTypeMap     NodeType = "map"
	NodeTypeInsert  NodeType = "insert"
)

// Environment is what a node is materialized against.
type Environment struct {
	// Pipeline is used by maps which don't choose their loop strategy.
	Pipeline bool
	// Depth is the depth of the bindings frames the node will receive.
	Depth int
	// Scope lists the binding positions holding rows of enclosing maps.
	Scope []int
}

func (env Environment) withBoundRow(position, depth int) Environment {
	newEnv := env
	newEnv.Depth = depth
	newEnv.Scope = append(append([]int{}, env.Scope...), position)
	return newEnv
}

func (env Environment) inScope(position int) bool {
	for _, p := range env.Scope {
		if p == position {
			return true
		}
	}
	return false
}

// Node is a plan step as described in a plan file. Only the fields of its type are used.
type Node struct {
	Type NodeType `yaml:"type"`

	// values
	Rows [][]interface{} `yaml:"rows"`

	// json, table, insert
	Path    string   `yaml:"path"`
	Columns []string `yaml:"columns"`
	Table   string   `yaml:"table"`

	// project, filter, limit, insert
	Input       *Node        `yaml:"input"`
	Expressions []Expression `yaml:"expressions"`
	Predicate   *Expression  `yaml:"predicate"`
	Skip        *Parameter   `yaml:"skip"`
	Limit       *Parameter   `yaml:"limit"`

	// map
	Outer    *Node `yaml:"outer"`
	Inner    *Node `yaml:"inner"`
	Position int   `yaml:"position"`
	Pipeline *bool `yaml:"pipeline"`
}

// Parameter is a skip or limit count, either given directly or read from a bound parameter.
type Parameter struct {
	Value *int `yaml:"value"`
	Param *int `yaml:"param"`
}

func (p *Parameter) materialize(unset execution.LimitParameter) (execution.LimitParameter, error) {
	switch {
	case p == nil:
		return unset, nil
	case p.Value != nil && p.Param != nil:
		return execution.LimitParameter{}, errors.New("parameter must have either a value or a param, not both")
	case p.Value != nil:
		return execution.FixedLimit(*p.Value), nil
	case p.Param != nil:
		return execution.BoundLimit(*p.Param), nil
	}
	return unset, nil
}

func (node *Node) IsUpdate() bool {
	return node.Type == NodeTypeInsert
}

func (node *Node) Materialize(ctx context.Context, env Environment) (execution.Operator, error) {
	switch node.Type {
	case NodeTypeValues:
		rows := make([]cursorql.Row, len(node.Rows))
		for i := range node.Rows {
			row, err := toRow(node.Rows[i])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid row with index %d", i)
			}
			rows[i] = row
		}
		return execution.NewValuesScan(rows), nil

	case NodeTypeJSON:
		if node.Path == "" {
			return nil, errors.New("json node needs a path")
		}
		return execution.NewJSONScan(node.Path, node.Columns), nil

	case NodeTypeTable:
		if node.Table == "" {
			return nil, errors.New("table node needs a table")
		}
		return execution.NewTableScan(node.Table), nil

	case NodeTypeProject:
		input, err := node.materializeInput(ctx, env)
		if err != nil {
			return nil, err
		}
		exprs := make([]execution.Expression, len(node.Expressions))
		for i := range node.Expressions {
			exprs[i], err = node.Expressions[i].Materialize(ctx, env)
			if err != nil {
				return nil, errors.Wrapf(err, "couldn't materialize expression with index %d", i)
			}
		}
		return execution.NewProject(input, exprs), nil

	case NodeTypeFilter:
		input, err := node.materializeInput(ctx, env)
		if err != nil {
			return nil, err
		}
		if node.Predicate == nil {
			return nil, errors.New("filter node needs a predicate")
		}
		predicate, err := node.Predicate.Materialize(ctx, env)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't materialize predicate")
		}
		return execution.NewFilter(input, predicate), nil

	case NodeTypeLimit:
		input, err := node.materializeInput(ctx, env)
		if err != nil {
			return nil, err
		}
		skip, err := node.Skip.materialize(execution.FixedLimit(0))
		if err != nil {
			return nil, errors.Wrap(err, "invalid skip")
		}
		limit, err := node.Limit.materialize(execution.NoLimit())
		if err != nil {
			return nil, errors.Wrap(err, "invalid limit")
		}
		return execution.NewLimit(input, skip, limit), nil

	case NodeTypeMap:
		if node.Outer == nil || node.Inner == nil {
			return nil, errors.New("map node needs an outer and an inner node")
		}
		if env.inScope(node.Position) {
			return nil, errors.Errorf("position %d is already bound by an enclosing map", node.Position)
		}
		pipeline := env.Pipeline
		if node.Pipeline != nil {
			pipeline = *node.Pipeline
		}
		outer, err := node.Outer.Materialize(ctx, env)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't materialize outer node")
		}
		depth := env.Depth + 1
		innerDepth := env.Depth
		if pipeline {
			innerDepth = depth
		}
		inner, err := node.Inner.Materialize(ctx, env.withBoundRow(node.Position, innerDepth))
		if err != nil {
			return nil, errors.Wrap(err, "couldn't materialize inner node")
		}
		op, err := execution.NewMapNestedLoops(outer, inner, node.Position, depth, pipeline)
		if err != nil {
			return nil, err
		}
		return op, nil

	case NodeTypeInsert:
		return nil, errors.New("insert must be the root of the plan")
	}
	return nil, errors.Errorf("unknown node type: %s", node.Type)
}

func (node *Node) materializeInput(ctx context.Context, env Environment) (execution.Operator, error) {
	if node.Input == nil {
		return nil, errors.Errorf("%s node needs an input", node.Type)
	}
	input, err := node.Input.Materialize(ctx, env)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize input node")
	}
	return input, nil
}

func (node *Node) MaterializeUpdate(ctx context.Context, env Environment) (execution.UpdatePlannable, error) {
	if node.Type != NodeTypeInsert {
		return nil, errors.Errorf("%s node doesn't modify data", node.Type)
	}
	if node.Table == "" {
		return nil, errors.New("insert node needs a table")
	}
	input, err := node.materializeInput(ctx, env)
	if err != nil {
		return nil, err
	}
	return execution.NewInsert(input, node.Table), nil
}

func toRow(values []interface{}) (cursorql.Row, error) {
	out := make(cursorql.Row, len(values))
	for i := range values {
		v, err := toValue(values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value in column %d", i)
		}
		out[i] = v
	}
	return out, nil
}

func toValue(value interface{}) (cursorql.Value, error) {
	switch value := value.(type) {
	case nil, bool, int, int64, float64, string:
		return cursorql.NormalizeType(value), nil
	case []interface{}:
		row, err := toRow(value)
		if err != nil {
			return nil, err
		}
		return cursorql.MakeTuple(row), nil
	}
	return nil, errors.Errorf("unsupported value %s of type %T", fmt.Sprint(value), value)
}
