package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// Insert writes every row of its input into a table through the storage adapter.
// It doesn't produce rows, only a summary of how many rows were written.
type Insert struct {
	input Operator
	table string
}

func NewInsert(input Operator, table string) *Insert {
	return &Insert{
		input: input,
		table: table,
	}
}

func (node *Insert) InputOperators() []Operator {
	return []Operator{node.input}
}

func (node *Insert) String() string {
	return fmt.Sprintf("Insert(%s: %s)", node.table, node.input)
}

func (node *Insert) Visualize() *graph.Node {
	n := graph.NewNode("Insert")
	n.AddField("table", node.table)
	n.AddChild("input", node.input.Visualize())
	return n
}

// Run drains the input and writes its rows. Any failure aborts the whole insert,
// whatever was written before that is left for the storage layer to roll back.
func (node *Insert) Run(qc *QueryContext, bindings *cursorql.Bindings) (UpdateResult, error) {
	if qc.Adapter == nil {
		return UpdateResult{}, errors.New("no storage adapter to insert into")
	}
	log := qc.logger("Insert").WithField("table", node.table)

	input := node.input.Cursor(qc, NewSingletonBindingsCursor(bindings))
	defer input.Destroy()
	if err := OpenTopLevel(input); err != nil {
		return UpdateResult{}, errors.Wrap(err, "couldn't open input")
	}

	seen, modified := 0, 0
	for {
		row, err := input.Next()
		if err == ErrEndOfStream {
			break
		} else if err != nil {
			return UpdateResult{}, errors.Wrap(err, "couldn't get row to insert")
		}
		if err := qc.CheckCancelation(); err != nil {
			return UpdateResult{}, err
		}
		seen++
		if err := qc.Constraints.Check(node.table, row); err != nil {
			return UpdateResult{}, errors.Wrapf(err, "row %s violates constraints of %s", row, node.table)
		}
		if err := qc.Adapter.WriteRow(qc.Context, node.table, row); err != nil {
			return UpdateResult{}, errors.Wrapf(err, "couldn't write row %s into %s", row, node.table)
		}
		modified++
		if qc.traceEnabled() {
			log.Debugf("inserted %s", row)
		}
	}

	log.WithField("rows", modified).Info("insert done")
	return NewUpdateResult(seen, modified), nil
}
