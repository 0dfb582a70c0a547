package execution

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// ErrEndOfStream is returned by Next and NextBindings when there is nothing more to read.
// It's the ordinary end of iteration, not a failure, and is never wrapped.
var ErrEndOfStream = errors.New("end of stream")

// Operator is an immutable description of a plan step. It keeps no per execution state,
// so a single operator tree may be used by any number of concurrent executions.
type Operator interface {
	graph.Visualizer
	fmt.Stringer

	// Cursor creates a cursor executing this operator. It doesn't start iteration.
	Cursor(qc *QueryContext, bindings BindingsCursor) Cursor
	InputOperators() []Operator
}

// BindingsCursor is a lazy sequence of bindings frames.
type BindingsCursor interface {
	OpenBindings() error
	NextBindings() (*cursorql.Bindings, error)
	CloseBindings() error
}

// ColumnSelector chooses the columns taken into account by Jump.
type ColumnSelector []int

// Cursor is a single execution of an operator. A cursor is used by one goroutine at a time.
//
// Next may be called on an Idle cursor, in which case it returns ErrEndOfStream without
// touching its inputs. A cursor returning ErrEndOfStream closes itself.
type Cursor interface {
	BindingsCursor

	Open() error
	Next() (cursorql.Row, error)
	Jump(row cursorql.Row, columns ColumnSelector) error
	Close() error
	Destroy()
	State() CursorState
}

// UpdatePlannable is a plan step which modifies data instead of producing rows.
type UpdatePlannable interface {
	graph.Visualizer
	fmt.Stringer

	Run(qc *QueryContext, bindings *cursorql.Bindings) (UpdateResult, error)
	InputOperators() []Operator
}

type UpdateResult struct {
	rowsSeen, rowsModified int
}

func NewUpdateResult(rowsSeen, rowsModified int) UpdateResult {
	return UpdateResult{
		rowsSeen:     rowsSeen,
		rowsModified: rowsModified,
	}
}

func (r UpdateResult) RowsSeen() int {
	return r.rowsSeen
}

func (r UpdateResult) RowsModified() int {
	return r.rowsModified
}

func (r UpdateResult) String() string {
	return fmt.Sprintf("%d rows seen, %d rows modified", r.rowsSeen, r.rowsModified)
}

// StorageAdapter durably writes rows. It may enforce uniqueness and report typed failures.
type StorageAdapter interface {
	WriteRow(ctx context.Context, table string, row cursorql.Row) error
}

// RowScanner is implemented by storage adapters which can read tables back.
type RowScanner interface {
	ScanRows(ctx context.Context, table string) (RowIterator, error)
}

type RowIterator interface {
	Next() (cursorql.Row, error)
	Close() error
}

// ConstraintChecker validates a row before it's written.
type ConstraintChecker interface {
	Check(table string, row cursorql.Row) error
}

// Describe renders a textual description of the operator and its inputs.
func Describe(v graph.Visualizer) string {
	return graph.Describe(v.Visualize())
}
