package execution

import (
	"fmt"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// ValuesScan yields a fixed list of rows.
type ValuesScan struct {
	rows []cursorql.Row
}

func NewValuesScan(rows []cursorql.Row) *ValuesScan {
	return &ValuesScan{rows: rows}
}

func (node *ValuesScan) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &valuesScanCursor{
		leafCursor: newLeafCursor("ValuesScan", qc, bindings),
		rows:       node.rows,
	}
}

func (node *ValuesScan) InputOperators() []Operator {
	return nil
}

func (node *ValuesScan) String() string {
	return fmt.Sprintf("ValuesScan(%d rows)", len(node.rows))
}

func (node *ValuesScan) Visualize() *graph.Node {
	n := graph.NewNode("ValuesScan")
	n.AddField("rows", fmt.Sprint(len(node.rows)))
	return n
}

type valuesScanCursor struct {
	leafCursor
	rows  []cursorql.Row
	index int
}

func (c *valuesScanCursor) Open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	c.index = 0
	c.state = Active
	return nil
}

func (c *valuesScanCursor) Next() (cursorql.Row, error) {
	if err := c.checkIdleOrActive("next"); err != nil {
		return nil, err
	}
	if !c.isActive() {
		return nil, ErrEndOfStream
	}
	if err := c.qc.CheckCancelation(); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.index >= len(c.rows) {
		_ = c.Close()
		return nil, ErrEndOfStream
	}
	row := c.rows[c.index]
	c.index++
	c.trace(row)
	return row, nil
}

// Jump positions the cursor at the first row not less than row on the given columns.
func (c *valuesScanCursor) Jump(row cursorql.Row, columns ColumnSelector) error {
	if err := c.checkIdleOrActive("jump"); err != nil {
		return err
	}
	c.index = len(c.rows)
	for i := range c.rows {
		if cursorql.CompareRows(c.rows[i], row, columns) >= 0 {
			c.index = i
			break
		}
	}
	c.state = Active
	return nil
}

func (c *valuesScanCursor) Close() error {
	if err := c.checkIdleOrActive("close"); err != nil {
		return err
	}
	c.state = Idle
	return nil
}

func (c *valuesScanCursor) Destroy() {
	c.state = Destroyed
}
