package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// TableScan reads a table back through the storage adapter of the query.
type TableScan struct {
	table string
}

func NewTableScan(table string) *TableScan {
	return &TableScan{table: table}
}

func (node *TableScan) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &tableScanCursor{
		leafCursor: newLeafCursor("TableScan", qc, bindings),
		table:      node.table,
	}
}

func (node *TableScan) InputOperators() []Operator {
	return nil
}

func (node *TableScan) String() string {
	return fmt.Sprintf("TableScan(%s)", node.table)
}

func (node *TableScan) Visualize() *graph.Node {
	n := graph.NewNode("TableScan")
	n.AddField("table", node.table)
	return n
}

type tableScanCursor struct {
	leafCursor
	table string
	iter  RowIterator
}

func (c *tableScanCursor) Open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	scanner, ok := c.qc.Adapter.(RowScanner)
	if !ok {
		return errors.Wrapf(ErrUnsupportedOperation, "storage adapter %T can't scan tables", c.qc.Adapter)
	}
	iter, err := scanner.ScanRows(c.qc.Context, c.table)
	if err != nil {
		return errors.Wrapf(err, "couldn't scan table %s", c.table)
	}
	c.iter = iter
	c.state = Active
	return nil
}

func (c *tableScanCursor) Next() (cursorql.Row, error) {
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
	row, err := c.iter.Next()
	if err == ErrEndOfStream {
		if err := c.Close(); err != nil {
			return nil, err
		}
		return nil, ErrEndOfStream
	} else if err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "couldn't read row from table %s", c.table)
	}
	c.trace(row)
	return row, nil
}

func (c *tableScanCursor) Close() error {
	if err := c.checkIdleOrActive("close"); err != nil {
		return err
	}
	if c.state == Active {
		c.state = Idle
		iter := c.iter
		c.iter = nil
		if err := iter.Close(); err != nil {
			return errors.Wrapf(err, "couldn't close scan of table %s", c.table)
		}
	}
	return nil
}

func (c *tableScanCursor) Destroy() {
	if c.state == Destroyed {
		return
	}
	_ = c.Close()
	c.state = Destroyed
}
