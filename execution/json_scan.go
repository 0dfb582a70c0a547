package execution

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// JSONScan reads rows from a file with one JSON document per line.
// Array documents are taken positionally, object documents are projected onto columns.
type JSONScan struct {
	path    string
	columns []string
}

func NewJSONScan(path string, columns []string) *JSONScan {
	return &JSONScan{
		path:    path,
		columns: columns,
	}
}

func (node *JSONScan) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &jsonScanCursor{
		leafCursor: newLeafCursor("JSONScan", qc, bindings),
		path:       node.path,
		columns:    node.columns,
	}
}

func (node *JSONScan) InputOperators() []Operator {
	return nil
}

func (node *JSONScan) String() string {
	return fmt.Sprintf("JSONScan(%s)", node.path)
}

func (node *JSONScan) Visualize() *graph.Node {
	n := graph.NewNode("JSONScan")
	n.AddField("path", node.path)
	if len(node.columns) > 0 {
		n.AddField("columns", strings.Join(node.columns, ", "))
	}
	return n
}

type jsonScanCursor struct {
	leafCursor
	path    string
	columns []string

	file    *os.File
	scanner *bufio.Scanner
	parser  fastjson.Parser
	line    int
}

func (c *jsonScanCursor) Open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	f, err := os.Open(c.path)
	if err != nil {
		return errors.Wrap(err, "couldn't open file")
	}
	c.file = f
	c.scanner = bufio.NewScanner(f)
	c.scanner.Buffer(nil, 1024*1024)
	c.line = 0
	c.state = Active
	return nil
}

func (c *jsonScanCursor) Next() (cursorql.Row, error) {
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
	for c.scanner.Scan() {
		c.line++
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		v, err := c.parser.ParseBytes(line)
		if err != nil {
			_ = c.Close()
			return nil, errors.Wrapf(err, "couldn't parse json on line %d", c.line)
		}
		row, err := cursorql.ParseJSONRow(v, c.columns)
		if err != nil {
			_ = c.Close()
			return nil, errors.Wrapf(err, "couldn't convert json on line %d", c.line)
		}
		c.trace(row)
		return row, nil
	}
	if err := c.scanner.Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "couldn't read file")
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	return nil, ErrEndOfStream
}

func (c *jsonScanCursor) Close() error {
	if err := c.checkIdleOrActive("close"); err != nil {
		return err
	}
	if c.state == Active {
		c.state = Idle
		c.scanner = nil
		if err := c.file.Close(); err != nil {
			return errors.Wrap(err, "couldn't close file")
		}
	}
	return nil
}

func (c *jsonScanCursor) Destroy() {
	if c.state == Destroyed {
		return
	}
	_ = c.Close()
	c.state = Destroyed
}
