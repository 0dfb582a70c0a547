package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// MapNestedLoops binds every row of the outer input at bindingPosition and runs the
// inner input for it. The output is the concatenation of the inner rowsets.
//
// Without pipelining, a single inner cursor is reopened for every outer row against
// the same rebound frame. With pipelining, every outer row becomes its own child frame
// at depth, and the inner cursor is driven by that stream of frames.
type MapNestedLoops struct {
	outer, inner           Operator
	bindingPosition, depth int
	pipeline               bool
}

func NewMapNestedLoops(outer, inner Operator, bindingPosition, depth int, pipeline bool) (*MapNestedLoops, error) {
	if outer == nil || inner == nil {
		return nil, errors.New("nested loops need both an outer and an inner input")
	}
	if bindingPosition < 0 {
		return nil, errors.Errorf("binding position must not be negative, got %d", bindingPosition)
	}
	if depth <= 0 {
		return nil, errors.Errorf("depth must be positive, got %d", depth)
	}
	return &MapNestedLoops{
		outer:           outer,
		inner:           inner,
		bindingPosition: bindingPosition,
		depth:           depth,
		pipeline:        pipeline,
	}, nil
}

func (node *MapNestedLoops) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	if !node.pipeline {
		return newRebindCursor(qc, node, bindings)
	}
	outerCursor := node.outer.Cursor(qc, bindings)
	toBindings := newRowToBindingsCursor(outerCursor, node.bindingPosition, node.depth)
	innerCursor := node.inner.Cursor(qc, toBindings)
	collapse := newCollapseBindingsCursor(qc, innerCursor, node.depth)
	collapse.outer = toBindings
	return collapse
}

func (node *MapNestedLoops) InputOperators() []Operator {
	return []Operator{node.outer, node.inner}
}

func (node *MapNestedLoops) String() string {
	return fmt.Sprintf("Map_NestedLoops(%s, %s)", node.outer, node.inner)
}

func (node *MapNestedLoops) Visualize() *graph.Node {
	n := graph.NewNode("Map_NestedLoops")
	n.AddField("position", fmt.Sprint(node.bindingPosition))
	n.AddField("depth", fmt.Sprint(node.depth))
	n.AddField("pipeline", fmt.Sprint(node.pipeline))
	n.AddChild("outer", node.outer.Visualize())
	n.AddChild("inner", node.inner.Visualize())
	return n
}

// rowToBindingsCursor turns the outer rows into frames for the inner input.
// A parent frame at depth-1 starts a new outer loop, which then yields one child frame per outer row.
// Shallower frames end groups further up and are passed through untouched.
type rowToBindingsCursor struct {
	input           Cursor
	bindingPosition int
	depth           int
	baseBindings    *cursorql.Bindings
}

func newRowToBindingsCursor(input Cursor, bindingPosition, depth int) *rowToBindingsCursor {
	return &rowToBindingsCursor{
		input:           input,
		bindingPosition: bindingPosition,
		depth:           depth,
	}
}

func (bc *rowToBindingsCursor) OpenBindings() error {
	if err := bc.closeInput(); err != nil {
		return err
	}
	return bc.input.OpenBindings()
}

func (bc *rowToBindingsCursor) NextBindings() (*cursorql.Bindings, error) {
	if bc.baseBindings != nil {
		row, err := bc.input.Next()
		if err == nil {
			bindings := bc.baseBindings.Derive()
			if bindings.Depth() != bc.depth {
				return nil, errors.Wrapf(ErrBindingsTooDeep, "derived bindings at depth %d, expected %d", bindings.Depth(), bc.depth)
			}
			bindings.SetRow(bc.bindingPosition, row)
			return bindings, nil
		} else if err != ErrEndOfStream {
			return nil, errors.Wrap(err, "couldn't get outer row")
		}
		if err := bc.closeInput(); err != nil {
			return nil, err
		}
	}
	bindings, err := bc.input.NextBindings()
	if err != nil {
		return nil, err
	}
	switch {
	case bindings.Depth() == bc.depth-1:
		bc.baseBindings = bindings
		if err := bc.input.Open(); err != nil {
			bc.baseBindings = nil
			return nil, errors.Wrap(err, "couldn't open outer input")
		}
	case bindings.Depth() > bc.depth-1:
		return nil, errors.Wrapf(ErrBindingsTooDeep, "outer input got bindings at depth %d, expected at most %d", bindings.Depth(), bc.depth-1)
	}
	return bindings, nil
}

func (bc *rowToBindingsCursor) CloseBindings() error {
	if err := bc.closeInput(); err != nil {
		return err
	}
	return bc.input.CloseBindings()
}

// closeInput closes the outer input if it is still open for the current base frame.
func (bc *rowToBindingsCursor) closeInput() error {
	if bc.baseBindings == nil {
		return nil
	}
	bc.baseBindings = nil
	if err := bc.input.Close(); err != nil {
		return errors.Wrap(err, "couldn't close outer input")
	}
	return nil
}

func (bc *rowToBindingsCursor) destroy() {
	bc.baseBindings = nil
	bc.input.Destroy()
}

// collapseBindingsCursor removes the binding level introduced by rowToBindingsCursor.
// The rowsets of all the frames at depth are read as a single rowset, which ends
// when a shallower frame shows up. That frame is then returned by the next call to NextBindings.
type collapseBindingsCursor struct {
	lifecycle
	qc        *QueryContext
	input     Cursor
	outer     *rowToBindingsCursor
	depth     int
	pending   *cursorql.Bindings
	inputOpen bool
}

func newCollapseBindingsCursor(qc *QueryContext, input Cursor, depth int) *collapseBindingsCursor {
	return &collapseBindingsCursor{
		lifecycle: lifecycle{name: "Map_NestedLoops"},
		qc:        qc,
		input:     input,
		depth:     depth,
	}
}

func (c *collapseBindingsCursor) Open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	c.state = Active
	c.inputOpen = false
	return nil
}

func (c *collapseBindingsCursor) Next() (cursorql.Row, error) {
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
		if c.inputOpen {
			row, err := c.input.Next()
			if err == nil {
				if c.qc.traceEnabled() {
					c.qc.logger(c.name).Debugf("yield %s", row)
				}
				return row, nil
			} else if err != ErrEndOfStream {
				return nil, c.fail(errors.Wrap(err, "couldn't get inner row"))
			}
			c.inputOpen = false
			if err := c.input.Close(); err != nil {
				return nil, c.fail(errors.Wrap(err, "couldn't close inner input"))
			}
		}

		bindings, err := c.input.NextBindings()
		if err == ErrEndOfStream {
			c.state = Idle
			return nil, ErrEndOfStream
		} else if err != nil {
			return nil, c.fail(errors.Wrap(err, "couldn't get bindings"))
		}

		switch {
		case bindings.Depth() == c.depth:
			if err := c.input.Open(); err != nil {
				return nil, c.fail(errors.Wrap(err, "couldn't open inner input"))
			}
			c.inputOpen = true
		case bindings.Depth() < c.depth:
			// End of this rowset, the frame belongs to the next one.
			c.pending = bindings
			c.state = Idle
			return nil, ErrEndOfStream
		default:
			return nil, c.fail(errors.Wrapf(ErrBindingsTooDeep, "got bindings at depth %d in nested loops at depth %d", bindings.Depth(), c.depth))
		}
	}
}

func (c *collapseBindingsCursor) Jump(cursorql.Row, ColumnSelector) error {
	return errors.Wrap(ErrUnsupportedOperation, "pipelined Map_NestedLoops can't jump")
}

func (c *collapseBindingsCursor) Close() error {
	if err := c.checkIdleOrActive("close"); err != nil {
		return err
	}
	if c.state != Active {
		return nil
	}
	c.state = Idle
	if c.inputOpen {
		c.inputOpen = false
		if err := c.input.Close(); err != nil {
			return errors.Wrap(err, "couldn't close inner input")
		}
	}
	// Advance the bindings to where the rowset would have ended.
	for c.pending == nil {
		bindings, err := c.input.NextBindings()
		if err == ErrEndOfStream {
			break
		} else if err != nil {
			return errors.Wrap(err, "couldn't skip bindings")
		}
		switch {
		case bindings.Depth() < c.depth:
			c.pending = bindings
		case bindings.Depth() > c.depth:
			return errors.Wrapf(ErrBindingsTooDeep, "got bindings at depth %d in nested loops at depth %d", bindings.Depth(), c.depth)
		}
	}
	return nil
}

// fail releases the inner input and the outer one feeding it without touching the bindings stream any further.
func (c *collapseBindingsCursor) fail(err error) error {
	if c.inputOpen {
		c.inputOpen = false
		_ = c.input.Close()
	}
	if c.outer != nil {
		_ = c.outer.closeInput()
	}
	if c.state == Active {
		c.state = Idle
	}
	return err
}

func (c *collapseBindingsCursor) Destroy() {
	if c.state == Destroyed {
		return
	}
	_ = c.Close()
	c.input.Destroy()
	if c.outer != nil {
		c.outer.destroy()
	}
	c.state = Destroyed
}

func (c *collapseBindingsCursor) OpenBindings() error {
	c.pending = nil
	return c.input.OpenBindings()
}

func (c *collapseBindingsCursor) NextBindings() (*cursorql.Bindings, error) {
	if c.pending != nil {
		bindings := c.pending
		c.pending = nil
		return bindings, nil
	}
	for {
		// Skip over the frames of this level, they're internal to the loop.
		bindings, err := c.input.NextBindings()
		if err != nil {
			return nil, err
		}
		if bindings.Depth() < c.depth {
			return bindings, nil
		}
		if bindings.Depth() > c.depth {
			return nil, errors.Wrapf(ErrBindingsTooDeep, "got bindings at depth %d in nested loops at depth %d", bindings.Depth(), c.depth)
		}
	}
}

func (c *collapseBindingsCursor) CloseBindings() error {
	return c.input.CloseBindings()
}

// rebindCursor runs the nested loop by rebinding a single frame.
// At most one outer row is held at a time, the inner cursor is restarted for each of them.
type rebindCursor struct {
	lifecycle
	qc              *QueryContext
	bindingPosition int

	outerInput    Cursor
	innerInput    Cursor
	innerBindings *SingletonBindingsCursor

	outerBindings *cursorql.Bindings
	rebound       *cursorql.Bindings
	outerRow      *cursorql.RowCell
}

func newRebindCursor(qc *QueryContext, node *MapNestedLoops, bindings BindingsCursor) *rebindCursor {
	innerBindings := NewSingletonBindingsCursor(nil)
	return &rebindCursor{
		lifecycle:       lifecycle{name: "Map_NestedLoops"},
		qc:              qc,
		bindingPosition: node.bindingPosition,
		outerInput:      node.outer.Cursor(qc, bindings),
		innerInput:      node.inner.Cursor(qc, innerBindings),
		innerBindings:   innerBindings,
		outerRow:        &cursorql.RowCell{},
	}
}

func (c *rebindCursor) OpenBindings() error {
	return c.outerInput.OpenBindings()
}

func (c *rebindCursor) NextBindings() (*cursorql.Bindings, error) {
	bindings, err := c.outerInput.NextBindings()
	if err != nil {
		return nil, err
	}
	c.outerBindings = bindings
	c.rebound, c.outerRow = bindings.Rebind(c.bindingPosition)
	return bindings, nil
}

func (c *rebindCursor) CloseBindings() error {
	return c.outerInput.CloseBindings()
}

func (c *rebindCursor) Open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	if c.rebound == nil {
		return errors.Wrap(ErrCursorLifecycle, "Map_NestedLoops: open before any bindings")
	}
	if err := c.outerInput.Open(); err != nil {
		return errors.Wrap(err, "couldn't open outer input")
	}
	c.state = Active
	return nil
}

func (c *rebindCursor) Next() (cursorql.Row, error) {
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
		if c.outerRow.Holding() {
			row, err := c.innerInput.Next()
			if err == nil {
				if c.qc.traceEnabled() {
					c.qc.logger(c.name).Debugf("yield %s", row)
				}
				return row, nil
			} else if err != ErrEndOfStream {
				return nil, c.fail(errors.Wrap(err, "couldn't get inner row"))
			}
			c.outerRow.Release()
		}

		row, err := c.outerInput.Next()
		if err == ErrEndOfStream {
			if err := c.Close(); err != nil {
				return nil, err
			}
			return nil, ErrEndOfStream
		} else if err != nil {
			return nil, c.fail(errors.Wrap(err, "couldn't get outer row"))
		}
		c.outerRow.Set(row)
		if c.qc.traceEnabled() {
			c.qc.logger(c.name).Debug("restart inner loop using current outer row")
		}
		if err := c.startNewInnerLoop(); err != nil {
			return nil, c.fail(err)
		}
	}
}

// startNewInnerLoop restarts the inner cursor for the row just stored in the cell.
// The inner cursor is closed first, so it's reopened through the regular lifecycle.
func (c *rebindCursor) startNewInnerLoop() error {
	if err := c.innerInput.Close(); err != nil {
		return errors.Wrap(err, "couldn't close inner input")
	}
	c.innerBindings.Reset(c.rebound)
	if err := OpenTopLevel(c.innerInput); err != nil {
		return errors.Wrap(err, "couldn't reopen inner input")
	}
	return nil
}

func (c *rebindCursor) Jump(cursorql.Row, ColumnSelector) error {
	return errors.Wrap(ErrUnsupportedOperation, "Map_NestedLoops can't jump")
}

func (c *rebindCursor) Close() error {
	if err := c.checkIdleOrActive("close"); err != nil {
		return err
	}
	if c.state != Active {
		return nil
	}
	c.state = Idle
	innerErr := c.innerInput.Close()
	c.outerRow.Release()
	if err := c.outerInput.Close(); err != nil {
		return errors.Wrap(err, "couldn't close outer input")
	}
	if innerErr != nil {
		return errors.Wrap(innerErr, "couldn't close inner input")
	}
	return nil
}

func (c *rebindCursor) fail(err error) error {
	_ = c.Close()
	return err
}

func (c *rebindCursor) Destroy() {
	if c.state == Destroyed {
		return
	}
	_ = c.Close()
	c.innerInput.Destroy()
	c.outerInput.Destroy()
	c.state = Destroyed
}
