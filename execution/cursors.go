package execution

import (
	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
)

// leafCursor is the base of cursors without input cursors. It follows the frames of the
// bindings cursor it was created with, the most recent one is used on Open.
type leafCursor struct {
	lifecycle
	qc             *QueryContext
	bindingsCursor BindingsCursor
	bindings       *cursorql.Bindings
}

func newLeafCursor(name string, qc *QueryContext, bindingsCursor BindingsCursor) leafCursor {
	return leafCursor{
		lifecycle:      lifecycle{name: name},
		qc:             qc,
		bindingsCursor: bindingsCursor,
	}
}

func (c *leafCursor) OpenBindings() error {
	c.bindings = nil
	return c.bindingsCursor.OpenBindings()
}

func (c *leafCursor) NextBindings() (*cursorql.Bindings, error) {
	bindings, err := c.bindingsCursor.NextBindings()
	if err != nil {
		return nil, err
	}
	c.bindings = bindings
	return bindings, nil
}

func (c *leafCursor) CloseBindings() error {
	return c.bindingsCursor.CloseBindings()
}

func (c *leafCursor) Jump(cursorql.Row, ColumnSelector) error {
	return errors.Wrap(ErrUnsupportedOperation, c.name)
}

func (c *leafCursor) trace(row cursorql.Row) {
	if c.qc.traceEnabled() {
		c.qc.logger(c.name).Debugf("yield %s", row)
	}
}

// chainedCursor is the base of cursors with a single input cursor.
// Bindings flow through the input, the most recent frame is kept for evaluation.
type chainedCursor struct {
	lifecycle
	qc       *QueryContext
	input    Cursor
	bindings *cursorql.Bindings
}

func newChainedCursor(name string, qc *QueryContext, input Cursor) chainedCursor {
	return chainedCursor{
		lifecycle: lifecycle{name: name},
		qc:        qc,
		input:     input,
	}
}

func (c *chainedCursor) OpenBindings() error {
	c.bindings = nil
	return c.input.OpenBindings()
}

func (c *chainedCursor) NextBindings() (*cursorql.Bindings, error) {
	bindings, err := c.input.NextBindings()
	if err != nil {
		return nil, err
	}
	c.bindings = bindings
	return bindings, nil
}

func (c *chainedCursor) CloseBindings() error {
	return c.input.CloseBindings()
}

func (c *chainedCursor) Jump(row cursorql.Row, columns ColumnSelector) error {
	if err := c.checkIdleOrActive("jump"); err != nil {
		return err
	}
	if err := c.input.Jump(row, columns); err != nil {
		return errors.Wrapf(err, "%s: couldn't jump input", c.name)
	}
	c.state = Active
	return nil
}

func (c *chainedCursor) open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	if err := c.input.Open(); err != nil {
		return errors.Wrapf(err, "%s: couldn't open input", c.name)
	}
	c.state = Active
	return nil
}

func (c *chainedCursor) Open() error {
	return c.open()
}

func (c *chainedCursor) Close() error {
	if err := c.checkIdleOrActive("close"); err != nil {
		return err
	}
	if c.state == Active {
		c.state = Idle
		if err := c.input.Close(); err != nil {
			return errors.Wrapf(err, "%s: couldn't close input", c.name)
		}
	}
	return nil
}

func (c *chainedCursor) Destroy() {
	if c.state == Destroyed {
		return
	}
	_ = c.Close()
	c.input.Destroy()
	c.state = Destroyed
}

// fail closes the cursor on the way out of a failed call and returns the original error.
func (c *chainedCursor) fail(err error) error {
	_ = c.Close()
	return err
}

func (c *chainedCursor) trace(row cursorql.Row) {
	if c.qc.traceEnabled() {
		c.qc.logger(c.name).Debugf("yield %s", row)
	}
}
