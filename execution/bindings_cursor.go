package execution

import (
	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
)

// SingletonBindingsCursor yields a single frame.
type SingletonBindingsCursor struct {
	bindings *cursorql.Bindings
	done     bool
}

func NewSingletonBindingsCursor(bindings *cursorql.Bindings) *SingletonBindingsCursor {
	return &SingletonBindingsCursor{
		bindings: bindings,
		done:     true,
	}
}

// Reset replaces the frame. The cursor has to be reopened afterwards.
func (bc *SingletonBindingsCursor) Reset(bindings *cursorql.Bindings) {
	bc.bindings = bindings
	bc.done = true
}

func (bc *SingletonBindingsCursor) OpenBindings() error {
	bc.done = false
	return nil
}

func (bc *SingletonBindingsCursor) NextBindings() (*cursorql.Bindings, error) {
	if bc.done || bc.bindings == nil {
		return nil, ErrEndOfStream
	}
	bc.done = true
	return bc.bindings, nil
}

func (bc *SingletonBindingsCursor) CloseBindings() error {
	bc.done = true
	return nil
}

// MultipleBindingsCursor yields the given frames in order.
type MultipleBindingsCursor struct {
	bindings []*cursorql.Bindings
	index    int
}

func NewMultipleBindingsCursor(bindings ...*cursorql.Bindings) *MultipleBindingsCursor {
	return &MultipleBindingsCursor{
		bindings: bindings,
		index:    len(bindings),
	}
}

func (bc *MultipleBindingsCursor) OpenBindings() error {
	bc.index = 0
	return nil
}

func (bc *MultipleBindingsCursor) NextBindings() (*cursorql.Bindings, error) {
	if bc.index >= len(bc.bindings) {
		return nil, ErrEndOfStream
	}
	out := bc.bindings[bc.index]
	bc.index++
	return out, nil
}

func (bc *MultipleBindingsCursor) CloseBindings() error {
	bc.index = len(bc.bindings)
	return nil
}

// OpenTopLevel starts a cursor for the single frame its bindings cursor yields.
func OpenTopLevel(c Cursor) error {
	if err := c.OpenBindings(); err != nil {
		return errors.Wrap(err, "couldn't open bindings")
	}
	if _, err := c.NextBindings(); err != nil {
		if err == ErrEndOfStream {
			return errors.New("bindings cursor yielded no bindings")
		}
		return errors.Wrap(err, "couldn't get bindings")
	}
	if err := c.Open(); err != nil {
		return errors.Wrap(err, "couldn't open cursor")
	}
	return nil
}

// Drain reads the cursor until the end of stream.
func Drain(c Cursor) ([]cursorql.Row, error) {
	var out []cursorql.Row
	for {
		row, err := c.Next()
		if err == ErrEndOfStream {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, row)
	}
}

// Execute runs the operator for a single frame and returns all its rows.
func Execute(qc *QueryContext, op Operator, bindings *cursorql.Bindings) ([]cursorql.Row, error) {
	c := op.Cursor(qc, NewSingletonBindingsCursor(bindings))
	defer c.Destroy()

	if err := OpenTopLevel(c); err != nil {
		return nil, err
	}
	rows, err := Drain(c)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read rows")
	}
	if err := c.CloseBindings(); err != nil {
		return nil, errors.Wrap(err, "couldn't close bindings")
	}
	return rows, nil
}

// ExecuteEach runs the operator once for every frame of the given bindings cursor.
// The frames are expected to be top level ones, a fresh rowset starts for each.
func ExecuteEach(qc *QueryContext, op Operator, bindings BindingsCursor, consume func(frame *cursorql.Bindings, row cursorql.Row) error) error {
	c := op.Cursor(qc, bindings)
	defer c.Destroy()

	if err := c.OpenBindings(); err != nil {
		return errors.Wrap(err, "couldn't open bindings")
	}
	for {
		frame, err := c.NextBindings()
		if err == ErrEndOfStream {
			break
		} else if err != nil {
			return errors.Wrap(err, "couldn't get bindings")
		}
		if err := c.Open(); err != nil {
			return errors.Wrapf(err, "couldn't open cursor for %s", frame)
		}
		for {
			row, err := c.Next()
			if err == ErrEndOfStream {
				break
			} else if err != nil {
				return errors.Wrapf(err, "couldn't read row for %s", frame)
			}
			if err := consume(frame, row); err != nil {
				return err
			}
		}
	}
	return c.CloseBindings()
}
