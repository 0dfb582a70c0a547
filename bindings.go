package cursorql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var ErrRowNotBound = errors.New("no row bound at position")

// Bindings is a frame of bound parameters and correlation rows at a given nesting depth.
// Positions which aren't set in this frame are looked up in the parent frame.
//
// A frame is built by its creator and must not be changed once it has been handed
// to a bindings cursor. The only sanctioned mutation is through a RowCell obtained
// from Rebind.
type Bindings struct {
	parent *Bindings
	depth  int
	values map[int]Value
	rows   map[int]Row

	cellPosition int
	cell         *RowCell
}

// NewBindings creates a top level frame with depth 0.
func NewBindings() *Bindings {
	return &Bindings{}
}

// Derive creates a child frame one level deeper than b.
func (b *Bindings) Derive() *Bindings {
	return &Bindings{
		parent: b,
		depth:  b.depth + 1,
	}
}

func (b *Bindings) Depth() int {
	return b.depth
}

func (b *Bindings) Parent() *Bindings {
	return b.parent
}

func (b *Bindings) SetValue(position int, value Value) {
	if b.values == nil {
		b.values = make(map[int]Value)
	}
	b.values[position] = value
}

// Value returns the value bound at position, or Null if nothing is bound there.
func (b *Bindings) Value(position int) Value {
	for cur := b; cur != nil; cur = cur.parent {
		if v, ok := cur.values[position]; ok {
			return v
		}
	}
	return MakeNull()
}

func (b *Bindings) SetRow(position int, row Row) {
	if b.rows == nil {
		b.rows = make(map[int]Row)
	}
	b.rows[position] = row
}

func (b *Bindings) Row(position int) (Row, error) {
	for cur := b; cur != nil; cur = cur.parent {
		if cur.cell != nil && cur.cellPosition == position {
			if !cur.cell.Holding() {
				return nil, errors.Wrapf(ErrRowNotBound, "position %d", position)
			}
			return cur.cell.Get(), nil
		}
		if row, ok := cur.rows[position]; ok {
			return row, nil
		}
	}
	return nil, errors.Wrapf(ErrRowNotBound, "position %d", position)
}

// Rebind creates an overlay of b with the same depth, whose row at position is
// served by the returned cell. The overlay is used by the rebinding nested loop,
// which replaces the row for every outer iteration without creating new frames.
func (b *Bindings) Rebind(position int) (*Bindings, *RowCell) {
	cell := &RowCell{}
	return &Bindings{
		parent:       b,
		depth:        b.depth,
		cellPosition: position,
		cell:         cell,
	}, cell
}

func (b *Bindings) String() string {
	var parts []string
	positions := make([]int, 0, len(b.values)+len(b.rows))
	for pos := range b.values {
		positions = append(positions, pos)
	}
	for pos := range b.rows {
		if _, ok := b.values[pos]; !ok {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	for _, pos := range positions {
		if row, ok := b.rows[pos]; ok {
			parts = append(parts, fmt.Sprintf("%d=%s", pos, row))
		} else {
			parts = append(parts, fmt.Sprintf("%d=%s", pos, b.values[pos]))
		}
	}
	if b.cell != nil && b.cell.Holding() {
		parts = append(parts, fmt.Sprintf("%d=%s", b.cellPosition, b.cell.Get()))
	}
	return fmt.Sprintf("Bindings(depth=%d, %s)", b.depth, strings.Join(parts, ", "))
}

// RowCell holds at most one row. It is exclusively owned by the component which created it.
type RowCell struct {
	row     Row
	holding bool
}

func (c *RowCell) Set(row Row) {
	c.row = row
	c.holding = true
}

func (c *RowCell) Get() Row {
	return c.row
}

func (c *RowCell) Holding() bool {
	return c.holding
}

func (c *RowCell) Release() {
	c.row = nil
	c.holding = false
}
