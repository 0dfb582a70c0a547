package execution

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/graph"
)

// LimitParameter is a skip or limit count, either fixed or taken from the bindings on open.
type LimitParameter struct {
	value     int
	position  int
	bound     bool
	unbounded bool
}

func FixedLimit(n int) LimitParameter {
	return LimitParameter{value: n}
}

// BoundLimit resolves the count from the value bound at position. A null value means no limit.
func BoundLimit(position int) LimitParameter {
	return LimitParameter{position: position, bound: true}
}

func NoLimit() LimitParameter {
	return LimitParameter{unbounded: true}
}

func (p LimitParameter) IsBound() bool {
	return p.bound
}

func (p LimitParameter) String() string {
	switch {
	case p.unbounded:
		return "ALL"
	case p.bound:
		return fmt.Sprintf("param[%d]", p.position)
	default:
		return fmt.Sprint(p.value)
	}
}

const (
	offsetParameter = "OFFSET"
	limitParameter  = "LIMIT"
)

func (p LimitParameter) resolve(bindings *cursorql.Bindings, name string, unbounded int) (int, error) {
	if p.unbounded {
		return unbounded, nil
	}
	if !p.bound {
		return p.value, nil
	}
	if bindings == nil {
		return 0, errors.Errorf("no bindings to resolve %s from position %d", name, p.position)
	}
	n, ok, err := cursorql.AsInt(bindings.Value(p.position))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidInput, "invalid %s value: %s", name, err)
	}
	if !ok {
		return unbounded, nil
	}
	return n, nil
}

// Limit returns at most limit rows of its input, after skipping the first skip rows.
// When the limit is reached the input cursor is closed right away.
type Limit struct {
	input       Operator
	skip, limit LimitParameter
}

func NewLimit(input Operator, skip, limit LimitParameter) *Limit {
	return &Limit{
		input: input,
		skip:  skip,
		limit: limit,
	}
}

func (node *Limit) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &limitCursor{
		chainedCursor: newChainedCursor("Limit", qc, node.input.Cursor(qc, bindings)),
		skip:          node.skip,
		limit:         node.limit,
	}
}

func (node *Limit) InputOperators() []Operator {
	return []Operator{node.input}
}

func (node *Limit) String() string {
	var params []string
	if node.skip.bound || (!node.skip.unbounded && node.skip.value > 0) {
		params = append(params, fmt.Sprintf("skip=%s", node.skip))
	}
	if node.limit.bound || (!node.limit.unbounded && node.limit.value < unboundedLimit) {
		params = append(params, fmt.Sprintf("limit=%s", node.limit))
	}
	return fmt.Sprintf("Limit(%s: %s)", strings.Join(params, ", "), node.input)
}

func (node *Limit) Visualize() *graph.Node {
	n := graph.NewNode("Limit")
	n.AddField("skip", node.skip.String())
	n.AddField("limit", node.limit.String())
	n.AddChild("input", node.input.Visualize())
	return n
}

const (
	// unboundedLimit is what an absent limit resolves to. Fixed limits this large aren't shown.
	unboundedLimit = math.MaxInt
	// limitLeft is set to exhaustedLimit once the input has run out.
	exhaustedLimit = -1
)

type limitCursor struct {
	chainedCursor
	skip, limit         LimitParameter
	skipLeft, limitLeft int
}

func (c *limitCursor) Open() error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	skip, err := c.skip.resolve(c.bindings, offsetParameter, 0)
	if err != nil {
		return err
	}
	if skip < 0 {
		return &NegativeLimitError{Parameter: offsetParameter, Value: skip}
	}
	limit, err := c.limit.resolve(c.bindings, limitParameter, unboundedLimit)
	if err != nil {
		return err
	}
	if limit < 0 {
		return &NegativeLimitError{Parameter: limitParameter, Value: limit}
	}
	if err := c.open(); err != nil {
		return err
	}
	c.skipLeft, c.limitLeft = skip, limit
	return nil
}

func (c *limitCursor) Next() (cursorql.Row, error) {
	if err := c.checkIdleOrActive("next"); err != nil {
		return nil, err
	}
	if !c.isActive() {
		return nil, ErrEndOfStream
	}
	if err := c.qc.CheckCancelation(); err != nil {
		return nil, c.fail(err)
	}
	for c.skipLeft > 0 {
		_, err := c.input.Next()
		if err == ErrEndOfStream {
			c.skipLeft = 0
			c.limitLeft = exhaustedLimit
			return nil, c.endOfStream()
		} else if err != nil {
			return nil, c.fail(errors.Wrap(err, "couldn't skip input row"))
		}
		c.skipLeft--
	}
	if c.limitLeft <= 0 {
		return nil, c.endOfStream()
	}
	row, err := c.input.Next()
	if err == ErrEndOfStream {
		c.limitLeft = exhaustedLimit
		return nil, c.endOfStream()
	} else if err != nil {
		return nil, c.fail(errors.Wrap(err, "couldn't get input row"))
	}
	c.limitLeft--
	c.trace(row)
	return row, nil
}

func (c *limitCursor) endOfStream() error {
	if err := c.Close(); err != nil {
		return err
	}
	return ErrEndOfStream
}
