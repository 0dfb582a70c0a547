package output

import (
	"fmt"
	"io"

	"github.com/cube2222/cursorql"
)

// Output receives the result rows of a query, tagged with the index of the top level frame
// which produced them.
type Output interface {
	WriteRow(frame int, row cursorql.Row) error
	io.Closer
}

// Header returns the column names of the widest of the given rows.
func Header(rows []cursorql.Row) []string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([]string, width)
	for i := range out {
		out[i] = fmt.Sprintf("col%d", i)
	}
	return out
}

// ToRawValue converts the value to its plain Go representation.
func ToRawValue(v cursorql.Value) interface{} {
	switch v := v.(type) {
	case cursorql.Int:
		return v.AsInt()
	case cursorql.Float:
		return v.AsFloat()
	case cursorql.Bool:
		return v.AsBool()
	case cursorql.String:
		return v.AsString()
	case cursorql.Tuple:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = ToRawValue(v[i])
		}
		return out
	default:
		return nil
	}
}
