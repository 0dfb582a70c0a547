package table

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/output"
)

type Output struct {
	w        io.Writer
	rowLines bool
	frames   []int
	rows     []cursorql.Row
}

func NewOutput(w io.Writer, rowLines bool) output.Output {
	return &Output{
		w:        w,
		rowLines: rowLines,
	}
}

func (o *Output) WriteRow(frame int, row cursorql.Row) error {
	o.frames = append(o.frames, frame)
	o.rows = append(o.rows, row)
	return nil
}

func (o *Output) Close() error {
	fields := output.Header(o.rows)

	table := tablewriter.NewWriter(o.w)
	table.SetRowLine(o.rowLines)
	table.SetHeader(append([]string{"frame"}, fields...))
	table.SetAutoFormatHeaders(false)

	for i, row := range o.rows {
		out := []string{strconv.Itoa(o.frames[i])}
		for j := range fields {
			if j < len(row) {
				out = append(out, fmt.Sprint(row[j]))
			} else {
				out = append(out, "")
			}
		}
		table.Append(out)
	}

	table.Render()
	return nil
}
