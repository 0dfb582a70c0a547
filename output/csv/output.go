package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/output"
)

type Output struct {
	separator rune
	w         io.Writer
	frames    []int
	rows      []cursorql.Row
}

func NewOutput(separator rune, w io.Writer) output.Output {
	return &Output{
		separator: separator,
		w:         w,
	}
}

func (o *Output) WriteRow(frame int, row cursorql.Row) error {
	o.frames = append(o.frames, frame)
	o.rows = append(o.rows, row)
	return nil
}

func (o *Output) Close() error {
	fields := output.Header(o.rows)

	out := csv.NewWriter(o.w)
	out.Comma = o.separator
	if err := out.Write(append([]string{"frame"}, fields...)); err != nil {
		return errors.Wrap(err, "couldn't write header row")
	}

	for i, row := range o.rows {
		line := []string{strconv.Itoa(o.frames[i])}
		for j := range fields {
			if j >= len(row) {
				line = append(line, "")
				continue
			}
			if _, ok := row[j].(cursorql.Null); ok {
				line = append(line, "")
				continue
			}
			line = append(line, fmt.Sprint(output.ToRawValue(row[j])))
		}
		if err := out.Write(line); err != nil {
			return errors.Wrap(err, "couldn't write row")
		}
	}

	out.Flush()
	return errors.Wrap(out.Error(), "couldn't flush csv writer")
}
