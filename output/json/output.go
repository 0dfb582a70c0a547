package json

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/output"
)

type Output struct {
	w                  io.Writer
	enc                *json.Encoder
	firstRecordWritten bool
}

func NewOutput(w io.Writer) output.Output {
	return &Output{
		w:   w,
		enc: json.NewEncoder(w),
	}
}

type record struct {
	Frame  int           `json:"frame"`
	Values []interface{} `json:"values"`
}

func (o *Output) WriteRow(frame int, row cursorql.Row) error {
	if !o.firstRecordWritten {
		o.firstRecordWritten = true
		if _, err := o.w.Write([]byte{'['}); err != nil {
			return errors.Wrap(err, "couldn't write leading square bracket")
		}
	} else {
		if _, err := o.w.Write([]byte{','}); err != nil {
			return errors.Wrap(err, "couldn't write separating comma")
		}
	}
	values := make([]interface{}, len(row))
	for i := range row {
		values[i] = output.ToRawValue(row[i])
	}
	if err := o.enc.Encode(record{Frame: frame, Values: values}); err != nil {
		return errors.Wrap(err, "couldn't encode row as json")
	}
	return nil
}

func (o *Output) Close() error {
	if !o.firstRecordWritten {
		o.firstRecordWritten = true
		if _, err := o.w.Write([]byte{'['}); err != nil {
			return errors.Wrap(err, "couldn't write leading square bracket")
		}
	}
	if _, err := o.w.Write([]byte{']', '\n'}); err != nil {
		return errors.Wrap(err, "couldn't write trailing square bracket")
	}
	return nil
}
