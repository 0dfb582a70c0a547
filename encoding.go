package cursorql

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// Rows are stored as JSON arrays. Floats are wrapped in {"f": ...} so that
// they don't come back as integers.
const floatTag = "f"

func MarshalRow(row Row) []byte {
	var arena fastjson.Arena
	return marshalTuple(&arena, Tuple(row)).MarshalTo(nil)
}

func marshalTuple(arena *fastjson.Arena, tuple Tuple) *fastjson.Value {
	arr := arena.NewArray()
	for i := range tuple {
		arr.SetArrayItem(i, marshalValue(arena, tuple[i]))
	}
	return arr
}

func marshalValue(arena *fastjson.Arena, value Value) *fastjson.Value {
	switch value := value.(type) {
	case nil, Null:
		return arena.NewNull()
	case Int:
		return arena.NewNumberInt(int(value))
	case Float:
		obj := arena.NewObject()
		obj.Set(floatTag, arena.NewNumberFloat64(float64(value)))
		return obj
	case Bool:
		if value {
			return arena.NewTrue()
		}
		return arena.NewFalse()
	case String:
		return arena.NewString(string(value))
	case Tuple:
		return marshalTuple(arena, value)
	}
	panic(fmt.Sprintf("unhandled type of cursorql.Value: %v", reflect.TypeOf(value).String()))
}

func UnmarshalRow(data []byte) (Row, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't parse row")
	}
	if v.Type() != fastjson.TypeArray {
		return nil, errors.Errorf("encoded row must be an array, got %s", v.Type())
	}
	value, err := unmarshalValue(v)
	if err != nil {
		return nil, err
	}
	return Row(value.(Tuple)), nil
}

func unmarshalValue(v *fastjson.Value) (Value, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return MakeNull(), nil
	case fastjson.TypeTrue:
		return MakeBool(true), nil
	case fastjson.TypeFalse:
		return MakeBool(false), nil
	case fastjson.TypeString:
		return MakeString(string(v.GetStringBytes())), nil
	case fastjson.TypeNumber:
		n, err := v.Int()
		if err != nil {
			return nil, errors.Wrap(err, "couldn't decode integer")
		}
		return MakeInt(n), nil
	case fastjson.TypeObject:
		f := v.Get(floatTag)
		if f == nil {
			return nil, errors.New("unknown encoded value object")
		}
		x, err := f.Float64()
		if err != nil {
			return nil, errors.Wrap(err, "couldn't decode float")
		}
		return MakeFloat(x), nil
	case fastjson.TypeArray:
		items := v.GetArray()
		out := make(Tuple, len(items))
		for i := range items {
			item, err := unmarshalValue(items[i])
			if err != nil {
				return nil, errors.Wrapf(err, "couldn't decode tuple item with index %d", i)
			}
			out[i] = item
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported json type %s", v.Type())
}

// ParseJSONRow converts a plain JSON document into a row. Arrays are taken
// positionally, objects are projected onto the given columns.
func ParseJSONRow(v *fastjson.Value, columns []string) (Row, error) {
	switch v.Type() {
	case fastjson.TypeArray:
		items := v.GetArray()
		out := make(Row, len(items))
		for i := range items {
			out[i] = plainJSONValue(items[i])
		}
		return out, nil
	case fastjson.TypeObject:
		if len(columns) == 0 {
			return nil, errors.New("json object rows need a column list")
		}
		out := make(Row, len(columns))
		for i, col := range columns {
			field := v.Get(col)
			if field == nil {
				out[i] = MakeNull()
				continue
			}
			out[i] = plainJSONValue(field)
		}
		return out, nil
	}
	return nil, errors.Errorf("json row must be an array or an object, got %s", v.Type())
}

func plainJSONValue(v *fastjson.Value) Value {
	switch v.Type() {
	case fastjson.TypeTrue:
		return MakeBool(true)
	case fastjson.TypeFalse:
		return MakeBool(false)
	case fastjson.TypeString:
		return MakeString(string(v.GetStringBytes()))
	case fastjson.TypeNumber:
		if n, err := v.Int(); err == nil {
			return MakeInt(n)
		}
		return MakeFloat(v.GetFloat64())
	case fastjson.TypeArray:
		items := v.GetArray()
		out := make(Tuple, len(items))
		for i := range items {
			out[i] = plainJSONValue(items[i])
		}
		return out
	case fastjson.TypeObject:
		return MakeString(v.String())
	}
	return MakeNull()
}
