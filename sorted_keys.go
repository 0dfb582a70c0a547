package cursorql

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Sorted keys are byte encodings of values whose bytewise order follows the value order
// within a type. Values of different types are ordered by their identifier, so an Int
// and a Float never share a key.
const (
	NullIdentifier   = 1
	BoolIdentifier   = 2
	IntIdentifier    = 3
	FloatIdentifier  = 4
	StringIdentifier = 5
	TupleIdentifier  = 6
)

const (
	NumberMarshalLength = 1 + 8 // b[0] = type, b[1:] = big endian with the sign bit flipped
	BoolMarshalLength   = 1 + 1
)

// The tuple delimiter is smaller than any identifier, so a tuple sorts before all of its extensions.
// Strings escape zero bytes, so their delimiter also sorts before any continuation.
const (
	TupleDelimiter   = 0
	stringEscape     = 0
	stringEscaped    = 0xFF
	stringTerminator = 1
)

const signBit = 1 << 63

func SortedMarshal(v Value) []byte {
	return appendSorted(nil, v)
}

// SortedMarshalRow encodes the row as a self delimiting sequence of sorted values.
// Rows compare bytewise like tuples of their values.
func SortedMarshalRow(row Row) []byte {
	var out []byte
	for i := range row {
		out = appendSorted(out, row[i])
	}
	return out
}

func appendSorted(b []byte, v Value) []byte {
	switch v := v.(type) {
	case nil, Null:
		return append(b, NullIdentifier)
	case Bool:
		return append(b, SortedMarshalBool(bool(v))...)
	case Int:
		return append(b, SortedMarshalInt(int(v))...)
	case Float:
		return append(b, SortedMarshalFloat(float64(v))...)
	case String:
		return append(b, SortedMarshalString(string(v))...)
	case Tuple:
		b = append(b, TupleIdentifier)
		for i := range v {
			b = appendSorted(b, v[i])
		}
		return append(b, TupleDelimiter)
	}
	panic("unsupported type")
}

func SortedMarshalBool(v bool) []byte {
	b := []byte{BoolIdentifier, 0}
	if v {
		b[1] = 1
	}
	return b
}

func SortedMarshalInt(i int) []byte {
	b := make([]byte, NumberMarshalLength)
	b[0] = IntIdentifier
	binary.BigEndian.PutUint64(b[1:], uint64(i)^signBit)
	return b
}

func SortedMarshalFloat(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&signBit != 0 {
		bits = ^bits
	} else {
		bits ^= signBit
	}
	b := make([]byte, NumberMarshalLength)
	b[0] = FloatIdentifier
	binary.BigEndian.PutUint64(b[1:], bits)
	return b
}

func SortedMarshalString(s string) []byte {
	b := make([]byte, 0, len(s)+3)
	b = append(b, StringIdentifier)
	for i := 0; i < len(s); i++ {
		if s[i] == stringEscape {
			b = append(b, stringEscape, stringEscaped)
			continue
		}
		b = append(b, s[i])
	}
	return append(b, stringEscape, stringTerminator)
}

func SortedUnmarshal(b []byte) (Value, error) {
	v, n, err := sortedUnmarshal(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, errors.Errorf("%d trailing bytes after value", len(b)-n)
	}
	return v, nil
}

func SortedUnmarshalRow(b []byte) (Row, error) {
	var out Row
	for len(b) > 0 {
		v, n, err := sortedUnmarshal(b)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't unmarshal column %d", len(out))
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

// sortedUnmarshal decodes a single value and returns the number of bytes it took.
func sortedUnmarshal(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return nil, 0, errors.New("empty byte slice given to unmarshal")
	}

	switch b[0] {
	case NullIdentifier:
		return MakeNull(), 1, nil

	case BoolIdentifier:
		if len(b) < BoolMarshalLength {
			return nil, 0, errors.New("incorrect bool key size")
		}
		switch b[1] {
		case 0:
			return MakeBool(false), BoolMarshalLength, nil
		case 1:
			return MakeBool(true), BoolMarshalLength, nil
		}
		return nil, 0, errors.New("incorrect bool key value")

	case IntIdentifier:
		if len(b) < NumberMarshalLength {
			return nil, 0, errors.New("incorrect int key size")
		}
		return MakeInt(int(binary.BigEndian.Uint64(b[1:NumberMarshalLength]) ^ signBit)), NumberMarshalLength, nil

	case FloatIdentifier:
		if len(b) < NumberMarshalLength {
			return nil, 0, errors.New("incorrect float key size")
		}
		bits := binary.BigEndian.Uint64(b[1:NumberMarshalLength])
		if bits&signBit != 0 {
			bits ^= signBit
		} else {
			bits = ^bits
		}
		return MakeFloat(math.Float64frombits(bits)), NumberMarshalLength, nil

	case StringIdentifier:
		var buf bytes.Buffer
		for i := 1; i < len(b); i++ {
			if b[i] != stringEscape {
				buf.WriteByte(b[i])
				continue
			}
			if i+1 >= len(b) {
				break
			}
			switch b[i+1] {
			case stringEscaped:
				buf.WriteByte(stringEscape)
				i++
			case stringTerminator:
				return MakeString(buf.String()), i + 2, nil
			default:
				return nil, 0, errors.Errorf("invalid escape sequence in string key at byte %d", i)
			}
		}
		return nil, 0, errors.New("string key without terminator")

	case TupleIdentifier:
		var out Tuple
		for i := 1; i < len(b); {
			if b[i] == TupleDelimiter {
				return out, i + 1, nil
			}
			v, n, err := sortedUnmarshal(b[i:])
			if err != nil {
				return nil, 0, errors.Wrap(err, "couldn't unmarshal an element of the tuple")
			}
			out = append(out, v)
			i += n
		}
		return nil, 0, errors.New("tuple key without delimiter")
	}

	return nil, 0, errors.Errorf("unknown key type identifier %d", b[0])
}
