package resp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Type is the leading type byte of a RESP value.
type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
)

func (t Type) String() string {
	switch t {
	case SimpleString:
		return "simple-string"
	case Error:
		return "error"
	case Integer:
		return "integer"
	case BulkString:
		return "bulk-string"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a decoded reply.
type Value struct {
	Type  Type
	Str   string
	Int   int64
	Null  bool
	Array []Value
}

// Err returns the reply as an error if it is an error reply.
func (v Value) Err() error {
	if v.Type != Error {
		return nil
	}
	return errors.New(v.Str)
}

// Text returns the reply as a string. Integers are formatted in decimal,
// arrays are joined by newlines, null values are empty.
func (v Value) Text() string {
	switch v.Type {
	case Integer:
		return strconv.FormatInt(v.Int, 10)
	case Array:
		parts := make([]string, len(v.Array))
		for i, el := range v.Array {
			parts[i] = el.Text()
		}
		return strings.Join(parts, "\n")
	default:
		return v.Str
	}
}

// Interface converts the value to plain Go types for structured output.
func (v Value) Interface() any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case Integer:
		return v.Int
	case Array:
		out := make([]any, len(v.Array))
		for i, el := range v.Array {
			out[i] = el.Interface()
		}
		return out
	case Error:
		return map[string]string{"error": v.Str}
	default:
		return v.Str
	}
}

// ReadReply reads one reply of any type.
func (r *Reader) ReadReply() (Value, error) {
	r.frame = r.frame[:0]

	v, err := r.readValue(0)
	if err != nil && len(r.frame) > 0 {
		return Value{}, frameErr(err)
	}
	return v, err
}

func (r *Reader) readValue(depth int) (Value, error) {
	b, err := r.readByte()
	if err != nil {
		return Value{}, err
	}

	switch Type(b) {
	case SimpleString, Error:
		s, err := r.readLine(MaxLineLen)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: Type(b), Str: s}, nil

	case Integer:
		s, err := r.readLine(32)
		if err != nil {
			return Value{}, err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer %q", ErrProtocol, s)
		}
		return Value{Type: Integer, Int: n}, nil

	case BulkString:
		n, err := r.readLength()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{Type: BulkString, Null: true}, nil
		}
		if n > MaxBulkLen {
			return Value{}, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
		}
		buf, err := r.readFull(n + 2)
		if err != nil {
			return Value{}, err
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return Value{}, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
		}
		return Value{Type: BulkString, Str: string(buf[:n])}, nil

	case Array:
		if depth >= maxDepth {
			return Value{}, fmt.Errorf("%w: array nesting exceeds limit %d", ErrLimitExceeded, maxDepth)
		}
		n, err := r.readLength()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{Type: Array, Null: true}, nil
		}
		if n > MaxArrayLen {
			return Value{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			el, err := r.readValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, el)
		}
		return Value{Type: Array, Array: items}, nil

	default:
		return Value{}, fmt.Errorf("%w: unexpected type byte %q", ErrProtocol, b)
	}
}
