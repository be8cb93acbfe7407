package host

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Value is an opaque value produced or consumed by the host runtime.
type Value = any

// Exception is an error raised by the host runtime itself.
type Exception struct {
	Name    string
	Message string
}

// ErrAborted is raised by host streams that were closed on purpose mid-flight.
var ErrAborted = &Exception{Name: "Error", Message: "aborted"}

// NewException creates a generic host Error exception.
func NewException(msg string) *Exception {
	return &Exception{Name: "Error", Message: msg}
}

// NewTypeError creates a host TypeError exception.
func NewTypeError(msg string) *Exception {
	return &Exception{Name: "TypeError", Message: msg}
}

func (e *Exception) Error() string {
	return e.String()
}

// String renders the exception the way the host stringifies it.
func (e *Exception) String() string {
	if e.Name == "" {
		return "Error: " + e.Message
	}
	return e.Name + ": " + e.Message
}

// Stringify converts any host value to its host-side string rendering.
func Stringify(v Value) string {
	switch t := v.(type) {
	case nil:
		return "undefined"
	case *Exception:
		return t.String()
	case Exception:
		return t.String()
	case string:
		return t
	case error:
		return "Error: " + t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// BigInt is the host's arbitrary precision integer.
type BigInt struct {
	v *big.Int
}

// NewBigInt creates a BigInt holding n.
func NewBigInt(n uint64) BigInt {
	return BigInt{v: new(big.Int).SetUint64(n)}
}

// BigIntFrom creates a BigInt holding a copy of n.
func BigIntFrom(n *big.Int) BigInt {
	return BigInt{v: new(big.Int).Set(n)}
}

// Int returns a copy of the underlying integer.
func (b BigInt) Int() *big.Int {
	if b.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.v)
}

// Uint64 returns the value and whether it fits in a uint64.
func (b BigInt) Uint64() (uint64, bool) {
	if b.v == nil {
		return 0, true
	}
	return b.v.Uint64(), b.v.IsUint64()
}

func (b BigInt) String() string {
	if b.v == nil {
		return "0n"
	}
	return b.v.String() + "n"
}

// Decode converts a structured host value into out. The value may be JSON
// text, a byte-array-like value holding JSON, or an already structured value
// such as a map.
func Decode(v Value, out any) error {
	var data []byte
	switch t := v.(type) {
	case string:
		data = []byte(t)
	case []byte, Uint8Array, *Uint8Array, BytesValue:
		arr, err := ToUint8Array(t)
		if err != nil {
			return err
		}
		data = arr.buf
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("value of type %T is not representable: %w", v, err)
		}
		data = b
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot convert host value into %T: %w", out, err)
	}
	return nil
}
