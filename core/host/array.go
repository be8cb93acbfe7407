package host

import "fmt"

// Uint8Array is the host's byte-array type. It owns its backing storage.
type Uint8Array struct {
	buf []byte
}

// BytesValue is implemented by host values that expose their byte content.
type BytesValue interface {
	Bytes() []byte
}

// NewUint8Array allocates a zeroed array of n bytes.
func NewUint8Array(n int) *Uint8Array {
	return &Uint8Array{buf: make([]byte, n)}
}

// WrapBytes creates an array that takes ownership of b.
func WrapBytes(b []byte) *Uint8Array {
	return &Uint8Array{buf: b}
}

// Len returns the number of bytes in the array.
func (a *Uint8Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.buf)
}

// CopyFrom copies src into the array. src must have the array's length.
func (a *Uint8Array) CopyFrom(src []byte) {
	if len(src) != len(a.buf) {
		panic(fmt.Sprintf("host: CopyFrom length mismatch (array %d, source %d)", len(a.buf), len(src)))
	}
	copy(a.buf, src)
}

// ToBytes returns an owned copy of the array content.
func (a *Uint8Array) ToBytes() []byte {
	if a == nil {
		return []byte{}
	}
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	return out
}

// ToUint8Array coerces a host value into a byte array view. Values that are
// not byte-array-like produce a TypeError exception.
func ToUint8Array(v Value) (*Uint8Array, error) {
	switch t := v.(type) {
	case *Uint8Array:
		if t == nil {
			return nil, NewTypeError("value is not a Uint8Array")
		}
		return t, nil
	case Uint8Array:
		return &t, nil
	case []byte:
		return &Uint8Array{buf: t}, nil
	case BytesValue:
		return &Uint8Array{buf: t.Bytes()}, nil
	default:
		return nil, NewTypeError(fmt.Sprintf("%s is not a Uint8Array", describe(v)))
	}
}

func describe(v Value) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint16, uint32, uint64, float32, float64:
		return "number"
	default:
		return fmt.Sprintf("value of type %T", v)
	}
}
