// Package host describes the boundary with the host execution environment that
// owns request and response bodies.
//
// The host is treated as a black box. Everything it hands over is an opaque
// Value, its failures are Exceptions, and its streams only promise to produce
// or consume byte-array-like values:
//   - ReadableStream: pull the next value, a done signal, or an exception
//   - WritableStream: accept values, close, or abort with a reason
//   - FixedLengthStream: a transform stream whose total size is declared upfront
//   - Runtime: allocates fixed-length streams, either from a standard-range
//     length or from a BigInt
//
// Concrete hosts live in subpackages: memhost (in-process), httphost
// (net/http bodies) and wshost (gorilla/websocket connections).
package host
