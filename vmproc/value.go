// Package vmproc holds the value model and per-process runtime state a
// loaded program executes against: the tagged Value cell, the bounds-checked
// register files it lives in, the call-frame stack, the mmap-backed heap,
// and the pointer registry. vmexec's dispatcher and executors operate on
// these types; vmproc itself performs no decoding or dispatch.
package vmproc

import (
	"fmt"
	"math"
)

// Tag discriminates the variants a Value can hold (spec §3/§4.8).
type Tag uint8

const (
	Void Tag = iota
	Byte
	IntegerSigned
	IntegerUnsigned
	FloatSingle
	FloatDouble
	Boxed
)

func (t Tag) String() string {
	switch t {
	case Void:
		return "void"
	case Byte:
		return "byte"
	case IntegerSigned:
		return "integer"
	case IntegerUnsigned:
		return "unsigned"
	case FloatSingle:
		return "float"
	case FloatDouble:
		return "double"
	case Boxed:
		return "boxed"
	default:
		return "unknown"
	}
}

// Value is a tagged register cell: one of {Void, Byte, Integer_signed,
// Integer_unsigned, Float_single, Float_double, Boxed} (spec §3). Unboxed
// variants store their bit pattern directly; Boxed variants reach a heap
// object through box. This generalizes forth/stack.go's vmStack — a LIFO of
// untyped Cell words — into a random-access, tagged register slot; see
// RegisterFile.
type Value struct {
	tag  Tag
	bits uint64
	box  *Box
}

// IsVoid reports whether v's tag is Void (spec §3: "is_void is true iff the
// tag is Void").
func (v Value) IsVoid() bool { return v.tag == Void }

// Tag returns v's discriminant.
func (v Value) Tag() Tag { return v.tag }

func NewByte(b byte) Value { return Value{tag: Byte, bits: uint64(b)} }

func NewInt64(n int64) Value { return Value{tag: IntegerSigned, bits: uint64(n)} }

func NewUint64(n uint64) Value { return Value{tag: IntegerUnsigned, bits: n} }

func NewFloat32(f float32) Value {
	return Value{tag: FloatSingle, bits: uint64(math.Float32bits(f))}
}

func NewFloat64(f float64) Value {
	return Value{tag: FloatDouble, bits: math.Float64bits(f)}
}

// NewBoxed wraps b in a Value without adjusting its reference count: the
// caller transfers the one reference it already holds (mirrors b's
// constructor starting refs at 1). Use RegisterFile.Copy, not this
// directly, to duplicate a boxed value into a second register.
func NewBoxed(b *Box) Value { return Value{tag: Boxed, box: b} }

// Int64 returns v's bit pattern as a signed 64-bit integer; it is 0 for
// tags that carry no integral value.
func (v Value) Int64() int64 {
	switch v.tag {
	case IntegerSigned, IntegerUnsigned:
		return int64(v.bits)
	case Byte:
		return int64(v.bits & 0xff)
	default:
		return 0
	}
}

// Uint64 returns v's bit pattern as an unsigned 64-bit integer.
func (v Value) Uint64() uint64 {
	switch v.tag {
	case IntegerSigned, IntegerUnsigned:
		return v.bits
	case Byte:
		return v.bits & 0xff
	default:
		return 0
	}
}

// Float32 returns v's value reinterpreted as a float32, or 0 if v is not
// FloatSingle.
func (v Value) Float32() float32 {
	if v.tag != FloatSingle {
		return 0
	}
	return math.Float32frombits(uint32(v.bits))
}

// Float64 returns v's value reinterpreted as a float64, or 0 if v is not
// FloatDouble.
func (v Value) Float64() float64 {
	if v.tag != FloatDouble {
		return 0
	}
	return math.Float64frombits(v.bits)
}

// Box returns the boxed object v owns, if any.
func (v Value) Box() (*Box, bool) {
	if v.tag != Boxed {
		return nil, false
	}
	return v.box, true
}

// release drops v's ownership of any boxed resource it holds. Called just
// before a register slot's previous content is overwritten (spec §4.8: "a
// write to a register of a boxed value that already holds a boxed value
// must destroy the previous box before overwriting") and by DELETE.
func (v Value) release() {
	if v.tag == Boxed {
		v.box.Release()
	}
}

// Display renders v the way PRINT/ECHO do: boxed strings/atoms write their
// raw bytes rather than a "boxed(string)" debug tag.
func (v Value) Display() string {
	if v.tag == Boxed && v.box != nil && (v.box.Kind == BoxString || v.box.Kind == BoxAtom) {
		return string(v.box.Data)
	}
	return v.String()
}

func (v Value) String() string {
	switch v.tag {
	case Void:
		return "void"
	case Byte:
		return fmt.Sprintf("byte(%d)", byte(v.bits))
	case IntegerSigned:
		return fmt.Sprintf("%d", v.Int64())
	case IntegerUnsigned:
		return fmt.Sprintf("%d", v.Uint64())
	case FloatSingle:
		return fmt.Sprintf("%g", v.Float32())
	case FloatDouble:
		return fmt.Sprintf("%g", v.Float64())
	case Boxed:
		if v.box == nil {
			return "boxed(nil)"
		}
		return fmt.Sprintf("boxed(%s)", v.box.Kind)
	default:
		return "?"
	}
}
