package jdwp

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/mirror"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Id kinds. Every kind is IDSize bytes wide on the wire.
type (
	ObjectID        uint64
	ReferenceTypeID uint64
	MethodID        uint64
	FieldID         uint64
	FrameID         uint64
)

// Value is a tagged value as it travels on the wire. Primitives use Bits;
// reference tags use ID, where 0 is null.
type Value struct {
	Tag  byte
	Bits uint64
	ID   ObjectID
}

// Location is a code position.
type Location struct {
	TypeTag byte
	Class   ReferenceTypeID
	Method  MethodID
	Index   uint64
}

func wireValue(v mirror.Value) Value {
	if v.IsPrimitive() {
		return Value{Tag: v.Tag, Bits: v.Bits}
	}
	if v.Object == nil {
		return Value{Tag: provider.TagObject}
	}
	return Value{Tag: v.Object.Tag(), ID: ObjectID(v.Object.ID())}
}

func wireLocation(l mirror.Location) Location {
	t := l.DeclaringType()
	return Location{
		TypeTag: t.TypeTag(),
		Class:   ReferenceTypeID(t.ID()),
		Method:  MethodID(l.Method.ID()),
		Index:   uint64(l.CodeIndex),
	}
}

// valueSize is the payload width of an untagged value of the given tag.
func valueSize(tag byte) int {
	switch tag {
	case provider.TagVoid:
		return 0
	case provider.TagByte, provider.TagBoolean:
		return 1
	case provider.TagChar, provider.TagShort:
		return 2
	case provider.TagInt, provider.TagFloat:
		return 4
	case provider.TagLong, provider.TagDouble:
		return 8
	}
	return IDSize
}

// Writer builds packet data.
type Writer struct {
	buf []byte
}

// Bytes returns the data written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset discards the data written so far.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) Bool(b bool) {
	if b {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func (w *Writer) Short(v int16) { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }
func (w *Writer) Int(v int32)   { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }
func (w *Writer) Long(v int64)  { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }
func (w *Writer) ID(v uint64)   { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

// Len writes a count.
func (w *Writer) Len(n int) { w.Int(int32(n)) }

// String writes a length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.Len(len(s))
	w.buf = append(w.buf, s...)
}

// Raw writes b without a length prefix.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// UntaggedValue writes the payload of v.
func (w *Writer) UntaggedValue(v Value) {
	switch valueSize(v.Tag) {
	case 0:
	case 1:
		w.Byte(byte(v.Bits))
	case 2:
		w.Short(int16(v.Bits))
	case 4:
		w.Int(int32(v.Bits))
	default:
		if provider.IsPrimitiveTag(v.Tag) {
			w.Long(int64(v.Bits))
		} else {
			w.ID(uint64(v.ID))
		}
	}
}

// Value writes a tagged value.
func (w *Writer) Value(v Value) {
	w.Byte(v.Tag)
	w.UntaggedValue(v)
}

// TaggedObject writes an object id preceded by its tag; nil writes the
// null object.
func (w *Writer) TaggedObject(o *mirror.Object) { w.Value(wireValue(mirror.ObjectValue(o))) }

// Object writes an untagged object id; nil writes 0.
func (w *Writer) Object(o *mirror.Object) {
	if o == nil {
		w.ID(0)
		return
	}
	w.ID(uint64(o.ID()))
}

// TypeRef writes a type tag and type id.
func (w *Writer) TypeRef(t mirror.ReferenceType) {
	w.Byte(t.TypeTag())
	w.ID(uint64(t.ID()))
}

// Location writes a code location.
func (w *Writer) Location(l Location) {
	w.Byte(l.TypeTag)
	w.ID(uint64(l.Class))
	w.ID(uint64(l.Method))
	w.ID(l.Index)
}

// Reader decodes packet data. The first decoding failure sticks: later
// reads return zero values and Err reports the failure.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader reads from data.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Err returns the first decoding failure.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = errs.InvalidArgument(errs.CodeIllegalArgument,
			fmt.Sprintf("truncated request: need %d bytes at offset %d, have %d", n, r.off, r.Remaining()))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Byte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool { return r.Byte() != 0 }

func (r *Reader) Short() int16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

func (r *Reader) Int() int32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *Reader) Long() int64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *Reader) ID() uint64 {
	b := r.next(IDSize)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() string {
	n := r.Int()
	b := r.next(int(n))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = errs.InvalidArgument(errs.CodeIllegalArgument, "string is not valid UTF-8")
		return ""
	}
	return string(b)
}

// UntaggedValue reads a payload of the given tag.
func (r *Reader) UntaggedValue(tag byte) Value {
	v := Value{Tag: tag}
	switch valueSize(tag) {
	case 0:
	case 1:
		v.Bits = uint64(r.Byte())
	case 2:
		v.Bits = uint64(uint16(r.Short()))
	case 4:
		v.Bits = uint64(uint32(r.Int()))
	default:
		if provider.IsPrimitiveTag(tag) {
			v.Bits = uint64(r.Long())
		} else {
			v.ID = ObjectID(r.ID())
		}
	}
	return v
}

// Value reads a tagged value.
func (r *Reader) Value() Value { return r.UntaggedValue(r.Byte()) }

// Location reads a code location.
func (r *Reader) Location() Location {
	return Location{
		TypeTag: r.Byte(),
		Class:   ReferenceTypeID(r.ID()),
		Method:  MethodID(r.ID()),
		Index:   r.ID(),
	}
}
