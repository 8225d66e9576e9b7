package mirror

import (
	"math"

	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Value is a slot or field value: primitive bits, or an object mirror for
// reference tags. A null reference has TagObject and no object.
type Value struct {
	Tag    byte
	Bits   uint64
	Object *Object
}

// Null is the null reference.
var Null = Value{Tag: provider.TagObject}

// IsNull reports whether v is a null reference.
func (v Value) IsNull() bool { return !provider.IsPrimitiveTag(v.Tag) && v.Object == nil }

// IsPrimitive reports whether v holds a primitive.
func (v Value) IsPrimitive() bool { return provider.IsPrimitiveTag(v.Tag) }

// Bool, Int, Long and the other accessors decode primitive bits.
func (v Value) Bool() bool      { return v.Bits != 0 }
func (v Value) Int() int32      { return int32(v.Bits) }
func (v Value) Long() int64     { return int64(v.Bits) }
func (v Value) Float() float32  { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) Double() float64 { return math.Float64frombits(v.Bits) }
func (v Value) Char() uint16    { return uint16(v.Bits) }
func (v Value) ObjectID() ID {
	if v.Object == nil {
		return 0
	}
	return v.Object.ID()
}

// IntValue builds an int value.
func IntValue(i int32) Value { return Value{Tag: provider.TagInt, Bits: uint64(uint32(i))} }

// BoolValue builds a boolean value.
func BoolValue(b bool) Value {
	if b {
		return Value{Tag: provider.TagBoolean, Bits: 1}
	}
	return Value{Tag: provider.TagBoolean}
}

// ObjectValue wraps an object mirror, tagged by its kind.
func ObjectValue(o *Object) Value {
	if o == nil {
		return Null
	}
	return Value{Tag: o.Tag(), Object: o}
}

// defaultValue is the zero value of a field or slot of signature sig.
func defaultValue(sig string) Value {
	if len(sig) == 1 && provider.IsPrimitiveTag(sig[0]) {
		return Value{Tag: sig[0]}
	}
	return Null
}

// valueOf resolves a raw value. declared is the signature the value is read
// as; it fixes the tag of primitives the provider recorded loosely.
func (vm *VM) valueOf(raw provider.Value, declared string) (Value, error) {
	if len(declared) == 1 && provider.IsPrimitiveTag(declared[0]) {
		return Value{Tag: declared[0], Bits: raw.Bits}, nil
	}
	if provider.IsPrimitiveTag(raw.Tag) && declared == "" {
		return Value{Tag: raw.Tag, Bits: raw.Bits}, nil
	}
	if raw.Ref == 0 {
		return Null, nil
	}
	obj, err := vm.objectAt(raw.Ref)
	if err != nil {
		return Value{}, err
	}
	return ObjectValue(obj), nil
}
