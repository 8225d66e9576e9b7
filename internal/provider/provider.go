// Package provider defines the read-only introspection contract the bridge
// consumes and the records it returns. A provider describes one frozen
// target: its loaded klasses, heap entities and threads.
package provider

// Address is the raw identity of an introspected entity. Addresses are stable
// for the lifetime of a snapshot and are used directly as protocol ids.
type Address uint64

// Class access flags used by the bridge.
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccVolatile   = 0x0040
	AccTransient  = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
)

// Class status bits as reported by the runtime.
const (
	StatusVerified    = 1
	StatusPrepared    = 2
	StatusInitialized = 4
	StatusError       = 8
)

// JVMTI-style thread state bits stored in the threadStatus field.
const (
	ThreadAlive            = 0x0001
	ThreadTerminated       = 0x0002
	ThreadRunnable         = 0x0004
	ThreadWaitingIndefinit = 0x0010
	ThreadWaitingTimeout   = 0x0020
	ThreadSleeping         = 0x0040
	ThreadWaiting          = 0x0080
	ThreadInObjectWait     = 0x0100
	ThreadParked           = 0x0200
	ThreadBlockedOnMonitor = 0x0400
)

// VMInfo describes the target runtime.
type VMInfo struct {
	Name        string `json:"name" cbor:"name"`
	Version     string `json:"version" cbor:"version"`
	Vendor      string `json:"vendor" cbor:"vendor"`
	SpecVersion string `json:"specVersion" cbor:"specVersion"`
	Description string `json:"description" cbor:"description"`
	// Compressed class pointers: a heap entity with a zero Klass carries a
	// NarrowKlass decoded as base + narrow<<shift.
	CompressedKlassPointers bool    `json:"compressedKlassPointers" cbor:"compressedKlassPointers"`
	NarrowKlassBase         Address `json:"narrowKlassBase" cbor:"narrowKlassBase"`
	NarrowKlassShift        uint    `json:"narrowKlassShift" cbor:"narrowKlassShift"`
}

// Klass is a loaded class, interface or array class.
type Klass struct {
	Address     Address `json:"address" cbor:"address"`
	Name        string  `json:"name" cbor:"name"` // internal form: java/lang/String, [I, [Ljava/lang/Object;
	AccessFlags uint32  `json:"accessFlags" cbor:"accessFlags"`
	Status      uint32  `json:"status" cbor:"status"`

	Super      Address   `json:"super,omitempty" cbor:"super,omitempty"`
	Interfaces []Address `json:"interfaces,omitempty" cbor:"interfaces,omitempty"`
	// TransitiveInterfaces is recorded by runtimes that keep the flattened
	// list on the klass (9 and later).
	TransitiveInterfaces []Address `json:"transitiveInterfaces,omitempty" cbor:"transitiveInterfaces,omitempty"`

	// Component is the element klass of an object array.
	Component Address `json:"component,omitempty" cbor:"component,omitempty"`

	Fields  []Field  `json:"fields,omitempty" cbor:"fields,omitempty"`
	Methods []Method `json:"methods,omitempty" cbor:"methods,omitempty"`

	SourceFile           string   `json:"sourceFile,omitempty" cbor:"sourceFile,omitempty"`
	SourceDebugExtension string   `json:"sourceDebugExtension,omitempty" cbor:"sourceDebugExtension,omitempty"`
	GenericSignature     string   `json:"genericSignature,omitempty" cbor:"genericSignature,omitempty"`
	InnerClasses         []string `json:"innerClasses,omitempty" cbor:"innerClasses,omitempty"`

	Loader Address `json:"loader,omitempty" cbor:"loader,omitempty"`
	Mirror Address `json:"mirror,omitempty" cbor:"mirror,omitempty"`

	MajorVersion      uint16 `json:"majorVersion,omitempty" cbor:"majorVersion,omitempty"`
	MinorVersion      uint16 `json:"minorVersion,omitempty" cbor:"minorVersion,omitempty"`
	ConstantPoolCount uint32 `json:"constantPoolCount,omitempty" cbor:"constantPoolCount,omitempty"`
	ConstantPool      []byte `json:"constantPool,omitempty" cbor:"constantPool,omitempty"`

	// ClassFile optionally carries the raw class bytes. Providers use it to
	// recover attributes the snapshot did not record directly.
	ClassFile []byte `json:"classFile,omitempty" cbor:"classFile,omitempty"`
}

// IsInterface reports whether k is an interface klass.
func (k *Klass) IsInterface() bool { return k.AccessFlags&AccInterface != 0 }

// IsArray reports whether k is an array klass.
func (k *Klass) IsArray() bool { return len(k.Name) > 0 && k.Name[0] == '[' }

// Field is a declared field.
type Field struct {
	Address          Address `json:"address" cbor:"address"`
	Name             string  `json:"name" cbor:"name"`
	Signature        string  `json:"signature" cbor:"signature"`
	GenericSignature string  `json:"genericSignature,omitempty" cbor:"genericSignature,omitempty"`
	AccessFlags      uint32  `json:"accessFlags" cbor:"accessFlags"`
	// StaticValue holds the value of a static field.
	StaticValue *Value `json:"staticValue,omitempty" cbor:"staticValue,omitempty"`
}

// LineEntry is one raw line-number table entry.
type LineEntry struct {
	BCI  int64 `json:"bci" cbor:"bci"`
	Line int32 `json:"line" cbor:"line"`
}

// LocalVariable is one raw local-variable table entry.
type LocalVariable struct {
	Start            int64  `json:"start" cbor:"start"`
	Length           int32  `json:"length" cbor:"length"`
	Name             string `json:"name" cbor:"name"`
	Signature        string `json:"signature" cbor:"signature"`
	GenericSignature string `json:"genericSignature,omitempty" cbor:"genericSignature,omitempty"`
	Slot             int32  `json:"slot" cbor:"slot"`
}

// Method is a declared method.
type Method struct {
	Address          Address `json:"address" cbor:"address"`
	Name             string  `json:"name" cbor:"name"`
	Signature        string  `json:"signature" cbor:"signature"`
	GenericSignature string  `json:"genericSignature,omitempty" cbor:"genericSignature,omitempty"`
	AccessFlags      uint32  `json:"accessFlags" cbor:"accessFlags"`
	// Holder is the declaring klass as recorded by the runtime.
	Holder    Address `json:"holder,omitempty" cbor:"holder,omitempty"`
	MaxLocals int32   `json:"maxLocals" cbor:"maxLocals"`
	ArgSize   int32   `json:"argSize" cbor:"argSize"`
	Code      []byte  `json:"code,omitempty" cbor:"code,omitempty"`

	Lines []LineEntry `json:"lines,omitempty" cbor:"lines,omitempty"`
	// HasLocalVariableTable distinguishes an empty table from a missing one.
	HasLocalVariableTable bool            `json:"hasLocalVariableTable,omitempty" cbor:"hasLocalVariableTable,omitempty"`
	Locals                []LocalVariable `json:"locals,omitempty" cbor:"locals,omitempty"`
	Obsolete              bool            `json:"obsolete,omitempty" cbor:"obsolete,omitempty"`
}

// IsNative reports whether m has no bytecode.
func (m *Method) IsNative() bool { return m.AccessFlags&AccNative != 0 }

// IsAbstract reports whether m is abstract.
func (m *Method) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// IsStatic reports whether m is static.
func (m *Method) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }

// Value tags. Primitive tags equal their signature characters.
const (
	TagArray       byte = '['
	TagByte        byte = 'B'
	TagChar        byte = 'C'
	TagObject      byte = 'L'
	TagFloat       byte = 'F'
	TagDouble      byte = 'D'
	TagInt         byte = 'I'
	TagLong        byte = 'J'
	TagShort       byte = 'S'
	TagVoid        byte = 'V'
	TagBoolean     byte = 'Z'
	TagString      byte = 's'
	TagThread      byte = 't'
	TagThreadGroup byte = 'g'
	TagClassLoader byte = 'l'
	TagClassObject byte = 'c'
)

// IsPrimitiveTag reports whether tag denotes a primitive value.
func IsPrimitiveTag(tag byte) bool {
	switch tag {
	case TagByte, TagChar, TagFloat, TagDouble, TagInt, TagLong, TagShort, TagBoolean:
		return true
	}
	return false
}

// Value is a raw slot value. Bits holds primitive payloads; Ref holds the
// address of a referenced heap entity (0 is null). Tag uses JDWP tag bytes.
type Value struct {
	Tag  byte    `json:"tag" cbor:"tag"`
	Bits uint64  `json:"bits,omitempty" cbor:"bits,omitempty"`
	Ref  Address `json:"ref,omitempty" cbor:"ref,omitempty"`
}

// Oop is one heap entity.
type Oop struct {
	Address     Address `json:"address" cbor:"address"`
	Klass       Address `json:"klass,omitempty" cbor:"klass,omitempty"`
	NarrowKlass uint32  `json:"narrowKlass,omitempty" cbor:"narrowKlass,omitempty"`
	// Fields are instance field values keyed by field address.
	Fields map[Address]Value `json:"fields,omitempty" cbor:"fields,omitempty"`
	// Elements are the array elements of an array entity.
	Elements []Value `json:"elements,omitempty" cbor:"elements,omitempty"`
	// MirrorOf is the klass a java.lang.Class instance stands for.
	MirrorOf Address `json:"mirrorOf,omitempty" cbor:"mirrorOf,omitempty"`
	// Monitor describes lock ownership for this entity.
	Monitor *Monitor `json:"monitor,omitempty" cbor:"monitor,omitempty"`
}

// Monitor records the owner and waiters of an object monitor.
type Monitor struct {
	Owner      Address   `json:"owner,omitempty" cbor:"owner,omitempty"`
	EntryCount int32     `json:"entryCount,omitempty" cbor:"entryCount,omitempty"`
	Waiters    []Address `json:"waiters,omitempty" cbor:"waiters,omitempty"`
}

// Frame is one activation record of a thread, youngest first.
type Frame struct {
	Method Address `json:"method" cbor:"method"`
	BCI    int64   `json:"bci" cbor:"bci"`
	// Locals are slot-indexed values.
	Locals []Value `json:"locals,omitempty" cbor:"locals,omitempty"`
}

// MonitorInfo is an owned monitor and the frame depth that acquired it.
type MonitorInfo struct {
	Object Address `json:"object" cbor:"object"`
	Depth  int32   `json:"depth" cbor:"depth"`
}

// Thread is a Java thread and its stack.
type Thread struct {
	// Oop is the java.lang.Thread instance.
	Oop              Address       `json:"oop" cbor:"oop"`
	Hidden           bool          `json:"hidden,omitempty" cbor:"hidden,omitempty"`
	Frames           []Frame       `json:"frames,omitempty" cbor:"frames,omitempty"`
	OwnedMonitors    []MonitorInfo `json:"ownedMonitors,omitempty" cbor:"ownedMonitors,omitempty"`
	ContendedMonitor Address       `json:"contendedMonitor,omitempty" cbor:"contendedMonitor,omitempty"`
}

// Provider supplies the target's data. Implementations are read-only; the
// bridge never mutates returned records.
type Provider interface {
	// Info describes the target runtime.
	Info() VMInfo
	// Property returns a system property of the target.
	Property(key string) (string, bool)
	// Klasses enumerates every loaded klass, prepared or not.
	Klasses() []*Klass
	// PrimitiveArrayKlasses lists the single-dimension primitive array
	// klasses, which the loaded-class enumeration does not include.
	PrimitiveArrayKlasses() []*Klass
	// Klass resolves a klass address.
	Klass(addr Address) (*Klass, bool)
	// Object resolves a heap entity address.
	Object(addr Address) (*Oop, bool)
	// Heap calls fn for each heap entity until fn returns false.
	Heap(fn func(*Oop) bool)
	// Threads lists the target's threads.
	Threads() []*Thread
	// Close releases the provider's resources.
	Close() error
}
