package mirror

import (
	"strings"
	"sync"

	"github.com/orizon-lang/sajdwp/internal/debug"
	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Type tags of reference types.
const (
	TypeTagClass     byte = 1
	TypeTagInterface byte = 2
	TypeTagArray     byte = 3
)

// Type is a mirror of a Java type. The implementations are *ClassType,
// *InterfaceType, *ArrayType, *PrimitiveType and *VoidType.
type Type interface {
	// Signature is the JNI signature, e.g. "I" or "Ljava/lang/String;".
	Signature() string
	// Name is the Java language name, e.g. "int" or "java.lang.String".
	Name() string
	// Tag is the value tag of values of this type.
	Tag() byte
	isType()
}

// ReferenceType is a class, interface or array type.
type ReferenceType interface {
	Type
	ID() ID
	TypeTag() byte
	Klass() *provider.Klass
	VM() *VM
	GenericSignature() string
	Modifiers() int32
	Status() int32
	IsPrepared() bool

	Fields() ([]*Field, error)
	AllFields() ([]*Field, error)
	VisibleFields() ([]*Field, error)
	FieldByID(id ID) (*Field, error)
	FieldByName(name string) (*Field, error)
	Methods() ([]*Method, error)
	AllMethods() ([]*Method, error)
	VisibleMethods() ([]*Method, error)
	MethodByID(id ID) (*Method, error)
	MethodsByName(name, signature string) ([]*Method, error)
	Interfaces() ([]*InterfaceType, error)
	IsAssignableTo(other ReferenceType) bool
	NestedTypes() []ReferenceType

	ClassLoader() *Object
	ClassObject() *Object
	StaticValue(f *Field) (Value, error)
	Instances(max int) ([]*Object, error)
	ClassFileVersion() (major, minor int32, err error)
	ConstantPool() (count int32, data []byte, err error)

	SourceName() (string, error)
	SourceNames(stratum string) ([]string, error)
	SourcePaths(stratum string) ([]string, error)
	SourceDebugExtension() (string, error)
	AvailableStrata() []string
	DefaultStratum() string
	AllLineLocations(stratum, sourceName string) ([]Location, error)
	LocationsOfLine(stratum, sourceName string, line int32) ([]Location, error)

	base() *refType
}

// SameType reports whether a and b mirror the same class in the same
// session.
func SameType(a, b ReferenceType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := a.base(), b.base()
	return ra.klass.Address == rb.klass.Address && ra.vm.session == rb.vm.session
}

// memo computes a value once.
type memo[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (m *memo[T]) get(f func() (T, error)) (T, error) {
	m.once.Do(func() { m.val, m.err = f() })
	return m.val, m.err
}

// refType carries the state shared by every reference type variant. Member
// lists are resolved once; klass data never changes once prepared.
type refType struct {
	vm    *VM
	self  ReferenceType
	klass *provider.Klass
	id    ID

	fields     memo[[]*Field]
	allFields  memo[[]*Field]
	methods    memo[[]*Method]
	allMethods memo[[]*Method]
	interfaces memo[[]*InterfaceType]
	nested     memo[[]ReferenceType]

	sdeOnce sync.Once
	sde     *debug.SMAP
}

var noSDE = &debug.SMAP{}

func (r *refType) base() *refType         { return r }
func (r *refType) isType()                {}
func (r *refType) ID() ID                 { return r.id }
func (r *refType) Klass() *provider.Klass { return r.klass }
func (r *refType) VM() *VM                { return r.vm }

// GenericSignature returns the generic signature, or "" when there is none.
func (r *refType) GenericSignature() string {
	if r.klass.IsArray() {
		return ""
	}
	return r.klass.GenericSignature
}

func (r *refType) Modifiers() int32 {
	return int32(r.klass.AccessFlags &^ provider.AccSuper & 0xFFFF)
}

func (r *refType) Status() int32 { return int32(r.klass.Status & 0xF) }

func (r *refType) IsPrepared() bool { return r.klass.Status&provider.StatusPrepared != 0 }

func (r *refType) checkPrepared() error {
	if !r.IsPrepared() {
		return errs.ClassNotPrepared(r.klass.Name)
	}
	return nil
}

func (r *refType) ClassLoader() *Object {
	k := r.klass
	for k.IsArray() && k.Component != 0 {
		c, ok := r.vm.p.Klass(k.Component)
		if !ok {
			break
		}
		k = c
	}
	if k.Loader == 0 {
		return nil
	}
	obj, err := r.vm.objectAt(k.Loader)
	if err != nil {
		r.vm.log.Warningf("class loader of %s: %s", r.klass.Name, err)
		return nil
	}
	return obj
}

func (r *refType) ClassObject() *Object {
	if r.klass.Mirror == 0 {
		return nil
	}
	obj, err := r.vm.objectAt(r.klass.Mirror)
	if err != nil {
		r.vm.log.Warningf("class object of %s: %s", r.klass.Name, err)
		return nil
	}
	return obj
}

func (r *refType) ClassFileVersion() (int32, int32, error) {
	if r.klass.IsArray() {
		return 0, 0, errs.AbsentInformation("class file version of an array type")
	}
	return int32(r.klass.MajorVersion), int32(r.klass.MinorVersion), nil
}

func (r *refType) ConstantPool() (int32, []byte, error) {
	if r.klass.IsArray() {
		return 0, []byte{}, nil
	}
	if r.klass.ConstantPool == nil {
		return 0, nil, errs.AbsentInformation("constant pool of " + r.klass.Name)
	}
	return int32(r.klass.ConstantPoolCount), r.klass.ConstantPool, nil
}

// ClassType mirrors a class.
type ClassType struct {
	*refType
	subclasses memo[[]*ClassType]
	allIfaces  memo[[]*InterfaceType]
}

func (t *ClassType) Signature() string { return "L" + t.klass.Name + ";" }
func (t *ClassType) Name() string      { return javaName(t.klass.Name) }
func (t *ClassType) Tag() byte         { return provider.TagObject }
func (t *ClassType) TypeTag() byte     { return TypeTagClass }

// IsEnum reports whether the superclass is java.lang.Enum.
func (t *ClassType) IsEnum() bool {
	s := t.Superclass()
	return s != nil && s.klass.Name == "java/lang/Enum"
}

// InterfaceType mirrors an interface.
type InterfaceType struct {
	*refType
	implementors  memo[[]*ClassType]
	subinterfaces memo[[]*InterfaceType]
}

func (t *InterfaceType) Signature() string { return "L" + t.klass.Name + ";" }
func (t *InterfaceType) Name() string      { return javaName(t.klass.Name) }
func (t *InterfaceType) Tag() byte         { return provider.TagObject }
func (t *InterfaceType) TypeTag() byte     { return TypeTagInterface }

// ArrayType mirrors an array class.
type ArrayType struct {
	*refType
}

func (t *ArrayType) Signature() string { return t.klass.Name }
func (t *ArrayType) Name() string      { return TypeName(t.klass.Name) }
func (t *ArrayType) Tag() byte         { return provider.TagArray }
func (t *ArrayType) TypeTag() byte     { return TypeTagArray }

// ComponentSignature returns the signature of the element type.
func (t *ArrayType) ComponentSignature() string { return t.klass.Name[1:] }

// ComponentType resolves the element type.
func (t *ArrayType) ComponentType() (Type, error) {
	return t.vm.FindType(t.ComponentSignature())
}

// PrimitiveType mirrors one of the eight primitive types.
type PrimitiveType struct {
	vm  *VM
	tag byte
}

func (t *PrimitiveType) isType()           {}
func (t *PrimitiveType) Signature() string { return string(t.tag) }
func (t *PrimitiveType) Name() string      { return TypeName(string(t.tag)) }
func (t *PrimitiveType) Tag() byte         { return t.tag }

// VoidType mirrors void.
type VoidType struct {
	vm *VM
}

func (t *VoidType) isType()           {}
func (t *VoidType) Signature() string { return "V" }
func (t *VoidType) Name() string      { return "void" }
func (t *VoidType) Tag() byte         { return provider.TagVoid }

func javaName(internal string) string { return strings.ReplaceAll(internal, "/", ".") }

// TypeName converts a JNI signature to a Java language type name.
func TypeName(sig string) string {
	dims := 0
	for dims < len(sig) && sig[dims] == '[' {
		dims++
	}
	elem := sig[dims:]
	var name string
	switch elem {
	case "Z":
		name = "boolean"
	case "B":
		name = "byte"
	case "C":
		name = "char"
	case "S":
		name = "short"
	case "I":
		name = "int"
	case "J":
		name = "long"
	case "F":
		name = "float"
	case "D":
		name = "double"
	case "V":
		name = "void"
	default:
		name = javaName(strings.TrimSuffix(strings.TrimPrefix(elem, "L"), ";"))
	}
	return name + strings.Repeat("[]", dims)
}
