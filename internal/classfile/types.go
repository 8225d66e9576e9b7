// Package classfile reads the parts of a class file that a debugger needs:
// member declarations, line and local-variable tables, and the source
// attributes. It does not verify or link.
package classfile

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// Constant is one constant pool slot. Only Utf8 and Class entries are
// resolved; other kinds keep their tag so indices stay aligned.
type Constant struct {
	Tag       uint8
	Utf8      string
	NameIndex uint16
}

// ClassFile is the decoded subset of a class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16

	ConstantPoolCount uint16
	ConstantPool      []Constant
	// RawConstantPool holds the undecoded pool entries, as served by the
	// ReferenceType.ConstantPool command.
	RawConstantPool []byte

	AccessFlags uint16
	ThisClass   uint16
	SuperClass  uint16
	Interfaces  []uint16
	Fields      []MemberInfo
	Methods     []MemberInfo

	SourceFile           string
	SourceDebugExtension string
	Signature            string
	InnerClasses         []InnerClass
}

// MemberInfo is a field or method declaration.
type MemberInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Signature   string
	Code        *CodeAttribute
}

// CodeAttribute is a method's Code attribute and its debug sub-attributes.
type CodeAttribute struct {
	MaxStack  uint16
	MaxLocals uint16
	Code      []byte

	LineNumbers []LineNumber
	// HasLocalVariableTable distinguishes an absent table from an empty one.
	HasLocalVariableTable bool
	LocalVariables        []LocalVariable
}

// LineNumber is one LineNumberTable entry.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LocalVariable is one LocalVariableTable entry, merged with its
// LocalVariableTypeTable signature when present.
type LocalVariable struct {
	StartPC   uint16
	Length    uint16
	Name      string
	Signature string
	Generic   string
	Index     uint16
}

// InnerClass is one InnerClasses entry with resolved names.
type InnerClass struct {
	Inner       string
	Outer       string
	Name        string
	AccessFlags uint16
}
