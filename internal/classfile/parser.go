package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	return ParseBytes(data)
}

// reader is a bounds-checked big-endian cursor.
type reader struct {
	data []byte
	off  int
}

func (r *reader) need(n int, what string) error {
	if n < 0 || r.off+n > len(r.data) {
		return fmt.Errorf("truncated %s at offset %d", what, r.off)
	}
	return nil
}

func (r *reader) u1(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *reader) u2(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u4(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	v := r.data[r.off : r.off+n]
	r.off += n
	return v, nil
}

// ParseBytes decodes a class file image.
func ParseBytes(data []byte) (*ClassFile, error) {
	r := &reader{data: data}
	cf := &ClassFile{}

	magic, err := r.u4("magic")
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}
	if cf.MinorVersion, err = r.u2("minor version"); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = r.u2("major version"); err != nil {
		return nil, err
	}
	if cf.ConstantPoolCount, err = r.u2("constant pool count"); err != nil {
		return nil, err
	}
	start := r.off
	if cf.ConstantPool, err = parseConstantPool(r, cf.ConstantPoolCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.RawConstantPool = append([]byte(nil), data[start:r.off]...)

	if cf.AccessFlags, err = r.u2("access flags"); err != nil {
		return nil, err
	}
	if cf.ThisClass, err = r.u2("this_class"); err != nil {
		return nil, err
	}
	if cf.SuperClass, err = r.u2("super_class"); err != nil {
		return nil, err
	}
	n, err := r.u2("interfaces count")
	if err != nil {
		return nil, err
	}
	cf.Interfaces = make([]uint16, n)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = r.u2("interface"); err != nil {
			return nil, err
		}
	}
	if cf.Fields, err = parseMembers(r, cf, "field"); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	if cf.Methods, err = parseMembers(r, cf, "method"); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}
	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	return cf, nil
}

func parseConstantPool(r *reader, count uint16) ([]Constant, error) {
	pool := make([]Constant, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.u1("constant tag")
		if err != nil {
			return nil, err
		}
		pool[i].Tag = tag
		switch tag {
		case TagUtf8:
			n, err := r.u2("utf8 length")
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n), "utf8 bytes")
			if err != nil {
				return nil, err
			}
			pool[i].Utf8 = decodeModifiedUTF8(b)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			idx, err := r.u2("constant index")
			if err != nil {
				return nil, err
			}
			pool[i].NameIndex = idx
		case TagInteger, TagFloat, TagFieldref, TagMethodref, TagInterfaceMethodref,
			TagNameAndType, TagDynamic, TagInvokeDynamic:
			if _, err := r.bytes(4, "constant payload"); err != nil {
				return nil, err
			}
		case TagLong, TagDouble:
			if _, err := r.bytes(8, "constant payload"); err != nil {
				return nil, err
			}
			i++ // takes two slots
		case TagMethodHandle:
			if _, err := r.bytes(3, "method handle"); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}
	return pool, nil
}

// Utf8 resolves a Utf8 constant.
func (cf *ClassFile) Utf8(index uint16) (string, error) {
	if int(index) == 0 || int(index) >= len(cf.ConstantPool) {
		return "", fmt.Errorf("constant pool index %d out of range", index)
	}
	c := cf.ConstantPool[index]
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag %d)", index, c.Tag)
	}
	return c.Utf8, nil
}

// ClassNameAt resolves a Class constant to its internal name.
func (cf *ClassFile) ClassNameAt(index uint16) (string, error) {
	if int(index) == 0 || int(index) >= len(cf.ConstantPool) {
		return "", fmt.Errorf("constant pool index %d out of range", index)
	}
	c := cf.ConstantPool[index]
	if c.Tag != TagClass {
		return "", fmt.Errorf("constant pool index %d is not a class (tag %d)", index, c.Tag)
	}
	return cf.Utf8(c.NameIndex)
}

// ClassName returns the internal name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.ClassNameAt(cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MemberInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by name.
func (cf *ClassFile) FindField(name string) *MemberInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

type attribute struct {
	name string
	data []byte
}

func parseAttributes(r *reader, cf *ClassFile) ([]attribute, error) {
	count, err := r.u2("attributes count")
	if err != nil {
		return nil, err
	}
	attrs := make([]attribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameIndex, err := r.u2("attribute name")
		if err != nil {
			return nil, err
		}
		length, err := r.u4("attribute length")
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(length), "attribute data")
		if err != nil {
			return nil, err
		}
		name, err := cf.Utf8(nameIndex)
		if err != nil {
			continue // unnamed attributes are skipped
		}
		attrs = append(attrs, attribute{name: name, data: data})
	}
	return attrs, nil
}

func parseMembers(r *reader, cf *ClassFile, kind string) ([]MemberInfo, error) {
	count, err := r.u2(kind + " count")
	if err != nil {
		return nil, err
	}
	members := make([]MemberInfo, count)
	for i := range members {
		var nameIndex, descIndex uint16
		m := &members[i]
		if m.AccessFlags, err = r.u2(kind + " access flags"); err != nil {
			return nil, err
		}
		if nameIndex, err = r.u2(kind + " name"); err != nil {
			return nil, err
		}
		if descIndex, err = r.u2(kind + " descriptor"); err != nil {
			return nil, err
		}
		if m.Name, err = cf.Utf8(nameIndex); err != nil {
			return nil, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
		}
		if m.Descriptor, err = cf.Utf8(descIndex); err != nil {
			return nil, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
		}
		attrs, err := parseAttributes(r, cf)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %s attributes: %w", kind, m.Name, err)
		}
		for _, a := range attrs {
			switch a.name {
			case "Signature":
				if m.Signature, err = utf8Attr(cf, a.data); err != nil {
					return nil, err
				}
			case "Code":
				if m.Code, err = parseCodeAttribute(cf, a.data); err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", m.Name, err)
				}
			}
		}
	}
	return members, nil
}

func utf8Attr(cf *ClassFile, data []byte) (string, error) {
	if len(data) < 2 {
		return "", fmt.Errorf("attribute too short")
	}
	return cf.Utf8(binary.BigEndian.Uint16(data))
}

func parseCodeAttribute(cf *ClassFile, data []byte) (*CodeAttribute, error) {
	r := &reader{data: data}
	code := &CodeAttribute{}
	var err error
	if code.MaxStack, err = r.u2("max stack"); err != nil {
		return nil, err
	}
	if code.MaxLocals, err = r.u2("max locals"); err != nil {
		return nil, err
	}
	n, err := r.u4("code length")
	if err != nil {
		return nil, err
	}
	b, err := r.bytes(int(n), "code")
	if err != nil {
		return nil, err
	}
	code.Code = append([]byte(nil), b...)
	handlers, err := r.u2("exception table length")
	if err != nil {
		return nil, err
	}
	if _, err := r.bytes(int(handlers)*8, "exception table"); err != nil {
		return nil, err
	}
	attrs, err := parseAttributes(r, cf)
	if err != nil {
		return nil, err
	}
	generics := make(map[[2]uint16]string)
	for _, a := range attrs {
		switch a.name {
		case "LineNumberTable":
			ar := &reader{data: a.data}
			count, err := ar.u2("line table length")
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(count); i++ {
				pc, err := ar.u2("line start")
				if err != nil {
					return nil, err
				}
				line, err := ar.u2("line number")
				if err != nil {
					return nil, err
				}
				code.LineNumbers = append(code.LineNumbers, LineNumber{StartPC: pc, Line: line})
			}
		case "LocalVariableTable":
			code.HasLocalVariableTable = true
			vars, err := parseLocals(cf, a.data)
			if err != nil {
				return nil, err
			}
			code.LocalVariables = append(code.LocalVariables, vars...)
		case "LocalVariableTypeTable":
			vars, err := parseLocals(cf, a.data)
			if err != nil {
				return nil, err
			}
			for _, v := range vars {
				generics[[2]uint16{v.StartPC, v.Index}] = v.Signature
			}
		}
	}
	for i := range code.LocalVariables {
		v := &code.LocalVariables[i]
		v.Generic = generics[[2]uint16{v.StartPC, v.Index}]
	}
	return code, nil
}

func parseLocals(cf *ClassFile, data []byte) ([]LocalVariable, error) {
	r := &reader{data: data}
	count, err := r.u2("local variable table length")
	if err != nil {
		return nil, err
	}
	vars := make([]LocalVariable, count)
	for i := range vars {
		v := &vars[i]
		var nameIndex, sigIndex uint16
		if v.StartPC, err = r.u2("local start"); err != nil {
			return nil, err
		}
		if v.Length, err = r.u2("local length"); err != nil {
			return nil, err
		}
		if nameIndex, err = r.u2("local name"); err != nil {
			return nil, err
		}
		if sigIndex, err = r.u2("local signature"); err != nil {
			return nil, err
		}
		if v.Index, err = r.u2("local index"); err != nil {
			return nil, err
		}
		if v.Name, err = cf.Utf8(nameIndex); err != nil {
			return nil, err
		}
		if v.Signature, err = cf.Utf8(sigIndex); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

func (cf *ClassFile) parseClassAttributes(r *reader) error {
	attrs, err := parseAttributes(r, cf)
	if err != nil {
		return err
	}
	for _, a := range attrs {
		switch a.name {
		case "SourceFile":
			if cf.SourceFile, err = utf8Attr(cf, a.data); err != nil {
				return fmt.Errorf("SourceFile: %w", err)
			}
		case "Signature":
			if cf.Signature, err = utf8Attr(cf, a.data); err != nil {
				return fmt.Errorf("Signature: %w", err)
			}
		case "SourceDebugExtension":
			cf.SourceDebugExtension = decodeModifiedUTF8(a.data)
		case "InnerClasses":
			if err := cf.parseInnerClasses(a.data); err != nil {
				return fmt.Errorf("InnerClasses: %w", err)
			}
		}
	}
	return nil
}

func (cf *ClassFile) parseInnerClasses(data []byte) error {
	r := &reader{data: data}
	count, err := r.u2("inner classes count")
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		var inner, outer, name, flags uint16
		if inner, err = r.u2("inner class"); err != nil {
			return err
		}
		if outer, err = r.u2("outer class"); err != nil {
			return err
		}
		if name, err = r.u2("inner name"); err != nil {
			return err
		}
		if flags, err = r.u2("inner flags"); err != nil {
			return err
		}
		ic := InnerClass{AccessFlags: flags}
		if ic.Inner, err = cf.ClassNameAt(inner); err != nil {
			return err
		}
		if outer != 0 {
			ic.Outer, _ = cf.ClassNameAt(outer)
		}
		if name != 0 {
			ic.Name, _ = cf.Utf8(name)
		}
		cf.InnerClasses = append(cf.InnerClasses, ic)
	}
	return nil
}

// decodeModifiedUTF8 decodes the class-file UTF-8 variant: NUL is encoded on
// two bytes and supplementary characters as surrogate pairs.
func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return utf16String(units)
}
