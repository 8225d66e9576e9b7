package jdwp

import (
	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/mirror"
)

func (s *Server) rtSignature(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	out.String(t.Signature())
	return nil
}

func (s *Server) rtSignatureWithGeneric(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	out.String(t.Signature())
	out.String(t.GenericSignature())
	return nil
}

func (s *Server) rtClassLoader(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	out.Object(t.ClassLoader())
	return nil
}

func (s *Server) rtModifiers(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	out.Int(t.Modifiers())
	return nil
}

func (s *Server) writeFields(in *Reader, out *Writer, generic bool) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	fields, err := t.Fields()
	if err != nil {
		return err
	}
	out.Len(len(fields))
	for _, f := range fields {
		out.ID(uint64(f.ID()))
		out.String(f.Name())
		out.String(f.Signature())
		if generic {
			out.String(f.GenericSignature())
		}
		out.Int(modBits(f.Modifiers()))
	}
	return nil
}

func (s *Server) rtFields(in *Reader, out *Writer) error { return s.writeFields(in, out, false) }

func (s *Server) rtFieldsWithGeneric(in *Reader, out *Writer) error {
	return s.writeFields(in, out, true)
}

func (s *Server) writeMethods(in *Reader, out *Writer, generic bool) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	methods, err := t.Methods()
	if err != nil {
		return err
	}
	out.Len(len(methods))
	for _, m := range methods {
		out.ID(uint64(m.ID()))
		out.String(m.Name())
		out.String(m.Signature())
		if generic {
			out.String(m.GenericSignature())
		}
		out.Int(modBits(m.Modifiers()))
	}
	return nil
}

func (s *Server) rtMethods(in *Reader, out *Writer) error { return s.writeMethods(in, out, false) }

func (s *Server) rtMethodsWithGeneric(in *Reader, out *Writer) error {
	return s.writeMethods(in, out, true)
}

func (s *Server) rtGetValues(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	n, err := readElements(in, IDSize)
	if err != nil {
		return err
	}
	values := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		id := in.ID()
		if err := in.Err(); err != nil {
			return err
		}
		f, err := t.FieldByID(mirror.ID(id))
		if err != nil {
			return err
		}
		v, err := t.StaticValue(f)
		if err != nil {
			return err
		}
		values = append(values, wireValue(v))
	}
	out.Len(len(values))
	for _, v := range values {
		out.Value(v)
	}
	return nil
}

func (s *Server) rtSourceFile(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	name, err := t.SourceName()
	if err != nil {
		return err
	}
	out.String(name)
	return nil
}

func (s *Server) rtNestedTypes(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	nested := t.NestedTypes()
	out.Len(len(nested))
	for _, n := range nested {
		out.TypeRef(n)
	}
	return nil
}

func (s *Server) rtStatus(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	out.Int(t.Status())
	return nil
}

func (s *Server) rtInterfaces(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	if _, ok := t.(*mirror.ArrayType); ok {
		return errs.NotFound(errs.CodeInvalidClass, "class or interface", uint64(t.ID()))
	}
	ifaces, err := t.Interfaces()
	if err != nil {
		return err
	}
	out.Len(len(ifaces))
	for _, i := range ifaces {
		out.ID(uint64(i.ID()))
	}
	return nil
}

func (s *Server) rtClassObject(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	out.Object(t.ClassObject())
	return nil
}

func (s *Server) rtSourceDebugExtension(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	sde, err := t.SourceDebugExtension()
	if err != nil {
		return err
	}
	out.String(sde)
	return nil
}

func (s *Server) rtInstances(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	limit, err := readCount(in)
	if err != nil {
		return err
	}
	objs, err := t.Instances(limit)
	if err != nil {
		return err
	}
	out.Len(len(objs))
	for _, o := range objs {
		out.TaggedObject(o)
	}
	return nil
}

func (s *Server) rtClassFileVersion(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	major, minor, err := t.ClassFileVersion()
	if err != nil {
		return err
	}
	out.Int(major)
	out.Int(minor)
	return nil
}

func (s *Server) rtConstantPool(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	count, data, err := t.ConstantPool()
	if err != nil {
		return err
	}
	out.Int(count)
	out.Len(len(data))
	out.Raw(data)
	return nil
}

func (s *Server) ctSuperclass(in *Reader, out *Writer) error {
	t, err := s.readType(in)
	if err != nil {
		return err
	}
	c, ok := t.(*mirror.ClassType)
	if !ok {
		return errs.NotFound(errs.CodeInvalidClass, "class", uint64(t.ID()))
	}
	if super := c.Superclass(); super != nil {
		out.ID(uint64(super.ID()))
	} else {
		out.ID(0)
	}
	return nil
}

func (s *Server) classObjectReflectedType(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	t, err := o.ReflectedType()
	if err != nil {
		return err
	}
	if t == nil {
		return errs.NotFound(errs.CodeInvalidClass, "reference type of primitive class object", uint64(o.ID()))
	}
	out.TypeRef(t)
	return nil
}

func (s *Server) loaderVisibleClasses(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	types, err := o.VisibleClasses()
	if err != nil {
		return err
	}
	out.Len(len(types))
	for _, t := range types {
		out.TypeRef(t)
	}
	return nil
}

func (s *Server) methodLineTable(in *Reader, out *Writer) error {
	m, err := s.readMethod(in)
	if err != nil {
		return err
	}
	start, end, lines, err := m.LineTable()
	if err != nil {
		return err
	}
	out.Long(start)
	out.Long(end)
	out.Len(len(lines))
	for _, l := range lines {
		out.Long(l.CodeIndex)
		out.Int(l.Line)
	}
	return nil
}

func (s *Server) writeVariableTable(in *Reader, out *Writer, generic bool) error {
	m, err := s.readMethod(in)
	if err != nil {
		return err
	}
	vars, err := m.Variables()
	if err != nil {
		return err
	}
	out.Int(m.ArgSlotCount())
	out.Len(len(vars))
	for _, v := range vars {
		out.Long(v.Start)
		out.String(v.Name)
		out.String(v.Signature)
		if generic {
			out.String(v.GenericSignature)
		}
		out.Int(v.Length)
		out.Int(v.Slot)
	}
	return nil
}

func (s *Server) methodVariableTable(in *Reader, out *Writer) error {
	return s.writeVariableTable(in, out, false)
}

func (s *Server) methodVariableTableWithGeneric(in *Reader, out *Writer) error {
	return s.writeVariableTable(in, out, true)
}

func (s *Server) methodBytecodes(in *Reader, out *Writer) error {
	m, err := s.readMethod(in)
	if err != nil {
		return err
	}
	code := m.Bytecodes()
	out.Len(len(code))
	out.Raw(code)
	return nil
}

func (s *Server) methodIsObsolete(in *Reader, out *Writer) error {
	m, err := s.readMethod(in)
	if err != nil {
		return err
	}
	out.Bool(m.IsObsolete())
	return nil
}
