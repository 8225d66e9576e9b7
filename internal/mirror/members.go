package mirror

import (
	"sync"

	"github.com/orizon-lang/sajdwp/internal/debug"
	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Field mirrors a declared field.
type Field struct {
	declaring ReferenceType
	raw       *provider.Field
}

func (f *Field) ID() ID                       { return ID(f.raw.Address) }
func (f *Field) Name() string                 { return f.raw.Name }
func (f *Field) Signature() string            { return f.raw.Signature }
func (f *Field) GenericSignature() string     { return f.raw.GenericSignature }
func (f *Field) Modifiers() int32             { return int32(f.raw.AccessFlags & 0xFFFF) }
func (f *Field) IsStatic() bool               { return f.raw.AccessFlags&provider.AccStatic != 0 }
func (f *Field) DeclaringType() ReferenceType { return f.declaring }

// Method mirrors a declared method. Line tables are built on first use.
type Method struct {
	declaring ReferenceType
	raw       *provider.Method
	id        ID

	mu    sync.Mutex
	lines *debug.LineTable
	other *debug.LineTable
	vars  memo[[]LocalVariable]
}

func (m *Method) ID() ID                       { return m.id }
func (m *Method) Name() string                 { return m.raw.Name }
func (m *Method) Signature() string            { return m.raw.Signature }
func (m *Method) GenericSignature() string     { return m.raw.GenericSignature }
func (m *Method) Modifiers() int32             { return int32(m.raw.AccessFlags & 0xFFFF) }
func (m *Method) DeclaringType() ReferenceType { return m.declaring }
func (m *Method) IsNative() bool               { return m.raw.IsNative() }
func (m *Method) IsAbstract() bool             { return m.raw.IsAbstract() }
func (m *Method) IsStatic() bool               { return m.raw.IsStatic() }
func (m *Method) IsObsolete() bool             { return m.raw.Obsolete }

// IsConcrete reports whether the method has bytecode.
func (m *Method) IsConcrete() bool { return !m.IsNative() && !m.IsAbstract() }

// MaxLocals returns the size of the frame's local slot area.
func (m *Method) MaxLocals() int32 { return m.raw.MaxLocals }

// ArgSlotCount returns the number of slots taken by arguments, including
// the receiver.
func (m *Method) ArgSlotCount() int32 { return m.raw.ArgSize }

// Bytecodes returns a copy of the method's code.
func (m *Method) Bytecodes() []byte {
	out := make([]byte, len(m.raw.Code))
	copy(out, m.raw.Code)
	return out
}

// CodeRange returns the first and last valid code index, or -1, -1 when the
// method has no code.
func (m *Method) CodeRange() (int64, int64) {
	if len(m.raw.Code) == 0 {
		return -1, -1
	}
	return 0, int64(len(m.raw.Code)) - 1
}

func (r *refType) newField(f *provider.Field) *Field {
	return &Field{declaring: r.self, raw: f}
}

func (r *refType) newMethod(m *provider.Method) *Method {
	return &Method{declaring: r.self, raw: m, id: ID(r.vm.compat.MethodAddress(m))}
}

// Fields returns the declared fields in declaration order.
func (r *refType) Fields() ([]*Field, error) {
	if r.klass.IsArray() {
		return []*Field{}, nil
	}
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	return r.fields.get(func() ([]*Field, error) {
		out := make([]*Field, 0, len(r.klass.Fields))
		for i := range r.klass.Fields {
			f := &r.klass.Fields[i]
			if r.klass.Name == javaLangThrowable && f.Name == "backtrace" {
				continue
			}
			out = append(out, r.newField(f))
		}
		return out, nil
	})
}

// AllFields returns the declared fields followed by those of every
// transitive interface and then those of each superclass.
func (r *refType) AllFields() ([]*Field, error) {
	if r.klass.IsArray() {
		return []*Field{}, nil
	}
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	return r.allFields.get(func() ([]*Field, error) {
		own, err := r.Fields()
		if err != nil {
			return nil, err
		}
		out := append([]*Field(nil), own...)
		for _, ik := range r.vm.compat.TransitiveInterfaces(r.klass) {
			t, err := r.vm.typeAt(ik.Address)
			if err != nil {
				return nil, err
			}
			fs, err := t.Fields()
			if err != nil {
				return nil, err
			}
			out = append(out, fs...)
		}
		if r.klass.IsInterface() {
			return out, nil
		}
		for s := r.superclass(); s != nil; s = s.superclass() {
			fs, err := s.Fields()
			if err != nil {
				return nil, err
			}
			out = append(out, fs...)
		}
		return out, nil
	})
}

// inheritedTypes lists the types members are inherited from: the superclass
// then the direct interfaces for a class, the super-interfaces for an
// interface.
func (r *refType) inheritedTypes() ([]ReferenceType, error) {
	var out []ReferenceType
	if r.klass.IsArray() {
		return out, nil
	}
	if !r.klass.IsInterface() {
		if s := r.superclass(); s != nil {
			out = append(out, s)
		}
	}
	ifaces, err := r.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, i := range ifaces {
		out = append(out, i)
	}
	return out, nil
}

// VisibleFields returns the declared fields followed by the inherited ones
// not hidden by a declared field. A name inherited from two different
// declarations is ambiguous and dropped.
func (r *refType) VisibleFields() ([]*Field, error) {
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	var visible []*Field
	table := make(map[string]*Field)
	ambiguous := make(map[string]bool)
	inherited, err := r.inheritedTypes()
	if err != nil {
		return nil, err
	}
	for _, t := range inherited {
		if err := addVisibleFields(t, &visible, table, ambiguous); err != nil {
			return nil, err
		}
	}
	own, err := r.Fields()
	if err != nil {
		return nil, err
	}
	for _, f := range own {
		if hidden, ok := table[f.Name()]; ok {
			visible = removeField(visible, hidden)
		}
	}
	out := make([]*Field, 0, len(own)+len(visible))
	out = append(out, own...)
	return append(out, visible...), nil
}

func addVisibleFields(t ReferenceType, visible *[]*Field, table map[string]*Field, ambiguous map[string]bool) error {
	list, err := t.VisibleFields()
	if err != nil {
		return err
	}
	for _, f := range list {
		name := f.Name()
		if ambiguous[name] {
			continue
		}
		dup, ok := table[name]
		switch {
		case !ok:
			*visible = append(*visible, f)
			table[name] = f
		case dup.ID() != f.ID():
			ambiguous[name] = true
			delete(table, name)
			*visible = removeField(*visible, dup)
		}
	}
	return nil
}

func removeField(list []*Field, f *Field) []*Field {
	for i, x := range list {
		if x.ID() == f.ID() {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// FieldByID finds a field declared by this type or inherited by it.
func (r *refType) FieldByID(id ID) (*Field, error) {
	all, err := r.AllFields()
	if err != nil {
		return nil, err
	}
	for _, f := range all {
		if f.ID() == id {
			return f, nil
		}
	}
	return nil, errs.NotFound(errs.CodeInvalidFieldID, "field", uint64(id))
}

// FieldByName returns the visible field with the given name, or nil.
func (r *refType) FieldByName(name string) (*Field, error) {
	visible, err := r.VisibleFields()
	if err != nil {
		return nil, err
	}
	for _, f := range visible {
		if f.Name() == name {
			return f, nil
		}
	}
	return nil, nil
}

// Methods returns the declared methods in declaration order.
func (r *refType) Methods() ([]*Method, error) {
	if r.klass.IsArray() {
		return []*Method{}, nil
	}
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	return r.methods.get(func() ([]*Method, error) {
		out := make([]*Method, 0, len(r.klass.Methods))
		for i := range r.klass.Methods {
			out = append(out, r.newMethod(&r.klass.Methods[i]))
		}
		return out, nil
	})
}

// AllMethods returns the declared methods followed by inherited ones. A
// class lists its superclass chain before its interfaces.
func (r *refType) AllMethods() ([]*Method, error) {
	if r.klass.IsArray() {
		return []*Method{}, nil
	}
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	return r.allMethods.get(func() ([]*Method, error) {
		own, err := r.Methods()
		if err != nil {
			return nil, err
		}
		out := append([]*Method(nil), own...)
		var ifaces []*InterfaceType
		switch t := r.self.(type) {
		case *ClassType:
			for s := t.Superclass(); s != nil; s = s.Superclass() {
				ms, err := s.Methods()
				if err != nil {
					return nil, err
				}
				out = append(out, ms...)
			}
			ifaces, err = t.AllInterfaces()
		case *InterfaceType:
			ifaces, err = t.AllSuperInterfaces()
		}
		if err != nil {
			return nil, err
		}
		for _, i := range ifaces {
			ms, err := i.Methods()
			if err != nil {
				return nil, err
			}
			out = append(out, ms...)
		}
		return out, nil
	})
}

// VisibleMethods returns the methods not overridden or hidden along the
// inheritance path, in AllMethods order.
func (r *refType) VisibleMethods() ([]*Method, error) {
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	table := make(map[string]*Method)
	if err := addVisibleMethods(r.self, table); err != nil {
		return nil, err
	}
	all, err := r.AllMethods()
	if err != nil {
		return nil, err
	}
	out := make([]*Method, 0, len(table))
	for _, m := range all {
		if table[m.Name()+m.Signature()] == m {
			out = append(out, m)
		}
	}
	return out, nil
}

func addVisibleMethods(t ReferenceType, table map[string]*Method) error {
	if t.Klass().IsArray() {
		return nil
	}
	ifaces, err := t.Interfaces()
	if err != nil {
		return err
	}
	for _, i := range ifaces {
		if err := addVisibleMethods(i, table); err != nil {
			return err
		}
	}
	if c, ok := t.(*ClassType); ok {
		if s := c.Superclass(); s != nil {
			if err := addVisibleMethods(s, table); err != nil {
				return err
			}
		}
	}
	own, err := t.Methods()
	if err != nil {
		return err
	}
	for _, m := range own {
		table[m.Name()+m.Signature()] = m
	}
	return nil
}

// MethodByID finds a declared method, falling back to inherited ones.
func (r *refType) MethodByID(id ID) (*Method, error) {
	own, err := r.Methods()
	if err != nil {
		return nil, err
	}
	for _, m := range own {
		if m.ID() == id {
			return m, nil
		}
	}
	all, err := r.AllMethods()
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.ID() == id {
			return m, nil
		}
	}
	return nil, errs.NotFound(errs.CodeInvalidMethodID, "method", uint64(id))
}

// MethodsByName returns the visible methods with the given name and, when
// signature is not empty, the given signature.
func (r *refType) MethodsByName(name, signature string) ([]*Method, error) {
	visible, err := r.VisibleMethods()
	if err != nil {
		return nil, err
	}
	out := []*Method{}
	for _, m := range visible {
		if m.Name() == name && (signature == "" || m.Signature() == signature) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ConcreteMethodByName returns the visible non-abstract method with the
// given name and signature, or nil.
func (t *ClassType) ConcreteMethodByName(name, signature string) (*Method, error) {
	visible, err := t.VisibleMethods()
	if err != nil {
		return nil, err
	}
	for _, m := range visible {
		if m.Name() == name && m.Signature() == signature && !m.IsAbstract() {
			return m, nil
		}
	}
	return nil, nil
}
