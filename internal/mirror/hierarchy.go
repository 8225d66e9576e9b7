package mirror

import (
	"strings"

	"github.com/orizon-lang/sajdwp/internal/provider"
)

func (r *refType) superclass() *ClassType {
	if r.klass.Super == 0 {
		return nil
	}
	t, err := r.vm.typeAt(r.klass.Super)
	if err != nil {
		r.vm.log.Warningf("superclass of %s: %s", r.klass.Name, err)
		return nil
	}
	c, _ := t.(*ClassType)
	return c
}

// Superclass returns the superclass, or nil for java.lang.Object.
func (t *ClassType) Superclass() *ClassType { return t.superclass() }

// Interfaces returns the directly implemented interfaces of a class, or
// the direct super-interfaces of an interface.
func (r *refType) Interfaces() ([]*InterfaceType, error) {
	if r.klass.IsArray() {
		return []*InterfaceType{}, nil
	}
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	return r.interfaces.get(func() ([]*InterfaceType, error) {
		out := make([]*InterfaceType, 0, len(r.klass.Interfaces))
		for _, addr := range r.klass.Interfaces {
			t, err := r.vm.typeAt(addr)
			if err != nil {
				return nil, err
			}
			if i, ok := t.(*InterfaceType); ok {
				out = append(out, i)
			}
		}
		return out, nil
	})
}

// AllInterfaces returns every interface the class implements, directly,
// through super-interfaces or through its superclasses.
func (t *ClassType) AllInterfaces() ([]*InterfaceType, error) {
	if err := t.checkPrepared(); err != nil {
		return nil, err
	}
	return t.allIfaces.get(func() ([]*InterfaceType, error) {
		out := []*InterfaceType{}
		seen := make(map[ID]bool)
		if err := t.addInterfaces(&out, seen); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (t *ClassType) addInterfaces(list *[]*InterfaceType, seen map[ID]bool) error {
	immediate, err := t.Interfaces()
	if err != nil {
		return err
	}
	for _, i := range immediate {
		if !seen[i.ID()] {
			seen[i.ID()] = true
			*list = append(*list, i)
		}
	}
	for _, i := range immediate {
		if err := i.addSuperInterfaces(list, seen); err != nil {
			return err
		}
	}
	if s := t.Superclass(); s != nil {
		return s.addInterfaces(list, seen)
	}
	return nil
}

// SuperInterfaces returns the direct super-interfaces.
func (t *InterfaceType) SuperInterfaces() ([]*InterfaceType, error) { return t.Interfaces() }

// AllSuperInterfaces returns every super-interface, nearest first.
func (t *InterfaceType) AllSuperInterfaces() ([]*InterfaceType, error) {
	out := []*InterfaceType{}
	if err := t.addSuperInterfaces(&out, make(map[ID]bool)); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *InterfaceType) addSuperInterfaces(list *[]*InterfaceType, seen map[ID]bool) error {
	supers, err := t.SuperInterfaces()
	if err != nil {
		return err
	}
	var fresh []*InterfaceType
	for _, s := range supers {
		if !seen[s.ID()] {
			seen[s.ID()] = true
			fresh = append(fresh, s)
		}
	}
	*list = append(*list, fresh...)
	for _, s := range fresh {
		if err := s.addSuperInterfaces(list, seen); err != nil {
			return err
		}
	}
	return nil
}

// Subclasses returns the loaded classes whose direct superclass is t.
func (t *ClassType) Subclasses() []*ClassType {
	out, _ := t.subclasses.get(func() ([]*ClassType, error) {
		out := []*ClassType{}
		for _, other := range t.vm.AllTypes() {
			c, ok := other.(*ClassType)
			if !ok || c.klass.Super != t.klass.Address {
				continue
			}
			out = append(out, c)
		}
		return out, nil
	})
	return out
}

// Subinterfaces returns the prepared interfaces that directly extend t.
func (t *InterfaceType) Subinterfaces() []*InterfaceType {
	out, _ := t.subinterfaces.get(func() ([]*InterfaceType, error) {
		out := []*InterfaceType{}
		for _, other := range t.vm.AllTypes() {
			i, ok := other.(*InterfaceType)
			if ok && i.IsPrepared() && containsAddress(i.klass.Interfaces, t.klass.Address) {
				out = append(out, i)
			}
		}
		return out, nil
	})
	return out
}

// Implementors returns the prepared classes that directly implement t.
func (t *InterfaceType) Implementors() []*ClassType {
	out, _ := t.implementors.get(func() ([]*ClassType, error) {
		out := []*ClassType{}
		for _, other := range t.vm.AllTypes() {
			c, ok := other.(*ClassType)
			if ok && c.IsPrepared() && containsAddress(c.klass.Interfaces, t.klass.Address) {
				out = append(out, c)
			}
		}
		return out, nil
	})
	return out
}

func containsAddress(list []provider.Address, addr provider.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

// IsAssignableTo reports whether a value of this type can be assigned to a
// variable of type other.
func (r *refType) IsAssignableTo(other ReferenceType) bool {
	if SameType(r.self, other) {
		return true
	}
	switch t := r.self.(type) {
	case *ClassType:
		if s := t.Superclass(); s != nil && s.IsAssignableTo(other) {
			return true
		}
		ifaces, err := t.Interfaces()
		if err != nil {
			return false
		}
		for _, i := range ifaces {
			if i.IsAssignableTo(other) {
				return true
			}
		}
	case *InterfaceType:
		ifaces, err := t.Interfaces()
		if err != nil {
			return false
		}
		for _, i := range ifaces {
			if i.IsAssignableTo(other) {
				return true
			}
		}
	case *ArrayType:
		return t.arrayAssignableTo(other)
	}
	return false
}

func (t *ArrayType) arrayAssignableTo(other ReferenceType) bool {
	switch o := other.(type) {
	case *ArrayType:
		a, b := t.ComponentSignature(), o.ComponentSignature()
		if len(a) == 1 || len(b) == 1 {
			return a == b
		}
		ac, err := t.ComponentType()
		if err != nil {
			return false
		}
		bc, err := o.ComponentType()
		if err != nil {
			return false
		}
		ar, ok1 := ac.(ReferenceType)
		br, ok2 := bc.(ReferenceType)
		return ok1 && ok2 && ar.IsAssignableTo(br)
	case *InterfaceType:
		return o.klass.Name == "java/lang/Cloneable" || o.klass.Name == "java/io/Serializable"
	case *ClassType:
		return o.klass.Name == javaLangObject
	}
	return false
}

// NestedTypes returns the types visible to this type's loader that are
// recorded as inner classes of it or whose name marks them as anonymous or
// local classes of it.
func (r *refType) NestedTypes() []ReferenceType {
	if r.klass.IsArray() {
		return []ReferenceType{}
	}
	out, _ := r.nested.get(func() ([]ReferenceType, error) {
		prefix := r.klass.Name + "$"
		out := []ReferenceType{}
		for _, t := range r.vm.VisibleClasses(r.klass.Loader) {
			name := t.Klass().Name
			if SameType(t, r.self) {
				continue
			}
			if containsString(r.klass.InnerClasses, name) {
				out = append(out, t)
				continue
			}
			if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
				if c := name[len(prefix)]; c >= '0' && c <= '9' {
					out = append(out, t)
				}
			}
		}
		return out, nil
	})
	return out
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// VisibleClasses returns the types the given loader (0 for the bootstrap
// loader) can see: those it defined plus the primitive array types.
func (vm *VM) VisibleClasses(loader provider.Address) []ReferenceType {
	out := []ReferenceType{}
	for _, t := range vm.AllTypes() {
		k := t.Klass()
		if k.IsArray() {
			continue
		}
		if k.Loader == loader {
			out = append(out, t)
		}
	}
	for _, k := range vm.p.PrimitiveArrayKlasses() {
		out = append(out, vm.RegisterType(k))
	}
	return out
}
