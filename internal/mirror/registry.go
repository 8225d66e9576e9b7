package mirror

import (
	"strings"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// RegisterType returns the mirror of k, creating it on first use. Repeated
// calls for the same klass return the same mirror.
func (vm *VM) RegisterType(k *provider.Klass) ReferenceType {
	vm.typesMu.Lock()
	defer vm.typesMu.Unlock()
	return vm.registerLocked(k)
}

func (vm *VM) registerLocked(k *provider.Klass) ReferenceType {
	if t, ok := vm.typesByKlass[k.Address]; ok {
		return t
	}
	r := &refType{vm: vm, klass: k, id: ID(vm.compat.KlassAddress(k))}
	var t ReferenceType
	switch {
	case k.IsArray():
		t = &ArrayType{refType: r}
	case k.IsInterface():
		t = &InterfaceType{refType: r}
	default:
		t = &ClassType{refType: r}
	}
	r.self = t
	if prev, dup := vm.typesByID[r.id]; dup {
		vm.log.Errorf("type id %#x of %s already names %s", uint64(r.id), k.Name, prev.Klass().Name)
	}
	vm.typesByKlass[k.Address] = t
	vm.typesByID[r.id] = t
	vm.allTypes = append(vm.allTypes, t)
	return t
}

func (vm *VM) retrieveLocked() {
	if vm.retrieved {
		return
	}
	classes := vm.compat.AllClasses()
	for _, k := range classes {
		vm.registerLocked(k)
	}
	vm.retrieved = true
	vm.log.Debugf("retrieved %d classes", len(classes))
}

// AllTypes returns every registered type, enumerating the target's classes
// on the first call.
func (vm *VM) AllTypes() []ReferenceType {
	vm.typesMu.Lock()
	defer vm.typesMu.Unlock()
	vm.retrieveLocked()
	out := make([]ReferenceType, len(vm.allTypes))
	copy(out, vm.allTypes)
	return out
}

// TypeByID resolves a type id.
func (vm *VM) TypeByID(id ID) (ReferenceType, error) {
	vm.typesMu.Lock()
	defer vm.typesMu.Unlock()
	if t, ok := vm.typesByID[id]; ok {
		return t, nil
	}
	if k, ok := vm.p.Klass(provider.Address(id)); ok {
		return vm.registerLocked(k), nil
	}
	return nil, errs.NotFound(errs.CodeInvalidClass, "type", uint64(id))
}

// TypesBySignature returns the types whose signature is sig, in
// registration order. The result is empty when none match.
func (vm *VM) TypesBySignature(sig string) []ReferenceType {
	out := []ReferenceType{}
	for _, t := range vm.AllTypes() {
		if t.Signature() == sig {
			out = append(out, t)
		}
	}
	return out
}

// TypeBySignature returns the first type whose signature is sig.
func (vm *VM) TypeBySignature(sig string) (ReferenceType, error) {
	if ts := vm.TypesBySignature(sig); len(ts) > 0 {
		return ts[0], nil
	}
	return nil, errs.NewStandardError(errs.CategoryState, errs.CodeNotFound,
		"no loaded type with signature "+sig, map[string]interface{}{"signature": sig})
}

// TypeByName returns the first type named name. Both the internal form
// (java/lang/Object) and the dotted form are accepted.
func (vm *VM) TypeByName(name string) (ReferenceType, error) {
	name = strings.ReplaceAll(name, ".", "/")
	for _, t := range vm.AllTypes() {
		if t.Klass().Name == name {
			return t, nil
		}
	}
	return nil, errs.NewStandardError(errs.CategoryState, errs.CodeNotFound,
		"no loaded type named "+name, map[string]interface{}{"name": name})
}

// PrimitiveType returns the mirror of the primitive with the given
// signature character, or nil.
func (vm *VM) PrimitiveType(tag byte) *PrimitiveType { return vm.primitives[tag] }

// Void returns the mirror of void.
func (vm *VM) Void() *VoidType { return vm.void }

// FindType resolves any signature, primitive or reference.
func (vm *VM) FindType(sig string) (Type, error) {
	if len(sig) == 1 {
		if sig[0] == 'V' {
			return vm.void, nil
		}
		if p := vm.primitives[sig[0]]; p != nil {
			return p, nil
		}
	}
	return vm.TypeBySignature(sig)
}

// typeAt resolves the mirror of the klass at addr.
func (vm *VM) typeAt(addr provider.Address) (ReferenceType, error) {
	vm.typesMu.Lock()
	defer vm.typesMu.Unlock()
	if t, ok := vm.typesByKlass[addr]; ok {
		return t, nil
	}
	k, ok := vm.p.Klass(addr)
	if !ok {
		return nil, errs.NotFound(errs.CodeInvalidClass, "klass", uint64(addr))
	}
	return vm.registerLocked(k), nil
}

// MethodAt resolves a method by address, whatever type declares it.
func (vm *VM) MethodAt(addr provider.Address) (*Method, error) {
	vm.typesMu.Lock()
	if vm.methodIndex == nil {
		vm.methodIndex = make(map[provider.Address]provider.Address)
		for _, k := range vm.p.Klasses() {
			for i := range k.Methods {
				m := &k.Methods[i]
				vm.methodIndex[vm.compat.MethodAddress(m)] = vm.compat.MethodHolder(k, m)
			}
		}
	}
	holder, ok := vm.methodIndex[addr]
	vm.typesMu.Unlock()
	if !ok {
		return nil, errs.NotFound(errs.CodeInvalidMethodID, "method", uint64(addr))
	}
	t, err := vm.typeAt(holder)
	if err != nil {
		return nil, err
	}
	return t.MethodByID(ID(addr))
}
