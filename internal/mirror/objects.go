package mirror

import (
	"context"
	"strconv"
	"time"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Kind classifies an object mirror.
type Kind int

const (
	KindObject Kind = iota
	KindString
	KindThread
	KindThreadGroup
	KindClassObject
	KindClassLoader
	KindArray
)

var kindTags = map[Kind]byte{
	KindObject:      provider.TagObject,
	KindString:      provider.TagString,
	KindThread:      provider.TagThread,
	KindThreadGroup: provider.TagThreadGroup,
	KindClassObject: provider.TagClassObject,
	KindClassLoader: provider.TagClassLoader,
	KindArray:       provider.TagArray,
}

var wellKnownKinds = map[string]Kind{
	javaLangString:      KindString,
	javaLangThread:      KindThread,
	javaLangThreadGroup: KindThreadGroup,
	javaLangClass:       KindClassObject,
	javaLangClassLoader: KindClassLoader,
}

// Object mirrors one heap entity.
type Object struct {
	vm   *VM
	oop  *provider.Oop
	kind Kind
	typ  ReferenceType
}

func (o *Object) ID() ID              { return ID(o.oop.Address) }
func (o *Object) Kind() Kind          { return o.kind }
func (o *Object) Tag() byte           { return kindTags[o.kind] }
func (o *Object) Type() ReferenceType { return o.typ }
func (o *Object) Oop() *provider.Oop  { return o.oop }

// IsCollected always reports false: a frozen heap never collects.
func (o *Object) IsCollected() bool { return false }

type objectEntry struct {
	obj    *Object
	refs   int
	pinned int
}

// MirrorOf returns the mirror of oop, creating it on a miss. Concurrent
// misses for one entity produce a single mirror. Each call counts as one
// reference handed out.
func (vm *VM) MirrorOf(oop *provider.Oop) (*Object, error) {
	if err := vm.checkAlive(); err != nil {
		return nil, err
	}
	vm.objMu.Lock()
	if e, ok := vm.objects[oop.Address]; ok {
		e.refs++
		obj := e.obj
		vm.objMu.Unlock()
		return obj, nil
	}
	vm.objMu.Unlock()

	key := strconv.FormatUint(uint64(oop.Address), 16)
	v, err, _ := vm.flight.Do(key, func() (interface{}, error) {
		return vm.newObject(oop)
	})
	if err != nil {
		return nil, err
	}
	vm.objMu.Lock()
	defer vm.objMu.Unlock()
	e, ok := vm.objects[oop.Address]
	if !ok {
		e = &objectEntry{obj: v.(*Object)}
		vm.objects[oop.Address] = e
	}
	e.refs++
	return e.obj, nil
}

func (vm *VM) newObject(oop *provider.Oop) (*Object, error) {
	addr := vm.compat.KlassOf(oop)
	if addr == 0 {
		return nil, errs.CorruptSnapshot("object "+strconv.FormatUint(uint64(oop.Address), 16)+" has no klass", nil)
	}
	t, err := vm.typeAt(addr)
	if err != nil {
		return nil, err
	}
	return &Object{vm: vm, oop: oop, kind: vm.classify(t.Klass()), typ: t}, nil
}

// classify walks the superclass chain so subclasses of the well-known
// classes keep their kind.
func (vm *VM) classify(k *provider.Klass) Kind {
	if k.IsArray() {
		return KindArray
	}
	for cur := k; cur != nil; {
		if kind, ok := wellKnownKinds[cur.Name]; ok {
			return kind
		}
		if cur.Super == 0 {
			break
		}
		next, ok := vm.p.Klass(cur.Super)
		if !ok {
			break
		}
		cur = next
	}
	return KindObject
}

// objectAt resolves the mirror of the entity at addr; 0 yields nil.
func (vm *VM) objectAt(addr provider.Address) (*Object, error) {
	if addr == 0 {
		return nil, nil
	}
	oop, ok := vm.p.Object(addr)
	if !ok {
		return nil, errs.NotFound(errs.CodeInvalidObject, "object", uint64(addr))
	}
	return vm.MirrorOf(oop)
}

// ObjectByID resolves an id previously handed out. Evicted mirrors are
// recreated from the provider.
func (vm *VM) ObjectByID(id ID) (*Object, error) {
	if err := vm.checkAlive(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, errs.NotFound(errs.CodeInvalidObject, "object", 0)
	}
	vm.objMu.Lock()
	if e, ok := vm.objects[provider.Address(id)]; ok {
		obj := e.obj
		vm.objMu.Unlock()
		return obj, nil
	}
	vm.objMu.Unlock()
	return vm.objectAt(provider.Address(id))
}

// Release drops n references to id, as the client's DisposeObjects does.
func (vm *VM) Release(id ID, n int) {
	vm.objMu.Lock()
	defer vm.objMu.Unlock()
	if e, ok := vm.objects[provider.Address(id)]; ok {
		e.refs -= n
		if e.refs < 0 {
			e.refs = 0
		}
	}
}

// Pin keeps the mirror of id from eviction until a matching Unpin.
func (vm *VM) Pin(id ID) error {
	if _, err := vm.ObjectByID(id); err != nil {
		return err
	}
	vm.objMu.Lock()
	defer vm.objMu.Unlock()
	if e, ok := vm.objects[provider.Address(id)]; ok {
		e.pinned++
	}
	return nil
}

// Unpin reverses one Pin.
func (vm *VM) Unpin(id ID) error {
	vm.objMu.Lock()
	defer vm.objMu.Unlock()
	e, ok := vm.objects[provider.Address(id)]
	if !ok {
		if _, known := vm.p.Object(provider.Address(id)); !known {
			return errs.NotFound(errs.CodeInvalidObject, "object", uint64(id))
		}
		return nil
	}
	if e.pinned > 0 {
		e.pinned--
	}
	return nil
}

// Sweep evicts the mirrors no client holds and returns how many went.
func (vm *VM) Sweep() int {
	vm.objMu.Lock()
	defer vm.objMu.Unlock()
	n := 0
	for addr, e := range vm.objects {
		if e.refs <= 0 && e.pinned == 0 {
			delete(vm.objects, addr)
			n++
		}
	}
	return n
}

// CachedObjects returns the number of live object mirrors.
func (vm *VM) CachedObjects() int {
	vm.objMu.Lock()
	defer vm.objMu.Unlock()
	return len(vm.objects)
}

// StartSweeper runs Sweep every interval until ctx ends or the session is
// disposed. A non-positive interval disables it.
func (vm *VM) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-vm.disposed:
				return
			case <-ticker.C:
				if n := vm.Sweep(); n > 0 {
					vm.log.Debugf("evicted %d object mirrors", n)
				}
			}
		}
	}()
}

// GetValue reads a field of the object. Static fields read the declaring
// type's value.
func (o *Object) GetValue(f *Field) (Value, error) {
	if f.IsStatic() {
		return f.declaring.StaticValue(f)
	}
	if _, err := o.typ.FieldByID(f.ID()); err != nil {
		return Value{}, err
	}
	raw, ok := o.oop.Fields[f.raw.Address]
	if !ok {
		return defaultValue(f.Signature()), nil
	}
	return o.vm.valueOf(raw, f.Signature())
}

// fieldByName reads the first instance field named name along the type's
// fields.
func (o *Object) fieldByName(name string) (Value, error) {
	all, err := o.typ.AllFields()
	if err != nil {
		return Value{}, err
	}
	for _, f := range all {
		if f.Name() == name && !f.IsStatic() {
			return o.GetValue(f)
		}
	}
	return Null, nil
}

// StaticValue reads a static field declared by the type or a supertype.
func (r *refType) StaticValue(f *Field) (Value, error) {
	if !f.IsStatic() {
		return Value{}, errs.InvalidArgument(errs.CodeInvalidFieldID, "field "+f.Name()+" is not static")
	}
	if _, err := r.FieldByID(f.ID()); err != nil {
		return Value{}, err
	}
	if f.raw.StaticValue == nil {
		return defaultValue(f.Signature()), nil
	}
	return r.vm.valueOf(*f.raw.StaticValue, f.Signature())
}

// MonitorInfo describes an object's monitor.
type MonitorInfo struct {
	Owner      *Thread
	EntryCount int32
	Waiters    []*Thread
}

// MonitorInfo reports the owner, entry count and waiters of the monitor.
func (o *Object) MonitorInfo() (MonitorInfo, error) {
	info := MonitorInfo{Waiters: []*Thread{}}
	m := o.oop.Monitor
	if m == nil {
		return info, nil
	}
	var err error
	if m.Owner != 0 {
		if info.Owner, err = o.vm.threadAt(m.Owner); err != nil {
			return MonitorInfo{}, err
		}
	}
	info.EntryCount = m.EntryCount
	for _, w := range m.Waiters {
		t, err := o.vm.threadAt(w)
		if err != nil {
			return MonitorInfo{}, err
		}
		info.Waiters = append(info.Waiters, t)
	}
	return info, nil
}

// ReferringObjects scans the heap for entities that reference o. A max of
// zero means no limit.
func (o *Object) ReferringObjects(max int) ([]*Object, error) {
	if max < 0 {
		return nil, errs.InvalidArgument(errs.CodeIllegalArgument, "negative maximum")
	}
	target := o.oop.Address
	var found []*provider.Oop
	o.vm.p.Heap(func(h *provider.Oop) bool {
		if refersTo(h, target) {
			found = append(found, h)
		}
		return max == 0 || len(found) < max
	})
	return o.vm.mirrors(found)
}

func refersTo(h *provider.Oop, target provider.Address) bool {
	for _, v := range h.Fields {
		if v.Ref == target {
			return true
		}
	}
	for _, v := range h.Elements {
		if v.Ref == target {
			return true
		}
	}
	return false
}

func (vm *VM) mirrors(oops []*provider.Oop) ([]*Object, error) {
	out := make([]*Object, 0, len(oops))
	for _, h := range oops {
		obj, err := vm.MirrorOf(h)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Instances returns up to max live instances of exactly this type. A max
// of zero means no limit.
func (r *refType) Instances(max int) ([]*Object, error) {
	if max < 0 {
		return nil, errs.InvalidArgument(errs.CodeIllegalArgument, "negative maximum")
	}
	if r.klass.IsInterface() || r.klass.AccessFlags&provider.AccAbstract != 0 && !r.klass.IsArray() {
		return []*Object{}, nil
	}
	var found []*provider.Oop
	r.vm.p.Heap(func(h *provider.Oop) bool {
		if r.vm.compat.KlassOf(h) == r.klass.Address {
			found = append(found, h)
		}
		return max == 0 || len(found) < max
	})
	return r.vm.mirrors(found)
}

// InstanceCounts counts the live instances of each type in one heap pass.
func (vm *VM) InstanceCounts(types []ReferenceType) []int64 {
	counts := make([]int64, len(types))
	index := make(map[provider.Address][]int)
	for i, t := range types {
		k := t.Klass()
		if k.IsInterface() || k.AccessFlags&provider.AccAbstract != 0 && !k.IsArray() {
			continue
		}
		index[k.Address] = append(index[k.Address], i)
	}
	if len(index) == 0 {
		return counts
	}
	vm.p.Heap(func(h *provider.Oop) bool {
		for _, i := range index[vm.compat.KlassOf(h)] {
			counts[i]++
		}
		return true
	})
	return counts
}

// StringValue decodes a java.lang.String.
func (o *Object) StringValue() (string, error) {
	if o.kind != KindString {
		return "", errs.InvalidArgument(errs.CodeInvalidString, "object is not a string")
	}
	return o.vm.compat.StringValue(o.oop)
}

// ReflectedType returns the type a java.lang.Class instance stands for, or
// nil for primitive classes.
func (o *Object) ReflectedType() (ReferenceType, error) {
	if o.kind != KindClassObject {
		return nil, errs.InvalidArgument(errs.CodeInvalidObject, "object is not a class object")
	}
	addr := o.vm.compat.AsKlass(o.oop)
	if addr == 0 {
		return nil, nil
	}
	return o.vm.typeAt(addr)
}

// VisibleClasses lists the types a class loader object can see.
func (o *Object) VisibleClasses() ([]ReferenceType, error) {
	if o.kind != KindClassLoader {
		return nil, errs.InvalidArgument(errs.CodeInvalidClassLoader, "object is not a class loader")
	}
	return o.vm.VisibleClasses(o.oop.Address), nil
}

// Length returns the element count of an array.
func (o *Object) Length() (int32, error) {
	if o.kind != KindArray {
		return 0, errs.InvalidArgument(errs.CodeInvalidArray, "object is not an array")
	}
	return int32(len(o.oop.Elements)), nil
}

// ComponentTag returns the tag of the array's element signature.
func (o *Object) ComponentTag() byte {
	sig := o.typ.Signature()
	if len(sig) < 2 {
		return provider.TagObject
	}
	return sig[1]
}

// ArrayValues returns length elements starting at first. A length of -1
// reads to the end.
func (o *Object) ArrayValues(first, length int32) ([]Value, error) {
	n, err := o.Length()
	if err != nil {
		return nil, err
	}
	if first < 0 || first > n {
		return nil, errs.InvalidArgument(errs.CodeInvalidIndex, "first index out of range")
	}
	if length == -1 {
		length = n - first
	}
	if length < 0 || length > n-first {
		return nil, errs.InvalidArgument(errs.CodeInvalidLength, "length out of range")
	}
	elem := o.typ.Signature()[1:]
	out := make([]Value, length)
	for i := range out {
		v, err := o.vm.valueOf(o.oop.Elements[int(first)+i], elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
