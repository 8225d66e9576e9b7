// Package snapshottest builds in-memory snapshots for tests.
package snapshottest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot"
)

const ready = provider.StatusVerified | provider.StatusPrepared | provider.StatusInitialized

// Builder assembles a snapshot document with consistent addresses. The
// well-known classes the bridge classifies against are created up front with
// the field layout of the requested runtime version.
type Builder struct {
	doc    *snapshot.Document
	next   provider.Address
	byName map[string]*provider.Klass
	major  int
}

// New starts a snapshot for the given java.specification.version.
func New(specVersion string) *Builder {
	b := &Builder{
		doc: &snapshot.Document{
			Format: snapshot.FormatVersion,
			VM: provider.VMInfo{
				Name:        "OpenJDK 64-Bit Server VM",
				Version:     specVersion,
				Vendor:      "test",
				SpecVersion: specVersion,
				Description: "snapshot",
			},
			Properties: map[string]string{
				"java.specification.version": specVersion,
				"java.class.path":            "app.jar",
				"user.dir":                   "/work",
			},
		},
		next:   0x1000,
		byName: make(map[string]*provider.Klass),
		major:  majorOf(specVersion),
	}
	object := b.Class("java/lang/Object", "")
	b.Class("java/lang/Class", "java/lang/Object")
	b.mirror(object)

	for _, p := range []string{"Z", "B", "C", "S", "I", "J", "F", "D"} {
		k := &provider.Klass{Address: b.addr(), Name: "[" + p, AccessFlags: provider.AccPublic | provider.AccFinal | provider.AccAbstract, Status: ready}
		b.byName[k.Name] = k
		b.doc.PrimitiveArrayKlasses = append(b.doc.PrimitiveArrayKlasses, k)
		b.mirror(k)
	}

	b.Interface("java/lang/Runnable")
	b.Interface("java/io/Serializable")
	b.Interface("java/lang/CharSequence")
	str := b.Class("java/lang/String", "java/lang/Object", "java/io/Serializable", "java/lang/CharSequence")
	str.AccessFlags |= provider.AccFinal
	if b.major < 9 {
		b.AddField(str, "value", "[C", provider.AccPrivate|provider.AccFinal)
	} else {
		b.AddField(str, "value", "[B", provider.AccPrivate|provider.AccFinal)
		b.AddField(str, "coder", "B", provider.AccPrivate|provider.AccFinal)
	}
	b.AddField(str, "hash", "I", provider.AccPrivate)

	tg := b.Class("java/lang/ThreadGroup", "java/lang/Object")
	b.AddField(tg, "parent", "Ljava/lang/ThreadGroup;", provider.AccPrivate)
	b.AddField(tg, "name", "Ljava/lang/String;", provider.AccPrivate)

	th := b.Class("java/lang/Thread", "java/lang/Object", "java/lang/Runnable")
	switch {
	case b.major < 9:
		b.AddField(th, "name", "[C", provider.AccPrivate)
		b.AddField(th, "group", "Ljava/lang/ThreadGroup;", provider.AccPrivate)
		b.AddField(th, "threadStatus", "I", provider.AccPrivate)
	case b.major < 19:
		b.AddField(th, "name", "Ljava/lang/String;", provider.AccPrivate)
		b.AddField(th, "group", "Ljava/lang/ThreadGroup;", provider.AccPrivate)
		b.AddField(th, "threadStatus", "I", provider.AccPrivate)
	default:
		b.AddField(th, "name", "Ljava/lang/String;", provider.AccPrivate)
		b.AddField(th, "holder", "Ljava/lang/Thread$FieldHolder;", provider.AccPrivate)
		fh := b.Class("java/lang/Thread$FieldHolder", "java/lang/Object")
		b.AddField(fh, "group", "Ljava/lang/ThreadGroup;", provider.AccFinal)
		b.AddField(fh, "threadStatus", "I", provider.AccPrivate)
	}

	b.Class("java/lang/ClassLoader", "java/lang/Object").AccessFlags |= provider.AccAbstract
	thr := b.Class("java/lang/Throwable", "java/lang/Object", "java/io/Serializable")
	b.AddField(thr, "backtrace", "Ljava/lang/Object;", provider.AccPrivate|provider.AccTransient)
	b.AddField(thr, "detailMessage", "Ljava/lang/String;", provider.AccPrivate)
	return b
}

func majorOf(spec string) int {
	s := strings.TrimPrefix(spec, "1.")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, _ := strconv.Atoi(s)
	return n
}

func (b *Builder) addr() provider.Address {
	a := b.next
	b.next += 0x10
	return a
}

func (b *Builder) mirror(k *provider.Klass) {
	cls, ok := b.byName["java/lang/Class"]
	if !ok {
		return
	}
	o := &provider.Oop{Address: b.addr(), Klass: cls.Address, MirrorOf: k.Address}
	b.doc.Heap = append(b.doc.Heap, o)
	k.Mirror = o.Address
}

func (b *Builder) addKlass(k *provider.Klass) *provider.Klass {
	if _, dup := b.byName[k.Name]; dup {
		panic(fmt.Sprintf("snapshottest: duplicate class %s", k.Name))
	}
	b.byName[k.Name] = k
	b.doc.Klasses = append(b.doc.Klasses, k)
	b.mirror(k)
	return k
}

func (b *Builder) resolve(names []string) []provider.Address {
	out := make([]provider.Address, 0, len(names))
	for _, n := range names {
		out = append(out, b.MustKlass(n).Address)
	}
	return out
}

// Class adds a prepared class. An empty super means no superclass.
func (b *Builder) Class(name, super string, interfaces ...string) *provider.Klass {
	k := &provider.Klass{
		Address:     b.addr(),
		Name:        name,
		AccessFlags: provider.AccPublic | provider.AccSuper,
		Status:      ready,
		Interfaces:  b.resolve(interfaces),
		SourceFile:  sourceFileOf(name),
	}
	if super != "" {
		k.Super = b.MustKlass(super).Address
	}
	return b.addKlass(k)
}

// Interface adds a prepared interface.
func (b *Builder) Interface(name string, supers ...string) *provider.Klass {
	k := &provider.Klass{
		Address:     b.addr(),
		Name:        name,
		AccessFlags: provider.AccPublic | provider.AccInterface | provider.AccAbstract,
		Status:      ready,
		Interfaces:  b.resolve(supers),
		SourceFile:  sourceFileOf(name),
	}
	if obj, ok := b.byName["java/lang/Object"]; ok {
		k.Super = obj.Address
	}
	return b.addKlass(k)
}

// Array adds an array klass for the given array signature, e.g.
// "[Lcom/example/Foo;". Primitive array klasses already exist.
func (b *Builder) Array(sig string) *provider.Klass {
	if k, ok := b.byName[sig]; ok {
		return k
	}
	k := &provider.Klass{
		Address:     b.addr(),
		Name:        sig,
		AccessFlags: provider.AccPublic | provider.AccFinal | provider.AccAbstract,
		Status:      ready,
		Super:       b.MustKlass("java/lang/Object").Address,
	}
	elem := sig[1:]
	if strings.HasPrefix(elem, "L") {
		k.Component = b.MustKlass(strings.TrimSuffix(elem[1:], ";")).Address
	} else if strings.HasPrefix(elem, "[") {
		k.Component = b.Array(elem).Address
	}
	return b.addKlass(k)
}

func sourceFileOf(name string) string {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexByte(base, '$'); i >= 0 {
		base = base[:i]
	}
	return base + ".java"
}

// Klass returns a class by internal name.
func (b *Builder) Klass(name string) (*provider.Klass, bool) {
	k, ok := b.byName[name]
	return k, ok
}

// MustKlass returns a class by internal name or panics.
func (b *Builder) MustKlass(name string) *provider.Klass {
	k, ok := b.byName[name]
	if !ok {
		panic(fmt.Sprintf("snapshottest: unknown class %s", name))
	}
	return k
}

// AddField declares a field on k and returns its address.
func (b *Builder) AddField(k *provider.Klass, name, sig string, flags uint32) provider.Address {
	a := b.addr()
	k.Fields = append(k.Fields, provider.Field{Address: a, Name: name, Signature: sig, AccessFlags: flags})
	return a
}

// AddMethod declares a method on k and returns its address. Methods with
// code get a line table built from lines and one byte of code per entry
// beyond the last offset.
func (b *Builder) AddMethod(k *provider.Klass, name, sig string, flags uint32, lines ...provider.LineEntry) provider.Address {
	a := b.addr()
	m := provider.Method{
		Address:     a,
		Name:        name,
		Signature:   sig,
		AccessFlags: flags,
		Holder:      k.Address,
		Lines:       lines,
		ArgSize:     argSize(sig, flags),
	}
	m.MaxLocals = m.ArgSize
	if flags&(provider.AccNative|provider.AccAbstract) == 0 {
		size := int64(1)
		for _, l := range lines {
			if l.BCI+1 > size {
				size = l.BCI + 1
			}
		}
		m.Code = make([]byte, size)
	}
	k.Methods = append(k.Methods, m)
	return a
}

// Method returns the declared method of k with the given name. The pointer
// is invalidated by further AddMethod calls on k.
func (b *Builder) Method(k *provider.Klass, name string) *provider.Method {
	for i := range k.Methods {
		if k.Methods[i].Name == name {
			return &k.Methods[i]
		}
	}
	panic(fmt.Sprintf("snapshottest: no method %s in %s", name, k.Name))
}

// Field returns the declared field of k with the given name.
func (b *Builder) Field(k *provider.Klass, name string) *provider.Field {
	for i := range k.Fields {
		if k.Fields[i].Name == name {
			return &k.Fields[i]
		}
	}
	panic(fmt.Sprintf("snapshottest: no field %s in %s", name, k.Name))
}

func argSize(sig string, flags uint32) int32 {
	n := int32(0)
	if flags&provider.AccStatic == 0 {
		n = 1
	}
	end := strings.IndexByte(sig, ')')
	if !strings.HasPrefix(sig, "(") || end < 0 {
		return n
	}
	params := sig[1:end]
	for i := 0; i < len(params); i++ {
		switch params[i] {
		case 'J', 'D':
			n += 2
		case 'L':
			n++
			i += strings.IndexByte(params[i:], ';')
		case '[':
			for i < len(params) && params[i] == '[' {
				i++
			}
			if i < len(params) && params[i] == 'L' {
				i += strings.IndexByte(params[i:], ';')
			}
			n++
		default:
			n++
		}
	}
	return n
}

// New allocates an instance of the named class.
func (b *Builder) New(class string) *provider.Oop {
	o := &provider.Oop{Address: b.addr(), Klass: b.MustKlass(class).Address, Fields: make(map[provider.Address]provider.Value)}
	b.doc.Heap = append(b.doc.Heap, o)
	return o
}

// Set stores an instance field value by name, searching from o's class up.
func (b *Builder) Set(o *provider.Oop, field string, v provider.Value) {
	for addr := o.Klass; addr != 0; {
		var k *provider.Klass
		for _, c := range b.byName {
			if c.Address == addr {
				k = c
				break
			}
		}
		if k == nil {
			break
		}
		for _, f := range k.Fields {
			if f.Name == field && f.AccessFlags&provider.AccStatic == 0 {
				o.Fields[f.Address] = v
				return
			}
		}
		addr = k.Super
	}
	panic(fmt.Sprintf("snapshottest: no field %s on %#x", field, uint64(o.Klass)))
}

// SetStatic stores a static field value.
func (b *Builder) SetStatic(k *provider.Klass, field string, v provider.Value) {
	f := b.Field(k, field)
	f.StaticValue = &v
}

// NewArray allocates an array of the given array class.
func (b *Builder) NewArray(sig string, elems ...provider.Value) *provider.Oop {
	k := b.Array(sig)
	o := &provider.Oop{Address: b.addr(), Klass: k.Address, Elements: elems}
	b.doc.Heap = append(b.doc.Heap, o)
	return o
}

// NewString allocates a java.lang.String with the layout of the target
// version.
func (b *Builder) NewString(s string) *provider.Oop {
	o := b.New("java/lang/String")
	if b.major < 9 {
		o.Fields[b.Field(b.MustKlass("java/lang/String"), "value").Address] = Ref(b.charArray(s))
		return o
	}
	latin1 := true
	for _, r := range s {
		if r > 0xFF {
			latin1 = false
			break
		}
	}
	var elems []provider.Value
	if latin1 {
		for _, r := range s {
			elems = append(elems, provider.Value{Tag: provider.TagByte, Bits: uint64(byte(r))})
		}
		b.Set(o, "coder", provider.Value{Tag: provider.TagByte, Bits: 0})
	} else {
		for _, u := range utf16.Encode([]rune(s)) {
			elems = append(elems,
				provider.Value{Tag: provider.TagByte, Bits: uint64(byte(u))},
				provider.Value{Tag: provider.TagByte, Bits: uint64(byte(u >> 8))})
		}
		b.Set(o, "coder", provider.Value{Tag: provider.TagByte, Bits: 1})
	}
	b.Set(o, "value", Ref(b.NewArray("[B", elems...)))
	return o
}

func (b *Builder) charArray(s string) *provider.Oop {
	var elems []provider.Value
	for _, u := range utf16.Encode([]rune(s)) {
		elems = append(elems, provider.Value{Tag: provider.TagChar, Bits: uint64(u)})
	}
	return b.NewArray("[C", elems...)
}

// NewThreadGroup allocates a java.lang.ThreadGroup.
func (b *Builder) NewThreadGroup(name string, parent *provider.Oop) *provider.Oop {
	o := b.New("java/lang/ThreadGroup")
	b.Set(o, "name", Ref(b.NewString(name)))
	if parent != nil {
		b.Set(o, "parent", Ref(parent))
	}
	return o
}

// NewThread allocates a java.lang.Thread (or subclass) and registers it as
// a live thread with the given frames, youngest first.
func (b *Builder) NewThread(class, name string, group *provider.Oop, status int32, frames ...provider.Frame) *provider.Thread {
	o := b.New(class)
	if b.major < 9 {
		b.Set(o, "name", Ref(b.charArray(name)))
	} else {
		b.Set(o, "name", Ref(b.NewString(name)))
	}
	statusValue := provider.Value{Tag: provider.TagInt, Bits: uint64(uint32(status))}
	if b.major < 19 {
		b.Set(o, "group", Ref(group))
		b.Set(o, "threadStatus", statusValue)
	} else {
		h := b.New("java/lang/Thread$FieldHolder")
		b.Set(h, "group", Ref(group))
		b.Set(h, "threadStatus", statusValue)
		b.Set(o, "holder", Ref(h))
	}
	t := &provider.Thread{Oop: o.Address, Frames: frames}
	b.doc.Threads = append(b.doc.Threads, t)
	return t
}

// Document returns the document built so far.
func (b *Builder) Document() *snapshot.Document { return b.doc }

// Image indexes the document.
func (b *Builder) Image() *snapshot.Image { return snapshot.New(b.doc) }

// Ref is an object value referring to o; nil gives the null reference.
func Ref(o *provider.Oop) provider.Value {
	if o == nil {
		return provider.Value{Tag: provider.TagObject}
	}
	return provider.Value{Tag: provider.TagObject, Ref: o.Address}
}

// Int is an int value.
func Int(v int32) provider.Value {
	return provider.Value{Tag: provider.TagInt, Bits: uint64(uint32(v))}
}

// Bool is a boolean value.
func Bool(v bool) provider.Value {
	if v {
		return provider.Value{Tag: provider.TagBoolean, Bits: 1}
	}
	return provider.Value{Tag: provider.TagBoolean}
}

// Long is a long value.
func Long(v int64) provider.Value {
	return provider.Value{Tag: provider.TagLong, Bits: uint64(v)}
}

// Line is a shorthand for a line table entry.
func Line(bci int64, line int32) provider.LineEntry {
	return provider.LineEntry{BCI: bci, Line: line}
}
