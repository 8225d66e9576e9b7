// Package compat isolates the layout differences between target runtime
// versions. Exactly one implementation is selected per session from the
// target's specification version and injected into the mirror layer.
package compat

import (
	"fmt"
	"unicode/utf16"

	"github.com/Masterminds/semver/v3"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Compat is the per-version capability set.
type Compat interface {
	// Name identifies the layout, e.g. "jdk8".
	Name() string
	// MethodAddress returns the identity address of a method.
	MethodAddress(m *provider.Method) provider.Address
	// KlassAddress returns the identity address of a klass.
	KlassAddress(k *provider.Klass) provider.Address
	// KlassOf resolves the runtime klass of a heap entity.
	KlassOf(o *provider.Oop) provider.Address
	// AsKlass resolves the klass a java.lang.Class instance reflects.
	AsKlass(mirror *provider.Oop) provider.Address
	// TransitiveInterfaces lists every interface k implements, directly or
	// through super-interfaces, without duplicates.
	TransitiveInterfaces(k *provider.Klass) []*provider.Klass
	// SourceDebugExtension returns the raw SMAP of k.
	SourceDebugExtension(k *provider.Klass) (string, bool)
	// MethodHolder returns the declaring klass of m.
	MethodHolder(k *provider.Klass, m *provider.Method) provider.Address
	// AllClasses enumerates the classes a debugger may see: every array
	// klass, every prepared instance klass and the primitive array klasses.
	AllClasses() []*provider.Klass
	// StringValue decodes a java.lang.String instance.
	StringValue(o *provider.Oop) (string, error)
	// ThreadName decodes the name of a java.lang.Thread instance.
	ThreadName(o *provider.Oop) (string, error)
	// ThreadGroup returns the group of a java.lang.Thread instance.
	ThreadGroup(o *provider.Oop) provider.Address
	// ThreadStatus returns the JVMTI-style state bits of a thread.
	ThreadStatus(o *provider.Oop) int32
}

// Factory builds a Compat bound to a provider.
type Factory func(p provider.Provider) Compat

type rule struct {
	constraint string
	name       string
	factory    Factory
}

var rules = []rule{
	{">= 1.6, < 9", "jdk8", func(p provider.Provider) Compat { return &jdk8{base{p: p}} }},
	{">= 9, < 19", "jdk9", func(p provider.Provider) Compat { return &jdk9{base{p: p}} }},
	{">= 19", "jdk19", func(p provider.Provider) Compat { return &jdk19{jdk9{base{p: p}}} }},
}

// Select returns the factory for a java.specification.version value.
func Select(version string) (Factory, string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, "", errs.Wrap(errs.CategoryProvider, errs.CodeUnsupportedVersion, err,
			"unable to parse target version %q", version)
	}
	for _, r := range rules {
		c, err := semver.NewConstraint(r.constraint)
		if err != nil {
			return nil, "", errs.Internal("bad constraint %q: %v", r.constraint, err)
		}
		if c.Check(v) {
			return r.factory, r.name, nil
		}
	}
	return nil, "", errs.NewStandardError(errs.CategoryProvider, errs.CodeUnsupportedVersion,
		fmt.Sprintf("unable to start on version %s", version), map[string]interface{}{"version": version})
}

// TargetVersion returns the specification version a provider reports.
func TargetVersion(p provider.Provider) string {
	if v, ok := p.Property("java.specification.version"); ok && v != "" {
		return v
	}
	return p.Info().SpecVersion
}

// base holds the behavior shared by every layout.
type base struct {
	p provider.Provider
}

func (b *base) MethodAddress(m *provider.Method) provider.Address { return m.Address }

func (b *base) KlassAddress(k *provider.Klass) provider.Address { return k.Address }

func (b *base) KlassOf(o *provider.Oop) provider.Address {
	if o.Klass != 0 {
		return o.Klass
	}
	info := b.p.Info()
	if info.CompressedKlassPointers {
		return info.NarrowKlassBase + provider.Address(o.NarrowKlass)<<info.NarrowKlassShift
	}
	return 0
}

func (b *base) AsKlass(mirror *provider.Oop) provider.Address { return mirror.MirrorOf }

func (b *base) SourceDebugExtension(k *provider.Klass) (string, bool) {
	return k.SourceDebugExtension, k.SourceDebugExtension != ""
}

func (b *base) MethodHolder(k *provider.Klass, m *provider.Method) provider.Address {
	if m.Holder != 0 {
		return m.Holder
	}
	return k.Address
}

func (b *base) AllClasses() []*provider.Klass {
	var out []*provider.Klass
	for _, k := range b.p.Klasses() {
		if k.IsArray() || k.Status&provider.StatusPrepared != 0 {
			out = append(out, k)
		}
	}
	return append(out, b.p.PrimitiveArrayKlasses()...)
}

// walkInterfaces flattens the interface graph of k in discovery order.
func (b *base) walkInterfaces(k *provider.Klass) []*provider.Klass {
	var out []*provider.Klass
	seen := make(map[provider.Address]bool)
	var visit func(addrs []provider.Address)
	visit = func(addrs []provider.Address) {
		for _, a := range addrs {
			if seen[a] {
				continue
			}
			seen[a] = true
			ik, ok := b.p.Klass(a)
			if !ok {
				continue
			}
			out = append(out, ik)
			visit(ik.Interfaces)
		}
	}
	for cur := k; cur != nil; {
		visit(cur.Interfaces)
		if cur.Super == 0 {
			break
		}
		next, ok := b.p.Klass(cur.Super)
		if !ok {
			break
		}
		cur = next
	}
	return out
}

// field looks up an instance field value by name, searching the klass chain
// of o from its runtime class upwards.
func (b *base) field(o *provider.Oop, klass provider.Address, name string) (provider.Value, bool) {
	for addr := klass; addr != 0; {
		k, ok := b.p.Klass(addr)
		if !ok {
			return provider.Value{}, false
		}
		for i := range k.Fields {
			f := &k.Fields[i]
			if f.Name == name && f.AccessFlags&provider.AccStatic == 0 {
				v, ok := o.Fields[f.Address]
				return v, ok
			}
		}
		addr = k.Super
	}
	return provider.Value{}, false
}

func (b *base) object(addr provider.Address) (*provider.Oop, error) {
	if addr == 0 {
		return nil, nil
	}
	o, ok := b.p.Object(addr)
	if !ok {
		return nil, errs.CorruptSnapshot(fmt.Sprintf("dangling reference %#x", uint64(addr)), nil)
	}
	return o, nil
}

func decodeChars(arr *provider.Oop) string {
	if arr == nil {
		return ""
	}
	units := make([]uint16, len(arr.Elements))
	for i, e := range arr.Elements {
		units[i] = uint16(e.Bits)
	}
	return string(utf16.Decode(units))
}

func decodeLatin1(arr *provider.Oop) string {
	if arr == nil {
		return ""
	}
	runes := make([]rune, len(arr.Elements))
	for i, e := range arr.Elements {
		runes[i] = rune(byte(e.Bits))
	}
	return string(runes)
}

func decodeUTF16Bytes(arr *provider.Oop) string {
	if arr == nil {
		return ""
	}
	units := make([]uint16, len(arr.Elements)/2)
	for i := range units {
		lo := uint16(byte(arr.Elements[2*i].Bits))
		hi := uint16(byte(arr.Elements[2*i+1].Bits))
		units[i] = lo | hi<<8
	}
	return string(utf16.Decode(units))
}
