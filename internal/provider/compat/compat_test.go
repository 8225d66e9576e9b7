package compat

import (
	"testing"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot/snapshottest"
)

func TestSelect_ByVersion(t *testing.T) {
	cases := []struct {
		version string
		want    string
	}{
		{"1.6", "jdk8"},
		{"1.7", "jdk8"},
		{"1.8", "jdk8"},
		{"9", "jdk9"},
		{"11", "jdk9"},
		{"17", "jdk9"},
		{"19", "jdk19"},
		{"21", "jdk19"},
	}
	for _, tc := range cases {
		_, name, err := Select(tc.version)
		if err != nil {
			t.Fatalf("Select(%q): %v", tc.version, err)
		}
		if name != tc.want {
			t.Fatalf("Select(%q) = %s, want %s", tc.version, name, tc.want)
		}
	}
}

func TestSelect_Unsupported(t *testing.T) {
	for _, v := range []string{"1.5", "banana"} {
		_, _, err := Select(v)
		if err == nil {
			t.Fatalf("Select(%q) should fail", v)
		}
		if !errs.HasCode(err, errs.CodeUnsupportedVersion) {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func TestStringValue_AllLayouts(t *testing.T) {
	for _, v := range []string{"1.8", "11", "21"} {
		b := snapshottest.New(v)
		latin := b.NewString("hello")
		wide := b.NewString("héllo 世界")
		f, _, _ := Select(v)
		c := f(b.Image())
		got, err := c.StringValue(latin)
		if err != nil || got != "hello" {
			t.Fatalf("%s latin1: %q %v", v, got, err)
		}
		got, err = c.StringValue(wide)
		if err != nil || got != "héllo 世界" {
			t.Fatalf("%s utf16: %q %v", v, got, err)
		}
	}
}

func TestThreadAccessors_AllLayouts(t *testing.T) {
	for _, v := range []string{"1.8", "11", "21"} {
		b := snapshottest.New(v)
		group := b.NewThreadGroup("main", nil)
		th := b.NewThread("java/lang/Thread", "worker-1", group, provider.ThreadAlive|provider.ThreadSleeping)
		img := b.Image()
		f, _, _ := Select(v)
		c := f(img)
		o, _ := img.Object(th.Oop)
		name, err := c.ThreadName(o)
		if err != nil || name != "worker-1" {
			t.Fatalf("%s name: %q %v", v, name, err)
		}
		if got := c.ThreadGroup(o); got != group.Address {
			t.Fatalf("%s group: %#x want %#x", v, got, group.Address)
		}
		if got := c.ThreadStatus(o); got != provider.ThreadAlive|provider.ThreadSleeping {
			t.Fatalf("%s status: %#x", v, got)
		}
	}
}

func TestTransitiveInterfaces(t *testing.T) {
	b := snapshottest.New("1.8")
	b.Interface("a/I1")
	b.Interface("a/I2", "a/I1")
	b.Interface("a/I3")
	b.Class("a/Base", "java/lang/Object", "a/I3")
	k := b.Class("a/Impl", "a/Base", "a/I2")
	f, _, _ := Select("1.8")
	got := f(b.Image()).TransitiveInterfaces(k)
	var names []string
	for _, ik := range got {
		names = append(names, ik.Name)
	}
	want := []string{"a/I2", "a/I1", "a/I3"}
	if len(names) != len(want) {
		t.Fatalf("got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v want %v", names, want)
		}
	}
}

func TestTransitiveInterfaces_Recorded(t *testing.T) {
	b := snapshottest.New("11")
	i1 := b.Interface("a/I1")
	k := b.Class("a/Impl", "java/lang/Object")
	k.TransitiveInterfaces = []provider.Address{i1.Address}
	f, _, _ := Select("11")
	c := f(b.Image())
	got := c.TransitiveInterfaces(k)
	if len(got) != 1 || got[0].Name != "a/I1" {
		t.Fatalf("recorded list ignored: %v", got)
	}
}

func TestKlassOf_Compressed(t *testing.T) {
	b := snapshottest.New("11")
	o := b.New("java/lang/Object")
	doc := b.Document()
	doc.VM.CompressedKlassPointers = true
	doc.VM.NarrowKlassBase = 0x800
	doc.VM.NarrowKlassShift = 3
	want := o.Klass
	o.NarrowKlass = uint32((want - 0x800) >> 3)
	o.Klass = 0
	f, _, _ := Select("11")
	c := f(b.Image())
	if got := c.KlassOf(o); got != want {
		t.Fatalf("decoded %#x want %#x", got, want)
	}
}

func TestAllClasses_FiltersUnprepared(t *testing.T) {
	b := snapshottest.New("11")
	k := b.Class("a/Loading", "java/lang/Object")
	k.Status = provider.StatusVerified
	f, _, _ := Select("11")
	c := f(b.Image())
	seenPrimitive := false
	for _, ak := range c.AllClasses() {
		if ak.Name == "a/Loading" {
			t.Fatalf("unprepared class enumerated")
		}
		if ak.Name == "[I" {
			seenPrimitive = true
		}
	}
	if !seenPrimitive {
		t.Fatalf("primitive array klasses missing")
	}
}
