package mirror

import (
	"testing"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/compat"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot/snapshottest"
)

func newVM(t *testing.T, b *snapshottest.Builder) *VM {
	t.Helper()
	img := b.Image()
	f, _, err := compat.Select(compat.TargetVersion(img))
	if err != nil {
		t.Fatalf("unexpected select error: %v", err)
	}
	vm := New(img, f(img))
	t.Cleanup(func() { _ = vm.Dispose() })
	return vm
}

func mustType(t *testing.T, vm *VM, name string) ReferenceType {
	t.Helper()
	rt, err := vm.TypeByName(name)
	if err != nil {
		t.Fatalf("unexpected lookup error for %s: %v", name, err)
	}
	return rt
}

func TestRegisterType_IdentityStable(t *testing.T) {
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	vm := newVM(t, b)

	a := vm.RegisterType(foo)
	if again := vm.RegisterType(foo); again != a {
		t.Fatalf("unexpected second mirror for the same klass")
	}
	byID, err := vm.TypeByID(a.ID())
	if err != nil || byID != a {
		t.Fatalf("unexpected TypeByID result: %v %v", byID, err)
	}
	if a.ID() != ID(foo.Address) {
		t.Fatalf("unexpected id %#x", uint64(a.ID()))
	}
	sigs := vm.TypesBySignature("Lcom/example/Foo;")
	if len(sigs) != 1 || sigs[0] != a {
		t.Fatalf("unexpected signature lookup: %v", sigs)
	}
	if _, ok := a.(*ClassType); !ok {
		t.Fatalf("unexpected variant %T", a)
	}
	if a.Name() != "com.example.Foo" {
		t.Fatalf("unexpected name %s", a.Name())
	}
	if dotted, err := vm.TypeByName("com.example.Foo"); err != nil || dotted != a {
		t.Fatalf("unexpected dotted lookup: %v %v", dotted, err)
	}
	if _, err := vm.TypeByName("com.example.Missing"); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("unexpected error for a missing type: %v", err)
	}
}

func TestTypeLookup_Misses(t *testing.T) {
	vm := newVM(t, snapshottest.New("11"))
	if _, err := vm.TypeByID(0xdead0); !errs.HasCode(err, errs.CodeInvalidClass) {
		t.Fatalf("unexpected error for unknown id: %v", err)
	}
	if _, err := vm.TypeBySignature("Lno/Such;"); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("unexpected error for unknown signature: %v", err)
	}
	if got := vm.TypesBySignature("Lno/Such;"); len(got) != 0 {
		t.Fatalf("unexpected matches %v", got)
	}
}

func TestAllTypes_PreparedAndPrimitiveArrays(t *testing.T) {
	b := snapshottest.New("1.8")
	b.Class("com/example/Ready", "java/lang/Object")
	loading := b.Class("com/example/Loading", "java/lang/Object")
	loading.Status = provider.StatusVerified
	vm := newVM(t, b)

	seen := map[string]ReferenceType{}
	for _, rt := range vm.AllTypes() {
		seen[rt.Signature()] = rt
	}
	if _, ok := seen["Lcom/example/Ready;"]; !ok {
		t.Fatalf("prepared class missing")
	}
	if _, ok := seen["Lcom/example/Loading;"]; ok {
		t.Fatalf("unprepared class listed")
	}
	arr, ok := seen["[I"]
	if !ok {
		t.Fatalf("primitive array type missing")
	}
	if _, ok := arr.(*ArrayType); !ok || arr.Name() != "int[]" {
		t.Fatalf("unexpected primitive array mirror %T %s", arr, arr.Name())
	}
	if len(vm.AllTypes()) != len(seen) {
		t.Fatalf("unexpected growth of the type set")
	}

	rt := vm.RegisterType(loading)
	if _, err := rt.Fields(); !errs.HasCode(err, errs.CodeClassNotPrepared) {
		t.Fatalf("unexpected error for unprepared type: %v", err)
	}
	if _, err := rt.Methods(); !errs.HasCode(err, errs.CodeClassNotPrepared) {
		t.Fatalf("unexpected error for unprepared type: %v", err)
	}
}

func TestSameType_AcrossSessions(t *testing.T) {
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	vm1 := newVM(t, b)
	vm2 := newVM(t, b)
	a, c := vm1.RegisterType(foo), vm2.RegisterType(foo)
	if !SameType(a, vm1.RegisterType(foo)) {
		t.Fatalf("same session mirrors must be equal")
	}
	if SameType(a, c) {
		t.Fatalf("mirrors of different sessions must differ")
	}
}

func TestFindType_Primitives(t *testing.T) {
	vm := newVM(t, snapshottest.New("1.8"))
	it, err := vm.FindType("I")
	if err != nil || it.Name() != "int" || it.Tag() != 'I' {
		t.Fatalf("unexpected int type %v %v", it, err)
	}
	if vt, _ := vm.FindType("V"); vt.Name() != "void" {
		t.Fatalf("unexpected void type %v", vt)
	}
	st, err := vm.FindType("Ljava/lang/String;")
	if err != nil || st.Name() != "java.lang.String" {
		t.Fatalf("unexpected string type %v %v", st, err)
	}
}

func TestTypeName(t *testing.T) {
	cases := map[string]string{
		"I":                   "int",
		"[[J":                 "long[][]",
		"Ljava/lang/String;":  "java.lang.String",
		"[Lcom/example/Foo;":  "com.example.Foo[]",
		"Lcom/example/Foo$1;": "com.example.Foo$1",
	}
	for sig, want := range cases {
		if got := TypeName(sig); got != want {
			t.Fatalf("unexpected name for %s: %s", sig, got)
		}
	}
}

func TestVM_Description(t *testing.T) {
	b := snapshottest.New("1.8")
	b.Document().Properties["java.version"] = "1.8.0_402"
	b.Document().Properties["java.vm.name"] = "OpenJDK 64-Bit Server VM"
	b.Document().Properties["java.vm.info"] = "mixed mode"
	b.Document().Properties["path.separator"] = ":"
	b.Document().Properties["java.class.path"] = "a.jar:b.jar"
	vm := newVM(t, b)
	if got := vm.Name(); got != "JVM version 1.8.0_402 (OpenJDK 64-Bit Server VM, mixed mode)" {
		t.Fatalf("unexpected name %q", got)
	}
	if cp := vm.ClassPath(); len(cp) != 2 || cp[1] != "b.jar" {
		t.Fatalf("unexpected class path %v", cp)
	}
	if vm.BaseDirectory() != "/work" {
		t.Fatalf("unexpected base directory %q", vm.BaseDirectory())
	}
	if len(vm.BootClassPath()) != 0 {
		t.Fatalf("unexpected boot class path %v", vm.BootClassPath())
	}
}

func TestDispose_Idempotent(t *testing.T) {
	vm := newVM(t, snapshottest.New("11"))
	if err := vm.Dispose(); err != nil {
		t.Fatalf("unexpected dispose error: %v", err)
	}
	if err := vm.Dispose(); err != nil {
		t.Fatalf("unexpected second dispose error: %v", err)
	}
	if !vm.IsDisposed() {
		t.Fatalf("session should report disposed")
	}
	if _, err := vm.AllThreads(); !errs.HasCode(err, errs.CodeVMDead) {
		t.Fatalf("unexpected error after dispose: %v", err)
	}
}
