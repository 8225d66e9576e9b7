package mirror

import (
	"testing"

	"github.com/orizon-lang/sajdwp/internal/debug"
	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot/snapshottest"
)

func linesFixture(t *testing.T) (*VM, *Method) {
	t.Helper()
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	b.AddMethod(foo, "loop", "()V", provider.AccPublic,
		snapshottest.Line(0, 10), snapshottest.Line(4, 11), snapshottest.Line(8, 12), snapshottest.Line(12, 11), snapshottest.Line(16, 13))
	b.AddMethod(foo, "bare", "()V", provider.AccPublic)
	b.AddMethod(foo, "sys", "()V", provider.AccPublic|provider.AccNative)
	vm := newVM(t, b)
	ms, err := mustType(t, vm, "com/example/Foo").MethodsByName("loop", "")
	if err != nil || len(ms) != 1 {
		t.Fatalf("unexpected lookup %v %v", ms, err)
	}
	return vm, ms[0]
}

func TestLocation_LineRoundTrip(t *testing.T) {
	_, m := linesFixture(t)
	locs, err := m.AllLineLocations("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 5 {
		t.Fatalf("unexpected location count %d", len(locs))
	}
	for _, l := range locs {
		line := l.LineNumber("")
		back, err := m.LocationsOfLine("", "", line)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		found := false
		for _, b := range back {
			if b.CodeIndex == l.CodeIndex {
				found = true
			}
		}
		if !found {
			t.Fatalf("code index %d missing from line %d", l.CodeIndex, line)
		}
	}
	if got, _ := m.LocationsOfLine("", "", 11); len(got) != 2 {
		t.Fatalf("line 11 should map to two ranges, got %d", len(got))
	}
	if got, err := m.LocationsOfLine("", "", 99); err != nil || len(got) != 0 {
		t.Fatalf("unmatched line should be empty: %v %v", got, err)
	}
}

func TestLocation_FloorSearch(t *testing.T) {
	_, m := linesFixture(t)
	cases := []struct {
		index int64
		line  int32
	}{
		{0, 10}, {3, 10}, {4, 11}, {9, 12}, {15, 11}, {16, 13}, {17, -1}, {-1, -1},
	}
	for _, tc := range cases {
		if got := (Location{Method: m, CodeIndex: tc.index}).LineNumber(""); got != tc.line {
			t.Fatalf("unexpected line for %d: %d", tc.index, got)
		}
	}
	if _, err := m.LocationOfCodeIndex(17); !errs.HasCode(err, errs.CodeInvalidLocation) {
		t.Fatalf("unexpected error for bad index: %v", err)
	}
}

func TestMethod_AbsentAndNative(t *testing.T) {
	vm, _ := linesFixture(t)
	foo := mustType(t, vm, "com/example/Foo")
	bare, _ := foo.MethodsByName("bare", "")
	if _, err := bare[0].AllLineLocations("", ""); !errs.HasCode(err, errs.CodeAbsentInformation) {
		t.Fatalf("unexpected error for method without lines: %v", err)
	}
	start, end, lines, err := bare[0].LineTable()
	if err != nil || start != 0 || end != 0 || len(lines) != 0 {
		t.Fatalf("unexpected line table %d %d %v %v", start, end, lines, err)
	}
	sys, _ := foo.MethodsByName("sys", "")
	if locs, err := sys[0].AllLineLocations("", ""); err != nil || len(locs) != 0 {
		t.Fatalf("native methods have no lines: %v %v", locs, err)
	}
	if _, _, _, err := sys[0].LineTable(); !errs.HasCode(err, errs.CodeNativeMethod) {
		t.Fatalf("unexpected error for native line table: %v", err)
	}
	all, err := foo.AllLineLocations("", "")
	if err != nil || len(all) != 5 {
		t.Fatalf("type-level lines should skip absent methods: %d %v", len(all), err)
	}
}

func TestLineTable_CollapsesDuplicateIndices(t *testing.T) {
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	b.AddMethod(foo, "f", "()V", provider.AccPublic, snapshottest.Line(0, 5), snapshottest.Line(0, 6), snapshottest.Line(3, 7))
	vm := newVM(t, b)
	ms, _ := mustType(t, vm, "com/example/Foo").MethodsByName("f", "")
	start, end, lines, err := ms[0].LineTable()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 0 || end != 3 || len(lines) != 2 || lines[0].Line != 6 {
		t.Fatalf("unexpected table %d %d %v", start, end, lines)
	}
}

const jspSMAP = `SMAP
Foo.java
JSP
*S JSP
*F
+ 1 index.jsp
web/index.jsp
*L
1#1,5:10
*E
`

func TestStrata_SourceDebugExtension(t *testing.T) {
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	foo.SourceDebugExtension = jspSMAP
	b.AddMethod(foo, "_jspService", "()V", provider.AccPublic,
		snapshottest.Line(0, 10), snapshottest.Line(4, 11), snapshottest.Line(8, 12), snapshottest.Line(12, 20))
	vm := newVM(t, b)
	rt := mustType(t, vm, "com/example/Foo")

	if got := rt.AvailableStrata(); !equalStrings(got, []string{"Java", "JSP"}) {
		t.Fatalf("unexpected strata %v", got)
	}
	if rt.DefaultStratum() != "JSP" {
		t.Fatalf("unexpected default stratum %s", rt.DefaultStratum())
	}
	raw, err := rt.SourceDebugExtension()
	if err != nil || raw != jspSMAP {
		t.Fatalf("unexpected raw SDE %q %v", raw, err)
	}
	if names, _ := rt.SourceNames(""); !equalStrings(names, []string{"index.jsp"}) {
		t.Fatalf("unexpected default source names %v", names)
	}
	if names, _ := rt.SourceNames(debug.BaseStratum); !equalStrings(names, []string{"Foo.java"}) {
		t.Fatalf("unexpected base source names %v", names)
	}
	if paths, _ := rt.SourcePaths("JSP"); !equalStrings(paths, []string{"web/index.jsp"}) {
		t.Fatalf("unexpected JSP paths %v", paths)
	}
	if paths, _ := rt.SourcePaths("Java"); !equalStrings(paths, []string{"com/example/Foo.java"}) {
		t.Fatalf("unexpected base paths %v", paths)
	}

	ms, _ := rt.MethodsByName("_jspService", "")
	m := ms[0]
	loc := Location{Method: m, CodeIndex: 5}
	if loc.LineNumber("JSP") != 2 || loc.LineNumber("Java") != 11 {
		t.Fatalf("unexpected lines %d %d", loc.LineNumber("JSP"), loc.LineNumber("Java"))
	}
	if loc.LineNumber("Unknown") != 2 {
		t.Fatalf("unknown stratum should use the type default")
	}
	if name, _ := loc.SourceName(""); name != "index.jsp" {
		t.Fatalf("unexpected source name %s", name)
	}
	jsp, err := m.AllLineLocations("JSP", "")
	if err != nil || len(jsp) != 3 {
		t.Fatalf("unexpected JSP locations %v %v", jsp, err)
	}
	if got, _ := m.LocationsOfLine("JSP", "index.jsp", 3); len(got) != 1 || got[0].CodeIndex != 8 {
		t.Fatalf("unexpected JSP line 3 %v", got)
	}
	if got, _ := m.LocationsOfLine("JSP", "other.jsp", 3); len(got) != 0 {
		t.Fatalf("source filter should exclude %v", got)
	}

	vm.SetDefaultStratum("Java")
	if loc.LineNumber("") != 11 {
		t.Fatalf("session default stratum should apply")
	}
}

func TestSourceName_Absent(t *testing.T) {
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	foo.SourceFile = ""
	vm := newVM(t, b)
	rt := mustType(t, vm, "com/example/Foo")
	if _, err := rt.SourceName(); !errs.HasCode(err, errs.CodeAbsentInformation) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rt.SourceDebugExtension(); !errs.HasCode(err, errs.CodeAbsentInformation) {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rt.AvailableStrata(); !equalStrings(got, []string{"Java"}) {
		t.Fatalf("unexpected strata %v", got)
	}
}

func TestVariables_FiltersInternalNames(t *testing.T) {
	b := snapshottest.New("1.8")
	foo := b.Class("com/example/Foo$Inner", "java/lang/Object")
	b.AddMethod(foo, "f", "(I)V", provider.AccPublic, snapshottest.Line(0, 1), snapshottest.Line(6, 2))
	raw := b.Method(foo, "f")
	raw.MaxLocals = 4
	raw.HasLocalVariableTable = true
	raw.Locals = []provider.LocalVariable{
		{Start: 0, Length: 7, Name: "this", Signature: "Lcom/example/Foo$Inner;", Slot: 0},
		{Start: 0, Length: 7, Name: "n", Signature: "I", Slot: 1},
		{Start: 2, Length: 5, Name: "this$0", Signature: "Lcom/example/Foo;", Slot: 2},
		{Start: 2, Length: 5, Name: "thisOne", Signature: "I", Slot: 3},
	}
	b.AddMethod(foo, "g", "()V", provider.AccPublic, snapshottest.Line(0, 3))
	b.Method(foo, "g").MaxLocals = 1
	vm := newVM(t, b)
	rt := mustType(t, vm, "com/example/Foo$Inner")

	ms, _ := rt.MethodsByName("f", "")
	vars, err := ms[0].Variables()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, v := range vars {
		names = append(names, v.Name)
	}
	if !equalStrings(names, []string{"n", "thisOne"}) {
		t.Fatalf("unexpected variables %v", names)
	}
	args, _ := ms[0].Arguments()
	if len(args) != 1 || args[0].Name != "n" {
		t.Fatalf("unexpected arguments %v", args)
	}
	if !vars[1].IsVisible(4) || vars[1].IsVisible(1) {
		t.Fatalf("unexpected scope of %s", vars[1].Name)
	}

	gs, _ := rt.MethodsByName("g", "")
	if _, err := gs[0].Variables(); !errs.HasCode(err, errs.CodeAbsentInformation) {
		t.Fatalf("unexpected error without a table: %v", err)
	}
}
