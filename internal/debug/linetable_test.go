package debug

import "testing"

func sampleRaw() []RawLine {
	return []RawLine{
		{CodeIndex: 0, Line: 10},
		{CodeIndex: 4, Line: 11},
		{CodeIndex: 4, Line: 12}, // same index, the later entry wins
		{CodeIndex: 9, Line: 13},
		{CodeIndex: 15, Line: 11},
	}
}

func TestBuildBaseTable_DuplicateIndex(t *testing.T) {
	tab := BuildBaseTable(sampleRaw(), "Foo.java", "com/example/Foo.java")
	if len(tab.Locations) != 4 {
		t.Fatalf("unexpected location count: %d", len(tab.Locations))
	}
	if tab.Locations[1].CodeIndex != 4 || tab.Locations[1].Line != 12 {
		t.Fatalf("unexpected entry at index 4: %+v", tab.Locations[1])
	}
	if tab.Lowest != 10 || tab.Highest != 13 {
		t.Fatalf("unexpected bounds: %d..%d", tab.Lowest, tab.Highest)
	}
	if tab.Locations[0].SourceName != "Foo.java" || tab.Locations[0].SourcePath != "com/example/Foo.java" {
		t.Fatalf("unexpected source: %+v", tab.Locations[0])
	}
}

func TestLineTable_RoundTrip(t *testing.T) {
	tab := BuildBaseTable(sampleRaw(), "Foo.java", "")
	for _, loc := range tab.Locations {
		got, ok := tab.LineAt(loc.CodeIndex)
		if !ok || got.Line != loc.Line {
			t.Fatalf("LineAt(%d) = %v %v, want line %d", loc.CodeIndex, got.Line, ok, loc.Line)
		}
		found := false
		for _, l := range tab.LocationsOfLine(loc.Line, "") {
			if l.CodeIndex == loc.CodeIndex {
				found = true
			}
		}
		if !found {
			t.Fatalf("LocationsOfLine(%d) misses index %d", loc.Line, loc.CodeIndex)
		}
	}
}

func TestLineTable_FloorSearch(t *testing.T) {
	tab := BuildBaseTable(sampleRaw(), "Foo.java", "")
	cases := []struct {
		index int64
		line  int32
	}{
		{1, 10},
		{3, 10},
		{5, 12},
		{14, 13},
		{100, 11},
	}
	for _, c := range cases {
		got, ok := tab.LineAt(c.index)
		if !ok || got.Line != c.line {
			t.Fatalf("LineAt(%d) = %d, want %d", c.index, got.Line, c.line)
		}
	}
}

func TestLineTable_Prolog(t *testing.T) {
	tab := BuildBaseTable([]RawLine{{CodeIndex: 3, Line: 20}, {CodeIndex: 8, Line: 21}}, "A.java", "")
	got, ok := tab.LineAt(0)
	if !ok || got.Line != 20 {
		t.Fatalf("prolog should map to the first line, got %d %v", got.Line, ok)
	}
}

func TestLineTable_EmptyVersusUnmatched(t *testing.T) {
	empty := BuildBaseTable(nil, "A.java", "")
	if !empty.Empty() {
		t.Fatalf("expected empty table")
	}
	if _, ok := empty.LineAt(0); ok {
		t.Fatalf("empty table must not resolve")
	}
	tab := BuildBaseTable(sampleRaw(), "Foo.java", "")
	if locs := tab.LocationsOfLine(99, ""); locs == nil || len(locs) != 0 {
		t.Fatalf("unmatched line should give an empty non-nil slice, got %v", locs)
	}
}

func TestLineTable_MultipleRanges(t *testing.T) {
	tab := BuildBaseTable(sampleRaw(), "Foo.java", "")
	locs := tab.LocationsOfLine(11, "")
	if len(locs) != 1 || locs[0].CodeIndex != 15 {
		t.Fatalf("unexpected locations for line 11: %+v", locs)
	}
	loop := BuildBaseTable([]RawLine{{0, 5}, {3, 6}, {7, 5}}, "L.java", "")
	locs = loop.LocationsOfLine(5, "")
	if len(locs) != 2 || locs[0].CodeIndex != 0 || locs[1].CodeIndex != 7 {
		t.Fatalf("unexpected loop locations: %+v", locs)
	}
	if len(loop.LocationsOfLine(5, "Other.java")) != 0 {
		t.Fatalf("source filter should exclude every location")
	}
}

func TestBuildStratumTable(t *testing.T) {
	s := &Stratum{
		ID:    "JSP",
		Files: []SourceFile{{ID: 1, Name: "index.jsp", Path: "web/index.jsp"}},
		// base lines 10..13 map pairwise onto input lines 1 and 2
		Lines: []LineMapping{{InputStart: 1, FileID: 1, RepeatCount: 2, OutputStart: 10, OutputIncrement: 2}},
	}
	base := BuildBaseTable([]RawLine{{0, 10}, {2, 11}, {5, 12}, {9, 13}, {12, 40}}, "index_jsp.java", "")
	tab := BuildStratumTable(base, s)
	if tab.Stratum != "JSP" {
		t.Fatalf("unexpected stratum %q", tab.Stratum)
	}
	if len(tab.Locations) != 2 {
		t.Fatalf("consecutive duplicates should collapse: %+v", tab.Locations)
	}
	if tab.Locations[0].CodeIndex != 0 || tab.Locations[0].Line != 1 {
		t.Fatalf("unexpected first location: %+v", tab.Locations[0])
	}
	if tab.Locations[1].CodeIndex != 5 || tab.Locations[1].Line != 2 {
		t.Fatalf("unexpected second location: %+v", tab.Locations[1])
	}
	if tab.Locations[1].SourceName != "index.jsp" || tab.Locations[1].SourcePath != "web/index.jsp" {
		t.Fatalf("unexpected source: %+v", tab.Locations[1])
	}
	got, ok := tab.LineAt(12)
	if !ok || got.Line != 2 {
		t.Fatalf("unmapped base line should fall back to the floor entry, got %d", got.Line)
	}
}
