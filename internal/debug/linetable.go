package debug

import (
	"sort"
)

// BaseStratum is the stratum of the language the class file was compiled
// from. Its line numbers are the raw line-number table entries.
const BaseStratum = "Java"

// RawLine is one line-number table entry as stored by the runtime.
type RawLine struct {
	CodeIndex int64
	Line      int32
}

// LineLocation is a code index with its line information in one stratum.
type LineLocation struct {
	CodeIndex  int64
	Line       int32
	SourceName string
	SourcePath string
}

// LineTable maps code indices to lines for one method in one stratum.
type LineTable struct {
	Stratum string
	// Locations keeps table order, one entry per distinct code index.
	Locations []LineLocation
	// Lowest and Highest are only meaningful for bounds checks; they need
	// not belong to the first and last locations.
	Lowest  int32
	Highest int32

	byLine map[int32][]LineLocation
	sorted []LineLocation
}

func newLineTable(stratum string) *LineTable {
	return &LineTable{Stratum: stratum, Lowest: -1, Highest: -1, byLine: make(map[int32][]LineLocation)}
}

func (t *LineTable) add(loc LineLocation) {
	if loc.Line > t.Highest {
		t.Highest = loc.Line
	}
	if loc.Line < t.Lowest || t.Lowest == -1 {
		t.Lowest = loc.Line
	}
	t.Locations = append(t.Locations, loc)
	t.byLine[loc.Line] = append(t.byLine[loc.Line], loc)
}

func (t *LineTable) seal() {
	t.sorted = make([]LineLocation, len(t.Locations))
	copy(t.sorted, t.Locations)
	sort.SliceStable(t.sorted, func(i, j int) bool { return t.sorted[i].CodeIndex < t.sorted[j].CodeIndex })
}

// BuildBaseTable builds the base-stratum table of a method. Some compilers
// point several consecutive entries at the same code index; only the last of
// them is kept so every code index has a single line.
func BuildBaseTable(raw []RawLine, sourceName, sourcePath string) *LineTable {
	t := newLineTable(BaseStratum)
	for i, e := range raw {
		if i+1 == len(raw) || e.CodeIndex != raw[i+1].CodeIndex {
			t.add(LineLocation{CodeIndex: e.CodeIndex, Line: e.Line, SourceName: sourceName, SourcePath: sourcePath})
		}
	}
	t.seal()
	return t
}

// BuildStratumTable derives the table of a secondary stratum from the base
// table. Base lines the stratum does not map are skipped and consecutive
// locations that map to the same stratum line are collapsed.
func BuildStratumTable(base *LineTable, s *Stratum) *LineTable {
	t := newLineTable(s.ID)
	var last *StratumLine
	for _, loc := range base.Locations {
		sl, ok := s.MapLine(loc.Line)
		if !ok {
			continue
		}
		if sl.Line == -1 || (last != nil && *last == sl) {
			continue
		}
		cur := sl
		last = &cur
		t.add(LineLocation{CodeIndex: loc.CodeIndex, Line: sl.Line, SourceName: sl.SourceName, SourcePath: sl.SourcePath})
	}
	t.seal()
	return t
}

// Empty reports whether the table has no line information.
func (t *LineTable) Empty() bool { return len(t.Locations) == 0 }

// LineAt returns the location whose code index is the greatest one not
// exceeding codeIndex. Code before the first entry belongs to the first
// line. ok is false only for an empty table.
func (t *LineTable) LineAt(codeIndex int64) (LineLocation, bool) {
	if len(t.sorted) == 0 {
		return LineLocation{}, false
	}
	i := sort.Search(len(t.sorted), func(i int) bool { return t.sorted[i].CodeIndex > codeIndex })
	if i == 0 {
		return t.sorted[0], true
	}
	return t.sorted[i-1], true
}

// LocationsOfLine returns every location mapped to line, in table order,
// restricted to sourceName when it is not empty. An unmatched line gives an
// empty slice.
func (t *LineTable) LocationsOfLine(line int32, sourceName string) []LineLocation {
	return FilterBySource(t.byLine[line], sourceName)
}

// FilterBySource keeps the locations whose source name is sourceName. An
// empty sourceName keeps everything.
func FilterBySource(locs []LineLocation, sourceName string) []LineLocation {
	if sourceName == "" {
		out := make([]LineLocation, len(locs))
		copy(out, locs)
		return out
	}
	out := make([]LineLocation, 0, len(locs))
	for _, l := range locs {
		if l.SourceName == sourceName {
			out = append(out, l)
		}
	}
	return out
}
