package mirror

import (
	"strings"

	"github.com/orizon-lang/sajdwp/internal/debug"
	errs "github.com/orizon-lang/sajdwp/internal/errors"
)

// Location is a code index within a method.
type Location struct {
	Method    *Method
	CodeIndex int64
}

// DeclaringType returns the type declaring the location's method.
func (l Location) DeclaringType() ReferenceType { return l.Method.declaring }

// LineNumber returns the line of the location in the given stratum, or -1
// when there is no line information for it.
func (l Location) LineNumber(stratum string) int32 {
	info, ok := l.Method.lineInfo(stratum, l.CodeIndex)
	if !ok {
		return -1
	}
	return info.Line
}

// SourceName returns the source file of the location in the given stratum.
func (l Location) SourceName(stratum string) (string, error) {
	if info, ok := l.Method.lineInfo(stratum, l.CodeIndex); ok && info.SourceName != "" {
		return info.SourceName, nil
	}
	return l.Method.declaring.base().baseSourceName()
}

// SourcePath returns the source path of the location in the given stratum.
func (l Location) SourcePath(stratum string) (string, error) {
	if info, ok := l.Method.lineInfo(stratum, l.CodeIndex); ok && info.SourcePath != "" {
		return info.SourcePath, nil
	}
	return l.Method.declaring.base().baseSourcePath()
}

// table returns the line table of m in the requested stratum. The base
// table is built once; one secondary table is kept and rebuilt when another
// stratum is requested.
func (m *Method) table(stratumID string) *debug.LineTable {
	s := m.declaring.base().stratum(stratumID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines == nil {
		var raw []debug.RawLine
		if m.IsConcrete() {
			raw = make([]debug.RawLine, len(m.raw.Lines))
			for i, e := range m.raw.Lines {
				raw[i] = debug.RawLine{CodeIndex: e.BCI, Line: e.Line}
			}
		}
		r := m.declaring.base()
		name, _ := r.baseSourceName()
		path, _ := r.baseSourcePath()
		m.lines = debug.BuildBaseTable(raw, name, path)
	}
	if s == nil {
		return m.lines
	}
	if m.other == nil || m.other.Stratum != s.ID {
		m.other = debug.BuildStratumTable(m.lines, s)
	}
	return m.other
}

func (m *Method) lineInfo(stratum string, codeIndex int64) (debug.LineLocation, bool) {
	first, last := m.CodeRange()
	if !m.IsConcrete() || codeIndex < first || codeIndex > last {
		return debug.LineLocation{}, false
	}
	return m.table(stratum).LineAt(codeIndex)
}

func (m *Method) locations(locs []debug.LineLocation) []Location {
	out := make([]Location, len(locs))
	for i, l := range locs {
		out[i] = Location{Method: m, CodeIndex: l.CodeIndex}
	}
	return out
}

// AllLineLocations returns a location per line-table entry in the given
// stratum, restricted to sourceName when it is not empty.
func (m *Method) AllLineLocations(stratum, sourceName string) ([]Location, error) {
	if !m.IsConcrete() {
		return []Location{}, nil
	}
	t := m.table(stratum)
	if t.Empty() {
		return nil, errs.AbsentInformation("line numbers of " + m.Name())
	}
	return m.locations(debug.FilterBySource(t.Locations, sourceName)), nil
}

// LocationsOfLine returns the locations mapped to line. A line without code
// gives an empty slice.
func (m *Method) LocationsOfLine(stratum, sourceName string, line int32) ([]Location, error) {
	if !m.IsConcrete() {
		return []Location{}, nil
	}
	t := m.table(stratum)
	if t.Empty() {
		return nil, errs.AbsentInformation("line numbers of " + m.Name())
	}
	return m.locations(t.LocationsOfLine(line, sourceName)), nil
}

// LocationOfCodeIndex validates codeIndex against the method's code.
func (m *Method) LocationOfCodeIndex(codeIndex int64) (Location, error) {
	first, last := m.CodeRange()
	if !m.IsConcrete() || codeIndex < first || codeIndex > last {
		return Location{}, errs.InvalidArgument(errs.CodeInvalidLocation, "code index out of range")
	}
	return Location{Method: m, CodeIndex: codeIndex}, nil
}

// LineTable returns the code range and base-stratum lines of the method.
// Missing line information yields an empty list.
func (m *Method) LineTable() (start, end int64, lines []debug.LineLocation, err error) {
	if m.IsNative() {
		return 0, 0, nil, errs.NewStandardError(errs.CategoryState, errs.CodeNativeMethod,
			"native method "+m.Name(), nil)
	}
	start, end = m.CodeRange()
	if !m.IsConcrete() {
		return start, end, []debug.LineLocation{}, nil
	}
	t := m.table(debug.BaseStratum)
	lines = make([]debug.LineLocation, len(t.Locations))
	copy(lines, t.Locations)
	return start, end, lines, nil
}

func (r *refType) baseSourceName() (string, error) {
	if r.klass.IsArray() || r.klass.SourceFile == "" {
		return "", errs.AbsentInformation("source name of " + r.klass.Name)
	}
	return r.klass.SourceFile, nil
}

func (r *refType) baseSourceDir() string {
	if i := strings.LastIndexByte(r.klass.Name, '/'); i >= 0 {
		return r.klass.Name[:i+1]
	}
	return ""
}

func (r *refType) baseSourcePath() (string, error) {
	name, err := r.baseSourceName()
	if err != nil {
		return "", err
	}
	return r.baseSourceDir() + name, nil
}

func (r *refType) sdeInfo() *debug.SMAP {
	r.sdeOnce.Do(func() {
		r.sde = noSDE
		if r.klass.IsArray() {
			return
		}
		text, ok := r.vm.compat.SourceDebugExtension(r.klass)
		if !ok {
			return
		}
		smap, err := debug.ParseSMAP(text)
		if err != nil {
			r.vm.log.Debugf("source debug extension of %s: %s", r.klass.Name, err)
			return
		}
		r.sde = smap
	})
	return r.sde
}

// stratum resolves a stratum id, nil meaning the base stratum. An empty id
// uses the session default, then the type's own default. Unknown ids fall
// back to the type's default.
func (r *refType) stratum(id string) *debug.Stratum {
	sde := r.sdeInfo()
	if sde == noSDE {
		return nil
	}
	if id == "" {
		id = r.vm.DefaultStratum()
	}
	if id == "" {
		id = sde.DefaultStratum
	}
	if id == debug.BaseStratum {
		return nil
	}
	if s, ok := sde.Stratum(id); ok {
		return s
	}
	if s, ok := sde.Stratum(sde.DefaultStratum); ok {
		return s
	}
	return nil
}

// SourceName returns the source file name in the default stratum.
func (r *refType) SourceName() (string, error) {
	names, err := r.SourceNames("")
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", errs.AbsentInformation("source name of " + r.klass.Name)
	}
	return names[0], nil
}

// SourceNames returns the source file names of the type in a stratum.
func (r *refType) SourceNames(stratumID string) ([]string, error) {
	s := r.stratum(stratumID)
	if s == nil {
		name, err := r.baseSourceName()
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Name)
	}
	return out, nil
}

// SourcePaths returns the source paths of the type in a stratum.
func (r *refType) SourcePaths(stratumID string) ([]string, error) {
	s := r.stratum(stratumID)
	if s == nil {
		path, err := r.baseSourcePath()
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Path)
	}
	return out, nil
}

// SourceDebugExtension returns the raw SMAP text.
func (r *refType) SourceDebugExtension() (string, error) {
	if !r.klass.IsArray() {
		if text, ok := r.vm.compat.SourceDebugExtension(r.klass); ok {
			return text, nil
		}
	}
	return "", errs.AbsentInformation("source debug extension of " + r.klass.Name)
}

// AvailableStrata lists the strata the type has line information for. The
// base stratum is always present.
func (r *refType) AvailableStrata() []string {
	sde := r.sdeInfo()
	if sde == noSDE {
		return []string{debug.BaseStratum}
	}
	ids := sde.StrataIDs()
	for _, id := range ids {
		if id == debug.BaseStratum {
			return ids
		}
	}
	return append([]string{debug.BaseStratum}, ids...)
}

// DefaultStratum returns the stratum the type's SMAP names as default.
func (r *refType) DefaultStratum() string {
	if sde := r.sdeInfo(); sde != noSDE && sde.DefaultStratum != "" {
		return sde.DefaultStratum
	}
	return debug.BaseStratum
}

// AllLineLocations collects the line locations of every declared method.
// It fails with AbsentInformation only when some method lacks line
// information and none has any.
func (r *refType) AllLineLocations(stratum, sourceName string) ([]Location, error) {
	return r.collectLines(func(m *Method) ([]Location, error) {
		return m.AllLineLocations(stratum, sourceName)
	})
}

// LocationsOfLine collects the locations of line across declared methods.
func (r *refType) LocationsOfLine(stratum, sourceName string, line int32) ([]Location, error) {
	return r.collectLines(func(m *Method) ([]Location, error) {
		return m.LocationsOfLine(stratum, sourceName, line)
	})
}

func (r *refType) collectLines(fn func(*Method) ([]Location, error)) ([]Location, error) {
	if err := r.checkPrepared(); err != nil {
		return nil, err
	}
	methods, err := r.Methods()
	if err != nil {
		return nil, err
	}
	out := []Location{}
	someAbsent := false
	for _, m := range methods {
		if !m.IsConcrete() {
			continue
		}
		locs, err := fn(m)
		if errs.HasCode(err, errs.CodeAbsentInformation) {
			someAbsent = true
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, locs...)
	}
	if someAbsent && len(out) == 0 {
		return nil, errs.AbsentInformation("line numbers of " + r.klass.Name)
	}
	return out, nil
}
