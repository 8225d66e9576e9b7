package debug

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// SMAP is a parsed source debug extension (JSR-45). It describes how the
// lines of generated code map back to one or more source languages.
type SMAP struct {
	OutputFile     string
	DefaultStratum string
	Strata         []*Stratum
}

// Stratum is one named line-numbering scheme of an SMAP.
type Stratum struct {
	ID    string
	Files []SourceFile
	Lines []LineMapping
}

// SourceFile is one entry of a stratum's file section.
type SourceFile struct {
	ID   int
	Name string
	Path string
}

// LineMapping maps RepeatCount input lines starting at InputStart onto output
// lines starting at OutputStart, OutputIncrement output lines per input line.
type LineMapping struct {
	InputStart      int32
	FileID          int
	RepeatCount     int32
	OutputStart     int32
	OutputIncrement int32
}

// StratumLine is the result of mapping one base line through a stratum.
// Two results are equal when they come from the same mapping entry and land
// on the same line.
type StratumLine struct {
	Stratum    string
	Entry      int
	Line       int32
	SourceName string
	SourcePath string
}

// Stratum returns the stratum with the given id.
func (m *SMAP) Stratum(id string) (*Stratum, bool) {
	for _, s := range m.Strata {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// StrataIDs lists the strata in declaration order.
func (m *SMAP) StrataIDs() []string {
	ids := make([]string, 0, len(m.Strata))
	for _, s := range m.Strata {
		ids = append(ids, s.ID)
	}
	return ids
}

// File returns the file entry with the given id.
func (s *Stratum) File(id int) (SourceFile, bool) {
	for _, f := range s.Files {
		if f.ID == id {
			return f, true
		}
	}
	return SourceFile{}, false
}

// MapLine maps a base-stratum line into s. The first mapping whose output
// range covers javaLine wins.
func (s *Stratum) MapLine(javaLine int32) (StratumLine, bool) {
	for i, lm := range s.Lines {
		incr := lm.OutputIncrement
		if incr <= 0 {
			continue
		}
		end := lm.OutputStart + lm.RepeatCount*incr - 1
		if javaLine < lm.OutputStart || javaLine > end {
			continue
		}
		f, ok := s.File(lm.FileID)
		if !ok {
			return StratumLine{}, false
		}
		return StratumLine{
			Stratum:    s.ID,
			Entry:      i,
			Line:       lm.InputStart + (javaLine-lm.OutputStart)/incr,
			SourceName: f.Name,
			SourcePath: f.Path,
		}, true
	}
	return StratumLine{}, false
}

// ParseSMAP parses the text of a SourceDebugExtension attribute. Vendor
// sections and embedded SMAPs are skipped.
func ParseSMAP(text string) (*SMAP, error) {
	p := &smapParser{sc: bufio.NewScanner(strings.NewReader(text))}
	p.sc.Buffer(make([]byte, 0, 4096), 1<<20)

	hdr, ok := p.next()
	if !ok || hdr != "SMAP" {
		return nil, fmt.Errorf("smap: missing header")
	}
	out, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("smap: missing output file name")
	}
	def, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("smap: missing default stratum")
	}
	m := &SMAP{OutputFile: out, DefaultStratum: strings.TrimSpace(def)}

	var cur *Stratum
	section := ""
	fileID := 0
	embedded := 0
	for {
		line, ok := p.next()
		if !ok {
			break
		}
		if strings.HasPrefix(line, "*") {
			tag := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(tag, "*O"):
				embedded++
				continue
			case strings.HasPrefix(tag, "*C"):
				if embedded > 0 {
					embedded--
				}
				continue
			}
			if embedded > 0 {
				continue
			}
			switch {
			case tag == "*E":
				return m.finish()
			case strings.HasPrefix(tag, "*S"):
				id := strings.TrimSpace(strings.TrimPrefix(tag, "*S"))
				if id == "" {
					return nil, fmt.Errorf("smap: line %d: stratum without id", p.n)
				}
				cur = &Stratum{ID: id}
				m.Strata = append(m.Strata, cur)
				section = "S"
				fileID = 0
			case tag == "*F":
				section = "F"
			case tag == "*L":
				section = "L"
			case tag == "*V":
				section = "V"
			default:
				section = "?"
			}
			if section != "S" && section != "V" && section != "?" && cur == nil {
				return nil, fmt.Errorf("smap: line %d: %s section outside a stratum", p.n, tag)
			}
			continue
		}
		if embedded > 0 {
			continue
		}
		switch section {
		case "F":
			f, err := p.fileEntry(line)
			if err != nil {
				return nil, err
			}
			cur.Files = append(cur.Files, f)
		case "L":
			lm, err := parseLineMapping(line, fileID)
			if err != nil {
				return nil, fmt.Errorf("smap: line %d: %w", p.n, err)
			}
			fileID = lm.FileID
			cur.Lines = append(cur.Lines, lm)
		}
	}
	return m.finish()
}

func (m *SMAP) finish() (*SMAP, error) {
	if m.DefaultStratum != "" && m.DefaultStratum != BaseStratum {
		if _, ok := m.Stratum(m.DefaultStratum); !ok {
			return nil, fmt.Errorf("smap: default stratum %q is not defined", m.DefaultStratum)
		}
	}
	return m, nil
}

type smapParser struct {
	sc *bufio.Scanner
	n  int
}

func (p *smapParser) next() (string, bool) {
	for p.sc.Scan() {
		p.n++
		line := strings.TrimRight(p.sc.Text(), "\r")
		if line == "" {
			continue
		}
		return line, true
	}
	return "", false
}

func (p *smapParser) fileEntry(line string) (SourceFile, error) {
	withPath := false
	if strings.HasPrefix(line, "+") {
		withPath = true
		line = strings.TrimSpace(line[1:])
	}
	idText, name, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return SourceFile{}, fmt.Errorf("smap: line %d: malformed file entry %q", p.n, line)
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return SourceFile{}, fmt.Errorf("smap: line %d: bad file id %q", p.n, idText)
	}
	f := SourceFile{ID: id, Name: strings.TrimSpace(name)}
	if withPath {
		path, ok := p.next()
		if !ok {
			return SourceFile{}, fmt.Errorf("smap: line %d: missing path for file %d", p.n, id)
		}
		f.Path = strings.TrimSpace(path)
	} else {
		f.Path = f.Name
	}
	return f, nil
}

// parseLineMapping decodes InputStart[#FileID][,RepeatCount]:OutputStart[,OutputIncrement].
// The file id is sticky: an entry without one reuses the previous entry's.
func parseLineMapping(line string, fileID int) (LineMapping, error) {
	in, out, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return LineMapping{}, fmt.Errorf("malformed line entry %q", line)
	}
	lm := LineMapping{FileID: fileID, RepeatCount: 1, OutputIncrement: 1}

	if rest, rc, ok := strings.Cut(in, ","); ok {
		n, err := strconv.ParseInt(rc, 10, 32)
		if err != nil {
			return LineMapping{}, fmt.Errorf("bad repeat count %q", rc)
		}
		lm.RepeatCount = int32(n)
		in = rest
	}
	if start, fid, ok := strings.Cut(in, "#"); ok {
		n, err := strconv.Atoi(fid)
		if err != nil {
			return LineMapping{}, fmt.Errorf("bad file id %q", fid)
		}
		lm.FileID = n
		in = start
	}
	n, err := strconv.ParseInt(in, 10, 32)
	if err != nil {
		return LineMapping{}, fmt.Errorf("bad input line %q", in)
	}
	lm.InputStart = int32(n)

	if start, inc, ok := strings.Cut(out, ","); ok {
		n, err := strconv.ParseInt(inc, 10, 32)
		if err != nil {
			return LineMapping{}, fmt.Errorf("bad output increment %q", inc)
		}
		lm.OutputIncrement = int32(n)
		out = start
	}
	n, err = strconv.ParseInt(out, 10, 32)
	if err != nil {
		return LineMapping{}, fmt.Errorf("bad output line %q", out)
	}
	lm.OutputStart = int32(n)
	return lm, nil
}
