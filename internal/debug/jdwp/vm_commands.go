package jdwp

import (
	"github.com/orizon-lang/sajdwp/internal/mirror"
)

func (s *Server) vmVersion(_ *Reader, out *Writer) error {
	out.String(s.vm.Description())
	out.Int(mirror.JDWPMajor)
	out.Int(mirror.JDWPMinor)
	out.String(s.vm.Version())
	out.String(s.vm.Name())
	return nil
}

func (s *Server) vmClassesBySignature(in *Reader, out *Writer) error {
	sig := in.String()
	if err := in.Err(); err != nil {
		return err
	}
	types := s.vm.TypesBySignature(sig)
	out.Len(len(types))
	for _, t := range types {
		out.TypeRef(t)
		out.Int(t.Status())
	}
	return nil
}

func (s *Server) writeAllClasses(out *Writer, generic bool) {
	types := s.vm.AllTypes()
	out.Len(len(types))
	for _, t := range types {
		out.TypeRef(t)
		out.String(t.Signature())
		if generic {
			out.String(t.GenericSignature())
		}
		out.Int(t.Status())
	}
}

func (s *Server) vmAllClasses(_ *Reader, out *Writer) error {
	s.writeAllClasses(out, false)
	return nil
}

func (s *Server) vmAllClassesWithGeneric(_ *Reader, out *Writer) error {
	s.writeAllClasses(out, true)
	return nil
}

func (s *Server) vmAllThreads(_ *Reader, out *Writer) error {
	threads, err := s.vm.AllThreads()
	if err != nil {
		return err
	}
	out.Len(len(threads))
	for _, t := range threads {
		out.Object(t.Object)
	}
	return nil
}

func (s *Server) vmTopLevelThreadGroups(_ *Reader, out *Writer) error {
	groups, err := s.vm.TopLevelThreadGroups()
	if err != nil {
		return err
	}
	out.Len(len(groups))
	for _, g := range groups {
		out.Object(g.Object)
	}
	return nil
}

func (s *Server) vmDispose(*Reader, *Writer) error { return errDispose }

func (s *Server) vmIDSizes(_ *Reader, out *Writer) error {
	for i := 0; i < 5; i++ {
		out.Int(IDSize)
	}
	return nil
}

func writeBools(out *Writer, bs []bool) {
	for _, b := range bs {
		out.Bool(b)
	}
}

func (s *Server) vmCapabilities(_ *Reader, out *Writer) error {
	writeBools(out, capabilities)
	return nil
}

func (s *Server) vmCapabilitiesNew(_ *Reader, out *Writer) error {
	writeBools(out, capabilitiesNew)
	return nil
}

func writeStrings(out *Writer, ss []string) {
	out.Len(len(ss))
	for _, s := range ss {
		out.String(s)
	}
}

func (s *Server) vmClassPaths(_ *Reader, out *Writer) error {
	out.String(s.vm.BaseDirectory())
	writeStrings(out, s.vm.ClassPath())
	writeStrings(out, s.vm.BootClassPath())
	return nil
}

func (s *Server) vmDisposeObjects(in *Reader, _ *Writer) error {
	n, err := readElements(in, IDSize+4)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		id := in.ID()
		refs := in.Int()
		if err := in.Err(); err != nil {
			return err
		}
		s.vm.Release(mirror.ID(id), int(refs))
	}
	return nil
}

func (s *Server) vmSetDefaultStratum(in *Reader, _ *Writer) error {
	id := in.String()
	if err := in.Err(); err != nil {
		return err
	}
	s.vm.SetDefaultStratum(id)
	return nil
}

func (s *Server) vmInstanceCounts(in *Reader, out *Writer) error {
	n, err := readElements(in, IDSize)
	if err != nil {
		return err
	}
	types := make([]mirror.ReferenceType, 0, n)
	for i := 0; i < n; i++ {
		t, err := s.readType(in)
		if err != nil {
			return err
		}
		types = append(types, t)
	}
	counts := s.vm.InstanceCounts(types)
	out.Len(len(counts))
	for _, c := range counts {
		out.Long(c)
	}
	return nil
}

// eventRequestSet accepts every request. A frozen target never fires
// events, so the request id is always 0.
func (s *Server) eventRequestSet(_ *Reader, out *Writer) error {
	out.Int(0)
	return nil
}
