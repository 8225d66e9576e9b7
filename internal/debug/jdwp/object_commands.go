package jdwp

import (
	"github.com/orizon-lang/sajdwp/internal/mirror"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

func (s *Server) objReferenceType(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	out.TypeRef(o.Type())
	return nil
}

func (s *Server) objGetValues(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	n, err := readElements(in, IDSize)
	if err != nil {
		return err
	}
	values := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		id := in.ID()
		if err := in.Err(); err != nil {
			return err
		}
		f, err := o.Type().FieldByID(mirror.ID(id))
		if err != nil {
			return err
		}
		v, err := o.GetValue(f)
		if err != nil {
			return err
		}
		values = append(values, wireValue(v))
	}
	out.Len(len(values))
	for _, v := range values {
		out.Value(v)
	}
	return nil
}

func (s *Server) objMonitorInfo(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	info, err := o.MonitorInfo()
	if err != nil {
		return err
	}
	if info.Owner != nil {
		out.Object(info.Owner.Object)
	} else {
		out.Object(nil)
	}
	out.Int(info.EntryCount)
	out.Len(len(info.Waiters))
	for _, w := range info.Waiters {
		out.Object(w.Object)
	}
	return nil
}

func (s *Server) objDisableCollection(in *Reader, _ *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	return s.vm.Pin(o.ID())
}

func (s *Server) objEnableCollection(in *Reader, _ *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	return s.vm.Unpin(o.ID())
}

func (s *Server) objIsCollected(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	out.Bool(o.IsCollected())
	return nil
}

func (s *Server) objReferringObjects(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	limit, err := readCount(in)
	if err != nil {
		return err
	}
	refs, err := o.ReferringObjects(limit)
	if err != nil {
		return err
	}
	out.Len(len(refs))
	for _, r := range refs {
		out.TaggedObject(r)
	}
	return nil
}

func (s *Server) stringValue(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	v, err := o.StringValue()
	if err != nil {
		return err
	}
	out.String(v)
	return nil
}

func (s *Server) arrayLength(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	n, err := o.Length()
	if err != nil {
		return err
	}
	out.Int(n)
	return nil
}

// arrayGetValues writes an array region: the component tag, then the
// values, untagged for primitive components and tagged otherwise.
func (s *Server) arrayGetValues(in *Reader, out *Writer) error {
	o, err := s.readObject(in)
	if err != nil {
		return err
	}
	first := in.Int()
	length := in.Int()
	if err := in.Err(); err != nil {
		return err
	}
	values, err := o.ArrayValues(first, length)
	if err != nil {
		return err
	}
	tag := o.ComponentTag()
	out.Byte(tag)
	out.Len(len(values))
	for _, v := range values {
		if provider.IsPrimitiveTag(tag) {
			out.UntaggedValue(wireValue(v))
		} else {
			out.Value(wireValue(v))
		}
	}
	return nil
}

func (s *Server) threadName(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	name, err := t.Name()
	if err != nil {
		return err
	}
	out.String(name)
	return nil
}

func (s *Server) threadStatus(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	status, suspend := t.Status()
	out.Int(status)
	out.Int(suspend)
	return nil
}

func (s *Server) threadGroup(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	g, err := t.Group()
	if err != nil {
		return err
	}
	if g == nil {
		out.Object(nil)
	} else {
		out.Object(g.Object)
	}
	return nil
}

func (s *Server) threadFrames(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	start := in.Int()
	length := in.Int()
	if err := in.Err(); err != nil {
		return err
	}
	frames, err := t.Frames(int(start), int(length))
	if err != nil {
		return err
	}
	out.Len(len(frames))
	for _, f := range frames {
		out.ID(uint64(f.ID()))
		out.Location(wireLocation(f.Location))
	}
	return nil
}

func (s *Server) threadFrameCount(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	out.Len(t.FrameCount())
	return nil
}

func (s *Server) threadOwnedMonitors(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	owned, err := t.OwnedMonitors()
	if err != nil {
		return err
	}
	out.Len(len(owned))
	for _, o := range owned {
		out.TaggedObject(o)
	}
	return nil
}

func (s *Server) threadOwnedMonitorsStackDepth(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	owned, err := t.OwnedMonitorsStackDepth()
	if err != nil {
		return err
	}
	out.Len(len(owned))
	for _, m := range owned {
		out.TaggedObject(m.Object)
		out.Int(m.Depth)
	}
	return nil
}

func (s *Server) threadContendedMonitor(in *Reader, out *Writer) error {
	t, err := s.readThread(in)
	if err != nil {
		return err
	}
	o, err := t.ContendedMonitor()
	if err != nil {
		return err
	}
	out.TaggedObject(o)
	return nil
}

func (s *Server) threadSuspendCount(in *Reader, out *Writer) error {
	if _, err := s.readThread(in); err != nil {
		return err
	}
	out.Int(mirror.SuspendStatusSuspended)
	return nil
}

func (s *Server) groupName(in *Reader, out *Writer) error {
	g, err := s.readThreadGroup(in)
	if err != nil {
		return err
	}
	name, err := g.Name()
	if err != nil {
		return err
	}
	out.String(name)
	return nil
}

func (s *Server) groupParent(in *Reader, out *Writer) error {
	g, err := s.readThreadGroup(in)
	if err != nil {
		return err
	}
	parent, err := g.Parent()
	if err != nil {
		return err
	}
	if parent == nil {
		out.Object(nil)
	} else {
		out.Object(parent.Object)
	}
	return nil
}

func (s *Server) groupChildren(in *Reader, out *Writer) error {
	g, err := s.readThreadGroup(in)
	if err != nil {
		return err
	}
	threads, groups, err := g.Children()
	if err != nil {
		return err
	}
	out.Len(len(threads))
	for _, t := range threads {
		out.Object(t.Object)
	}
	out.Len(len(groups))
	for _, c := range groups {
		out.Object(c.Object)
	}
	return nil
}

func (s *Server) frameGetValues(in *Reader, out *Writer) error {
	f, err := s.readFrame(in)
	if err != nil {
		return err
	}
	n, err := readElements(in, 5)
	if err != nil {
		return err
	}
	values := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		slot := in.Int()
		tag := in.Byte()
		if err := in.Err(); err != nil {
			return err
		}
		v, err := f.GetValue(slot, tag)
		if err != nil {
			return err
		}
		values = append(values, wireValue(v))
	}
	out.Len(len(values))
	for _, v := range values {
		out.Value(v)
	}
	return nil
}

func (s *Server) frameThisObject(in *Reader, out *Writer) error {
	f, err := s.readFrame(in)
	if err != nil {
		return err
	}
	o, err := f.ThisObject()
	if err != nil {
		return err
	}
	out.TaggedObject(o)
	return nil
}
