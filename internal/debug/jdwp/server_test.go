package jdwp

import (
	"context"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/orizon-lang/sajdwp/internal/mirror"
	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/compat"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot/snapshottest"
)

// chanConn is an in-memory packet stream.
type chanConn struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newChanConn() *chanConn {
	return &chanConn{in: make(chan []byte, 16), out: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *chanConn) ReadPacket() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *chanConn) WritePacket(b []byte) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	c.out <- b
	return nil
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *chanConn) next(t *testing.T) *Packet {
	t.Helper()
	select {
	case b := <-c.out:
		p, err := ParsePacket(b)
		if err != nil {
			t.Fatalf("unexpected parse error: %v", err)
		}
		return p
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a packet")
	}
	return nil
}

type fixture struct {
	vm     *mirror.VM
	srv    *Server
	thread *provider.Thread
	self   *provider.Oop
	text   *provider.Oop
	ints   *provider.Oop
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	b := snapshottest.New("11")
	foo := b.Class("com/example/Foo", "java/lang/Object")
	b.AddField(foo, "bar", "I", provider.AccPrivate)
	baz := b.AddMethod(foo, "baz", "()V", provider.AccPublic, snapshottest.Line(0, 10), snapshottest.Line(4, 11))
	b.Method(foo, "baz").MaxLocals = 2

	f := &fixture{}
	group := b.NewThreadGroup("main", nil)
	f.self = b.New("com/example/Foo")
	b.Set(f.self, "bar", snapshottest.Int(42))
	f.text = b.NewString("hi")
	f.ints = b.NewArray("[I", snapshottest.Int(1), snapshottest.Int(2), snapshottest.Int(3))
	f.thread = b.NewThread("java/lang/Thread", "worker", group, provider.ThreadAlive|provider.ThreadRunnable,
		provider.Frame{Method: baz, BCI: 4, Locals: []provider.Value{snapshottest.Ref(f.self), snapshottest.Int(7)}},
	)

	img := b.Image()
	mk, _, err := compat.Select(compat.TargetVersion(img))
	if err != nil {
		t.Fatalf("unexpected select error: %v", err)
	}
	f.vm = mirror.New(img, mk(img))
	t.Cleanup(func() { _ = f.vm.Dispose() })
	f.srv = NewServer(f.vm, opts)
	return f
}

func (f *fixture) call(t *testing.T, set, cmd byte, data []byte) *Packet {
	t.Helper()
	reply, end := f.srv.dispatch(&Packet{ID: 1, CommandSet: set, Command: cmd, Data: data})
	if end != nil {
		t.Fatalf("unexpected end of session: %v", end)
	}
	if reply == nil {
		t.Fatalf("unexpected missing reply")
	}
	return reply
}

func (f *fixture) ok(t *testing.T, set, cmd byte, data []byte) *Reader {
	t.Helper()
	reply := f.call(t, set, cmd, data)
	if reply.ErrorCode != ErrNone {
		t.Fatalf("unexpected error %d for %d/%d", reply.ErrorCode, set, cmd)
	}
	return NewReader(reply.Data)
}

func ids(vs ...uint64) []byte {
	w := &Writer{}
	for _, v := range vs {
		w.ID(v)
	}
	return w.Bytes()
}

func (f *fixture) fooID(t *testing.T) uint64 {
	t.Helper()
	w := &Writer{}
	w.String("Lcom/example/Foo;")
	r := f.ok(t, CmdSetVirtualMachine, 2, w.Bytes())
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected match count %d", n)
	}
	if tag := r.Byte(); tag != 1 {
		t.Fatalf("unexpected type tag %d", tag)
	}
	id := r.ID()
	if st := r.Int(); st != 7 {
		t.Fatalf("unexpected status %d", st)
	}
	return id
}

func TestDispatch_EveryCommandReplies(t *testing.T) {
	for _, c := range commandTable {
		f := newFixture(t, Options{})
		reply, end := f.srv.dispatch(&Packet{ID: 1, CommandSet: c.set, Command: c.cmd})
		if c.set == CmdSetVirtualMachine && c.cmd == 6 {
			if end != errDispose || reply == nil || reply.ErrorCode != ErrNone {
				t.Fatalf("unexpected dispose outcome: %v %v", reply, end)
			}
			continue
		}
		if end != nil || reply == nil {
			t.Fatalf("%s: unexpected outcome %v %v", c.name, reply, end)
		}
		if reply.ErrorCode == ErrInternal {
			t.Fatalf("%s: unexpected internal error %q", c.name, reply.Data)
		}
	}
}

func TestDispatch_CommandTableUnique(t *testing.T) {
	if len(commandIndex) != len(commandTable) {
		t.Fatalf("unexpected duplicate command entries: %d vs %d", len(commandIndex), len(commandTable))
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	f := newFixture(t, Options{})
	for _, sc := range [][2]byte{{1, 99}, {42, 1}, {CmdSetEvent, CmdComposite}} {
		reply := f.call(t, sc[0], sc[1], nil)
		if reply.ErrorCode != ErrNotImplemented {
			t.Fatalf("unexpected error %d for %v", reply.ErrorCode, sc)
		}
	}
}

func TestDispatch_PanicBecomesInternal(t *testing.T) {
	f := newFixture(t, Options{})
	cmd := &command{name: "Test.Panic", fn: func(*Server, *Reader, *Writer) error { panic("boom") }}
	err := f.srv.invoke(cmd, NewReader(nil), &Writer{})
	if ErrorNumber(err) != ErrInternal {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestVirtualMachine_Basics(t *testing.T) {
	f := newFixture(t, Options{})

	r := f.ok(t, CmdSetVirtualMachine, 7, nil)
	for i := 0; i < 5; i++ {
		if v := r.Int(); v != 8 {
			t.Fatalf("unexpected id size %d", v)
		}
	}

	r = f.ok(t, CmdSetVirtualMachine, 1, nil)
	_ = r.String()
	if major, minor := r.Int(), r.Int(); major != 1 || minor != 8 {
		t.Fatalf("unexpected JDWP version %d.%d", major, minor)
	}

	r = f.ok(t, CmdSetVirtualMachine, 17, nil)
	if r.Remaining() != 32 {
		t.Fatalf("unexpected capability count %d", r.Remaining())
	}

	r = f.ok(t, CmdSetVirtualMachine, 4, nil)
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected thread count %d", n)
	}
	if id := r.ID(); id != uint64(f.thread.Oop) {
		t.Fatalf("unexpected thread id %#x", id)
	}

	r = f.ok(t, CmdSetVirtualMachine, 3, nil)
	n := int(r.Int())
	found := 0
	for i := 0; i < n; i++ {
		r.Byte()
		r.ID()
		if r.String() == "Lcom/example/Foo;" {
			found++
		}
		r.Int()
	}
	if found != 1 || r.Err() != nil {
		t.Fatalf("unexpected AllClasses listing: found=%d err=%v", found, r.Err())
	}
}

func TestReferenceType_FieldsAndMethods(t *testing.T) {
	f := newFixture(t, Options{})
	foo := f.fooID(t)

	r := f.ok(t, CmdSetReferenceType, 4, ids(foo))
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected field count %d", n)
	}
	fieldID := r.ID()
	if name, sig := r.String(), r.String(); name != "bar" || sig != "I" {
		t.Fatalf("unexpected field %s %s", name, sig)
	}
	if mods := r.Int(); mods != provider.AccPrivate {
		t.Fatalf("unexpected modifiers %#x", mods)
	}

	r = f.ok(t, CmdSetReferenceType, 5, ids(foo))
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected method count %d", n)
	}
	methodID := r.ID()
	if name := r.String(); name != "baz" {
		t.Fatalf("unexpected method %s", name)
	}

	r = f.ok(t, CmdSetMethod, 1, ids(foo, methodID))
	if start, end := r.Long(), r.Long(); start != 0 || end != 4 {
		t.Fatalf("unexpected code range %d..%d", start, end)
	}
	if n := r.Int(); n != 2 {
		t.Fatalf("unexpected line count %d", n)
	}

	w := &Writer{}
	w.ID(uint64(f.self.Address))
	w.Int(1)
	w.ID(fieldID)
	r = f.ok(t, CmdSetObjectReference, 2, w.Bytes())
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected value count %d", n)
	}
	if v := r.Value(); v.Tag != provider.TagInt || int32(v.Bits) != 42 {
		t.Fatalf("unexpected field value %+v", v)
	}

	reply := f.call(t, CmdSetReferenceType, 4, ids(0xdead))
	if reply.ErrorCode != ErrInvalidClass {
		t.Fatalf("unexpected error %d for unknown type", reply.ErrorCode)
	}
}

func TestObjects_StringsAndArrays(t *testing.T) {
	f := newFixture(t, Options{})

	r := f.ok(t, CmdSetStringReference, 1, ids(uint64(f.text.Address)))
	if s := r.String(); s != "hi" {
		t.Fatalf("unexpected string %q", s)
	}

	r = f.ok(t, CmdSetArrayReference, 1, ids(uint64(f.ints.Address)))
	if n := r.Int(); n != 3 {
		t.Fatalf("unexpected length %d", n)
	}

	w := &Writer{}
	w.ID(uint64(f.ints.Address))
	w.Int(1)
	w.Int(2)
	r = f.ok(t, CmdSetArrayReference, 2, w.Bytes())
	if tag, n := r.Byte(), r.Int(); tag != provider.TagInt || n != 2 {
		t.Fatalf("unexpected region header %c %d", tag, n)
	}
	if a, b := r.Int(), r.Int(); a != 2 || b != 3 {
		t.Fatalf("unexpected region %d %d", a, b)
	}

	r = f.ok(t, CmdSetObjectReference, 9, ids(uint64(f.self.Address)))
	if r.Bool() {
		t.Fatalf("unexpected collected object")
	}
	if reply := f.call(t, CmdSetObjectReference, 1, ids(0xbad0)); reply.ErrorCode != ErrInvalidObject {
		t.Fatalf("unexpected error %d for unknown object", reply.ErrorCode)
	}
}

func TestArrayReference_OversizedRegion(t *testing.T) {
	f := newFixture(t, Options{})
	for _, tc := range []struct {
		first, length int32
		want          uint16
	}{
		{1, math.MaxInt32, ErrInvalidLength},
		{math.MaxInt32, 1, ErrInvalidIndex},
		{3, 1, ErrInvalidLength},
		{0, -2, ErrInvalidLength},
	} {
		w := &Writer{}
		w.ID(uint64(f.ints.Address))
		w.Int(tc.first)
		w.Int(tc.length)
		if reply := f.call(t, CmdSetArrayReference, 2, w.Bytes()); reply.ErrorCode != tc.want {
			t.Fatalf("unexpected error %d for region %d+%d", reply.ErrorCode, tc.first, tc.length)
		}
	}

	w := &Writer{}
	w.ID(uint64(f.ints.Address))
	w.Int(3)
	w.Int(-1)
	r := f.ok(t, CmdSetArrayReference, 2, w.Bytes())
	if tag, n := r.Byte(), r.Int(); tag != provider.TagInt || n != 0 {
		t.Fatalf("unexpected empty tail %c %d", tag, n)
	}
}

func TestDispatch_CountBeyondPacket(t *testing.T) {
	f := newFixture(t, Options{})
	foo := f.fooID(t)
	w := &Writer{}
	w.ID(uint64(f.thread.Oop))
	w.Int(0)
	w.Int(-1)
	frames := f.ok(t, CmdSetThreadReference, 6, w.Bytes())
	frames.Int()
	frame := frames.ID()

	huge := func(prefix []byte) []byte {
		w := &Writer{}
		w.Int(math.MaxInt32)
		return append(prefix, w.Bytes()...)
	}
	for _, tc := range []struct {
		name     string
		set, cmd byte
		data     []byte
	}{
		{"ObjectReference.GetValues", CmdSetObjectReference, 2, huge(ids(uint64(f.self.Address)))},
		{"ReferenceType.GetValues", CmdSetReferenceType, 6, huge(ids(foo))},
		{"StackFrame.GetValues", CmdSetStackFrame, 1, huge(ids(uint64(f.thread.Oop), frame))},
		{"VirtualMachine.InstanceCounts", CmdSetVirtualMachine, 21, huge(nil)},
		{"VirtualMachine.DisposeObjects", CmdSetVirtualMachine, 14, huge(nil)},
	} {
		if reply := f.call(t, tc.set, tc.cmd, tc.data); reply.ErrorCode != ErrIllegalArgument {
			t.Fatalf("%s: unexpected error %d", tc.name, reply.ErrorCode)
		}
	}

	// The session keeps serving after a rejected request.
	f.ok(t, CmdSetVirtualMachine, 7, nil)
}

func TestThreads_FramesAndLocals(t *testing.T) {
	f := newFixture(t, Options{})
	thread := uint64(f.thread.Oop)

	r := f.ok(t, CmdSetThreadReference, 1, ids(thread))
	if name := r.String(); name != "worker" {
		t.Fatalf("unexpected thread name %q", name)
	}

	r = f.ok(t, CmdSetThreadReference, 12, ids(thread))
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected suspend count %d", n)
	}

	w := &Writer{}
	w.ID(thread)
	w.Int(0)
	w.Int(-1)
	r = f.ok(t, CmdSetThreadReference, 6, w.Bytes())
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected frame count %d", n)
	}
	frame := r.ID()
	if loc := r.Location(); loc.TypeTag != 1 || loc.Index != 4 {
		t.Fatalf("unexpected location %+v", loc)
	}

	w = &Writer{}
	w.ID(thread)
	w.ID(frame)
	w.Int(1)
	w.Int(1)
	w.Byte(provider.TagInt)
	r = f.ok(t, CmdSetStackFrame, 1, w.Bytes())
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected local count %d", n)
	}
	if v := r.Value(); v.Tag != provider.TagInt || int32(v.Bits) != 7 {
		t.Fatalf("unexpected local %+v", v)
	}

	r = f.ok(t, CmdSetStackFrame, 3, ids(thread, frame))
	if v := r.Value(); v.Tag != provider.TagObject || uint64(v.ID) != uint64(f.self.Address) {
		t.Fatalf("unexpected this object %+v", v)
	}

	w = &Writer{}
	w.ID(thread)
	w.ID(frame)
	w.Int(1)
	w.Int(5)
	w.Byte(provider.TagInt)
	if reply := f.call(t, CmdSetStackFrame, 1, w.Bytes()); reply.ErrorCode != ErrInvalidSlot {
		t.Fatalf("unexpected error %d for bad slot", reply.ErrorCode)
	}

	if reply := f.call(t, CmdSetThreadReference, 2, ids(thread)); reply.ErrorCode != ErrNotImplemented {
		t.Fatalf("unexpected error %d for suspend", reply.ErrorCode)
	}
}

func TestServe_Session(t *testing.T) {
	f := newFixture(t, Options{VMStartEvent: true})
	conn := newChanConn()
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(context.Background(), conn) }()

	ev := conn.next(t)
	if ev.IsReply() || ev.CommandSet != CmdSetEvent || ev.Command != CmdComposite {
		t.Fatalf("unexpected first packet %s", ev)
	}
	r := NewReader(ev.Data)
	if policy, n, kind := r.Byte(), r.Int(), r.Byte(); policy != SuspendPolicyAll || n != 1 || kind != EventKindVMStart {
		t.Fatalf("unexpected event header %d %d %d", policy, n, kind)
	}
	if req, thread := r.Int(), r.ID(); req != 0 || thread != uint64(f.thread.Oop) {
		t.Fatalf("unexpected event body %d %#x", req, thread)
	}

	conn.in <- (&Packet{ID: 5, CommandSet: CmdSetVirtualMachine, Command: 7}).Bytes()
	if reply := conn.next(t); !reply.IsReply() || reply.ID != 5 || len(reply.Data) != 20 {
		t.Fatalf("unexpected IDSizes reply %s", reply)
	}

	conn.in <- (&Packet{ID: 6, CommandSet: CmdSetVirtualMachine, Command: 6}).Bytes()
	if reply := conn.next(t); reply.ID != 6 || reply.ErrorCode != ErrNone || len(reply.Data) != 0 {
		t.Fatalf("unexpected Dispose reply %s", reply)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not end after dispose")
	}
	if f.srv.State() != StateClosed || !f.vm.IsDisposed() {
		t.Fatalf("unexpected state after dispose: %s", f.srv.State())
	}
	if err := f.srv.Serve(context.Background(), newChanConn()); err == nil {
		t.Fatalf("expected error serving twice")
	}
}

func TestServe_ContextCancel(t *testing.T) {
	f := newFixture(t, Options{})
	conn := newChanConn()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, conn) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not end after cancel")
	}
	if !f.vm.IsDisposed() {
		t.Fatalf("unexpected live VM after cancel")
	}
}

// roundTrip sends one command over conn and returns the reply data.
func roundTrip(t *testing.T, conn *chanConn, id uint32, set, cmd byte, data []byte) *Reader {
	t.Helper()
	conn.in <- (&Packet{ID: id, CommandSet: set, Command: cmd, Data: data}).Bytes()
	reply := conn.next(t)
	if !reply.IsReply() || reply.ID != id || reply.ErrorCode != ErrNone {
		t.Fatalf("unexpected reply %s", reply)
	}
	return NewReader(reply.Data)
}

func TestServe_SingleClassTarget(t *testing.T) {
	const ready = provider.StatusVerified | provider.StatusPrepared | provider.StatusInitialized
	img := snapshot.New(&snapshot.Document{
		Format:     snapshot.FormatVersion,
		VM:         provider.VMInfo{Name: "test", Version: "17", SpecVersion: "17"},
		Properties: map[string]string{"java.specification.version": "17"},
		Klasses: []*provider.Klass{{
			Address:     0x100,
			Name:        "com/example/Foo",
			AccessFlags: provider.AccPublic,
			Status:      ready,
			Fields:      []provider.Field{{Address: 0x110, Name: "bar", Signature: "I"}},
			Methods:     []provider.Method{{Address: 0x120, Name: "baz", Signature: "()V", Holder: 0x100, AccessFlags: provider.AccPublic}},
		}},
	})
	mk, _, err := compat.Select(compat.TargetVersion(img))
	if err != nil {
		t.Fatalf("unexpected select error: %v", err)
	}
	vm := mirror.New(img, mk(img))
	srv := NewServer(vm, Options{})
	conn := newChanConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	r := roundTrip(t, conn, 1, CmdSetVirtualMachine, 3, nil)
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected class count %d", n)
	}
	tag, foo := r.Byte(), r.ID()
	if sig, st := r.String(), r.Int(); tag != 1 || sig != "Lcom/example/Foo;" || st != 7 {
		t.Fatalf("unexpected class entry %d %s %d", tag, sig, st)
	}

	r = roundTrip(t, conn, 2, CmdSetReferenceType, 4, ids(foo))
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected field count %d", n)
	}
	r.ID()
	if name, sig := r.String(), r.String(); name != "bar" || sig != "I" {
		t.Fatalf("unexpected field %s %s", name, sig)
	}

	r = roundTrip(t, conn, 3, CmdSetReferenceType, 5, ids(foo))
	if n := r.Int(); n != 1 {
		t.Fatalf("unexpected method count %d", n)
	}
	r.ID()
	if name := r.String(); name != "baz" {
		t.Fatalf("unexpected method %s", name)
	}

	_ = conn.Close()
	if err := <-done; err != nil {
		t.Fatalf("unexpected serve error: %v", err)
	}
	if err := vm.Dispose(); err != nil {
		t.Fatalf("unexpected error from second dispose: %v", err)
	}
}
