package mirror

import (
	"fmt"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Thread status values reported to clients.
const (
	ThreadStatusZombie   int32 = 0
	ThreadStatusRunning  int32 = 1
	ThreadStatusSleeping int32 = 2
	ThreadStatusMonitor  int32 = 3
	ThreadStatusWait     int32 = 4

	// SuspendStatusSuspended is reported for every thread of a frozen target.
	SuspendStatusSuspended int32 = 1
)

// Thread is a view of a java.lang.Thread object.
type Thread struct {
	*Object
}

// ThreadGroup is a view of a java.lang.ThreadGroup object.
type ThreadGroup struct {
	*Object
}

// AsThread returns the thread view of o.
func (o *Object) AsThread() (*Thread, error) {
	if o == nil || o.kind != KindThread {
		return nil, errs.InvalidArgument(errs.CodeInvalidThread, "object is not a thread")
	}
	return &Thread{o}, nil
}

// AsThreadGroup returns the thread group view of o.
func (o *Object) AsThreadGroup() (*ThreadGroup, error) {
	if o == nil || o.kind != KindThreadGroup {
		return nil, errs.InvalidArgument(errs.CodeInvalidThreadGroup, "object is not a thread group")
	}
	return &ThreadGroup{o}, nil
}

func (vm *VM) threadAt(addr provider.Address) (*Thread, error) {
	obj, err := vm.objectAt(addr)
	if err != nil {
		return nil, err
	}
	return obj.AsThread()
}

// ThreadByID resolves a thread id.
func (vm *VM) ThreadByID(id ID) (*Thread, error) {
	obj, err := vm.ObjectByID(id)
	if err != nil {
		if errs.HasCode(err, errs.CodeInvalidObject) {
			return nil, errs.NotFound(errs.CodeInvalidThread, "thread", uint64(id))
		}
		return nil, err
	}
	return obj.AsThread()
}

// ThreadGroupByID resolves a thread group id.
func (vm *VM) ThreadGroupByID(id ID) (*ThreadGroup, error) {
	obj, err := vm.ObjectByID(id)
	if err != nil {
		if errs.HasCode(err, errs.CodeInvalidObject) {
			return nil, errs.NotFound(errs.CodeInvalidThreadGroup, "thread group", uint64(id))
		}
		return nil, err
	}
	return obj.AsThreadGroup()
}

// record returns the provider's thread record for t, or nil for threads
// without one.
func (vm *VM) record(t *Thread) *provider.Thread {
	vm.threadsMu.Lock()
	defer vm.threadsMu.Unlock()
	if vm.threadRec == nil {
		vm.threadRec = make(map[provider.Address]*provider.Thread)
		for _, rec := range vm.p.Threads() {
			vm.threadRec[rec.Oop] = rec
		}
	}
	return vm.threadRec[t.oop.Address]
}

// AllThreads returns the target's visible threads.
func (vm *VM) AllThreads() ([]*Thread, error) {
	if err := vm.checkAlive(); err != nil {
		return nil, err
	}
	out := []*Thread{}
	for _, rec := range vm.p.Threads() {
		if rec.Hidden {
			continue
		}
		t, err := vm.threadAt(rec.Oop)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Name returns the thread's name.
func (t *Thread) Name() (string, error) { return t.vm.compat.ThreadName(t.oop) }

// Status returns the thread status and suspend status.
func (t *Thread) Status() (int32, int32) {
	return threadStatus(t.vm.compat.ThreadStatus(t.oop)), SuspendStatusSuspended
}

func threadStatus(bits int32) int32 {
	const waiting = provider.ThreadWaitingIndefinit | provider.ThreadWaitingTimeout |
		provider.ThreadWaiting | provider.ThreadInObjectWait | provider.ThreadParked
	switch {
	case bits&provider.ThreadTerminated != 0 || bits&provider.ThreadAlive == 0:
		return ThreadStatusZombie
	case bits&provider.ThreadSleeping != 0:
		return ThreadStatusSleeping
	case bits&provider.ThreadBlockedOnMonitor != 0:
		return ThreadStatusMonitor
	case bits&waiting != 0:
		return ThreadStatusWait
	}
	return ThreadStatusRunning
}

// Group returns the thread's group, nil for a terminated thread.
func (t *Thread) Group() (*ThreadGroup, error) {
	addr := t.vm.compat.ThreadGroup(t.oop)
	if addr == 0 {
		return nil, nil
	}
	obj, err := t.vm.objectAt(addr)
	if err != nil {
		return nil, err
	}
	return obj.AsThreadGroup()
}

// Frame is one activation of a thread. Its id is its depth.
type Frame struct {
	Thread   *Thread
	Depth    int
	Location Location
	raw      *provider.Frame
}

// ID returns the frame id.
func (f *Frame) ID() ID { return ID(f.Depth) }

// FrameCount returns the depth of the thread's stack.
func (t *Thread) FrameCount() int {
	rec := t.vm.record(t)
	if rec == nil {
		return 0
	}
	return len(rec.Frames)
}

// Frames returns length frames starting at start; a length of -1 reads to
// the bottom of the stack.
func (t *Thread) Frames(start, length int) ([]*Frame, error) {
	n := t.FrameCount()
	if start < 0 || start > n {
		return nil, errs.InvalidArgument(errs.CodeInvalidIndex, "start frame out of range")
	}
	if length == -1 {
		length = n - start
	}
	if length < 0 || start+length > n {
		return nil, errs.InvalidArgument(errs.CodeInvalidLength, "frame count out of range")
	}
	out := make([]*Frame, 0, length)
	for d := start; d < start+length; d++ {
		f, err := t.Frame(ID(d))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Frame returns the frame with the given id.
func (t *Thread) Frame(id ID) (*Frame, error) {
	rec := t.vm.record(t)
	if rec == nil || uint64(id) >= uint64(len(rec.Frames)) {
		return nil, errs.NotFound(errs.CodeInvalidFrameID, "frame", uint64(id))
	}
	raw := &rec.Frames[id]
	m, err := t.vm.MethodAt(raw.Method)
	if err != nil {
		return nil, err
	}
	return &Frame{Thread: t, Depth: int(id), Location: Location{Method: m, CodeIndex: raw.BCI}, raw: raw}, nil
}

// GetValue reads a local slot as the given signature tag.
func (f *Frame) GetValue(slot int32, tag byte) (Value, error) {
	if slot < 0 || slot >= f.Location.Method.MaxLocals() {
		return Value{}, errs.InvalidArgument(errs.CodeInvalidSlot, "slot out of range")
	}
	sig := string(tag)
	if !provider.IsPrimitiveTag(tag) {
		sig = ""
	}
	if int(slot) >= len(f.raw.Locals) {
		return defaultValue(sig), nil
	}
	raw := f.raw.Locals[slot]
	if sig == "" {
		if raw.Ref == 0 {
			return Null, nil
		}
		obj, err := f.Thread.vm.objectAt(raw.Ref)
		if err != nil {
			return Value{}, err
		}
		return ObjectValue(obj), nil
	}
	return f.Thread.vm.valueOf(raw, sig)
}

// ThisObject returns the receiver of the frame, nil for static and native
// methods.
func (f *Frame) ThisObject() (*Object, error) {
	m := f.Location.Method
	if m.IsStatic() || m.IsNative() || len(f.raw.Locals) == 0 {
		return nil, nil
	}
	return f.Thread.vm.objectAt(f.raw.Locals[0].Ref)
}

// OwnedMonitor is a monitor together with the depth of the frame that
// entered it.
type OwnedMonitor struct {
	Object *Object
	Depth  int32
}

// OwnedMonitorsStackDepth returns the monitors held by the thread.
func (t *Thread) OwnedMonitorsStackDepth() ([]OwnedMonitor, error) {
	out := []OwnedMonitor{}
	rec := t.vm.record(t)
	if rec == nil {
		return out, nil
	}
	for _, mi := range rec.OwnedMonitors {
		obj, err := t.vm.objectAt(mi.Object)
		if err != nil {
			return nil, err
		}
		out = append(out, OwnedMonitor{Object: obj, Depth: mi.Depth})
	}
	return out, nil
}

// OwnedMonitors returns the objects whose monitors the thread holds.
func (t *Thread) OwnedMonitors() ([]*Object, error) {
	owned, err := t.OwnedMonitorsStackDepth()
	if err != nil {
		return nil, err
	}
	out := make([]*Object, len(owned))
	for i, m := range owned {
		out[i] = m.Object
	}
	return out, nil
}

// ContendedMonitor returns the object the thread waits to enter, or nil.
func (t *Thread) ContendedMonitor() (*Object, error) {
	rec := t.vm.record(t)
	if rec == nil {
		return nil, nil
	}
	return t.vm.objectAt(rec.ContendedMonitor)
}

// Name returns the group's name.
func (g *ThreadGroup) Name() (string, error) {
	v, err := g.fieldByName("name")
	if err != nil || v.Object == nil {
		return "", err
	}
	return v.Object.StringValue()
}

// Parent returns the enclosing group, nil for the system group.
func (g *ThreadGroup) Parent() (*ThreadGroup, error) {
	v, err := g.fieldByName("parent")
	if err != nil || v.Object == nil {
		return nil, err
	}
	return v.Object.AsThreadGroup()
}

// Children returns the live threads and the groups directly inside g.
func (g *ThreadGroup) Children() ([]*Thread, []*ThreadGroup, error) {
	all, err := g.vm.AllThreads()
	if err != nil {
		return nil, nil, err
	}
	threads := []*Thread{}
	for _, t := range all {
		if g.vm.compat.ThreadGroup(t.oop) == g.oop.Address {
			threads = append(threads, t)
		}
	}
	groups := []*ThreadGroup{}
	for _, cand := range g.vm.threadGroups() {
		parent, err := cand.Parent()
		if err != nil {
			return nil, nil, err
		}
		if parent != nil && parent.ID() == g.ID() {
			groups = append(groups, cand)
		}
	}
	return threads, groups, nil
}

// threadGroups scans the heap for thread group instances.
func (vm *VM) threadGroups() []*ThreadGroup {
	var oops []*provider.Oop
	vm.p.Heap(func(h *provider.Oop) bool {
		if vm.isThreadGroupKlass(vm.compat.KlassOf(h)) {
			oops = append(oops, h)
		}
		return true
	})
	out := make([]*ThreadGroup, 0, len(oops))
	for _, h := range oops {
		obj, err := vm.MirrorOf(h)
		if err != nil {
			vm.log.Warningf("thread group %#x: %s", uint64(h.Address), err)
			continue
		}
		if g, err := obj.AsThreadGroup(); err == nil {
			out = append(out, g)
		}
	}
	return out
}

func (vm *VM) isThreadGroupKlass(addr provider.Address) bool {
	vm.threadsMu.Lock()
	defer vm.threadsMu.Unlock()
	if vm.groupKind == nil {
		vm.groupKind = make(map[provider.Address]bool)
	}
	if v, ok := vm.groupKind[addr]; ok {
		return v
	}
	v := false
	if k, ok := vm.p.Klass(addr); ok {
		v = vm.classify(k) == KindThreadGroup
	}
	vm.groupKind[addr] = v
	return v
}

// TopLevelThreadGroups returns the root groups of the live threads.
func (vm *VM) TopLevelThreadGroups() ([]*ThreadGroup, error) {
	threads, err := vm.AllThreads()
	if err != nil {
		return nil, err
	}
	out := []*ThreadGroup{}
	seen := make(map[ID]bool)
	for _, t := range threads {
		g, err := t.Group()
		if err != nil {
			return nil, err
		}
		chain := make(map[ID]bool)
		for g != nil {
			if chain[g.ID()] {
				return nil, errs.CorruptSnapshot(fmt.Sprintf("thread group %#x is its own ancestor", uint64(g.ID())), nil)
			}
			chain[g.ID()] = true
			parent, err := g.Parent()
			if err != nil {
				return nil, err
			}
			if parent == nil {
				break
			}
			g = parent
		}
		if g != nil && !seen[g.ID()] {
			seen[g.ID()] = true
			out = append(out, g)
		}
	}
	return out, nil
}
