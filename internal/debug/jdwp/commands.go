package jdwp

import (
	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/mirror"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

type handler func(s *Server, in *Reader, out *Writer) error

type command struct {
	set  byte
	cmd  byte
	name string
	fn   handler
}

type commandKey struct{ set, cmd byte }

// commandTable lists every command the server answers.
var commandTable = []command{
	{CmdSetVirtualMachine, 1, "VirtualMachine.Version", (*Server).vmVersion},
	{CmdSetVirtualMachine, 2, "VirtualMachine.ClassesBySignature", (*Server).vmClassesBySignature},
	{CmdSetVirtualMachine, 3, "VirtualMachine.AllClasses", (*Server).vmAllClasses},
	{CmdSetVirtualMachine, 4, "VirtualMachine.AllThreads", (*Server).vmAllThreads},
	{CmdSetVirtualMachine, 5, "VirtualMachine.TopLevelThreadGroups", (*Server).vmTopLevelThreadGroups},
	{CmdSetVirtualMachine, 6, "VirtualMachine.Dispose", (*Server).vmDispose},
	{CmdSetVirtualMachine, 7, "VirtualMachine.IDSizes", (*Server).vmIDSizes},
	{CmdSetVirtualMachine, 8, "VirtualMachine.Suspend", noop},
	{CmdSetVirtualMachine, 9, "VirtualMachine.Resume", noop},
	{CmdSetVirtualMachine, 10, "VirtualMachine.Exit", noop},
	{CmdSetVirtualMachine, 11, "VirtualMachine.CreateString", notImplemented},
	{CmdSetVirtualMachine, 12, "VirtualMachine.Capabilities", (*Server).vmCapabilities},
	{CmdSetVirtualMachine, 13, "VirtualMachine.ClassPaths", (*Server).vmClassPaths},
	{CmdSetVirtualMachine, 14, "VirtualMachine.DisposeObjects", (*Server).vmDisposeObjects},
	{CmdSetVirtualMachine, 15, "VirtualMachine.HoldEvents", noop},
	{CmdSetVirtualMachine, 16, "VirtualMachine.ReleaseEvents", noop},
	{CmdSetVirtualMachine, 17, "VirtualMachine.CapabilitiesNew", (*Server).vmCapabilitiesNew},
	{CmdSetVirtualMachine, 18, "VirtualMachine.RedefineClasses", notImplemented},
	{CmdSetVirtualMachine, 19, "VirtualMachine.SetDefaultStratum", (*Server).vmSetDefaultStratum},
	{CmdSetVirtualMachine, 20, "VirtualMachine.AllClassesWithGeneric", (*Server).vmAllClassesWithGeneric},
	{CmdSetVirtualMachine, 21, "VirtualMachine.InstanceCounts", (*Server).vmInstanceCounts},
	{CmdSetVirtualMachine, 22, "VirtualMachine.AllModules", notImplemented},

	{CmdSetReferenceType, 1, "ReferenceType.Signature", (*Server).rtSignature},
	{CmdSetReferenceType, 2, "ReferenceType.ClassLoader", (*Server).rtClassLoader},
	{CmdSetReferenceType, 3, "ReferenceType.Modifiers", (*Server).rtModifiers},
	{CmdSetReferenceType, 4, "ReferenceType.Fields", (*Server).rtFields},
	{CmdSetReferenceType, 5, "ReferenceType.Methods", (*Server).rtMethods},
	{CmdSetReferenceType, 6, "ReferenceType.GetValues", (*Server).rtGetValues},
	{CmdSetReferenceType, 7, "ReferenceType.SourceFile", (*Server).rtSourceFile},
	{CmdSetReferenceType, 8, "ReferenceType.NestedTypes", (*Server).rtNestedTypes},
	{CmdSetReferenceType, 9, "ReferenceType.Status", (*Server).rtStatus},
	{CmdSetReferenceType, 10, "ReferenceType.Interfaces", (*Server).rtInterfaces},
	{CmdSetReferenceType, 11, "ReferenceType.ClassObject", (*Server).rtClassObject},
	{CmdSetReferenceType, 12, "ReferenceType.SourceDebugExtension", (*Server).rtSourceDebugExtension},
	{CmdSetReferenceType, 13, "ReferenceType.SignatureWithGeneric", (*Server).rtSignatureWithGeneric},
	{CmdSetReferenceType, 14, "ReferenceType.FieldsWithGeneric", (*Server).rtFieldsWithGeneric},
	{CmdSetReferenceType, 15, "ReferenceType.MethodsWithGeneric", (*Server).rtMethodsWithGeneric},
	{CmdSetReferenceType, 16, "ReferenceType.Instances", (*Server).rtInstances},
	{CmdSetReferenceType, 17, "ReferenceType.ClassFileVersion", (*Server).rtClassFileVersion},
	{CmdSetReferenceType, 18, "ReferenceType.ConstantPool", (*Server).rtConstantPool},
	{CmdSetReferenceType, 19, "ReferenceType.Module", notImplemented},

	{CmdSetClassType, 1, "ClassType.Superclass", (*Server).ctSuperclass},
	{CmdSetClassType, 2, "ClassType.SetValues", notImplemented},
	{CmdSetClassType, 3, "ClassType.InvokeMethod", notImplemented},
	{CmdSetClassType, 4, "ClassType.NewInstance", notImplemented},

	{CmdSetArrayType, 1, "ArrayType.NewInstance", notImplemented},

	{CmdSetInterfaceType, 1, "InterfaceType.InvokeMethod", notImplemented},

	{CmdSetMethod, 1, "Method.LineTable", (*Server).methodLineTable},
	{CmdSetMethod, 2, "Method.VariableTable", (*Server).methodVariableTable},
	{CmdSetMethod, 3, "Method.Bytecodes", (*Server).methodBytecodes},
	{CmdSetMethod, 4, "Method.IsObsolete", (*Server).methodIsObsolete},
	{CmdSetMethod, 5, "Method.VariableTableWithGeneric", (*Server).methodVariableTableWithGeneric},

	{CmdSetObjectReference, 1, "ObjectReference.ReferenceType", (*Server).objReferenceType},
	{CmdSetObjectReference, 2, "ObjectReference.GetValues", (*Server).objGetValues},
	{CmdSetObjectReference, 3, "ObjectReference.SetValues", notImplemented},
	{CmdSetObjectReference, 5, "ObjectReference.MonitorInfo", (*Server).objMonitorInfo},
	{CmdSetObjectReference, 6, "ObjectReference.InvokeMethod", notImplemented},
	{CmdSetObjectReference, 7, "ObjectReference.DisableCollection", (*Server).objDisableCollection},
	{CmdSetObjectReference, 8, "ObjectReference.EnableCollection", (*Server).objEnableCollection},
	{CmdSetObjectReference, 9, "ObjectReference.IsCollected", (*Server).objIsCollected},
	{CmdSetObjectReference, 10, "ObjectReference.ReferringObjects", (*Server).objReferringObjects},

	{CmdSetStringReference, 1, "StringReference.Value", (*Server).stringValue},

	{CmdSetThreadReference, 1, "ThreadReference.Name", (*Server).threadName},
	{CmdSetThreadReference, 2, "ThreadReference.Suspend", notImplemented},
	{CmdSetThreadReference, 3, "ThreadReference.Resume", notImplemented},
	{CmdSetThreadReference, 4, "ThreadReference.Status", (*Server).threadStatus},
	{CmdSetThreadReference, 5, "ThreadReference.ThreadGroup", (*Server).threadGroup},
	{CmdSetThreadReference, 6, "ThreadReference.Frames", (*Server).threadFrames},
	{CmdSetThreadReference, 7, "ThreadReference.FrameCount", (*Server).threadFrameCount},
	{CmdSetThreadReference, 8, "ThreadReference.OwnedMonitors", (*Server).threadOwnedMonitors},
	{CmdSetThreadReference, 9, "ThreadReference.CurrentContendedMonitor", (*Server).threadContendedMonitor},
	{CmdSetThreadReference, 10, "ThreadReference.Stop", notImplemented},
	{CmdSetThreadReference, 11, "ThreadReference.Interrupt", notImplemented},
	{CmdSetThreadReference, 12, "ThreadReference.SuspendCount", (*Server).threadSuspendCount},
	{CmdSetThreadReference, 13, "ThreadReference.OwnedMonitorsStackDepthInfo", (*Server).threadOwnedMonitorsStackDepth},
	{CmdSetThreadReference, 14, "ThreadReference.ForceEarlyReturn", notImplemented},

	{CmdSetThreadGroupReference, 1, "ThreadGroupReference.Name", (*Server).groupName},
	{CmdSetThreadGroupReference, 2, "ThreadGroupReference.Parent", (*Server).groupParent},
	{CmdSetThreadGroupReference, 3, "ThreadGroupReference.Children", (*Server).groupChildren},

	{CmdSetArrayReference, 1, "ArrayReference.Length", (*Server).arrayLength},
	{CmdSetArrayReference, 2, "ArrayReference.GetValues", (*Server).arrayGetValues},
	{CmdSetArrayReference, 3, "ArrayReference.SetValues", notImplemented},

	{CmdSetClassLoaderReference, 1, "ClassLoaderReference.VisibleClasses", (*Server).loaderVisibleClasses},

	{CmdSetEventRequest, 1, "EventRequest.Set", (*Server).eventRequestSet},
	{CmdSetEventRequest, 2, "EventRequest.Clear", noop},
	{CmdSetEventRequest, 3, "EventRequest.ClearAllBreakpoints", notImplemented},

	{CmdSetStackFrame, 1, "StackFrame.GetValues", (*Server).frameGetValues},
	{CmdSetStackFrame, 2, "StackFrame.SetValues", notImplemented},
	{CmdSetStackFrame, 3, "StackFrame.ThisObject", (*Server).frameThisObject},
	{CmdSetStackFrame, 4, "StackFrame.PopFrames", notImplemented},

	{CmdSetClassObjectReference, 1, "ClassObjectReference.ReflectedType", (*Server).classObjectReflectedType},

	{CmdSetModuleReference, 1, "ModuleReference.Name", notImplemented},
	{CmdSetModuleReference, 2, "ModuleReference.ClassLoader", notImplemented},
}

var commandIndex = indexCommands(commandTable)

func indexCommands(table []command) map[commandKey]*command {
	idx := make(map[commandKey]*command, len(table))
	for i := range table {
		c := &table[i]
		idx[commandKey{c.set, c.cmd}] = c
	}
	return idx
}

func lookupCommand(set, cmd byte) (*command, bool) {
	c, ok := commandIndex[commandKey{set, cmd}]
	return c, ok
}

func noop(*Server, *Reader, *Writer) error { return nil }

func notImplemented(*Server, *Reader, *Writer) error {
	return errs.NotImplemented("command")
}

func (s *Server) readType(in *Reader) (mirror.ReferenceType, error) {
	id := in.ID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return s.vm.TypeByID(mirror.ID(id))
}

func (s *Server) readMethod(in *Reader) (*mirror.Method, error) {
	t, err := s.readType(in)
	if err != nil {
		return nil, err
	}
	id := in.ID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return t.MethodByID(mirror.ID(id))
}

func (s *Server) readObject(in *Reader) (*mirror.Object, error) {
	id := in.ID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return s.vm.ObjectByID(mirror.ID(id))
}

func (s *Server) readThread(in *Reader) (*mirror.Thread, error) {
	id := in.ID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return s.vm.ThreadByID(mirror.ID(id))
}

func (s *Server) readThreadGroup(in *Reader) (*mirror.ThreadGroup, error) {
	id := in.ID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return s.vm.ThreadGroupByID(mirror.ID(id))
}

func (s *Server) readFrame(in *Reader) (*mirror.Frame, error) {
	t, err := s.readThread(in)
	if err != nil {
		return nil, err
	}
	id := in.ID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return t.Frame(mirror.ID(id))
}

// readCount reads a non-negative element count.
func readCount(in *Reader) (int, error) {
	n := in.Int()
	if err := in.Err(); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errs.InvalidArgument(errs.CodeIllegalArgument, "negative count")
	}
	return int(n), nil
}

// readElements reads the count of a list whose entries are at least width
// bytes each. A count the rest of the packet cannot hold is rejected.
func readElements(in *Reader, width int) (int, error) {
	n, err := readCount(in)
	if err != nil {
		return 0, err
	}
	if n > in.Remaining()/width {
		return 0, errs.InvalidArgument(errs.CodeIllegalArgument, "count exceeds packet")
	}
	return n, nil
}

// modBits returns access flags with the wire marker for synthetic members.
func modBits(mods int32) int32 {
	if mods&provider.AccSynthetic != 0 {
		return int32(uint32(mods) | 0xF0000000)
	}
	return mods
}
