package jdwp

// Command sets.
const (
	CmdSetVirtualMachine       byte = 1
	CmdSetReferenceType        byte = 2
	CmdSetClassType            byte = 3
	CmdSetArrayType            byte = 4
	CmdSetInterfaceType        byte = 5
	CmdSetMethod               byte = 6
	CmdSetObjectReference      byte = 9
	CmdSetStringReference      byte = 10
	CmdSetThreadReference      byte = 11
	CmdSetThreadGroupReference byte = 12
	CmdSetArrayReference       byte = 13
	CmdSetClassLoaderReference byte = 14
	CmdSetEventRequest         byte = 15
	CmdSetStackFrame           byte = 16
	CmdSetClassObjectReference byte = 17
	CmdSetModuleReference      byte = 18
	CmdSetEvent                byte = 64
)

// CmdComposite is the only command of the Event set.
const CmdComposite byte = 100

// Error numbers carried in reply headers.
const (
	ErrNone               uint16 = 0
	ErrInvalidThread      uint16 = 10
	ErrInvalidThreadGroup uint16 = 11
	ErrInvalidObject      uint16 = 20
	ErrInvalidClass       uint16 = 21
	ErrClassNotPrepared   uint16 = 22
	ErrInvalidMethodID    uint16 = 23
	ErrInvalidLocation    uint16 = 24
	ErrInvalidFieldID     uint16 = 25
	ErrInvalidFrameID     uint16 = 30
	ErrInvalidSlot        uint16 = 35
	ErrNotFound           uint16 = 41
	ErrNotImplemented     uint16 = 99
	ErrNullPointer        uint16 = 100
	ErrAbsentInformation  uint16 = 101
	ErrIllegalArgument    uint16 = 103
	ErrVMDead             uint16 = 112
	ErrInternal           uint16 = 113
	ErrInvalidIndex       uint16 = 503
	ErrInvalidLength      uint16 = 504
	ErrInvalidString      uint16 = 506
	ErrInvalidClassLoader uint16 = 507
	ErrInvalidArray       uint16 = 508
	ErrNativeMethod       uint16 = 511
	ErrInvalidCount       uint16 = 512
)

// Event kinds and suspend policies used by server-originated events.
const (
	EventKindVMStart  byte = 90
	EventKindVMDeath  byte = 99
	SuspendPolicyNone byte = 0
	SuspendPolicyAll  byte = 2
)

// IDSize is the width of every id kind on the wire.
const IDSize = 8

// capabilities answers VirtualMachine.Capabilities, in wire order.
var capabilities = []bool{
	false, // canWatchFieldModification
	false, // canWatchFieldAccess
	true,  // canGetBytecodes
	true,  // canGetSyntheticAttribute
	true,  // canGetOwnedMonitorInfo
	true,  // canGetCurrentContendedMonitor
	true,  // canGetMonitorInfo
}

// capabilitiesNew answers VirtualMachine.CapabilitiesNew, in wire order.
var capabilitiesNew = append(append([]bool{}, capabilities...),
	false, // canRedefineClasses
	false, // canAddMethod
	false, // canUnrestrictedlyRedefineClasses
	false, // canPopFrames
	false, // canUseInstanceFilters
	true,  // canGetSourceDebugExtension
	false, // canRequestVMDeathEvent
	true,  // canSetDefaultStratum
	true,  // canGetInstanceInfo
	false, // canRequestMonitorEvents
	true,  // canGetMonitorFrameInfo
	false, // canUseSourceNameFilters
	true,  // canGetConstantPool
	false, // canForceEarlyReturn
	false, // reserved22
	false, // reserved23
	false, // reserved24
	false, // reserved25
	false, // reserved26
	false, // reserved27
	false, // reserved28
	false, // reserved29
	false, // reserved30
	false, // reserved31
	false, // reserved32
)
