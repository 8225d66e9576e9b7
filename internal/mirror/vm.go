// Package mirror turns the raw records of an introspection provider into
// stable, protocol-addressable mirrors: types and their members, heap
// objects, threads and frames. One VM exists per debugging session.
package mirror

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/compat"
)

var log = commonlog.GetLogger("sajdwp.mirror")

// ID is the protocol identity of a mirror. Types, members and objects use
// the address of the entity they mirror; frames use their depth.
type ID uint64

// Well-known classes the object cache classifies against.
const (
	javaLangObject      = "java/lang/Object"
	javaLangString      = "java/lang/String"
	javaLangThread      = "java/lang/Thread"
	javaLangThreadGroup = "java/lang/ThreadGroup"
	javaLangClass       = "java/lang/Class"
	javaLangClassLoader = "java/lang/ClassLoader"
	javaLangThrowable   = "java/lang/Throwable"
)

// JDWP protocol version reported to clients.
const (
	JDWPMajor = 1
	JDWPMinor = 8
)

// VM is the root of one debugging session over a frozen target.
type VM struct {
	p       provider.Provider
	compat  compat.Compat
	session uuid.UUID
	log     commonlog.Logger

	typesMu      sync.Mutex
	typesByKlass map[provider.Address]ReferenceType
	typesByID    map[ID]ReferenceType
	allTypes     []ReferenceType
	retrieved    bool
	primitives   map[byte]*PrimitiveType
	void         *VoidType
	methodIndex  map[provider.Address]provider.Address

	objMu   sync.Mutex
	objects map[provider.Address]*objectEntry
	flight  singleflight.Group

	threadsMu sync.Mutex
	threadRec map[provider.Address]*provider.Thread
	groupKind map[provider.Address]bool

	stratumMu      sync.RWMutex
	defaultStratum string

	disposeOnce sync.Once
	disposed    chan struct{}
	disposeErr  error
}

// New builds the session root over p using the version layer c.
func New(p provider.Provider, c compat.Compat) *VM {
	id := uuid.New()
	vm := &VM{
		p:            p,
		compat:       c,
		session:      id,
		log:          commonlog.NewKeyValueLogger(log, "session", id.String()),
		typesByKlass: make(map[provider.Address]ReferenceType),
		typesByID:    make(map[ID]ReferenceType),
		primitives:   make(map[byte]*PrimitiveType),
		objects:      make(map[provider.Address]*objectEntry),
		disposed:     make(chan struct{}),
	}
	for _, tag := range []byte{'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D'} {
		vm.primitives[tag] = &PrimitiveType{vm: vm, tag: tag}
	}
	vm.void = &VoidType{vm: vm}
	vm.log.Infof("session started on %s layout", c.Name())
	return vm
}

// Session returns the identity of this session.
func (vm *VM) Session() uuid.UUID { return vm.session }

// Provider returns the introspection source.
func (vm *VM) Provider() provider.Provider { return vm.p }

// Compat returns the version layer in use.
func (vm *VM) Compat() compat.Compat { return vm.compat }

// Logger returns the session logger.
func (vm *VM) Logger() commonlog.Logger { return vm.log }

// Dispose releases the session and closes the provider. Later calls return
// the result of the first one.
func (vm *VM) Dispose() error {
	vm.disposeOnce.Do(func() {
		close(vm.disposed)
		vm.objMu.Lock()
		vm.objects = make(map[provider.Address]*objectEntry)
		vm.objMu.Unlock()
		vm.disposeErr = vm.p.Close()
		vm.log.Info("session disposed")
	})
	return vm.disposeErr
}

// Disposed is closed once Dispose has run.
func (vm *VM) Disposed() <-chan struct{} { return vm.disposed }

// IsDisposed reports whether Dispose has run.
func (vm *VM) IsDisposed() bool {
	select {
	case <-vm.disposed:
		return true
	default:
		return false
	}
}

// SetDefaultStratum sets the stratum used when a query names none. An
// empty id restores each type's own default.
func (vm *VM) SetDefaultStratum(id string) {
	vm.stratumMu.Lock()
	vm.defaultStratum = id
	vm.stratumMu.Unlock()
}

// DefaultStratum returns the session-wide default stratum, if any.
func (vm *VM) DefaultStratum() string {
	vm.stratumMu.RLock()
	defer vm.stratumMu.RUnlock()
	return vm.defaultStratum
}

func (vm *VM) property(key string) string {
	v, _ := vm.p.Property(key)
	return v
}

// Version returns the target's java.version.
func (vm *VM) Version() string {
	if v := vm.property("java.version"); v != "" {
		return v
	}
	return vm.p.Info().Version
}

// Name describes the target runtime.
func (vm *VM) Name() string {
	name := vm.property("java.vm.name")
	if name == "" {
		name = vm.p.Info().Name
	}
	return fmt.Sprintf("JVM version %s (%s, %s)", vm.Version(), name, vm.property("java.vm.info"))
}

// Description is the text reported by VirtualMachine.Version.
func (vm *VM) Description() string {
	return fmt.Sprintf("Java Debug Interface (Reference Implementation) version %d.%d \n%s", JDWPMajor, JDWPMinor, vm.Name())
}

func (vm *VM) path(key string) []string {
	v := vm.property(key)
	if v == "" {
		return []string{}
	}
	sep := vm.property("path.separator")
	if sep == "" {
		sep = ":"
	}
	var out []string
	for _, e := range strings.Split(v, sep) {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// ClassPath returns the entries of java.class.path.
func (vm *VM) ClassPath() []string { return vm.path("java.class.path") }

// BootClassPath returns the entries of sun.boot.class.path.
func (vm *VM) BootClassPath() []string { return vm.path("sun.boot.class.path") }

// BaseDirectory returns the target's working directory.
func (vm *VM) BaseDirectory() string { return vm.property("user.dir") }

func (vm *VM) checkAlive() error {
	if vm.IsDisposed() {
		return errs.NewStandardError(errs.CategoryState, errs.CodeVMDead, "session disposed", nil)
	}
	return nil
}
