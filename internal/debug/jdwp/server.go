// Package jdwp serves the Java Debug Wire Protocol over a mirror.VM: it
// decodes command packets, dispatches them through a static command table
// and encodes the replies.
package jdwp

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/mirror"
)

var log = commonlog.GetLogger("sajdwp.jdwp")

// Conn is a framed packet stream.
type Conn interface {
	ReadPacket() ([]byte, error)
	WritePacket(b []byte) error
	Close() error
}

// State is the lifecycle position of a session.
type State int32

const (
	StateListening State = iota
	StateConnected
	StateServing
	StateDisposing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateServing:
		return "serving"
	case StateDisposing:
		return "disposing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Options tune a Server.
type Options struct {
	// VMStartEvent sends a VM_START composite event before the first
	// request is read.
	VMStartEvent bool
}

// errDispose ends the session after the reply to VirtualMachine.Dispose.
var errDispose = stderrors.New("dispose requested")

// Server serves one session over one connection.
type Server struct {
	vm   *mirror.VM
	opts Options
	log  commonlog.Logger

	state  atomic.Int32
	nextID atomic.Uint32

	serveOnce sync.Once
}

// NewServer returns a server for vm.
func NewServer(vm *mirror.VM, opts Options) *Server {
	return &Server{
		vm:   vm,
		opts: opts,
		log:  commonlog.NewKeyValueLogger(log, "session", vm.Session().String()),
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debugf("session %s", st)
}

// Serve runs the session on conn until the peer disconnects, the client
// disposes the VM, ctx ends or the target fails. It closes conn and
// disposes the VM before returning. A Server serves at most once.
func (s *Server) Serve(ctx context.Context, conn Conn) error {
	var err error = errs.NewStandardError(errs.CategoryState, errs.CodeVMDead, "session already served", nil)
	s.serveOnce.Do(func() { err = s.serve(ctx, conn) })
	return err
}

func (s *Server) serve(ctx context.Context, conn Conn) (err error) {
	s.setState(StateConnected)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		s.setState(StateDisposing)
		_ = conn.Close()
		if derr := s.vm.Dispose(); derr != nil && err == nil {
			err = derr
		}
		s.setState(StateClosed)
	}()

	if s.opts.VMStartEvent {
		if err := conn.WritePacket(s.vmStartEvent().Bytes()); err != nil {
			return s.endOfStream(ctx, err)
		}
	}

	s.setState(StateServing)
	for {
		b, err := conn.ReadPacket()
		if err != nil {
			return s.endOfStream(ctx, err)
		}
		p, err := ParsePacket(b)
		if err != nil {
			return errs.Disconnected(err)
		}
		if p.IsReply() {
			s.log.Debugf("ignoring %s", p)
			continue
		}
		reply, end := s.dispatch(p)
		if reply != nil {
			if err := conn.WritePacket(reply.Bytes()); err != nil {
				return s.endOfStream(ctx, err)
			}
		}
		if end == errDispose {
			s.log.Info("client disposed the session")
			return nil
		}
		if end != nil {
			s.log.Errorf("ending session: %s", end)
			return end
		}
	}
}

// endOfStream classifies a transport failure. A peer hang-up or a
// cancelled context is a normal end.
func (s *Server) endOfStream(ctx context.Context, err error) error {
	if ctx.Err() != nil || stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed) {
		s.log.Info("peer disconnected")
		return nil
	}
	return errs.Disconnected(err)
}

// dispatch runs the handler of p. It returns the reply to send, or nil when
// the session must end without one, and a non-nil end when the session
// ends after this request.
func (s *Server) dispatch(p *Packet) (reply *Packet, end error) {
	reply = &Packet{ID: p.ID, Flags: FlagReply}
	cmd, ok := lookupCommand(p.CommandSet, p.Command)
	if !ok {
		s.log.Warningf("unknown command %d/%d", p.CommandSet, p.Command)
		reply.ErrorCode = ErrNotImplemented
		return reply, nil
	}
	out := &Writer{}
	err := s.invoke(cmd, NewReader(p.Data), out)
	switch {
	case err == nil:
		reply.Data = out.Bytes()
	case err == errDispose:
		return reply, errDispose
	case errs.IsFatal(err):
		return nil, err
	default:
		reply.ErrorCode = ErrorNumber(err)
		if reply.ErrorCode == ErrInternal {
			s.log.Errorf("%s: %s", cmd.name, err)
			out.Reset()
			out.String(err.Error())
			reply.Data = out.Bytes()
		} else {
			s.log.Debugf("%s: %s", cmd.name, err)
		}
	}
	return reply, nil
}

// invoke calls the handler, turning a panic into an internal error.
func (s *Server) invoke(cmd *command, in *Reader, out *Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("%s panicked: %v\n%s", cmd.name, r, debug.Stack())
			err = errs.Internal("%s: %v", cmd.name, r)
		}
	}()
	s.log.Debugf("%s", cmd.name)
	return cmd.fn(s, in, out)
}

// vmStartEvent builds the composite event a live agent sends on attach.
func (s *Server) vmStartEvent() *Packet {
	w := &Writer{}
	w.Byte(SuspendPolicyAll)
	w.Int(1)
	w.Byte(EventKindVMStart)
	w.Int(0)
	var thread *mirror.Object
	if threads, err := s.vm.AllThreads(); err == nil && len(threads) > 0 {
		thread = threads[0].Object
	}
	w.Object(thread)
	return &Packet{
		ID:         s.nextID.Add(1),
		CommandSet: CmdSetEvent,
		Command:    CmdComposite,
		Data:       w.Bytes(),
	}
}
