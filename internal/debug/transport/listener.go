package transport

import (
	"context"
	"net"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sajdwp.transport")

// Listener accepts debugger connections.
type Listener struct {
	ln      net.Listener
	timeout time.Duration
}

// Listen opens a TCP listener on address. HandshakeTimeout bounds the
// greeting exchange of each accepted client; zero disables it.
func Listen(ctx context.Context, address string, handshakeTimeout time.Duration) (*Listener, error) {
	lc := net.ListenConfig{Control: control}
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	log.Infof("listening on %s", ln.Addr())
	return &Listener{ln: ln, timeout: handshakeTimeout}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept waits for a client that completes the handshake. Clients failing
// it are dropped and the wait continues. Accept returns when ctx ends.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		tune(nc)
		if err := ServerHandshake(nc, l.timeout); err != nil {
			log.Warningf("dropping %s: %s", nc.RemoteAddr(), err)
			_ = nc.Close()
			continue
		}
		log.Infof("debugger attached from %s", nc.RemoteAddr())
		return NewConn(nc), nil
	}
}

func (l *Listener) Close() error { return l.ln.Close() }
