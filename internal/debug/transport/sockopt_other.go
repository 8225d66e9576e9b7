//go:build !unix
// +build !unix

package transport

import (
	"net"
	"syscall"
)

func control(_, _ string, _ syscall.RawConn) error { return nil }

func tune(net.Conn) {}
