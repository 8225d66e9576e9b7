// Package transport carries JDWP packets over TCP: the handshake, length
// framing and the single-client listener.
package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// headerSize is the length of a JDWP packet header.
const headerSize = 11

// MaxPacketSize bounds the length a peer may announce.
const MaxPacketSize = 64 << 20

// Conn is a framed JDWP packet stream over a net.Conn.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader

	wmu sync.Mutex
}

// NewConn frames nc. The handshake must already be done.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc)}
}

// ReadPacket returns the next complete packet, header included.
func (c *Conn) ReadPacket() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n < headerSize || n > MaxPacketSize {
		return nil, fmt.Errorf("bad packet length %d", n)
	}
	b := make([]byte, n)
	copy(b, hdr[:])
	if _, err := io.ReadFull(c.r, b[4:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

// WritePacket writes one encoded packet.
func (c *Conn) WritePacket(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.nc.Write(b)
	return err
}

func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }
