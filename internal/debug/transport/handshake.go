package transport

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"
)

// Handshake is the greeting both sides exchange before the first packet.
const Handshake = "JDWP-Handshake"

// ServerHandshake reads the client's greeting and echoes it. A zero timeout
// waits indefinitely.
func ServerHandshake(nc net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		if err := nc.SetDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer nc.SetDeadline(time.Time{})
	}
	buf := make([]byte, len(Handshake))
	if _, err := io.ReadFull(nc, buf); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if !bytes.Equal(buf, []byte(Handshake)) {
		return fmt.Errorf("handshake: unexpected greeting %q", buf)
	}
	if _, err := nc.Write(buf); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// ClientHandshake sends the greeting and waits for the echo.
func ClientHandshake(nc net.Conn) error {
	if _, err := io.WriteString(nc, Handshake); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	buf := make([]byte, len(Handshake))
	if _, err := io.ReadFull(nc, buf); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if string(buf) != Handshake {
		return fmt.Errorf("handshake: unexpected reply %q", buf)
	}
	return nil
}
