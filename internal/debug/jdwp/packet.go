package jdwp

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of a packet header.
const HeaderSize = 11

// FlagReply marks a reply packet.
const FlagReply byte = 0x80

// Packet is a command or a reply. Commands carry CommandSet and Command;
// replies carry ErrorCode.
type Packet struct {
	ID         uint32
	Flags      byte
	CommandSet byte
	Command    byte
	ErrorCode  uint16
	Data       []byte
}

// IsReply reports whether p is a reply.
func (p *Packet) IsReply() bool { return p.Flags&FlagReply != 0 }

func (p *Packet) String() string {
	if p.IsReply() {
		return fmt.Sprintf("reply id=%d error=%d len=%d", p.ID, p.ErrorCode, len(p.Data))
	}
	return fmt.Sprintf("command id=%d %d/%d len=%d", p.ID, p.CommandSet, p.Command, len(p.Data))
}

// ParsePacket decodes one complete packet.
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("short packet: %d bytes", len(b))
	}
	n := binary.BigEndian.Uint32(b[0:4])
	if int(n) != len(b) {
		return nil, fmt.Errorf("packet length %d does not match %d bytes read", n, len(b))
	}
	p := &Packet{
		ID:    binary.BigEndian.Uint32(b[4:8]),
		Flags: b[8],
		Data:  b[HeaderSize:],
	}
	if p.IsReply() {
		p.ErrorCode = binary.BigEndian.Uint16(b[9:11])
	} else {
		p.CommandSet, p.Command = b[9], b[10]
	}
	return p, nil
}

// Bytes encodes p.
func (p *Packet) Bytes() []byte {
	b := make([]byte, HeaderSize+len(p.Data))
	binary.BigEndian.PutUint32(b[0:4], uint32(len(b)))
	binary.BigEndian.PutUint32(b[4:8], p.ID)
	b[8] = p.Flags
	if p.IsReply() {
		binary.BigEndian.PutUint16(b[9:11], p.ErrorCode)
	} else {
		b[9], b[10] = p.CommandSet, p.Command
	}
	copy(b[HeaderSize:], p.Data)
	return b
}
