package jdwp

import (
	"bytes"
	"testing"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

func TestCodec_RoundTrip(t *testing.T) {
	w := &Writer{}
	w.Bool(true)
	w.Int(-7)
	w.Long(1 << 40)
	w.String("héllo")
	w.String("")
	w.Value(Value{Tag: provider.TagObject, ID: 0x1234})
	w.Value(Value{Tag: provider.TagObject})
	w.Value(Value{Tag: provider.TagChar, Bits: 'x'})
	w.Value(Value{Tag: provider.TagDouble, Bits: 0x400921fb54442d18})
	w.Location(Location{TypeTag: 1, Class: 2, Method: 3, Index: 4})

	r := NewReader(w.Bytes())
	if !r.Bool() {
		t.Fatalf("unexpected bool")
	}
	if v := r.Int(); v != -7 {
		t.Fatalf("unexpected int %d", v)
	}
	if v := r.Long(); v != 1<<40 {
		t.Fatalf("unexpected long %d", v)
	}
	if s := r.String(); s != "héllo" {
		t.Fatalf("unexpected string %q", s)
	}
	if s := r.String(); s != "" {
		t.Fatalf("unexpected empty string %q", s)
	}
	if v := r.Value(); v.Tag != provider.TagObject || v.ID != 0x1234 {
		t.Fatalf("unexpected object value %+v", v)
	}
	if v := r.Value(); v.Tag != provider.TagObject || v.ID != 0 {
		t.Fatalf("unexpected null value %+v", v)
	}
	if v := r.Value(); v.Tag != provider.TagChar || v.Bits != 'x' {
		t.Fatalf("unexpected char value %+v", v)
	}
	if v := r.Value(); v.Bits != 0x400921fb54442d18 {
		t.Fatalf("unexpected double bits %#x", v.Bits)
	}
	if l := r.Location(); l != (Location{TypeTag: 1, Class: 2, Method: 3, Index: 4}) {
		t.Fatalf("unexpected location %+v", l)
	}
	if r.Err() != nil || r.Remaining() != 0 {
		t.Fatalf("unexpected reader state: err=%v remaining=%d", r.Err(), r.Remaining())
	}
}

func TestCodec_WidthsPerTag(t *testing.T) {
	cases := []struct {
		tag  byte
		size int
	}{
		{provider.TagBoolean, 1},
		{provider.TagByte, 1},
		{provider.TagChar, 2},
		{provider.TagShort, 2},
		{provider.TagInt, 4},
		{provider.TagFloat, 4},
		{provider.TagLong, 8},
		{provider.TagDouble, 8},
		{provider.TagVoid, 0},
		{provider.TagObject, IDSize},
		{provider.TagArray, IDSize},
		{provider.TagString, IDSize},
	}
	for _, tc := range cases {
		w := &Writer{}
		w.Value(Value{Tag: tc.tag})
		if len(w.Bytes()) != 1+tc.size {
			t.Fatalf("unexpected width %d for tag %c", len(w.Bytes()), tc.tag)
		}
	}
}

func TestReader_Truncated(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 9, 'a'})
	if s := r.String(); s != "" {
		t.Fatalf("unexpected string %q", s)
	}
	if !errs.HasCode(r.Err(), errs.CodeIllegalArgument) {
		t.Fatalf("unexpected error %v", r.Err())
	}
	if v := r.Int(); v != 0 {
		t.Fatalf("unexpected read after failure %d", v)
	}
	if ErrorNumber(r.Err()) != ErrIllegalArgument {
		t.Fatalf("unexpected error number %d", ErrorNumber(r.Err()))
	}
}

func TestReader_InvalidUTF8(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 2, 0xff, 0xfe})
	_ = r.String()
	if !errs.HasCode(r.Err(), errs.CodeIllegalArgument) {
		t.Fatalf("unexpected error %v", r.Err())
	}
}

func TestPacket_RoundTrip(t *testing.T) {
	cmd := &Packet{ID: 9, CommandSet: CmdSetReferenceType, Command: 1, Data: []byte{1, 2, 3}}
	b := cmd.Bytes()
	if len(b) != HeaderSize+3 {
		t.Fatalf("unexpected encoded length %d", len(b))
	}
	p, err := ParsePacket(b)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.IsReply() || p.ID != 9 || p.CommandSet != CmdSetReferenceType || p.Command != 1 || !bytes.Equal(p.Data, cmd.Data) {
		t.Fatalf("unexpected command %s", p)
	}

	reply := &Packet{ID: 9, Flags: FlagReply, ErrorCode: ErrInvalidObject}
	p, err = ParsePacket(reply.Bytes())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !p.IsReply() || p.ErrorCode != ErrInvalidObject || len(p.Data) != 0 {
		t.Fatalf("unexpected reply %s", p)
	}
}

func TestParsePacket_Malformed(t *testing.T) {
	if _, err := ParsePacket([]byte{0, 0, 0, 11}); err == nil {
		t.Fatalf("expected error for short packet")
	}
	b := (&Packet{ID: 1, CommandSet: 1, Command: 1}).Bytes()
	b[3] = 20
	if _, err := ParsePacket(b); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
}

func TestErrorNumber(t *testing.T) {
	if ErrorNumber(nil) != ErrNone {
		t.Fatalf("unexpected number for nil")
	}
	if n := ErrorNumber(errs.NotFound(errs.CodeInvalidThread, "thread", 1)); n != ErrInvalidThread {
		t.Fatalf("unexpected number %d", n)
	}
	if n := ErrorNumber(errs.AbsentInformation("no lines")); n != ErrAbsentInformation {
		t.Fatalf("unexpected number %d", n)
	}
	if n := ErrorNumber(bytes.ErrTooLarge); n != ErrInternal {
		t.Fatalf("unexpected number %d for foreign error", n)
	}
}
