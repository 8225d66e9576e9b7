package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classWriter assembles minimal class files for tests.
type classWriter struct {
	pool  [][]byte
	index map[string]uint16
}

func newClassWriter() *classWriter {
	return &classWriter{index: make(map[string]uint16)}
}

func (w *classWriter) utf8(s string) uint16 {
	key := "u:" + s
	if i, ok := w.index[key]; ok {
		return i
	}
	b := []byte{TagUtf8, 0, 0}
	binary.BigEndian.PutUint16(b[1:], uint16(len(s)))
	b = append(b, s...)
	w.pool = append(w.pool, b)
	w.index[key] = uint16(len(w.pool))
	return w.index[key]
}

func (w *classWriter) class(name string) uint16 {
	key := "c:" + name
	if i, ok := w.index[key]; ok {
		return i
	}
	n := w.utf8(name)
	w.pool = append(w.pool, []byte{TagClass, byte(n >> 8), byte(n)})
	w.index[key] = uint16(len(w.pool))
	return w.index[key]
}

func u2(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

func u4(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func (w *classWriter) attr(name string, data []byte) []byte {
	out := append(u2(w.utf8(name)), u4(uint32(len(data)))...)
	return append(out, data...)
}

func buildFoo(t *testing.T) []byte {
	t.Helper()
	w := newClassWriter()
	this := w.class("com/example/Foo")
	super := w.class("java/lang/Object")
	inner := w.class("com/example/Foo$Bar")

	var lines bytes.Buffer
	lines.Write(u2(2))
	lines.Write(u2(0))
	lines.Write(u2(10))
	lines.Write(u2(4))
	lines.Write(u2(11))

	var locals bytes.Buffer
	locals.Write(u2(1))
	locals.Write(u2(0))
	locals.Write(u2(5))
	locals.Write(u2(w.utf8("this")))
	locals.Write(u2(w.utf8("Lcom/example/Foo;")))
	locals.Write(u2(0))

	var code bytes.Buffer
	code.Write(u2(1))
	code.Write(u2(1))
	code.Write(u4(5))
	code.Write([]byte{0x2a, 0x00, 0x00, 0x00, 0xb1})
	code.Write(u2(0))
	code.Write(u2(2))
	code.Write(w.attr("LineNumberTable", lines.Bytes()))
	code.Write(w.attr("LocalVariableTable", locals.Bytes()))

	var body bytes.Buffer
	body.Write(u2(0x0021))
	body.Write(u2(this))
	body.Write(u2(super))
	body.Write(u2(0))
	// fields
	body.Write(u2(1))
	body.Write(u2(0x0002))
	body.Write(u2(w.utf8("bar")))
	body.Write(u2(w.utf8("I")))
	body.Write(u2(0))
	// methods
	body.Write(u2(1))
	body.Write(u2(0x0001))
	body.Write(u2(w.utf8("baz")))
	body.Write(u2(w.utf8("()V")))
	body.Write(u2(1))
	body.Write(w.attr("Code", code.Bytes()))
	// class attributes
	var innerData bytes.Buffer
	innerData.Write(u2(1))
	innerData.Write(u2(inner))
	innerData.Write(u2(this))
	innerData.Write(u2(w.utf8("Bar")))
	innerData.Write(u2(0x0008))
	body.Write(u2(3))
	body.Write(w.attr("SourceFile", u2(w.utf8("Foo.java"))))
	body.Write(w.attr("SourceDebugExtension", []byte("SMAP\nFoo.java\nJava\n*E\n")))
	body.Write(w.attr("InnerClasses", innerData.Bytes()))

	var out bytes.Buffer
	out.Write(u4(classMagic))
	out.Write(u2(0))
	out.Write(u2(52))
	out.Write(u2(uint16(len(w.pool) + 1)))
	for _, e := range w.pool {
		out.Write(e)
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestParseBytes_Members(t *testing.T) {
	cf, err := ParseBytes(buildFoo(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cf.MajorVersion != 52 {
		t.Fatalf("major version: got %d", cf.MajorVersion)
	}
	name, err := cf.ClassName()
	if err != nil || name != "com/example/Foo" {
		t.Fatalf("class name: %q %v", name, err)
	}
	if f := cf.FindField("bar"); f == nil || f.Descriptor != "I" {
		t.Fatalf("field bar missing: %+v", f)
	}
	m := cf.FindMethod("baz", "()V")
	if m == nil || m.Code == nil {
		t.Fatalf("method baz missing code")
	}
	if len(m.Code.Code) != 5 || m.Code.MaxLocals != 1 {
		t.Fatalf("unexpected code attribute: %+v", m.Code)
	}
}

func TestParseBytes_DebugAttributes(t *testing.T) {
	cf, err := ParseBytes(buildFoo(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := cf.FindMethod("baz", "()V")
	if len(m.Code.LineNumbers) != 2 || m.Code.LineNumbers[1] != (LineNumber{StartPC: 4, Line: 11}) {
		t.Fatalf("line numbers: %+v", m.Code.LineNumbers)
	}
	if !m.Code.HasLocalVariableTable || len(m.Code.LocalVariables) != 1 || m.Code.LocalVariables[0].Name != "this" {
		t.Fatalf("locals: %+v", m.Code.LocalVariables)
	}
	if cf.SourceFile != "Foo.java" {
		t.Fatalf("source file: %q", cf.SourceFile)
	}
	if cf.SourceDebugExtension == "" || cf.SourceDebugExtension[:4] != "SMAP" {
		t.Fatalf("sde: %q", cf.SourceDebugExtension)
	}
	if len(cf.InnerClasses) != 1 || cf.InnerClasses[0].Inner != "com/example/Foo$Bar" || cf.InnerClasses[0].Outer != "com/example/Foo" {
		t.Fatalf("inner classes: %+v", cf.InnerClasses)
	}
	if len(cf.RawConstantPool) == 0 {
		t.Fatalf("raw constant pool not captured")
	}
}

func TestParseBytes_Truncated(t *testing.T) {
	data := buildFoo(t)
	if _, err := ParseBytes(data[:len(data)-3]); err == nil {
		t.Fatalf("expected error for truncated input")
	}
	if _, err := ParseBytes([]byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Fatalf("expected bad magic error")
	}
}

func TestDecodeModifiedUTF8(t *testing.T) {
	// NUL as C0 80 and U+00E9 as C3 A9
	got := decodeModifiedUTF8([]byte{'a', 0xC0, 0x80, 0xC3, 0xA9})
	if got != "a\x00é" {
		t.Fatalf("got %q", got)
	}
}
