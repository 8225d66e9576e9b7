package compat

import (
	"github.com/orizon-lang/sajdwp/internal/provider"
)

const (
	coderLatin1 = 0
	coderUTF16  = 1
)

// jdk9 covers 9 through 18: compact strings (byte[] plus coder) and a
// flattened interface list on every instance klass.
type jdk9 struct {
	base
}

func (c *jdk9) Name() string { return "jdk9" }

func (c *jdk9) TransitiveInterfaces(k *provider.Klass) []*provider.Klass {
	if len(k.TransitiveInterfaces) == 0 {
		return c.walkInterfaces(k)
	}
	out := make([]*provider.Klass, 0, len(k.TransitiveInterfaces))
	for _, a := range k.TransitiveInterfaces {
		if ik, ok := c.p.Klass(a); ok {
			out = append(out, ik)
		}
	}
	return out
}

func (c *jdk9) StringValue(o *provider.Oop) (string, error) {
	klass := c.KlassOf(o)
	v, ok := c.field(o, klass, "value")
	if !ok {
		return "", nil
	}
	arr, err := c.object(v.Ref)
	if err != nil {
		return "", err
	}
	coder, _ := c.field(o, klass, "coder")
	if byte(coder.Bits) == coderUTF16 {
		return decodeUTF16Bytes(arr), nil
	}
	return decodeLatin1(arr), nil
}

func (c *jdk9) ThreadName(o *provider.Oop) (string, error) {
	v, ok := c.field(o, c.KlassOf(o), "name")
	if !ok {
		return "", nil
	}
	obj, err := c.object(v.Ref)
	if err != nil || obj == nil {
		return "", err
	}
	return c.StringValue(obj)
}

func (c *jdk9) ThreadGroup(o *provider.Oop) provider.Address {
	v, _ := c.field(o, c.KlassOf(o), "group")
	return v.Ref
}

func (c *jdk9) ThreadStatus(o *provider.Oop) int32 {
	v, _ := c.field(o, c.KlassOf(o), "threadStatus")
	return int32(v.Bits)
}
