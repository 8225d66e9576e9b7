package compat

import (
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// jdk8 covers 1.6 through 1.8: strings and thread names are char arrays and
// klasses do not record their flattened interface list.
type jdk8 struct {
	base
}

func (c *jdk8) Name() string { return "jdk8" }

func (c *jdk8) TransitiveInterfaces(k *provider.Klass) []*provider.Klass {
	return c.walkInterfaces(k)
}

func (c *jdk8) StringValue(o *provider.Oop) (string, error) {
	v, ok := c.field(o, c.KlassOf(o), "value")
	if !ok {
		return "", nil
	}
	arr, err := c.object(v.Ref)
	if err != nil {
		return "", err
	}
	s := decodeChars(arr)
	// offset/count were dropped in 7u6 but older snapshots still carry them
	if off, ok := c.field(o, c.KlassOf(o), "offset"); ok {
		if cnt, ok := c.field(o, c.KlassOf(o), "count"); ok {
			runes := []rune(s)
			start, n := int(int32(off.Bits)), int(int32(cnt.Bits))
			if start >= 0 && n >= 0 && start+n <= len(runes) {
				s = string(runes[start : start+n])
			}
		}
	}
	return s, nil
}

func (c *jdk8) ThreadName(o *provider.Oop) (string, error) {
	v, ok := c.field(o, c.KlassOf(o), "name")
	if !ok {
		return "", nil
	}
	obj, err := c.object(v.Ref)
	if err != nil || obj == nil {
		return "", err
	}
	k, ok := c.p.Klass(c.KlassOf(obj))
	if ok && k.Name == "java/lang/String" {
		return c.StringValue(obj)
	}
	return decodeChars(obj), nil
}

func (c *jdk8) ThreadGroup(o *provider.Oop) provider.Address {
	v, _ := c.field(o, c.KlassOf(o), "group")
	return v.Ref
}

func (c *jdk8) ThreadStatus(o *provider.Oop) int32 {
	v, _ := c.field(o, c.KlassOf(o), "threadStatus")
	return int32(v.Bits)
}
