package compat

import (
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// jdk19 covers 19 and later: group and status moved into Thread$FieldHolder,
// reachable through the thread's holder field.
type jdk19 struct {
	jdk9
}

func (c *jdk19) Name() string { return "jdk19" }

func (c *jdk19) holder(o *provider.Oop) *provider.Oop {
	v, ok := c.field(o, c.KlassOf(o), "holder")
	if !ok {
		return nil
	}
	h, err := c.object(v.Ref)
	if err != nil {
		return nil
	}
	return h
}

func (c *jdk19) ThreadGroup(o *provider.Oop) provider.Address {
	h := c.holder(o)
	if h == nil {
		return 0
	}
	v, _ := c.field(h, c.KlassOf(h), "group")
	return v.Ref
}

func (c *jdk19) ThreadStatus(o *provider.Oop) int32 {
	h := c.holder(o)
	if h == nil {
		return 0
	}
	v, _ := c.field(h, c.KlassOf(h), "threadStatus")
	return int32(v.Bits)
}
