package mirror

import (
	"unicode"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
)

// LocalVariable is one entry of a method's local-variable table.
type LocalVariable struct {
	Method           *Method
	Name             string
	Signature        string
	GenericSignature string
	Slot             int32
	Start            int64
	Length           int32
}

// IsArgument reports whether the variable is a method argument.
func (v LocalVariable) IsArgument() bool { return v.Slot < v.Method.ArgSlotCount() }

// IsVisible reports whether the variable is in scope at codeIndex.
func (v LocalVariable) IsVisible(codeIndex int64) bool {
	return codeIndex >= v.Start && codeIndex < v.Start+int64(v.Length)
}

// isInternalName matches the synthetic "this" aliases compilers emit for
// outer instances, e.g. this$0.
func isInternalName(name string) bool {
	if len(name) < 4 || name[:4] != "this" {
		return false
	}
	if len(name) == 4 {
		return true
	}
	c := rune(name[4])
	return c == '$' || !(c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c))
}

// Variables returns the method's local variables, arguments included.
func (m *Method) Variables() ([]LocalVariable, error) {
	if !m.IsConcrete() {
		return nil, errs.AbsentInformation("variables of non-concrete method " + m.Name())
	}
	return m.vars.get(func() ([]LocalVariable, error) {
		if m.raw.MaxLocals == 0 {
			return []LocalVariable{}, nil
		}
		if !m.raw.HasLocalVariableTable {
			return nil, errs.AbsentInformation("local variable table of " + m.Name())
		}
		out := make([]LocalVariable, 0, len(m.raw.Locals))
		for _, lv := range m.raw.Locals {
			if isInternalName(lv.Name) {
				continue
			}
			out = append(out, LocalVariable{
				Method:           m,
				Name:             lv.Name,
				Signature:        lv.Signature,
				GenericSignature: lv.GenericSignature,
				Slot:             lv.Slot,
				Start:            lv.Start,
				Length:           lv.Length,
			})
		}
		return out, nil
	})
}

// VariablesByName returns the variables named name.
func (m *Method) VariablesByName(name string) ([]LocalVariable, error) {
	vars, err := m.Variables()
	if err != nil {
		return nil, err
	}
	var out []LocalVariable
	for _, v := range vars {
		if v.Name == name {
			out = append(out, v)
		}
	}
	return out, nil
}

// Arguments returns the variables holding method arguments.
func (m *Method) Arguments() ([]LocalVariable, error) {
	vars, err := m.Variables()
	if err != nil {
		return nil, err
	}
	var out []LocalVariable
	for _, v := range vars {
		if v.IsArgument() {
			out = append(out, v)
		}
	}
	return out, nil
}
