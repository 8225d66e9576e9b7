package classfile

import "unicode/utf16"

func utf16String(units []uint16) string {
	return string(utf16.Decode(units))
}
