package jdwp

import (
	errs "github.com/orizon-lang/sajdwp/internal/errors"
)

var errorNumbers = map[string]uint16{
	errs.CodeInvalidThread:      ErrInvalidThread,
	errs.CodeInvalidThreadGroup: ErrInvalidThreadGroup,
	errs.CodeInvalidObject:      ErrInvalidObject,
	errs.CodeInvalidClass:       ErrInvalidClass,
	errs.CodeClassNotPrepared:   ErrClassNotPrepared,
	errs.CodeInvalidMethodID:    ErrInvalidMethodID,
	errs.CodeInvalidLocation:    ErrInvalidLocation,
	errs.CodeInvalidFieldID:     ErrInvalidFieldID,
	errs.CodeInvalidFrameID:     ErrInvalidFrameID,
	errs.CodeInvalidSlot:        ErrInvalidSlot,
	errs.CodeNotFound:           ErrNotFound,
	errs.CodeNotImplemented:     ErrNotImplemented,
	errs.CodeAbsentInformation:  ErrAbsentInformation,
	errs.CodeIllegalArgument:    ErrIllegalArgument,
	errs.CodeInvalidIndex:       ErrInvalidIndex,
	errs.CodeInvalidLength:      ErrInvalidLength,
	errs.CodeInvalidString:      ErrInvalidString,
	errs.CodeInvalidClassLoader: ErrInvalidClassLoader,
	errs.CodeInvalidArray:       ErrInvalidArray,
	errs.CodeNativeMethod:       ErrNativeMethod,
	errs.CodeVMDead:             ErrVMDead,
	errs.CodeInternal:           ErrInternal,
}

// ErrorNumber returns the reply error for err. Errors outside the taxonomy,
// and codes without a wire number, are internal errors.
func ErrorNumber(err error) uint16 {
	if err == nil {
		return ErrNone
	}
	se, ok := errs.As(err)
	if !ok {
		return ErrInternal
	}
	if n, ok := errorNumbers[se.Code]; ok {
		return n
	}
	return ErrInternal
}
