/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Reason classifies a method-initialization failure.
type Reason int

const (
	ReasonInvalidOpcode Reason = iota
	ReasonInvalidBranchOffset
	ReasonUnresolvedToken
	ReasonInaccessibleMember
	ReasonInaccessibleType
	ReasonNoMatchingOverload
	ReasonFieldStaticInstanceMismatch
	ReasonTypeNotConstructible
	ReasonStackUnderflow
	ReasonStackOverflow
	ReasonInconsistentStack
	ReasonStackHasRefsForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidOpcode:
		return "InvalidOpcode"
	case ReasonInvalidBranchOffset:
		return "InvalidBranchOffset"
	case ReasonUnresolvedToken:
		return "UnresolvedToken"
	case ReasonInaccessibleMember:
		return "InaccessibleMember"
	case ReasonInaccessibleType:
		return "InaccessibleType"
	case ReasonNoMatchingOverload:
		return "NoMatchingOverload"
	case ReasonFieldStaticInstanceMismatch:
		return "FieldStaticInstanceMismatch"
	case ReasonTypeNotConstructible:
		return "TypeNotConstructible"
	case ReasonStackUnderflow:
		return "StackUnderflow"
	case ReasonStackOverflow:
		return "StackOverflow"
	case ReasonInconsistentStack:
		return "InconsistentStack"
	case ReasonStackHasRefsForbidden:
		return "StackHasRefsForbidden"
	default:
		return "Unknown"
	}
}

// InitError reports a failed method initialization. A well-formed
// module should never produce one, so every one of these is surfaced with
// enough context (method name, instruction index) to find the bad
// overload.
type InitError struct {
	Method string
	Index  int
	Reason Reason
	Detail string

	raisedAtFile string
	raisedAtLine int
}

func (e *InitError) Error() string {
	msg := fmt.Sprintf("method init error: %s: %s (method %q, instruction %d)", e.Reason, e.Detail, e.Method, e.Index)
	if e.raisedAtFile != "" {
		msg += fmt.Sprintf("\n  detected by file: %s, line: %d", e.raisedAtFile, e.raisedAtLine)
	}
	return msg
}

func newInitError(method string, index int, reason Reason, detail string) *InitError {
	e := &InitError{Method: method, Index: index, Reason: reason, Detail: detail}
	if pc, _, _, ok := runtime.Caller(2); ok {
		fn := runtime.FuncForPC(pc)
		file, line := fn.FileLine(pc)
		e.raisedAtFile = filepath.Base(file)
		e.raisedAtLine = line
	}
	return e
}
