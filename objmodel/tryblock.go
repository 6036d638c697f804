/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "github.com/osprey-lang/ovum/token"

// TryKind identifies the three shapes a try block can take. Fault
// behaves like Finally but only runs while unwinding due to an
// exception, never on normal fall-through, and pushes no exception
// value.
type TryKind int

const (
	TryCatch TryKind = iota
	TryFinally
	TryFault
)

// CatchClause is one catch arm of a TryCatch block.
type CatchClause struct {
	CaughtType token.Token
	// Resolved is filled in eagerly when CaughtType resolves at method-
	// materialization time, or lazily by the initializer when it
	// doesn't.
	Resolved              *Type
	CatchStart, CatchEnd  uint32
}

// TryBlock describes one try region of a method overload's body: byte
// offsets as read off disk, instruction indices once the initializer's
// fix-up pass has run.
type TryBlock struct {
	Kind             TryKind
	TryStart, TryEnd uint32

	// Valid when Kind == TryCatch.
	Catches []CatchClause

	// Valid when Kind == TryFinally.
	FinallyStart, FinallyEnd uint32

	// Valid when Kind == TryFault.
	FaultStart, FaultEnd uint32
}

// Valid checks the region-monotonicity invariants: a try spans at
// least one instruction and every handler begins at or after its end.
func (t *TryBlock) Valid() bool {
	if t.TryStart >= t.TryEnd {
		return false
	}
	switch t.Kind {
	case TryCatch:
		for _, c := range t.Catches {
			if c.CatchStart < t.TryEnd || c.CatchStart >= c.CatchEnd {
				return false
			}
		}
	case TryFinally:
		if t.FinallyStart < t.TryEnd || t.FinallyStart >= t.FinallyEnd {
			return false
		}
	case TryFault:
		if t.FaultStart < t.TryEnd || t.FaultStart >= t.FaultEnd {
			return false
		}
	}
	return true
}
