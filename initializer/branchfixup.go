/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import "github.com/osprey-lang/ovum/objmodel"

// fixupBranches is Stage 2: every branch target and try/catch/finally
// region endpoint is converted from a byte offset to an instruction
// index, and each target instruction is marked as having an incoming
// branch.
func fixupBranches(b *builder) error {
	resolve := func(index int, offset uint32) (int, error) {
		target, ok := b.offsetIdx[offset]
		if !ok {
			return 0, b.fail(index, ReasonInvalidBranchOffset, "branch target is not an instruction boundary")
		}
		return target, nil
	}
	// Exclusive region ends may point one past the last instruction.
	resolveEnd := func(index int, offset uint32) (int, error) {
		if offset == uint32(len(b.overload.RawBody)) {
			return len(b.instrs), nil
		}
		return resolve(index, offset)
	}

	for _, ins := range b.instrs {
		switch ins.Op {
		case OpBr, OpBrTrue, OpBrFalse, OpLeave:
			target, err := resolve(ins.Index, ins.BranchTarget)
			if err != nil {
				return err
			}
			ins.BranchTarget = uint32(target)
			b.instrs[target].HasIncomingBranch = true
		case OpSwitch:
			for i, off := range ins.SwitchTargets {
				target, err := resolve(ins.Index, off)
				if err != nil {
					return err
				}
				ins.SwitchTargets[i] = uint32(target)
				b.instrs[target].HasIncomingBranch = true
			}
		}
	}

	for _, tb := range b.overload.TryBlocks {
		start, err := resolve(0, tb.TryStart)
		if err != nil {
			return err
		}
		end, err := resolveEnd(0, tb.TryEnd)
		if err != nil {
			return err
		}
		tb.TryStart, tb.TryEnd = uint32(start), uint32(end)
		b.instrs[start].HasIncomingBranch = true

		for i := range tb.Catches {
			c := &tb.Catches[i]
			// Caught types the loader could not resolve eagerly are due
			// now; one that still doesn't resolve fails the whole
			// initialization.
			if c.Resolved == nil && !c.CaughtType.IsNone() {
				ty, ok := resolveTypeToken(b.mod, c.CaughtType)
				if !ok {
					return b.fail(0, ReasonUnresolvedToken, "catch clause type")
				}
				c.Resolved = ty
			}
			cs, err := resolve(0, c.CatchStart)
			if err != nil {
				return err
			}
			ce, err := resolveEnd(0, c.CatchEnd)
			if err != nil {
				return err
			}
			c.CatchStart, c.CatchEnd = uint32(cs), uint32(ce)
			b.instrs[cs].HasIncomingBranch = true
		}
		if tb.Kind == objmodel.TryFinally {
			fs, err := resolve(0, tb.FinallyStart)
			if err != nil {
				return err
			}
			fe, err := resolveEnd(0, tb.FinallyEnd)
			if err != nil {
				return err
			}
			tb.FinallyStart, tb.FinallyEnd = uint32(fs), uint32(fe)
			b.instrs[fs].HasIncomingBranch = true
		}
		if tb.Kind == objmodel.TryFault {
			fs, err := resolve(0, tb.FaultStart)
			if err != nil {
				return err
			}
			fe, err := resolveEnd(0, tb.FaultEnd)
			if err != nil {
				return err
			}
			tb.FaultStart, tb.FaultEnd = uint32(fs), uint32(fe)
			b.instrs[fs].HasIncomingBranch = true
		}
	}

	for i := range b.overload.DebugRanges {
		start, err := resolve(0, b.overload.DebugRanges[i].Start)
		if err != nil {
			return err
		}
		end, err := resolveEnd(0, b.overload.DebugRanges[i].End)
		if err != nil {
			return err
		}
		b.overload.DebugRanges[i].Start, b.overload.DebugRanges[i].End = uint32(start), uint32(end)
	}
	return nil
}
