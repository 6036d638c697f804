/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/osprey-lang/ovum/objmodel"
)

// instructionAlignment: the emitted body aligns each instruction's
// start to a 4-byte boundary, matching the module file format's own
// 4-byte section alignment.
const instructionAlignment = 4

// emit is Stage 4: serialize the final, compacted instruction stream
// into the overload's Body, then translate try-region endpoints through
// the index→byte-offset map this pass produces.
//
// oldToNew/originalLen translate the try-region and debug-range indices
// (set by fixupBranches in terms of the pre-peephole instruction
// numbering) into the post-compaction numbering emit's own offsetOf
// table is indexed by, the same way compact already does for branch
// targets living on surviving instructions.
func emit(b *builder, instrs []*Instruction, oldToNew map[int]int, originalLen int) ([]byte, error) {
	newLen := len(instrs)
	translate := func(idx int) int {
		if idx >= originalLen {
			return newLen
		}
		for i := idx; i < originalLen; i++ {
			if n, ok := oldToNew[i]; ok {
				return n
			}
		}
		return newLen
	}
	for _, tb := range b.overload.TryBlocks {
		tb.TryStart, tb.TryEnd = uint32(translate(int(tb.TryStart))), uint32(translate(int(tb.TryEnd)))
		for i := range tb.Catches {
			tb.Catches[i].CatchStart = uint32(translate(int(tb.Catches[i].CatchStart)))
			tb.Catches[i].CatchEnd = uint32(translate(int(tb.Catches[i].CatchEnd)))
		}
		if tb.Kind == objmodel.TryFinally {
			tb.FinallyStart, tb.FinallyEnd = uint32(translate(int(tb.FinallyStart))), uint32(translate(int(tb.FinallyEnd)))
		}
		if tb.Kind == objmodel.TryFault {
			tb.FaultStart, tb.FaultEnd = uint32(translate(int(tb.FaultStart))), uint32(translate(int(tb.FaultEnd)))
		}
	}
	for i := range b.overload.DebugRanges {
		b.overload.DebugRanges[i].Start = uint32(translate(int(b.overload.DebugRanges[i].Start)))
		b.overload.DebugRanges[i].End = uint32(translate(int(b.overload.DebugRanges[i].End)))
	}

	var buf bytes.Buffer
	offsetOf := make([]uint32, len(instrs))

	for i, ins := range instrs {
		offsetOf[i] = uint32(buf.Len())
		if err := emitOne(&buf, ins); err != nil {
			return nil, b.fail(i, ReasonInvalidOpcode, err.Error())
		}
		if pad := (instructionAlignment - buf.Len()%instructionAlignment) % instructionAlignment; pad != 0 {
			buf.Write(make([]byte, pad))
		}
	}

	for _, tb := range b.overload.TryBlocks {
		tb.TryStart = offsetOf[tb.TryStart]
		tb.TryEnd = byteEndOffset(offsetOf, tb.TryEnd, buf.Len())
		for i := range tb.Catches {
			tb.Catches[i].CatchStart = offsetOf[tb.Catches[i].CatchStart]
			tb.Catches[i].CatchEnd = byteEndOffset(offsetOf, tb.Catches[i].CatchEnd, buf.Len())
		}
		if tb.Kind == objmodel.TryFinally {
			tb.FinallyStart = offsetOf[tb.FinallyStart]
			tb.FinallyEnd = byteEndOffset(offsetOf, tb.FinallyEnd, buf.Len())
		}
		if tb.Kind == objmodel.TryFault {
			tb.FaultStart = offsetOf[tb.FaultStart]
			tb.FaultEnd = byteEndOffset(offsetOf, tb.FaultEnd, buf.Len())
		}
	}
	for i := range b.overload.DebugRanges {
		b.overload.DebugRanges[i].Start = offsetOf[b.overload.DebugRanges[i].Start]
		b.overload.DebugRanges[i].End = byteEndOffset(offsetOf, b.overload.DebugRanges[i].End, buf.Len())
	}

	return buf.Bytes(), nil
}

// byteEndOffset translates an exclusive end index (which may equal
// len(offsetOf), one past the last instruction) to its byte offset.
func byteEndOffset(offsetOf []uint32, index uint32, total int) uint32 {
	if int(index) >= len(offsetOf) {
		return uint32(total)
	}
	return offsetOf[index]
}

func emitOne(buf *bytes.Buffer, ins *Instruction) error {
	var flags byte
	if ins.HasDirectLocal {
		flags |= 1
	}
	if ins.DiscardOutput {
		flags |= 2
	}
	if ins.FusedInput != FusedNone {
		flags |= 4
	}
	buf.WriteByte(flags)
	if ins.HasDirectLocal {
		writeU32(buf, uint32(ins.DirectLocal))
	}
	if ins.FusedInput != FusedNone {
		buf.WriteByte(byte(ins.FusedInput))
		switch ins.FusedInput {
		case FusedLocal:
			writeU32(buf, uint32(ins.FusedLocal))
		case FusedConst:
			writeConst(buf, ins.FusedConst)
		case FusedStackPeek:
			// No payload: the interpreter reads top-of-stack in place.
		}
	}
	buf.WriteByte(byte(ins.Op))

	switch ins.Op {
	case OpLdArg, OpStArg, OpLdArgRef:
		buf.WriteByte(byte(ins.ArgIndex))
	case OpLdLoc, OpStLoc, OpLdLocRef:
		buf.WriteByte(byte(ins.LocalIndex))
	case OpLdC:
		writeConst(buf, ins.Const)
	case OpLdEnum:
		writeU32(buf, uint32(ins.TargetToken))
		v, _ := ins.Const.(int64)
		writeU64(buf, uint64(v))
	case OpLdStr:
		writeU32(buf, uint32(ins.StrToken))
	case OpLdBool:
		if v, _ := ins.Const.(bool); v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case OpNewObj, OpCall, OpSCall, OpSApply:
		writeU32(buf, uint32(ins.TargetToken))
		buf.WriteByte(byte(ins.ArgCount))
	case OpCallMem:
		writeU32(buf, uint32(ins.StrToken))
		buf.WriteByte(byte(ins.ArgCount))
	case OpApply, OpConcat:
		buf.WriteByte(byte(ins.ArgCount))
	case OpNewList, OpNewHash:
		writeU32(buf, uint32(ins.ArgCount))
	case OpLdTypeTkn, OpLdSFn:
		writeU32(buf, uint32(ins.TargetToken))
	case OpLdFld, OpStFld, OpLdFldRef, OpLdSFld, OpStSFld, OpLdSFldRef:
		writeU32(buf, uint32(ins.TargetToken))
	case OpLdMem, OpStMem, OpLdMemRef:
		writeU32(buf, uint32(ins.StrToken))
	case OpBr, OpBrTrue, OpBrFalse, OpLeave,
		OpBrEq, OpBrNeq, OpBrLt, OpBrNlt, OpBrGt, OpBrNgt, OpBrLte, OpBrNlte, OpBrGte, OpBrNgte:
		writeU32(buf, ins.BranchTarget)
	case OpSwitch:
		writeU32(buf, uint32(len(ins.SwitchTargets)))
		for _, t := range ins.SwitchTargets {
			writeU32(buf, t)
		}
	case OpBinOp, OpUnOp:
		buf.WriteByte(byte(ins.Operator))
	}
	return nil
}

// writeConst serializes one tagged constant value, the shared encoding
// LdC operands and fused constant inputs both use.
func writeConst(buf *bytes.Buffer, c objmodel.Value) {
	switch v := c.(type) {
	case int64:
		buf.WriteByte(0)
		writeU64(buf, uint64(v))
	case uint64:
		buf.WriteByte(1)
		writeU64(buf, v)
	case float64:
		buf.WriteByte(2)
		writeU64(buf, math.Float64bits(v))
	case rune:
		buf.WriteByte(3)
		writeU32(buf, uint32(v))
	case bool:
		buf.WriteByte(4)
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	default: // null
		buf.WriteByte(5)
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
