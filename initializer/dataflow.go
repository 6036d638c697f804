/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import (
	"fmt"

	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/refsig"
)

// valueSlotSize is sizeof(Value) in the interpreter's frame layout: one
// slot per argument, local, or evaluation-stack entry.
const valueSlotSize = 8

// stackState is the abstract state arriving at one instruction: the
// evaluation-stack height and, per slot below it, whether that slot
// holds a reference.
type stackState struct {
	height int
	refs   []bool // refs[i] is slot i's ref-ness; len(refs) >= height
}

func (s stackState) clone() stackState {
	out := stackState{height: s.height, refs: make([]bool, s.height)}
	copy(out.refs, s.refs[:s.height])
	return out
}

func (s stackState) equals(other stackState) bool {
	if s.height != other.height {
		return false
	}
	for i := 0; i < s.height; i++ {
		if s.refs[i] != other.refs[i] {
			return false
		}
	}
	return true
}

type worklistEntry struct {
	index int
	state stackState
}

// runDataflow is Stage 3's worklist-based abstract interpretation:
// tracks per-instruction stack height and slot ref-ness, rejects
// underflow/overflow, verifies call-site ref signatures, writes
// frame-relative input offsets into each instruction, and requires
// re-visits of a merge point to agree with the first-computed state.
func runDataflow(b *builder) error {
	if len(b.instrs) == 0 {
		return nil
	}

	visited := make(map[int]stackState, len(b.instrs))
	queue := []worklistEntry{{index: 0, state: stackState{}}}

	// Catch handlers are entered with the exception object on the stack;
	// finally and fault handlers with an empty stack.
	for _, tb := range b.overload.TryBlocks {
		switch tb.Kind {
		case objmodel.TryCatch:
			for _, c := range tb.Catches {
				queue = append(queue, worklistEntry{index: int(c.CatchStart), state: stackState{height: 1, refs: []bool{false}}})
			}
		case objmodel.TryFinally:
			queue = append(queue, worklistEntry{index: int(tb.FinallyStart), state: stackState{}})
		case objmodel.TryFault:
			queue = append(queue, worklistEntry{index: int(tb.FaultStart), state: stackState{}})
		}
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if prev, seen := visited[e.index]; seen {
			if !prev.equals(e.state) {
				return b.fail(e.index, ReasonInconsistentStack, "stack height or ref-ness mismatch at merge point")
			}
			continue
		}
		visited[e.index] = e.state.clone()

		ins := b.instrs[e.index]
		ins.StackHeight = e.state.height
		if ins.HasIncomingBranch {
			ins.RefSig = stackRefSignature(e.state, b.refsigs)
		}

		removed, added := ins.stackEffect()
		if e.state.height < removed {
			return b.fail(e.index, ReasonStackUnderflow, "")
		}
		if err := checkInputRefs(b, e.index, ins, e.state, removed); err != nil {
			return err
		}
		setLocalOffset(b, ins, e.state, removed)

		next := e.state.clone()
		dupTopIsRef := removed > 0 && next.refs[next.height-1]
		next.height -= removed
		next.refs = next.refs[:next.height]
		for i := 0; i < added; i++ {
			isRef := ins.PushesRef
			if ins.Op == OpDup {
				isRef = dupTopIsRef
			}
			next.refs = append(next.refs, isRef)
			next.height++
		}
		if next.height > b.overload.MaxStack {
			return b.fail(e.index, ReasonStackOverflow, "")
		}

		switch ins.Op {
		case OpBr:
			queue = append(queue, worklistEntry{index: int(ins.BranchTarget), state: next})
		case OpBrTrue, OpBrFalse:
			queue = append(queue, worklistEntry{index: int(ins.BranchTarget), state: next})
			if e.index+1 < len(b.instrs) {
				queue = append(queue, worklistEntry{index: e.index + 1, state: next.clone()})
			}
		case OpSwitch:
			for _, t := range ins.SwitchTargets {
				queue = append(queue, worklistEntry{index: int(t), state: next.clone()})
			}
			if e.index+1 < len(b.instrs) {
				queue = append(queue, worklistEntry{index: e.index + 1, state: next.clone()})
			}
		case OpRet, OpRetNull, OpThrow, OpRethrow, OpEndFinally:
			// No fall-through successor.
		case OpLeave:
			queue = append(queue, worklistEntry{index: int(ins.BranchTarget), state: next})
		default:
			if e.index+1 < len(b.instrs) {
				queue = append(queue, worklistEntry{index: e.index + 1, state: next})
			}
		}
	}
	return nil
}

// checkInputRefs verifies the ref-ness of the slots ins is about to
// consume. Call-shaped instructions with a statically-resolved target
// must see exactly the ref-ness the target
// overload's signature declares; every other instruction must see no
// refs at all.
func checkInputRefs(b *builder, index int, ins *Instruction, state stackState, removed int) error {
	base := state.height - removed
	if !ins.AcceptsRefs {
		for i := base; i < state.height; i++ {
			if state.refs[i] {
				return b.fail(index, ReasonStackHasRefsForbidden, "")
			}
		}
		return nil
	}

	// A call pops [receiver?] arg1..argN with argN on top. The call
	// signature reserves bit 0 for the receiver (always a non-ref),
	// parameter i maps to bit i.
	if ins.TargetMeth == nil {
		return nil // dynamic target (CallMem): checked at invocation time
	}
	ov := ins.TargetMeth.FindOverload(ins.ArgCount)
	if ov == nil {
		return b.fail(index, ReasonNoMatchingOverload, ins.TargetMeth.Name)
	}
	hasReceiver := removed == ins.ArgCount+1
	call := refsig.NewBuilder(uint32(ins.ArgCount) + 1)
	for i := 1; i <= ins.ArgCount; i++ {
		slot := base + i - 1
		if hasReceiver {
			slot = base + i
		}
		call.SetParam(uint32(i), state.refs[slot])
	}
	callSig := call.Commit(b.refsigs)
	if at, ok := refsig.Matches(callSig, ov.RefSig, uint32(ins.ArgCount)+1, b.refsigs); !ok {
		return b.fail(index, ReasonInconsistentStack, fmt.Sprintf("argument %d ref-ness does not match %s's signature", at, ins.TargetMeth.Name))
	}
	return nil
}

// setLocalOffset writes the frame-relative byte offset of ins's
// primary input: arguments live below the frame base, locals just
// above it, and evaluation-stack slots above the locals.
func setLocalOffset(b *builder, ins *Instruction, state stackState, removed int) {
	switch ins.Op {
	case OpLdLoc, OpStLoc, OpLdLocRef:
		ins.LocalOffset = int32(ins.LocalIndex) * valueSlotSize
	case OpLdArg, OpStArg, OpLdArgRef:
		ins.LocalOffset = -int32(ins.ArgIndex+1) * valueSlotSize
	default:
		if removed > 0 {
			ins.LocalOffset = int32(b.overload.Locals+(state.height-removed)) * valueSlotSize
		}
	}
}

// stackRefSignature records the arriving slots' ref-ness as an
// interned signature, kept on instructions with incoming branches so
// merge points can be compared. Slot i maps to bit i; unlike a
// parameter signature there is no reserved receiver bit.
func stackRefSignature(state stackState, pool *refsig.Pool) refsig.Signature {
	sb := refsig.NewBuilder(uint32(state.height) + 1)
	for i := 0; i < state.height; i++ {
		sb.SetParam(uint32(i), state.refs[i])
	}
	return sb.Commit(pool)
}

// runPeephole applies the local rewrites, each gated on the consuming
// instruction having no incoming branch (a merge point can't be folded
// into its single predecessor, since it may have others).
func runPeephole(b *builder) {
	prevLive := func(i int) *Instruction {
		for j := i - 1; j >= 0; j-- {
			if !b.instrs[j].removed {
				return b.instrs[j]
			}
		}
		return nil
	}

	for i := 0; i < len(b.instrs); i++ {
		cur := b.instrs[i]
		if cur.removed || cur.HasIncomingBranch {
			continue
		}
		prev := prevLive(i)
		if prev == nil {
			continue
		}
		_, prevAdded := prev.stackEffect()

		switch {
		case cur.Op == OpStLoc && prevAdded == 1 && !prev.HasDirectLocal && !prev.DiscardOutput:
			prev.HasDirectLocal = true
			prev.DirectLocal = cur.LocalIndex
			cur.removed = true

		case cur.Op == OpPop && prevAdded == 1 && !prev.HasDirectLocal:
			prev.DiscardOutput = true
			cur.removed = true

		case isPureLoad(prev) && acceptsInlineInput(cur.Op) && cur.FusedInput == FusedNone:
			switch prev.Op {
			case OpLdLoc:
				cur.FusedInput = FusedLocal
				cur.FusedLocal = prev.LocalIndex
			default:
				cur.FusedInput = FusedConst
				cur.FusedConst = loadedConst(prev)
			}
			prev.removed = true

		case prev.Op == OpDup && (cur.Op == OpBrTrue || cur.Op == OpBrFalse) && cur.FusedInput == FusedNone:
			cur.FusedInput = FusedStackPeek
			prev.removed = true

		case prev.isComparison() && (cur.Op == OpBrTrue || cur.Op == OpBrFalse):
			fused := fusedBranch[prev.Op]
			if cur.Op == OpBrTrue {
				cur.Op = fused[0]
			} else {
				cur.Op = fused[1]
			}
			prev.removed = true
		}
	}
}

// isPureLoad reports whether ins only pushes a value it can reproduce
// inline: a local load or a constant load with no side effects and no
// peephole state of its own. These are the producers the
// output-redirection rule may delete outright.
func isPureLoad(ins *Instruction) bool {
	if ins.HasDirectLocal || ins.DiscardOutput {
		return false
	}
	switch ins.Op {
	case OpLdLoc, OpLdC, OpLdNull, OpLdBool:
		return true
	default:
		return false
	}
}

// loadedConst returns the inline constant a pure constant load pushes.
func loadedConst(ins *Instruction) objmodel.Value {
	switch ins.Op {
	case OpLdNull:
		return nil
	default:
		return ins.Const
	}
}

// acceptsInlineInput is the generalized "consumer that accepts a local
// input" test the output-redirection rule needs: anything that would
// otherwise pop its primary operand just to use it, excluding the
// control/stack-management instructions that have dedicated rules.
func acceptsInlineInput(op Op) bool {
	switch op {
	case OpStFld, OpStSFld, OpStMem, OpStIdx,
		OpBinOp, OpUnOp, OpEq, OpLt, OpGt, OpLte, OpGte,
		OpBrTrue, OpBrFalse, OpThrow, OpRet:
		return true
	default:
		return false
	}
}

// compact removes every instruction marked for removal, producing the
// old-index → new-index map Stage 4 (and try-region/debug-range
// translation) needs.
func compact(b *builder) (out []*Instruction, oldToNew map[int]int) {
	oldToNew = make(map[int]int, len(b.instrs))
	out = make([]*Instruction, 0, len(b.instrs))
	for i, ins := range b.instrs {
		if ins.removed {
			continue
		}
		oldToNew[i] = len(out)
		out = append(out, ins)
	}
	for _, ins := range out {
		switch ins.Op {
		case OpBr, OpBrTrue, OpBrFalse, OpLeave,
			OpBrEq, OpBrNeq, OpBrLt, OpBrNlt, OpBrGt, OpBrNgt, OpBrLte, OpBrNlte, OpBrGte, OpBrNgte:
			ins.BranchTarget = uint32(oldToNew[int(ins.BranchTarget)])
		case OpSwitch:
			for i, t := range ins.SwitchTargets {
				ins.SwitchTargets[i] = uint32(oldToNew[int(t)])
			}
		}
	}
	for i, ins := range out {
		ins.Index = i
	}
	return out, oldToNew
}
