/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package initializer implements the method verifier-rewriter: the
// four-stage pipeline that turns an overload's raw on-disk bytecode
// into the rewritten instruction stream the interpreter consumes, run
// lazily the first time an overload is invoked.
package initializer

import (
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// Op identifies a decoded instruction's operation. Names follow the
// on-disk OPC_* family where one exists, plus the OPI_* rewritten forms
// (fused branch-comparisons, local/stack load variants) Stage 3's
// peephole pass introduces.
type Op int

const (
	OpNop Op = iota

	OpLdArg
	OpStArg
	OpLdLoc
	OpStLoc
	OpLdArgRef
	OpLdLocRef

	OpLdC    // constant (int/uint/real/char), value in Const
	OpLdStr  // string token
	OpLdNull
	OpLdBool // value in Const (bool)
	OpLdArgc
	OpLdEnum

	OpNewObj // TargetToken names the constructor overload's type
	OpCall
	OpSCall
	OpApply
	OpSApply
	OpCallMem

	OpRet
	OpRetNull

	OpBr
	OpBrTrue
	OpBrFalse
	OpSwitch

	OpBinOp // Operator in Operator field (Add, Sub, ...)
	OpUnOp  // Operator in Operator field (Plus, Neg, Not)
	OpConcat

	// Comparisons: distinct opcodes, not entries in the overloadable-
	// operator table, each leaving a boolean on the stack unless fused
	// by Stage 3's peephole pass.
	OpEq
	OpLt
	OpGt
	OpLte
	OpGte

	OpNewList
	OpNewHash

	OpLdIter
	OpLdType
	OpLdTypeTkn
	OpLdSFn

	OpLdFld
	OpStFld
	OpLdSFld
	OpStSFld
	OpLdFldRef
	OpLdSFldRef

	OpLdMem
	OpStMem
	OpLdMemRef

	OpLdIdx
	OpStIdx

	OpThrow
	OpRethrow
	OpLeave
	OpEndFinally

	OpDup
	OpPop

	// Fused forms produced by Stage 3's peephole pass; never decoded
	// directly from the on-disk stream.
	OpBrEq
	OpBrNeq
	OpBrLt
	OpBrNlt
	OpBrGt
	OpBrNgt
	OpBrLte
	OpBrNlte
	OpBrGte
	OpBrNgte
)

// fusedBranch maps a comparison opcode to the (true-branch,
// false-branch) fused forms BrTrue/BrFalse collapse it into.
var fusedBranch = map[Op][2]Op{
	OpEq:  {OpBrEq, OpBrNeq},
	OpLt:  {OpBrLt, OpBrNlt},
	OpGt:  {OpBrGt, OpBrNgt},
	OpLte: {OpBrLte, OpBrNlte},
	OpGte: {OpBrGte, OpBrNgte},
}

// Instruction is the tagged-union node Stage 1 decodes the raw stream
// into. Only the fields relevant to Op are meaningful; the rest are
// zero. Index/OrigOffset/OrigSize are filled in by Stage 1 and consumed
// by Stage 2's offset-to-index translation.
type Instruction struct {
	Op Op

	// Index is this instruction's position once emitted (after
	// compaction); OrigOffset/OrigSize describe its position in the raw
	// on-disk stream, used only to build the offset→index map.
	Index      int
	OrigOffset uint32
	OrigSize   uint32

	LocalIndex int
	ArgIndex   int

	Const    objmodel.Value
	StrToken token.Token

	// TargetToken names a field/method/type/function ref or def this
	// instruction resolved against the owning module at decode time.
	TargetToken token.Token
	TargetField *objmodel.Field
	TargetType  *objmodel.Type
	TargetMeth  *objmodel.Method

	ArgCount int
	Operator objmodel.Operator

	// BranchTarget holds a raw byte offset until Stage 2 rewrites it to
	// an instruction index.
	BranchTarget  uint32
	SwitchTargets []uint32

	AcceptsRefs bool
	PushesRef   bool

	// StackHeight/RefSig are Stage 3 outputs; HasIncomingBranch is set
	// by Stage 2's branch fix-up.
	StackHeight       int
	RefSig            refsig.Signature
	HasIncomingBranch bool

	// LocalOffset is the frame-relative slot offset Stage 3 step 3
	// computes for instructions that read/write a local/argument/stack
	// slot.
	LocalOffset int32

	// The following are set by Stage 3's peephole pass, never by Stage 1.

	// HasDirectLocal: this instruction's output is written straight to
	// DirectLocal instead of being pushed (the StoreLocal rule); the
	// StLoc that used to follow it is marked removed.
	HasDirectLocal bool
	DirectLocal    int

	// DiscardOutput: this instruction's output is produced but not
	// pushed to a counted stack slot (the Pop rule); the Pop that used
	// to follow it is marked removed.
	DiscardOutput bool

	// FusedInput describes an operand this instruction now reads
	// directly instead of popping: the producing load that used to push
	// it has been marked removed (the LoadLocal-into-consumer,
	// constant-into-consumer, and Dup-into-branch rules). The producer
	// itself is gone by emit time, so the fused operand carries the
	// source — a local slot, an inline constant, or a top-of-stack peek
	// — not an instruction index.
	FusedInput FusedInput
	FusedLocal int
	FusedConst objmodel.Value

	removed bool
}

// FusedInput names where a fused operand comes from.
type FusedInput int

const (
	FusedNone FusedInput = iota
	FusedLocal            // read local slot FusedLocal directly
	FusedConst            // use the inline constant FusedConst
	FusedStackPeek        // read top-of-stack without popping
)

// stackEffect returns how many values an instruction of this shape
// pops (removed) and pushes (added), for Stage 3's height tracking.
// ArgCount lets call-like, Concat, and list/hash constructor
// instructions report a variable effect.
func (ins *Instruction) stackEffect() (removed, added int) {
	switch ins.Op {
	case OpNop, OpLeave, OpEndFinally, OpBr:
		return 0, 0
	case OpLdArg, OpLdLoc, OpLdArgRef, OpLdLocRef, OpLdC, OpLdStr, OpLdNull,
		OpLdBool, OpLdArgc, OpLdEnum, OpLdType, OpLdTypeTkn, OpLdSFn, OpLdSFld, OpLdSFldRef:
		return 0, 1
	case OpStArg, OpStLoc, OpPop, OpThrow, OpRet, OpStSFld, OpBrTrue, OpBrFalse, OpSwitch:
		return 1, 0
	case OpRetNull:
		return 0, 0
	case OpDup:
		return 1, 2 // pops the top value and pushes it back twice
	case OpUnOp:
		return 1, 1
	case OpBinOp:
		return 2, 1
	case OpConcat:
		return ins.ArgCount, 1
	case OpEq, OpLt, OpGt, OpLte, OpGte:
		return 2, 1
	case OpLdFld, OpLdFldRef:
		return 1, 1
	case OpStFld:
		return 2, 0
	case OpLdMem, OpLdMemRef:
		return 1, 1
	case OpStMem:
		return 2, 0
	case OpLdIdx:
		return 2, 1
	case OpStIdx:
		return 3, 0
	case OpNewObj, OpCall, OpCallMem, OpApply:
		// Receiver (for instance forms) plus ArgCount arguments; exactly
		// one result is pushed.
		return ins.ArgCount + 1, 1
	case OpSCall, OpSApply:
		return ins.ArgCount, 1
	case OpNewList, OpNewHash:
		return ins.ArgCount, 1
	case OpLdIter:
		return 1, 1
	case OpRethrow:
		return 0, 0
	case OpBrEq, OpBrNeq, OpBrLt, OpBrNlt, OpBrGt, OpBrNgt, OpBrLte, OpBrNlte, OpBrGte, OpBrNgte:
		return 2, 0
	default:
		return 0, 0
	}
}

// isComparison reports whether ins is one of the five comparisons the
// peephole pass may fuse into a branch.
func (ins *Instruction) isComparison() bool {
	_, ok := fusedBranch[ins.Op]
	return ok
}
