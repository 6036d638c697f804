/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import (
	"encoding/binary"
	"math"

	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// cursor is a minimal little-endian byte reader over one overload's raw
// body, playing the same role for bytecode that modfile.Reader plays
// for the on-disk module file — kept separate since the two formats
// (module metadata vs. instruction stream) are unrelated. Reads past
// the end set truncated rather than panicking; decode checks the flag
// after every instruction.
type cursor struct {
	data      []byte
	pos       uint32
	truncated bool
}

func (c *cursor) eof() bool { return int(c.pos) >= len(c.data) }

func (c *cursor) need(n uint32) bool {
	if uint64(c.pos)+uint64(n) > uint64(len(c.data)) {
		c.truncated = true
		return false
	}
	return true
}

func (c *cursor) u8() uint8 {
	if !c.need(1) {
		return 0
	}
	b := c.data[c.pos]
	c.pos++
	return b
}

func (c *cursor) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) u64() uint64 {
	if !c.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return v
}

func (c *cursor) token() token.Token {
	return token.Token(c.u32())
}

// builder accumulates decoded instructions plus the bookkeeping Stage
// 2/3/4 need: the offset→index map and the set of types a static field
// access has put on notice for the static-initializer cascade.
type builder struct {
	mod      *objmodel.Module
	overload *objmodel.MethodOverload
	method   string

	// declType is the initializing method's own declaring type (nil for
	// global functions): the accessor context every token-resolution
	// accessibility check runs against.
	declType *objmodel.Type

	refsigs   *refsig.Pool
	instrs    []*Instruction
	offsetIdx map[uint32]int // original byte offset -> index into instrs, before compaction

	needsStaticInit map[*objmodel.Type]bool
}

func newBuilder(mod *objmodel.Module, overload *objmodel.MethodOverload, methodName string, refsigs *refsig.Pool) *builder {
	var declType *objmodel.Type
	if overload.DeclMethod != nil {
		declType = overload.DeclMethod.DeclType
	}
	return &builder{
		mod: mod, overload: overload, method: methodName, declType: declType, refsigs: refsigs,
		offsetIdx:       make(map[uint32]int),
		needsStaticInit: make(map[*objmodel.Type]bool),
	}
}

func (b *builder) fail(index int, reason Reason, detail string) error {
	return newInitError(b.method, index, reason, detail)
}

// decode runs Stage 1 over the overload's raw body.
func decode(b *builder) error {
	c := &cursor{data: b.overload.RawBody}
	for !c.eof() {
		origOffset := c.pos
		op := c.u8()
		ins, err := decodeOne(b, c, op, origOffset)
		if err != nil {
			return err
		}
		if c.truncated {
			return b.fail(len(b.instrs), ReasonInvalidOpcode, "instruction operands run past the end of the body")
		}
		ins.OrigOffset = origOffset
		ins.OrigSize = c.pos - origOffset
		b.offsetIdx[origOffset] = len(b.instrs)
		ins.Index = len(b.instrs)
		b.instrs = append(b.instrs, ins)
	}
	return nil
}

// rawOp is the on-disk opcode numbering. Stage 4 agrees with this
// scheme the same way the interpreter agrees with whatever its own
// loader emits.
type rawOp uint8

const (
	rawNop rawOp = iota
	rawLdArg
	rawStArg
	rawLdLoc
	rawStLoc
	rawLdArgRef
	rawLdLocRef
	rawLdCInt
	rawLdCUInt
	rawLdCReal
	rawLdCChar
	rawLdStr
	rawLdNull
	rawLdBool
	rawLdArgc
	rawLdEnum
	rawNewObj
	rawCall
	rawSCall
	rawApply
	rawSApply
	rawCallMem
	rawRet
	rawRetNull
	rawBr
	rawBrTrue
	rawBrFalse
	rawSwitch
	rawBinOp
	rawUnOp
	rawConcat
	rawNewList
	rawNewHash
	rawLdIter
	rawLdType
	rawLdTypeTkn
	rawLdSFn
	rawLdFld
	rawStFld
	rawLdFldRef
	rawLdSFld
	rawStSFld
	rawLdSFldRef
	rawLdMem
	rawStMem
	rawLdMemRef
	rawLdIdx
	rawStIdx
	rawThrow
	rawRethrow
	rawLeave
	rawEndFinally
	rawDup
	rawPop
	rawEq
	rawLt
	rawGt
	rawLte
	rawGte
)

func decodeOne(b *builder, c *cursor, op uint8, origOffset uint32) (*Instruction, error) {
	idx := len(b.instrs)
	switch rawOp(op) {
	case rawNop:
		return &Instruction{Op: OpNop}, nil
	case rawLdArg:
		return &Instruction{Op: OpLdArg, ArgIndex: int(c.u8())}, nil
	case rawStArg:
		return &Instruction{Op: OpStArg, ArgIndex: int(c.u8())}, nil
	case rawLdLoc:
		return &Instruction{Op: OpLdLoc, LocalIndex: int(c.u8())}, nil
	case rawStLoc:
		return &Instruction{Op: OpStLoc, LocalIndex: int(c.u8())}, nil
	case rawLdArgRef:
		n := uint32(c.u8())
		// If the ref-signature already marks parameter n as by-ref,
		// this is really just a plain load (it already pushes a
		// reference); otherwise it's a take-address-of-argument.
		ins := &Instruction{Op: OpLdArgRef, ArgIndex: int(n), PushesRef: true}
		if refOverloadParamIsRef(b.overload, n, b.refsigs) {
			ins.Op = OpLdArg
		}
		return ins, nil
	case rawLdLocRef:
		return &Instruction{Op: OpLdLocRef, LocalIndex: int(c.u8()), PushesRef: true}, nil
	case rawLdCInt:
		return &Instruction{Op: OpLdC, Const: int64(c.u64())}, nil
	case rawLdCUInt:
		return &Instruction{Op: OpLdC, Const: c.u64()}, nil
	case rawLdCReal:
		return &Instruction{Op: OpLdC, Const: math.Float64frombits(c.u64())}, nil
	case rawLdCChar:
		return &Instruction{Op: OpLdC, Const: rune(c.u32())}, nil
	case rawLdStr:
		return &Instruction{Op: OpLdStr, StrToken: c.token()}, nil
	case rawLdNull:
		return &Instruction{Op: OpLdNull}, nil
	case rawLdBool:
		return &Instruction{Op: OpLdBool, Const: c.u8() != 0}, nil
	case rawLdArgc:
		return &Instruction{Op: OpLdArgc}, nil
	case rawLdEnum:
		tok := c.token()
		value := int64(c.u64())
		ty, ok := resolveTypeToken(b.mod, tok)
		if !ok {
			return nil, b.fail(idx, ReasonUnresolvedToken, "LdEnum type")
		}
		if err := checkTypeAccess(b, idx, ty); err != nil {
			return nil, err
		}
		return &Instruction{Op: OpLdEnum, TargetToken: tok, TargetType: ty, Const: value}, nil
	case rawNewObj:
		tok := c.token()
		argc := int(c.u8())
		ty, ctor, err := resolveCtor(b, idx, tok, argc)
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpNewObj, TargetToken: tok, TargetType: ty, TargetMeth: ctor, ArgCount: argc, AcceptsRefs: true}, nil
	case rawCall:
		tok := c.token()
		argc := int(c.u8())
		m, err := resolveMethodToken(b, idx, tok)
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpCall, TargetToken: tok, TargetMeth: m, ArgCount: argc, AcceptsRefs: true}, nil
	case rawSCall:
		tok := c.token()
		argc := int(c.u8())
		m, err := resolveFunctionToken(b, idx, tok)
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpSCall, TargetToken: tok, TargetMeth: m, ArgCount: argc, AcceptsRefs: true}, nil
	case rawApply:
		return &Instruction{Op: OpApply, ArgCount: 1}, nil
	case rawSApply:
		tok := c.token()
		m, err := resolveFunctionToken(b, idx, tok)
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpSApply, TargetToken: tok, TargetMeth: m, ArgCount: 1}, nil
	case rawCallMem:
		tok := c.token()
		argc := int(c.u8())
		return &Instruction{Op: OpCallMem, StrToken: tok, ArgCount: argc, AcceptsRefs: true}, nil
	case rawRet:
		return &Instruction{Op: OpRet}, nil
	case rawRetNull:
		return &Instruction{Op: OpRetNull}, nil
	case rawBr:
		return &Instruction{Op: OpBr, BranchTarget: c.u32()}, nil
	case rawBrTrue:
		return &Instruction{Op: OpBrTrue, BranchTarget: c.u32()}, nil
	case rawBrFalse:
		return &Instruction{Op: OpBrFalse, BranchTarget: c.u32()}, nil
	case rawSwitch:
		n := c.u32()
		if uint64(n)*4 > uint64(len(c.data)) {
			return nil, b.fail(idx, ReasonInvalidOpcode, "switch case count exceeds body size")
		}
		targets := make([]uint32, n)
		for i := range targets {
			targets[i] = c.u32()
		}
		return &Instruction{Op: OpSwitch, SwitchTargets: targets}, nil
	case rawBinOp:
		return &Instruction{Op: OpBinOp, Operator: objmodel.Operator(c.u8())}, nil
	case rawUnOp:
		return &Instruction{Op: OpUnOp, Operator: objmodel.Operator(c.u8())}, nil
	case rawConcat:
		return &Instruction{Op: OpConcat, ArgCount: int(c.u8())}, nil
	case rawNewList:
		return &Instruction{Op: OpNewList, ArgCount: int(c.u32())}, nil
	case rawNewHash:
		return &Instruction{Op: OpNewHash, ArgCount: int(c.u32())}, nil
	case rawLdIter:
		return &Instruction{Op: OpLdIter}, nil
	case rawLdType:
		return &Instruction{Op: OpLdType}, nil
	case rawLdTypeTkn:
		tok := c.token()
		ty, ok := resolveTypeToken(b.mod, tok)
		if !ok {
			return nil, b.fail(idx, ReasonUnresolvedToken, "LdTypeTkn")
		}
		if err := checkTypeAccess(b, idx, ty); err != nil {
			return nil, err
		}
		return &Instruction{Op: OpLdTypeTkn, TargetToken: tok, TargetType: ty}, nil
	case rawLdSFn:
		return &Instruction{Op: OpLdSFn, TargetToken: c.token()}, nil
	case rawLdFld, rawStFld, rawLdFldRef:
		tok := c.token()
		f, err := resolveFieldToken(b, idx, tok, true)
		if err != nil {
			return nil, err
		}
		var kind Op
		switch rawOp(op) {
		case rawLdFld:
			kind = OpLdFld
		case rawStFld:
			kind = OpStFld
		default:
			kind = OpLdFldRef
		}
		return &Instruction{Op: kind, TargetToken: tok, TargetField: f, PushesRef: kind == OpLdFldRef}, nil
	case rawLdSFld, rawStSFld, rawLdSFldRef:
		tok := c.token()
		f, err := resolveFieldToken(b, idx, tok, false)
		if err != nil {
			return nil, err
		}
		var kind Op
		switch rawOp(op) {
		case rawLdSFld:
			kind = OpLdSFld
		case rawStSFld:
			kind = OpStSFld
		default:
			kind = OpLdSFldRef
		}
		b.needsStaticInit[f.DeclType] = true
		return &Instruction{Op: kind, TargetToken: tok, TargetField: f, PushesRef: kind == OpLdSFldRef}, nil
	case rawLdMem, rawStMem, rawLdMemRef:
		tok := c.token()
		var kind Op
		switch rawOp(op) {
		case rawLdMem:
			kind = OpLdMem
		case rawStMem:
			kind = OpStMem
		default:
			kind = OpLdMemRef
		}
		return &Instruction{Op: kind, StrToken: tok, PushesRef: kind == OpLdMemRef}, nil
	case rawLdIdx:
		return &Instruction{Op: OpLdIdx}, nil
	case rawStIdx:
		return &Instruction{Op: OpStIdx}, nil
	case rawThrow:
		return &Instruction{Op: OpThrow}, nil
	case rawRethrow:
		return &Instruction{Op: OpRethrow}, nil
	case rawLeave:
		return &Instruction{Op: OpLeave, BranchTarget: c.u32()}, nil
	case rawEndFinally:
		return &Instruction{Op: OpEndFinally}, nil
	case rawDup:
		return &Instruction{Op: OpDup}, nil
	case rawPop:
		return &Instruction{Op: OpPop}, nil
	case rawEq:
		return &Instruction{Op: OpEq}, nil
	case rawLt:
		return &Instruction{Op: OpLt}, nil
	case rawGt:
		return &Instruction{Op: OpGt}, nil
	case rawLte:
		return &Instruction{Op: OpLte}, nil
	case rawGte:
		return &Instruction{Op: OpGte}, nil
	default:
		return nil, b.fail(idx, ReasonInvalidOpcode, "unrecognized opcode byte")
	}
}
