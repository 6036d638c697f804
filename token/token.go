/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package token implements the 32-bit tagged token used throughout the
// module file format and the in-memory object model.
package token

// Token is a 32-bit value: a 4-bit kind in the high nibble and a 1-based
// index in the low 28 bits. Token(0) means "none".
type Token uint32

// None is the reserved "no token" value.
const None Token = 0

// Kind identifies which module table a Token indexes into: a plain
// 4-bit enum packed into the token's high nibble.
type Kind uint32

const (
	KindInvalid Kind = iota
	KindModuleRef
	KindTypeDef
	KindTypeRef
	KindFieldDef
	KindFieldRef
	KindMethodDef
	KindMethodRef
	KindFunctionDef
	KindFunctionRef
	KindString
	KindConstantDef
)

func (k Kind) String() string {
	switch k {
	case KindModuleRef:
		return "ModuleRef"
	case KindTypeDef:
		return "TypeDef"
	case KindTypeRef:
		return "TypeRef"
	case KindFieldDef:
		return "FieldDef"
	case KindFieldRef:
		return "FieldRef"
	case KindMethodDef:
		return "MethodDef"
	case KindMethodRef:
		return "MethodRef"
	case KindFunctionDef:
		return "FunctionDef"
	case KindFunctionRef:
		return "FunctionRef"
	case KindString:
		return "String"
	case KindConstantDef:
		return "ConstantDef"
	default:
		return "Invalid"
	}
}

const (
	kindShift = 28
	indexMask = Token(1)<<kindShift - 1
)

// New builds a Token from a kind and a 1-based index. index == 0
// always yields None, regardless of kind.
func New(kind Kind, index uint32) Token {
	if index == 0 {
		return None
	}
	if Token(index)&^indexMask != 0 {
		panic("token: index out of range")
	}
	return Token(kind)<<kindShift | Token(index)&indexMask
}

// Kind returns the token's kind nibble.
func (t Token) Kind() Kind {
	return Kind(t >> kindShift)
}

// Index returns the token's 1-based low-bit index. Valid only if
// t != None.
func (t Token) Index() uint32 {
	return uint32(t & indexMask)
}

// IsNone reports whether t is the reserved "no token" value.
func (t Token) IsNone() bool {
	return t == None
}

// HasKind reports whether t's kind nibble equals kind. Every lookup that
// indexes a table by token must check this first:
// a token with the wrong kind nibble must never be used to index the
// wrong table.
func (t Token) HasKind(kind Kind) bool {
	return !t.IsNone() && t.Kind() == kind
}
