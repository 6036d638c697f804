/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modfile

import (
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/token"
)

// Header is the fixed module-meta section: everything up to
// and including the method-block offset, read before any table.
type Header struct {
	FormatVersion uint32

	NameToken token.Token
	Version   objmodel.Version

	NativeLibrary string // empty if the module declares none

	TypeCount     int32
	FunctionCount int32
	ConstantCount int32
	FieldCount    int32
	MethodCount   int32

	MethodBlockOffset uint32
}

// ModuleRef is the raw (unresolved) form of objmodel.ModuleRef: a name
// token plus the requested version and constraint kind.
type ModuleRef struct {
	NameToken  token.Token
	Name       string
	Constraint objmodel.VersionConstraint
	Version    objmodel.Version
}

// TypeRef, FieldRef, MethodRef, FunctionRef are raw cross-module member
// references: an index into this file's ModuleRef table plus the
// referenced member's name.
type TypeRef struct {
	ModuleRefIndex uint32 // 1-based index into the file's moduleRef table
	Name           string
}

type FieldRef struct {
	DeclType token.Token // a TypeDef or TypeRef token in this module
	Name     string
}

type MethodRef struct {
	DeclType token.Token
	Name     string
}

type FunctionRef struct {
	ModuleRefIndex uint32
	Name           string
}

// ParamFlags mirror a parameter's on-disk attribute bits.
type ParamFlags uint32

const (
	ParamByRef ParamFlags = 1 << iota
	ParamOptional
)

// ParamDef is one raw parameter, as read from a method header.
type ParamDef struct {
	Name  string
	Flags ParamFlags
}

// AnnotationArgument is one positional or named annotation argument:
// a raw 8-byte value, a string token, a nested list of arguments, or a
// type token.
type AnnotationArgument struct {
	Name string // empty for a positional argument

	Kind AnnotationArgumentKind
	Raw  uint64
	Str  token.Token
	Type token.Token
	List []AnnotationArgument
}

type AnnotationArgumentKind int

const (
	AnnotationArgRaw AnnotationArgumentKind = iota
	AnnotationArgString
	AnnotationArgList
	AnnotationArgType
)

// Annotation is one entry in an optional, sized annotation block
// attached to a type, method, field, or overload.
type Annotation struct {
	TypeToken token.Token
	Args      []AnnotationArgument
}

// TryBlockDef is the raw form of objmodel.TryBlock, in byte-offset
// space (not yet translated to instruction indices — that's Stage 2 of
// the initializer).
type TryBlockDef struct {
	Kind             objmodel.TryKind
	TryStart, TryEnd uint32

	Catches []CatchClauseDef

	FinallyStart, FinallyEnd uint32
	FaultStart, FaultEnd     uint32
}

type CatchClauseDef struct {
	CaughtType           token.Token
	CatchStart, CatchEnd uint32
}

// OverloadDef is one raw method overload, as read from the file. Exactly
// one of NativeEntryName/BodyOffset+BodyLength is meaningful, mirroring
// objmodel.MethodOverload's invariant.
type OverloadDef struct {
	Flags              objmodel.OverloadFlags
	ParamCount         int
	OptionalParamCount int
	Locals             int
	MaxStack           int
	Params             []ParamDef

	TryBlocks []TryBlockDef

	NativeEntryName string

	BodyOffset uint32
	BodyLength uint32

	Annotations []Annotation
}

// MethodDef is one raw method group: a name plus its overloads.
type MethodDef struct {
	Name      string
	Flags     objmodel.MethodAccessFlags
	Overloads []OverloadDef
}

// FieldDef is one raw field. Instance fields carry no
// offset on disk; the loader assigns slots in declaration order on top
// of the base type's layout.
type FieldDef struct {
	Name        string
	Flags       objmodel.FieldFlags
	ConstType   token.Token // meaningful only when FieldHasValue is set
	ConstValue  objmodel.Value
	Annotations []Annotation
}

// PropertyDef is one raw property: a name plus getter/setter method
// tokens, which must refer to methods declared on the same type.
type PropertyDef struct {
	Name   string
	Getter token.Token // MethodDef token, or token.None
	Setter token.Token
}

// OperatorDef binds one of the file format's 16 explicit operator
// slots (Hash and Dollar are never written to disk) to a method
// overload resolved by arity.
type OperatorDef struct {
	Operator objmodel.Operator
	Method   token.Token // MethodDef token in this type
}

// TypeDef is one raw type definition.
type TypeDef struct {
	Name       string
	Flags      objmodel.TypeFlags
	BaseType   token.Token // TypeDef or TypeRef, or token.None
	SharedType token.Token

	Fields     []FieldDef
	Methods    []MethodDef
	Properties []PropertyDef
	Operators  []OperatorDef

	NativeInitializerName string

	Annotations []Annotation
}

// FunctionDef is a raw global function: reuses MethodDef's shape.
type FunctionDef = MethodDef

// ConstantDef is a raw module-level constant.
type ConstantDef struct {
	Name  string
	Flags objmodel.ConstantFlags
	Type  token.Token
	Value objmodel.Value
}

// File is everything the reader decodes from one .ovm file, in
// unresolved (token/name-based) form. The loader package turns this into
// a linked *objmodel.Module.
type File struct {
	Header Header

	Strings []string

	ModuleRefs   []ModuleRef
	TypeRefs     []TypeRef
	FunctionRefs []FunctionRef
	FieldRefs    []FieldRef
	MethodRefs   []MethodRef

	TypeDefs     []TypeDef
	FunctionDefs []FunctionDef
	ConstantDefs []ConstantDef

	MainMethod token.Token
}
