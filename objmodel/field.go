/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "github.com/osprey-lang/ovum/token"

// Value stands in for the GC-managed value representation; the actual
// value layout belongs to the object/GC subsystem. The core only ever
// stores or hands back opaque Values.
type Value = interface{}

// FieldFlags are the on-disk flags carried on a field definition.
type FieldFlags uint32

const (
	FieldPublic FieldFlags = 1 << iota
	FieldInternal
	FieldProtected
	FieldPrivate
	FieldInstance
	FieldHasValue
)

func (f FieldFlags) Access() Access {
	switch {
	case f&FieldPublic != 0:
		return AccessPublic
	case f&FieldInternal != 0:
		return AccessInternal
	case f&FieldProtected != 0:
		return AccessProtected
	case f&FieldPrivate != 0:
		return AccessPrivate
	default:
		return AccessInvalid
	}
}

// Field is a type member holding one value slot per instance (instance
// field) or one value slot total (static field).
type Field struct {
	Name       string
	DeclType   *Type
	DeclModule *Module
	Flags      FieldFlags

	// Offset is valid for instance fields: the byte offset (in units of
	// sizeof(Value), i.e. a slot index) within the owning type's
	// instance layout.
	Offset uint32

	// StaticValue is valid for static fields: the GC-registered storage
	// cell for the field's current value.
	StaticValue *Value

	// ConstValue holds the field's constant initializer if
	// FieldHasValue is set; constant fields never get a StaticValue,
	// they're substituted at point of use. ConstType is the declared
	// type of that value, resolved eagerly where possible and otherwise
	// deferred until the whole TypeDef table has been read.
	ConstValue Value
	ConstType  *Type

	// Token is the FieldDef token this field was materialized from,
	// used to answer FindField-by-token ABI queries without a reverse
	// index.
	Token token.Token

	// Annotations carries this field's raw annotation block opaquely
	// (always a []modfile.Annotation underneath, but typed interface{}
	// here since modfile already imports objmodel and can't be imported
	// back). Only the abi package interprets it.
	Annotations interface{}
}

func (f *Field) IsInstance() bool  { return f.Flags&FieldInstance != 0 }
func (f *Field) IsStatic() bool    { return !f.IsInstance() }
func (f *Field) HasConstant() bool { return f.Flags&FieldHasValue != 0 }
func (f *Field) Access() Access    { return f.Flags.Access() }
func (f *Field) MemberName() string { return f.Name }
