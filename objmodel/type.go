/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "github.com/osprey-lang/ovum/token"

// Member is the common surface of Method, Field, and Property, letting
// the type member table and the ABI's "find member by name" operations
// work over all three uniformly.
type Member interface {
	MemberName() string
	Access() Access
	IsStatic() bool
}

var (
	_ Member = (*Method)(nil)
	_ Member = (*Field)(nil)
	_ Member = (*Property)(nil)
)

// TypeFlags are a type's declared attributes.
type TypeFlags uint32

const (
	TypePublic TypeFlags = 1 << iota
	TypeInternal
	TypeAbstract
	TypeSealed
	TypeStatic // abstract AND sealed: no instances, no subclasses
	TypePrimitive
	TypeCustomPointer

	// The remaining flags are implementation state, never read off
	// disk.
	TypeInited
	TypeHasFinalizer
	TypeStaticCtorRun
	TypeStaticCtorRunning
)

func (f TypeFlags) Access() Access {
	switch {
	case f&TypePublic != 0:
		return AccessPublic
	case f&TypeInternal != 0:
		return AccessInternal
	default:
		return AccessInvalid
	}
}

// Type is a materialized type: a name, a member table, an 18-slot
// operator table, and the bookkeeping the static-initializer cascade and
// the native type-initializer hook need.
type Type struct {
	FullName string
	Flags    TypeFlags

	BaseType   *Type
	SharedType token.Token // opaque peer reference; never dereferenced by the core

	DeclModule *Module

	// Size is the instance field-layout size, in Value slots:
	// baseType.Size plus one slot per instance field declared directly
	// on this type.
	Size uint32

	InstanceCtor *Method

	Operators [OperatorCount]*MethodOverload

	Members map[string]Member

	Token token.Token

	// NativeInitializerName, if non-empty, names the C-string symbol the
	// loader resolves in the module's native library once the type's
	// members are fully read. The loader does not call the symbol.
	NativeInitializerName string

	// The following are set through the ABI surface, never by
	// the loader itself: a native extension module introspects its own
	// types after they're materialized and attaches GC-relevant hooks.

	// Finalizer, if set, is invoked by the GC before an instance of this
	// type is reclaimed. Opaque to the core; the interpreter supplies the
	// instance representation.
	Finalizer func(instance interface{})

	// RefWalker, if set, is invoked by the GC to enumerate the managed
	// references held inside a custom instance layout, calling mark for
	// each one it finds.
	RefWalker func(instance interface{}, mark func(interface{}))

	// NativeFields describes the native-side layout of this type's
	// instances, for native extension modules that store non-managed
	// payload alongside the standard field slots.
	NativeFields []NativeField

	// CtorIsAllocator: when true, the instance constructor is responsible
	// for allocating the instance itself, rather than the interpreter
	// pre-allocating before calling it.
	CtorIsAllocator bool

	// Annotations, like Field.Annotations, is an opaque []modfile.Annotation
	// pass-through interpreted only by the abi package.
	Annotations interface{}
}

// NativeFieldKind names the shape of one native field, so the GC knows
// how to treat the bytes at Offset during a mark/sweep or relocation
// pass.
type NativeFieldKind int

const (
	// NativeFieldValue holds an unmanaged scalar; the GC never touches it.
	NativeFieldValue NativeFieldKind = iota
	// NativeFieldValuePointer holds a pointer to an unmanaged value.
	NativeFieldValuePointer
	// NativeFieldString holds a managed string reference.
	NativeFieldString
	// NativeFieldGcArray holds a managed array of GC-tracked values.
	NativeFieldGcArray
)

func (k NativeFieldKind) String() string {
	switch k {
	case NativeFieldValue:
		return "Value"
	case NativeFieldValuePointer:
		return "ValuePointer"
	case NativeFieldString:
		return "String"
	case NativeFieldGcArray:
		return "GcArray"
	default:
		return "Unknown"
	}
}

// NativeField is one entry of Type.NativeFields.
type NativeField struct {
	Name   string
	Offset uint32
	Kind   NativeFieldKind
}

func (t *Type) IsAbstract() bool  { return t.Flags&TypeAbstract != 0 }
func (t *Type) IsSealed() bool    { return t.Flags&TypeSealed != 0 }
func (t *Type) IsStatic() bool    { return t.Flags&TypeStatic == TypeStatic }
func (t *Type) IsPrimitive() bool { return t.Flags&TypePrimitive != 0 }
func (t *Type) Access() Access    { return t.Flags.Access() }

// IsSubtypeOf reports whether t is other or descends from it by walking
// BaseType links. nil is never a subtype of anything and nothing is a
// subtype of nil.
func (t *Type) IsSubtypeOf(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	for cur := t; cur != nil; cur = cur.BaseType {
		if cur == other {
			return true
		}
	}
	return false
}

// FindMember looks up name in t's member table, then walks BaseType,
// returning the first match (own members shadow inherited ones).
func (t *Type) FindMember(name string) Member {
	for cur := t; cur != nil; cur = cur.BaseType {
		if m, ok := cur.Members[name]; ok {
			return m
		}
	}
	return nil
}

// FindAccessibleMember is FindMember gated by Accessible, matching
// the ABI's find-member-by-name-with-accessibility-check contract.
func (t *Type) FindAccessibleMember(name string, fromModule *Module, fromType *Type, includeInternal bool) Member {
	m := t.FindMember(name)
	if m == nil {
		return nil
	}
	if !Accessible(m.Access(), t.DeclModule, fromModule, t, fromType, includeInternal) {
		return nil
	}
	return m
}

// FindOperator returns the overload bound to op, walking BaseType.
// Equals falls back to nil here (meaning "no override") rather than an
// error: a nil Equals/Compare overload means the interpreter should
// use built-in reference/value equality, not that the operator is
// unsupported.
func (t *Type) FindOperator(op Operator) *MethodOverload {
	for cur := t; cur != nil; cur = cur.BaseType {
		if ov := cur.Operators[op]; ov != nil {
			return ov
		}
	}
	return nil
}

// SetOperator installs ov into this type's own operator table (does not
// affect inherited lookups via FindOperator for other types).
func (t *Type) SetOperator(op Operator, ov *MethodOverload) {
	t.Operators[op] = ov
}
