/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import (
	"sync"
	"sync/atomic"

	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// MethodAccessFlags mirror FieldFlags' access-bit layout.
type MethodAccessFlags uint32

const (
	MethodPublic MethodAccessFlags = 1 << iota
	MethodInternal
	MethodProtected
	MethodPrivate
	MethodInstance
	MethodCtor
)

func (f MethodAccessFlags) Access() Access {
	switch {
	case f&MethodPublic != 0:
		return AccessPublic
	case f&MethodInternal != 0:
		return AccessInternal
	case f&MethodProtected != 0:
		return AccessProtected
	case f&MethodPrivate != 0:
		return AccessPrivate
	default:
		return AccessInvalid
	}
}

// Method is a method group: one name, possibly many overloads, plus the
// base-method link used for virtual dispatch.
type Method struct {
	Name       string
	DeclType   *Type // nil for global functions
	DeclModule *Module
	Flags      MethodAccessFlags

	// BaseMethod is the first same-named, same-{kind,access,instance}
	// member found walking the base-type chain; nil if none matched,
	// which is not an error.
	BaseMethod *Method

	Overloads []*MethodOverload

	Token token.Token
}

func (m *Method) AccessLevel() Access  { return m.Flags.Access() }
func (m *Method) Access() Access       { return m.Flags.Access() }
func (m *Method) IsInstance() bool     { return m.Flags&MethodInstance != 0 }
func (m *Method) IsStatic() bool       { return !m.IsInstance() }
func (m *Method) IsCtor() bool         { return m.Flags&MethodCtor != 0 }
func (m *Method) MemberName() string   { return m.Name }

// Accepts reports whether this method or any method in its base chain
// has an overload taking argCount arguments.
func (m *Method) Accepts(argCount int) bool {
	for cur := m; cur != nil; cur = cur.BaseMethod {
		for _, ov := range cur.Overloads {
			if ov.Accepts(argCount) {
				return true
			}
		}
	}
	return false
}

// FindOverload walks the base chain and returns the first overload
// accepting argCount arguments; the first match wins.
func (m *Method) FindOverload(argCount int) *MethodOverload {
	for cur := m; cur != nil; cur = cur.BaseMethod {
		for _, ov := range cur.Overloads {
			if ov.Accepts(argCount) {
				return ov
			}
		}
	}
	return nil
}

// OverloadFlags are the on-disk / materialized flags of one overload.
type OverloadFlags uint32

const (
	OverloadVariadicStart OverloadFlags = 1 << iota
	OverloadVariadicEnd
	OverloadVirtual
	OverloadAbstract
	OverloadNative
	OverloadShortHeader
	OverloadInstance
	OverloadCtor
	// Initialized is set once the method initializer has
	// rewritten this overload's body.
	OverloadInitialized
)

// Parameter is one named, possibly-optional, possibly-by-ref parameter.
type Parameter struct {
	Name     string
	Optional bool
	ByRef    bool
}

// NativeFunc is the core's view of a native-code overload
// implementation: opaque to everything except the ABI surface and
// whatever invokes it. The core only stores and hands back the
// pointer.
type NativeFunc func(args []Value) (Value, error)

// MethodOverload is one signature of a Method.
type MethodOverload struct {
	DeclMethod *Method

	Flags OverloadFlags

	ParamCount         int
	OptionalParamCount int
	Params             []Parameter
	RefSig             refsig.Signature

	MaxStack int
	Locals   int

	TryBlocks []*TryBlock

	// Exactly one of NativeEntry/Body is set once the overload is
	// ready to run, except for abstract overloads, which have neither.
	// RawBody holds the on-disk bytes between
	// load and first initialization; it is discarded (set to nil) once
	// Body is produced.
	NativeEntry    NativeFunc
	NativeEntryName string // the C-string entry-point name, pre-resolution
	RawBody        []byte
	Body           []byte

	// DebugRanges is a pass-through for the (out-of-scope) debug symbol
	// producer: opaque [start,end) ranges in byte-offset space that
	// Stage 2–4 of the initializer translate alongside try regions,
	// without interpreting their contents.
	DebugRanges []DebugRange

	// Annotations, like Field.Annotations, is an opaque []modfile.Annotation
	// pass-through interpreted only by the abi package.
	Annotations interface{}

	// initMu serializes first-use initialization: the first thread to
	// observe an uninitialized overload runs the rewriter while any
	// concurrent observer blocks here and finds OverloadInitialized set
	// once the lock is released. initedFast shadows the flag bit for
	// the lock-free fast path: Flags itself is only read or written
	// with initMu held once overloads are visible to multiple threads.
	initMu     sync.Mutex
	initedFast atomic.Bool
}

// LockInit acquires the per-overload initialization lock; UnlockInit
// releases it. The initializer holds it across the whole rewrite so
// concurrent first calls to the same overload don't race.
func (o *MethodOverload) LockInit()   { o.initMu.Lock() }
func (o *MethodOverload) UnlockInit() { o.initMu.Unlock() }

// InitializedFast is the lock-free fast-path check: an acquire-load of
// the initialized state, safe to call without holding the init lock.
func (o *MethodOverload) InitializedFast() bool { return o.initedFast.Load() }

// MarkInitialized records a completed rewrite. Call with the init lock
// held; the atomic store publishes the rewritten Body to fast-path
// readers.
func (o *MethodOverload) MarkInitialized() {
	o.Flags |= OverloadInitialized
	o.initedFast.Store(true)
}

// DebugRange is an opaque byte-offset span translated through the same
// old-index/new-index machinery as try regions, never parsed by the
// core.
type DebugRange struct {
	Start, End uint32
}

func (o *MethodOverload) IsVariadic() bool {
	return o.Flags&(OverloadVariadicStart|OverloadVariadicEnd) != 0
}
func (o *MethodOverload) IsVirtual() bool  { return o.Flags&OverloadVirtual != 0 }
func (o *MethodOverload) IsAbstract() bool { return o.Flags&OverloadAbstract != 0 }
func (o *MethodOverload) IsNative() bool   { return o.Flags&OverloadNative != 0 }
func (o *MethodOverload) IsInstance() bool { return o.Flags&OverloadInstance != 0 }
func (o *MethodOverload) IsInitialized() bool { return o.Flags&OverloadInitialized != 0 }

// Accepts reports whether this single overload can be called with
// argCount arguments, accounting for optional and variadic parameters.
func (o *MethodOverload) Accepts(argCount int) bool {
	required := o.ParamCount - o.OptionalParamCount
	if o.IsVariadic() {
		return argCount >= required
	}
	return argCount >= required && argCount <= o.ParamCount
}
