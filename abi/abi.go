/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package abi is the native ABI surface: the introspection
// contract a native extension module's C code is given over a loaded
// module's types, methods, and overloads. It is deliberately thin and
// declarative — handles wrap the already-materialized objmodel graph
// rather than duplicating it, and invocation itself (calling back into
// the interpreter) belongs to the interpreter, not here.
package abi

import (
	"github.com/osprey-lang/ovum/modfile"
	"github.com/osprey-lang/ovum/objmodel"
)

// ModuleHandle, TypeHandle, MethodHandle, and OverloadHandle are the
// ABI's opaque handle types. A native caller holds one of these and
// calls the functions below instead of reaching into objmodel directly
// — the same shape a real cgo export boundary would take, minus the
// actual C calling convention.
type (
	ModuleHandle   struct{ m *objmodel.Module }
	TypeHandle     struct{ t *objmodel.Type }
	MethodHandle   struct{ m *objmodel.Method }
	OverloadHandle struct{ o *objmodel.MethodOverload }
)

func WrapModule(m *objmodel.Module) ModuleHandle     { return ModuleHandle{m} }
func WrapType(t *objmodel.Type) TypeHandle           { return TypeHandle{t} }
func WrapMethod(m *objmodel.Method) MethodHandle     { return MethodHandle{m} }
func WrapOverload(o *objmodel.MethodOverload) OverloadHandle { return OverloadHandle{o} }

func (h ModuleHandle) Valid() bool   { return h.m != nil }
func (h TypeHandle) Valid() bool     { return h.t != nil }
func (h MethodHandle) Valid() bool   { return h.m != nil }
func (h OverloadHandle) Valid() bool { return h.o != nil }

// --- Module introspection ---

func (h ModuleHandle) Name() string             { return h.m.Name }
func (h ModuleHandle) Version() objmodel.Version { return h.m.Version }
func (h ModuleHandle) FileName() string         { return h.m.FilePath }

// GlobalMembers enumerates this module's global functions and constants.
func (h ModuleHandle) GlobalMembers() []string {
	names := make([]string, 0, len(h.m.Functions)+len(h.m.Constants))
	for _, fn := range h.m.Functions {
		names = append(names, fn.Name)
	}
	for _, c := range h.m.Constants {
		names = append(names, c.Name)
	}
	return names
}

// FindType looks up a type declared directly in this module by name.
func (h ModuleHandle) FindType(name string, fromModule ModuleHandle, includeInternal bool) (TypeHandle, bool) {
	t, ok := h.m.FindType(name, fromModule.m, includeInternal)
	if !ok {
		return TypeHandle{}, false
	}
	return TypeHandle{t}, true
}

// FindFunctionOrConstant looks up a module-level function or constant by
// name.
func (h ModuleHandle) FindFunctionOrConstant(name string, fromModule ModuleHandle, includeInternal bool) (interface{}, bool) {
	return h.m.FindGlobalMember(name, fromModule.m, includeInternal)
}

// FindNativeEntryPoint resolves name against this module's own native
// library.
func (h ModuleHandle) FindNativeEntryPoint(name string) (uintptr, bool) {
	lib := h.m.NativeLibrary()
	if lib == nil {
		return 0, false
	}
	return lib.ResolveSymbol(name)
}

// FindDependency looks up a module this one depends on by name.
func (h ModuleHandle) FindDependency(name string) (ModuleHandle, bool) {
	for _, ref := range h.m.ModuleRefs {
		if ref.Name == name && ref.Resolved != nil {
			return ModuleHandle{ref.Resolved}, true
		}
	}
	return ModuleHandle{}, false
}

// --- Type introspection ---

func (h TypeHandle) Flags() objmodel.TypeFlags { return h.t.Flags }
func (h TypeHandle) FullName() string          { return h.t.FullName }

func (h TypeHandle) BaseType() (TypeHandle, bool) {
	if h.t.BaseType == nil {
		return TypeHandle{}, false
	}
	return TypeHandle{h.t.BaseType}, true
}

func (h TypeHandle) DeclModule() ModuleHandle { return ModuleHandle{h.t.DeclModule} }

// FindMember looks up name on this type, honoring accessibility from the
// caller's (module, type) pair.
func (h TypeHandle) FindMember(name string, fromModule ModuleHandle, fromType TypeHandle, includeInternal bool) (objmodel.Member, bool) {
	m := h.t.FindAccessibleMember(name, fromModule.m, fromType.t, includeInternal)
	if m == nil {
		return nil, false
	}
	return m, true
}

// EnumerateMembers returns this type's own member table (not inherited
// members — callers wanting those walk BaseType themselves, same as
// objmodel.Type.FindMember does internally).
func (h TypeHandle) EnumerateMembers() map[string]objmodel.Member {
	return h.t.Members
}

// GetOperator returns the overload bound to op, if any.
func (h TypeHandle) GetOperator(op objmodel.Operator) (OverloadHandle, bool) {
	ov := h.t.FindOperator(op)
	if ov == nil {
		return OverloadHandle{}, false
	}
	return OverloadHandle{ov}, true
}

// InstanceSize returns the type's current field-layout size, in Value
// slots.
func (h TypeHandle) InstanceSize() uint32 { return h.t.Size }

// SetInstanceSize lets a native type initializer grow the instance
// layout to make room for native-only storage, before any instance of
// the type is ever allocated.
func (h TypeHandle) SetInstanceSize(size uint32) { h.t.Size = size }

// SetFinalizer installs fn as this type's finalizer.
func (h TypeHandle) SetFinalizer(fn func(instance interface{})) {
	h.t.Finalizer = fn
	h.t.Flags |= objmodel.TypeHasFinalizer
}

// SetReferenceWalker installs fn as this type's GC reference walker.
func (h TypeHandle) SetReferenceWalker(fn func(instance interface{}, mark func(interface{}))) {
	h.t.RefWalker = fn
}

// AddNativeField registers one native-layout field at offset, of the
// given kind.
func (h TypeHandle) AddNativeField(name string, offset uint32, kind objmodel.NativeFieldKind) {
	h.t.NativeFields = append(h.t.NativeFields, objmodel.NativeField{Name: name, Offset: offset, Kind: kind})
}

func (h TypeHandle) SetCtorIsAllocator(v bool) { h.t.CtorIsAllocator = v }
func (h TypeHandle) CtorIsAllocator() bool     { return h.t.CtorIsAllocator }

// --- Method introspection ---

func (h MethodHandle) OverloadCount() int { return len(h.m.Overloads) }

func (h MethodHandle) OverloadAt(index int) (OverloadHandle, bool) {
	if index < 0 || index >= len(h.m.Overloads) {
		return OverloadHandle{}, false
	}
	return OverloadHandle{h.m.Overloads[index]}, true
}

func (h MethodHandle) BaseMethod() (MethodHandle, bool) {
	if h.m.BaseMethod == nil {
		return MethodHandle{}, false
	}
	return MethodHandle{h.m.BaseMethod}, true
}

func (h MethodHandle) Accepts(argCount int) bool { return h.m.Accepts(argCount) }

func (h MethodHandle) FindMatchingOverload(argCount int) (OverloadHandle, bool) {
	ov := h.m.FindOverload(argCount)
	if ov == nil {
		return OverloadHandle{}, false
	}
	return OverloadHandle{ov}, true
}

// --- Overload introspection ---

func (h OverloadHandle) Flags() objmodel.OverloadFlags { return h.o.Flags }
func (h OverloadHandle) ParamCount() int               { return h.o.ParamCount }

func (h OverloadHandle) ParamAt(index int) (objmodel.Parameter, bool) {
	if index < 0 || index >= len(h.o.Params) {
		return objmodel.Parameter{}, false
	}
	return h.o.Params[index], true
}

func (h OverloadHandle) DeclaringMethod() MethodHandle { return MethodHandle{h.o.DeclMethod} }

// --- Annotations ---

// Annotation is the ABI's read-only view of one annotation entry;
// identical in shape to modfile.Annotation, which objmodel can't
// reference directly (modfile already imports objmodel for its field
// types, so the dependency only runs one way).
type Annotation = modfile.Annotation

// annotationsOf recovers the []modfile.Annotation the loader stashed
// opaquely on an objmodel field during linking (see loader/link_types.go,
// loader/link_methods.go).
func annotationsOf(raw interface{}) []Annotation {
	if raw == nil {
		return nil
	}
	anns, _ := raw.([]modfile.Annotation)
	return anns
}

func (h TypeHandle) Annotations() []Annotation     { return annotationsOf(h.t.Annotations) }
func (h OverloadHandle) Annotations() []Annotation { return annotationsOf(h.o.Annotations) }

// FieldAnnotations exposes a Field's annotation block; Field isn't
// wrapped in its own handle type since the ABI only ever reaches one
// through TypeHandle.FindMember/EnumerateMembers.
func FieldAnnotations(f *objmodel.Field) []Annotation { return annotationsOf(f.Annotations) }
