/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package abi

import (
	"testing"

	"github.com/osprey-lang/ovum/objmodel"
)

func newTestGraph() (*objmodel.Module, *objmodel.Type) {
	mod := objmodel.NewModule("host", objmodel.Version{Major: 1}, "host.ovm", 1, 1, 1, 1, 0)
	ty := &objmodel.Type{
		FullName:   "host.Buffer",
		Flags:      objmodel.TypePublic,
		DeclModule: mod,
		Members:    map[string]objmodel.Member{},
		Size:       2,
	}
	mod.Types = append(mod.Types, ty)

	meth := &objmodel.Method{Name: "write", DeclType: ty, DeclModule: mod, Flags: objmodel.MethodPublic | objmodel.MethodInstance}
	meth.Overloads = []*objmodel.MethodOverload{{
		DeclMethod: meth,
		ParamCount: 2,
		Params: []objmodel.Parameter{
			{Name: "data"},
			{Name: "count", Optional: true},
		},
		OptionalParamCount: 1,
	}}
	ty.Members["write"] = meth
	mod.Methods = append(mod.Methods, meth)

	fn := &objmodel.Method{Name: "open", DeclModule: mod, Flags: objmodel.MethodPublic}
	mod.Functions = append(mod.Functions, fn)

	return mod, ty
}

func TestModuleHandleIntrospection(t *testing.T) {
	mod, ty := newTestGraph()
	h := WrapModule(mod)

	if h.Name() != "host" || h.FileName() != "host.ovm" {
		t.Errorf("handle reports %q/%q, want host/host.ovm", h.Name(), h.FileName())
	}

	th, ok := h.FindType("host.Buffer", h, true)
	if !ok || th.t != ty {
		t.Fatal("FindType should resolve host.Buffer")
	}
	if _, ok := h.FindType("host.Missing", h, true); ok {
		t.Error("FindType resolved a type that does not exist")
	}

	members := h.GlobalMembers()
	if len(members) != 1 || members[0] != "open" {
		t.Errorf("GlobalMembers = %v, want [open]", members)
	}
}

func TestTypeHandleMemberAndMutators(t *testing.T) {
	mod, ty := newTestGraph()
	mh := WrapModule(mod)
	th := WrapType(ty)

	member, ok := th.FindMember("write", mh, TypeHandle{}, true)
	if !ok {
		t.Fatal("FindMember should resolve write")
	}
	meth, ok := member.(*objmodel.Method)
	if !ok || meth.Name != "write" {
		t.Fatalf("FindMember returned %v, want the write method", member)
	}

	th.SetInstanceSize(5)
	if th.InstanceSize() != 5 {
		t.Errorf("InstanceSize = %d, want 5", th.InstanceSize())
	}

	th.SetFinalizer(func(interface{}) {})
	if ty.Flags&objmodel.TypeHasFinalizer == 0 {
		t.Error("SetFinalizer should flag the type as having a finalizer")
	}

	th.AddNativeField("fd", 0, objmodel.NativeFieldValue)
	if len(ty.NativeFields) != 1 || ty.NativeFields[0].Name != "fd" {
		t.Errorf("NativeFields = %v, want one entry named fd", ty.NativeFields)
	}
}

func TestOverloadHandleParamMetadata(t *testing.T) {
	mod, ty := newTestGraph()
	_ = mod
	meth := ty.Members["write"].(*objmodel.Method)
	oh, ok := WrapMethod(meth).OverloadAt(0)
	if !ok {
		t.Fatal("OverloadAt(0) should succeed")
	}
	if oh.ParamCount() != 2 {
		t.Errorf("ParamCount = %d, want 2", oh.ParamCount())
	}
	p, ok := oh.ParamAt(1)
	if !ok || p.Name != "count" || !p.Optional {
		t.Errorf("ParamAt(1) = %+v, want the optional count parameter", p)
	}
	if _, ok := oh.ParamAt(2); ok {
		t.Error("ParamAt(2) should be out of range")
	}
	if oh.DeclaringMethod().m != meth {
		t.Error("DeclaringMethod should round-trip to the wrapped method")
	}
}

func TestInvocationErrorReasons(t *testing.T) {
	err := NewInvocationError(ReasonInterrupted, "sleep")
	if err.Reason != ReasonInterrupted {
		t.Errorf("Reason = %v, want Interrupted", err.Reason)
	}
	if err.Error() != "invocation error: Interrupted: sleep" {
		t.Errorf("Error() = %q", err.Error())
	}
}
