/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "github.com/osprey-lang/ovum/token"

import "testing"

func newTestModule() *Module {
	m := NewModule("test", Version{1, 0, 0, 0}, "test.ovm", 1, 0, 1, 0, 0)
	ty := &Type{FullName: "test.Widget", DeclModule: m, Members: map[string]Member{}}
	m.Types = append(m.Types, ty)
	meth := &Method{Name: "frob", DeclType: ty, DeclModule: m, Flags: MethodPublic | MethodInstance}
	m.Methods = append(m.Methods, meth)
	ty.Members["frob"] = meth
	return m
}

func TestTokenKindAgreement(t *testing.T) {
	m := newTestModule()

	typeTok := token.New(token.KindTypeDef, 1)
	if _, ok := m.GetType(typeTok); !ok {
		t.Fatal("expected GetType to resolve a valid TypeDef token")
	}

	// A token with the right index but the wrong kind must not resolve,
	// and must not be used to index the Types table under a different
	// interpretation.
	wrongKind := token.New(token.KindMethodDef, 1)
	if _, ok := m.GetType(wrongKind); ok {
		t.Fatal("GetType resolved a MethodDef-kind token")
	}

	methTok := token.New(token.KindMethodDef, 1)
	if _, ok := m.GetMethod(methTok); !ok {
		t.Fatal("expected GetMethod to resolve a valid MethodDef token")
	}
	if _, ok := m.GetMethod(token.New(token.KindTypeDef, 1)); ok {
		t.Fatal("GetMethod resolved a TypeDef-kind token")
	}
}

func TestGetOutOfRangeIndexFails(t *testing.T) {
	m := newTestModule()
	if _, ok := m.GetType(token.New(token.KindTypeDef, 99)); ok {
		t.Fatal("GetType resolved an out-of-range index")
	}
}

func TestGetNoneFails(t *testing.T) {
	m := newTestModule()
	if _, ok := m.GetType(token.None); ok {
		t.Fatal("GetType resolved token.None")
	}
}

func TestStandardTypesFirstClaimWins(t *testing.T) {
	std := NewStandardTypes()
	claimedInit := false
	std.RegisterExtendedInit(StdString, func(*Type) { claimedInit = true })

	first := &Type{FullName: "aves.String"}
	if !std.TryClaim(StdString, first) {
		t.Fatal("first claim should succeed")
	}
	if !claimedInit {
		t.Error("extended initializer did not run on first claim")
	}

	second := &Type{FullName: "other.String"}
	if std.TryClaim(StdString, second) {
		t.Fatal("second claim of the same slot should fail")
	}

	got, ok := std.Get(StdString)
	if !ok || got != first {
		t.Errorf("Get(%q) = %v, %v; want first type claimed", StdString, got, ok)
	}
}

func TestSubtypeAndOperatorFallback(t *testing.T) {
	base := &Type{FullName: "base"}
	derived := &Type{FullName: "derived", BaseType: base}

	if !derived.IsSubtypeOf(base) {
		t.Error("derived should be a subtype of base")
	}
	if base.IsSubtypeOf(derived) {
		t.Error("base should not be a subtype of derived")
	}

	if ov := derived.FindOperator(OpEquals); ov != nil {
		t.Error("expected no Equals overload bound, got one")
	}

	overload := &MethodOverload{}
	base.SetOperator(OpEquals, overload)
	if got := derived.FindOperator(OpEquals); got != overload {
		t.Error("derived should inherit base's Equals overload")
	}
}
