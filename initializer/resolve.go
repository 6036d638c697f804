/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import (
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// resolveTypeToken resolves a TypeDef/TypeRef token against an already
// fully-linked module. The initializer runs after loading, so every
// token here was already validated once by the loader — these checks
// exist for malformed or hand-assembled bodies.
func resolveTypeToken(mod *objmodel.Module, t token.Token) (*objmodel.Type, bool) {
	switch t.Kind() {
	case token.KindTypeDef:
		return mod.GetType(t)
	case token.KindTypeRef:
		tr, ok := mod.GetTypeRef(t)
		if !ok {
			return nil, false
		}
		return tr.Resolved, true
	default:
		return nil, false
	}
}

// checkMemberAccess gates a resolved member the way the loader gates
// cross-module lookups: the initializing method's own (module, type)
// context is the accessor. Raised at rewrite time so an illegal access
// never reaches the interpreter.
func checkMemberAccess(b *builder, index int, level objmodel.Access, declModule *objmodel.Module, declType *objmodel.Type, name string) error {
	if !objmodel.Accessible(level, declModule, b.mod, declType, b.declType, true) {
		return b.fail(index, ReasonInaccessibleMember, name)
	}
	return nil
}

// checkTypeAccess is the type-level counterpart of checkMemberAccess.
func checkTypeAccess(b *builder, index int, ty *objmodel.Type) error {
	if !objmodel.Accessible(ty.Access(), ty.DeclModule, b.mod, nil, nil, true) {
		return b.fail(index, ReasonInaccessibleType, ty.FullName)
	}
	return nil
}

func resolveFieldToken(b *builder, index int, t token.Token, wantInstance bool) (*objmodel.Field, error) {
	var field *objmodel.Field
	switch t.Kind() {
	case token.KindFieldDef:
		f, ok := b.mod.GetField(t)
		if !ok {
			return nil, b.fail(index, ReasonUnresolvedToken, "field")
		}
		field = f
	case token.KindFieldRef:
		fr, ok := b.mod.GetFieldRef(t)
		if !ok {
			return nil, b.fail(index, ReasonUnresolvedToken, "field ref")
		}
		field = fr.Resolved
	default:
		return nil, b.fail(index, ReasonUnresolvedToken, "field token has wrong kind")
	}
	if err := checkMemberAccess(b, index, field.Access(), field.DeclModule, field.DeclType, field.Name); err != nil {
		return nil, err
	}
	if field.IsInstance() != wantInstance {
		return nil, b.fail(index, ReasonFieldStaticInstanceMismatch, field.Name)
	}
	return field, nil
}

func resolveMethodToken(b *builder, index int, t token.Token) (*objmodel.Method, error) {
	var m *objmodel.Method
	switch t.Kind() {
	case token.KindMethodDef:
		md, ok := b.mod.GetMethod(t)
		if !ok {
			return nil, b.fail(index, ReasonUnresolvedToken, "method")
		}
		m = md
	case token.KindMethodRef:
		mr, ok := b.mod.GetMethodRef(t)
		if !ok {
			return nil, b.fail(index, ReasonUnresolvedToken, "method ref")
		}
		m = mr.Resolved
	default:
		return nil, b.fail(index, ReasonUnresolvedToken, "method token has wrong kind")
	}
	if err := checkMemberAccess(b, index, m.AccessLevel(), m.DeclModule, m.DeclType, m.Name); err != nil {
		return nil, err
	}
	return m, nil
}

func resolveFunctionToken(b *builder, index int, t token.Token) (*objmodel.Method, error) {
	var fn *objmodel.Method
	switch t.Kind() {
	case token.KindFunctionDef:
		f, ok := b.mod.GetFunction(t)
		if !ok {
			return nil, b.fail(index, ReasonUnresolvedToken, "function")
		}
		fn = f
	case token.KindFunctionRef:
		fr, ok := b.mod.GetFunctionRef(t)
		if !ok {
			return nil, b.fail(index, ReasonUnresolvedToken, "function ref")
		}
		fn = fr.Resolved
	default:
		return nil, b.fail(index, ReasonUnresolvedToken, "function token has wrong kind")
	}
	if err := checkMemberAccess(b, index, fn.AccessLevel(), fn.DeclModule, nil, fn.Name); err != nil {
		return nil, err
	}
	return fn, nil
}

// resolveCtor validates a NEWOBJ target.
func resolveCtor(b *builder, index int, t token.Token, argCount int) (*objmodel.Type, *objmodel.Method, error) {
	ty, ok := resolveTypeToken(b.mod, t)
	if !ok {
		return nil, nil, b.fail(index, ReasonUnresolvedToken, "NewObj target type")
	}
	if err := checkTypeAccess(b, index, ty); err != nil {
		return nil, nil, err
	}
	if ty.IsAbstract() || ty.IsStatic() || ty.IsPrimitive() {
		return nil, nil, b.fail(index, ReasonTypeNotConstructible, ty.FullName)
	}
	var ctor *objmodel.Method
	for cur := ty; cur != nil && ctor == nil; cur = cur.BaseType {
		ctor = cur.InstanceCtor
	}
	if ctor == nil {
		return nil, nil, b.fail(index, ReasonTypeNotConstructible, ty.FullName+": no constructor")
	}
	if err := checkMemberAccess(b, index, ctor.AccessLevel(), ctor.DeclModule, ctor.DeclType, ctor.Name); err != nil {
		return nil, nil, err
	}
	if ov := ctor.FindOverload(argCount); ov == nil {
		return nil, nil, b.fail(index, ReasonNoMatchingOverload, ty.FullName)
	}
	return ty, ctor, nil
}

// refOverloadParamIsRef reports whether overload ov already declares
// parameter n (0 = receiver) as by-reference, per its ref-signature.
func refOverloadParamIsRef(ov *objmodel.MethodOverload, n uint32, pool *refsig.Pool) bool {
	return refsig.IsParamRef(ov.RefSig, n, pool)
}
