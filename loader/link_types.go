/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package loader

import (
	"fmt"

	"github.com/osprey-lang/ovum/modfile"
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/ovmtrace"
	"github.com/osprey-lang/ovum/token"
)

// populateType fills in ty's member table from td: fields, methods,
// properties, operators, then the per-type native initializer and
// standard-type registration, in that order.
func (ls *linkSession) populateType(ty *objmodel.Type, td modfile.TypeDef) error {
	if !td.BaseType.IsNone() {
		base, ok := ls.resolveTypeToken(td.BaseType)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("type %q: base type not resolved", ty.FullName))
		}
		ty.BaseType = base
		ty.Size = base.Size // fieldsOffset = baseType.totalSize
	}
	ty.SharedType = td.SharedType
	if len(td.Annotations) > 0 {
		ty.Annotations = td.Annotations
	}

	for _, fd := range td.Fields {
		field := &objmodel.Field{
			Name: fd.Name, DeclType: ty, DeclModule: ls.mod, Flags: fd.Flags,
			Token: token.New(token.KindFieldDef, uint32(len(ls.mod.Fields)+1)),
		}
		if len(fd.Annotations) > 0 {
			field.Annotations = fd.Annotations
		}
		switch {
		case field.IsInstance():
			field.Offset = ty.Size
			ty.Size++
		case field.HasConstant():
			field.ConstValue = fd.ConstValue
			if ct, ok := ls.resolveTypeToken(fd.ConstType); ok {
				field.ConstType = ct
			} else {
				ls.deferredConstants = append(ls.deferredConstants, deferredConstant{field: field, typeToken: fd.ConstType})
			}
		default:
			var zero objmodel.Value
			field.StaticValue = &zero
		}
		ty.Members[field.Name] = field
		ls.mod.Fields = append(ls.mod.Fields, field)
	}

	for _, md := range td.Methods {
		m, err := ls.buildMethod(ty, md)
		if err != nil {
			return err
		}
		ty.Members[m.Name] = m
		ls.mod.Methods = append(ls.mod.Methods, m)
	}

	if ctor, ok := ty.Members[".new"].(*objmodel.Method); ok {
		ty.InstanceCtor = ctor
	}

	ls.wireBaseMethods(ty)

	for _, pd := range td.Properties {
		prop, err := ls.buildProperty(ty, pd)
		if err != nil {
			return err
		}
		ty.Members[prop.Name] = prop
	}

	for _, od := range td.Operators {
		method, ok := ls.findMethodInType(ty, od.Method)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("operator %s on %q: method token not found", od.Operator, ty.FullName))
		}
		overload := method.FindOverload(od.Operator.Arity() - 1)
		if overload == nil {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("operator %s on %q: no overload with arity %d", od.Operator, ty.FullName, od.Operator.Arity()))
		}
		ty.SetOperator(od.Operator, overload)
	}

	// Hash and Dollar are never written as an OperatorDef (the file
	// format only has 16 explicit slots); they're bound by looking up a
	// reserved method name instead, matching their first overload by
	// arity.
	for _, op := range [...]objmodel.Operator{objmodel.OpHash, objmodel.OpDollar} {
		name, _ := objmodel.OperatorBindingName(op)
		method, ok := ty.Members[name].(*objmodel.Method)
		if !ok {
			continue
		}
		if overload := method.FindOverload(op.Arity() - 1); overload != nil {
			ty.SetOperator(op, overload)
		}
	}

	if ty.NativeInitializerName != "" {
		lib := ls.mod.NativeLibrary()
		if lib == nil {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonIOError, fmt.Sprintf("type %q declares a native initializer but module has no native library", ty.FullName))
		}
		if _, ok := lib.ResolveSymbol(ty.NativeInitializerName); !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("type %q: native initializer symbol %q not found", ty.FullName, ty.NativeInitializerName))
		}
		// Invoking the resolved symbol (to let it set instance size, a
		// finalizer, a reference walker, or native fields) crosses into
		// the native ABI boundary; the core's contract ends
		// at resolving the symbol.
	}

	if std := ls.loader.opts.Standard; std != nil {
		if std.TryClaim(ty.FullName, ty) {
			ovmtrace.Trace(fmt.Sprintf("loader: %q claimed standard-type slot %q", ls.mod.Name, ty.FullName))
		}
	}

	return nil
}

// findMethodInType looks up a MethodDef token against the methods
// already populated directly on ty (operators and properties only ever
// reference a method declared on the same type, per the file format).
func (ls *linkSession) findMethodInType(ty *objmodel.Type, tok token.Token) (*objmodel.Method, bool) {
	if tok.IsNone() {
		return nil, false
	}
	for _, member := range ty.Members {
		if m, ok := member.(*objmodel.Method); ok && m.Token == tok {
			return m, true
		}
	}
	return nil, false
}

// wireBaseMethods resolves each of ty's just-populated methods' base-
// method link by walking ty.BaseType's chain, skipping private methods
// and the three reserved names that are never overridable.
func (ls *linkSession) wireBaseMethods(ty *objmodel.Type) {
	if ty.BaseType == nil {
		return
	}
	for _, member := range ty.Members {
		m, ok := member.(*objmodel.Method)
		if !ok || isReservedMethodName(m.Name) || m.AccessLevel() == objmodel.AccessPrivate {
			continue
		}
		for base := ty.BaseType; base != nil; base = base.BaseType {
			cand, ok := base.Members[m.Name].(*objmodel.Method)
			if !ok {
				continue
			}
			if cand.AccessLevel() == objmodel.AccessPrivate || isReservedMethodName(cand.Name) {
				continue
			}
			if cand.AccessLevel() == m.AccessLevel() && cand.IsInstance() == m.IsInstance() {
				m.BaseMethod = cand
				break
			}
		}
	}
}

func isReservedMethodName(name string) bool {
	switch name {
	case ".new", ".iter", ".init":
		return true
	default:
		return false
	}
}

func (ls *linkSession) buildProperty(ty *objmodel.Type, pd modfile.PropertyDef) (*objmodel.Property, error) {
	prop := &objmodel.Property{Name: pd.Name, DeclType: ty}
	if !pd.Getter.IsNone() {
		getter, ok := ls.findMethodInType(ty, pd.Getter)
		if !ok {
			return nil, modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("property %q: getter not found on %q", pd.Name, ty.FullName))
		}
		prop.Getter = getter
	}
	if !pd.Setter.IsNone() {
		setter, ok := ls.findMethodInType(ty, pd.Setter)
		if !ok {
			return nil, modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("property %q: setter not found on %q", pd.Name, ty.FullName))
		}
		prop.Setter = setter
	}
	if prop.Getter == nil && prop.Setter == nil {
		return nil, modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("property %q: neither accessor present", pd.Name))
	}
	if prop.Getter != nil && prop.Setter != nil {
		if prop.Getter.AccessLevel() != prop.Setter.AccessLevel() || prop.Getter.IsInstance() != prop.Setter.IsInstance() {
			return nil, modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("property %q: accessor flags disagree", pd.Name))
		}
	}
	return prop, nil
}
