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
	"github.com/osprey-lang/ovum/token"
)

// deferredConstant is a constant field whose declared type token did not
// resolve while the TypeDef table was still being read.
type deferredConstant struct {
	field     *objmodel.Field
	typeToken token.Token
}

// linkSession holds the working state for linking one module's raw
// modfile.File into its objmodel.Module.
type linkSession struct {
	loader *Loader
	mod    *objmodel.Module
	file   *modfile.File
	deps   []*objmodel.Module // dependency modules, in file.ModuleRefs order

	// reader/header let buildMethod seek into the method block to pull
	// an overload's raw body bytes (modfile.ReadMethodBody), long after
	// the section readers that decoded the OverloadDef have returned.
	reader *modfile.Reader
	header modfile.Header

	// defTypes maps a TypeDef's 1-based index to its materialized
	// *objmodel.Type, filled in during the structural phase so member
	// population (and BaseType resolution) can refer to
	// forward-declared sibling types, including the type's own later
	// members referencing their enclosing type.
	defTypes []*objmodel.Type

	deferredConstants []deferredConstant
}

// link runs the linker over every section already decoded into
// ls.file, in the file format's fixed order: ModuleRef resolution
// happened inside modfile.ReadFile's openDependency callback (ls.deps
// was populated there); everything else happens here.
func (ls *linkSession) link() error {
	ls.mod.ModuleRefs = ls.buildModuleRefs()

	if err := ls.buildTypeRefs(); err != nil {
		return err
	}
	if err := ls.buildFunctionRefs(); err != nil {
		return err
	}

	// Structural phase: allocate every Type
	// before populating any, so BaseType and member bodies
	// can forward-reference sibling types in this module.
	ls.defTypes = make([]*objmodel.Type, len(ls.file.TypeDefs))
	for i, td := range ls.file.TypeDefs {
		ty := &objmodel.Type{
			FullName:              td.Name,
			Flags:                 td.Flags,
			DeclModule:            ls.mod,
			Members:               map[string]objmodel.Member{},
			Token:                 token.New(token.KindTypeDef, uint32(i+1)),
			NativeInitializerName: td.NativeInitializerName,
		}
		ls.defTypes[i] = ty
		ls.mod.Types = append(ls.mod.Types, ty)
	}

	// Member population phase.
	for i, td := range ls.file.TypeDefs {
		if err := ls.populateType(ls.defTypes[i], td); err != nil {
			return err
		}
	}

	// Now that every TypeDef's members exist, FieldRef/MethodRef
	// entries whose DeclType names a TypeDef in this module can
	// resolve (those naming a TypeRef resolve against an already fully-
	// opened dependency and could have been done earlier; doing all of
	// them here keeps the pass count down).
	if err := ls.buildFieldRefs(); err != nil {
		return err
	}
	if err := ls.buildMethodRefs(); err != nil {
		return err
	}

	for _, fd := range ls.file.FunctionDefs {
		m, err := ls.buildMethod(nil, fd)
		if err != nil {
			return err
		}
		ls.mod.Functions = append(ls.mod.Functions, m)
	}

	for _, cd := range ls.file.ConstantDefs {
		ls.mod.Constants = append(ls.mod.Constants, &objmodel.Constant{
			Name: cd.Name, Flags: cd.Flags, Type: cd.Type, Value: cd.Value,
		})
	}

	return nil
}

func (ls *linkSession) buildModuleRefs() []*objmodel.ModuleRef {
	out := make([]*objmodel.ModuleRef, len(ls.file.ModuleRefs))
	for i, mr := range ls.file.ModuleRefs {
		name, _ := ls.mod.GetString(mr.NameToken)
		out[i] = &objmodel.ModuleRef{
			Name:       name,
			Constraint: mr.Constraint,
			Version:    mr.Version,
			Resolved:   ls.deps[i],
		}
	}
	return out
}

// dependencyFor resolves a 1-based moduleRef index to the dependency
// Module it was opened against.
func (ls *linkSession) dependencyFor(index uint32) (*objmodel.Module, error) {
	if index == 0 || int(index) > len(ls.mod.ModuleRefs) {
		return nil, modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("moduleRef index %d out of range", index))
	}
	return ls.mod.ModuleRefs[index-1].Resolved, nil
}

func (ls *linkSession) buildTypeRefs() error {
	ls.mod.TypeRefs = make([]*objmodel.TypeRef, len(ls.file.TypeRefs))
	for i, tr := range ls.file.TypeRefs {
		dep, err := ls.dependencyFor(tr.ModuleRefIndex)
		if err != nil {
			return err
		}
		resolved, ok := dep.FindType(tr.Name, ls.mod, false)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("type %q not found in module %q", tr.Name, dep.Name))
		}
		ls.mod.TypeRefs[i] = &objmodel.TypeRef{DeclModule: ls.mod.ModuleRefs[tr.ModuleRefIndex-1], Name: tr.Name, Resolved: resolved}
	}
	return nil
}

func (ls *linkSession) buildFunctionRefs() error {
	ls.mod.FunctionRefs = make([]*objmodel.FunctionRef, len(ls.file.FunctionRefs))
	for i, fr := range ls.file.FunctionRefs {
		dep, err := ls.dependencyFor(fr.ModuleRefIndex)
		if err != nil {
			return err
		}
		member, ok := dep.FindGlobalMember(fr.Name, ls.mod, false)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("function %q not found in module %q", fr.Name, dep.Name))
		}
		fn, ok := member.(*objmodel.Method)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("%q in module %q is not a function", fr.Name, dep.Name))
		}
		ls.mod.FunctionRefs[i] = &objmodel.FunctionRef{DeclModule: ls.mod.ModuleRefs[fr.ModuleRefIndex-1], Name: fr.Name, Resolved: fn}
	}
	return nil
}

// resolveTypeToken resolves a TypeDef or TypeRef token (in this
// module) to an *objmodel.Type, checking the kind nibble before
// touching either table.
func (ls *linkSession) resolveTypeToken(t token.Token) (*objmodel.Type, bool) {
	switch t.Kind() {
	case token.KindTypeDef:
		idx := t.Index()
		if idx == 0 || int(idx) > len(ls.defTypes) {
			return nil, false
		}
		return ls.defTypes[idx-1], true
	case token.KindTypeRef:
		tr, ok := ls.mod.GetTypeRef(t)
		if !ok {
			return nil, false
		}
		return tr.Resolved, true
	default:
		return nil, false
	}
}

func (ls *linkSession) buildFieldRefs() error {
	ls.mod.FieldRefs = make([]*objmodel.FieldRef, len(ls.file.FieldRefs))
	for i, fr := range ls.file.FieldRefs {
		ty, ok := ls.resolveTypeToken(fr.DeclType)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("fieldRef %q: declaring type not resolved", fr.Name))
		}
		member := ty.FindAccessibleMember(fr.Name, ls.mod, nil, false)
		field, ok := member.(*objmodel.Field)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("field %q not found on %q", fr.Name, ty.FullName))
		}
		ls.mod.FieldRefs[i] = &objmodel.FieldRef{DeclType: fr.DeclType, Name: fr.Name, Resolved: field}
	}
	return nil
}

func (ls *linkSession) buildMethodRefs() error {
	ls.mod.MethodRefs = make([]*objmodel.MethodRef, len(ls.file.MethodRefs))
	for i, mr := range ls.file.MethodRefs {
		ty, ok := ls.resolveTypeToken(mr.DeclType)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("methodRef %q: declaring type not resolved", mr.Name))
		}
		member := ty.FindAccessibleMember(mr.Name, ls.mod, nil, false)
		method, ok := member.(*objmodel.Method)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("method %q not found on %q", mr.Name, ty.FullName))
		}
		ls.mod.MethodRefs[i] = &objmodel.MethodRef{DeclType: mr.DeclType, Name: mr.Name, Resolved: method}
	}
	return nil
}

// resolveDeferredConstants resolves the types of constant fields that
// could not be resolved while the TypeDef table was still being read.
func (ls *linkSession) resolveDeferredConstants() error {
	for _, dc := range ls.deferredConstants {
		ty, ok := ls.resolveTypeToken(dc.typeToken)
		if !ok {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("constant field %q: type never resolved", dc.field.Name))
		}
		dc.field.ConstType = ty
	}
	return nil
}
