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
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// buildMethod materializes one MethodDef into an *objmodel.Method and
// its overloads. declType is nil
// for a module-level function, in which case the built Method's token
// kind is FunctionDef rather than MethodDef.
func (ls *linkSession) buildMethod(declType *objmodel.Type, md modfile.MethodDef) (*objmodel.Method, error) {
	m := &objmodel.Method{
		Name:       md.Name,
		DeclType:   declType,
		DeclModule: ls.mod,
		Flags:      md.Flags,
	}
	if declType == nil {
		m.Token = token.New(token.KindFunctionDef, uint32(len(ls.mod.Functions)+1))
	} else {
		m.Token = token.New(token.KindMethodDef, uint32(len(ls.mod.Methods)+1))
	}

	m.Overloads = make([]*objmodel.MethodOverload, len(md.Overloads))
	for i, od := range md.Overloads {
		ov, err := ls.buildOverload(m, od)
		if err != nil {
			return nil, fmt.Errorf("method %q overload %d: %w", md.Name, i, err)
		}
		m.Overloads[i] = ov
	}
	return m, nil
}

func (ls *linkSession) buildOverload(m *objmodel.Method, od modfile.OverloadDef) (*objmodel.MethodOverload, error) {
	ov := &objmodel.MethodOverload{
		DeclMethod:         m,
		Flags:              od.Flags,
		ParamCount:         od.ParamCount,
		OptionalParamCount: od.OptionalParamCount,
		MaxStack:           od.MaxStack,
		Locals:             od.Locals,
	}

	ov.Params = make([]objmodel.Parameter, len(od.Params))
	builder := refsig.NewBuilder(uint32(od.ParamCount) + 1)
	for i, pd := range od.Params {
		ov.Params[i] = objmodel.Parameter{
			Name:     pd.Name,
			Optional: pd.Flags&modfile.ParamOptional != 0,
			ByRef:    pd.Flags&modfile.ParamByRef != 0,
		}
		if ov.Params[i].ByRef {
			builder.SetParam(uint32(i)+1, true)
		}
	}
	ov.RefSig = builder.Commit(ls.loader.opts.RefSigs)

	ov.TryBlocks = make([]*objmodel.TryBlock, len(od.TryBlocks))
	for i, tb := range od.TryBlocks {
		built := &objmodel.TryBlock{
			Kind: tb.Kind, TryStart: tb.TryStart, TryEnd: tb.TryEnd,
			FinallyStart: tb.FinallyStart, FinallyEnd: tb.FinallyEnd,
			FaultStart: tb.FaultStart, FaultEnd: tb.FaultEnd,
		}
		built.Catches = make([]objmodel.CatchClause, len(tb.Catches))
		for j, c := range tb.Catches {
			cc := objmodel.CatchClause{CaughtType: c.CaughtType, CatchStart: c.CatchStart, CatchEnd: c.CatchEnd}
			// Resolved eagerly when possible; left nil otherwise for the
			// initializer to resolve lazily.
			if ty, ok := ls.resolveTypeToken(c.CaughtType); ok {
				cc.Resolved = ty
			}
			built.Catches[j] = cc
		}
		ov.TryBlocks[i] = built
	}

	if len(od.Annotations) > 0 {
		ov.Annotations = od.Annotations
	}

	switch {
	case ov.IsAbstract():
		// Abstract overloads carry neither NativeEntry nor Body.
	case ov.IsNative():
		ov.NativeEntryName = od.NativeEntryName
		if lib := ls.mod.NativeLibrary(); lib != nil {
			if entry, ok := lib.ResolveSymbol(od.NativeEntryName); ok {
				_ = entry // only checked for presence; the resolved pointer is not stored on the core struct
			} else {
				return nil, modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, fmt.Sprintf("native entry %q not found", od.NativeEntryName))
			}
		}
	default:
		body, err := modfile.ReadMethodBody(ls.reader, ls.header, od.BodyOffset, od.BodyLength)
		if err != nil {
			return nil, err
		}
		ov.RawBody = body
	}

	return ov, nil
}
