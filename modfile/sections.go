/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modfile

import (
	"fmt"
	"math"

	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/token"
)

func float64FromBits(u uint64) float64 { return math.Float64frombits(u) }

// ReadFile drives the full section-by-section read of one module
// file, given a reader already positioned just past the header (i.e.
// immediately after ReadHeader returns). The
// caller (loader.Open) is responsible for registering the
// partially-loaded Module in the pool before calling this, so that
// ModuleRef resolution below can detect circular dependencies against
// it.
//
// onStrings, if non-nil, is called once the string table has been read
// and before moduleRef resolution begins. The module's own name token
// only resolves against this table, and moduleRef resolution is where
// circular-dependency detection happens — so the
// caller must use this hook to resolve and register the module's real
// name before any dependent can observe it under the wrong key.
//
// openDependency is called once per ModuleRef, and must return the
// (possibly not-yet-fully-opened) dependency Module; ReadFile itself
// only checks FullyOpened() after the call returns, failing with
// CircularDependency when the dependency is still mid-load.
func ReadFile(r *Reader, header Header, onStrings func(strings []string) error, openDependency func(name string, constraint objmodel.VersionConstraint, version objmodel.Version) (*objmodel.Module, error)) (*File, error) {
	f := &File{Header: header}

	strings, err := readStringTable(r)
	if err != nil {
		return nil, err
	}
	f.Strings = strings

	if onStrings != nil {
		if err := onStrings(strings); err != nil {
			return nil, err
		}
	}

	moduleRefs, err := readModuleRefTable(r)
	if err != nil {
		return nil, err
	}
	// Each ModuleRef's Name only exists as a String token until resolved
	// against the table read above; openDependency below needs the
	// actual name, not the token.
	for i := range moduleRefs {
		mr := &moduleRefs[i]
		if !mr.NameToken.HasKind(token.KindString) {
			return nil, newLoadError(r.file, ReasonUnresolvedToken, "moduleRef name token is not a String")
		}
		idx := mr.NameToken.Index()
		if idx == 0 || int(idx) > len(strings) {
			return nil, newLoadError(r.file, ReasonUnresolvedToken, "moduleRef name token")
		}
		mr.Name = strings[idx-1]
	}
	f.ModuleRefs = moduleRefs

	for i := range f.ModuleRefs {
		mr := &f.ModuleRefs[i]
		dep, err := openDependency(mr.Name, mr.Constraint, mr.Version)
		if err != nil {
			return nil, err
		}
		if !dep.FullyOpened() {
			return nil, newLoadError(r.file, ReasonCircularDependency, fmt.Sprintf("dependency %q is still loading", mr.Name))
		}
	}

	typeRefs, err := readTypeRefTable(r)
	if err != nil {
		return nil, err
	}
	f.TypeRefs = typeRefs

	functionRefs, err := readFunctionRefTable(r)
	if err != nil {
		return nil, err
	}
	f.FunctionRefs = functionRefs

	fieldRefs, err := readFieldRefTable(r)
	if err != nil {
		return nil, err
	}
	f.FieldRefs = fieldRefs

	methodRefs, err := readMethodRefTable(r)
	if err != nil {
		return nil, err
	}
	f.MethodRefs = methodRefs

	typeDefs, err := readTypeDefTable(r, int(header.TypeCount))
	if err != nil {
		return nil, err
	}
	f.TypeDefs = typeDefs

	functionDefs, err := readFunctionDefTable(r, int(header.FunctionCount))
	if err != nil {
		return nil, err
	}
	f.FunctionDefs = functionDefs

	constantDefs, err := readConstantDefTable(r, int(header.ConstantCount))
	if err != nil {
		return nil, err
	}
	f.ConstantDefs = constantDefs

	mainMethod, err := r.ReadToken()
	if err != nil {
		return nil, err
	}
	f.MainMethod = mainMethod

	return f, nil
}

func readStringTable(r *Reader) ([]string, error) {
	bounds, ok, err := r.EnterSection("strings")
	if err != nil || !ok {
		return nil, err
	}
	var out []string
	for r.Remaining(bounds) {
		// Each entry is prefixed with its own token, which must equal
		// String | (position in the table) — the table is written in
		// token order and the reader verifies it stays that way.
		tok, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		want := token.New(token.KindString, uint32(len(out)+1))
		if tok != want {
			return nil, newLoadError(r.file, ReasonUnresolvedToken, fmt.Sprintf("string table entry %d has token %#x, want %#x", len(out), uint32(tok), uint32(want)))
		}
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, r.EndSection(bounds)
}

func readModuleRefTable(r *Reader) ([]ModuleRef, error) {
	bounds, ok, err := r.EnterSection("moduleRefs")
	if err != nil || !ok {
		return nil, err
	}
	var out []ModuleRef
	for r.Remaining(bounds) {
		nameTok, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		constraint, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		var v [4]uint32
		for i := range v {
			u, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			v[i] = u
		}
		out = append(out, ModuleRef{
			NameToken:  nameTok,
			Constraint: objmodel.VersionConstraint(constraint),
			Version:    objmodel.Version{Major: v[0], Minor: v[1], Patch: v[2], Revision: v[3]},
		})
	}
	return out, r.EndSection(bounds)
}

func readTypeRefTable(r *Reader) ([]TypeRef, error) {
	bounds, ok, err := r.EnterSection("typeRefs")
	if err != nil || !ok {
		return nil, err
	}
	var out []TypeRef
	for r.Remaining(bounds) {
		modRefIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, TypeRef{ModuleRefIndex: modRefIdx, Name: name})
	}
	return out, r.EndSection(bounds)
}

func readFunctionRefTable(r *Reader) ([]FunctionRef, error) {
	bounds, ok, err := r.EnterSection("functionRefs")
	if err != nil || !ok {
		return nil, err
	}
	var out []FunctionRef
	for r.Remaining(bounds) {
		modRefIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, FunctionRef{ModuleRefIndex: modRefIdx, Name: name})
	}
	return out, r.EndSection(bounds)
}

func readFieldRefTable(r *Reader) ([]FieldRef, error) {
	bounds, ok, err := r.EnterSection("fieldRefs")
	if err != nil || !ok {
		return nil, err
	}
	var out []FieldRef
	for r.Remaining(bounds) {
		declType, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, FieldRef{DeclType: declType, Name: name})
	}
	return out, r.EndSection(bounds)
}

func readMethodRefTable(r *Reader) ([]MethodRef, error) {
	bounds, ok, err := r.EnterSection("methodRefs")
	if err != nil || !ok {
		return nil, err
	}
	var out []MethodRef
	for r.Remaining(bounds) {
		declType, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, MethodRef{DeclType: declType, Name: name})
	}
	return out, r.EndSection(bounds)
}

func readAnnotations(r *Reader) ([]Annotation, error) {
	bounds, ok, err := r.EnterSection("annotations")
	if err != nil || !ok {
		return nil, err
	}
	var out []Annotation
	for r.Remaining(bounds) {
		typeTok, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		args, err := readAnnotationArgs(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Annotation{TypeToken: typeTok, Args: args})
	}
	return out, r.EndSection(bounds)
}

func readAnnotationArgs(r *Reader) ([]AnnotationArgument, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]AnnotationArgument, 0, count)
	for i := uint32(0); i < count; i++ {
		hasName, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		var name string
		if hasName != 0 {
			name, err = r.ReadString()
			if err != nil {
				return nil, err
			}
		}
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		arg := AnnotationArgument{Name: name, Kind: AnnotationArgumentKind(kind)}
		switch arg.Kind {
		case AnnotationArgRaw:
			arg.Raw, err = r.ReadU64()
		case AnnotationArgString:
			arg.Str, err = r.ReadToken()
		case AnnotationArgType:
			arg.Type, err = r.ReadToken()
		case AnnotationArgList:
			arg.List, err = readAnnotationArgs(r)
		default:
			err = newLoadError(r.file, ReasonIOError, fmt.Sprintf("unknown annotation argument kind %d", kind))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readTryBlockTable(r *Reader) ([]TryBlockDef, error) {
	bounds, ok, err := r.EnterSection("tryBlocks")
	if err != nil || !ok {
		return nil, err
	}
	var out []TryBlockDef
	for r.Remaining(bounds) {
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		tryStart, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tryEnd, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tb := TryBlockDef{Kind: objmodel.TryKind(kind), TryStart: tryStart, TryEnd: tryEnd}
		switch tb.Kind {
		case objmodel.TryCatch:
			catches, err := readCatchClauses(r)
			if err != nil {
				return nil, err
			}
			tb.Catches = catches
		case objmodel.TryFinally:
			tb.FinallyStart, err = r.ReadU32()
			if err != nil {
				return nil, err
			}
			tb.FinallyEnd, err = r.ReadU32()
			if err != nil {
				return nil, err
			}
		case objmodel.TryFault:
			tb.FaultStart, err = r.ReadU32()
			if err != nil {
				return nil, err
			}
			tb.FaultEnd, err = r.ReadU32()
			if err != nil {
				return nil, err
			}
		}
		out = append(out, tb)
	}
	return out, r.EndSection(bounds)
}

func readCatchClauses(r *Reader) ([]CatchClauseDef, error) {
	bounds, ok, err := r.EnterSection("catches")
	if err != nil || !ok {
		return nil, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]CatchClauseDef, 0, count)
	for i := uint32(0); i < count; i++ {
		caughtType, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		start, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		end, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		out = append(out, CatchClauseDef{CaughtType: caughtType, CatchStart: start, CatchEnd: end})
	}
	return out, r.EndSection(bounds)
}

func readParam(r *Reader) (ParamDef, error) {
	name, err := r.ReadString()
	if err != nil {
		return ParamDef{}, err
	}
	flags, err := r.ReadU8()
	if err != nil {
		return ParamDef{}, err
	}
	return ParamDef{Name: name, Flags: ParamFlags(flags)}, nil
}

func readOverload(r *Reader) (OverloadDef, error) {
	bounds, ok, err := r.EnterSection("overload")
	if err != nil || !ok {
		return OverloadDef{}, newLoadError(r.file, ReasonIOError, "overload section must not be empty")
	}
	var od OverloadDef

	flags, err := r.ReadU32()
	if err != nil {
		return od, err
	}
	od.Flags = objmodel.OverloadFlags(flags)

	paramCount, err := r.ReadU32()
	if err != nil {
		return od, err
	}
	od.ParamCount = int(paramCount)

	od.Params = make([]ParamDef, paramCount)
	for i := range od.Params {
		p, err := readParam(r)
		if err != nil {
			return od, err
		}
		od.Params[i] = p
	}

	if od.Flags&objmodel.OverloadShortHeader != 0 {
		od.OptionalParamCount = 0
		od.Locals = 0
		od.MaxStack = 8
	} else {
		opt, err := r.ReadU32()
		if err != nil {
			return od, err
		}
		od.OptionalParamCount = int(opt)

		locals, err := r.ReadU32()
		if err != nil {
			return od, err
		}
		od.Locals = int(locals)

		maxStack, err := r.ReadU32()
		if err != nil {
			return od, err
		}
		od.MaxStack = int(maxStack)

		tryBlocks, err := readTryBlockTable(r)
		if err != nil {
			return od, err
		}
		od.TryBlocks = tryBlocks
	}

	if od.Flags&objmodel.OverloadAbstract == 0 {
		if od.Flags&objmodel.OverloadNative != 0 {
			name, err := r.ReadCString()
			if err != nil {
				return od, err
			}
			od.NativeEntryName = name
		} else {
			offset, err := r.ReadU32()
			if err != nil {
				return od, err
			}
			length, err := r.ReadU32()
			if err != nil {
				return od, err
			}
			od.BodyOffset = offset
			od.BodyLength = length
		}
	}

	annotations, err := readAnnotations(r)
	if err != nil {
		return od, err
	}
	od.Annotations = annotations

	return od, r.EndSection(bounds)
}

func readMethodDef(r *Reader) (MethodDef, error) {
	bounds, ok, err := r.EnterSection("method")
	if err != nil || !ok {
		return MethodDef{}, newLoadError(r.file, ReasonIOError, "method section must not be empty")
	}

	var md MethodDef

	flags, err := r.ReadU32()
	if err != nil {
		return md, err
	}
	md.Flags = objmodel.MethodAccessFlags(flags)

	name, err := r.ReadString()
	if err != nil {
		return md, err
	}
	md.Name = name

	overloadCount, err := r.ReadU32()
	if err != nil {
		return md, err
	}
	md.Overloads = make([]OverloadDef, overloadCount)
	for i := range md.Overloads {
		ov, err := readOverload(r)
		if err != nil {
			return md, err
		}
		md.Overloads[i] = ov
	}

	return md, r.EndSection(bounds)
}

func readFieldDef(r *Reader) (FieldDef, error) {
	bounds, ok, err := r.EnterSection("field")
	if err != nil || !ok {
		return FieldDef{}, newLoadError(r.file, ReasonIOError, "field section must not be empty")
	}

	var fd FieldDef

	flags, err := r.ReadU32()
	if err != nil {
		return fd, err
	}
	fd.Flags = objmodel.FieldFlags(flags)

	name, err := r.ReadString()
	if err != nil {
		return fd, err
	}
	fd.Name = name

	if fd.Flags&objmodel.FieldInstance == 0 {
		if fd.Flags&objmodel.FieldHasValue != 0 {
			typeTok, err := r.ReadToken()
			if err != nil {
				return fd, err
			}
			fd.ConstType = typeTok
			val, err := readConstantValue(r)
			if err != nil {
				return fd, err
			}
			fd.ConstValue = val
		}
	}

	annotations, err := readAnnotations(r)
	if err != nil {
		return fd, err
	}
	fd.Annotations = annotations

	return fd, r.EndSection(bounds)
}

func readPropertyDef(r *Reader) (PropertyDef, error) {
	name, err := r.ReadString()
	if err != nil {
		return PropertyDef{}, err
	}
	getter, err := r.ReadToken()
	if err != nil {
		return PropertyDef{}, err
	}
	setter, err := r.ReadToken()
	if err != nil {
		return PropertyDef{}, err
	}
	return PropertyDef{Name: name, Getter: getter, Setter: setter}, nil
}

func readOperatorDef(r *Reader) (OperatorDef, error) {
	op, err := r.ReadU8()
	if err != nil {
		return OperatorDef{}, err
	}
	method, err := r.ReadToken()
	if err != nil {
		return OperatorDef{}, err
	}
	return OperatorDef{Operator: objmodel.Operator(op), Method: method}, nil
}

// readConstantValue decodes a primitive or string-typed constant
// value. The on-disk tag byte mirrors the standard-type primitive set.
func readConstantValue(r *Reader) (objmodel.Value, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0: // null
		return nil, nil
	case 1: // boolean
		b, err := r.ReadU8()
		return b != 0, err
	case 2: // Int (signed 64-bit)
		u, err := r.ReadU64()
		return int64(u), err
	case 3: // UInt
		u, err := r.ReadU64()
		return u, err
	case 4: // Real (float64)
		u, err := r.ReadU64()
		return float64FromBits(u), err
	case 5: // Char (UTF-32 code point)
		u, err := r.ReadU32()
		return rune(u), err
	case 6: // String token
		tok, err := r.ReadToken()
		return tok, err
	default:
		return nil, newLoadError(r.file, ReasonIOError, fmt.Sprintf("unknown constant value tag %d", tag))
	}
}

func readTypeDefTable(r *Reader, count int) ([]TypeDef, error) {
	out := make([]TypeDef, count)
	for i := range out {
		td, err := readTypeDef(r)
		if err != nil {
			return nil, err
		}
		out[i] = td
	}
	return out, nil
}

func readTypeDef(r *Reader) (TypeDef, error) {
	bounds, ok, err := r.EnterSection("typeDef")
	if err != nil || !ok {
		return TypeDef{}, newLoadError(r.file, ReasonIOError, "typeDef section must not be empty")
	}

	var td TypeDef

	flags, err := r.ReadU32()
	if err != nil {
		return td, err
	}
	td.Flags = objmodel.TypeFlags(flags)

	name, err := r.ReadString()
	if err != nil {
		return td, err
	}
	td.Name = name

	td.BaseType, err = r.ReadToken()
	if err != nil {
		return td, err
	}
	td.SharedType, err = r.ReadToken()
	if err != nil {
		return td, err
	}

	if fieldBounds, ok, err := r.EnterSection("typeFields"); err != nil {
		return td, err
	} else if ok {
		for r.Remaining(fieldBounds) {
			fd, err := readFieldDef(r)
			if err != nil {
				return td, err
			}
			td.Fields = append(td.Fields, fd)
		}
		if err := r.EndSection(fieldBounds); err != nil {
			return td, err
		}
	}

	if methodBounds, ok, err := r.EnterSection("typeMethods"); err != nil {
		return td, err
	} else if ok {
		for r.Remaining(methodBounds) {
			md, err := readMethodDef(r)
			if err != nil {
				return td, err
			}
			td.Methods = append(td.Methods, md)
		}
		if err := r.EndSection(methodBounds); err != nil {
			return td, err
		}
	}

	if propBounds, ok, err := r.EnterSection("typeProperties"); err != nil {
		return td, err
	} else if ok {
		for r.Remaining(propBounds) {
			pd, err := readPropertyDef(r)
			if err != nil {
				return td, err
			}
			td.Properties = append(td.Properties, pd)
		}
		if err := r.EndSection(propBounds); err != nil {
			return td, err
		}
	}

	if opBounds, ok, err := r.EnterSection("typeOperators"); err != nil {
		return td, err
	} else if ok {
		for r.Remaining(opBounds) {
			od, err := readOperatorDef(r)
			if err != nil {
				return td, err
			}
			td.Operators = append(td.Operators, od)
		}
		if err := r.EndSection(opBounds); err != nil {
			return td, err
		}
	}

	hasNativeInit, err := r.ReadU8()
	if err != nil {
		return td, err
	}
	if hasNativeInit != 0 {
		name, err := r.ReadCString()
		if err != nil {
			return td, err
		}
		td.NativeInitializerName = name
	}

	annotations, err := readAnnotations(r)
	if err != nil {
		return td, err
	}
	td.Annotations = annotations

	return td, r.EndSection(bounds)
}

func readFunctionDefTable(r *Reader, count int) ([]FunctionDef, error) {
	out := make([]FunctionDef, count)
	seen := make(map[string]bool, count)
	for i := range out {
		md, err := readMethodDef(r)
		if err != nil {
			return nil, err
		}
		if seen[md.Name] {
			return nil, newLoadError(r.file, ReasonDuplicateGlobalMember, md.Name)
		}
		seen[md.Name] = true
		out[i] = md
	}
	return out, nil
}

func readConstantDefTable(r *Reader, count int) ([]ConstantDef, error) {
	out := make([]ConstantDef, count)
	for i := range out {
		flags, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		typeTok, err := r.ReadToken()
		if err != nil {
			return nil, err
		}
		value, err := readConstantValue(r)
		if err != nil {
			return nil, err
		}
		out[i] = ConstantDef{Name: name, Flags: objmodel.ConstantFlags(flags), Type: typeTok, Value: value}
	}
	return out, nil
}
