/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import (
	"sync"

	"github.com/osprey-lang/ovum/token"
)

// ModuleRef is an entry in a module's moduleRef table: the name and
// version of another module this one depends on, resolved to the
// concrete Module once it's been (recursively) opened.
type ModuleRef struct {
	Name       string
	Constraint VersionConstraint
	Version    Version
	Resolved   *Module
}

// TypeRef, FieldRef, MethodRef, FunctionRef are entries in the
// corresponding *Ref tables: a name plus the module (for Function/Type)
// or declaring type (for Field/Method) they're looked up against,
// resolved lazily by the linker.
type TypeRef struct {
	DeclModule *ModuleRef
	Name       string
	Resolved   *Type
}

type FieldRef struct {
	DeclType token.Token // resolves against a TypeDef or TypeRef in this module
	Name     string
	Resolved *Field
}

type MethodRef struct {
	DeclType token.Token
	Name     string
	Resolved *Method
}

type FunctionRef struct {
	DeclModule *ModuleRef
	Name       string
	Resolved   *Method
}

// ConstantFlags mirror FieldFlags' public/internal bits.
type ConstantFlags uint32

const (
	ConstantPublic ConstantFlags = 1 << iota
	ConstantInternal
)

func (f ConstantFlags) Access() Access {
	if f&ConstantPublic != 0 {
		return AccessPublic
	}
	return AccessInternal
}

// Constant is a module-level primitive or string-typed constant.
type Constant struct {
	Name  string
	Flags ConstantFlags
	Type  token.Token
	Value Value
}

// Module owns the member tables materialized from one loaded .ovm file,
// plus the reference tables pointing into other modules.
type Module struct {
	Name     string
	Version  Version
	FilePath string

	NativeLibraryPath string
	nativeLib         NativeLibrary // nil until loaded

	Strings []string // Strings[i-1] is the string for token index i

	ModuleRefs   []*ModuleRef
	TypeRefs     []*TypeRef
	FieldRefs    []*FieldRef
	MethodRefs   []*MethodRef
	FunctionRefs []*FunctionRef

	Types     []*Type
	Fields    []*Field  // module-wide field table: every field of every type, in def order
	Methods   []*Method // module-wide method table: every method of every type, in def order
	Functions []*Method // global functions (DeclType == nil)

	Constants []*Constant

	MainMethod token.Token

	mu          sync.RWMutex
	fullyOpened bool
}

// NativeLibrary is the OS dynamic-library handle a module's native
// entry points are resolved against. The core only needs to open/close
// it and resolve symbol names.
type NativeLibrary interface {
	ResolveSymbol(name string) (uintptr, bool)
	Close() error
}

// NewModule allocates a Module with its per-table slices pre-sized from
// header counts.
func NewModule(name string, version Version, filePath string, typeCount, fieldCount, methodCount, functionCount, constantCount int) *Module {
	return &Module{
		Name:      name,
		Version:   version,
		FilePath:  filePath,
		Types:     make([]*Type, 0, typeCount),
		Fields:    make([]*Field, 0, fieldCount),
		Methods:   make([]*Method, 0, methodCount),
		Functions: make([]*Method, 0, functionCount),
		Constants: make([]*Constant, 0, constantCount),
	}
}

// FullyOpened reports whether this module has finished loading; other
// modules may only depend on a fully-opened module.
func (m *Module) FullyOpened() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fullyOpened
}

// MarkFullyOpened flips the fully_opened flag. Called exactly once, by
// the loader, after every section of the module has been read and
// linked successfully.
func (m *Module) MarkFullyOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fullyOpened = true
}

func (m *Module) SetNativeLibrary(lib NativeLibrary) { m.nativeLib = lib }
func (m *Module) NativeLibrary() NativeLibrary        { return m.nativeLib }

// GetString resolves a String token against this module's string table,
// verifying the kind nibble first.
func (m *Module) GetString(t token.Token) (string, bool) {
	if !t.HasKind(token.KindString) {
		return "", false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.Strings) {
		return "", false
	}
	return m.Strings[idx-1], true
}

// GetType resolves a TypeDef token against this module's type table.
func (m *Module) GetType(t token.Token) (*Type, bool) {
	if !t.HasKind(token.KindTypeDef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.Types) {
		return nil, false
	}
	return m.Types[idx-1], true
}

// GetTypeRef resolves a TypeRef token against this module's typeRef
// table.
func (m *Module) GetTypeRef(t token.Token) (*TypeRef, bool) {
	if !t.HasKind(token.KindTypeRef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.TypeRefs) {
		return nil, false
	}
	return m.TypeRefs[idx-1], true
}

// GetField resolves a FieldDef token against this module's field table.
func (m *Module) GetField(t token.Token) (*Field, bool) {
	if !t.HasKind(token.KindFieldDef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.Fields) {
		return nil, false
	}
	return m.Fields[idx-1], true
}

// GetFieldRef resolves a FieldRef token against this module's fieldRef
// table.
func (m *Module) GetFieldRef(t token.Token) (*FieldRef, bool) {
	if !t.HasKind(token.KindFieldRef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.FieldRefs) {
		return nil, false
	}
	return m.FieldRefs[idx-1], true
}

// GetMethod resolves a MethodDef token against this module's method
// table.
func (m *Module) GetMethod(t token.Token) (*Method, bool) {
	if !t.HasKind(token.KindMethodDef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.Methods) {
		return nil, false
	}
	return m.Methods[idx-1], true
}

// GetMethodRef resolves a MethodRef token against this module's
// methodRef table.
func (m *Module) GetMethodRef(t token.Token) (*MethodRef, bool) {
	if !t.HasKind(token.KindMethodRef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.MethodRefs) {
		return nil, false
	}
	return m.MethodRefs[idx-1], true
}

// GetFunction resolves a FunctionDef token against this module's
// function table.
func (m *Module) GetFunction(t token.Token) (*Method, bool) {
	if !t.HasKind(token.KindFunctionDef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.Functions) {
		return nil, false
	}
	return m.Functions[idx-1], true
}

// GetFunctionRef resolves a FunctionRef token against this module's
// functionRef table.
func (m *Module) GetFunctionRef(t token.Token) (*FunctionRef, bool) {
	if !t.HasKind(token.KindFunctionRef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.FunctionRefs) {
		return nil, false
	}
	return m.FunctionRefs[idx-1], true
}

// GetModuleRef resolves a ModuleRef token against this module's
// moduleRef table.
func (m *Module) GetModuleRef(t token.Token) (*ModuleRef, bool) {
	if !t.HasKind(token.KindModuleRef) {
		return nil, false
	}
	idx := t.Index()
	if idx == 0 || int(idx) > len(m.ModuleRefs) {
		return nil, false
	}
	return m.ModuleRefs[idx-1], true
}

// FindGlobalMember looks up a module-level function or constant by
// name, honoring includeInternal the same way Type.FindAccessibleMember
// does.
func (m *Module) FindGlobalMember(name string, fromModule *Module, includeInternal bool) (member interface{}, ok bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			if !Accessible(fn.AccessLevel(), m, fromModule, nil, nil, includeInternal) {
				return nil, false
			}
			return fn, true
		}
	}
	for _, c := range m.Constants {
		if c.Name == name {
			if !Accessible(c.Flags.Access(), m, fromModule, nil, nil, includeInternal) {
				return nil, false
			}
			return c, true
		}
	}
	return nil, false
}

// FindType looks up a type by name within this module only (no
// recursion into dependencies — cross-module lookups go through
// TypeRef resolution instead).
func (m *Module) FindType(name string, fromModule *Module, includeInternal bool) (*Type, bool) {
	for _, t := range m.Types {
		if t.FullName == name {
			if !Accessible(t.Access(), m, fromModule, nil, nil, includeInternal) {
				return nil, false
			}
			return t, true
		}
	}
	return nil, false
}
