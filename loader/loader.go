/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package loader is the linker: it drives modfile's
// section-by-section reader, resolves cross-module references against
// previously-opened modules, and materializes the resulting objmodel
// graph — types, methods, fields, properties, operators — registering
// each module in a modpool.Pool as it goes for circular-dependency
// detection.
package loader

import (
	"fmt"

	"github.com/osprey-lang/ovum/modfile"
	"github.com/osprey-lang/ovum/modpool"
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/ovmtrace"
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// NativeLibraryLoader is the OS dynamic-library loader the linker
// calls to resolve a module's declared native library and, for each
// type/overload that names one, its native entry points.
type NativeLibraryLoader interface {
	Open(path string) (objmodel.NativeLibrary, error)
}

// Options bundles the VM-wide collaborators a Loader needs. These are
// shared across every module the Loader opens: one string pool, one
// standard-type struct, one ref-signature pool per VM.
type Options struct {
	Pool       *modpool.Pool
	Finder     *modpool.Finder
	Strings    *objmodel.StringPool
	RefSigs    *refsig.Pool
	Standard   *objmodel.StandardTypes
	NativeLibs NativeLibraryLoader // may be nil: modules with no native library never need it
}

// Loader ties modfile + objmodel + modpool together.
type Loader struct {
	opts Options
}

// New builds a Loader from its collaborators.
func New(opts Options) *Loader {
	return &Loader{opts: opts}
}

// Open loads module name, honoring constraint/required the way a
// ModuleRef does. hasVersion is
// false for a top-level "load this module, any version" request.
func (l *Loader) Open(name string, constraint objmodel.VersionConstraint, required objmodel.Version, hasVersion bool) (*objmodel.Module, error) {
	return l.opts.Pool.Open(name, constraint, required, func() (*objmodel.Module, error) {
		path, err := l.opts.Finder.Find(name, required, hasVersion)
		if err != nil {
			return nil, err
		}
		return l.openFile(path)
	})
}

// OpenFile loads the module at path directly, bypassing the finder —
// the entry point cmd/ovmc uses, since its subcommands take a file path
// rather than a (name, version) dependency request.
func (l *Loader) OpenFile(path string) (*objmodel.Module, error) {
	return l.openFile(path)
}

// openFile performs one module's actual load: mmap, header, sections,
// linking, native-library invocation, and final fully_opened flip.
func (l *Loader) openFile(path string) (mod *objmodel.Module, err error) {
	mapped, err := modfile.OpenMappedFile(path)
	if err != nil {
		return nil, err
	}
	defer mapped.Close()

	intern := func(s string) string { return *l.opts.Strings.Intern(s) }
	r := modfile.NewReader(path, mapped.Bytes(), intern)

	if _, err := modfile.ReadMagicAndVersion(r); err != nil {
		return nil, err
	}
	header, err := modfile.ReadHeader(r)
	if err != nil {
		return nil, err
	}

	// Registered under path rather than the (unknown) module name: the
	// name token only resolves once the string table is read, which
	// happens inside ReadFile below. path is unique per in-flight load,
	// so it can never collide with another module's real (name,
	// version) pair the way a shared placeholder name would.
	mod = objmodel.NewModule(path, header.Version, path,
		int(header.TypeCount), int(header.FieldCount), int(header.MethodCount),
		int(header.FunctionCount), int(header.ConstantCount))

	if err := l.opts.Pool.Register(mod); err != nil {
		return nil, err
	}
	// Any early return below must remove the placeholder so a failed
	// load never leaves partial state visible in the pool.
	committed := false
	defer func() {
		if !committed {
			l.opts.Pool.Remove(mod)
		}
	}()

	deps := make([]*objmodel.Module, 0)
	file, err := modfile.ReadFile(r, header, func(strings []string) error {
		// Resolve and re-key under the real name now, before
		// moduleRef resolution below can run into a dependency
		// cycle: the cycle check only works if this module is
		// already discoverable under its own name by the time a
		// dependent looks it up.
		mod.Strings = strings
		name, ok := mod.GetString(header.NameToken)
		if !ok {
			return modfile.NewLoadError(path, modfile.ReasonUnresolvedToken, "module name token")
		}
		return l.opts.Pool.Rename(mod, name)
	}, func(name string, c objmodel.VersionConstraint, v objmodel.Version) (*objmodel.Module, error) {
		dep, err := l.Open(name, c, v, true)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
		return dep, nil
	})
	if err != nil {
		return mod, err
	}

	// The native library, if any, must be open before types are
	// materialized: per-type native initializers resolve their symbol
	// against it as each type is populated.
	if header.NativeLibrary != "" {
		if l.opts.NativeLibs == nil {
			return mod, modfile.NewLoadError(path, modfile.ReasonIOError, "module declares a native library but no NativeLibraryLoader is configured")
		}
		lib, err := l.opts.NativeLibs.Open(header.NativeLibrary)
		if err != nil {
			return mod, err
		}
		mod.SetNativeLibrary(lib)
		mod.NativeLibraryPath = header.NativeLibrary
	}

	ls := &linkSession{loader: l, mod: mod, file: file, deps: deps, reader: r, header: header}
	if err := ls.link(); err != nil {
		return mod, err
	}

	// OvumModuleMain is called last, once every type/method/field in
	// the module is materialized.
	if lib := mod.NativeLibrary(); lib != nil {
		if sym, ok := lib.ResolveSymbol("OvumModuleMain"); ok {
			if err := ls.invokeModuleMain(sym); err != nil {
				return mod, err
			}
		}
	}

	if err := ls.resolveDeferredConstants(); err != nil {
		return mod, err
	}

	mod.MainMethod = file.MainMethod
	if !file.MainMethod.IsNone() {
		if err := ls.checkMainMethod(); err != nil {
			return mod, err
		}
	}

	mod.MarkFullyOpened()
	committed = true
	ovmtrace.Info(fmt.Sprintf("loader: %s %s fully opened (%d types, %d methods)", mod.Name, mod.Version, len(mod.Types), len(mod.Methods)))
	return mod, nil
}

// invokeModuleMain is a declarative placeholder: actually jumping into
// native code is the ABI boundary's job, out of scope for
// the core. A real OS/ABI layer would replace this with a cgo call
// through the resolved symbol.
func (ls *linkSession) invokeModuleMain(_ uintptr) error {
	return nil
}

func (ls *linkSession) checkMainMethod() error {
	switch ls.file.MainMethod.Kind() {
	case token.KindMethodDef, token.KindFunctionDef:
	default:
		return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonMainMethodNotDef, "main method token is not a MethodDef/FunctionDef")
	}
	if m, ok := ls.mod.GetFunction(ls.file.MainMethod); ok {
		if m.IsInstance() {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonMainMethodInstance, m.Name)
		}
		return nil
	}
	if m, ok := ls.mod.GetMethod(ls.file.MainMethod); ok {
		if m.IsInstance() {
			return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonMainMethodInstance, m.Name)
		}
		return nil
	}
	return modfile.NewLoadError(ls.mod.FilePath, modfile.ReasonUnresolvedToken, "main method")
}
