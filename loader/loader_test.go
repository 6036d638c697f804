/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package loader

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/osprey-lang/ovum/modfile"
	"github.com/osprey-lang/ovum/modpool"
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/token"
)

// fileBuilder assembles a synthetic .ovm byte buffer, duplicating
// modfile's own test helper (unexported, so not importable across the
// package boundary) closely enough to build a real two-module
// dependency graph on disk for loader.Open/OpenFile to exercise.
type fileBuilder struct {
	buf bytes.Buffer
}

func (b *fileBuilder) u8(v uint8)          { b.buf.WriteByte(v) }
func (b *fileBuilder) u16(v uint16)        { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) u32(v uint32)        { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) u64(v uint64)        { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) token(t token.Token) { b.u32(uint32(t)) }

// str writes a length-prefixed UTF-16 string. Every name used in this
// file's tests is ASCII, so one UTF-16 unit per rune is enough.
func (b *fileBuilder) str(s string) {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		units = append(units, uint16(r))
	}
	b.u32(uint32(len(units)))
	for _, u := range units {
		b.u16(u)
	}
}

func (b *fileBuilder) sized(fn func(*fileBuilder)) {
	var inner fileBuilder
	fn(&inner)
	b.u32(uint32(inner.buf.Len()))
	b.buf.Write(inner.buf.Bytes())
}

// depRef is one moduleRefs table entry to embed in a built file.
type depRef struct {
	nameStringIndex uint32 // 1-based index into the file's own string table
	constraint      objmodel.VersionConstraint
	version         objmodel.Version
}

// buildModule assembles a minimal but complete .ovm file: a module named
// name (whose own name is strings[0]), depending on deps (each of whose
// target name must also be present in strings, referenced by
// nameStringIndex), with zero types/functions/constants/fields/methods
// and no main method — exactly the "empty module" shape
// modfile_test.go's TestRoundTrip_EmptyModule round-trips, extended with
// a non-empty moduleRefs table.
func buildModule(strings []string, deps []depRef) []byte {
	var b fileBuilder
	b.buf.Write(modfile.Magic[:])
	b.u32(modfile.FormatVersion)
	b.u64(0) // reserved padding

	b.token(token.New(token.KindString, 1)) // NameToken: strings[0]
	b.u32(1)                                // version major
	b.u32(0)
	b.u32(0)
	b.u32(0)
	b.sized(func(*fileBuilder) {}) // string-map: skipped by the core
	b.u8(0)                        // no native library
	b.u32(0)                       // type count
	b.u32(0)                       // function count
	b.u32(0)                       // constant count
	b.u32(0)                       // field count
	b.u32(0)                       // method count
	b.u32(0)                       // method block offset

	b.sized(func(inner *fileBuilder) {
		for i, s := range strings {
			inner.token(token.New(token.KindString, uint32(i+1)))
			inner.str(s)
		}
	})

	b.sized(func(inner *fileBuilder) {
		for _, d := range deps {
			inner.token(token.New(token.KindString, d.nameStringIndex))
			inner.u8(uint8(d.constraint))
			inner.u32(d.version.Major)
			inner.u32(d.version.Minor)
			inner.u32(d.version.Patch)
			inner.u32(d.version.Revision)
		}
	})

	b.sized(func(*fileBuilder) {}) // typeRefs
	b.sized(func(*fileBuilder) {}) // functionRefs
	b.sized(func(*fileBuilder) {}) // fieldRefs
	b.sized(func(*fileBuilder) {}) // methodRefs
	b.token(token.None)            // main method

	return b.buf.Bytes()
}

func writeModule(t *testing.T, dir, fileName string, strings []string, deps []depRef) string {
	t.Helper()
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, buildModule(strings, deps), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
	return path
}

func newTestLoader(dir string) *Loader {
	return New(Options{
		Pool:     modpool.NewPool(),
		Finder:   modpool.NewFinder(dir, ""),
		Strings:  objmodel.NewStringPool(),
		RefSigs:  refsig.NewPool(),
		Standard: objmodel.NewStandardTypes(),
	})
}

// Once a dependency has finished loading, both a versioned and an
// unversioned pool lookup by its real name must return the same Module
// pointer. Before the loader/modpool rename fix, every module was
// filed under a shared placeholder key and neither lookup succeeded.
func TestOpenResolvesDependencyAndRegistersByRealName(t *testing.T) {
	dir := t.TempDir()
	pathB := writeModule(t, dir, "B.ovm", []string{"B"}, nil)
	pathA := writeModule(t, dir, "A.ovm", []string{"A", "B"}, []depRef{
		{nameStringIndex: 2, constraint: objmodel.ConstraintExact, version: objmodel.Version{Major: 1}},
	})

	l := newTestLoader(dir)
	a, err := l.OpenFile(pathA)
	if err != nil {
		t.Fatalf("OpenFile(A): %v", err)
	}
	if a.Name != "A" {
		t.Errorf("a.Name = %q, want %q", a.Name, "A")
	}
	if !a.FullyOpened() {
		t.Error("A should be fully opened after a successful load")
	}
	if len(a.ModuleRefs) != 1 || a.ModuleRefs[0].Resolved == nil {
		t.Fatalf("A should have one resolved moduleRef, got %+v", a.ModuleRefs)
	}
	depB := a.ModuleRefs[0].Resolved
	if depB.Name != "B" {
		t.Errorf("resolved dependency name = %q, want %q", depB.Name, "B")
	}

	byName, ok := l.opts.Pool.Get("B")
	if !ok || byName != depB {
		t.Errorf("Pool.Get(\"B\") = %v, %v; want the same Module the loader resolved", byName, ok)
	}
	byVersion, ok := l.opts.Pool.GetVersion("B", objmodel.Version{Major: 1})
	if !ok || byVersion != depB {
		t.Errorf("Pool.GetVersion(\"B\", 1.0.0.0) = %v, %v; want the same Module", byVersion, ok)
	}

	if _, ok := l.opts.Pool.Get(pathA); ok {
		t.Error("A should no longer be registered under its file-path placeholder key")
	}
	if _, ok := l.opts.Pool.Get(pathB); ok {
		t.Error("B should no longer be registered under its file-path placeholder key")
	}
}

// A cycle in moduleRefs must surface as a typed
// ReasonCircularDependency error, not an infinite loop or a generic
// duplicate-registration failure.
func TestCircularDependencyFails(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "X.ovm", []string{"X", "Y"}, []depRef{
		{nameStringIndex: 2, constraint: objmodel.ConstraintExact, version: objmodel.Version{Major: 1}},
	})
	writeModule(t, dir, "Y.ovm", []string{"Y", "X"}, []depRef{
		{nameStringIndex: 2, constraint: objmodel.ConstraintExact, version: objmodel.Version{Major: 1}},
	})

	l := newTestLoader(dir)
	_, err := l.Open("X", objmodel.ConstraintExact, objmodel.Version{Major: 1}, true)
	if err == nil {
		t.Fatal("expected a circular dependency between X and Y to fail")
	}
	le, ok := modfile.AsLoadError(err)
	if !ok || le.Reason != modfile.ReasonCircularDependency {
		t.Fatalf("got %v, want a ModuleLoadError with ReasonCircularDependency", err)
	}

	if _, ok := l.opts.Pool.Get("X"); ok {
		t.Error("X should have been removed from the pool after its load failed")
	}
}

// The duplicate-(name, version) check must compare real module
// identities, not two modules that happen to share the placeholder key
// they were briefly registered under while loading.
func TestDuplicateVersionCollisionIsDetectedByRealName(t *testing.T) {
	dir := t.TempDir()
	pathB := writeModule(t, dir, "B.ovm", []string{"B"}, nil)
	pathB2 := writeModule(t, dir, "B2.ovm", []string{"B"}, nil)

	l := newTestLoader(dir)
	if _, err := l.OpenFile(pathB); err != nil {
		t.Fatalf("first OpenFile(B): %v", err)
	}
	if _, err := l.OpenFile(pathB2); err == nil {
		t.Fatal("expected loading a second module named B at the same version to fail")
	}
}
