/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modpool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/osprey-lang/ovum/objmodel"
)

func TestRegisterDuplicateFails(t *testing.T) {
	p := NewPool()
	m1 := objmodel.NewModule("M", objmodel.Version{Major: 1}, "m1.ovm", 0, 0, 0, 0, 0)
	if err := p.Register(m1); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	m2 := objmodel.NewModule("M", objmodel.Version{Major: 1}, "m2.ovm", 0, 0, 0, 0, 0)
	if err := p.Register(m2); err == nil {
		t.Fatal("expected duplicate (name, version) registration to fail")
	}
}

func TestGetAndGetVersion(t *testing.T) {
	p := NewPool()
	v1 := objmodel.Version{Major: 1}
	v2 := objmodel.Version{Major: 2}
	m1 := objmodel.NewModule("M", v1, "m1.ovm", 0, 0, 0, 0, 0)
	m2 := objmodel.NewModule("M", v2, "m2.ovm", 0, 0, 0, 0, 0)
	_ = p.Register(m1)
	_ = p.Register(m2)

	if got, ok := p.Get("M"); !ok || got == nil {
		t.Fatal("Get(\"M\") should find a module")
	}
	if got, ok := p.GetVersion("M", v2); !ok || got != m2 {
		t.Errorf("GetVersion(M, v2) = %v, %v; want m2", got, ok)
	}
	if _, ok := p.GetVersion("M", objmodel.Version{Major: 3}); ok {
		t.Error("GetVersion should not find a version that was never registered")
	}
}

func TestResolveConstraints(t *testing.T) {
	p := NewPool()
	m := objmodel.NewModule("M", objmodel.Version{Major: 2, Minor: 3, Patch: 1}, "m.ovm", 0, 0, 0, 0, 0)
	_ = p.Register(m)

	cases := []struct {
		name       string
		constraint objmodel.VersionConstraint
		required   objmodel.Version
		wantFound  bool
	}{
		{"exact match", objmodel.ConstraintExact, objmodel.Version{Major: 2, Minor: 3, Patch: 1}, true},
		{"exact mismatch", objmodel.ConstraintExact, objmodel.Version{Major: 2, Minor: 3, Patch: 0}, false},
		{"fixed minor, newer patch ok", objmodel.ConstraintFixedMinor, objmodel.Version{Major: 2, Minor: 3}, true},
		{"fixed minor, wrong minor", objmodel.ConstraintFixedMinor, objmodel.Version{Major: 2, Minor: 4}, false},
		{"fixed major, newer minor ok", objmodel.ConstraintFixedMajor, objmodel.Version{Major: 2}, true},
		{"fixed major, wrong major", objmodel.ConstraintFixedMajor, objmodel.Version{Major: 3}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, found := p.Resolve("M", c.constraint, c.required)
			if found != c.wantFound {
				t.Errorf("Resolve(%v, %v) found=%v, want %v", c.constraint, c.required, found, c.wantFound)
			}
		})
	}
}

func TestRenameMovesToRealNameBucket(t *testing.T) {
	p := NewPool()
	m := objmodel.NewModule("placeholder-path", objmodel.Version{Major: 1}, "m.ovm", 0, 0, 0, 0, 0)
	if err := p.Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := p.Rename(m, "M"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if m.Name != "M" {
		t.Errorf("m.Name = %q, want %q", m.Name, "M")
	}
	if _, ok := p.Get("placeholder-path"); ok {
		t.Error("module should no longer be found under its old key")
	}
	if got, ok := p.Get("M"); !ok || got != m {
		t.Errorf("Get(\"M\") = %v, %v; want m", got, ok)
	}
}

func TestRenameDetectsDuplicateRealIdentity(t *testing.T) {
	p := NewPool()
	existing := objmodel.NewModule("M", objmodel.Version{Major: 1}, "existing.ovm", 0, 0, 0, 0, 0)
	if err := p.Register(existing); err != nil {
		t.Fatalf("Register(existing): %v", err)
	}

	loading := objmodel.NewModule("placeholder-path", objmodel.Version{Major: 1}, "loading.ovm", 0, 0, 0, 0, 0)
	if err := p.Register(loading); err != nil {
		t.Fatalf("Register(loading): %v", err)
	}

	if err := p.Rename(loading, "M"); err == nil {
		t.Fatal("expected Rename to fail: M version 1.0.0.0 is already registered")
	}
	if loading.Name != "placeholder-path" {
		t.Errorf("a failed Rename must not mutate m.Name, got %q", loading.Name)
	}
}

func TestOpenDeduplicatesConcurrentLoads(t *testing.T) {
	p := NewPool()
	calls := 0
	loadFunc := func() (*objmodel.Module, error) {
		calls++
		m := objmodel.NewModule("M", objmodel.Version{Major: 1}, "m.ovm", 0, 0, 0, 0, 0)
		m.MarkFullyOpened()
		if err := p.Register(m); err != nil {
			return nil, err
		}
		return m, nil
	}

	done := make(chan *objmodel.Module, 8)
	for i := 0; i < 8; i++ {
		go func() {
			m, err := p.Open("M", objmodel.ConstraintExact, objmodel.Version{Major: 1}, loadFunc)
			if err != nil {
				t.Error(err)
			}
			done <- m
		}()
	}
	var first *objmodel.Module
	for i := 0; i < 8; i++ {
		m := <-done
		if first == nil {
			first = m
		} else if m != first {
			t.Error("concurrent Open calls returned different Module handles")
		}
	}
	if calls != 1 {
		t.Errorf("loadFunc called %d times, want 1", calls)
	}
}

func TestFinderSearchOrderAndPatterns(t *testing.T) {
	root := t.TempDir()
	startup := filepath.Join(root, "startup")
	lib := filepath.Join(startup, "lib")
	modpath := filepath.Join(root, "modpath")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(modpath, 0o755); err != nil {
		t.Fatal(err)
	}

	// Only the "<startup>/M.ovm" candidate exists, so Find must walk
	// past the (nonexistent) lib patterns and "<startup>/M/M.ovm" to
	// reach it; no versioned pattern is tried without a version.
	wantPath := filepath.Join(startup, "M.ovm")
	if err := os.WriteFile(wantPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFinder(startup, modpath)
	got, err := f.Find("M", objmodel.Version{}, false)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != wantPath {
		t.Errorf("Find = %q, want %q", got, wantPath)
	}
}

func TestFinderVersionedPatternsSkippedWithoutVersion(t *testing.T) {
	root := t.TempDir()
	// A versioned candidate exists, but hasVersion is false, so Find
	// must not match it and should fail.
	if err := os.MkdirAll(filepath.Join(root, "M-1.0.0.0"), 0o755); err != nil {
		t.Fatal(err)
	}
	versionedPath := filepath.Join(root, "M-1.0.0.0", "M.ovm")
	if err := os.WriteFile(versionedPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFinder(root, "")
	if _, err := f.Find("M", objmodel.Version{Major: 1}, false); err == nil {
		t.Fatal("expected Find to fail when no unversioned candidate exists")
	}
}
