/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package modpool implements the module pool and finder:
// the (name, version) -> Module registry used for de-duplication and
// circular-dependency detection, and the fixed-search-path file locator.
//
// The pool never imports modfile: the actual bytes-to-Module work is
// supplied by the loader package as a callback, keeping modpool a
// small, loader-agnostic registry.
package modpool

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/osprey-lang/ovum/objmodel"
)

// Pool maps (name, version) to *objmodel.Module.
type Pool struct {
	mu     sync.RWMutex
	byName map[string][]*objmodel.Module

	// group collapses concurrent Open calls for the same (name,
	// version) request onto a single in-flight load.
	group singleflight.Group
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{byName: make(map[string][]*objmodel.Module)}
}

// Get returns any module registered under name.
func (p *Pool) Get(name string) (*objmodel.Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mods := p.byName[name]
	if len(mods) == 0 {
		return nil, false
	}
	return mods[0], true
}

// GetVersion returns the entry whose version equals version exactly.
func (p *Pool) GetVersion(name string, version objmodel.Version) (*objmodel.Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.byName[name] {
		if m.Version.Equals(version) {
			return m, true
		}
	}
	return nil, false
}

// Resolve looks up name under a version constraint, returning
// the first registered module whose version satisfies required.
func (p *Pool) Resolve(name string, constraint objmodel.VersionConstraint, required objmodel.Version) (*objmodel.Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.byName[name] {
		if constraint.Satisfies(required, m.Version) {
			return m, true
		}
	}
	return nil, false
}

// Register adds a freshly-allocated, not-yet-fully-opened Module to the
// pool so dependents loading concurrently can observe it for circular-
// dependency detection while its body is still being read. Fails if an
// identical (name, version) pair is already present.
func (p *Pool) Register(m *objmodel.Module) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.byName[m.Name] {
		if existing.Version.Equals(m.Version) {
			return fmt.Errorf("modpool: duplicate load of %s version %s", m.Name, m.Version)
		}
	}
	p.byName[m.Name] = append(p.byName[m.Name], m)
	return nil
}

// Rename re-keys m from its current (placeholder) entry to newName. The
// loader registers a module under a provisional key as soon as it
// allocates it — before the name token can be resolved, which requires
// the string table — so that it stays observable to circular-dependency
// detection while its moduleRefs are read. Once the real name is resolved,
// the loader calls Rename to move it into its real (name, version)
// bucket; this is where the duplicate-(name, version) check actually
// bites, since the provisional key can't collide with a real one.
func (p *Pool) Rename(m *objmodel.Module, newName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.Name == newName {
		return nil
	}
	for _, existing := range p.byName[newName] {
		if existing != m && existing.Version.Equals(m.Version) {
			return fmt.Errorf("modpool: duplicate load of %s version %s", newName, m.Version)
		}
	}
	oldName := m.Name
	mods := p.byName[oldName]
	for i, existing := range mods {
		if existing == m {
			p.byName[oldName] = append(mods[:i], mods[i+1:]...)
			break
		}
	}
	m.Name = newName
	p.byName[newName] = append(p.byName[newName], m)
	return nil
}

// Remove deletes m from the pool. Called by the loader when a load
// fails partway through.
func (p *Pool) Remove(m *objmodel.Module) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mods := p.byName[m.Name]
	for i, existing := range mods {
		if existing == m {
			p.byName[m.Name] = append(mods[:i], mods[i+1:]...)
			return
		}
	}
}

// Open coordinates a (possibly concurrent, possibly recursive) load of
// (name, version). If a satisfying module is already registered, it is
// returned directly. Otherwise loadFunc — supplied by the loader package
// — is invoked at most once per concurrently-requested key, regardless
// of how many goroutines call Open for the same (name, constraint,
// version) at once.
func (p *Pool) Open(name string, constraint objmodel.VersionConstraint, version objmodel.Version, loadFunc func() (*objmodel.Module, error)) (*objmodel.Module, error) {
	if m, ok := p.Resolve(name, constraint, version); ok {
		return m, nil
	}
	key := fmt.Sprintf("%s@%s#%d", name, version, constraint)
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		if m, ok := p.Resolve(name, constraint, version); ok {
			return m, nil
		}
		return loadFunc()
	})
	if err != nil {
		return nil, err
	}
	return v.(*objmodel.Module), nil
}
