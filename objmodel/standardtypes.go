/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "sync"

// StandardTypes is the VM-wide struct of privileged, named types:
// primitive numerics, String, List, Hash, Method, Iterator, and so
// on. Each slot is claimed
// by whichever loaded module first declares a type with the matching
// name; later declarations of the same name are ignored (first loaded,
// first claimed).
type StandardTypes struct {
	mu    sync.Mutex
	slots map[string]*Type
	// extendedInit, if registered for a slot name, runs once that slot
	// is claimed.
	extendedInit map[string]func(*Type)
}

// NewStandardTypes returns an empty registry: no slot is claimed and no
// extended initializer is registered until a caller does so (the Std*
// constants below name the well-known slots).
func NewStandardTypes() *StandardTypes {
	return &StandardTypes{
		slots:        make(map[string]*Type),
		extendedInit: make(map[string]func(*Type)),
	}
}

// RegisterExtendedInit associates an extended initializer with a
// standard-type slot name, to run when that slot is first claimed.
func (s *StandardTypes) RegisterExtendedInit(name string, fn func(*Type)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extendedInit[name] = fn
}

// TryClaim installs t under name if and only if the slot is not already
// taken, running the slot's extended initializer on success. Returns
// whether t was installed.
func (s *StandardTypes) TryClaim(name string, t *Type) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.slots[name]; taken {
		return false
	}
	s.slots[name] = t
	if fn, ok := s.extendedInit[name]; ok {
		fn(t)
	}
	return true
}

// Get returns the type claiming the named slot, if any.
func (s *StandardTypes) Get(name string) (*Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[name]
	return t, ok
}

// Well-known standard-type slot names.
const (
	StdInt      = "Int"
	StdUInt     = "UInt"
	StdReal     = "Real"
	StdBoolean  = "Boolean"
	StdChar     = "Char"
	StdString   = "String"
	StdList     = "List"
	StdHash     = "Hash"
	StdMethod   = "Method"
	StdIterator = "Iterator"
	StdEnum     = "Enum"
	StdObject   = "Object"
)
