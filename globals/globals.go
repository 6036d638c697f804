/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package globals holds the VM's process-wide configuration: a
// singleton struct reached through GetGlobalRef(), rather than
// package-level vars scattered across every consumer.
package globals

import "sync"

// Globals is the VM-wide configuration singleton.
type Globals struct {
	// StartupDir is the directory the VM was launched from; the module
	// finder searches "<StartupDir>/lib" and "<StartupDir>".
	StartupDir string

	// ModulePath is the VM-configured third search directory.
	ModulePath string

	// TraceLoad turns on verbose module-load diagnostics.
	TraceLoad bool

	// TraceInit turns on verbose method-initializer diagnostics.
	TraceInit bool
}

var (
	once sync.Once
	ref  *Globals
)

// GetGlobalRef returns the process-wide Globals, creating it with zero
// values on first call.
func GetGlobalRef() *Globals {
	once.Do(func() {
		ref = &Globals{}
	})
	return ref
}

// InitGlobals resets the singleton; used at VM startup and by tests that
// need a clean slate.
func InitGlobals(startupDir string) *Globals {
	ref = &Globals{StartupDir: startupDir}
	once = sync.Once{}
	once.Do(func() {})
	return ref
}
