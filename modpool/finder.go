/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modpool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/osprey-lang/ovum/objmodel"
)

// Finder locates a module's .ovm file on disk by searching three fixed
// directories in order: "<startup>/lib", "<startup>",
// and a VM-configured module path.
type Finder struct {
	StartupDir string
	ModulePath string
}

// NewFinder builds a Finder from the process's Globals-style config.
func NewFinder(startupDir, modulePath string) *Finder {
	return &Finder{StartupDir: startupDir, ModulePath: modulePath}
}

func (f *Finder) searchDirs() []string {
	var dirs []string
	if f.StartupDir != "" {
		dirs = append(dirs, filepath.Join(f.StartupDir, "lib"))
		dirs = append(dirs, f.StartupDir)
	}
	if f.ModulePath != "" {
		dirs = append(dirs, f.ModulePath)
	}
	return dirs
}

// candidates returns the four filename patterns tried per directory,
// in order. The first two are skipped when no version was requested
// (hasVersion == false).
func candidates(dir, name string, version objmodel.Version, hasVersion bool) []string {
	var out []string
	if hasVersion {
		vstr := version.String()
		out = append(out, filepath.Join(dir, fmt.Sprintf("%s-%s", name, vstr), name+".ovm"))
		out = append(out, filepath.Join(dir, fmt.Sprintf("%s-%s.ovm", name, vstr)))
	}
	out = append(out, filepath.Join(dir, name, name+".ovm"))
	out = append(out, filepath.Join(dir, name+".ovm"))
	return out
}

// Find returns the path to name's module file, trying every directory
// in fixed order and, within each, the four filename patterns above.
// The first existing file wins.
func (f *Finder) Find(name string, version objmodel.Version, hasVersion bool) (string, error) {
	for _, dir := range f.searchDirs() {
		for _, candidate := range candidates(dir, name, version, hasVersion) {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("modpool: module %q not found in search path", name)
}
