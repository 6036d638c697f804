/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modfile

import (
	"fmt"

	"github.com/osprey-lang/ovum/objmodel"
)

// ReadMagicAndVersion validates the fixed 16-byte prologue and
// returns the format version found, without yet touching any section.
// Bad magic and unsupported versions fail here, before a Module exists
// in the pool.
func ReadMagicAndVersion(r *Reader) (uint32, error) {
	var magic [4]byte
	if err := r.Read(magic[:]); err != nil {
		return 0, err
	}
	if magic != Magic {
		return 0, newLoadError(r.file, ReasonBadMagic, fmt.Sprintf("got %q", magic[:]))
	}
	version, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if version != FormatVersion {
		return 0, newLoadError(r.file, ReasonUnsupportedFormatVersion, fmt.Sprintf("got 0x%08x, want 0x%08x", version, FormatVersion))
	}
	// 8 bytes of reserved padding complete the 16-byte fixed header.
	if err := r.Seek(DataStart, SeekStart); err != nil {
		return 0, err
	}
	return version, nil
}

// ReadHeader reads the module-meta section that immediately follows the
// fixed prologue: name token, 4-field version, a skipped
// string-map, optional native library name, and the five table counts
// plus the method-block offset.
func ReadHeader(r *Reader) (Header, error) {
	var h Header

	nameTok, err := r.ReadToken()
	if err != nil {
		return h, err
	}
	h.NameToken = nameTok

	var v [4]uint32
	for i := range v {
		u, err := r.ReadU32()
		if err != nil {
			return h, err
		}
		v[i] = u
	}
	h.Version = objmodel.Version{Major: v[0], Minor: v[1], Patch: v[2], Revision: v[3]}

	// The string-map section's contents are a debug/reflection
	// convenience the core doesn't consume; skip it like any other
	// sized section with unknown internal shape.
	if bounds, ok, err := r.EnterSection("string-map"); err != nil {
		return h, err
	} else if ok {
		if err := r.Seek(bounds.declared, SeekCurrent); err != nil {
			return h, err
		}
		if err := r.EndSection(bounds); err != nil {
			return h, err
		}
	}

	hasNativeLib, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	if hasNativeLib != 0 {
		name, err := r.ReadCString()
		if err != nil {
			return h, err
		}
		h.NativeLibrary = name
	}

	counts := []*int32{&h.TypeCount, &h.FunctionCount, &h.ConstantCount, &h.FieldCount, &h.MethodCount}
	for _, c := range counts {
		n, err := r.ReadI32()
		if err != nil {
			return h, err
		}
		*c = n
	}

	blockOffset, err := r.ReadU32()
	if err != nil {
		return h, err
	}
	h.MethodBlockOffset = blockOffset

	return h, nil
}
