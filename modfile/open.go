/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modfile

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedFile owns a memory-mapped .ovm file: the format has internal
// offsets, so mapping it beats copying the whole file up front.
type MappedFile struct {
	f       *os.File
	mapping mmap.MMap
}

// OpenMappedFile opens and maps path read-only.
func OpenMappedFile(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newLoadError(path, ReasonIOError, err.Error())
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, newLoadError(path, ReasonIOError, err.Error())
	}
	return &MappedFile{f: f, mapping: m}, nil
}

// Bytes returns the mapped region. Callers that need to keep data beyond
// Close must copy it out first.
func (mf *MappedFile) Bytes() []byte { return mf.mapping }

// Close unmaps and closes the underlying file. Every byte slice handed
// out by Bytes must no longer be read after this returns; the strings
// and slices the Reader decoded from it are copies (see
// Reader.ReadBytes/ReadString) and stay valid.
func (mf *MappedFile) Close() error {
	mapErr := mf.mapping.Unmap()
	fileErr := mf.f.Close()
	if mapErr != nil {
		return mapErr
	}
	return fileErr
}
