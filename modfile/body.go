/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modfile

// ReadMethodBody copies out the raw on-disk bytecode for one
// overload. Safe to call after the rest of the file has been read,
// since it restores r's position before returning.
func ReadMethodBody(r *Reader, header Header, offset, length uint32) ([]byte, error) {
	saved := r.Position()
	defer func() { _ = r.Seek(saved, SeekStart) }()

	if err := r.Seek(int64(header.MethodBlockOffset)+int64(offset), SeekStart); err != nil {
		return nil, err
	}
	return r.ReadBytes(int(length))
}
