/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package modfile implements the on-disk module file format: the
// buffered little-endian reader, the sized-section framing, and the
// raw (token-based, not yet cross-module-resolved) structures each
// section decodes to. Resolving those raw structures into the linked
// objmodel graph is the loader package's job.
package modfile

import (
	"encoding/binary"
	"fmt"

	"github.com/osprey-lang/ovum/token"
	"golang.org/x/text/encoding/unicode"
)

// Magic is the fixed 4-byte file signature.
var Magic = [4]byte{'O', 'V', 'M', 'M'}

// FormatVersion is the only module file format version this reader
// understands.
const FormatVersion uint32 = 0x00000100

// DataStart is the fixed byte offset where the data region begins.
const DataStart = 16

// shortStringLimit is the boundary between the reader's stack-buffer and
// heap-buffer string decoding paths.
const shortStringLimit = 128

// Reader is a buffered, little-endian, seek-capable wrapper over a
// module file's bytes (normally backed by an mmap'd region — see
// OpenMappedFile in open.go).
type Reader struct {
	data []byte
	pos  int64

	// intern canonicalizes decoded strings: every string the reader
	// produces is interned, so identical literal contents across
	// modules share storage.
	intern func(string) string

	file string // for error messages
}

// NewReader wraps data (the full contents of a module file) for
// section-by-section reading. intern is the GC string pool's Intern
// function (objmodel.StringPool.Intern with the *string dereferenced);
// passing nil disables interning (tests that don't care about sharing).
func NewReader(file string, data []byte, intern func(string) string) *Reader {
	if intern == nil {
		intern = func(s string) string { return s }
	}
	return &Reader{data: data, intern: intern, file: file}
}

// Len returns the total number of bytes available.
func (r *Reader) Len() int64 { return int64(len(r.data)) }

// Position returns the current read offset.
func (r *Reader) Position() int64 { return r.pos }

// SeekOrigin mirrors io.Seeker's origin constants.
type SeekOrigin int

const (
	SeekStart SeekOrigin = iota
	SeekCurrent
	SeekEnd
)

// Seek repositions the reader.
func (r *Reader) Seek(offset int64, origin SeekOrigin) error {
	var target int64
	switch origin {
	case SeekStart:
		target = offset
	case SeekCurrent:
		target = r.pos + offset
	case SeekEnd:
		target = int64(len(r.data)) + offset
	}
	if target < 0 || target > int64(len(r.data)) {
		return r.eof(fmt.Sprintf("seek target %d out of range [0, %d]", target, len(r.data)))
	}
	r.pos = target
	return nil
}

func (r *Reader) eof(detail string) error {
	return newLoadError(r.file, ReasonUnexpectedEndOfFile, detail)
}

// Read copies len(buf) bytes starting at the current position into
// buf.
func (r *Reader) Read(buf []byte) error {
	if r.pos+int64(len(buf)) > int64(len(r.data)) {
		return r.eof(fmt.Sprintf("need %d bytes at offset %d, have %d remaining", len(buf), r.pos, int64(len(r.data))-r.pos))
	}
	copy(buf, r.data[r.pos:r.pos+int64(len(buf))])
	r.pos += int64(len(buf))
	return nil
}

// ReadBytes returns a fresh copy of the next n bytes (use this, not a
// slice into r.data, when the caller keeps the result past the life of
// any backing mmap — see Close in open.go).
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	var buf [1]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	var buf [2]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	var buf [4]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *Reader) ReadI32() (int32, error) {
	u, err := r.ReadU32()
	return int32(u), err
}

func (r *Reader) ReadU64() (uint64, error) {
	var buf [8]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadToken reads a raw 32-bit token.
func (r *Reader) ReadToken() (token.Token, error) {
	u, err := r.ReadU32()
	return token.Token(u), err
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ReadString reads a length-prefixed (code-unit count, u32) UTF-16LE
// array with no terminator and interns the decoded result. Short strings are
// copied through a stack buffer; long ones take a heap allocation.
// Both paths end at the intern pool, so every string this reader
// produces is canonical.
func (r *Reader) ReadString() (string, error) {
	codeUnits, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	var raw []byte
	if codeUnits <= shortStringLimit {
		var stack [shortStringLimit * 2]byte
		raw = stack[:codeUnits*2]
		if err := r.Read(raw); err != nil {
			return "", err
		}
	} else {
		raw, err = r.ReadBytes(int(codeUnits) * 2)
		if err != nil {
			return "", err
		}
	}
	decoded, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", newLoadError(r.file, ReasonIOError, fmt.Sprintf("invalid UTF-16 string: %v", err))
	}
	return r.intern(string(decoded)), nil
}

// ReadCString reads a NUL-terminated 8-bit string. Not interned:
// these are used once, to resolve a dynamic-library symbol, and then
// discarded.
func (r *Reader) ReadCString() (string, error) {
	var buf []byte
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// SectionBounds records a sized section's declared extent, for
// EndSection to verify against.
type SectionBounds struct {
	name       string
	start      int64
	declared   int64
}

// EnterSection reads a section's u32 byte-size prefix. If the
// declared size is 0, ok is false and the caller should skip the
// section entirely without calling EndSection.
func (r *Reader) EnterSection(name string) (bounds SectionBounds, ok bool, err error) {
	size, err := r.ReadU32()
	if err != nil {
		return SectionBounds{}, false, err
	}
	if size == 0 {
		return SectionBounds{}, false, nil
	}
	return SectionBounds{name: name, start: r.pos, declared: int64(size)}, true, nil
}

// Remaining reports whether the reader is still inside bounds, for
// tables whose element count isn't given up front and must instead be
// read "until the declared section size is consumed".
func (r *Reader) Remaining(bounds SectionBounds) bool {
	return r.pos < bounds.start+bounds.declared
}

// EndSection verifies that exactly bounds.declared bytes were consumed
// since EnterSection, failing with SizeMismatch otherwise.
func (r *Reader) EndSection(bounds SectionBounds) error {
	actual := r.pos - bounds.start
	if actual != bounds.declared {
		return newLoadError(r.file, ReasonSizeMismatch, sizeMismatchDetail(bounds.name, bounds.declared, actual))
	}
	return nil
}
