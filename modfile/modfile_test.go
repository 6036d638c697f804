/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package modfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/token"
)

// fileBuilder assembles a synthetic .ovm byte buffer the same way the
// real format is laid out, for reader round-trip tests.
type fileBuilder struct {
	buf bytes.Buffer
}

func (b *fileBuilder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *fileBuilder) u16(v uint16) { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) u32(v uint32) { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) u64(v uint64) { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) token(t token.Token) { b.u32(uint32(t)) }

func (b *fileBuilder) str(s string) {
	units := utf16Encode(s)
	b.u32(uint32(len(units)))
	for _, u := range units {
		b.u16(u)
	}
}

func (b *fileBuilder) cstr(s string) {
	b.buf.WriteString(s)
	b.u8(0)
}

// sized wraps the bytes fn writes with a size-prefixed section.
func (b *fileBuilder) sized(fn func(*fileBuilder)) {
	var inner fileBuilder
	fn(&inner)
	b.u32(uint32(inner.buf.Len()))
	b.buf.Write(inner.buf.Bytes())
}

func utf16Encode(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r < 0x10000 {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

func minimalHeader(b *fileBuilder, name token.Token) {
	b.token(name)
	b.u32(1) // major
	b.u32(0)
	b.u32(0)
	b.u32(0)
	b.sized(func(*fileBuilder) {}) // empty string-map: declared size 0 means skip entirely
	b.u8(0)                        // no native library
	b.u32(0)                       // type count
	b.u32(0)                       // function count
	b.u32(0)                       // constant count
	b.u32(0)                       // field count
	b.u32(0)                       // method count
	b.u32(0)                       // method block offset
}

func TestS1_TruncatedHeaderOnly(t *testing.T) {
	var b fileBuilder
	b.buf.Write(Magic[:])
	b.u32(FormatVersion)
	b.u64(0) // reserved padding

	r := NewReader("s1.ovm", b.buf.Bytes(), nil)
	if _, err := ReadMagicAndVersion(r); err != nil {
		t.Fatalf("magic/version should succeed: %v", err)
	}
	if _, err := ReadHeader(r); err == nil {
		t.Fatal("expected UnexpectedEndOfFile reading header past EOF")
	} else if le, ok := AsLoadError(err); !ok || le.Reason != ReasonUnexpectedEndOfFile {
		t.Fatalf("got %v, want ReasonUnexpectedEndOfFile", err)
	}
}

func TestS2_BadMagic(t *testing.T) {
	var b fileBuilder
	b.buf.WriteString("OVMX")
	b.u32(FormatVersion)
	b.u64(0)

	r := NewReader("s2.ovm", b.buf.Bytes(), nil)
	_, err := ReadMagicAndVersion(r)
	le, ok := AsLoadError(err)
	if !ok || le.Reason != ReasonBadMagic {
		t.Fatalf("got %v, want ReasonBadMagic", err)
	}
}

func TestS3_UnsupportedVersion(t *testing.T) {
	var b fileBuilder
	b.buf.Write(Magic[:])
	b.u32(0x00000200)
	b.u64(0)

	r := NewReader("s3.ovm", b.buf.Bytes(), nil)
	_, err := ReadMagicAndVersion(r)
	le, ok := AsLoadError(err)
	if !ok || le.Reason != ReasonUnsupportedFormatVersion {
		t.Fatalf("got %v, want ReasonUnsupportedFormatVersion", err)
	}
}

func TestRoundTrip_EmptyModule(t *testing.T) {
	var b fileBuilder
	b.buf.Write(Magic[:])
	b.u32(FormatVersion)
	b.u64(0)
	minimalHeader(&b, token.New(token.KindString, 1))
	// all remaining sections (strings, moduleRefs, typeRefs,
	// functionRefs, fieldRefs, methodRefs) are empty, plus zero
	// typeDefs/functionDefs/constantDefs (from the header counts) and a
	// zero main-method token.
	b.sized(func(*fileBuilder) {}) // strings
	b.sized(func(*fileBuilder) {}) // moduleRefs
	b.sized(func(*fileBuilder) {}) // typeRefs
	b.sized(func(*fileBuilder) {}) // functionRefs
	b.sized(func(*fileBuilder) {}) // fieldRefs
	b.sized(func(*fileBuilder) {}) // methodRefs
	b.token(token.None)            // main method

	r := NewReader("empty.ovm", b.buf.Bytes(), nil)
	if _, err := ReadMagicAndVersion(r); err != nil {
		t.Fatalf("ReadMagicAndVersion: %v", err)
	}
	header, err := ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.Version != (objmodel.Version{Major: 1}) {
		t.Errorf("header.Version = %v, want 1.0.0.0", header.Version)
	}

	file, err := ReadFile(r, header, nil, func(name string, _ objmodel.VersionConstraint, _ objmodel.Version) (*objmodel.Module, error) {
		t.Fatalf("unexpected dependency open for %q", name)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(file.TypeDefs) != 0 || len(file.Strings) != 0 {
		t.Errorf("expected an empty module, got %+v", file)
	}
	if r.Position() != r.Len() {
		t.Errorf("reader did not consume the whole buffer: pos=%d len=%d", r.Position(), r.Len())
	}
}

func TestStringTable_RoundTripsAndInterns(t *testing.T) {
	var b fileBuilder
	b.sized(func(inner *fileBuilder) {
		inner.token(token.New(token.KindString, 1))
		inner.str("hello")
		inner.token(token.New(token.KindString, 2))
		inner.str("world")
	})

	internCalls := map[string]int{}
	intern := func(s string) string {
		internCalls[s]++
		return s
	}

	r := NewReader("strings.ovm", b.buf.Bytes(), intern)
	strs, err := readStringTable(r)
	if err != nil {
		t.Fatalf("readStringTable: %v", err)
	}
	if len(strs) != 2 || strs[0] != "hello" || strs[1] != "world" {
		t.Fatalf("got %v, want [hello world]", strs)
	}
	if internCalls["hello"] != 1 || internCalls["world"] != 1 {
		t.Errorf("expected each string interned exactly once, got %v", internCalls)
	}
}

func TestStringTable_OutOfOrderTokenFails(t *testing.T) {
	var b fileBuilder
	b.sized(func(inner *fileBuilder) {
		inner.token(token.New(token.KindString, 2)) // first entry must carry index 1
		inner.str("hello")
	})

	r := NewReader("strings.ovm", b.buf.Bytes(), nil)
	_, err := readStringTable(r)
	le, ok := AsLoadError(err)
	if !ok || le.Reason != ReasonUnresolvedToken {
		t.Fatalf("got %v, want ReasonUnresolvedToken for an out-of-order string token", err)
	}
}

func TestModuleRefTable_StructuralRoundTrip(t *testing.T) {
	var b fileBuilder
	b.sized(func(inner *fileBuilder) {
		inner.token(token.New(token.KindString, 1))
		inner.u8(uint8(objmodel.ConstraintFixedMinor))
		inner.u32(2)
		inner.u32(3)
		inner.u32(0)
		inner.u32(0)
	})

	r := NewReader("moduleref.ovm", b.buf.Bytes(), nil)
	refs, err := readModuleRefTable(r)
	if err != nil {
		t.Fatalf("readModuleRefTable: %v", err)
	}

	want := []ModuleRef{{
		NameToken:  token.New(token.KindString, 1),
		Constraint: objmodel.ConstraintFixedMinor,
		Version:    objmodel.Version{Major: 2, Minor: 3},
	}}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("moduleRef table mismatch (-want +got):\n%s", diff)
	}
}

func TestSizedSectionMismatchFails(t *testing.T) {
	var b fileBuilder
	// Declare a 4-byte section but only ever consume 2.
	b.u32(4)
	b.u16(0xBEEF)

	r := NewReader("bad.ovm", b.buf.Bytes(), nil)
	bounds, ok, err := r.EnterSection("test")
	if err != nil || !ok {
		t.Fatalf("EnterSection: ok=%v err=%v", ok, err)
	}
	if _, err := r.ReadU16(); err != nil {
		t.Fatalf("ReadU16: %v", err)
	}
	err = r.EndSection(bounds)
	le, ok := AsLoadError(err)
	if !ok || le.Reason != ReasonSizeMismatch {
		t.Fatalf("got %v, want ReasonSizeMismatch", err)
	}
}

func TestEmptySectionIsSkippedEntirely(t *testing.T) {
	var b fileBuilder
	b.u32(0)

	r := NewReader("empty-section.ovm", b.buf.Bytes(), nil)
	_, ok, err := r.EnterSection("test")
	if err != nil {
		t.Fatalf("EnterSection: %v", err)
	}
	if ok {
		t.Fatal("EnterSection should report ok=false for a declared size of 0")
	}
}
