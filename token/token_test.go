/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package token

import "testing"

func TestNewNoneOnZeroIndex(t *testing.T) {
	for _, k := range []Kind{KindTypeDef, KindMethodRef, KindString} {
		if got := New(k, 0); got != None {
			t.Errorf("New(%v, 0) = %v, want None", k, got)
		}
	}
}

func TestKindIndexRoundTrip(t *testing.T) {
	cases := []struct {
		kind  Kind
		index uint32
	}{
		{KindTypeDef, 1},
		{KindTypeRef, 42},
		{KindMethodDef, 0x0FFFFFFF},
		{KindString, 7},
	}
	for _, c := range cases {
		tok := New(c.kind, c.index)
		if tok.Kind() != c.kind {
			t.Errorf("New(%v, %d).Kind() = %v, want %v", c.kind, c.index, tok.Kind(), c.kind)
		}
		if tok.Index() != c.index {
			t.Errorf("New(%v, %d).Index() = %d, want %d", c.kind, c.index, tok.Index(), c.index)
		}
	}
}

func TestHasKindRejectsWrongKind(t *testing.T) {
	tok := New(KindTypeDef, 3)
	if tok.HasKind(KindTypeRef) {
		t.Error("HasKind(KindTypeRef) = true for a TypeDef token")
	}
	if !tok.HasKind(KindTypeDef) {
		t.Error("HasKind(KindTypeDef) = false for a TypeDef token")
	}
}

func TestNoneHasNoKind(t *testing.T) {
	if None.HasKind(KindTypeDef) {
		t.Error("None.HasKind(KindTypeDef) = true")
	}
	if !None.IsNone() {
		t.Error("None.IsNone() = false")
	}
}
