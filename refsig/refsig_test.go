/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package refsig

import "testing"

func TestShortSignatureCommitIsDirect(t *testing.T) {
	b := NewBuilder(4)
	b.SetParam(1, true)
	b.SetParam(3, true)
	sig := b.Commit(NewPool())
	if sig.IsLong() {
		t.Fatal("4-param builder produced a long signature")
	}
	if !IsParamRef(sig, 1, nil) || !IsParamRef(sig, 3, nil) {
		t.Error("expected params 1 and 3 to be by-ref")
	}
	if IsParamRef(sig, 2, nil) {
		t.Error("param 2 should not be by-ref")
	}
}

func TestZeroIsUniversalNoRefs(t *testing.T) {
	pool := NewPool()
	shortEmpty := NewBuilder(4).Commit(pool)
	longEmpty := NewBuilder(40).Commit(pool)
	if shortEmpty != 0 || longEmpty != 0 {
		t.Errorf("expected both empty builders to commit to 0, got short=%v long=%v", shortEmpty, longEmpty)
	}
}

func TestLongSignatureInterning(t *testing.T) {
	pool := NewPool()

	b1 := NewBuilder(40)
	b1.SetParam(5, true)
	sig1 := b1.Commit(pool)

	b2 := NewBuilder(40)
	b2.SetParam(5, true)
	sig2 := b2.Commit(pool)

	if !sig1.IsLong() || !sig2.IsLong() {
		t.Fatal("40-param builders should commit to long signatures")
	}
	if sig1 != sig2 {
		t.Errorf("identical long signatures got different pool indices: %v != %v", sig1, sig2)
	}

	b3 := NewBuilder(40)
	b3.SetParam(6, true)
	sig3 := b3.Commit(pool)
	if sig3 == sig1 {
		t.Error("distinct long signatures collided on the same pool index")
	}
}

func TestCanonicalFormBuildTwiceEqual(t *testing.T) {
	pool := NewPool()
	mk := func() Signature {
		b := NewBuilder(35)
		b.SetParam(2, true)
		b.SetParam(10, true)
		return b.Commit(pool)
	}
	if mk() != mk() {
		t.Error("build(S).commit() != build(S).commit() for identical S")
	}
}

func TestShortLongEquivalencePairwiseWalk(t *testing.T) {
	pool := NewPool()

	short := NewBuilder(4)
	short.SetParam(1, true)
	shortSig := short.Commit(pool)

	// Force a long encoding of the very same by-ref set by padding the
	// parameter count past the short threshold.
	long := NewBuilder(40)
	long.SetParam(1, true)
	longSig := long.Commit(pool)

	idx, ok := Matches(shortSig, longSig, 4, pool)
	if !ok {
		t.Errorf("expected equivalent short/long signatures to match, mismatch at %d", idx)
	}
}

func TestMatchesReportsMismatchIndex(t *testing.T) {
	pool := NewPool()
	a := NewBuilder(4)
	a.SetParam(1, true)
	sigA := a.Commit(pool)

	b := NewBuilder(4)
	b.SetParam(2, true)
	sigB := b.Commit(pool)

	idx, ok := Matches(sigA, sigB, 4, pool)
	if ok {
		t.Fatal("expected mismatch")
	}
	if idx != 1 {
		t.Errorf("mismatch index = %d, want 1", idx)
	}
}
