/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package refsig implements the reference-signature pool:
// interning of "which parameter positions are passed by reference"
// bitmasks, in a short (inline 31-bit) or long (pool-indexed) encoding.
//
// The pool is a mutex-guarded registry of variable-length bitmasks;
// short signatures never touch it.
package refsig

import "sync"

const (
	// maxShortParams is the largest parameter count, receiver slot
	// included, a short signature can hold: bits 0..30, with bit 0
	// reserved for the receiver and bits 1..30 for named parameters.
	maxShortParams = 31

	// signatureKindBit, when set on a 32-bit signature, means "long
	// form: the remaining bits are a pool index".
	signatureKindBit uint32 = 0x80000000
	signatureDataMask uint32 = 0x7fffffff

	paramsPerMask = 32
)

// Signature is 0 for "nothing by reference" (short form, empty mask),
// or a 32-bit value whose top bit distinguishes short vs. long encoding.
type Signature uint32

// IsLong reports whether s is a long-form signature (a pool index).
func (s Signature) IsLong() bool {
	return uint32(s)&signatureKindBit != 0
}

// poolIndex returns the pool index encoded in a long-form signature.
func (s Signature) poolIndex() uint32 {
	return uint32(s) & signatureDataMask
}

// longMask is a variable-length, interned bitmask for a method whose
// parameter count exceeds maxShortParams, or whose short/long form
// otherwise needs the pool: a >30-param method with some optional
// parameters, or a variadic method called with >30 arguments.
type longMask struct {
	paramCount uint32 // rounded up to a multiple of paramsPerMask
	words      []uint32
}

func newLongMask(paramCount uint32) *longMask {
	n := (paramCount + paramsPerMask - 1) / paramsPerMask
	if n == 0 {
		n = 1
	}
	return &longMask{
		paramCount: n * paramsPerMask,
		words:      make([]uint32, n),
	}
}

func (m *longMask) isParamRef(index uint32) bool {
	w := m.words[index/paramsPerMask]
	return (w>>(index%paramsPerMask))&1 == 1
}

func (m *longMask) setParam(index uint32, isRef bool) {
	i := index / paramsPerMask
	bit := index % paramsPerMask
	if isRef {
		m.words[i] |= 1 << bit
	} else {
		m.words[i] &^= 1 << bit
	}
}

func (m *longMask) hasRefs() bool {
	for _, w := range m.words {
		if w != 0 {
			return true
		}
	}
	return false
}

func (m *longMask) equals(other *longMask) bool {
	if m.paramCount != other.paramCount {
		return false
	}
	for i, w := range m.words {
		if other.words[i] != w {
			return false
		}
	}
	return true
}

// Pool interns long-form signatures: identical bitmasks map to the same
// index, so two long signatures are equal iff their Signature values are
// equal.
type Pool struct {
	mu         sync.Mutex
	signatures []*longMask
}

// NewPool returns an empty, ready-to-use pool.
func NewPool() *Pool {
	return &Pool{}
}

// add interns mask, returning its long-form Signature (with the
// signature-kind bit set). Returns the index of an existing equal mask
// if one is present; otherwise appends mask and returns its new index.
func (p *Pool) add(mask *longMask) Signature {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.signatures {
		if existing.equals(mask) {
			return Signature(uint32(i) | signatureKindBit)
		}
	}
	p.signatures = append(p.signatures, mask)
	return Signature(uint32(len(p.signatures)-1) | signatureKindBit)
}

// get returns the long mask stored at index; the caller (Signature's
// IsParamRef helpers) must have already verified the signature is long.
func (p *Pool) get(index uint32) *longMask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signatures[index]
}

// Builder accumulates by-ref flags for a method's parameters. Bit 0
// always refers to the receiver; callers address named parameters
// starting at index 1.
type Builder struct {
	long       bool
	shortMask  uint32
	longMask   *longMask
}

// NewBuilder creates a builder for a method/invocation with the given
// parameter count (including the reserved receiver slot at index 0).
func NewBuilder(paramCount uint32) *Builder {
	b := &Builder{long: paramCount > maxShortParams}
	if b.long {
		b.longMask = newLongMask(paramCount)
	}
	return b
}

// SetParam marks parameter index as by-reference (or not).
func (b *Builder) SetParam(index uint32, isRef bool) {
	if b.long {
		b.longMask.setParam(index, isRef)
		return
	}
	if isRef {
		b.shortMask |= 1 << index
	} else {
		b.shortMask &^= 1 << index
	}
}

// IsParamRef reports whether parameter index has been marked by-ref so
// far.
func (b *Builder) IsParamRef(index uint32) bool {
	if b.long {
		return b.longMask.isParamRef(index)
	}
	return (b.shortMask>>index)&1 == 1
}

// Commit finalizes the signature. Short-form builders return their bits
// directly; long-form builders with no refs set collapse to 0 (the
// universal "nothing by reference" value), and long-form builders with
// at least one ref are interned into pool.
func (b *Builder) Commit(pool *Pool) Signature {
	if !b.long {
		return Signature(b.shortMask)
	}
	if !b.longMask.hasRefs() {
		return Signature(0)
	}
	return pool.add(b.longMask)
}

// IsParamRef reports whether parameter index is by-reference under
// signature sig, consulting pool only if sig is long-form.
func IsParamRef(sig Signature, index uint32, pool *Pool) bool {
	if sig == 0 {
		return false
	}
	if !sig.IsLong() {
		if index > maxShortParams {
			return false
		}
		return (uint32(sig)>>index)&1 == 1
	}
	return pool.get(sig.poolIndex()).isParamRef(index)
}

// Matches reports whether two signatures describe the same
// referenceness for a call of the given parameter count. The fast path
// is a direct integer comparison; on mismatch it falls back
// to a pairwise walk across the shared parameter range, which is the
// only way a short and a long signature encoding the same refness can
// still compare unequal as raw integers.
func Matches(callSig, paramSig Signature, paramCount uint32, pool *Pool) (mismatchIndex int, ok bool) {
	if callSig == paramSig {
		return -1, true
	}
	for i := uint32(0); i < paramCount; i++ {
		if IsParamRef(callSig, i, pool) != IsParamRef(paramSig, i, pool) {
			return int(i), false
		}
	}
	return -1, true
}
