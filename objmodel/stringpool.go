/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "sync"

// StringPool interns string contents so that identical literal text
// across modules shares one Go string header. It stands in for the
// real VM's GC-backed string pool; here "interning" just means
// deduplicating the backing array, which is the part of the contract
// the loader and the initializer actually depend on (two lookups of
// the same contents yield pointer-equal results).
//
// One shared, mutex-guarded map rather than a per-module table.
type StringPool struct {
	mu      sync.RWMutex
	byValue map[string]*string
}

// NewStringPool returns an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{byValue: make(map[string]*string)}
}

// Intern returns the canonical *string for s, creating an entry if this
// is the first time s's contents have been seen.
func (p *StringPool) Intern(s string) *string {
	p.mu.RLock()
	if existing, ok := p.byValue[s]; ok {
		p.mu.RUnlock()
		return existing
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byValue[s]; ok {
		return existing
	}
	v := s
	p.byValue[s] = &v
	return &v
}
