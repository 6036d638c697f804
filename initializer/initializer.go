/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package initializer

import (
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/refsig"
)

// Initialize runs the four-stage pipeline over one overload's raw
// body the first time it is invoked. On success it rewrites overload
// in place (Body replaces RawBody, OverloadInitialized is set)
// and returns the set of types whose static constructor this overload's
// body references but which haven't run yet — the caller drains this
// list (guarding re-entrancy with TypeStaticCtorRunning) before letting
// the overload execute.
func Initialize(mod *objmodel.Module, pool *refsig.Pool, methodName string, overload *objmodel.MethodOverload) ([]*objmodel.Type, error) {
	// Lock-free fast path: an acquire-load of the initialized state.
	// Everything else — including the native/abstract flag reads —
	// happens under the per-overload lock, so no Flags access races
	// with the MarkInitialized write below.
	if overload.InitializedFast() {
		return nil, nil
	}

	overload.LockInit()
	defer overload.UnlockInit()
	if overload.IsInitialized() || overload.IsNative() || overload.IsAbstract() {
		return nil, nil
	}

	b := newBuilder(mod, overload, methodName, pool)
	if err := decode(b); err != nil {
		return nil, err
	}
	if err := fixupBranches(b); err != nil {
		return nil, err
	}
	if err := runDataflow(b); err != nil {
		return nil, err
	}
	runPeephole(b)

	originalLen := len(b.instrs)
	compacted, oldToNew := compact(b)

	body, err := emit(b, compacted, oldToNew, originalLen)
	if err != nil {
		return nil, err
	}

	overload.Body = body
	overload.RawBody = nil
	overload.MarkInitialized()

	if len(b.needsStaticInit) == 0 {
		return nil, nil
	}
	pending := make([]*objmodel.Type, 0, len(b.needsStaticInit))
	for ty := range b.needsStaticInit {
		if ty.Flags&objmodel.TypeStaticCtorRun != 0 || ty.Flags&objmodel.TypeStaticCtorRunning != 0 {
			continue
		}
		pending = append(pending, ty)
	}
	return pending, nil
}

// RunStaticInitializers drains the pending set Initialize returned,
// calling run once per type with a re-entrancy guard: each type is
// flagged as running before the call (so a static constructor that
// transitively triggers its own initialization is skipped rather than
// recursed into) and as run only on success.
func RunStaticInitializers(pending []*objmodel.Type, run func(*objmodel.Type) error) error {
	for _, ty := range pending {
		if ty.Flags&(objmodel.TypeStaticCtorRun|objmodel.TypeStaticCtorRunning) != 0 {
			continue
		}
		ty.Flags |= objmodel.TypeStaticCtorRunning
		err := run(ty)
		ty.Flags &^= objmodel.TypeStaticCtorRunning
		if err != nil {
			return err
		}
		ty.Flags |= objmodel.TypeStaticCtorRun
	}
	return nil
}
