/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

// Access is a member's declared accessibility: the usual
// public/protected/private ladder plus the module-file-only Internal
// level that gates cross-module lookups (references resolved against
// another module never see Internal members).
type Access int

const (
	AccessInvalid Access = iota
	AccessPublic
	AccessInternal
	AccessProtected
	AccessPrivate
)

// Accessible reports whether a member with access level 'level',
// declared on declType and declared in declModule, can be reached from
// code running in fromModule (and, for Protected, in the context of
// fromType, which may be nil for module-level/global lookups).
//
// includeInternal controls whether Internal (same-module-only by
// default) members are visible; the module linker passes false when
// resolving a *Ref against another module, since cross-
// module references are never allowed to see Internal members.
func Accessible(level Access, declModule, fromModule *Module, declType, fromType *Type, includeInternal bool) bool {
	switch level {
	case AccessPublic:
		return true
	case AccessInternal:
		if !includeInternal {
			return false
		}
		return declModule == fromModule
	case AccessProtected:
		if fromType == nil {
			return false
		}
		return fromType.IsSubtypeOf(declType) || declType.IsSubtypeOf(fromType)
	case AccessPrivate:
		return declType == fromType
	default:
		return false
	}
}
