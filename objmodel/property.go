/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

// Property is a name bound to a getter and/or setter method.
// At least one of Getter/Setter must be non-nil; when both are present
// their access level, static-ness, and virtual/abstract flags must
// agree (enforced by the loader at materialization time, not here).
type Property struct {
	Name     string
	DeclType *Type
	Getter   *Method
	Setter   *Method
}

func (p *Property) Access() Access {
	if p.Getter != nil {
		return p.Getter.AccessLevel()
	}
	return p.Setter.AccessLevel()
}

func (p *Property) IsStatic() bool {
	if p.Getter != nil {
		return !p.Getter.IsInstance()
	}
	return !p.Setter.IsInstance()
}

func (p *Property) MemberName() string { return p.Name }
