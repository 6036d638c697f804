/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package objmodel

import "fmt"

// Version is a module version: major, minor, patch, revision. A
// 4-component scheme, not semver's 3-component one, so the usual
// semver libraries don't fit the format.
type Version struct {
	Major, Minor, Patch, Revision uint32
}

// Equals reports whether v and other name the same version.
func (v Version) Equals(other Version) bool {
	return v == other
}

// CompareTo returns -1, 0, or 1 as v is less than, equal to, or greater
// than other, comparing fields in major/minor/patch/revision order.
func (v Version) CompareTo(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmpUint32(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpUint32(v.Minor, other.Minor)
	case v.Patch != other.Patch:
		return cmpUint32(v.Patch, other.Patch)
	case v.Revision != other.Revision:
		return cmpUint32(v.Revision, other.Revision)
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	if a < b {
		return -1
	}
	return 1
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Revision)
}

// VersionConstraint restricts how a ModuleRef's requested version may
// match a candidate module: a dependency can demand an exact version
// or pin just the major, or major+minor, fields.
type VersionConstraint uint32

const (
	ConstraintExact      VersionConstraint = iota // major.minor.patch.revision must match exactly
	ConstraintFixedMinor                          // major.minor must match; patch/revision are "at least"
	ConstraintFixedMajor                          // major must match; minor.patch.revision are "at least"
)

// Satisfies reports whether candidate satisfies a request for required
// under constraint.
func (c VersionConstraint) Satisfies(required, candidate Version) bool {
	switch c {
	case ConstraintFixedMajor:
		if candidate.Major != required.Major {
			return false
		}
		return candidate.CompareTo(required) >= 0
	case ConstraintFixedMinor:
		if candidate.Major != required.Major || candidate.Minor != required.Minor {
			return false
		}
		return candidate.CompareTo(required) >= 0
	default: // ConstraintExact
		return candidate.Equals(required)
	}
}
