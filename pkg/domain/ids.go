// Package domain holds the identifier types shared across the tracking
// pipeline. Subjects and packages are owned by the enrollment domain; this
// service only references them by id and never mutates them.
package domain

import (
	"fmt"
)

// SubjectID identifies the tracked entity (a child on a trip).
type SubjectID int64

// PackageID identifies the trip package a reading belongs to.
type PackageID int64

// ParseSubjectID validates a raw subject id. Subject ids are assigned by the
// enrollment domain and are always positive.
func ParseSubjectID(raw int64) (SubjectID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("subject id must be a positive integer, got %d", raw)
	}
	return SubjectID(raw), nil
}

// ParsePackageID validates a raw package id.
func ParsePackageID(raw int64) (PackageID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("package id must be a positive integer, got %d", raw)
	}
	return PackageID(raw), nil
}

// Valid reports whether the id refers to a real subject.
func (s SubjectID) Valid() bool { return s > 0 }

// Valid reports whether the id refers to a real package.
func (p PackageID) Valid() bool { return p > 0 }

func (s SubjectID) String() string { return fmt.Sprintf("%d", int64(s)) }
func (p PackageID) String() string { return fmt.Sprintf("%d", int64(p)) }
