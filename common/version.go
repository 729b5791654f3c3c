package common

import (
	"errors"
	"fmt"
)

const (
	major = 0
	minor = 2
	patch = 0

	// Versions from which a snapshot can be restored.
	// These should be used in a group (so prevMinor can be equal to minor if there are
	// no storage layout changes).
	prevMajor = 0
	prevMinor = 1
	prevPatch = 0

	// Version is the current storage layout version written into every snapshot.
	Version = major*1_000_000 + minor*1_000 + patch

	// PrevVersion is the oldest storage layout version that can still be restored.
	PrevVersion = prevMajor*1_000_000 + prevMinor*1_000 + prevPatch
)

var (
	// ErrVersionMismatch is returned by CheckVersion in case of version being
	// outside of the supported range.
	ErrVersionMismatch = errors.New("storage version mismatch")
)

// CheckVersion checks that the snapshot version is in [PrevVersion, Version]
// range, so its data can be loaded by the current code.
func CheckVersion(from int) error {
	if from < PrevVersion {
		return fmt.Errorf("%w: expected >=%d, got %d", ErrVersionMismatch, PrevVersion, from)
	}
	if from > Version {
		return fmt.Errorf("%w: expected <=%d, got %d", ErrVersionMismatch, Version, from)
	}
	return nil
}
