package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every domain package. Callers branch with errors.Is.
var (
	// ErrRuleViolation marks an expected roster or eligibility failure.
	ErrRuleViolation = errors.New("rule violation")
	// ErrTransientStorage marks a failed repository call that may be retried.
	ErrTransientStorage = errors.New("transient storage error")
	// ErrInvariantViolation marks an internal inconsistency; the operation was aborted.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrStaleData marks an optimistic version mismatch; refetch and retry.
	ErrStaleData = errors.New("stale data")

	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate record")
	ErrLockHeld   = errors.New("lock already held")
	ErrTeamLocked = errors.New("team locked while a race is in progress")
)

var classified = []error{ErrNotFound, ErrDuplicate, ErrStaleData, ErrLockHeld, ErrRuleViolation, ErrInvariantViolation, ErrTransientStorage, ErrTeamLocked}

// Transient wraps a repository error for op. Errors that already carry a
// domain meaning keep it; anything else becomes ErrTransientStorage.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range classified {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransientStorage, err)
}
