package roster

import (
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Lineup rule violations.
var (
	ErrTooManyActive = fmt.Errorf("%w: too many active cyclists", model.ErrRuleViolation)
	ErrCaptainCount  = fmt.Errorf("%w: a non-empty team needs exactly one captain", model.ErrRuleViolation)
)

// Violation is a failed eligibility check.
type Violation struct {
	Reason    Eligibility
	CyclistID string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("rule violation: cyclist %s: %s", v.CyclistID, v.Reason)
}

// Is makes a Violation match model.ErrRuleViolation.
func (v *Violation) Is(target error) bool {
	return target == model.ErrRuleViolation
}

// ReasonOf extracts the Eligibility carried by err, if any.
func ReasonOf(err error) (Eligibility, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v.Reason, true
	}
	return "", false
}
