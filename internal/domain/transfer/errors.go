package transfer

import (
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Rejections for staging requests that never reach the roster rules.
var (
	ErrCyclistDisabled = fmt.Errorf("%w: cyclist is disabled", model.ErrRuleViolation)
	ErrNotOwned        = fmt.Errorf("%w: cyclist is not on the team", model.ErrRuleViolation)
	ErrUnknownCyclist  = fmt.Errorf("unknown cyclist: %w", model.ErrNotFound)
	ErrInvalidAction   = errors.New("invalid transfer action")
)
