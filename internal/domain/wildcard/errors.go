package wildcard

import (
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Power-up transition errors.
var (
	ErrUnknownKind  = errors.New("unknown power-up kind")
	ErrNotUnused    = fmt.Errorf("%w: power-up is not unused", model.ErrRuleViolation)
	ErrNotActiveFor = fmt.Errorf("%w: power-up is not active for this race", model.ErrRuleViolation)
	ErrRaceStarted  = fmt.Errorf("%w: race has already started", model.ErrRuleViolation)
)
