package scoring

import (
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Scoring errors.
var (
	ErrNoGcForOneDay = fmt.Errorf("%w: one-day races have no general classification", model.ErrRuleViolation)
	ErrNoResults     = errors.New("no results for stage")
)
