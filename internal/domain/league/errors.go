package league

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// League errors.
var (
	ErrInvalidName    = fmt.Errorf("%w: league name must be 1 to %d characters", model.ErrRuleViolation, maxNameLength)
	ErrInvalidSeason  = fmt.Errorf("%w: league season must be positive", model.ErrRuleViolation)
	ErrRegionRequired = fmt.Errorf("%w: regional leagues need a region", model.ErrRuleViolation)
	ErrGlobalLeague   = fmt.Errorf("%w: global league membership follows the season", model.ErrRuleViolation)
	ErrSeasonMismatch = fmt.Errorf("%w: team plays a different season", model.ErrRuleViolation)
	ErrAlreadyMember  = fmt.Errorf("%w: team is already a member", model.ErrRuleViolation)
	ErrNotOwner       = fmt.Errorf("%w: only the owner may delete a league", model.ErrRuleViolation)
	ErrCodeExhausted  = fmt.Errorf("no free join code found: %w", model.ErrTransientStorage)
)
