package scoring

import (
	"errors"
	"fmt"
)

// Sentinel kinds for scoring errors.
var (
	ErrInvalidTier    = errors.New("invalid tier")
	ErrUnknownRuleSet = errors.New("unknown rule set")
)

// InvalidTierError reports a tier label that does not match T<digits>.
type InvalidTierError struct {
	Label string
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("invalid tier %q: want T followed by digits", e.Label)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidTier).
func (e *InvalidTierError) Unwrap() error { return ErrInvalidTier }
