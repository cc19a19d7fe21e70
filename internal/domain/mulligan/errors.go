package mulligan

import "errors"

// Sentinel kinds for mulligan planning.
var (
	ErrNoCheckins = errors.New("no check-ins to base a mulligan on")
	ErrWeekFull   = errors.New("every day of the week already has a check-in")
)
