package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidWeekday = errors.New("invalid weekday")
)
