package domain

import "errors"

// Error taxonomy for a validation run. ErrConnection aborts the whole run;
// the others are caught at the rule boundary and become that rule's outcome.
var (
	ErrConnection        = errors.New("connection error")
	ErrSchema            = errors.New("schema error")
	ErrValidationFailure = errors.New("validation failure")
	ErrExecution         = errors.New("execution error")

	ErrInvalidRule = errors.New("invalid rule")
	ErrUnknownRule = errors.New("unknown rule")
)
