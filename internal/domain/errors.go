package domain

import "errors"

// ErrInvalidJobSpec indicates a job spec with missing or empty fields.
var ErrInvalidJobSpec = errors.New("invalid job spec")

// ErrInvalidResult indicates a job result that violates its invariants,
// such as an error status without a message.
var ErrInvalidResult = errors.New("invalid job result")
