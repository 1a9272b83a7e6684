package errors

import "errors"

var (
	ErrInvalidBallotInput     = errors.New("invalid ballot input")
	ErrBallotNotFound         = errors.New("ballot not found")
	ErrPollNotFound           = errors.New("poll not found")
	ErrPollNotOpen            = errors.New("poll is not open")
	ErrUnknownOption          = errors.New("option does not belong to the poll")
	ErrBallotAlreadySubmitted = errors.New("ballot has already been submitted")
	ErrConflict               = errors.New("ballot conflict")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
)
