package errors

import "errors"

var (
	ErrInvalidPollInput       = errors.New("invalid poll input")
	ErrNotEnoughOptions       = errors.New("a poll needs at least two options")
	ErrPollNotFound           = errors.New("poll not found")
	ErrPollNotOpen            = errors.New("poll is not open")
	ErrChannelHasOpenPoll     = errors.New("channel already has an open poll")
	ErrNoBallotsSubmitted     = errors.New("no ballots have been submitted")
	ErrTallyFailed            = errors.New("tally aborted on internal invariant violation")
	ErrConflict               = errors.New("poll conflict")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
)
