package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("forbidden")
	ErrBlocked          = errors.New("submitter is blocked")
	ErrQueueUnavailable = errors.New("queue is not accepting requests")
	ErrConflict         = errors.New("conflicting state")
)
