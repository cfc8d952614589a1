package database

import "errors"

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrAlreadyDecided         = errors.New("booking is no longer pending")
	ErrConcurrentModification = errors.New("booking was changed concurrently")
	ErrDuplicateAssignee      = errors.New("assignee already on booking")
	ErrInvalidTransition      = errors.New("invalid booking status transition")
)
