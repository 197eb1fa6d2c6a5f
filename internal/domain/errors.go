package domain

import "errors"

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderCodeRequired     = errors.New("order code required")
	ErrOrderCodeTaken        = errors.New("order code taken")
	ErrOrderCodeExhausted    = errors.New("could not allocate a unique order code")
	ErrNameRequired          = errors.New("name required")
	ErrEmailRequired         = errors.New("email required")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrInvalidTicketCount    = errors.New("number of tickets must be between 1 and 10")
	ErrInvalidShowTime       = errors.New("unknown show time")
	ErrInsufficientSeats     = errors.New("not enough seats available")
	ErrOrderNotPending       = errors.New("order is no longer pending")
	ErrOrderAlreadyCancelled = errors.New("order is already cancelled")
	ErrOrderNotPaid          = errors.New("order is not paid")
)
