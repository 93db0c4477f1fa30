package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrValidation             = errors.New("validation failed")
	ErrNotClaimable           = errors.New("generation job not claimable")
	ErrInvalidStateTransition = errors.New("invalid job state transition")
	ErrProviderFailure        = errors.New("provider failure")
	ErrChargeRejected         = errors.New("charge rejected")
)
