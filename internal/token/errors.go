package token

import "errors"

var (
	ErrMalformed    = errors.New("session token malformed")
	ErrBadSignature = errors.New("session token signature invalid")
	ErrExpired      = errors.New("session token expired")

	ErrEmptyKey   = errors.New("signing key is empty")
	ErrInvalidTTL = errors.New("session ttl must be at least one second")
)
