package token

import "errors"

var (
	ErrMalformed   = errors.New("malformed credential")
	ErrMissingRole = errors.New("credential payload has no role")
)
