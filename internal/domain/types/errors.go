package types

import "errors"

// ErrInvalidInput marks a malformed request body.
var ErrInvalidInput = errors.New("invalid input")
