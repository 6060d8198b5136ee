package service

import "errors"

// ErrTierNotFound is returned when an advancement targets a tier that does not exist.
var ErrTierNotFound = errors.New("no such goal tier")
