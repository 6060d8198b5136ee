package api

import "errors"

// ErrBadRequest marks malformed path parameters or bodies.
var ErrBadRequest = errors.New("bad request")
