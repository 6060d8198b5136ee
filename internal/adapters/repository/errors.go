package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("tier not found")
	ErrDuplicateTier = errors.New("duplicate tier level for unit and period")
)
