package store

import "errors"

var (
	ErrInvalidConfidence = errors.New("confidence must be between 0.5 and 1.0")
	ErrMissingEntity     = errors.New("entity does not exist")
	ErrNotInitialized    = errors.New("graph store is not initialized")
)
