package graph

import (
	"errors"

	"github.com/OFFIS-RIT/kgstore/pkg/store"
)

// Error kinds surfaced by the graph store. Use errors.Is to tell them apart.
var (
	ErrInvalidConfidence = store.ErrInvalidConfidence
	ErrMissingEntity     = store.ErrMissingEntity
	ErrNotInitialized    = store.ErrNotInitialized
	ErrEmptyID           = errors.New("entity id must not be empty")
)
