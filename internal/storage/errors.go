package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested key does not exist.
	// The ledger reads an absent balance or allowance as 0.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key
	// already exists in a write-once store (ledger meta).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
