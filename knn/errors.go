package knn

import "errors"

var (
	// ErrInvalidInput is returned for inputs features cannot be derived from:
	// days < 1, or negative or non-finite miles and receipts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyReferenceSet is returned when an index has no points to search.
	ErrEmptyReferenceSet = errors.New("empty reference set")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
)
