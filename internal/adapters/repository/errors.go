package repository

import "errors"

// Sentinel kinds for match store errors.
var (
	ErrNotFound     = errors.New("match not found")
	ErrInvalidMatch = errors.New("invalid match")
)
