package repository

import "errors"

var (
	// ErrNotFound indicates a query returned no rows.
	ErrNotFound = errors.New("repository: not found")
)
