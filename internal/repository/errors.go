package repository

import "errors"

// ErrNotFound reports that the requested record does not exist in the store.
var ErrNotFound = errors.New("repository: record not found")
