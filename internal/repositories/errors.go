package repositories

import "errors"

// ErrNotFound is returned by point lookups when no live row matches.
var ErrNotFound = errors.New("not found")
