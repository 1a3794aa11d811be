package repository

import "errors"

// ErrInvalidLimit is returned for non-positive list limits.
var ErrInvalidLimit = errors.New("invalid limit")
