package models

import "errors"

// ErrDuplicate is returned by stores when an insert collides with a unique key.
var ErrDuplicate = errors.New("duplicate record")
