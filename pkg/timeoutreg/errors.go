package timeoutreg

import "errors"

// ErrExists is returned by Push when the id is already registered.
var ErrExists = errors.New("timeoutreg: id already exists")
