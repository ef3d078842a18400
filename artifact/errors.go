package artifact

import "errors"

// ErrNotFound is returned when no artifact exists for a session / id pair.
// Callers should branch with errors.Is.
var ErrNotFound = errors.New("artifact not found")
