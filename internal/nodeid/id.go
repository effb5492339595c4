package nodeid

import "github.com/google/uuid"

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	return uuid.Validate(id) == nil
}
