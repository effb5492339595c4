// internal/nodeid/types.go
package nodeid

// PinRef addresses a single pin on a board by its owner and pin id.
type PinRef struct {
	Owner string
	Pin   string
}

// NewPinRef creates a new pin reference.
func NewPinRef(owner, pin string) PinRef {
	return PinRef{Owner: owner, Pin: pin}
}

// IsZero reports whether the reference is empty.
func (r PinRef) IsZero() bool {
	return r.Owner == "" && r.Pin == ""
}
