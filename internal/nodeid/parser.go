// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"strings"
)

// separator splits the owner and pin parts of a PinRef.
const separator = ":"

// String serializes the reference into its canonical `owner:pin` form.
func (r PinRef) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Owner + separator + r.Pin
}

// ParsePinRef creates a PinRef by parsing its canonical string representation.
func ParsePinRef(raw string) (PinRef, error) {
	if raw == "" {
		return PinRef{}, fmt.Errorf("pin reference cannot be empty")
	}

	owner, pin, ok := strings.Cut(raw, separator)
	if !ok {
		return PinRef{}, fmt.Errorf("pin reference %q is missing the %q separator", raw, separator)
	}
	if owner == "" || pin == "" {
		return PinRef{}, fmt.Errorf("pin reference %q has an empty segment", raw)
	}
	if strings.Contains(pin, separator) {
		return PinRef{}, fmt.Errorf("pin reference %q has too many segments", raw)
	}
	return PinRef{Owner: owner, Pin: pin}, nil
}
