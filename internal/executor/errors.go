package executor

import (
	"errors"
	"fmt"
)

var (
	ErrNoValue       = errors.New("no value produced for pin")
	ErrDecode        = errors.New("pin value could not be decoded")
	ErrPinNotFound   = errors.New("pin not found on node")
	ErrNoCurrentNode = errors.New("no node is running in this context")
	ErrNotRunnable   = errors.New("node behavior cannot run")
)

// NodeError is a node failure annotated with its origin. Index is the
// iteration index of the sub-context the node ran in, or -1.
type NodeError struct {
	NodeID string
	Index  int
	Err    error
}

func (e *NodeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("node %s (iteration %d): %v", e.NodeID, e.Index, e.Err)
	}
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
