package board

import "errors"

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrNodeExists       = errors.New("node already exists")
	ErrPinNotFound      = errors.New("pin not found")
	ErrSelfConnection   = errors.New("cannot connect a node or pin to itself")
	ErrPinDirection     = errors.New("pins must be connected from an output to an input")
	ErrKindMismatch     = errors.New("execution and data pins cannot be connected")
	ErrVariableNotFound = errors.New("variable not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrHistoryMismatch  = errors.New("commands do not match the board history")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
	ErrUnknownCommand   = errors.New("unknown command type")
)
