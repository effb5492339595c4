package board

import (
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/flowgrid/internal/nodeid"
)

// Command is a serialisable, invertible board mutation. Execute must leave
// the board unchanged when it returns an error.
type Command interface {
	Kind() string
	CommandID() string
	Execute(b *Board) error
	Undo(b *Board) error

	assignID()
}

// Base carries the identity shared by all commands. Embed it in a command
// type to satisfy the identity half of Command.
type Base struct {
	ID string `json:"id"`
}

func (c *Base) CommandID() string { return c.ID }

func (c *Base) assignID() {
	if c.ID == "" {
		c.ID = nodeid.New()
	}
}

// Command kinds as they appear in the wire form.
const (
	KindConnectPins    = "connect_pins"
	KindDisconnectPins = "disconnect_pins"
	KindCopyPaste      = "copy_paste"
	KindAddNode        = "add_node"
	KindRemoveNode     = "remove_node"
	KindMoveNode       = "move_node"
	KindUpsertVariable = "upsert_variable"
	KindRemoveVariable = "remove_variable"
	KindUpsertComment  = "upsert_comment"
	KindRemoveComment  = "remove_comment"
)

var commandKinds = map[string]func() Command{
	KindConnectPins:    func() Command { return &ConnectPins{} },
	KindDisconnectPins: func() Command { return &DisconnectPins{} },
	KindCopyPaste:      func() Command { return &CopyPaste{} },
	KindAddNode:        func() Command { return &AddNode{} },
	KindRemoveNode:     func() Command { return &RemoveNode{} },
	KindMoveNode:       func() Command { return &MoveNode{} },
	KindUpsertVariable: func() Command { return &UpsertVariable{} },
	KindRemoveVariable: func() Command { return &RemoveVariable{} },
	KindUpsertComment:  func() Command { return &UpsertComment{} },
	KindRemoveComment:  func() Command { return &RemoveComment{} },
}

// Envelope is the tagged wire form of a Command.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps a command in its envelope.
func Encode(cmd Command) (Envelope, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s command: %w", cmd.Kind(), err)
	}
	return Envelope{Type: cmd.Kind(), Data: data}, nil
}

// EncodeAll wraps every command in its envelope.
func EncodeAll(cmds []Command) ([]Envelope, error) {
	out := make([]Envelope, 0, len(cmds))
	for _, cmd := range cmds {
		env, err := Encode(cmd)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// Decode reconstructs a command from its envelope.
func Decode(env Envelope) (Command, error) {
	ctor, ok := commandKinds[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	cmd := ctor()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, cmd); err != nil {
			return nil, fmt.Errorf("decoding %s command: %w", env.Type, err)
		}
	}
	return cmd, nil
}

// DecodeAll reconstructs every command of a batch.
func DecodeAll(envs []Envelope) ([]Command, error) {
	out := make([]Command, 0, len(envs))
	for i, env := range envs {
		cmd, err := Decode(env)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}
