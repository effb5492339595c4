package board

// ConnectPins wires an output pin to an input pin. Endpoints may live on
// nodes or layers.
type ConnectPins struct {
	Base
	FromNode string `json:"from_node"`
	FromPin  string `json:"from_pin"`
	ToNode   string `json:"to_node"`
	ToPin    string `json:"to_pin"`

	displaced []EdgeSnapshot
}

func (c *ConnectPins) Kind() string { return KindConnectPins }

func (c *ConnectPins) Execute(b *Board) error {
	snaps, err := b.connectPins(c.FromNode, c.FromPin, c.ToNode, c.ToPin)
	if err != nil {
		return err
	}
	c.displaced = snaps
	return nil
}

func (c *ConnectPins) Undo(b *Board) error {
	if c.displaced == nil {
		_, err := b.disconnectPins(c.FromNode, c.FromPin, c.ToNode, c.ToPin)
		return err
	}
	b.restoreSnapshots(c.displaced)
	return nil
}

// DisconnectPins removes the edge between two pins.
type DisconnectPins struct {
	Base
	FromNode string `json:"from_node"`
	FromPin  string `json:"from_pin"`
	ToNode   string `json:"to_node"`
	ToPin    string `json:"to_pin"`

	previous []EdgeSnapshot
}

func (c *DisconnectPins) Kind() string { return KindDisconnectPins }

func (c *DisconnectPins) Execute(b *Board) error {
	snaps, err := b.disconnectPins(c.FromNode, c.FromPin, c.ToNode, c.ToPin)
	if err != nil {
		return err
	}
	c.previous = snaps
	return nil
}

func (c *DisconnectPins) Undo(b *Board) error {
	if c.previous == nil {
		_, err := b.connectPins(c.FromNode, c.FromPin, c.ToNode, c.ToPin)
		return err
	}
	b.restoreSnapshots(c.previous)
	return nil
}
