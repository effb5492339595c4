/*
Package board holds the authoring model of a flow: nodes with typed pins,
variables, comments and layers.

A Board is only mutated through Commands. Every Command knows how to undo
itself, is recorded on the board's history stacks and has a JSON wire form
(Envelope) so that clients can submit and replay them.

Pins are connected by id. Two structural rules hold at all times:

  - a data input pin depends on at most one pin;
  - an execution output pin is connected to at most one pin.

ConnectPins enforces both by displacing previous edges, and records what it
displaced so that Undo restores the exact prior state.
*/
package board
