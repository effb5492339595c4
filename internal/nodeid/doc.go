/*
Package nodeid generates identifiers for board entities and formats pin
references.

Every node, pin, variable, comment, layer and run is identified by a random
UUID string. Pins are addressed across the board as `node:pin`, where `node`
is the id of the owning node or layer.
*/
package nodeid
