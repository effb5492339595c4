// Package registry provides the central "glue" for the node catalog.
//
// The Registry maps node type names (e.g., "control.branch") to the compiled
// Go behaviors that declare a node's pins and run it. Boards reference node
// types by name only; compiling a board resolves every name through the
// registry, and pasting nodes refreshes their display metadata from it.
//
// During application startup, modules register their behaviors and the
// registry is validated so that broken declarations fail fast instead of
// at run time.
package registry
