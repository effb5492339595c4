/*
Package graph compiles a board into the immutable structure a run executes.

Compile works in two passes, like a linker. The first pass allocates an arena
of InternalNode and InternalPin values, one per board node, node pin and
layer pin, resolving node behaviors and parsing pin types and defaults. The
second pass resolves every edge id to an arena index. After Compile returns,
only pin value cells and exec activation flags change, each guarded by the
pin's own lock.

Layer pins become relay pins: they have no owning node and traversal passes
through them as if the two sides were wired directly.
*/
package graph
