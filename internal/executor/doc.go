/*
Package executor drives a compiled graph.

An ExecutionContext walks the graph from a start node. Data flows by pull:
when a node evaluates an input pin, the context resolves the pin's single
upstream output and, if that output has no value yet and its node is pure,
runs the producer on demand. Control flows by push: a node activates
execution output pins while it runs, and once it returns successfully the
context schedules every node connected to an active output.

Pure nodes feeding a node are re-run right before that node triggers, once
per trigger, so that values derived from loop items or variables are always
fresh.

Sub-contexts give parallel work its own value scope. A sub-context reads
through to its parent and writes only to itself; its trace and logs are merged
back into the parent with PushSubContext.
*/
package executor
