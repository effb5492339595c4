// Package session runs compiled boards and keeps track of the runs in
// flight.
//
// A Manager registers every run under its id together with the function
// that cancels it, so any entry point (the CLI, the HTTP API) can start,
// poll or cancel a run. Execution races against cancellation: when a run is
// cancelled the Manager stops waiting for it, gives the logs and trace
// collected so far a bounded window to reach the log store, and reports the
// run as cancelled rather than failed. Node behaviors still in flight are
// not interrupted beyond seeing their context cancelled.
package session
