package testutil

import "time"

// ExecutionRecord holds the start and end times of a single node execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Record is a value observed by the recorder node.
type Record struct {
	NodeID string
	Index  int
	Value  any
}
