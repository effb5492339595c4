package executor

import (
	"context"

	"github.com/specialistvlad/flowgrid/internal/graph"
	"github.com/zclconf/go-cty/cty"
)

// ForEachSpec describes a parallel fan-out from the current node. The pin
// fields name pins of that node.
type ForEachSpec struct {
	Items []cty.Value

	// ItemPin is the exec output whose downstream nodes run once per item.
	ItemPin string
	// ValuePin and IndexPin are data outputs overridden in each branch.
	ValuePin string
	IndexPin string
	// DonePin is activated once every branch has finished.
	DonePin string

	// MaxConcurrent bounds the branches in flight. Zero runs every branch at
	// once. A negative value uses the run's limit.
	MaxConcurrent int
}

// ForEachResult summarises a fan-out.
type ForEachResult struct {
	Tasks    int
	Failures []error
}

type branch struct {
	index  int
	item   cty.Value
	target *graph.InternalNode
}

type branchResult struct {
	sub *ExecutionContext
	err error
}

// ForEachParallel runs, for every item and every node connected to
// spec.ItemPin, a sub-context in which the value and index pins hold that
// item. Branches run on their own goroutines; with MaxConcurrent set, a new
// branch starts whenever one in flight completes. Traces are merged in
// completion order, failures are logged and collected without stopping
// other branches, and spec.DonePin is activated exactly once at the end.
func (ec *ExecutionContext) ForEachParallel(ctx context.Context, spec ForEachSpec) (ForEachResult, error) {
	itemIdx, err := ec.execPin(spec.ItemPin)
	if err != nil {
		return ForEachResult{}, err
	}
	valueIdx, err := ec.pin(spec.ValuePin)
	if err != nil {
		return ForEachResult{}, err
	}
	indexIdx, err := ec.pin(spec.IndexPin)
	if err != nil {
		return ForEachResult{}, err
	}
	if _, err := ec.execPin(spec.DonePin); err != nil {
		return ForEachResult{}, err
	}

	targets := ec.shared.Graph.ConnectedNodes(itemIdx)
	branches := make([]branch, 0, len(spec.Items)*len(targets))
	for i, item := range spec.Items {
		for _, target := range targets {
			branches = append(branches, branch{index: i, item: item, target: target})
		}
	}

	result := ForEachResult{Tasks: len(branches)}
	limit := spec.MaxConcurrent
	if limit < 0 {
		limit = ec.shared.MaxConcurrent
	}
	if limit <= 0 || limit > len(branches) {
		limit = len(branches)
	}

	results := make(chan branchResult, len(branches))
	launch := func(b branch) {
		sub := ec.CreateSubContext(b.index)
		sub.scope.set(valueIdx, b.item)
		sub.scope.set(indexIdx, cty.NumberIntVal(int64(b.index)))
		go func() {
			results <- branchResult{sub: sub, err: sub.Execute(ctx, b.target)}
		}()
	}

	next := 0
	for ; next < limit; next++ {
		launch(branches[next])
	}
	for done := 0; done < len(branches); done++ {
		r := <-results
		ec.PushSubContext(ctx, r.sub, r.err)
		if r.err != nil {
			result.Failures = append(result.Failures, r.err)
		}
		if next < len(branches) {
			launch(branches[next])
			next++
		}
	}

	if err := ec.ActivateExecPin(spec.DonePin); err != nil {
		return result, err
	}
	return result, nil
}
