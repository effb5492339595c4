package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Publish(ctx, Event{Type: NodeStarted})
		}()
	}
	wg.Wait()
	r.Publish(ctx, Event{Type: RunFinished, RunID: "r"})

	assert.Len(t, r.Events(), 21)
	assert.Len(t, r.OfType(NodeStarted), 20)
	assert.Equal(t, "r", r.OfType(RunFinished)[0].RunID)
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, Nop{}, b}.Publish(context.Background(), Event{Type: Log})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
