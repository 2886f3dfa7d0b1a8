package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDataTypes(t *testing.T) {
	tests := []struct {
		data EventData
		want EventType
	}{
		{&RunStartedData{}, RunStarted},
		{&BackendSelectedData{}, BackendSelected},
		{&CostEvaluatedData{}, CostEvaluated},
		{&RunCompletedData{}, RunCompleted},
		{&RunFailedData{}, RunFailed},
		{&ArtifactsUploadedData{}, ArtifactsUploaded},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.data.EventType())
		assert.Contains(t, AllTypes, tt.want)
	}
}

func TestBus_EmitAndUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	unsubscribe := bus.Subscribe(CostEvaluated, func(e *Event) { got = append(got, e) })
	var completed int
	bus.Subscribe(RunCompleted, func(*Event) { completed++ })

	bus.Emit("experiment", &CostEvaluatedData{RunID: "r1", Iteration: 1, Value: -2.5})
	bus.Emit("experiment", &RunCompletedData{RunID: "r1"})
	require.Len(t, got, 1)
	assert.Equal(t, CostEvaluated, got[0].Type)
	assert.Equal(t, "experiment", got[0].Module)
	assert.Equal(t, -2.5, got[0].Data.(*CostEvaluatedData).Value)
	assert.Equal(t, 1, completed)

	unsubscribe()
	unsubscribe()
	bus.Emit("experiment", &CostEvaluatedData{RunID: "r1", Iteration: 2})
	assert.Len(t, got, 1)
}

func TestBus_NilIsSafe(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Emit("x", &RunStartedData{}) })
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var mu sync.Mutex
	count := 0
	bus.Subscribe(CostEvaluated, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bus.Emit("test", &CostEvaluatedData{Iteration: i})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}

func TestEvent_MarshalJSON(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var raw []byte
	bus.Subscribe(RunFailed, func(e *Event) {
		var err error
		raw, err = json.Marshal(e)
		require.NoError(t, err)
	})
	bus.Emit("experiment", &RunFailedData{RunID: "r2", Stage: "optimize", Error: "job failed"})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "RUN_FAILED", decoded["type"])
	assert.Equal(t, "optimize", decoded["data"].(map[string]any)["stage"])
}
