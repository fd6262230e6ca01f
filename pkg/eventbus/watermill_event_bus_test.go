package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/taskflow/pkg/channels/gochannel"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	received := make(chan *events.WorkflowExecutionPaused, 1)
	require.NoError(t, bus.Handle(events.WorkflowExecutionPausedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowExecutionPaused)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Subscribe(ctx))

	event := events.NewWorkflowExecutionPaused("w1", "exec-1", []string{"ask"})
	require.NoError(t, bus.Publish(ctx, "exec-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "w1", got.WorkflowID)
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, []string{"ask"}, got.WaitingTaskIDs)
		assert.Equal(t, events.WorkflowExecutionPausedEvent, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
