package jobs

import (
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func taskID(t *testing.T, opts []asynq.Option) string {
	t.Helper()
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			return opt.Value().(string)
		}
	}
	t.Fatal("no task id option")
	return ""
}

func TestRenderOrderTaskIDIsDeterministic(t *testing.T) {
	_, first, err := NewRenderOrderTask(RenderOrderPayload{OrderID: 42})
	require.NoError(t, err)
	_, second, err := NewRenderOrderTask(RenderOrderPayload{OrderID: 42})
	require.NoError(t, err)

	require.Equal(t, taskID(t, first), taskID(t, second),
		"same order must map to the same task id so pending renders deduplicate")

	_, other, err := NewRenderOrderTask(RenderOrderPayload{OrderID: 43})
	require.NoError(t, err)
	require.NotEqual(t, taskID(t, first), taskID(t, other))
}

func TestRenderOrderTaskPayload(t *testing.T) {
	task, _, err := NewRenderOrderTask(RenderOrderPayload{OrderID: 7})
	require.NoError(t, err)
	require.Equal(t, TaskTypeRenderOrder, task.Type())

	var payload RenderOrderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(7), payload.OrderID)
}

func TestExpireQuotesTask(t *testing.T) {
	task := NewExpireQuotesTask()
	require.Equal(t, TaskTypeExpireQuotes, task.Type())
	require.Empty(t, task.Payload())
}
