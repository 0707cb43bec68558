package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueRender carries document rendering jobs; they are heavier than
	// the rest and get their own lane.
	QueueRender = "render"

	// TaskTypeRenderOrder renders one purchase order document.
	TaskTypeRenderOrder = "po:render"
	// TaskTypeRenderProject renders every order of a project.
	TaskTypeRenderProject = "po:render_project"
	// TaskTypeExpireQuotes sweeps overdue quotes to EXPIRED.
	TaskTypeExpireQuotes = "quotes:expire"
)

// RenderOrderPayload identifies the order to render.
type RenderOrderPayload struct {
	OrderID int64 `json:"order_id"`
}

// RenderProjectPayload identifies the project whose orders to render.
type RenderProjectPayload struct {
	ProjectID int64 `json:"project_id"`
}

// NewRenderOrderTask constructs a render task. The task ID is derived from
// the order ID, so enqueueing the same order twice while a render is pending
// collapses into a single job.
func NewRenderOrderTask(payload RenderOrderPayload) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	taskID := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s:%d", TaskTypeRenderOrder, payload.OrderID))
	opts := []asynq.Option{
		asynq.Queue(QueueRender),
		asynq.TaskID(taskID.String()),
		asynq.MaxRetry(3),
	}
	return asynq.NewTask(TaskTypeRenderOrder, data), opts, nil
}

// NewRenderProjectTask constructs a project-wide render task.
func NewRenderProjectTask(payload RenderProjectPayload) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueRender), asynq.MaxRetry(2)}
	return asynq.NewTask(TaskTypeRenderProject, data), opts, nil
}

// NewExpireQuotesTask constructs the nightly quote expiry task.
func NewExpireQuotesTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpireQuotes, nil)
}
