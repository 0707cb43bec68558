package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atelier-erp/atelier-erp/internal/jobs"
	"github.com/atelier-erp/atelier-erp/internal/purchasing"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// RenderOrderJob renders purchase order documents in the background so the
// request path never blocks on PDF layout.
type RenderOrderJob struct {
	Orders  *purchasing.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRenderOrderJob wires dependencies for the render handlers.
func NewRenderOrderJob(orders *purchasing.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *RenderOrderJob {
	return &RenderOrderJob{Orders: orders, Logger: logger, Metrics: metrics}
}

// Handle processes single-order render tasks.
func (j *RenderOrderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orders == nil {
		return errors.New("render order: handler not configured")
	}
	var payload RenderOrderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeRenderOrder)
	name, err := j.Orders.RenderOrder(ctx, payload.OrderID, time.Time{})
	err = tracker.End(err)
	if err != nil {
		// A vanished order will never render; do not retry.
		if errors.Is(err, shared.ErrNotFound) {
			return asynq.SkipRetry
		}
		j.log().Error("render order", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		return err
	}
	j.log().Info("order rendered", slog.Int64("order_id", payload.OrderID), slog.String("artifact", name))
	return nil
}

// HandleProject processes project-wide render tasks.
func (j *RenderOrderJob) HandleProject(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orders == nil {
		return errors.New("render project: handler not configured")
	}
	var payload RenderProjectPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeRenderProject)
	names, err := j.Orders.RenderProjectOrders(ctx, payload.ProjectID)
	err = tracker.End(err)
	if err != nil {
		j.log().Error("render project orders", slog.Int64("project_id", payload.ProjectID), slog.Any("error", err))
		return err
	}
	j.log().Info("project orders rendered", slog.Int64("project_id", payload.ProjectID), slog.Int("count", len(names)))
	return nil
}

func (j *RenderOrderJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
