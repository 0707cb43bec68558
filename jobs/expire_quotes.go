package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atelier-erp/atelier-erp/internal/jobs"
	"github.com/atelier-erp/atelier-erp/internal/quotes"
)

// ExpireQuotesJob sweeps quotes past their validity date to EXPIRED.
// Registered on a nightly cron; safe to run at any time since the sweep only
// touches non-terminal overdue quotes.
type ExpireQuotesJob struct {
	Quotes  *quotes.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpireQuotesJob wires dependencies for the expiry handler.
func NewExpireQuotesJob(quotesSvc *quotes.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpireQuotesJob {
	return &ExpireQuotesJob{
		Quotes:  quotesSvc,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes quote expiry tasks.
func (j *ExpireQuotesJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotes == nil {
		return errors.New("expire quotes: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeExpireQuotes)
	count, err := j.Quotes.ExpireOverdue(ctx, j.clock())
	err = tracker.End(err)
	if err != nil {
		j.log().Error("expire quotes", slog.Any("error", err))
		return err
	}
	j.log().Info("quotes expired", slog.Int("count", count))
	return nil
}

func (j *ExpireQuotesJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
