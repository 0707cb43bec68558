package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-erp/atelier-erp/internal/platform/db"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// allocation retries before a duplicate number conflict is surfaced.
const maxAllocateAttempts = 3

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quote, error)
	ListByProject(ctx context.Context, projectID int64) ([]Quote, error)
	ListExpiredCandidates(ctx context.Context, asOf time.Time) ([]int64, error)
}

// MetricsPort receives domain counters.
type MetricsPort interface {
	SequenceConflict()
	TransitionApplied(family, status string)
}

// AuditPort records domain events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the quote lifecycle. Every status transition runs in
// a single transaction together with the project progress rollup.
type Service struct {
	repo    RepositoryPort
	metrics MetricsPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewService constructs a quote service.
func NewService(repo RepositoryPort, metrics MetricsPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, metrics: metrics, audit: audit, logger: logger}
}

// CreateInput describes a quote creation payload.
type CreateInput struct {
	ProjectID  int64
	AmountHT   string
	ValidUntil time.Time
	// Date drives the numbering year bucket; zero means now.
	Date time.Time
}

// Create allocates a DEV number and persists the quote in one transaction.
// On a duplicate-number conflict the whole transaction is retried a bounded
// number of times before Conflict is surfaced to the caller.
func (s *Service) Create(ctx context.Context, input CreateInput) (Quote, error) {
	if input.ProjectID == 0 {
		return Quote{}, ErrValidation
	}
	amount, err := shared.ParseAmount(input.AmountHT)
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: %w", err)
	}
	if input.ValidUntil.IsZero() {
		return Quote{}, fmt.Errorf("quotes: validity date required: %w", shared.ErrBadRequest)
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	var created Quote
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.AllocateNumber(ctx, date)
			if err != nil {
				return err
			}
			q := Quote{
				Number:     number,
				ProjectID:  input.ProjectID,
				AmountHT:   amount,
				ValidUntil: input.ValidUntil,
				Status:     StatusPending,
			}
			id, err := tx.Create(ctx, q)
			if err != nil {
				return err
			}
			q.ID = id
			created = q
			return nil
		})
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err) || db.IsSerializationFailure(err) {
			if s.metrics != nil {
				s.metrics.SequenceConflict()
			}
			continue
		}
		return Quote{}, err
	}
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: allocate number: %w", shared.ErrConflict)
	}
	s.recordAudit(ctx, "QUOTE_CREATE", created.ID, map[string]any{"number": created.Number})
	return created, nil
}

// Get returns a quote by ID.
func (s *Service) Get(ctx context.Context, id int64) (Quote, error) {
	return s.repo.Get(ctx, id)
}

// ListByProject returns a project's quotes.
func (s *Service) ListByProject(ctx context.Context, projectID int64) ([]Quote, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// Transition applies a status change. The target edge is checked against
// the transition table on the row locked inside the transaction, and the
// owning project's progress is recomputed in the same transaction whenever
// the edge touches a counted status. Any failure rolls the whole thing
// back, including the status write.
func (s *Service) Transition(ctx context.Context, id int64, target Status) (Quote, error) {
	if !target.Valid() {
		return Quote{}, &InvalidTransitionError{To: target}
	}
	var result Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(q.Status, target) {
			return &InvalidTransitionError{From: q.Status, To: target}
		}
		if err := tx.UpdateStatus(ctx, id, target); err != nil {
			return err
		}
		if rollupNeeded(q.Status, target) {
			if _, err := tx.RecomputeProjectProgress(ctx, q.ProjectID); err != nil {
				return err
			}
		}
		q.Status = target
		result = q
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	if s.metrics != nil {
		s.metrics.TransitionApplied("DEV", string(target))
	}
	s.recordAudit(ctx, "QUOTE_TRANSITION", id, map[string]any{"status": string(target)})
	return result, nil
}

// Delete removes a quote regardless of status. When the quote counted
// toward progress the owning project is recomputed in the same transaction
// so the aggregate never reflects a deleted row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		if q.Status.counted() {
			if _, err := tx.RecomputeProjectProgress(ctx, q.ProjectID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "QUOTE_DELETE", id, nil)
	return nil
}

// ExpireOverdue transitions every non-terminal quote past its validity
// date to EXPIRED. Each quote gets its own transaction so one failure does
// not block the sweep; the first error is reported after the pass.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ListExpiredCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	expired := 0
	var firstErr error
	for _, id := range ids {
		if _, err := s.Transition(ctx, id, StatusExpired); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if s.logger != nil {
				s.logger.Warn("expire quote", slog.Int64("quote_id", id), slog.Any("error", err))
			}
			continue
		}
		expired++
	}
	return expired, firstErr
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "quotes", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
