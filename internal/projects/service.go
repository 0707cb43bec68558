package projects

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Project, error)
	List(ctx context.Context) ([]Project, error)
	CountDocuments(ctx context.Context, projectID int64) (int, error)
}

// Service orchestrates project CRUD and the progress rollup.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs a project service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateInput describes a project creation payload.
type CreateInput struct {
	Code           string
	ClientRef      string
	PurchaseBudget string
}

// Create persists a new project. Progress starts at zero and is only ever
// written by the rollup afterwards.
func (s *Service) Create(ctx context.Context, input CreateInput) (Project, error) {
	p, err := projectFromInput(input)
	if err != nil {
		return Project{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Create(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	})
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

// Get returns a project by ID.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// Update edits the direct fields of a project. ProgressPercent is not part
// of the payload: it belongs to the rollup.
func (s *Service) Update(ctx context.Context, id int64, input CreateInput) (Project, error) {
	p, err := projectFromInput(input)
	if err != nil {
		return Project{}, err
	}
	p.ID = id
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, p)
	})
	if err != nil {
		return Project{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a project that owns no documents.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.repo.CountDocuments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrHasDocuments
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
}

// RecomputeProgress re-derives progress from the project's quotes in its own
// transaction. Quote transitions embed the same computation in their own
// transactions; this entry point exists for direct invocation and repair.
// It is idempotent: with no intervening writes, repeated calls persist the
// same value.
func (s *Service) RecomputeProgress(ctx context.Context, projectID int64) (int, error) {
	if _, err := s.repo.Get(ctx, projectID); err != nil {
		return 0, err
	}
	var percent int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quotes, err := tx.ListQuoteRollups(ctx, projectID)
		if err != nil {
			return err
		}
		percent = ComputeProgress(quotes)
		return tx.UpdateProgress(ctx, projectID, percent)
	})
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("project progress recomputed",
			slog.Int64("project_id", projectID), slog.Int("percent", percent))
	}
	return percent, nil
}

func projectFromInput(input CreateInput) (Project, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return Project{}, ErrValidation
	}
	budget, err := shared.ParseAmount(input.PurchaseBudget)
	if err != nil {
		return Project{}, err
	}
	return Project{Code: code, ClientRef: strings.TrimSpace(input.ClientRef), PurchaseBudget: budget}, nil
}
