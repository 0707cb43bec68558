package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-erp/atelier-erp/internal/platform/db"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// allocation retries before a duplicate number conflict is surfaced.
const maxAllocateAttempts = 3

// renderConcurrency bounds parallel PDF builds during a project-wide render.
const renderConcurrency = 4

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	ListByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetSnapshot(ctx context.Context, id int64) (Snapshot, error)
}

// MetricsPort receives domain counters.
type MetricsPort interface {
	SequenceConflict()
	TransitionApplied(family, status string)
	RenderCompleted(outcome string)
}

// AuditPort records domain events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RendererPort turns an order snapshot into PDF bytes.
type RendererPort interface {
	RenderOrder(snap Snapshot, params map[string]string, generatedAt time.Time) ([]byte, error)
}

// ArtifactPort stores rendered documents.
type ArtifactPort interface {
	Save(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// ParamsPort reads organisation parameters.
type ParamsPort interface {
	All(ctx context.Context) (map[string]string, error)
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo           RepositoryPort
	metrics        MetricsPort
	audit          AuditPort
	renderer       RendererPort
	artifacts      ArtifactPort
	params         ParamsPort
	logger         *slog.Logger
	supervisorHash string
}

// NewService constructs a purchase order service. supervisorHash is the
// bcrypt hash the guarded-deletion credential is checked against.
func NewService(repo RepositoryPort, metrics MetricsPort, audit AuditPort, renderer RendererPort, artifacts ArtifactPort, params ParamsPort, logger *slog.Logger, supervisorHash string) *Service {
	return &Service{
		repo:           repo,
		metrics:        metrics,
		audit:          audit,
		renderer:       renderer,
		artifacts:      artifacts,
		params:         params,
		logger:         logger,
		supervisorHash: supervisorHash,
	}
}

// LineInput is one order line in a write payload.
type LineInput struct {
	Designation string
	Quantity    string
	UnitPrice   string
}

// CreateInput describes an order creation payload.
type CreateInput struct {
	ProjectID    int64
	SupplierID   int64
	CategoryID   int64
	Direction    Direction
	AmountHT     string
	DeliveryMode DeliveryMode
	SiteAddress  string
	Comment      string
	Lines        []LineInput
	// Date drives the numbering year bucket; zero means now.
	Date time.Time
}

// UpdateInput describes an order update payload. Lines replace the existing
// set wholesale.
type UpdateInput struct {
	SupplierID   int64
	CategoryID   int64
	Direction    Direction
	AmountHT     string
	DeliveryMode DeliveryMode
	SiteAddress  string
	Comment      string
	Lines        []LineInput
}

func buildLines(inputs []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		if in.Designation == "" {
			return nil, fmt.Errorf("purchasing: line %d needs a designation: %w", i+1, shared.ErrBadRequest)
		}
		qty, err := shared.ParseAmount(in.Quantity)
		if err != nil {
			return nil, fmt.Errorf("purchasing: line %d quantity: %w", i+1, err)
		}
		price, err := shared.ParseAmount(in.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("purchasing: line %d unit price: %w", i+1, err)
		}
		lines = append(lines, Line{
			Designation:  in.Designation,
			Quantity:     qty,
			UnitPrice:    price,
			LineAmount:   LineTotal(qty, price),
			DisplayOrder: i,
		})
	}
	return lines, nil
}

func (s *Service) assemble(ctx context.Context, projectID, supplierID, categoryID int64, direction Direction, rawAmount string, mode DeliveryMode, siteAddress, comment string, lineInputs []LineInput) (PurchaseOrder, error) {
	if projectID == 0 || supplierID == 0 || categoryID == 0 {
		return PurchaseOrder{}, ErrValidation
	}
	if !direction.Valid() {
		return PurchaseOrder{}, fmt.Errorf("purchasing: unknown direction %q: %w", direction, shared.ErrBadRequest)
	}
	if mode == "" {
		mode = DeliveryNone
	}
	if mode != DeliveryNone && mode != DeliveryWorkshop && mode != DeliverySite {
		return PurchaseOrder{}, fmt.Errorf("purchasing: unknown delivery mode %q: %w", mode, shared.ErrBadRequest)
	}
	lines, err := buildLines(lineInputs)
	if err != nil {
		return PurchaseOrder{}, err
	}
	amount, err := shared.ParseAmount(rawAmount)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("purchasing: %w", err)
	}
	// Lines are the source of truth for the total when present.
	if len(lines) > 0 {
		amount = decimal.Zero
		for _, l := range lines {
			amount = amount.Add(l.LineAmount)
		}
	}
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
		return PurchaseOrder{}, err
	}
	return PurchaseOrder{
		ProjectID:      projectID,
		SupplierID:     supplierID,
		CategoryID:     categoryID,
		Direction:      direction,
		Status:         StatusDraft,
		AmountHT:       amount,
		OverheadAmount: ComputeOverhead(amount, category.OverheadPercent),
		DeliveryMode:   mode,
		SiteAddress:    siteAddress,
		Comment:        comment,
		Lines:          lines,
	}, nil
}

// Create allocates a BDC number and persists the order in one transaction.
// On a duplicate-number conflict the whole transaction is retried a bounded
// number of times before Conflict is surfaced to the caller.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	po, err := s.assemble(ctx, input.ProjectID, input.SupplierID, input.CategoryID,
		input.Direction, input.AmountHT, input.DeliveryMode, input.SiteAddress, input.Comment, input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.AllocateNumber(ctx, date)
			if err != nil {
				return err
			}
			po.Number = number
			id, err := tx.Create(ctx, po)
			if err != nil {
				return err
			}
			po.ID = id
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
		return PurchaseOrder{}, err
	}
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("purchasing: allocate number: %w", shared.ErrConflict)
	}
	s.recordAudit(ctx, "PO_CREATE", po.ID, map[string]any{"number": po.Number})
	return po, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// ListByProject returns a project's orders.
func (s *Service) ListByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// ListCategories returns the purchase category reference data.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// ListSuppliers returns the supplier reference data.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// Update rewrites an editable order. The line set is replaced wholesale and
// amount and overhead are recomputed; orders in a terminal status reject
// edits.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (PurchaseOrder, error) {
	var result PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return ErrImmutable
		}
		po, err := s.assemble(ctx, current.ProjectID, input.SupplierID, input.CategoryID,
			input.Direction, input.AmountHT, input.DeliveryMode, input.SiteAddress, input.Comment, input.Lines)
		if err != nil {
			return err
		}
		po.ID = current.ID
		po.Number = current.Number
		po.Status = current.Status
		po.ReceivedAt = current.ReceivedAt
		if err := tx.Update(ctx, po); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, id, po.Lines); err != nil {
			return err
		}
		result = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_UPDATE", id, nil)
	return result, nil
}

// Transition applies a status change against the transition table. Moving to
// RECEIVED stamps the reception timestamp in the same write.
func (s *Service) Transition(ctx context.Context, id int64, target Status) (PurchaseOrder, error) {
	if !target.Valid() {
		return PurchaseOrder{}, &InvalidTransitionError{To: target}
	}
	var result PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(po.Status, target) {
			return &InvalidTransitionError{From: po.Status, To: target}
		}
		var receivedAt *time.Time
		if target == StatusReceived {
			now := time.Now()
			receivedAt = &now
		}
		if err := tx.UpdateStatus(ctx, id, target, receivedAt); err != nil {
			return err
		}
		po.Status = target
		if receivedAt != nil {
			po.ReceivedAt = receivedAt
		}
		result = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.metrics != nil {
		s.metrics.TransitionApplied("BDC", string(target))
	}
	s.recordAudit(ctx, "PO_TRANSITION", id, map[string]any{"status": string(target)})
	return result, nil
}

// Delete removes an order. Deleting a VALIDATED order is guarded: the caller
// must present the supervisor code, checked against the configured bcrypt
// hash. A missing code is a bad request; a wrong one is unauthorized. The
// credential check happens before any write.
func (s *Service) Delete(ctx context.Context, id int64, supervisorCode string) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status == StatusValidated {
			if supervisorCode == "" {
				return ErrCredentialRequired
			}
			if err := bcrypt.CompareHashAndPassword([]byte(s.supervisorHash), []byte(supervisorCode)); err != nil {
				return ErrCredentialMismatch
			}
		}
		number = po.Number
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.artifacts != nil && number != "" {
		if err := s.artifacts.Delete(ctx, ArtifactName(number)); err != nil {
			s.log().Warn("delete order artifact", slog.String("number", number), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, "PO_DELETE", id, map[string]any{"number": number})
	return nil
}

// ArtifactName is the stable storage key for an order's rendered document.
func ArtifactName(number string) string {
	return number + ".pdf"
}

// RenderOrder builds the order PDF and stores it under the order number.
// A zero generatedAt pins the document timestamp to now; callers that need
// byte-identical output pass a fixed timestamp.
func (s *Service) RenderOrder(ctx context.Context, id int64, generatedAt time.Time) (string, error) {
	snap, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		return "", err
	}
	params, err := s.params.All(ctx)
	if err != nil {
		return "", err
	}
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	data, err := s.renderer.RenderOrder(snap, params, generatedAt)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RenderCompleted("failure")
		}
		return "", fmt.Errorf("purchasing: render %s: %w", snap.Order.Number, shared.ErrRenderFailure)
	}
	name := ArtifactName(snap.Order.Number)
	if err := s.artifacts.Save(ctx, name, data); err != nil {
		if s.metrics != nil {
			s.metrics.RenderCompleted("failure")
		}
		return "", err
	}
	if s.metrics != nil {
		s.metrics.RenderCompleted("success")
	}
	s.recordAudit(ctx, "PO_RENDER", id, map[string]any{"artifact": name})
	return name, nil
}

// RenderProjectOrders renders every order of a project, a few at a time.
// The first failure cancels the remaining renders.
func (s *Service) RenderProjectOrders(ctx context.Context, projectID int64) ([]string, error) {
	orders, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(orders))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(renderConcurrency)
	for i, po := range orders {
		g.Go(func() error {
			name, err := s.RenderOrder(ctx, po.ID, time.Time{})
			if err != nil {
				return err
			}
			names[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchase_orders", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
