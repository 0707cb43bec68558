package purchasing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

type memoryOrderRepo struct {
	mu         sync.Mutex
	orders     map[int64]PurchaseOrder
	categories map[int64]Category
	suppliers  map[int64]Supplier
	nextID     int64
	seq        map[string]int64
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders: make(map[int64]PurchaseOrder),
		categories: map[int64]Category{
			1: {ID: 1, Code: "MAT", Label: "Materials", OverheadPercent: decimal.RequireFromString("15")},
			2: {ID: 2, Code: "SUB", Label: "Subcontracting", OverheadPercent: decimal.RequireFromString("8.5")},
		},
		suppliers: map[int64]Supplier{
			1: {ID: 1, Name: "Bois & Cie", AccountHolder: true},
			2: {ID: 2, Name: "Quincaillerie Duval"},
		},
		seq: make(map[string]int64),
	}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryOrderTx{repo: r})
}

func (r *memoryOrderRepo) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (r *memoryOrderRepo) ListByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PurchaseOrder
	for _, po := range r.orders {
		if po.ProjectID == projectID {
			out = append(out, po)
		}
	}
	return out, nil
}

func (r *memoryOrderRepo) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryOrderRepo) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryOrderRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryOrderRepo) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	var out []Supplier
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryOrderRepo) GetSnapshot(ctx context.Context, id int64) (Snapshot, error) {
	po, err := r.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Order:       po,
		Supplier:    r.suppliers[po.SupplierID],
		Category:    r.categories[po.CategoryID],
		ProjectCode: "AFF-042",
		ClientRef:   "Maison Leclerc",
	}, nil
}

func (tx *memoryOrderTx) AllocateNumber(ctx context.Context, date time.Time) (string, error) {
	key := fmt.Sprintf("BDC-%d", date.Year())
	tx.repo.seq[key]++
	return fmt.Sprintf("%s-%03d", key, tx.repo.seq[key]), nil
}

func (tx *memoryOrderTx) Create(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	tx.repo.orders[po.ID] = po
	return po.ID, nil
}

func (tx *memoryOrderTx) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := tx.repo.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (tx *memoryOrderTx) Update(ctx context.Context, po PurchaseOrder) error {
	current, ok := tx.repo.orders[po.ID]
	if !ok {
		return ErrNotFound
	}
	po.Number = current.Number
	po.Lines = current.Lines
	tx.repo.orders[po.ID] = po
	return nil
}

func (tx *memoryOrderTx) UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error {
	po, ok := tx.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	if receivedAt != nil {
		po.ReceivedAt = receivedAt
	}
	tx.repo.orders[id] = po
	return nil
}

func (tx *memoryOrderTx) ReplaceLines(ctx context.Context, orderID int64, lines []Line) error {
	po, ok := tx.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	po.Lines = lines
	tx.repo.orders[orderID] = po
	return nil
}

func (tx *memoryOrderTx) Delete(ctx context.Context, id int64) error {
	if _, ok := tx.repo.orders[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.orders, id)
	return nil
}

type stubRenderer struct {
	fail bool
}

func (r *stubRenderer) RenderOrder(snap Snapshot, params map[string]string, generatedAt time.Time) ([]byte, error) {
	if r.fail {
		return nil, errors.New("layout error")
	}
	return []byte("%PDF " + snap.Order.Number), nil
}

type stubArtifacts struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
}

func newStubArtifacts() *stubArtifacts {
	return &stubArtifacts{saved: make(map[string][]byte)}
}

func (a *stubArtifacts) Save(ctx context.Context, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved[name] = data
	return nil
}

func (a *stubArtifacts) Delete(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.saved, name)
	a.deleted = append(a.deleted, name)
	return nil
}

type stubParams struct{}

func (stubParams) All(ctx context.Context) (map[string]string, error) {
	return map[string]string{"org.name": "Atelier Martin"}, nil
}

func supervisorHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestService(t *testing.T, repo *memoryOrderRepo) (*Service, *stubArtifacts) {
	t.Helper()
	artifacts := newStubArtifacts()
	svc := NewService(repo, nil, nil, &stubRenderer{}, artifacts, stubParams{}, nil, supervisorHash(t))
	return svc, artifacts
}

func createDraft(t *testing.T, svc *Service, input CreateInput) PurchaseOrder {
	t.Helper()
	if input.ProjectID == 0 {
		input.ProjectID = 1
	}
	if input.SupplierID == 0 {
		input.SupplierID = 1
	}
	if input.CategoryID == 0 {
		input.CategoryID = 1
	}
	if input.Direction == "" {
		input.Direction = DirectionOutgoing
	}
	po, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	return po
}

func TestCreateAllocatesNumberAndOverhead(t *testing.T) {
	svc, _ := newTestService(t, newMemoryOrderRepo())

	po := createDraft(t, svc, CreateInput{AmountHT: "1000"})

	year := time.Now().Year()
	require.Equal(t, fmt.Sprintf("BDC-%d-001", year), po.Number)
	require.Equal(t, StatusDraft, po.Status)
	// 1000 at 15 percent overhead.
	require.True(t, po.OverheadAmount.Equal(decimal.RequireFromString("150")),
		"overhead = %s", po.OverheadAmount)

	second := createDraft(t, svc, CreateInput{AmountHT: "200"})
	require.Equal(t, fmt.Sprintf("BDC-%d-002", year), second.Number)
}

func TestCreateLinesDriveTotal(t *testing.T) {
	svc, _ := newTestService(t, newMemoryOrderRepo())

	po := createDraft(t, svc, CreateInput{
		AmountHT: "9999", // ignored once lines exist
		Lines: []LineInput{
			{Designation: "Oak board", Quantity: "3", UnitPrice: "42.50"},
			{Designation: "Screws", Quantity: "10", UnitPrice: "1.20"},
		},
	})

	// 3*42.50 + 10*1.20 = 139.50
	require.True(t, po.AmountHT.Equal(decimal.RequireFromString("139.50")), "amount = %s", po.AmountHT)
	require.True(t, po.OverheadAmount.Equal(decimal.RequireFromString("20.93")), "overhead = %s", po.OverheadAmount)
	require.Len(t, po.Lines, 2)
	require.True(t, po.Lines[0].LineAmount.Equal(decimal.RequireFromString("127.50")))
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, newMemoryOrderRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{SupplierID: 1, CategoryID: 1, Direction: DirectionOutgoing, AmountHT: "10"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{ProjectID: 1, SupplierID: 1, CategoryID: 1, Direction: "SIDEWAYS", AmountHT: "10"})
	require.ErrorIs(t, err, shared.ErrBadRequest)

	_, err = svc.Create(ctx, CreateInput{ProjectID: 1, SupplierID: 99, CategoryID: 1, Direction: DirectionOutgoing, AmountHT: "10"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Create(ctx, CreateInput{ProjectID: 1, SupplierID: 1, CategoryID: 1, Direction: DirectionOutgoing, AmountHT: "-5"})
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestTransitionTable(t *testing.T) {
	svc, _ := newTestService(t, newMemoryOrderRepo())
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "100"})

	got, err := svc.Transition(ctx, po.ID, StatusReceived)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, got.Status)
	require.NotNil(t, got.ReceivedAt, "reception must be stamped")

	got, err = svc.Transition(ctx, po.ID, StatusValidated)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, got.Status)

	// Validated is terminal.
	var invalid *InvalidTransitionError
	_, err = svc.Transition(ctx, po.ID, StatusCancelled)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StatusValidated, invalid.From)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	// Received cannot go back to draft.
	other := createDraft(t, svc, CreateInput{AmountHT: "100"})
	_, err = svc.Transition(ctx, other.ID, StatusReceived)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, other.ID, StatusDraft)
	require.ErrorAs(t, err, &invalid)

	// Draft may be validated directly or cancelled.
	direct := createDraft(t, svc, CreateInput{AmountHT: "100"})
	_, err = svc.Transition(ctx, direct.ID, StatusValidated)
	require.NoError(t, err)
	dropped := createDraft(t, svc, CreateInput{AmountHT: "100"})
	_, err = svc.Transition(ctx, dropped.ID, StatusCancelled)
	require.NoError(t, err)
}

func TestUpdateRecomputesOverheadOnCategoryChange(t *testing.T) {
	svc, _ := newTestService(t, newMemoryOrderRepo())
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "1000"})

	got, err := svc.Update(ctx, po.ID, UpdateInput{
		SupplierID: 1,
		CategoryID: 2,
		Direction:  DirectionOutgoing,
		AmountHT:   "1000",
	})
	require.NoError(t, err)
	// 1000 at 8.5 percent.
	require.True(t, got.OverheadAmount.Equal(decimal.RequireFromString("85")), "overhead = %s", got.OverheadAmount)
	require.Equal(t, po.Number, got.Number, "number never changes on update")
}

func TestUpdateRejectedOnTerminalStatus(t *testing.T) {
	svc, _ := newTestService(t, newMemoryOrderRepo())
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "100"})
	_, err := svc.Transition(ctx, po.ID, StatusValidated)
	require.NoError(t, err)

	_, err = svc.Update(ctx, po.ID, UpdateInput{SupplierID: 1, CategoryID: 1, Direction: DirectionOutgoing, AmountHT: "200"})
	require.ErrorIs(t, err, ErrImmutable)
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestDeleteDraftNeedsNoCredential(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "100"})
	require.NoError(t, svc.Delete(ctx, po.ID, ""))
	_, err := svc.Get(ctx, po.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteValidatedIsGuarded(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc, artifacts := newTestService(t, repo)
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "100"})
	_, err := svc.Transition(ctx, po.ID, StatusValidated)
	require.NoError(t, err)

	// Missing credential is a bad request, not an auth failure.
	err = svc.Delete(ctx, po.ID, "")
	require.ErrorIs(t, err, ErrCredentialRequired)
	require.ErrorIs(t, err, shared.ErrBadRequest)
	require.NotErrorIs(t, err, shared.ErrUnauthorized)

	// Wrong credential is unauthorized.
	err = svc.Delete(ctx, po.ID, "0000")
	require.ErrorIs(t, err, ErrCredentialMismatch)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	// The order must still exist after both refusals.
	_, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)

	// Correct credential removes the order and its artifact.
	require.NoError(t, svc.Delete(ctx, po.ID, "1234"))
	_, err = svc.Get(ctx, po.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, artifacts.deleted, ArtifactName(po.Number))
}

func TestRenderOrderStoresArtifact(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc, artifacts := newTestService(t, repo)
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "100"})

	name, err := svc.RenderOrder(ctx, po.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, po.Number+".pdf", name)
	require.Contains(t, artifacts.saved, name)
}

func TestRenderFailureIsReported(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := NewService(repo, nil, nil, &stubRenderer{fail: true}, newStubArtifacts(), stubParams{}, nil, supervisorHash(t))
	ctx := context.Background()

	po := createDraft(t, svc, CreateInput{AmountHT: "100"})

	_, err := svc.RenderOrder(ctx, po.ID, time.Time{})
	require.ErrorIs(t, err, shared.ErrRenderFailure)
}

func TestRenderProjectOrders(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc, artifacts := newTestService(t, repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createDraft(t, svc, CreateInput{ProjectID: 9, AmountHT: "100"})
	}
	createDraft(t, svc, CreateInput{ProjectID: 10, AmountHT: "100"})

	names, err := svc.RenderProjectOrders(ctx, 9)
	require.NoError(t, err)
	require.Len(t, names, 5)
	require.Len(t, artifacts.saved, 5)
}
