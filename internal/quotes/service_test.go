package quotes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atelier-erp/atelier-erp/internal/projects"
)

type memoryQuoteRepo struct {
	quotes   map[int64]Quote
	progress map[int64]int
	nextID   int64
	seq      map[string]int64
}

type memoryQuoteTx struct {
	repo *memoryQuoteRepo
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{
		quotes:   make(map[int64]Quote),
		progress: make(map[int64]int),
		seq:      make(map[string]int64),
	}
}

func (r *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryQuoteTx{repo: r})
}

func (r *memoryQuoteRepo) Get(ctx context.Context, id int64) (Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

func (r *memoryQuoteRepo) ListByProject(ctx context.Context, projectID int64) ([]Quote, error) {
	var out []Quote
	for _, q := range r.quotes {
		if q.ProjectID == projectID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memoryQuoteRepo) ListExpiredCandidates(ctx context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for id, q := range r.quotes {
		if !q.Status.Terminal() && q.ValidUntil.Before(asOf) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (tx *memoryQuoteTx) AllocateNumber(ctx context.Context, date time.Time) (string, error) {
	key := fmt.Sprintf("DEV-%d", date.Year())
	tx.repo.seq[key]++
	return fmt.Sprintf("%s-%03d", key, tx.repo.seq[key]), nil
}

func (tx *memoryQuoteTx) Create(ctx context.Context, q Quote) (int64, error) {
	tx.repo.nextID++
	q.ID = tx.repo.nextID
	tx.repo.quotes[q.ID] = q
	return q.ID, nil
}

func (tx *memoryQuoteTx) GetForUpdate(ctx context.Context, id int64) (Quote, error) {
	q, ok := tx.repo.quotes[id]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

func (tx *memoryQuoteTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	q, ok := tx.repo.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	tx.repo.quotes[id] = q
	return nil
}

func (tx *memoryQuoteTx) Delete(ctx context.Context, id int64) error {
	if _, ok := tx.repo.quotes[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.quotes, id)
	return nil
}

func (tx *memoryQuoteTx) RecomputeProjectProgress(ctx context.Context, projectID int64) (int, error) {
	var rollups []projects.RollupQuote
	for _, q := range tx.repo.quotes {
		if q.ProjectID == projectID {
			rollups = append(rollups, projects.RollupQuote{Status: string(q.Status), AmountHT: q.AmountHT})
		}
	}
	pct := projects.ComputeProgress(rollups)
	tx.repo.progress[projectID] = pct
	return pct, nil
}

type stubMetrics struct {
	conflicts   int
	transitions []string
}

func (m *stubMetrics) SequenceConflict() { m.conflicts++ }
func (m *stubMetrics) TransitionApplied(family, status string) {
	m.transitions = append(m.transitions, family+":"+status)
}

func mustCreate(t *testing.T, svc *Service, projectID int64, amount string) Quote {
	t.Helper()
	q, err := svc.Create(context.Background(), CreateInput{
		ProjectID:  projectID,
		AmountHT:   amount,
		ValidUntil: time.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return q
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo, nil, nil, nil)

	first := mustCreate(t, svc, 1, "1000")
	second := mustCreate(t, svc, 1, "2000")

	year := time.Now().Year()
	require.Equal(t, fmt.Sprintf("DEV-%d-001", year), first.Number)
	require.Equal(t, fmt.Sprintf("DEV-%d-002", year), second.Number)
	require.Equal(t, StatusPending, first.Status)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryQuoteRepo(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{AmountHT: "100", ValidUntil: time.Now()})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{ProjectID: 1, AmountHT: "oops", ValidUntil: time.Now()})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateInput{ProjectID: 1, AmountHT: "100"})
	require.Error(t, err)
}

func TestTransitionTableEnforced(t *testing.T) {
	repo := newMemoryQuoteRepo()
	metrics := &stubMetrics{}
	svc := NewService(repo, metrics, nil, nil)
	ctx := context.Background()

	q := mustCreate(t, svc, 1, "1000")

	// Pending -> Fulfilled skips Validated and must be rejected.
	_, err := svc.Transition(ctx, q.ID, StatusFulfilled)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StatusPending, invalid.From)

	got, err := svc.Transition(ctx, q.ID, StatusValidated)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, got.Status)

	got, err = svc.Transition(ctx, q.ID, StatusFulfilled)
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, got.Status)

	// Terminal states accept nothing.
	_, err = svc.Transition(ctx, q.ID, StatusValidated)
	require.ErrorAs(t, err, &invalid)

	_, err = svc.Transition(ctx, q.ID, Status("BOGUS"))
	require.ErrorAs(t, err, &invalid)

	require.Equal(t, []string{"DEV:VALIDATED", "DEV:FULFILLED"}, metrics.transitions)
}

func TestTransitionTriggersRollup(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	a := mustCreate(t, svc, 7, "1000")
	b := mustCreate(t, svc, 7, "4000")

	_, err := svc.Transition(ctx, a.ID, StatusValidated)
	require.NoError(t, err)
	require.Equal(t, 0, repo.progress[7])

	_, err = svc.Transition(ctx, b.ID, StatusValidated)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, b.ID, StatusFulfilled)
	require.NoError(t, err)
	// counted=5000, delivered=4000
	require.Equal(t, 80, repo.progress[7])

	// Rejecting a pending quote does not change counted state; no rollup needed,
	// and the stored aggregate still reflects canonical child state.
	c := mustCreate(t, svc, 7, "999999")
	_, err = svc.Transition(ctx, c.ID, StatusRejected)
	require.NoError(t, err)
	require.Equal(t, 80, repo.progress[7])
}

func TestDeleteCountedQuoteRecomputes(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	a := mustCreate(t, svc, 3, "1000")
	b := mustCreate(t, svc, 3, "1000")
	_, err := svc.Transition(ctx, a.ID, StatusValidated)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, b.ID, StatusValidated)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, b.ID, StatusFulfilled)
	require.NoError(t, err)
	require.Equal(t, 50, repo.progress[3])

	require.NoError(t, svc.Delete(ctx, b.ID))
	require.Equal(t, 0, repo.progress[3])

	require.ErrorIs(t, svc.Delete(ctx, b.ID), ErrNotFound)
}

func TestExpireOverdue(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	past := time.Now().AddDate(0, -1, 0)
	overdue, err := svc.Create(ctx, CreateInput{ProjectID: 5, AmountHT: "100", ValidUntil: past})
	require.NoError(t, err)
	fresh := mustCreate(t, svc, 5, "100")

	// A fulfilled quote past validity is terminal and must not be touched.
	done, err := svc.Create(ctx, CreateInput{ProjectID: 5, AmountHT: "100", ValidUntil: past})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, done.ID, StatusValidated)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, done.ID, StatusFulfilled)
	require.NoError(t, err)

	n, err := svc.ExpireOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := svc.Get(ctx, overdue.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	got, err = svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)

	got, err = svc.Get(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, got.Status)
}

func TestAmountsUseDecimalArithmetic(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo, nil, nil, nil)

	q := mustCreate(t, svc, 9, "1234.56")
	require.True(t, q.AmountHT.Equal(decimal.RequireFromString("1234.56")))
}
