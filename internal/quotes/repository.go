package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atelier-erp/atelier-erp/internal/projects"
	"github.com/atelier-erp/atelier-erp/internal/sequence"
)

// Repository provides PostgreSQL backed persistence for quotes.
type Repository struct {
	pool  *pgxpool.Pool
	alloc sequence.Allocator
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Number allocation, status
// writes and the project rollup all run on the same transaction so a
// partial failure leaves no visible state.
type TxRepository interface {
	AllocateNumber(ctx context.Context, date time.Time) (string, error)
	Create(ctx context.Context, q Quote) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Quote, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	RecomputeProjectProgress(ctx context.Context, projectID int64) (int, error)
}

type txRepo struct {
	tx    pgx.Tx
	alloc sequence.Allocator
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx, alloc: r.alloc}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const quoteColumns = `id, number, project_id, amount_ht, valid_until, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (Quote, error) {
	var q Quote
	var amount decimal.Decimal
	var status string
	err := row.Scan(&q.ID, &q.Number, &q.ProjectID, &amount, &q.ValidUntil, &status, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, err
	}
	q.AmountHT = amount
	q.Status = Status(status)
	return q, nil
}

// Get returns a quote by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id))
}

// ListByProject returns a project's quotes ordered by number.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE project_id=$1 ORDER BY number`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListExpiredCandidates returns IDs of non-terminal quotes whose validity
// date has passed.
func (r *Repository) ListExpiredCandidates(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM quotes
		WHERE valid_until < $1 AND status IN ($2, $3)
		ORDER BY id`, asOf, string(StatusPending), string(StatusValidated))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (tx *txRepo) AllocateNumber(ctx context.Context, date time.Time) (string, error) {
	return tx.alloc.Next(ctx, tx.tx, sequence.FamilyQuote, date)
}

func (tx *txRepo) Create(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO quotes (number, project_id, amount_ht, valid_until, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		q.Number, q.ProjectID, q.AmountHT, q.ValidUntil, string(q.Status)).Scan(&id)
	return id, err
}

// GetForUpdate locks the quote row so concurrent transitions against the
// same document serialize instead of interleaving.
func (tx *txRepo) GetForUpdate(ctx context.Context, id int64) (Quote, error) {
	return scanQuote(tx.tx.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1 FOR UPDATE`, id))
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE quotes SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := tx.tx.Exec(ctx, `DELETE FROM quotes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) RecomputeProjectProgress(ctx context.Context, projectID int64) (int, error) {
	return projects.RecomputeInTx(ctx, tx.tx, projectID)
}
