package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for projects.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Create(ctx context.Context, p Project) (int64, error)
	Update(ctx context.Context, p Project) error
	Delete(ctx context.Context, id int64) error
	ListQuoteRollups(ctx context.Context, projectID int64) ([]RollupQuote, error)
	UpdateProgress(ctx context.Context, projectID int64, percent int) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get returns a project by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `
		SELECT id, code, client_ref, purchase_budget, progress_percent, created_at, updated_at
		FROM projects WHERE id=$1`, id))
}

// List returns all projects ordered by code.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, client_ref, purchase_budget, progress_percent, created_at, updated_at
		FROM projects ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountDocuments returns how many quotes and purchase orders reference the project.
func (r *Repository) CountDocuments(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM quotes WHERE project_id=$1)
		     + (SELECT COUNT(*) FROM purchase_orders WHERE project_id=$1)`, projectID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	var budget decimal.Decimal
	err := row.Scan(&p.ID, &p.Code, &p.ClientRef, &budget, &p.ProgressPercent, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	p.PurchaseBudget = budget
	return p, nil
}

func (tx *txRepo) Create(ctx context.Context, p Project) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO projects (code, client_ref, purchase_budget, progress_percent, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW()) RETURNING id`,
		p.Code, p.ClientRef, p.PurchaseBudget).Scan(&id)
	return id, err
}

func (tx *txRepo) Update(ctx context.Context, p Project) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE projects SET code=$1, client_ref=$2, purchase_budget=$3, updated_at=NOW()
		WHERE id=$4`, p.Code, p.ClientRef, p.PurchaseBudget, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := tx.tx.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) ListQuoteRollups(ctx context.Context, projectID int64) ([]RollupQuote, error) {
	return listQuoteRollups(ctx, tx.tx, projectID)
}

func (tx *txRepo) UpdateProgress(ctx context.Context, projectID int64, percent int) error {
	return updateProgress(ctx, tx.tx, projectID, percent)
}

// The rollup SQL is shared with the quotes transition transaction through
// these package-level helpers.

func listQuoteRollups(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, projectID int64) ([]RollupQuote, error) {
	rows, err := q.Query(ctx, `SELECT status, amount_ht FROM quotes WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RollupQuote
	for rows.Next() {
		var rq RollupQuote
		var amount decimal.Decimal
		if err := rows.Scan(&rq.Status, &amount); err != nil {
			return nil, err
		}
		rq.AmountHT = amount
		out = append(out, rq)
	}
	return out, rows.Err()
}

func updateProgress(ctx context.Context, tx pgx.Tx, projectID int64, percent int) error {
	tag, err := tx.Exec(ctx, `UPDATE projects SET progress_percent=$1, updated_at=NOW() WHERE id=$2`, percent, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeInTx recomputes and persists a project's progress using the
// caller's transaction. The quotes module calls this from its status
// transition transaction so the rollup commits or rolls back together with
// the triggering status write.
func RecomputeInTx(ctx context.Context, tx pgx.Tx, projectID int64) (int, error) {
	quotes, err := listQuoteRollups(ctx, tx, projectID)
	if err != nil {
		return 0, err
	}
	percent := ComputeProgress(quotes)
	if err := updateProgress(ctx, tx, projectID, percent); err != nil {
		return 0, err
	}
	return percent, nil
}
