package purchasing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-erp/atelier-erp/internal/sequence"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool  *pgxpool.Pool
	alloc sequence.Allocator
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Number allocation, header
// and line writes share one transaction so a partial failure leaves no
// visible state.
type TxRepository interface {
	AllocateNumber(ctx context.Context, date time.Time) (string, error)
	Create(ctx context.Context, po PurchaseOrder) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	Update(ctx context.Context, po PurchaseOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error
	ReplaceLines(ctx context.Context, orderID int64, lines []Line) error
	Delete(ctx context.Context, id int64) error
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

const orderColumns = `id, number, project_id, supplier_id, category_id, direction, status,
	amount_ht, overhead_amount, received_at, delivery_mode, site_address, comment, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (PurchaseOrder, error) {
	var po PurchaseOrder
	var direction, status, deliveryMode string
	err := row.Scan(&po.ID, &po.Number, &po.ProjectID, &po.SupplierID, &po.CategoryID,
		&direction, &status, &po.AmountHT, &po.OverheadAmount, &po.ReceivedAt,
		&deliveryMode, &po.SiteAddress, &po.Comment, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Direction = Direction(direction)
	po.Status = Status(status)
	po.DeliveryMode = DeliveryMode(deliveryMode)
	return po, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, designation, quantity, unit_price, line_amount, display_order
		FROM purchase_order_lines WHERE order_id=$1 ORDER BY display_order, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Designation, &l.Quantity, &l.UnitPrice, &l.LineAmount, &l.DisplayOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get returns an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, r.pool, id)
	return po, err
}

// ListByProject returns a project's orders ordered by number, lines included.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE project_id=$1 ORDER BY number`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = loadLines(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetCategory returns a purchase category by ID.
func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, code, label, overhead_percent FROM purchase_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Code, &c.Label, &c.OverheadPercent)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

// ListCategories returns all purchase categories ordered by code.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, label, overhead_percent FROM purchase_categories ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Label, &c.OverheadPercent); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSupplier returns a supplier by ID.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, address, phone, email, tax_id, account_holder
		FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Address, &s.Phone, &s.Email, &s.TaxID, &s.AccountHolder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

// ListSuppliers returns all suppliers ordered by name.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, address, phone, email, tax_id, account_holder
		FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Phone, &s.Email, &s.TaxID, &s.AccountHolder); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Snapshot joins everything a printed order needs into one read.
type Snapshot struct {
	Order       PurchaseOrder
	Supplier    Supplier
	Category    Category
	ProjectCode string
	ClientRef   string
}

// GetSnapshot returns the render snapshot for an order.
func (r *Repository) GetSnapshot(ctx context.Context, id int64) (Snapshot, error) {
	po, err := r.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Order: po}
	if snap.Supplier, err = r.GetSupplier(ctx, po.SupplierID); err != nil {
		return Snapshot{}, err
	}
	if snap.Category, err = r.GetCategory(ctx, po.CategoryID); err != nil {
		return Snapshot{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT code, client_ref FROM projects WHERE id=$1`, po.ProjectID).
		Scan(&snap.ProjectCode, &snap.ClientRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

func (tx *txRepo) AllocateNumber(ctx context.Context, date time.Time) (string, error) {
	return tx.alloc.Next(ctx, tx.tx, sequence.FamilyPurchaseOrder, date)
}

func (tx *txRepo) Create(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (number, project_id, supplier_id, category_id, direction, status,
			amount_ht, overhead_amount, delivery_mode, site_address, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING id`,
		po.Number, po.ProjectID, po.SupplierID, po.CategoryID, string(po.Direction), string(po.Status),
		po.AmountHT, po.OverheadAmount, string(po.DeliveryMode), po.SiteAddress, po.Comment).Scan(&id)
	if err != nil {
		return 0, err
	}
	if err := insertLines(ctx, tx.tx, id, po.Lines); err != nil {
		return 0, err
	}
	return id, nil
}

// GetForUpdate locks the order row so concurrent transitions against the
// same document serialize instead of interleaving.
func (tx *txRepo) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(tx.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, tx.tx, id)
	return po, err
}

func (tx *txRepo) Update(ctx context.Context, po PurchaseOrder) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE purchase_orders SET supplier_id=$1, category_id=$2, direction=$3,
			amount_ht=$4, overhead_amount=$5, delivery_mode=$6, site_address=$7,
			comment=$8, updated_at=NOW()
		WHERE id=$9`,
		po.SupplierID, po.CategoryID, string(po.Direction),
		po.AmountHT, po.OverheadAmount, string(po.DeliveryMode), po.SiteAddress,
		po.Comment, po.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status=$1, received_at=COALESCE($2, received_at), updated_at=NOW()
		WHERE id=$3`, string(status), receivedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) ReplaceLines(ctx context.Context, orderID int64, lines []Line) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	return insertLines(ctx, tx.tx, orderID, lines)
}

func (tx *txRepo) Delete(ctx context.Context, id int64) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, id); err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []Line) error {
	for i, l := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_lines (order_id, designation, quantity, unit_price, line_amount, display_order)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, l.Designation, l.Quantity, l.UnitPrice, l.LineAmount, i)
		if err != nil {
			return err
		}
	}
	return nil
}
