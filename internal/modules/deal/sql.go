package deal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/indiansinghana/iig-backend/internal/platform/database"
)

type sqlRepository struct {
	q database.DBTX
}

// NewSQLRepository creates a Repository over the deals table.
func NewSQLRepository(db *sqlx.DB) Repository {
	return &sqlRepository{q: db}
}

// NewTxRepository binds a Repository to an open transaction.
func NewTxRepository(tx *sqlx.Tx) Repository {
	return &sqlRepository{q: tx}
}

const selectDeal = `
		SELECT id, merchant_id, title, description, required_plan_priority, member_limit, status,
		       valid_from, valid_until, redemptions_count, rejection_reason, created_at, updated_at
		FROM deals`

func (r *sqlRepository) Create(ctx context.Context, d *Deal) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO deals (id, merchant_id, title, description, required_plan_priority, member_limit,
		                   status, valid_from, valid_until, redemptions_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`),
		d.ID, d.MerchantID, d.Title, d.Description,
		nullInt(d.RequiredPlanPriority), nullInt(d.MemberLimit),
		d.Status, d.ValidFrom, d.ValidUntil, d.CreatedAt, d.UpdatedAt,
	)
	return errors.Wrap(err, "insert deal")
}

func (r *sqlRepository) Update(ctx context.Context, d *Deal) error {
	var reason sql.NullString
	if d.RejectionReason != nil {
		reason = sql.NullString{String: *d.RejectionReason, Valid: true}
	}
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE deals
		SET title = ?, description = ?, required_plan_priority = ?, member_limit = ?, status = ?,
		    valid_from = ?, valid_until = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?`),
		d.Title, d.Description, nullInt(d.RequiredPlanPriority), nullInt(d.MemberLimit), d.Status,
		d.ValidFrom, d.ValidUntil, reason, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update deal")
	}
	return expectOne(res)
}

func (r *sqlRepository) GetByID(ctx context.Context, id string) (*Deal, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanDeal(r.q.QueryRowxContext(ctx, r.q.Rebind(selectDeal+` WHERE id = ?`), id))
}

func (r *sqlRepository) LockDeal(ctx context.Context, id string) (*Deal, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanDeal(r.q.QueryRowxContext(ctx, r.q.Rebind(selectDeal+` WHERE id = ? FOR UPDATE`), id))
}

func (r *sqlRepository) IncrementRedemptions(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE deals SET redemptions_count = redemptions_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "increment redemptions")
	}
	return expectOne(res)
}

func (r *sqlRepository) ListByMerchant(ctx context.Context, merchantID string) ([]*Deal, error) {
	return r.list(ctx, selectDeal+` WHERE merchant_id = ? ORDER BY created_at DESC`, merchantID)
}

func (r *sqlRepository) ListByStatus(ctx context.Context, status Status) ([]*Deal, error) {
	return r.list(ctx, selectDeal+` WHERE status = ? ORDER BY created_at DESC`, status)
}

func (r *sqlRepository) CountDealsPosted(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`
		SELECT COUNT(*) FROM deals WHERE merchant_id = ? AND created_at >= ? AND created_at < ?`),
		merchantID, from, to).Scan(&n)
	return n, errors.Wrap(err, "count deals")
}

func (r *sqlRepository) list(ctx context.Context, query string, args ...any) ([]*Deal, error) {
	rows, err := r.q.QueryxContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "query deals")
	}
	defer rows.Close()

	var deals []*Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, errors.Wrap(rows.Err(), "iterate deals")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeal(row scanner) (*Deal, error) {
	d := &Deal{}
	var priority, limit sql.NullInt64
	var reason sql.NullString
	err := row.Scan(
		&d.ID,
		&d.MerchantID,
		&d.Title,
		&d.Description,
		&priority,
		&limit,
		&d.Status,
		&d.ValidFrom,
		&d.ValidUntil,
		&d.RedemptionsCount,
		&reason,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan deal")
	}
	d.RequiredPlanPriority = intPtr(priority)
	d.MemberLimit = intPtr(limit)
	if reason.Valid {
		d.RejectionReason = &reason.String
	}
	return d, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
