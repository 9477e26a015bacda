package redemption

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/indiansinghana/iig-backend/internal/modules/deal"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/platform/database"
)

type sqlStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a Store backed by postgres or mysql row locks.
func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(Tx{
			Requests: &sqlRequests{q: tx},
			Deals:    deal.NewTxRepository(tx),
			Members:  member.NewTxRepository(tx),
		})
	})
}

func (s *sqlStore) Requests() RequestRepository { return &sqlRequests{q: s.db} }

func (s *sqlStore) Members() member.Repository { return member.NewSQLRepository(s.db) }

// ── Requests ──────────────────────────────────────────────────────────────────

type sqlRequests struct {
	q database.DBTX
}

const selectRequest = `
		SELECT id, deal_id, user_id, merchant_id, status, requested_at, resolved_at, rejection_reason
		FROM redemption_requests`

func (r *sqlRequests) Create(ctx context.Context, req *Request) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO redemption_requests (id, deal_id, user_id, merchant_id, status, requested_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		req.ID, req.DealID, req.UserID, req.MerchantID, req.Status, req.RequestedAt,
	)
	return errors.Wrap(err, "insert redemption request")
}

func (r *sqlRequests) GetByID(ctx context.Context, id string) (*Request, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanRequest(r.q.QueryRowxContext(ctx, r.q.Rebind(selectRequest+` WHERE id = ?`), id))
}

func (r *sqlRequests) LockRequest(ctx context.Context, id string) (*Request, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanRequest(r.q.QueryRowxContext(ctx, r.q.Rebind(selectRequest+` WHERE id = ? FOR UPDATE`), id))
}

func (r *sqlRequests) Resolve(ctx context.Context, req *Request) error {
	var reason sql.NullString
	if req.RejectionReason != nil {
		reason = sql.NullString{String: *req.RejectionReason, Valid: true}
	}
	// the status guard keeps a resolved row immutable even without the lock
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE redemption_requests SET status = ?, resolved_at = ?, rejection_reason = ?
		WHERE id = ? AND status = ?`),
		req.Status, req.ResolvedAt, reason, req.ID, StatusPending,
	)
	if err != nil {
		return errors.Wrap(err, "resolve redemption request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *sqlRequests) HasPending(ctx context.Context, userID, dealID uuid.UUID) (bool, error) {
	var n int
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`
		SELECT COUNT(*) FROM redemption_requests WHERE user_id = ? AND deal_id = ? AND status = ?`),
		userID, dealID, StatusPending).Scan(&n)
	return n > 0, errors.Wrap(err, "check pending request")
}

func (r *sqlRequests) ListByMerchant(ctx context.Context, merchantID string, status Status) ([]*Request, error) {
	if status == "" {
		return r.list(ctx, selectRequest+` WHERE merchant_id = ? ORDER BY requested_at DESC`, merchantID)
	}
	return r.list(ctx, selectRequest+` WHERE merchant_id = ? AND status = ? ORDER BY requested_at DESC`, merchantID, status)
}

func (r *sqlRequests) ListByUser(ctx context.Context, userID string) ([]*Request, error) {
	return r.list(ctx, selectRequest+` WHERE user_id = ? ORDER BY requested_at DESC`, userID)
}

func (r *sqlRequests) CountApprovedRedemptions(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`
		SELECT COUNT(*) FROM redemption_requests
		WHERE user_id = ? AND status = ? AND resolved_at >= ? AND resolved_at < ?`),
		userID, StatusApproved, from, to).Scan(&n)
	return n, errors.Wrap(err, "count approved redemptions")
}

func (r *sqlRequests) list(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := r.q.QueryxContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "query redemption requests")
	}
	defer rows.Close()

	out := []*Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, errors.Wrap(rows.Err(), "iterate redemption requests")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*Request, error) {
	req := &Request{}
	var resolved sql.NullTime
	var reason sql.NullString
	err := row.Scan(
		&req.ID,
		&req.DealID,
		&req.UserID,
		&req.MerchantID,
		&req.Status,
		&req.RequestedAt,
		&resolved,
		&reason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan redemption request")
	}
	if resolved.Valid {
		req.ResolvedAt = &resolved.Time
	}
	if reason.Valid {
		req.RejectionReason = &reason.String
	}
	return req, nil
}
