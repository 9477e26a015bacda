package member

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/indiansinghana/iig-backend/internal/platform/database"
)

type sqlRepository struct {
	db *sqlx.DB // nil when bound to an outer transaction
	q  database.DBTX
}

// NewSQLRepository creates a Repository over the users and merchants tables.
func NewSQLRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db, q: db}
}

// NewTxRepository binds a Repository to an open transaction.
func NewTxRepository(tx *sqlx.Tx) Repository {
	return &sqlRepository{q: tx}
}

// ── Users ─────────────────────────────────────────────────────────────────────

const selectUser = `
		SELECT u.id, u.email, u.password_hash, u.name, u.role, u.membership_type,
		       COALESCE(p.priority, 0), u.custom_redemption_limit, u.created_at, u.updated_at
		FROM users u
		LEFT JOIN plans p ON p.plan_key = u.membership_type AND p.type IN ('user', 'membership')`

func (r *sqlRepository) CreateUser(ctx context.Context, u *User) error {
	return r.insertUser(ctx, r.q, u)
}

func (r *sqlRepository) insertUser(ctx context.Context, q database.DBTX, u *User) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO users (id, email, password_hash, name, role, membership_type, custom_redemption_limit)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.MembershipType, nullInt(u.CustomRedemptionLimit))
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailTaken
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *sqlRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return r.scanUser(r.q.QueryRowxContext(ctx, r.q.Rebind(selectUser+` WHERE u.id = ?`), id))
}

func (r *sqlRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.q.QueryRowxContext(ctx, r.q.Rebind(selectUser+` WHERE u.email = ?`), strings.ToLower(email)))
}

// LockUser locks the users row alone; the plan join is read afterwards
// because postgres refuses FOR UPDATE on the nullable side of an outer join.
func (r *sqlRepository) LockUser(ctx context.Context, id string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	var locked string
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`SELECT id FROM users WHERE id = ? FOR UPDATE`), id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lock user")
	}
	return r.GetUserByID(ctx, id)
}

func (r *sqlRepository) SetCustomRedemptionLimit(ctx context.Context, id string, limit *int) error {
	return r.updateOne(ctx, "users", id,
		`UPDATE users SET custom_redemption_limit = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullInt(limit), id)
}

func (r *sqlRepository) scanUser(row *sqlx.Row) (*User, error) {
	u := &User{}
	var limit sql.NullInt64
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.MembershipType,
		&u.PlanPriority,
		&limit,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan user")
	}
	u.CustomRedemptionLimit = intPtr(limit)
	return u, nil
}

// ── Merchants ─────────────────────────────────────────────────────────────────

const selectMerchant = `
		SELECT id, user_id, business_name, plan_key, custom_deal_limit, created_at, updated_at
		FROM merchants`

func (r *sqlRepository) CreateMerchantAccount(ctx context.Context, u *User, m *Merchant) error {
	if r.db == nil {
		return r.createMerchantAccount(ctx, r.q, u, m)
	}
	return database.WithinTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return r.createMerchantAccount(ctx, tx, u, m)
	})
}

func (r *sqlRepository) createMerchantAccount(ctx context.Context, q database.DBTX, u *User, m *Merchant) error {
	if err := r.insertUser(ctx, q, u); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO merchants (id, user_id, business_name, plan_key, custom_deal_limit)
		VALUES (?, ?, ?, ?, ?)`),
		m.ID, m.UserID, m.BusinessName, m.PlanKey, nullInt(m.CustomDealLimit))
	return errors.Wrap(err, "insert merchant")
}

func (r *sqlRepository) GetMerchantByID(ctx context.Context, id string) (*Merchant, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return r.scanMerchant(r.q.QueryRowxContext(ctx, r.q.Rebind(selectMerchant+` WHERE id = ?`), id))
}

func (r *sqlRepository) GetMerchantByUserID(ctx context.Context, userID string) (*Merchant, error) {
	return r.scanMerchant(r.q.QueryRowxContext(ctx, r.q.Rebind(selectMerchant+` WHERE user_id = ?`), userID))
}

func (r *sqlRepository) SetCustomDealLimit(ctx context.Context, id string, limit *int) error {
	return r.updateOne(ctx, "merchants", id,
		`UPDATE merchants SET custom_deal_limit = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullInt(limit), id)
}

func (r *sqlRepository) scanMerchant(row *sqlx.Row) (*Merchant, error) {
	m := &Merchant{}
	var limit sql.NullInt64
	err := row.Scan(&m.ID, &m.UserID, &m.BusinessName, &m.PlanKey, &limit, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan merchant")
	}
	m.CustomDealLimit = intPtr(limit)
	return m, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// updateOne runs an update of the row id in table. Zero affected rows only
// means not found when the row is really absent: mysql counts matched rows
// whose values did not change as unaffected.
func (r *sqlRepository) updateOne(ctx context.Context, table, id, query string, args ...any) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}
	var found int
	err = r.q.QueryRowxContext(ctx, r.q.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`), id).Scan(&found)
	if err != nil {
		return errors.Wrap(err, "check "+table+" row")
	}
	if found == 0 {
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

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
