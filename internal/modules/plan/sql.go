package plan

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type sqlRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a Catalog backed by the plans table.
func NewSQLRepository(db *sqlx.DB) Catalog {
	return &sqlRepository{db: db}
}

const planColumns = `id, plan_key, name, type, priority, is_active,
		       deal_posting_limit, max_redemptions_per_month, features`

func (r *sqlRepository) GetPlanByKey(ctx context.Context, typ Type, key Key) (*Plan, error) {
	query, args, err := sqlx.In(`
		SELECT `+planColumns+`
		FROM plans
		WHERE plan_key = ? AND type IN (?)
		ORDER BY is_active DESC, priority ASC
		LIMIT 1`, string(key), typ.storedTypes())
	if err != nil {
		return nil, err
	}
	return r.scanPlan(r.db.QueryRowContext(ctx, r.db.Rebind(query), args...))
}

func (r *sqlRepository) GetPlanByPriority(ctx context.Context, typ Type, priority int) (*Plan, error) {
	query, args, err := sqlx.In(`
		SELECT `+planColumns+`
		FROM plans
		WHERE priority = ? AND type IN (?) AND is_active = TRUE
		ORDER BY name ASC
		LIMIT 1`, priority, typ.storedTypes())
	if err != nil {
		return nil, err
	}
	return r.scanPlan(r.db.QueryRowContext(ctx, r.db.Rebind(query), args...))
}

func (r *sqlRepository) ListActivePlans(ctx context.Context, typ Type) ([]*Plan, error) {
	query, args, err := sqlx.In(`
		SELECT `+planColumns+`
		FROM plans
		WHERE type IN (?) AND is_active = TRUE
		ORDER BY priority ASC, name ASC`, typ.storedTypes())
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list plans")
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *sqlRepository) scanPlan(row scanner) (*Plan, error) {
	p := &Plan{}
	var rawType string
	var features []byte
	err := row.Scan(
		&p.ID,
		&p.Key,
		&p.Name,
		&rawType,
		&p.Priority,
		&p.IsActive,
		&p.DealPostingLimit,
		&p.MaxRedemptionsPerMonth,
		&features,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan plan")
	}
	if p.Type, err = ParseType(rawType); err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, errors.Wrapf(err, "decode features of plan %s", p.ID)
		}
	}
	return p, nil
}
