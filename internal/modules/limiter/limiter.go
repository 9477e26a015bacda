// Package limiter computes monthly redemption and deal-posting allowances.
//
// Counts are always recomputed from timestamps inside the current calendar
// month; nothing stores a per-period counter that would need resetting.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

// Quota is the allowance left in the current month. Remaining is only
// meaningful when Unlimited is false.
type Quota struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Allows reports whether one more action fits in the quota.
func (q Quota) Allows() bool {
	return q.Unlimited || q.Remaining > 0
}

// RedemptionCounter counts a user's approved redemptions resolved in [from, to).
type RedemptionCounter interface {
	CountApprovedRedemptions(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
}

// DealPostCounter counts the deals a merchant created in [from, to).
type DealPostCounter interface {
	CountDealsPosted(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (int, error)
}

type Limiter struct {
	catalog plan.Catalog
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter whose month boundaries fall on the 1st at midnight in
// loc. A nil loc means UTC.
func New(catalog plan.Catalog, loc *time.Location, opts ...Option) *Limiter {
	if loc == nil {
		loc = time.UTC
	}
	l := &Limiter{catalog: catalog, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MonthWindow returns the calendar month containing t in loc as [from, to).
func MonthWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// Window is the current month for this limiter.
func (l *Limiter) Window() (time.Time, time.Time) {
	return MonthWindow(l.now(), l.loc)
}

// RemainingRedemptions applies the user's custom limit when set, otherwise
// the monthly redemption limit of their membership plan.
func (l *Limiter) RemainingRedemptions(ctx context.Context, u *member.User, counter RedemptionCounter) (Quota, error) {
	limit := 0
	if u.CustomRedemptionLimit != nil {
		limit = *u.CustomRedemptionLimit
	} else {
		p, err := l.lookup(ctx, plan.TypeUser, u.MembershipType, "user_id", u.ID)
		if err != nil {
			return Quota{}, err
		}
		if p != nil {
			limit = p.MaxRedemptionsPerMonth
		}
	}

	from, to := l.Window()
	used, err := counter.CountApprovedRedemptions(ctx, u.ID, from, to)
	if err != nil {
		return Quota{}, fmt.Errorf("count redemptions for %s: %w", u.ID, err)
	}
	return newQuota(limit, used, to), nil
}

// CanRedeem reports whether the user may have one more redemption approved.
func (l *Limiter) CanRedeem(ctx context.Context, u *member.User, counter RedemptionCounter) (bool, error) {
	q, err := l.RemainingRedemptions(ctx, u, counter)
	if err != nil {
		return false, err
	}
	return q.Allows(), nil
}

// RemainingDealPosts is the merchant counterpart of RemainingRedemptions.
func (l *Limiter) RemainingDealPosts(ctx context.Context, m *member.Merchant, counter DealPostCounter) (Quota, error) {
	limit := 0
	if m.CustomDealLimit != nil {
		limit = *m.CustomDealLimit
	} else {
		p, err := l.lookup(ctx, plan.TypeMerchant, m.PlanKey, "merchant_id", m.ID)
		if err != nil {
			return Quota{}, err
		}
		if p != nil {
			limit = p.DealPostingLimit
		}
	}

	from, to := l.Window()
	used, err := counter.CountDealsPosted(ctx, m.ID, from, to)
	if err != nil {
		return Quota{}, fmt.Errorf("count deals for %s: %w", m.ID, err)
	}
	return newQuota(limit, used, to), nil
}

// lookup returns nil without error when the plan is gone; the caller then
// falls back to a zero limit.
func (l *Limiter) lookup(ctx context.Context, typ plan.Type, key plan.Key, owner string, id uuid.UUID) (*plan.Plan, error) {
	p, err := l.catalog.GetPlanByKey(ctx, typ, key)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, plan.ErrNotFound) {
		zerolog.Ctx(ctx).Warn().
			Bool("data_integrity", true).
			Str(owner, id.String()).
			Str("plan_type", string(typ)).
			Str("plan_key", string(key)).
			Msg("plan not found, applying zero limit")
		return nil, nil
	}
	return nil, fmt.Errorf("load %s plan %q: %w", typ, key, err)
}

func newQuota(limit, used int, resets time.Time) Quota {
	q := Quota{Limit: limit, Used: used, ResetsAt: resets}
	switch {
	case limit == plan.Unlimited:
		q.Unlimited = true
	case limit < 0:
		// corrupt override below -1
		q.Limit = 0
	default:
		if r := limit - used; r > 0 {
			q.Remaining = r
		}
	}
	return q
}
