package deal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/indiansinghana/iig-backend/internal/modules/access"
	"github.com/indiansinghana/iig-backend/internal/modules/limiter"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
	"github.com/indiansinghana/iig-backend/internal/platform/metrics"
)

var (
	ErrNotOwner            = errors.New("deal belongs to another merchant")
	ErrInvalidDeal         = errors.New("invalid deal")
	ErrUnknownPriority     = errors.New("required plan priority does not match any active membership plan")
	ErrPostingLimitReached = errors.New("you have reached this month's deal posting limit")
	ErrInvalidTransition   = errors.New("deal cannot make that status change")
)

const dateLayout = "2006-01-02"

// Service defines deal posting, review and member-facing reads.
type Service interface {
	Post(ctx context.Context, merchantID string, req DealRequest) (*Deal, error)
	Update(ctx context.Context, merchantID, dealID string, req DealRequest) (*Deal, error)
	Review(ctx context.Context, dealID string, req ReviewRequest) (*Deal, error)
	SetActive(ctx context.Context, merchantID, dealID string, active bool) (*Deal, error)

	Get(ctx context.Context, id string) (*Deal, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*Deal, error)
	ListPending(ctx context.Context) ([]*Deal, error)
	ListForUser(ctx context.Context, userID string) ([]*Listing, error)

	EvaluateAccess(ctx context.Context, userID, dealID string) (*Decision, error)
	PostingQuota(ctx context.Context, merchantID string) (limiter.Quota, error)
}

type service struct {
	repo    Repository
	members member.Repository
	catalog plan.Catalog
	limiter *limiter.Limiter
	loc     *time.Location
	now     func() time.Time
}

type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new deal service. Deal dates are interpreted in loc.
func NewService(repo Repository, members member.Repository, catalog plan.Catalog, lim *limiter.Limiter, loc *time.Location, opts ...Option) Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &service{repo: repo, members: members, catalog: catalog, limiter: lim, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Merchant operations ───────────────────────────────────────────────────────

func (s *service) Post(ctx context.Context, merchantID string, req DealRequest) (*Deal, error) {
	m, err := s.members.GetMerchantByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	quota, err := s.limiter.RemainingDealPosts(ctx, m, s.repo)
	if err != nil {
		return nil, err
	}
	if !quota.Allows() {
		return nil, ErrPostingLimitReached
	}

	d := &Deal{ID: uuid.New(), MerchantID: m.ID}
	if err := s.apply(ctx, d, req); err != nil {
		return nil, err
	}
	if d.RequiredPlanPriority == nil {
		lowest, err := s.lowestPriority(ctx)
		if err != nil {
			return nil, err
		}
		d.RequiredPlanPriority = &lowest
	}
	d.Status = StatusPendingApproval
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("deal_id", d.ID.String()).Str("merchant_id", merchantID).Msg("deal posted")
	return d, nil
}

func (s *service) Update(ctx context.Context, merchantID, dealID string, req DealRequest) (*Deal, error) {
	d, err := s.owned(ctx, merchantID, dealID)
	if err != nil {
		return nil, err
	}
	if !editable[d.EffectiveStatus(s.now())] {
		return nil, fmt.Errorf("%w: %s deals cannot be edited", ErrInvalidTransition, d.Status)
	}
	if err := s.apply(ctx, d, req); err != nil {
		return nil, err
	}
	d.Status = StatusPendingApproval
	d.RejectionReason = nil
	d.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) SetActive(ctx context.Context, merchantID, dealID string, active bool) (*Deal, error) {
	d, err := s.owned(ctx, merchantID, dealID)
	if err != nil {
		return nil, err
	}
	// merchants only toggle published deals; review owns the rest
	if st := d.EffectiveStatus(s.now()); st != StatusActive && st != StatusInactive {
		return nil, fmt.Errorf("%w: %s deals cannot be toggled", ErrInvalidTransition, st)
	}
	next := StatusInactive
	if active {
		next = StatusActive
	}
	if err := s.transition(ctx, d, next, nil); err != nil {
		return nil, err
	}
	return d, nil
}

// Review is the admin decision on a deal awaiting approval.
func (s *service) Review(ctx context.Context, dealID string, req ReviewRequest) (*Deal, error) {
	d, err := s.repo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	next, reason := StatusActive, (*string)(nil)
	if !req.Approve {
		r := strings.TrimSpace(req.Reason)
		if r == "" {
			return nil, fmt.Errorf("%w: a rejection reason is required", ErrInvalidDeal)
		}
		next, reason = StatusRejected, &r
	}
	if err := s.transition(ctx, d, next, reason); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) transition(ctx context.Context, d *Deal, next Status, reason *string) error {
	current := d.EffectiveStatus(s.now())
	if !CanTransition(current, next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, next)
	}
	d.Status = next
	d.RejectionReason = reason
	d.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, d); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Str("deal_id", d.ID.String()).
		Str("from", string(current)).
		Str("to", string(next)).
		Msg("deal status changed")
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *service) Get(ctx context.Context, id string) (*Deal, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Status = d.EffectiveStatus(s.now())
	return d, nil
}

func (s *service) ListByMerchant(ctx context.Context, merchantID string) ([]*Deal, error) {
	deals, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, d := range deals {
		d.Status = d.EffectiveStatus(now)
	}
	return nonNil(deals), nil
}

func (s *service) ListPending(ctx context.Context) ([]*Deal, error) {
	deals, err := s.repo.ListByStatus(ctx, StatusPendingApproval)
	return nonNil(deals), err
}

// ListForUser returns the live deals, including those above the member's
// tier so the UI can show what an upgrade unlocks.
func (s *service) ListForUser(ctx context.Context, userID string) ([]*Listing, error) {
	u, err := s.members.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	deals, err := s.repo.ListByStatus(ctx, StatusActive)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []*Listing{}
	for _, d := range deals {
		if d.EffectiveStatus(now) != StatusActive || now.Before(d.ValidFrom) {
			continue
		}
		out = append(out, &Listing{Deal: d, Access: s.decide(ctx, u, d)})
	}
	return out, nil
}

// EvaluateAccess decides whether the user may view and redeem the deal.
func (s *service) EvaluateAccess(ctx context.Context, userID, dealID string) (*Decision, error) {
	u, err := s.members.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	dec := s.decide(ctx, u, d)
	metrics.DealAccessChecks.WithLabelValues(strconv.FormatBool(dec.Allowed)).Inc()
	return &dec, nil
}

func (s *service) decide(ctx context.Context, u *member.User, d *Deal) Decision {
	dec := Decision{RequiredTier: access.DescribeRequiredTier(ctx, d.RequiredPlanPriority, s.catalog)}
	ok, err := access.CanAccess(u.PlanPriority, d.RequiredPlanPriority)
	if err != nil || !ok {
		dec.Reason = fmt.Sprintf("your plan doesn't include this deal; it requires %s", dec.RequiredTier)
		return dec
	}
	if err := d.Redeemable(s.now()); err != nil {
		dec.Reason = err.Error()
		return dec
	}
	dec.Allowed = true
	return dec
}

func (s *service) PostingQuota(ctx context.Context, merchantID string) (limiter.Quota, error) {
	m, err := s.members.GetMerchantByID(ctx, merchantID)
	if err != nil {
		return limiter.Quota{}, err
	}
	return s.limiter.RemainingDealPosts(ctx, m, s.repo)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *service) owned(ctx context.Context, merchantID, dealID string) (*Deal, error) {
	d, err := s.repo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.MerchantID.String() != merchantID {
		return nil, ErrNotOwner
	}
	return d, nil
}

// apply validates req and copies it onto d.
func (s *service) apply(ctx context.Context, d *Deal, req DealRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDeal)
	}
	from, err := time.ParseInLocation(dateLayout, req.ValidFrom, s.loc)
	if err != nil {
		return fmt.Errorf("%w: valid_from must be YYYY-MM-DD", ErrInvalidDeal)
	}
	until, err := time.ParseInLocation(dateLayout, req.ValidUntil, s.loc)
	if err != nil {
		return fmt.Errorf("%w: valid_until must be YYYY-MM-DD", ErrInvalidDeal)
	}
	if until.Before(from) {
		return fmt.Errorf("%w: valid_until is before valid_from", ErrInvalidDeal)
	}
	if req.MemberLimit != nil && *req.MemberLimit < 1 {
		return fmt.Errorf("%w: member_limit must be at least 1", ErrInvalidDeal)
	}
	if req.RequiredPlanPriority != nil {
		if err := s.checkPriority(ctx, *req.RequiredPlanPriority); err != nil {
			return err
		}
	}

	d.Title = title
	d.Description = strings.TrimSpace(req.Description)
	d.ValidFrom = from
	// the last day stays valid until its final second
	d.ValidUntil = until.AddDate(0, 0, 1).Add(-time.Second)
	d.MemberLimit = req.MemberLimit
	if req.RequiredPlanPriority != nil {
		d.RequiredPlanPriority = req.RequiredPlanPriority
	}
	return nil
}

func (s *service) checkPriority(ctx context.Context, priority int) error {
	_, err := s.catalog.GetPlanByPriority(ctx, plan.TypeUser, priority)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrUnknownPriority, priority)
	}
	return err
}

func (s *service) lowestPriority(ctx context.Context) (int, error) {
	plans, err := s.catalog.ListActivePlans(ctx, plan.TypeUser)
	if err != nil {
		return 0, err
	}
	if len(plans) == 0 {
		return 0, fmt.Errorf("%w: no active membership plans", ErrUnknownPriority)
	}
	return plans[0].Priority, nil
}

func nonNil(deals []*Deal) []*Deal {
	if deals == nil {
		return []*Deal{}
	}
	return deals
}
