package redemption

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/indiansinghana/iig-backend/internal/modules/access"
	"github.com/indiansinghana/iig-backend/internal/modules/limiter"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
	"github.com/indiansinghana/iig-backend/internal/platform/events"
	"github.com/indiansinghana/iig-backend/internal/platform/metrics"
)

// Event types published after each committed transition.
const (
	EventSubmitted = "redemption.submitted"
	EventApproved  = "redemption.approved"
	EventRejected  = "redemption.rejected"
)

// Service is the redemption request workflow.
type Service interface {
	Submit(ctx context.Context, userID, dealID string) (*Request, error)
	Approve(ctx context.Context, requestID, merchantID string) (*Request, error)
	Reject(ctx context.Context, requestID, merchantID, reason string) (*Request, error)
	BulkResolve(ctx context.Context, ids []string, action Action, merchantID, reason string) ([]Outcome, error)

	ListForMerchant(ctx context.Context, merchantID, status string) ([]*Request, error)
	ListForUser(ctx context.Context, userID string) ([]*Request, error)
	Quota(ctx context.Context, userID string) (limiter.Quota, error)
}

type service struct {
	store     Store
	catalog   plan.Catalog
	limiter   *limiter.Limiter
	publisher events.Publisher
	throttle  *rate.Limiter
	bulk      int
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithThrottle caps the process-wide submission rate.
func WithThrottle(l *rate.Limiter) Option {
	return func(s *service) { s.throttle = l }
}

// WithBulkConcurrency bounds how many requests BulkResolve handles at once.
func WithBulkConcurrency(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.bulk = n
		}
	}
}

// NewService creates a new redemption service.
func NewService(store Store, catalog plan.Catalog, lim *limiter.Limiter, publisher events.Publisher, opts ...Option) Service {
	s := &service{
		store:     store,
		catalog:   catalog,
		limiter:   lim,
		publisher: publisher,
		bulk:      4,
		tracer:    otel.Tracer("github.com/indiansinghana/iig-backend/redemption"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Transitions ───────────────────────────────────────────────────────────────

func (s *service) Submit(ctx context.Context, userID, dealID string) (req *Request, err error) {
	ctx, span := s.tracer.Start(ctx, "redemption.Submit", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("deal_id", dealID),
	))
	defer func() { s.finish(ctx, span, "submit", err) }()

	if s.throttle != nil && !s.throttle.Allow() {
		return nil, ErrThrottled
	}

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		u, err := tx.Members.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		d, err := tx.Deals.GetByID(ctx, dealID)
		if err != nil {
			return err
		}
		now := s.now()

		if err := d.Redeemable(now); err != nil {
			return fmt.Errorf("%w: %w", ErrDealNotRedeemable, err)
		}
		ok, err := access.CanAccess(u.PlanPriority, d.RequiredPlanPriority)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w; it requires %s", ErrAccessDenied,
				access.DescribeRequiredTier(ctx, d.RequiredPlanPriority, s.catalog))
		}
		pending, err := tx.Requests.HasPending(ctx, u.ID, d.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicateRequest
		}
		allowed, err := s.limiter.CanRedeem(ctx, u, tx.Requests)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrQuotaExceeded
		}

		req = &Request{
			ID:          uuid.New(),
			DealID:      d.ID,
			UserID:      u.ID,
			MerchantID:  d.MerchantID,
			Status:      StatusPending,
			RequestedAt: now,
		}
		return tx.Requests.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventSubmitted, req)
	return req, nil
}

func (s *service) Approve(ctx context.Context, requestID, merchantID string) (req *Request, err error) {
	ctx, span := s.tracer.Start(ctx, "redemption.Approve", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.String("merchant_id", merchantID),
	))
	defer func() { s.finish(ctx, span, "approve", err) }()

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		if req, err = s.lockPending(ctx, tx, requestID, merchantID); err != nil {
			return err
		}
		d, err := tx.Deals.LockDeal(ctx, req.DealID.String())
		if err != nil {
			return err
		}
		u, err := tx.Members.LockUser(ctx, req.UserID.String())
		if err != nil {
			return err
		}

		// quota may have moved since submission
		allowed, err := s.limiter.CanRedeem(ctx, u, tx.Requests)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrQuotaExceeded
		}
		if d.MemberLimit != nil && d.RedemptionsCount >= *d.MemberLimit {
			return fmt.Errorf("%w: the deal has reached its member limit", ErrDealNotRedeemable)
		}

		resolved := s.now()
		req.Status = StatusApproved
		req.ResolvedAt = &resolved
		if err := tx.Requests.Resolve(ctx, req); err != nil {
			return err
		}
		return tx.Deals.IncrementRedemptions(ctx, d.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventApproved, req)
	return req, nil
}

func (s *service) Reject(ctx context.Context, requestID, merchantID, reason string) (req *Request, err error) {
	ctx, span := s.tracer.Start(ctx, "redemption.Reject", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.String("merchant_id", merchantID),
	))
	defer func() { s.finish(ctx, span, "reject", err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		if req, err = s.lockPending(ctx, tx, requestID, merchantID); err != nil {
			return err
		}
		resolved := s.now()
		req.Status = StatusRejected
		req.ResolvedAt = &resolved
		req.RejectionReason = &reason
		return tx.Requests.Resolve(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventRejected, req)
	return req, nil
}

// BulkResolve applies action to each id independently. One failure never
// undoes another success.
func (s *service) BulkResolve(ctx context.Context, ids []string, action Action, merchantID, reason string) ([]Outcome, error) {
	var resolve func(ctx context.Context, id string) (*Request, error)
	switch action {
	case ActionApprove:
		resolve = func(ctx context.Context, id string) (*Request, error) { return s.Approve(ctx, id, merchantID) }
	case ActionReject:
		resolve = func(ctx context.Context, id string) (*Request, error) { return s.Reject(ctx, id, merchantID, reason) }
	default:
		return nil, ErrInvalidAction
	}

	ctx, span := s.tracer.Start(ctx, "redemption.BulkResolve", trace.WithAttributes(
		attribute.String("action", string(action)),
		attribute.Int("count", len(ids)),
	))
	defer span.End()

	outcomes := make([]Outcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulk)
	for i, id := range ids {
		g.Go(func() error {
			req, err := resolve(ctx, id)
			out := Outcome{ID: id, OK: err == nil, Request: req}
			if err != nil {
				out.Code = Code(err)
				out.Error = publicMessage(err)
			}
			outcomes[i] = out
			return nil
		})
	}
	g.Wait()
	return outcomes, nil
}

// lockPending locks the request and checks the merchant may resolve it.
func (s *service) lockPending(ctx context.Context, tx Tx, requestID, merchantID string) (*Request, error) {
	req, err := tx.Requests.LockRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.MerchantID.String() != merchantID {
		zerolog.Ctx(ctx).Warn().
			Str("request_id", requestID).
			Str("merchant_id", merchantID).
			Msg("merchant tried to resolve another merchant's request")
		return nil, ErrNotOwner
	}
	if req.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}
	return req, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *service) ListForMerchant(ctx context.Context, merchantID, status string) ([]*Request, error) {
	var st Status
	if status != "" {
		var err error
		if st, err = ParseStatus(status); err != nil {
			return nil, err
		}
	}
	return s.store.Requests().ListByMerchant(ctx, merchantID, st)
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]*Request, error) {
	return s.store.Requests().ListByUser(ctx, userID)
}

func (s *service) Quota(ctx context.Context, userID string) (limiter.Quota, error) {
	u, err := s.store.Members().GetUserByID(ctx, userID)
	if err != nil {
		return limiter.Quota{}, err
	}
	return s.limiter.RemainingRedemptions(ctx, u, s.store.Requests())
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *service) finish(ctx context.Context, span trace.Span, action string, err error) {
	code := Code(err)
	metrics.RedemptionTransitions.WithLabelValues(action, code).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		if code == "internal" {
			zerolog.Ctx(ctx).Error().Err(err).Str("action", action).Msg("redemption transition failed")
		}
	}
	span.End()
}

// publish runs after commit; delivery failures are logged and never undo the
// transition.
func (s *service) publish(ctx context.Context, typ string, req *Request) {
	ev := events.Event{Type: typ, Key: req.ID.String(), OccurredAt: s.now(), Data: req}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", typ).Str("request_id", req.ID.String()).Msg("publish event failed")
	}
}

// publicMessage hides infrastructure errors from API callers.
func publicMessage(err error) string {
	if Code(err) == "internal" {
		return "internal server error"
	}
	return err.Error()
}
