package deal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiansinghana/iig-backend/internal/modules/deal"
	"github.com/indiansinghana/iig-backend/internal/modules/deal/dealtest"
	"github.com/indiansinghana/iig-backend/internal/modules/limiter"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/member/membertest"
	"github.com/indiansinghana/iig-backend/internal/modules/plan/plantest"
)

var now = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     deal.Service
	deals   *dealtest.Repository
	members *membertest.Repository
}

func newFixture() fixture {
	catalog := plantest.Standard()
	clock := func() time.Time { return now }
	deals := dealtest.NewRepository()
	members := membertest.NewRepository(catalog)
	lim := limiter.New(catalog, time.UTC, limiter.WithClock(clock))
	return fixture{
		svc:     deal.NewService(deals, members, catalog, lim, time.UTC, deal.WithClock(clock)),
		deals:   deals,
		members: members,
	}
}

func intp(v int) *int { return &v }

func request() deal.DealRequest {
	return deal.DealRequest{Title: "20% off thali", ValidFrom: "2025-03-01", ValidUntil: "2025-03-31"}
}

func TestPostDefaultsToLowestPriority(t *testing.T) {
	f := newFixture()
	mid := f.members.AddMerchant(member.Merchant{PlanKey: "silver"})

	d, err := f.svc.Post(context.Background(), mid.String(), request())
	require.NoError(t, err)
	assert.Equal(t, deal.StatusPendingApproval, d.Status)
	require.NotNil(t, d.RequiredPlanPriority)
	assert.Equal(t, 1, *d.RequiredPlanPriority)
	assert.Equal(t, time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC), d.ValidUntil)
}

func TestPostValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mid := f.members.AddMerchant(member.Merchant{PlanKey: "silver"}).String()

	req := request()
	req.RequiredPlanPriority = intp(9)
	_, err := f.svc.Post(ctx, mid, req)
	assert.ErrorIs(t, err, deal.ErrUnknownPriority)

	req = request()
	req.ValidUntil = "2025-02-01"
	_, err = f.svc.Post(ctx, mid, req)
	assert.ErrorIs(t, err, deal.ErrInvalidDeal)

	req = request()
	req.MemberLimit = intp(0)
	_, err = f.svc.Post(ctx, mid, req)
	assert.ErrorIs(t, err, deal.ErrInvalidDeal)
}

func TestPostingLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mid := f.members.AddMerchant(member.Merchant{PlanKey: "silver"})
	for i := 0; i < 3; i++ {
		f.deals.Add(deal.Deal{MerchantID: mid, Status: deal.StatusActive, CreatedAt: now})
	}
	// last month's posts do not count
	f.deals.Add(deal.Deal{MerchantID: mid, Status: deal.StatusActive, CreatedAt: now.AddDate(0, -1, 0)})

	_, err := f.svc.Post(ctx, mid.String(), request())
	assert.ErrorIs(t, err, deal.ErrPostingLimitReached)

	q, err := f.svc.PostingQuota(ctx, mid.String())
	require.NoError(t, err)
	assert.Equal(t, 3, q.Used)

	require.NoError(t, f.members.SetCustomDealLimit(ctx, mid.String(), intp(4)))
	_, err = f.svc.Post(ctx, mid.String(), request())
	assert.NoError(t, err)
}

func TestLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mid := f.members.AddMerchant(member.Merchant{PlanKey: "gold"}).String()

	d, err := f.svc.Post(ctx, mid, request())
	require.NoError(t, err)

	_, err = f.svc.SetActive(ctx, mid, d.ID.String(), true)
	assert.ErrorIs(t, err, deal.ErrInvalidTransition, "pending deals need review first")

	_, err = f.svc.Review(ctx, d.ID.String(), deal.ReviewRequest{Approve: false})
	assert.ErrorIs(t, err, deal.ErrInvalidDeal)

	d, err = f.svc.Review(ctx, d.ID.String(), deal.ReviewRequest{Approve: false, Reason: "blurry image"})
	require.NoError(t, err)
	assert.Equal(t, deal.StatusRejected, d.Status)

	d, err = f.svc.Update(ctx, mid, d.ID.String(), request())
	require.NoError(t, err)
	assert.Equal(t, deal.StatusPendingApproval, d.Status)
	assert.Nil(t, d.RejectionReason)

	d, err = f.svc.Review(ctx, d.ID.String(), deal.ReviewRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, deal.StatusActive, d.Status)

	d, err = f.svc.SetActive(ctx, mid, d.ID.String(), false)
	require.NoError(t, err)
	assert.Equal(t, deal.StatusInactive, d.Status)

	_, err = f.svc.Update(ctx, mid, d.ID.String(), request())
	assert.ErrorIs(t, err, deal.ErrInvalidTransition, "inactive deals are not editable")

	_, err = f.svc.SetActive(ctx, uuid.NewString(), d.ID.String(), true)
	assert.ErrorIs(t, err, deal.ErrNotOwner)
}

func TestExpiryIsLazy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mid := f.members.AddMerchant(member.Merchant{PlanKey: "gold"})
	id := f.deals.Add(deal.Deal{
		MerchantID: mid, Title: "old", Status: deal.StatusActive,
		ValidFrom: now.AddDate(0, -2, 0), ValidUntil: now.AddDate(0, 0, -1),
	})

	d, err := f.svc.Get(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, deal.StatusExpired, d.Status)

	d, err = f.svc.Update(ctx, mid.String(), id.String(), request())
	require.NoError(t, err)
	assert.Equal(t, deal.StatusPendingApproval, d.Status)
}

func TestEvaluateAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mid := f.members.AddMerchant(member.Merchant{PlanKey: "gold"})
	silver := f.members.AddUser(member.User{Email: "s@example.com", MembershipType: "silver"}).String()
	gold := f.members.AddUser(member.User{Email: "g@example.com", MembershipType: "gold"}).String()

	live := deal.Deal{MerchantID: mid, Status: deal.StatusActive, ValidFrom: now.AddDate(0, 0, -1), ValidUntil: now.AddDate(0, 0, 10)}
	gated := live
	gated.RequiredPlanPriority = intp(3)
	gatedID := f.deals.Add(gated)
	openID := f.deals.Add(live)

	dec, err := f.svc.EvaluateAccess(ctx, silver, gatedID.String())
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, "Gold", dec.RequiredTier)
	assert.Contains(t, dec.Reason, "Gold")

	dec, err = f.svc.EvaluateAccess(ctx, gold, gatedID.String())
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = f.svc.EvaluateAccess(ctx, silver, openID.String())
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, "All members", dec.RequiredTier)

	listings, err := f.svc.ListForUser(ctx, silver)
	require.NoError(t, err)
	assert.Len(t, listings, 2, "locked deals are listed with their tier")
}
