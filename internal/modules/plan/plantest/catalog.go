// Package plantest provides an in-memory plan.Catalog for tests.
package plantest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

type Catalog struct {
	mu    sync.Mutex
	plans []*plan.Plan
	// Err, when set, is returned by every lookup.
	Err   error
	Calls int
}

func NewCatalog(plans ...*plan.Plan) *Catalog {
	c := &Catalog{}
	for _, p := range plans {
		c.Add(p)
	}
	return c
}

func (c *Catalog) Add(p *plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c.plans = append(c.plans, p)
}

// Remove deletes the plan with key from the catalog, simulating an admin
// deleting a plan that users still reference.
func (c *Catalog) Remove(typ plan.Type, key plan.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.plans[:0]
	for _, p := range c.plans {
		if p.Type != typ || p.Key != key {
			kept = append(kept, p)
		}
	}
	c.plans = kept
}

func (c *Catalog) GetPlanByKey(_ context.Context, typ plan.Type, key plan.Key) (*plan.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	for _, p := range c.plans {
		if p.Type == typ && p.Key == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, plan.ErrNotFound
}

func (c *Catalog) GetPlanByPriority(ctx context.Context, typ plan.Type, priority int) (*plan.Plan, error) {
	plans, err := c.ListActivePlans(ctx, typ)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.Priority == priority {
			return p, nil
		}
	}
	return nil, plan.ErrNotFound
}

func (c *Catalog) ListActivePlans(_ context.Context, typ plan.Type) ([]*plan.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	var out []*plan.Plan
	for _, p := range c.plans {
		if p.Type == typ && p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// Standard returns the tier ladder used across tests: user plans basic(1),
// silver(2), gold(3), platinum(4) and merchant plans silver(1), gold(2).
func Standard() *Catalog {
	return NewCatalog(
		&plan.Plan{Key: "basic", Name: "Basic", Type: plan.TypeUser, Priority: 1, IsActive: true, MaxRedemptionsPerMonth: 2},
		&plan.Plan{Key: "silver", Name: "Silver", Type: plan.TypeUser, Priority: 2, IsActive: true, MaxRedemptionsPerMonth: 5},
		&plan.Plan{Key: "gold", Name: "Gold", Type: plan.TypeUser, Priority: 3, IsActive: true, MaxRedemptionsPerMonth: 10},
		&plan.Plan{Key: "platinum", Name: "Platinum", Type: plan.TypeUser, Priority: 4, IsActive: true, MaxRedemptionsPerMonth: plan.Unlimited},
		&plan.Plan{Key: "silver", Name: "Silver Business", Type: plan.TypeMerchant, Priority: 1, IsActive: true, DealPostingLimit: 3},
		&plan.Plan{Key: "gold", Name: "Gold Business", Type: plan.TypeMerchant, Priority: 2, IsActive: true, DealPostingLimit: plan.Unlimited},
	)
}
