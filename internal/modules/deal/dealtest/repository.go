// Package dealtest provides an in-memory deal.Repository for tests.
package dealtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/deal"
)

type Repository struct {
	mu    sync.Mutex
	deals map[uuid.UUID]deal.Deal
}

func NewRepository() *Repository {
	return &Repository{deals: map[uuid.UUID]deal.Deal{}}
}

// Add stores d, filling id and timestamps when missing, and returns the id.
func (r *Repository) Add(d deal.Deal) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	r.deals[d.ID] = d
	return d.ID
}

func (r *Repository) Create(_ context.Context, d *deal.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals[d.ID] = *d
	return nil
}

func (r *Repository) Update(_ context.Context, d *deal.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.deals[d.ID]
	if !ok {
		return deal.ErrNotFound
	}
	cp := *d
	cp.RedemptionsCount = old.RedemptionsCount
	cp.CreatedAt = old.CreatedAt
	r.deals[d.ID] = cp
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*deal.Deal, error) {
	did, err := uuid.Parse(id)
	if err != nil {
		return nil, deal.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[did]
	if !ok {
		return nil, deal.ErrNotFound
	}
	return &d, nil
}

// LockDeal is a plain read; callers serialize with their own store lock.
func (r *Repository) LockDeal(ctx context.Context, id string) (*deal.Deal, error) {
	return r.GetByID(ctx, id)
}

func (r *Repository) IncrementRedemptions(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok {
		return deal.ErrNotFound
	}
	d.RedemptionsCount++
	r.deals[id] = d
	return nil
}

func (r *Repository) ListByMerchant(_ context.Context, merchantID string) ([]*deal.Deal, error) {
	return r.filter(func(d deal.Deal) bool { return d.MerchantID.String() == merchantID }), nil
}

func (r *Repository) ListByStatus(_ context.Context, status deal.Status) ([]*deal.Deal, error) {
	return r.filter(func(d deal.Deal) bool { return d.Status == status }), nil
}

func (r *Repository) CountDealsPosted(_ context.Context, merchantID uuid.UUID, from, to time.Time) (int, error) {
	return len(r.filter(func(d deal.Deal) bool {
		return d.MerchantID == merchantID && !d.CreatedAt.Before(from) && d.CreatedAt.Before(to)
	})), nil
}

func (r *Repository) filter(keep func(deal.Deal) bool) []*deal.Deal {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*deal.Deal
	for _, d := range r.deals {
		if keep(d) {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
