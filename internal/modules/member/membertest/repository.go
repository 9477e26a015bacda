// Package membertest provides an in-memory member.Repository for tests.
package membertest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

type Repository struct {
	mu        sync.Mutex
	catalog   plan.Catalog
	users     map[uuid.UUID]member.User
	merchants map[uuid.UUID]member.Merchant
}

// NewRepository returns an empty repository. When catalog is non-nil,
// PlanPriority is resolved from it on every read, like the SQL join.
func NewRepository(catalog plan.Catalog) *Repository {
	return &Repository{
		catalog:   catalog,
		users:     map[uuid.UUID]member.User{},
		merchants: map[uuid.UUID]member.Merchant{},
	}
}

// AddUser stores u, assigning an id when missing, and returns the id.
func (r *Repository) AddUser(u member.User) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = member.RoleUser
	}
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return u.ID
}

// AddMerchant stores m, assigning ids when missing, and returns the merchant id.
func (r *Repository) AddMerchant(m member.Merchant) uuid.UUID {
	if m.UserID == uuid.Nil {
		m.UserID = r.AddUser(member.User{Role: member.RoleMerchant, MembershipType: member.DefaultMembership})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.merchants[m.ID] = m
	return m.ID
}

func (r *Repository) CreateUser(_ context.Context, u *member.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertUser(u)
}

func (r *Repository) insertUser(u *member.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return member.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = *u
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*member.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, member.ErrNotFound
	}
	r.mu.Lock()
	u, ok := r.users[uid]
	r.mu.Unlock()
	if !ok {
		return nil, member.ErrNotFound
	}
	return r.withPriority(ctx, u), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*member.User, error) {
	r.mu.Lock()
	var found *member.User
	for _, u := range r.users {
		if u.Email == email {
			u := u
			found = &u
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return nil, member.ErrNotFound
	}
	return r.withPriority(ctx, *found), nil
}

// LockUser is a plain read; callers serialize with their own store lock.
func (r *Repository) LockUser(ctx context.Context, id string) (*member.User, error) {
	return r.GetUserByID(ctx, id)
}

func (r *Repository) SetCustomRedemptionLimit(_ context.Context, id string, limit *int) error {
	uid, _ := uuid.Parse(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return member.ErrNotFound
	}
	u.CustomRedemptionLimit = limit
	r.users[uid] = u
	return nil
}

func (r *Repository) CreateMerchantAccount(_ context.Context, u *member.User, m *member.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertUser(u); err != nil {
		return err
	}
	m.CreatedAt = time.Now()
	r.merchants[m.ID] = *m
	return nil
}

func (r *Repository) GetMerchantByID(_ context.Context, id string) (*member.Merchant, error) {
	mid, err := uuid.Parse(id)
	if err != nil {
		return nil, member.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[mid]
	if !ok {
		return nil, member.ErrNotFound
	}
	return &m, nil
}

func (r *Repository) GetMerchantByUserID(_ context.Context, userID string) (*member.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.merchants {
		if m.UserID.String() == userID {
			m := m
			return &m, nil
		}
	}
	return nil, member.ErrNotFound
}

func (r *Repository) SetCustomDealLimit(_ context.Context, id string, limit *int) error {
	mid, _ := uuid.Parse(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[mid]
	if !ok {
		return member.ErrNotFound
	}
	m.CustomDealLimit = limit
	r.merchants[mid] = m
	return nil
}

func (r *Repository) withPriority(ctx context.Context, u member.User) *member.User {
	if r.catalog != nil {
		u.PlanPriority = 0
		if p, err := r.catalog.GetPlanByKey(ctx, plan.TypeUser, u.MembershipType); err == nil {
			u.PlanPriority = p.Priority
		}
	}
	return &u
}
