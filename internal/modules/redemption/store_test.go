package redemption_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/deal/dealtest"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/member/membertest"
	"github.com/indiansinghana/iig-backend/internal/modules/redemption"
)

// memStore serializes every transaction on one mutex, standing in for the
// row locks of the SQL store.
type memStore struct {
	txMu     sync.Mutex
	requests *memRequests
	deals    *dealtest.Repository
	members  *membertest.Repository
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx redemption.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(redemption.Tx{Requests: s.requests, Deals: s.deals, Members: s.members})
}

func (s *memStore) Requests() redemption.RequestRepository { return s.requests }

func (s *memStore) Members() member.Repository { return s.members }

type memRequests struct {
	mu   sync.Mutex
	rows map[uuid.UUID]redemption.Request
}

func (m *memRequests) add(r redemption.Request) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.rows[r.ID] = r
	return r.ID
}

func (m *memRequests) Create(_ context.Context, r *redemption.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = *r
	return nil
}

func (m *memRequests) GetByID(_ context.Context, id string) (*redemption.Request, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, redemption.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[rid]
	if !ok {
		return nil, redemption.ErrNotFound
	}
	return &r, nil
}

func (m *memRequests) LockRequest(ctx context.Context, id string) (*redemption.Request, error) {
	return m.GetByID(ctx, id)
}

func (m *memRequests) Resolve(_ context.Context, r *redemption.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[r.ID].Status != redemption.StatusPending {
		return redemption.ErrAlreadyResolved
	}
	m.rows[r.ID] = *r
	return nil
}

func (m *memRequests) HasPending(_ context.Context, userID, dealID uuid.UUID) (bool, error) {
	return len(m.filter(func(r redemption.Request) bool {
		return r.UserID == userID && r.DealID == dealID && r.Status == redemption.StatusPending
	})) > 0, nil
}

func (m *memRequests) ListByMerchant(_ context.Context, merchantID string, status redemption.Status) ([]*redemption.Request, error) {
	return m.filter(func(r redemption.Request) bool {
		return r.MerchantID.String() == merchantID && (status == "" || r.Status == status)
	}), nil
}

func (m *memRequests) ListByUser(_ context.Context, userID string) ([]*redemption.Request, error) {
	return m.filter(func(r redemption.Request) bool { return r.UserID.String() == userID }), nil
}

func (m *memRequests) CountApprovedRedemptions(_ context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	return len(m.filter(func(r redemption.Request) bool {
		return r.UserID == userID && r.Status == redemption.StatusApproved && r.ResolvedAt != nil &&
			!r.ResolvedAt.Before(from) && r.ResolvedAt.Before(to)
	})), nil
}

func (m *memRequests) filter(keep func(redemption.Request) bool) []*redemption.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*redemption.Request{}
	for _, r := range m.rows {
		if keep(r) {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}
