package redemption

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/deal"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
)

// RequestRepository defines data access for redemption requests. It also
// serves as the limiter's RedemptionCounter.
type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	// LockRequest takes a row lock on the request for the rest of the
	// enclosing transaction and returns the current row.
	LockRequest(ctx context.Context, id string) (*Request, error)
	// Resolve persists status, resolution time and rejection reason.
	Resolve(ctx context.Context, r *Request) error
	HasPending(ctx context.Context, userID, dealID uuid.UUID) (bool, error)
	ListByMerchant(ctx context.Context, merchantID string, status Status) ([]*Request, error)
	ListByUser(ctx context.Context, userID string) ([]*Request, error)
	CountApprovedRedemptions(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
}

// Tx groups the repositories bound to one store transaction.
type Tx struct {
	Requests RequestRepository
	Deals    deal.Repository
	Members  member.Repository
}

// Store is the single serialization point for the workflow. Work passed to
// WithinTx commits atomically; row locks taken inside it are held until
// commit. Lock order is request, deal, user.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Requests() RequestRepository
	Members() member.Repository
}
