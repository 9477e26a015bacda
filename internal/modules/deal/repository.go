package deal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("deal not found")

// Repository defines data access for deals.
type Repository interface {
	Create(ctx context.Context, d *Deal) error
	// Update persists the editable fields, status and rejection reason.
	Update(ctx context.Context, d *Deal) error
	GetByID(ctx context.Context, id string) (*Deal, error)
	// LockDeal takes a row lock on the deal for the rest of the enclosing
	// transaction and returns the current row.
	LockDeal(ctx context.Context, id string) (*Deal, error)
	IncrementRedemptions(ctx context.Context, id uuid.UUID) error
	ListByMerchant(ctx context.Context, merchantID string) ([]*Deal, error)
	ListByStatus(ctx context.Context, status Status) ([]*Deal, error)
	// CountDealsPosted counts deals the merchant created in [from, to).
	CountDealsPosted(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (int, error)
}
