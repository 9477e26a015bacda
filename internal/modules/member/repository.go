package member

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("member not found")
	ErrEmailTaken = errors.New("email is already registered")
)

// Repository defines data access for users and merchants.
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// LockUser takes a row lock on the user for the rest of the enclosing
	// transaction and returns the current row.
	LockUser(ctx context.Context, id string) (*User, error)
	SetCustomRedemptionLimit(ctx context.Context, id string, limit *int) error

	// CreateMerchantAccount inserts the owning user and the merchant profile atomically.
	CreateMerchantAccount(ctx context.Context, u *User, m *Merchant) error
	GetMerchantByID(ctx context.Context, id string) (*Merchant, error)
	GetMerchantByUserID(ctx context.Context, userID string) (*Merchant, error)
	SetCustomDealLimit(ctx context.Context, id string, limit *int) error
}
